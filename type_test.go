// FILE: lixenwraith/conftree/type_test.go
package conftree

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTypedGetters(t *testing.T) {
	root := NewNode()
	require.NoError(t, root.PutAll(map[string]any{
		"str":     "text",
		"int":     int64(42),
		"uint":    uint32(7),
		"float":   3.5,
		"bool":    true,
		"hex":     "0xFF",
		"numstr":  "2.75",
		"boolstr": "false",
		"number":  json.Number("12"),
		"null":    nil,
		"list":    []any{1, 2},
	}))

	t.Run("String", func(t *testing.T) {
		for path, want := range map[string]string{
			"str":   "text",
			"int":   "42",
			"uint":  "7",
			"float": "3.5",
			"bool":  "true",
			"null":  "",
		} {
			got, err := root.GetString(MustPath(path))
			require.NoError(t, err, path)
			assert.Equal(t, want, got, path)
		}
		_, err := root.GetString(MustPath("list"))
		assert.Error(t, err)
	})

	t.Run("Int64", func(t *testing.T) {
		for path, want := range map[string]int64{
			"int":    42,
			"uint":   7,
			"float":  3,
			"bool":   1,
			"hex":    255,
			"numstr": 2,
			"number": 12,
		} {
			got, err := root.GetInt64(MustPath(path))
			require.NoError(t, err, path)
			assert.Equal(t, want, got, path)
		}
		_, err := root.GetInt64(MustPath("str"))
		assert.Error(t, err)
		_, err = root.GetInt64(MustPath("null"))
		assert.Error(t, err)
	})

	t.Run("Bool", func(t *testing.T) {
		for path, want := range map[string]bool{
			"bool":    true,
			"boolstr": false,
			"int":     true,
			"float":   true,
		} {
			got, err := root.GetBool(MustPath(path))
			require.NoError(t, err, path)
			assert.Equal(t, want, got, path)
		}
		_, err := root.GetBool(MustPath("str"))
		assert.Error(t, err)
	})

	t.Run("Float64", func(t *testing.T) {
		for path, want := range map[string]float64{
			"float":  3.5,
			"int":    42,
			"numstr": 2.75,
			"number": 12,
			"bool":   1,
		} {
			got, err := root.GetFloat64(MustPath(path))
			require.NoError(t, err, path)
			assert.Equal(t, want, got, path)
		}
		_, err := root.GetFloat64(MustPath("null"))
		assert.Error(t, err)
	})

	t.Run("Missing", func(t *testing.T) {
		_, err := root.GetString(MustPath("absent"))
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = root.GetInt64(MustPath("str.deeper"))
		assert.ErrorIs(t, err, ErrIncompatibleLevel)
	})
}
