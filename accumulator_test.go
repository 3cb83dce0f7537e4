// FILE: lixenwraith/conftree/accumulator_test.go
package conftree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccumulatorOperations(t *testing.T) {
	acc := NewAccumulator()

	old, err := acc.Set(MustPath("a.b"), int64(1))
	require.NoError(t, err)
	assert.Nil(t, old)

	added, err := acc.Add(MustPath("a.b"), int64(2))
	require.NoError(t, err)
	assert.False(t, added)

	added, err = acc.Add(MustPath("a.c"), nil)
	require.NoError(t, err)
	assert.True(t, added)
	v, err := acc.Get(MustPath("a.c"))
	require.NoError(t, err)
	assert.True(t, IsNull(v))

	a, err := acc.Get(MustPath("a"))
	require.NoError(t, err)
	assert.IsType(t, &Accumulator{}, a)

	_, err = acc.Set(MustPath("a.b.c"), 1)
	assert.ErrorIs(t, err, ErrIncompatibleLevel)
	_, err = acc.Get(nil)
	assert.ErrorIs(t, err, ErrEmptyPath)

	_, err = acc.SetComment(MustPath("a"), "section a")
	require.NoError(t, err)
	c, err := acc.Comment(MustPath("a"))
	require.NoError(t, err)
	assert.Equal(t, "section a", c)

	removed, err := acc.Remove(MustPath("a.c"))
	require.NoError(t, err)
	assert.True(t, IsNull(removed))
	ok, err := acc.Contains(MustPath("a.c"))
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = acc.Set(MustPath("z"), "last")
	require.NoError(t, err)
	keys, err := acc.Keys()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "z"}, keys)

	var seen []string
	require.NoError(t, acc.Range(func(key string, value any, comment string, hasComment bool) bool {
		seen = append(seen, key)
		if key == "a" {
			assert.True(t, hasComment)
			assert.Equal(t, "section a", comment)
		}
		return true
	}))
	assert.Equal(t, []string{"a", "z"}, seen)
}

func TestAccumulatorStoredAsValue(t *testing.T) {
	root := NewNode()
	sub, err := AccumulatorFromMap(map[string]any{
		"host":  "localhost",
		"ports": []any{int64(80), int64(443)},
		"tls":   map[string]any{"enabled": true},
	})
	require.NoError(t, err)
	_, err = sub.SetComment(MustPath("host"), "bind address")
	require.NoError(t, err)

	_, err = root.Set(MustPath("server"), sub)
	require.NoError(t, err)
	assert.NoError(t, root.CheckInvariant())

	v, err := root.Get(MustPath("server.tls.enabled"))
	require.NoError(t, err)
	assert.Equal(t, true, v)
	c, err := root.Comment(MustPath("server.host"))
	require.NoError(t, err)
	assert.Equal(t, "bind address", c)

	_, err = sub.Size()
	assert.ErrorIs(t, err, ErrConsumed)
	_, err = root.Set(MustPath("again"), sub)
	assert.ErrorIs(t, err, ErrConsumed)
}

func TestAccumulatorNestedLevel(t *testing.T) {
	acc := NewAccumulator()
	db, err := acc.NewAccumulator()
	require.NoError(t, err)
	_, err = db.Set(MustPath("url"), "postgres://localhost")
	require.NoError(t, err)
	_, err = acc.Set(MustPath("db"), db)
	require.NoError(t, err)

	root := NewNode()
	require.NoError(t, root.ReplaceContentBy(acc))
	v, err := root.Get(MustPath("db.url"))
	require.NoError(t, err)
	assert.Equal(t, "postgres://localhost", v)
	require.NoError(t, root.CheckInvariant())

	_, err = acc.NewAccumulator()
	assert.ErrorIs(t, err, ErrConsumed)
}

func TestAccumulatorOwnership(t *testing.T) {
	t.Run("StoredTwice", func(t *testing.T) {
		acc := NewAccumulator()
		child := NewAccumulator()
		_, err := acc.Set(MustPath("a"), child)
		require.NoError(t, err)
		_, err = acc.Set(MustPath("b"), child)
		assert.ErrorIs(t, err, ErrInvalidPath)
		ok, err := acc.Contains(MustPath("b"))
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("StoredBelowItself", func(t *testing.T) {
		acc := NewAccumulator()
		nested := NewAccumulator()
		_, err := acc.Set(MustPath("n"), nested)
		require.NoError(t, err)
		_, err = nested.Set(MustPath("x"), acc)
		assert.ErrorIs(t, err, ErrInvalidPath)
		_, err = nested.Set(MustPath("y.z"), nested)
		assert.ErrorIs(t, err, ErrInvalidPath)
		ok, err := nested.Contains(MustPath("y"))
		require.NoError(t, err)
		assert.False(t, ok, "failed Set must not create levels")
	})

	t.Run("RemoveReleases", func(t *testing.T) {
		acc := NewAccumulator()
		child := NewAccumulator()
		_, err := child.Set(MustPath("k"), 1)
		require.NoError(t, err)
		_, err = acc.Set(MustPath("a"), child)
		require.NoError(t, err)
		_, err = acc.Remove(MustPath("a"))
		require.NoError(t, err)
		_, err = acc.Set(MustPath("b"), child)
		require.NoError(t, err)

		root := NewNode()
		require.NoError(t, root.ReplaceContentBy(acc))
		v, err := root.Get(MustPath("b.k"))
		require.NoError(t, err)
		assert.Equal(t, 1, v)
	})

	t.Run("AttachedCannotBePublished", func(t *testing.T) {
		acc := NewAccumulator()
		child := NewAccumulator()
		_, err := acc.Set(MustPath("a"), child)
		require.NoError(t, err)
		assert.ErrorIs(t, NewNode().ReplaceContentBy(child), ErrInvalidPath)
	})

	t.Run("ConsumedLeavesNoLevels", func(t *testing.T) {
		used := NewAccumulator()
		require.NoError(t, NewNode().ReplaceContentBy(used))
		acc := NewAccumulator()
		_, err := acc.Set(MustPath("x.y.z"), used)
		assert.ErrorIs(t, err, ErrConsumed)
		size, err := acc.Size()
		require.NoError(t, err)
		assert.Zero(t, size)
	})
}
