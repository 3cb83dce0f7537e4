// FILE: lixenwraith/conftree/configspec_test.go
package conftree

import (
	"bytes"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pkt.systems/pslog"
)

func newServerSpec(t *testing.T) *ConfigSpec {
	t.Helper()
	spec := NewConfigSpec()
	require.NoError(t, spec.Define(MustPath("server.host"), "localhost", nil))
	require.NoError(t, spec.DefineInRange(MustPath("server.port"), int64(8080), 1, 65535))
	require.NoError(t, spec.DefineInList(MustPath("log.level"), "info", "debug", "info", "warn", "error"))
	require.NoError(t, spec.DefineList(MustPath("peers"), []any{}, func(v any) bool {
		_, ok := v.(string)
		return ok
	}))
	return spec
}

func TestConfigSpecDefine(t *testing.T) {
	spec := newServerSpec(t)

	assert.True(t, spec.IsDefined(MustPath("server")))
	assert.True(t, spec.IsDefined(MustPath("server.port")))
	assert.False(t, spec.IsDefined(MustPath("server.timeout")))

	assert.True(t, spec.IsValueCorrect(MustPath("server.port"), 443))
	assert.True(t, spec.IsValueCorrect(MustPath("server.port"), float64(443)))
	assert.False(t, spec.IsValueCorrect(MustPath("server.port"), 0))
	assert.False(t, spec.IsValueCorrect(MustPath("server.port"), "443"))
	assert.True(t, spec.IsValueCorrect(MustPath("log.level"), "warn"))
	assert.False(t, spec.IsValueCorrect(MustPath("log.level"), "trace"))
	assert.True(t, spec.IsValueCorrect(MustPath("peers"), []any{"a", "b"}))
	assert.False(t, spec.IsValueCorrect(MustPath("peers"), []any{"a", 1}))
	assert.False(t, spec.IsValueCorrect(MustPath("server"), "x"), "levels hold no value definition")

	t.Run("DefaultValidatorMatchesKind", func(t *testing.T) {
		s := NewConfigSpec()
		require.NoError(t, s.Define(MustPath("n"), 1, nil))
		require.NoError(t, s.Define(MustPath("f"), 0.5, nil))
		require.NoError(t, s.Define(MustPath("m"), map[string]any{"k": "v"}, nil))
		assert.True(t, s.IsValueCorrect(MustPath("n"), int64(7)))
		assert.False(t, s.IsValueCorrect(MustPath("n"), 7.5))
		assert.True(t, s.IsValueCorrect(MustPath("f"), 2))
		assert.False(t, s.IsValueCorrect(MustPath("f"), Null))
		assert.True(t, s.IsValueCorrect(MustPath("m"), NewNode()))
		assert.False(t, s.IsValueCorrect(MustPath("m"), map[string]any{}))
	})

	t.Run("InvalidDefinitions", func(t *testing.T) {
		s := NewConfigSpec()
		assert.ErrorIs(t, s.Define(nil, 1, nil), ErrEmptyPath)
		assert.Error(t, s.Define(MustPath("a"), nil, nil))
		assert.Error(t, s.DefineInRange(MustPath("a"), 5, 10, 1))
		assert.Error(t, s.DefineInRange(MustPath("a"), 5, 1, "10"))
		assert.Error(t, s.DefineList(MustPath("a"), nil, nil))

		require.NoError(t, s.Define(MustPath("a"), 1, nil))
		assert.ErrorIs(t, s.Define(MustPath("a.b"), 1, nil), ErrIncompatibleLevel)
	})

	t.Run("Undefine", func(t *testing.T) {
		s := newServerSpec(t)
		assert.True(t, s.Undefine(MustPath("server.port")))
		assert.False(t, s.Undefine(MustPath("server.port")))
		assert.False(t, s.IsDefined(MustPath("server.port")))
		assert.True(t, s.IsDefined(MustPath("server.host")))
		assert.True(t, s.Undefine(MustPath("server")))
		assert.False(t, s.IsDefined(MustPath("server.host")))
	})
}

func TestConfigSpecCorrect(t *testing.T) {
	spec := newServerSpec(t)
	root := NewNode()
	require.NoError(t, root.PutAll(map[string]any{
		"server": map[string]any{"host": "example", "port": int64(70000)},
		"log":    "verbose",
		"extra":  true,
	}))
	_, err := root.SetComment(MustPath("extra"), "stale")
	require.NoError(t, err)

	ok, err := spec.IsCorrect(root)
	require.NoError(t, err)
	assert.False(t, ok)

	corrections, err := spec.Correct(root)
	require.NoError(t, err)

	got := make(map[string]CorrectionAction, len(corrections))
	for _, c := range corrections {
		got[c.Path.String()] = c.Action
	}
	assert.Equal(t, map[string]CorrectionAction{
		"server.port": CorrectionReplaced,
		"log":         CorrectionReplaced,
		"log.level":   CorrectionAdded,
		"peers":       CorrectionAdded,
		"extra":       CorrectionRemoved,
	}, got)

	host, err := root.GetString(MustPath("server.host"))
	require.NoError(t, err)
	assert.Equal(t, "example", host, "valid values are kept")
	port, err := root.GetInt64(MustPath("server.port"))
	require.NoError(t, err)
	assert.Equal(t, int64(8080), port)
	level, err := root.GetString(MustPath("log.level"))
	require.NoError(t, err)
	assert.Equal(t, "info", level)
	ok, err = root.ContainsComment(MustPath("extra"))
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = spec.IsCorrect(root)
	require.NoError(t, err)
	assert.True(t, ok)
	again, err := spec.Correct(root)
	require.NoError(t, err)
	assert.Empty(t, again)
	assert.NoError(t, root.CheckInvariant())
}

func TestConfigSpecKeepUnspecified(t *testing.T) {
	spec := NewConfigSpec()
	require.NoError(t, spec.Define(MustPath("a"), 1, nil))
	spec.SetKeepUnspecified(true)

	root := NewNode()
	require.NoError(t, root.PutAll(map[string]any{"a": 2, "b": "kept"}))
	ok, err := spec.IsCorrect(root)
	require.NoError(t, err)
	assert.True(t, ok)
	corrections, err := spec.Correct(root)
	require.NoError(t, err)
	assert.Empty(t, corrections)
	v, err := root.Get(MustPath("b"))
	require.NoError(t, err)
	assert.Equal(t, "kept", v)
}

func TestConfigSpecDefaultsAreFresh(t *testing.T) {
	spec := NewConfigSpec()
	require.NoError(t, spec.Define(MustPath("pool"), map[string]any{"size": 4}, nil))

	first, second := NewNode(), NewNode()
	_, err := spec.Correct(first)
	require.NoError(t, err)
	_, err = spec.Correct(second)
	require.NoError(t, err)

	_, err = first.Set(MustPath("pool.size"), 8)
	require.NoError(t, err)
	v, err := second.Get(MustPath("pool.size"))
	require.NoError(t, err)
	assert.Equal(t, 4, v)
}

func TestConfigSpecConcurrentReaders(t *testing.T) {
	spec := NewConfigSpec()
	require.NoError(t, spec.DefineInRange(MustPath("limits.max"), 10, 1, 100))
	require.NoError(t, spec.DefineInRange(MustPath("limits.min"), 1, 1, 100))

	root := NewNode()
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_, err := root.Set(MustPath("limits.max"), 1000)
				assert.NoError(t, err)
				_, err = spec.Correct(root)
				assert.NoError(t, err)
				_, err = spec.IsCorrect(root)
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	_, err := spec.Correct(root)
	require.NoError(t, err)
	ok, err := spec.IsCorrect(root)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestConfigSpecInsideBulk(t *testing.T) {
	spec := newServerSpec(t)
	root := NewNode()
	err := root.BulkRead(func(*ReadView) error {
		_, err := spec.Correct(root)
		return err
	})
	assert.ErrorIs(t, err, ErrNestedBulk)
}

func TestBuilderWithSpec(t *testing.T) {
	tmpDir := t.TempDir()
	spec := newServerSpec(t)

	for _, mode := range []ParsingMode{ParseReplace, ParseMerge} {
		t.Run(mode.String(), func(t *testing.T) {
			path := filepath.Join(tmpDir, mode.String()+".yaml")
			writeFile(t, path, "server:\n  port: 0\nunknown: 1\n")

			var logBuf bytes.Buffer
			logger := pslog.NewWithOptions(&logBuf, pslog.Options{
				Mode:             pslog.ModeStructured,
				DisableTimestamp: true,
				NoColor:          true,
				MinLevel:         pslog.DebugLevel,
			})
			fc, err := NewBuilder().
				WithFile(path).
				WithParsingMode(mode).
				WithSpec(spec).
				WithLogger(logger).
				Build()
			require.NoError(t, err)
			defer fc.Close()

			ok, err := spec.IsCorrect(fc.Root())
			require.NoError(t, err)
			assert.True(t, ok)
			port, err := fc.Root().GetInt64(MustPath("server.port"))
			require.NoError(t, err)
			assert.Equal(t, int64(8080), port)
			assert.Contains(t, logBuf.String(), "conftree.spec.corrected")
			ok, err = fc.Root().Contains(MustPath("unknown"))
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}
