// FILE: lixenwraith/conftree/builder_test.go
package conftree

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pkt.systems/pslog"
)

func TestBuilder(t *testing.T) {
	tmpDir := t.TempDir()

	t.Run("LoadsWithDefaults", func(t *testing.T) {
		path := filepath.Join(tmpDir, "app.toml")
		writeFile(t, path, "[server]\nport = 9090\n")

		fc, err := NewBuilder().
			WithFile(path).
			WithDefaults(map[string]any{
				"server": map[string]any{"host": "localhost", "port": int64(8080)},
			}).
			Build()
		require.NoError(t, err)
		defer fc.Close()

		port, err := fc.Root().GetInt64(MustPath("server.port"))
		require.NoError(t, err)
		assert.Equal(t, int64(9090), port)
		host, err := fc.Root().GetString(MustPath("server.host"))
		require.NoError(t, err)
		assert.Equal(t, "localhost", host)
	})

	t.Run("MissingFileIsNotFatal", func(t *testing.T) {
		fc, err := NewBuilder().
			WithFile(filepath.Join(tmpDir, "nope.yaml")).
			WithDefaults(map[string]any{"a": "default"}).
			Build()
		require.ErrorIs(t, err, ErrConfigNotFound)
		require.NotNil(t, fc)
		v, err := fc.Root().Get(MustPath("a"))
		require.NoError(t, err)
		assert.Equal(t, "default", v)

		assert.NotPanics(t, func() {
			NewBuilder().WithFile(filepath.Join(tmpDir, "nope.yaml")).MustBuild()
		})
	})

	t.Run("Validator", func(t *testing.T) {
		path := filepath.Join(tmpDir, "validated.yaml")
		writeFile(t, path, "name: svc\n")

		_, err := NewBuilder().
			WithFile(path).
			WithValidator(func(root *Node) error {
				return root.Validate(MustPath("name"), MustPath("port"))
			}).
			Build()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "port")
		assert.NotContains(t, err.Error(), "name,")
	})

	t.Run("InvalidFormat", func(t *testing.T) {
		_, err := NewBuilder().WithFile("x").WithFormat("ini").Build()
		assert.ErrorIs(t, err, ErrUnknownFormat)

		assert.Panics(t, func() {
			NewBuilder().WithFile("x").WithFormat("ini").MustBuild()
		})
	})

	t.Run("NoFile", func(t *testing.T) {
		_, err := NewBuilder().Build()
		assert.Error(t, err)
	})

	t.Run("FormatOverridesExtension", func(t *testing.T) {
		path := filepath.Join(tmpDir, "settings.txt")
		writeFile(t, path, "k: v\n")
		fc, err := NewBuilder().WithFile(path).WithFormat("yaml").WithParsingMode(ParseMerge).Build()
		require.NoError(t, err)
		assert.Equal(t, FormatYAML, fc.Format())
	})

	t.Run("BuildAndScan", func(t *testing.T) {
		path := filepath.Join(tmpDir, "scan.yaml")
		writeFile(t, path, "server:\n  host: example\n")
		var cfg struct {
			Server struct {
				Host string `toml:"host"`
				Port int    `toml:"port"`
			} `toml:"server"`
		}
		fc, err := NewBuilder().
			WithFile(path).
			WithDefaults(map[string]any{"server": map[string]any{"port": 8080}}).
			BuildAndScan(&cfg)
		require.NoError(t, err)
		require.NotNil(t, fc)
		assert.Equal(t, "example", cfg.Server.Host)
		assert.Equal(t, 8080, cfg.Server.Port)
	})

	t.Run("LoggerReceivesEvents", func(t *testing.T) {
		path := filepath.Join(tmpDir, "logged.yaml")
		writeFile(t, path, "k: v\n")
		var logBuf bytes.Buffer
		logger := pslog.NewWithOptions(&logBuf, pslog.Options{
			Mode:             pslog.ModeStructured,
			DisableTimestamp: true,
			NoColor:          true,
			MinLevel:         pslog.DebugLevel,
		})
		_, err := NewBuilder().WithFile(path).WithLogger(logger).Build()
		require.NoError(t, err)
		assert.Contains(t, logBuf.String(), "conftree.load.applied")
	})

	t.Run("FileDiscovery", func(t *testing.T) {
		dir := filepath.Join(tmpDir, "discover")
		require.NoError(t, os.MkdirAll(dir, 0755))
		writeFile(t, filepath.Join(dir, "svc.toml"), "found = true\n")

		opts := FileDiscoveryOptions{
			Name:       "svc",
			Extensions: []string{".yaml", ".toml"},
			Paths:      []string{dir},
		}
		fc, err := NewBuilder().WithFileDiscovery(opts).Build()
		require.NoError(t, err)
		found, err := fc.Root().GetBool(MustPath("found"))
		require.NoError(t, err)
		assert.True(t, found)

		opts.Args = []string{"--config=" + filepath.Join(dir, "other.yaml")}
		opts.CLIFlag = "--config"
		p, _, ok := DiscoverFile(opts)
		require.True(t, ok)
		assert.Equal(t, filepath.Join(dir, "other.yaml"), p)

		t.Setenv("SVC_CONFIG", "/from/env.yaml")
		opts.Args = nil
		opts.EnvVar = "SVC_CONFIG"
		p, _, ok = DiscoverFile(opts)
		require.True(t, ok)
		assert.Equal(t, "/from/env.yaml", p)
	})
}
