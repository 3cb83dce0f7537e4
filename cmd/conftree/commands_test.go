// FILE: lixenwraith/conftree/cmd/conftree/commands_test.go
package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pkt.systems/pslog"

	"github.com/lixenwraith/conftree"
)

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCommand(pslog.NoopLogger())
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestSetThenGet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.yaml")

	_, err := runCommand(t, "set", path, "server.port", "8080", "--comment", "listening port")
	require.NoError(t, err)

	out, err := runCommand(t, "get", path, "server.port")
	require.NoError(t, err)
	assert.Equal(t, "8080\n", out)

	out, err = runCommand(t, "get", "--comment", path, "server.port")
	require.NoError(t, err)
	assert.Equal(t, "# listening port\n8080\n", out)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "# listening port")
}

func TestSetRawKeepsString(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.json")

	_, err := runCommand(t, "set", "--raw", path, "version", "1")
	require.NoError(t, err)

	fc := conftree.NewFileConfig(path, conftree.DefaultFileOptions())
	require.NoError(t, fc.Load())
	v, err := fc.Root().Get(conftree.MustPath("version"))
	require.NoError(t, err)
	assert.Equal(t, "1", v)
}

func TestDumpConvertsFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.toml")
	require.NoError(t, os.WriteFile(path, []byte("[server]\nhost = \"localhost\"\nport = 8080\n"), 0644))

	out, err := runCommand(t, "dump", "-o", "json", path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"server":{"host":"localhost","port":8080}}`, out)
}

func TestGetMissingPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.toml")
	require.NoError(t, os.WriteFile(path, []byte("a = 1\n"), 0644))

	_, err := runCommand(t, "get", path, "b")
	assert.ErrorIs(t, err, conftree.ErrNotFound)
}

func TestInvalidFlags(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.toml")

	_, err := runCommand(t, "--format", "ini", "get", path, "a")
	assert.ErrorIs(t, err, conftree.ErrUnknownFormat)

	_, err = runCommand(t, "--max-file-size", "lots", "get", path, "a")
	assert.Error(t, err)
}

func TestParseValue(t *testing.T) {
	tests := []struct {
		in   string
		want any
	}{
		{"true", true},
		{"42", int64(42)},
		{"1.5", 1.5},
		{"null", conftree.Null},
		{`"42"`, "42"},
		{"hello", "hello"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, parseValue(tt.in))
		})
	}
}
