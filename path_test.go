// FILE: lixenwraith/conftree/path_test.go
package conftree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePath(t *testing.T) {
	p, err := ParsePath("server.http.port")
	require.NoError(t, err)
	assert.Equal(t, Path{"server", "http", "port"}, p)
	assert.Equal(t, "server.http.port", p.String())
	assert.Equal(t, "port", p.Last())
	assert.Equal(t, Path{"server", "http"}, p.Parent())

	_, err = ParsePath("")
	assert.ErrorIs(t, err, ErrEmptyPath)

	_, err = ParsePath("a..b")
	assert.ErrorIs(t, err, ErrInvalidPath)

	assert.Panics(t, func() { MustPath("a.") })
}

func TestPathAppendDoesNotAlias(t *testing.T) {
	base := make(Path, 1, 4)
	base[0] = "a"
	p1 := base.Append("b")
	p2 := base.Append("c")
	assert.Equal(t, Path{"a", "b"}, p1)
	assert.Equal(t, Path{"a", "c"}, p2)

	var empty Path
	assert.Equal(t, "", empty.Last())
	assert.Nil(t, empty.Parent())
}
