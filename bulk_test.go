// FILE: lixenwraith/conftree/bulk_test.go
package conftree

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBulkUpdateAtomicity(t *testing.T) {
	root := NewNode()
	_, err := root.Set(MustPath("x"), int64(0))
	require.NoError(t, err)
	_, err = root.Set(MustPath("y"), int64(0))
	require.NoError(t, err)

	var torn atomic.Int64
	stop := make(chan struct{})
	var readers sync.WaitGroup
	for r := 0; r < 4; r++ {
		readers.Add(1)
		go func() {
			defer readers.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				err := root.BulkRead(func(v *ReadView) error {
					x, err := v.Get(MustPath("x"))
					if err != nil {
						return err
					}
					y, err := v.Get(MustPath("y"))
					if err != nil {
						return err
					}
					if x != y {
						torn.Add(1)
					}
					return nil
				})
				assert.NoError(t, err)
			}
		}()
	}

	for i := int64(1); i <= 500; i++ {
		err := root.BulkUpdate(func(v *View) error {
			if _, err := v.Set(MustPath("x"), i); err != nil {
				return err
			}
			_, err := v.Set(MustPath("y"), i)
			return err
		})
		require.NoError(t, err)
	}
	close(stop)
	readers.Wait()

	assert.Zero(t, torn.Load(), "readers observed x and y from different updates")
}

func TestBulkScopeEnforcement(t *testing.T) {
	root := NewNode()
	_, err := root.Set(MustPath("a"), 1)
	require.NoError(t, err)

	t.Run("WriteInsideBulkUpdate", func(t *testing.T) {
		err := root.BulkUpdate(func(v *View) error {
			_, err := root.Set(MustPath("a"), 2)
			return err
		})
		assert.ErrorIs(t, err, ErrScope)
	})

	t.Run("ReadInsideBulkUpdate", func(t *testing.T) {
		err := root.BulkUpdate(func(v *View) error {
			_, err := root.Get(MustPath("a"))
			return err
		})
		assert.ErrorIs(t, err, ErrScope)
	})

	t.Run("NestedWriteInsideBulkRead", func(t *testing.T) {
		_, err := root.Set(MustPath("nested.b"), 1)
		require.NoError(t, err)
		err = root.BulkRead(func(v *ReadView) error {
			_, err := root.Set(MustPath("nested.b"), 2)
			return err
		})
		assert.ErrorIs(t, err, ErrScope)
		got, err := root.Get(MustPath("nested.b"))
		require.NoError(t, err)
		assert.Equal(t, 1, got)
		_, err = root.Remove(MustPath("nested"))
		require.NoError(t, err)
	})

	t.Run("UnrelatedWriteInsideBulkRead", func(t *testing.T) {
		other := NewNode()
		err := root.BulkRead(func(v *ReadView) error {
			_, err := other.Set(MustPath("x"), 1)
			return err
		})
		assert.ErrorIs(t, err, ErrScope)
	})

	t.Run("WriteInsideBulkRead", func(t *testing.T) {
		err := root.BulkRead(func(v *ReadView) error {
			_, err := root.Set(MustPath("a"), 2)
			return err
		})
		assert.ErrorIs(t, err, ErrScope)
	})

	t.Run("NestedBulk", func(t *testing.T) {
		other := NewNode()
		err := root.BulkRead(func(v *ReadView) error {
			return other.BulkUpdate(func(*View) error { return nil })
		})
		assert.ErrorIs(t, err, ErrNestedBulk)
	})

	t.Run("ForEachInsideBulk", func(t *testing.T) {
		err := root.BulkRead(func(v *ReadView) error {
			return root.ForEach(func(*ScopedEntry) error { return nil })
		})
		assert.ErrorIs(t, err, ErrScope)
	})

	t.Run("ReplaceInsideBulk", func(t *testing.T) {
		err := root.BulkUpdate(func(v *View) error {
			return root.ReplaceContentBy(NewAccumulator())
		})
		assert.ErrorIs(t, err, ErrScope)
		v, err := root.Get(MustPath("a"))
		require.NoError(t, err)
		assert.Equal(t, 1, v)
	})

	t.Run("StateRestored", func(t *testing.T) {
		_, err := root.Set(MustPath("a"), 3)
		assert.NoError(t, err)
	})
}

func TestBulkViewExpires(t *testing.T) {
	root := NewNode()
	var leaked *View
	err := root.BulkUpdate(func(v *View) error {
		leaked = v
		_, err := v.Set(MustPath("a.b"), 1)
		return err
	})
	require.NoError(t, err)

	_, err = leaked.Get(MustPath("a.b"))
	assert.ErrorIs(t, err, ErrViewExpired)
	_, err = leaked.Set(MustPath("a.b"), 2)
	assert.ErrorIs(t, err, ErrViewExpired)
	_, err = leaked.Size()
	assert.ErrorIs(t, err, ErrViewExpired)
}

func TestBulkViewOperations(t *testing.T) {
	root := NewNode()
	err := root.BulkUpdate(func(v *View) error {
		if _, err := v.Set(MustPath("db.host"), "localhost"); err != nil {
			return err
		}
		if _, err := v.SetComment(MustPath("db.host"), "database host"); err != nil {
			return err
		}
		added, err := v.Add(MustPath("db.port"), int64(5432))
		if err != nil {
			return err
		}
		assert.True(t, added)
		n, err := v.NewNode()
		if err != nil {
			return err
		}
		// Writes outside the view are rejected inside the callback
		_, err = n.Set(MustPath("enabled"), true)
		assert.ErrorIs(t, err, ErrScope)
		if _, err := v.Set(MustPath("cache"), n); err != nil {
			return err
		}
		if _, err := v.Set(MustPath("cache.enabled"), true); err != nil {
			return err
		}
		size, err := v.Size()
		assert.NoError(t, err)
		assert.Equal(t, 2, size)
		return nil
	})
	require.NoError(t, err)

	keys, err := BulkReadValue(root, func(v *ReadView) ([]string, error) {
		return v.Keys()
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"cache", "db"}, keys)

	c, err := root.Comment(MustPath("db.host"))
	require.NoError(t, err)
	assert.Equal(t, "database host", c)

	enabled, err := root.Get(MustPath("cache.enabled"))
	require.NoError(t, err)
	assert.Equal(t, true, enabled)

	count, err := BulkUpdateValue(root, func(v *View) (int, error) {
		if err := v.Clear(); err != nil {
			return 0, err
		}
		return v.Size()
	})
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestBulkReleasesOnErrorAndPanic(t *testing.T) {
	root := NewNode()
	boom := errors.New("boom")

	err := root.BulkUpdate(func(v *View) error { return boom })
	assert.ErrorIs(t, err, boom)

	assert.Panics(t, func() {
		_ = root.BulkUpdate(func(v *View) error { panic("callback panic") })
	})

	// Lock and operation state are both released
	_, err = root.Set(MustPath("after"), 1)
	assert.NoError(t, err)
	err = root.BulkRead(func(*ReadView) error { return nil })
	assert.NoError(t, err)
}

func TestBulkOnDisjointNodesIsConcurrent(t *testing.T) {
	left, right := NewNode(), NewNode()
	inLeft := make(chan struct{})
	release := make(chan struct{})

	done := make(chan error, 1)
	go func() {
		done <- left.BulkUpdate(func(v *View) error {
			close(inLeft)
			<-release
			_, err := v.Set(MustPath("k"), 1)
			return err
		})
	}()

	<-inLeft
	_, err := right.Set(MustPath("k"), 2)
	require.NoError(t, err)
	close(release)
	require.NoError(t, <-done)
}
