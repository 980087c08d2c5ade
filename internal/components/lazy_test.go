package components

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/local/resumevision/internal/result"
)

type closer struct{ closed bool }

func (c *closer) Close() error { c.closed = true; return nil }

func TestLazy_BuildsOnce(t *testing.T) {
	var calls atomic.Int32
	l := NewLazy("converter", func() (*closer, error) {
		calls.Add(1)
		return &closer{}, nil
	})
	assert.Equal(t, NotLoaded, l.State())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := l.Get()
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, Loaded, l.State())

	c, err := l.Get()
	require.NoError(t, err)
	require.NoError(t, l.Reset())
	assert.True(t, c.closed)
	assert.Equal(t, NotLoaded, l.State())
}

func TestLazy_FailureIsCached(t *testing.T) {
	var calls int
	l := NewLazy("exporter", func() (int, error) {
		calls++
		return 0, errors.New("chromium missing")
	})

	_, err := l.Get()
	require.Error(t, err)
	assert.Equal(t, result.KindComponentInit, result.Classify(err))
	assert.Contains(t, err.Error(), "exporter")

	_, err = l.Get()
	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, Failed, l.State())

	require.NoError(t, l.Reset())
	_, _ = l.Get()
	assert.Equal(t, 2, calls)
}

func TestLazy_RecoversPanic(t *testing.T) {
	l := NewLazy("templates", func() (string, error) { panic("boom") })
	_, err := l.Get()
	require.Error(t, err)
	assert.Equal(t, result.KindComponentInit, result.Classify(err))
	assert.Contains(t, err.Error(), "boom")
}

func TestSet(t *testing.T) {
	a := NewLazy("b_component", func() (int, error) { return 1, nil })
	b := NewLazy("a_component", func() (int, error) { return 0, errors.New("x") })
	s := NewSet(a, b)

	_, _ = a.Get()
	_, _ = b.Get()
	assert.Equal(t, map[string]State{"b_component": Loaded, "a_component": Failed}, s.States())
	assert.Equal(t, []string{"a_component", "b_component"}, s.Names())

	require.NoError(t, s.Close())
	assert.Equal(t, NotLoaded, a.State())
}
