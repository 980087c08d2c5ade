// Package components builds heavyweight collaborators on first use and
// remembers whether construction worked.
package components

import (
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/local/resumevision/internal/result"
)

// State is the lifecycle of a lazily built component.
type State string

const (
	NotLoaded State = "not_loaded"
	Loaded    State = "loaded"
	Failed    State = "failed"
)

// Lazy constructs a T once, on the first Get. A failed construction is
// cached until Reset so callers get the same component_init error.
type Lazy[T any] struct {
	name  string
	build func() (T, error)

	mu    sync.Mutex
	value T
	state State
	err   error
}

// NewLazy wraps build under name.
func NewLazy[T any](name string, build func() (T, error)) *Lazy[T] {
	return &Lazy[T]{name: name, build: build, state: NotLoaded}
}

// Name returns the component name.
func (l *Lazy[T]) Name() string { return l.name }

// Get returns the component, building it on first call.
func (l *Lazy[T]) Get() (T, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch l.state {
	case Loaded:
		return l.value, nil
	case Failed:
		var zero T
		return zero, l.err
	}

	v, err := l.safeBuild()
	if err != nil {
		l.state = Failed
		l.err = fmt.Errorf("%w: %s: %w", result.ErrComponentInit, l.name, err)
		log.Error().Err(err).Str("component", l.name).Msg("component initialization failed")
		var zero T
		return zero, l.err
	}
	l.value = v
	l.state = Loaded
	log.Info().Str("component", l.name).Msg("component initialized")
	return v, nil
}

func (l *Lazy[T]) safeBuild() (v T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return l.build()
}

// State reports whether the component has been built.
func (l *Lazy[T]) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Reset drops the cached component, closing it when it is an io.Closer.
func (l *Lazy[T]) Reset() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var err error
	if l.state == Loaded {
		if c, ok := any(l.value).(io.Closer); ok {
			err = c.Close()
		}
	}
	var zero T
	l.value = zero
	l.state = NotLoaded
	l.err = nil
	return err
}

// Tracked is the part of a Lazy a Set needs.
type Tracked interface {
	Name() string
	State() State
	Reset() error
}

// Set groups components for status reporting and teardown.
type Set struct {
	items []Tracked
}

// NewSet creates a set over items.
func NewSet(items ...Tracked) *Set {
	return &Set{items: items}
}

// States maps each component name to its state.
func (s *Set) States() map[string]State {
	out := make(map[string]State, len(s.items))
	for _, it := range s.items {
		out[it.Name()] = it.State()
	}
	return out
}

// Names lists component names in sorted order.
func (s *Set) Names() []string {
	names := make([]string, 0, len(s.items))
	for _, it := range s.items {
		names = append(names, it.Name())
	}
	sort.Strings(names)
	return names
}

// Close resets every component, returning the first error.
func (s *Set) Close() error {
	var first error
	for _, it := range s.items {
		if err := it.Reset(); err != nil {
			log.Warn().Err(err).Str("component", it.Name()).Msg("component close failed")
			if first == nil {
				first = err
			}
		}
	}
	return first
}
