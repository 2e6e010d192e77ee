package searchview

import (
	"slices"
	"sync"
)

// MultiSelect holds an ordered selection drawn from a fixed option list.
// Selection order is kept; OnChange listeners see a copy after every change.
type MultiSelect[T comparable] struct {
	mu        sync.Mutex
	options   []T
	selected  []T
	listeners []func([]T)
}

func NewMultiSelect[T comparable](options []T) *MultiSelect[T] {
	return &MultiSelect[T]{options: slices.Clone(options), selected: []T{}}
}

func (m *MultiSelect[T]) Options() []T {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.options)
}

// Selected never returns nil.
func (m *MultiSelect[T]) Selected() []T {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.selected)
}

func (m *MultiSelect[T]) OnChange(fn func([]T)) {
	if fn == nil {
		return
	}
	m.mu.Lock()
	m.listeners = append(m.listeners, fn)
	m.mu.Unlock()
}

// Select appends v. Unknown or already selected values are ignored.
func (m *MultiSelect[T]) Select(v T) bool {
	m.mu.Lock()
	if !slices.Contains(m.options, v) || slices.Contains(m.selected, v) {
		m.mu.Unlock()
		return false
	}
	m.selected = append(m.selected, v)
	m.notifyLocked()
	return true
}

func (m *MultiSelect[T]) Deselect(v T) bool {
	m.mu.Lock()
	i := slices.Index(m.selected, v)
	if i < 0 {
		m.mu.Unlock()
		return false
	}
	m.selected = slices.Delete(m.selected, i, i+1)
	m.notifyLocked()
	return true
}

func (m *MultiSelect[T]) Toggle(v T) {
	if !m.Select(v) {
		m.Deselect(v)
	}
}

// Set replaces the selection, dropping unknown values and duplicates.
func (m *MultiSelect[T]) Set(vs []T) {
	m.mu.Lock()
	next := make([]T, 0, len(vs))
	for _, v := range vs {
		if slices.Contains(m.options, v) && !slices.Contains(next, v) {
			next = append(next, v)
		}
	}
	m.selected = next
	m.notifyLocked()
}

func (m *MultiSelect[T]) Clear() { m.Set(nil) }

// releases m.mu before calling listeners
func (m *MultiSelect[T]) notifyLocked() {
	sel := slices.Clone(m.selected)
	ls := slices.Clone(m.listeners)
	m.mu.Unlock()
	for _, fn := range ls {
		fn(slices.Clone(sel))
	}
}
