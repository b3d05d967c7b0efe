// Package handle maps opaque integer handles to Go values so they can cross
// a C boundary without exposing Go pointers.
package handle

import "sync"

// Table hands out non-zero handles. Unknown or released handles are
// reported through the ok result, never by panicking. The zero value is
// ready to use.
type Table[T any] struct {
	mu    sync.Mutex
	next  uintptr
	items map[uintptr]T
}

// Put stores v and returns its handle. Handles are never reused.
func (t *Table[T]) Put(v T) uintptr {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.items == nil {
		t.items = make(map[uintptr]T)
	}
	t.next++
	t.items[t.next] = v
	return t.next
}

// Get returns the value for h.
func (t *Table[T]) Get(h uintptr) (T, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	v, ok := t.items[h]
	return v, ok
}

// Delete removes h and returns the value it referred to.
func (t *Table[T]) Delete(h uintptr) (T, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	v, ok := t.items[h]
	if ok {
		delete(t.items, h)
	}
	return v, ok
}

// Len returns the number of live handles.
func (t *Table[T]) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.items)
}
