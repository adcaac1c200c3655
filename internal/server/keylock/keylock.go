// Package keylock provides a table of mutexes addressed by string keys.
// Entries are created on first use and removed once no goroutine holds or
// waits for them, so the table only grows with concurrent activity.
package keylock

import "sync"

type entry struct {
	mu   sync.Mutex
	refs int
}

// Table is safe for concurrent use. The zero value is ready to use.
type Table struct {
	mu      sync.Mutex
	entries map[string]*entry
}

func New() *Table {
	return &Table{entries: make(map[string]*entry)}
}

// Lock blocks until the lock for key is held and returns the function that
// releases it. The returned function must be called exactly once.
func (t *Table) Lock(key string) (unlock func()) {
	t.mu.Lock()
	if t.entries == nil {
		t.entries = make(map[string]*entry)
	}
	e, ok := t.entries[key]
	if !ok {
		e = &entry{}
		t.entries[key] = e
	}
	e.refs++
	t.mu.Unlock()

	e.mu.Lock()

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Unlock()

			t.mu.Lock()
			e.refs--
			if e.refs == 0 {
				delete(t.entries, key)
			}
			t.mu.Unlock()
		})
	}
}

// Len returns the number of keys currently held or awaited.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// FileKey builds the lock key for a logical file.
func FileKey(directoryID, filename string) string {
	return directoryID + "/" + filename
}
