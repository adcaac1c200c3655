// Package session tracks which principals currently hold an active session.
// A principal may have several sessions at once; it stays active until the
// last one is unregistered.
package session

import (
	"slices"
	"strings"
	"sync"
	"time"
)

type entry struct {
	sessions int
	since    time.Time
}

type Registry struct {
	mu    sync.RWMutex
	users map[string]*entry
	now   func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{users: make(map[string]*entry), now: time.Now}
}

// Register records a new session for name and returns its session count.
func (r *Registry) Register(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.users[name]
	if !ok {
		e = &entry{since: r.now()}
		r.users[name] = e
	}
	e.sessions++
	return e.sessions
}

// Unregister ends one session for name. It reports whether name is no
// longer active; unknown names report false.
func (r *Registry) Unregister(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.users[name]
	if !ok {
		return false
	}
	e.sessions--
	if e.sessions > 0 {
		return false
	}
	delete(r.users, name)
	return true
}

func (r *Registry) IsActive(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.users[name]
	return ok
}

// ActiveSession describes one active principal.
type ActiveSession struct {
	Name     string    `json:"name"`
	Sessions int       `json:"sessions"`
	Since    time.Time `json:"since"`
}

// Active lists active principals sorted by name.
func (r *Registry) Active() []ActiveSession {
	r.mu.RLock()
	out := make([]ActiveSession, 0, len(r.users))
	for name, e := range r.users {
		out = append(out, ActiveSession{Name: name, Sessions: e.sessions, Since: e.since})
	}
	r.mu.RUnlock()

	slices.SortFunc(out, func(a, b ActiveSession) int { return strings.Compare(a.Name, b.Name) })
	return out
}
