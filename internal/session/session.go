// Package session carries the authenticated user through a request and
// tracks per-principal session lifecycle for long-lived clients.
package session

import (
	"context"
	"sync"
)

// Session identifies who is acting. A nil UserID means unauthenticated.
type Session struct {
	UserID *uint
}

// Authenticated reports whether the session has an owner.
func (s Session) Authenticated() bool {
	return s.UserID != nil
}

// OwnerFilter returns the owner id used to scope task visibility.
func (s Session) OwnerFilter() *uint {
	if s.UserID == nil {
		return nil
	}
	id := *s.UserID
	return &id
}

type ctxKey struct{}

// WithContext stores s in ctx.
func WithContext(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

// FromContext returns the session stored in ctx, or the unauthenticated session.
func FromContext(ctx context.Context) Session {
	if s, ok := ctx.Value(ctxKey{}).(Session); ok {
		return s
	}
	return Session{}
}

// ForUser is a shorthand for an established session.
func ForUser(userID uint) Session {
	return Session{UserID: &userID}
}

// EventKind describes a session transition.
type EventKind int

const (
	Established EventKind = iota + 1
	Cleared
)

func (k EventKind) String() string {
	switch k {
	case Established:
		return "established"
	case Cleared:
		return "cleared"
	default:
		return "unknown"
	}
}

// Event is delivered to subscribers on every transition.
type Event struct {
	Principal int64
	Kind      EventKind
	UserID    uint
}

// Manager keeps the current session of each principal (a chat user id).
type Manager struct {
	mu          sync.Mutex
	sessions    map[int64]uint
	subscribers []func(Event)
}

func NewManager() *Manager {
	return &Manager{sessions: make(map[int64]uint)}
}

// Establish binds principal to userID. Re-establishing the same binding does not notify.
func (m *Manager) Establish(principal int64, userID uint) {
	m.mu.Lock()
	prev, ok := m.sessions[principal]
	m.sessions[principal] = userID
	subs := m.subscribers
	m.mu.Unlock()

	if ok && prev == userID {
		return
	}
	notify(subs, Event{Principal: principal, Kind: Established, UserID: userID})
}

// Clear ends the session of principal. Clearing an absent session is a no-op.
func (m *Manager) Clear(principal int64) {
	m.mu.Lock()
	userID, ok := m.sessions[principal]
	delete(m.sessions, principal)
	subs := m.subscribers
	m.mu.Unlock()

	if !ok {
		return
	}
	notify(subs, Event{Principal: principal, Kind: Cleared, UserID: userID})
}

// Current returns the user bound to principal.
func (m *Manager) Current(principal int64) (*uint, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	userID, ok := m.sessions[principal]
	if !ok {
		return nil, false
	}
	return &userID, true
}

// Session returns the Session value for principal.
func (m *Manager) Session(principal int64) Session {
	userID, _ := m.Current(principal)
	return Session{UserID: userID}
}

// Subscribe registers fn for session change notifications. Callbacks run
// synchronously on the goroutine that caused the transition.
func (m *Manager) Subscribe(fn func(Event)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscribers = append(m.subscribers, fn)
}

func notify(subs []func(Event), ev Event) {
	for _, fn := range subs {
		fn(ev)
	}
}
