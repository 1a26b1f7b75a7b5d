package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pathakanu/flowcall/internal/model"
	"github.com/pathakanu/flowcall/internal/store"
)

var (
	// ErrInvalidToken is returned for tokens that were never issued.
	ErrInvalidToken = errors.New("session: invalid token")
	// ErrExpiredToken is returned for tokens past their expiry. Expired rows
	// are rejected, not deleted.
	ErrExpiredToken = errors.New("session: expired token")
)

// Manager issues and validates opaque bearer tokens. Multiple concurrent
// sessions per user are allowed.
type Manager struct {
	users    *store.UserStore
	sessions *store.SessionStore
	ttl      time.Duration
}

// New creates a session manager with the given token lifetime.
func New(users *store.UserStore, sessions *store.SessionStore, ttl time.Duration) *Manager {
	return &Manager{users: users, sessions: sessions, ttl: ttl}
}

// Issue creates a fresh session for a user.
func (m *Manager) Issue(user *model.User) (*model.Session, error) {
	session := &model.Session{
		UserID:    user.ID,
		Token:     uuid.NewString(),
		ExpiresAt: time.Now().UTC().Add(m.ttl),
	}
	if err := m.sessions.Create(session); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return session, nil
}

// Validate resolves a token to its owning user. A session is valid iff the
// current time is before its expiry.
func (m *Manager) Validate(token string) (*model.User, error) {
	session, err := m.sessions.GetByToken(token)
	if err != nil {
		return nil, fmt.Errorf("look up session: %w", err)
	}
	if session == nil {
		return nil, ErrInvalidToken
	}
	if !time.Now().UTC().Before(session.ExpiresAt) {
		return nil, ErrExpiredToken
	}

	user, err := m.users.GetByID(session.UserID)
	if err != nil {
		return nil, fmt.Errorf("look up session user: %w", err)
	}
	if user == nil {
		return nil, ErrInvalidToken
	}
	return user, nil
}
