package store

import (
	"errors"

	"github.com/pathakanu/flowcall/internal/model"
	"gorm.io/gorm"
)

// SessionStore persists session records.
type SessionStore struct {
	db *gorm.DB
}

// NewSessionStore wraps a database handle.
func NewSessionStore(db *gorm.DB) *SessionStore {
	return &SessionStore{db: db}
}

// Create inserts a new session row.
func (s *SessionStore) Create(session *model.Session) error {
	return s.db.Create(session).Error
}

// GetByToken returns the session carrying a token, or nil when absent.
func (s *SessionStore) GetByToken(token string) (*model.Session, error) {
	var session model.Session
	err := s.db.Where("token = ?", token).First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}
