package store

import (
	"errors"

	"github.com/pathakanu/flowcall/internal/model"
	"gorm.io/gorm"
)

// UserStore persists user records.
type UserStore struct {
	db *gorm.DB
}

// NewUserStore wraps a database handle.
func NewUserStore(db *gorm.DB) *UserStore {
	return &UserStore{db: db}
}

// FindOrCreateByPhone returns the user for a phone number, creating it on
// first sign-in.
func (s *UserStore) FindOrCreateByPhone(phoneNumber string) (*model.User, error) {
	var user model.User
	err := s.db.Where("phone_number = ?", phoneNumber).First(&user).Error
	if err == nil {
		return &user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	user = model.User{PhoneNumber: phoneNumber}
	if err := s.db.Create(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// GetByID returns a user, or nil when absent.
func (s *UserStore) GetByID(id uint) (*model.User, error) {
	var user model.User
	err := s.db.First(&user, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}
