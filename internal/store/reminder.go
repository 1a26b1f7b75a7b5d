package store

import (
	"errors"
	"strings"

	"github.com/pathakanu/flowcall/internal/model"
	"gorm.io/gorm"
)

// ReminderStore persists reminder records.
type ReminderStore struct {
	db *gorm.DB
}

// NewReminderStore wraps a database handle.
func NewReminderStore(db *gorm.DB) *ReminderStore {
	return &ReminderStore{db: db}
}

// ListFilter narrows a List query. Zero values mean "no constraint"; Limit
// defaults to everything.
type ListFilter struct {
	Search string
	Status model.Status
	Limit  int
	Offset int
}

// Create inserts a new reminder row.
func (s *ReminderStore) Create(reminder *model.Reminder) error {
	return s.db.Create(reminder).Error
}

// Save writes back all fields of an existing reminder.
func (s *ReminderStore) Save(reminder *model.Reminder) error {
	return s.db.Save(reminder).Error
}

// GetByID returns a reminder regardless of owner, or nil when absent. Used by
// the execution callback, which has no acting user.
func (s *ReminderStore) GetByID(id uint) (*model.Reminder, error) {
	var reminder model.Reminder
	err := s.db.First(&reminder, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &reminder, nil
}

// GetOwned returns the reminder only when it belongs to userID, nil otherwise.
func (s *ReminderStore) GetOwned(userID, id uint) (*model.Reminder, error) {
	var reminder model.Reminder
	err := s.db.Where("id = ? AND user_id = ?", id, userID).First(&reminder).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &reminder, nil
}

// Delete removes an owned reminder and reports whether a row existed.
func (s *ReminderStore) Delete(userID, id uint) (bool, error) {
	result := s.db.Where("id = ? AND user_id = ?", id, userID).Delete(&model.Reminder{})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// UpdateStatus sets only the status column of a reminder.
func (s *ReminderStore) UpdateStatus(id uint, status model.Status) error {
	return s.db.Model(&model.Reminder{}).Where("id = ?", id).
		Update("status", status).Error
}

// List returns a user's reminders, newest scheduled first, filtered by an
// optional case-insensitive search over title and description, a status, and
// limit/offset pagination.
func (s *ReminderStore) List(userID uint, filter ListFilter) ([]model.Reminder, error) {
	query := s.db.Where("user_id = ?", userID)

	if search := strings.TrimSpace(filter.Search); search != "" {
		pattern := "%" + strings.ToLower(search) + "%"
		query = query.Where("LOWER(title) LIKE ? OR LOWER(description) LIKE ?", pattern, pattern)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	var reminders []model.Reminder
	err := query.Order("scheduled_time DESC, created_at ASC").Find(&reminders).Error
	return reminders, err
}

// ListScheduledPending returns every pending reminder that carries a
// scheduled time. The reconciler uses it to find records whose trigger went
// missing.
func (s *ReminderStore) ListScheduledPending() ([]model.Reminder, error) {
	var reminders []model.Reminder
	err := s.db.Where("status = ? AND scheduled_time IS NOT NULL", model.StatusPending).
		Find(&reminders).Error
	return reminders, err
}
