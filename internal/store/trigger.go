package store

import (
	"errors"
	"time"

	"github.com/pathakanu/flowcall/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TriggerStore is the durable registry of one-shot triggers. Rows created
// before a crash are still fireable after restart; the scheduler reloads from
// here on start.
type TriggerStore struct {
	db *gorm.DB
}

// NewTriggerStore wraps a database handle.
func NewTriggerStore(db *gorm.DB) *TriggerStore {
	return &TriggerStore{db: db}
}

// Put inserts or replaces the trigger for its job id.
func (s *TriggerStore) Put(trigger *model.Trigger) error {
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "job_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"fire_time", "reminder_id"}),
	}).Create(trigger).Error
}

// Get returns the trigger for a job id, or nil when absent.
func (s *TriggerStore) Get(jobID string) (*model.Trigger, error) {
	var trigger model.Trigger
	err := s.db.Where("job_id = ?", jobID).First(&trigger).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &trigger, nil
}

// Delete removes the trigger for a job id. Deleting an absent row succeeds.
func (s *TriggerStore) Delete(jobID string) error {
	return s.db.Where("job_id = ?", jobID).Delete(&model.Trigger{}).Error
}

// ListPending returns all triggers ordered by fire time, job id as tiebreak.
func (s *TriggerStore) ListPending() ([]model.Trigger, error) {
	var triggers []model.Trigger
	err := s.db.Order("fire_time ASC, job_id ASC").Find(&triggers).Error
	return triggers, err
}

// Due returns triggers whose fire time is at or before now, in the same order
// as ListPending.
func (s *TriggerStore) Due(now time.Time) ([]model.Trigger, error) {
	var triggers []model.Trigger
	err := s.db.Where("fire_time <= ?", now).
		Order("fire_time ASC, job_id ASC").
		Find(&triggers).Error
	return triggers, err
}
