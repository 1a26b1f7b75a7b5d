package model

import (
	"fmt"
	"time"
)

// Status is the lifecycle state of a scheduled reminder.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// User is created on first sign-in by phone number and never mutated after.
type User struct {
	ID          uint   `gorm:"primaryKey"`
	PhoneNumber string `gorm:"uniqueIndex;not null"`
}

// Session is an opaque bearer token with an expiry. A user may hold several
// concurrent sessions; expired rows are rejected on validation, not deleted.
type Session struct {
	ID        uint      `gorm:"primaryKey"`
	UserID    uint      `gorm:"index;not null"`
	Token     string    `gorm:"uniqueIndex;not null"`
	ExpiresAt time.Time `gorm:"not null"`
}

// Reminder represents a future outbound call for a user. A reminder without a
// ScheduledTime has no trigger and its status never transitions.
type Reminder struct {
	ID            uint       `gorm:"primaryKey"`
	UserID        uint       `gorm:"index;not null"`
	Title         string     `gorm:"type:text;not null"`
	Description   string     `gorm:"type:text"`
	PhoneToCall   string     `gorm:"not null"`
	ScheduledTime *time.Time
	Status        Status    `gorm:"index;not null;default:pending"`
	CreatedAt     time.Time `gorm:"autoCreateTime"`
}

// Trigger is a durable one-shot wake-up: fire at FireTime, hand ReminderID to
// the execution callback. At most one trigger exists per reminder, keyed by
// the derived job id.
type Trigger struct {
	JobID      string    `gorm:"primaryKey"`
	FireTime   time.Time `gorm:"index;not null"`
	ReminderID uint      `gorm:"not null"`
}

// JobID derives the trigger key for a reminder. The mapping is deterministic
// so the link between a reminder and its trigger survives restarts without an
// auxiliary index.
func JobID(reminderID uint) string {
	return fmt.Sprintf("reminder_%d", reminderID)
}
