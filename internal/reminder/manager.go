package reminder

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/pathakanu/flowcall/internal/model"
	"github.com/pathakanu/flowcall/internal/scheduler"
	"github.com/pathakanu/flowcall/internal/store"
	"github.com/robfig/cron/v3"
)

// CallGateway places the outbound phone call for a fired reminder. It is a
// remote boundary: possibly slow, possibly failing, and its errors map to the
// failed status rather than propagating.
type CallGateway interface {
	PlaceCall(to, title, description string) (string, error)
}

// Manager coordinates reminder records with their triggers. Every public
// operation keeps the pair consistent: a scheduled pending reminder always
// has exactly one trigger, addressed by the job id derived from its id.
type Manager struct {
	reminders *store.ReminderStore
	users     *store.UserStore
	sched     *scheduler.Runtime
	gateway   CallGateway
	cron      *cron.Cron
	logger    *log.Logger
}

// New creates a fully configured Manager instance.
func New(reminders *store.ReminderStore, users *store.UserStore, sched *scheduler.Runtime, gateway CallGateway, location *time.Location, logger *log.Logger) *Manager {
	return &Manager{
		reminders: reminders,
		users:     users,
		sched:     sched,
		gateway:   gateway,
		cron:      cron.New(cron.WithLocation(location)),
		logger:    logger,
	}
}

// CreateInput carries the fields of a new reminder. ScheduledTime may be nil
// for an unscheduled reminder.
type CreateInput struct {
	Title         string
	Description   string
	PhoneToCall   string
	ScheduledTime *time.Time
}

// UpdateInput carries partial changes; nil fields are left untouched.
type UpdateInput struct {
	Title         *string
	Description   *string
	PhoneToCall   *string
	ScheduledTime *time.Time
}

// Create validates and persists a reminder and, when it carries a scheduled
// time, registers its trigger. If trigger registration fails the reminder row
// is rolled back so no record is left pending without a trigger.
func (m *Manager) Create(user *model.User, in CreateInput) (*model.Reminder, error) {
	if strings.TrimSpace(in.Title) == "" {
		return nil, &ValidationError{Field: "title", Reason: "must not be empty"}
	}
	if strings.TrimSpace(in.PhoneToCall) == "" {
		return nil, &ValidationError{Field: "phone_to_call", Reason: "must not be empty"}
	}
	scheduled, err := futureUTC(in.ScheduledTime)
	if err != nil {
		return nil, err
	}

	owner, err := m.users.GetByID(user.ID)
	if err != nil {
		return nil, fmt.Errorf("look up user: %w", err)
	}
	if owner == nil {
		return nil, &ValidationError{Field: "user", Reason: "unknown user"}
	}

	reminder := &model.Reminder{
		UserID:        user.ID,
		Title:         in.Title,
		Description:   in.Description,
		PhoneToCall:   in.PhoneToCall,
		ScheduledTime: scheduled,
		Status:        model.StatusPending,
	}
	if err := m.reminders.Create(reminder); err != nil {
		return nil, fmt.Errorf("create reminder: %w", err)
	}

	if scheduled != nil {
		if err := m.sched.Add(model.JobID(reminder.ID), *scheduled, reminder.ID); err != nil {
			if _, rollbackErr := m.reminders.Delete(user.ID, reminder.ID); rollbackErr != nil {
				m.logger.Printf("reminder %d: rollback after scheduling failure: %v", reminder.ID, rollbackErr)
			}
			return nil, fmt.Errorf("schedule reminder %d: %w", reminder.ID, err)
		}
	}
	return reminder, nil
}

// Update applies partial changes to an owned reminder. A new scheduled time
// must be in the future; it reschedules the live trigger, or registers a
// fresh one when the old trigger has already fired, and forces the status
// back to pending so a completed or failed reminder re-enters the schedule.
func (m *Manager) Update(user *model.User, id uint, in UpdateInput) (*model.Reminder, error) {
	reminder, err := m.reminders.GetOwned(user.ID, id)
	if err != nil {
		return nil, fmt.Errorf("look up reminder %d: %w", id, err)
	}
	if reminder == nil {
		return nil, ErrNotFound
	}

	scheduled, err := futureUTC(in.ScheduledTime)
	if err != nil {
		return nil, err
	}

	prev := *reminder
	if in.Title != nil {
		if strings.TrimSpace(*in.Title) == "" {
			return nil, &ValidationError{Field: "title", Reason: "must not be empty"}
		}
		reminder.Title = *in.Title
	}
	if in.Description != nil {
		reminder.Description = *in.Description
	}
	if in.PhoneToCall != nil {
		if strings.TrimSpace(*in.PhoneToCall) == "" {
			return nil, &ValidationError{Field: "phone_to_call", Reason: "must not be empty"}
		}
		reminder.PhoneToCall = *in.PhoneToCall
	}
	if scheduled != nil {
		reminder.ScheduledTime = scheduled
		reminder.Status = model.StatusPending
	}

	if err := m.reminders.Save(reminder); err != nil {
		return nil, fmt.Errorf("update reminder %d: %w", id, err)
	}

	if scheduled != nil {
		jobID := model.JobID(reminder.ID)
		err := m.sched.Reschedule(jobID, *scheduled)
		if errors.Is(err, scheduler.ErrJobNotFound) {
			err = m.sched.Add(jobID, *scheduled, reminder.ID)
		}
		if err != nil {
			if rollbackErr := m.reminders.Save(&prev); rollbackErr != nil {
				m.logger.Printf("reminder %d: rollback after scheduling failure: %v", id, rollbackErr)
			}
			return nil, fmt.Errorf("reschedule reminder %d: %w", id, err)
		}
	}
	return reminder, nil
}

// Delete removes an owned reminder and cancels its trigger. The cancel side
// is idempotent; a missing trigger is not an error.
func (m *Manager) Delete(user *model.User, id uint) error {
	found, err := m.reminders.Delete(user.ID, id)
	if err != nil {
		return fmt.Errorf("delete reminder %d: %w", id, err)
	}
	if !found {
		return ErrNotFound
	}

	if err := m.sched.Remove(model.JobID(id)); err != nil {
		return fmt.Errorf("cancel trigger for reminder %d: %w", id, err)
	}
	return nil
}

// List returns the user's reminders with optional search, status, and
// pagination filters. No scheduling side effects.
func (m *Manager) List(user *model.User, filter store.ListFilter) ([]model.Reminder, error) {
	return m.reminders.List(user.ID, filter)
}

// Execute is the trigger-fired callback. It places the call and records the
// terminal status of this firing; it never propagates an error back into the
// dispatch loop. A firing for a deleted reminder or user is a benign race and
// is only logged.
func (m *Manager) Execute(reminderID uint) {
	reminder, err := m.reminders.GetByID(reminderID)
	if err != nil {
		m.logger.Printf("execute reminder %d: load: %v", reminderID, err)
		return
	}
	if reminder == nil {
		m.logger.Printf("execute reminder %d: already deleted, skipping", reminderID)
		return
	}

	owner, err := m.users.GetByID(reminder.UserID)
	if err != nil {
		m.logger.Printf("execute reminder %d: load user %d: %v", reminderID, reminder.UserID, err)
		return
	}
	if owner == nil {
		m.logger.Printf("execute reminder %d: user %d missing, skipping", reminderID, reminder.UserID)
		return
	}

	callSID, err := m.gateway.PlaceCall(reminder.PhoneToCall, reminder.Title, reminder.Description)
	status := model.StatusCompleted
	if err != nil {
		status = model.StatusFailed
		m.logger.Printf("execute reminder %d: place call: %v", reminderID, err)
	} else {
		m.logger.Printf("execute reminder %d: call placed, SID %s", reminderID, callSID)
	}

	if err := m.reminders.UpdateStatus(reminderID, status); err != nil {
		m.logger.Printf("execute reminder %d: record status %s: %v", reminderID, status, err)
	}
}

// futureUTC normalises a scheduled time to UTC and rejects values not
// strictly in the future. All comparisons happen in UTC; RFC 3339 inputs
// always carry an offset so there is no naive-time ambiguity.
func futureUTC(t *time.Time) (*time.Time, error) {
	if t == nil {
		return nil, nil
	}
	utc := t.UTC()
	if !utc.After(time.Now().UTC()) {
		return nil, &ValidationError{Field: "scheduled_time", Reason: "must be in the future"}
	}
	return &utc, nil
}
