package reminder

import (
	"errors"
	"fmt"
	"time"

	"github.com/pathakanu/flowcall/internal/model"
	"github.com/pathakanu/flowcall/internal/scheduler"
)

// StartReconciler registers the periodic reconciliation pass and starts the
// cron loop.
func (m *Manager) StartReconciler(interval time.Duration) error {
	_, err := m.cron.AddFunc(fmt.Sprintf("@every %s", interval), func() {
		m.reconcile()
	})
	if err != nil {
		return err
	}
	m.cron.Start()
	return nil
}

// StopReconciler stops the cron loop and waits for a running pass to finish.
func (m *Manager) StopReconciler() {
	ctx := m.cron.Stop()
	<-ctx.Done()
}

// reconcile repairs drift between the reminder table and the trigger
// registry: triggers whose reminder is gone are removed, and pending
// reminders with a future scheduled time but no trigger get one registered
// again. Both sides can drift after a crash between the two writes of a
// lifecycle operation.
func (m *Manager) reconcile() {
	triggers, err := m.sched.Pending()
	if err != nil {
		m.logger.Printf("reconcile: list triggers: %v", err)
		return
	}

	known := make(map[string]struct{}, len(triggers))
	for _, trigger := range triggers {
		known[trigger.JobID] = struct{}{}

		reminder, err := m.reminders.GetByID(trigger.ReminderID)
		if err != nil {
			m.logger.Printf("reconcile: load reminder %d: %v", trigger.ReminderID, err)
			continue
		}
		if reminder != nil {
			continue
		}
		if err := m.sched.Remove(trigger.JobID); err != nil {
			m.logger.Printf("reconcile: drop orphaned trigger %s: %v", trigger.JobID, err)
			continue
		}
		m.logger.Printf("reconcile: dropped orphaned trigger %s", trigger.JobID)
	}

	pending, err := m.reminders.ListScheduledPending()
	if err != nil {
		m.logger.Printf("reconcile: list pending reminders: %v", err)
		return
	}

	now := time.Now().UTC()
	for _, reminder := range pending {
		jobID := model.JobID(reminder.ID)
		if _, ok := known[jobID]; ok {
			continue
		}
		if !reminder.ScheduledTime.After(now) {
			continue
		}
		err := m.sched.Add(jobID, *reminder.ScheduledTime, reminder.ID)
		if err != nil && !errors.Is(err, scheduler.ErrDuplicateJob) {
			m.logger.Printf("reconcile: restore trigger %s: %v", jobID, err)
			continue
		}
		if err == nil {
			m.logger.Printf("reconcile: restored trigger %s", jobID)
		}
	}
}
