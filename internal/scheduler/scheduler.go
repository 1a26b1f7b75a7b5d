package scheduler

import (
	"log"
	"sync"
	"time"

	"github.com/pathakanu/flowcall/internal/model"
	"github.com/pathakanu/flowcall/internal/store"
)

// Handler receives the payload of a fired trigger. It runs on its own
// goroutine so a slow handler cannot delay other due triggers.
type Handler func(reminderID uint)

// retryInterval is how long the loop waits before re-reading the trigger
// store after a read failure.
const retryInterval = time.Second

// Runtime is the single background dispatcher for one-shot triggers. Triggers
// live in the durable TriggerStore; the loop sleeps until the earliest fire
// time or until a mutation invalidates the sleep, then pops every due trigger
// in ascending (fire_time, job_id) order. A trigger is deleted from the store
// before its handler is invoked, so a job id fires at most once per Add.
type Runtime struct {
	triggers *store.TriggerStore
	handler  Handler
	logger   *log.Logger

	mu       sync.Mutex
	running  bool
	wake     chan struct{}
	stop     chan struct{}
	done     chan struct{}
	inflight sync.WaitGroup
}

// New creates a stopped runtime around a trigger store.
func New(triggers *store.TriggerStore, handler Handler, logger *log.Logger) *Runtime {
	return &Runtime{
		triggers: triggers,
		handler:  handler,
		logger:   logger,
	}
}

// Start loads all not-yet-fired triggers and begins dispatching. It returns
// ErrAlreadyRunning if the loop is already live.
func (r *Runtime) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return ErrAlreadyRunning
	}

	pending, err := r.triggers.ListPending()
	if err != nil {
		return &SchedulingError{Op: "load", Err: err}
	}
	r.logger.Printf("scheduler: loaded %d pending trigger(s)", len(pending))

	r.wake = make(chan struct{}, 1)
	r.stop = make(chan struct{})
	r.done = make(chan struct{})
	r.running = true
	go r.run()
	return nil
}

// Stop halts the dispatch loop and waits for in-flight handler invocations to
// drain. Stopping a stopped runtime is a no-op; the runtime may be started
// again afterwards.
func (r *Runtime) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	close(r.stop)
	r.running = false
	r.mu.Unlock()

	<-r.done
	r.inflight.Wait()
	r.logger.Printf("scheduler: stopped")
}

// Add registers a one-shot trigger. It fails with ErrDuplicateJob when the
// job id is already registered.
func (r *Runtime) Add(jobID string, fireTime time.Time, reminderID uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, err := r.triggers.Get(jobID)
	if err != nil {
		return &SchedulingError{Op: "add", JobID: jobID, Err: err}
	}
	if existing != nil {
		return ErrDuplicateJob
	}

	trigger := &model.Trigger{
		JobID:      jobID,
		FireTime:   fireTime.UTC(),
		ReminderID: reminderID,
	}
	if err := r.triggers.Put(trigger); err != nil {
		return &SchedulingError{Op: "add", JobID: jobID, Err: err}
	}

	r.poke()
	return nil
}

// Reschedule moves the fire time of an existing, not-yet-fired job. It fails
// with ErrJobNotFound when the job is absent or already fired.
func (r *Runtime) Reschedule(jobID string, fireTime time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, err := r.triggers.Get(jobID)
	if err != nil {
		return &SchedulingError{Op: "reschedule", JobID: jobID, Err: err}
	}
	if existing == nil {
		return ErrJobNotFound
	}

	existing.FireTime = fireTime.UTC()
	if err := r.triggers.Put(existing); err != nil {
		return &SchedulingError{Op: "reschedule", JobID: jobID, Err: err}
	}

	r.poke()
	return nil
}

// Remove cancels a pending job. Removing an absent or already-fired job is a
// successful no-op.
func (r *Runtime) Remove(jobID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.triggers.Delete(jobID); err != nil {
		return &SchedulingError{Op: "remove", JobID: jobID, Err: err}
	}

	r.poke()
	return nil
}

// Pending returns the registered triggers ordered by fire time, job id as
// tiebreak.
func (r *Runtime) Pending() ([]model.Trigger, error) {
	pending, err := r.triggers.ListPending()
	if err != nil {
		return nil, &SchedulingError{Op: "list", Err: err}
	}
	return pending, nil
}

// poke invalidates the loop's current sleep. Callers hold r.mu.
func (r *Runtime) poke() {
	if !r.running {
		return
	}
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

func (r *Runtime) run() {
	defer close(r.done)

	for {
		var (
			timer  *time.Timer
			timerC <-chan time.Time
		)
		if next, ok := r.nextFireTime(); ok {
			wait := time.Until(next)
			if wait < 0 {
				wait = 0
			}
			timer = time.NewTimer(wait)
			timerC = timer.C
		}

		select {
		case <-r.stop:
			if timer != nil {
				timer.Stop()
			}
			return
		case <-r.wake:
		case <-timerC:
		}
		if timer != nil {
			timer.Stop()
		}

		r.fireDue()
	}
}

// nextFireTime reports the earliest pending fire time. A store read failure
// is logged and retried after retryInterval rather than killing the loop.
func (r *Runtime) nextFireTime() (time.Time, bool) {
	pending, err := r.triggers.ListPending()
	if err != nil {
		r.logger.Printf("scheduler: list pending: %v", err)
		return time.Now().Add(retryInterval), true
	}
	if len(pending) == 0 {
		return time.Time{}, false
	}
	return pending[0].FireTime, true
}

// fireDue pops every due trigger and hands it to the handler. Each trigger is
// consumed (re-checked and deleted under the mutation lock) before
// invocation, so a concurrent Remove or Reschedule wins over a stale read and
// a job id never fires twice for one Add.
func (r *Runtime) fireDue() {
	now := time.Now().UTC()
	due, err := r.triggers.Due(now)
	if err != nil {
		r.logger.Printf("scheduler: query due triggers: %v", err)
		return
	}

	for _, trigger := range due {
		consumed, err := r.consume(trigger, now)
		if err != nil {
			r.logger.Printf("scheduler: consume trigger %s: %v", trigger.JobID, err)
			continue
		}
		if !consumed {
			continue
		}

		r.inflight.Add(1)
		go r.invoke(trigger)
	}
}

func (r *Runtime) consume(trigger model.Trigger, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, err := r.triggers.Get(trigger.JobID)
	if err != nil {
		return false, err
	}
	if current == nil || current.FireTime.After(now) {
		return false, nil
	}
	if err := r.triggers.Delete(trigger.JobID); err != nil {
		return false, err
	}
	return true, nil
}

func (r *Runtime) invoke(trigger model.Trigger) {
	defer r.inflight.Done()
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Printf("scheduler: handler panic for %s: %v", trigger.JobID, rec)
		}
	}()

	r.handler(trigger.ReminderID)
}
