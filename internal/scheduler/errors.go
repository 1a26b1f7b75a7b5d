package scheduler

import (
	"errors"
	"fmt"
)

var (
	// ErrAlreadyRunning is returned by Start when the dispatch loop is live.
	ErrAlreadyRunning = errors.New("scheduler: already running")
	// ErrDuplicateJob is returned by Add when the job id is taken; callers
	// must Reschedule or Remove first.
	ErrDuplicateJob = errors.New("scheduler: duplicate job id")
	// ErrJobNotFound is returned by Reschedule when the job is absent or has
	// already fired.
	ErrJobNotFound = errors.New("scheduler: job not found")
)

// SchedulingError wraps a trigger-store failure during a mutation. It is
// never swallowed: a reminder left without its trigger is the main
// correctness risk of this subsystem, so callers decide how to roll back.
type SchedulingError struct {
	Op    string
	JobID string
	Err   error
}

func (e *SchedulingError) Error() string {
	return fmt.Sprintf("scheduler: %s %s: %v", e.Op, e.JobID, e.Err)
}

func (e *SchedulingError) Unwrap() error {
	return e.Err
}
