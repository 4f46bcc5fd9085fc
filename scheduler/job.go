package scheduler

import "fmt"

// Job is a unit of scheduled work. Its identity is the pointer: queueing
// the same *Job twice before it runs is a no-op.
type Job struct {
	// ID orders the main queue and the post-flush lane, lowest first.
	ID int
	Fn func() error
	// AllowRecurse lets the job re-queue itself while it is running.
	AllowRecurse bool
	// Name is used in logs and errors.
	Name string

	inactive bool
}

// NewJob returns a job without an id, sorted after every job with one.
func NewJob(fn func() error) *Job {
	return &Job{ID: NoID, Fn: fn}
}

// Deactivate keeps a queued job from running.
func (j *Job) Deactivate() { j.inactive = true }

func (j *Job) Active() bool { return !j.inactive }

func (j *Job) String() string {
	switch {
	case j.Name != "":
		return j.Name
	case j.ID == NoID:
		return fmt.Sprintf("job@%p", j)
	default:
		return fmt.Sprintf("job#%d", j.ID)
	}
}
