package job

import (
	"fmt"
	"time"
)

// Status represents the lifecycle state of a download job.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether the status admits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// canTransition encodes the job state machine. Queued jobs may be cancelled
// before they ever run; everything else funnels through Running.
func (s Status) canTransition(to Status) bool {
	switch s {
	case StatusQueued:
		return to == StatusRunning || to == StatusCancelled
	case StatusRunning:
		return to == StatusCompleted || to == StatusFailed || to == StatusCancelled
	default:
		return false
	}
}

// Source identifies the remote activity file a job downloads.
type Source struct {
	ActivityID string `json:"activity_id"`
	Format     string `json:"format,omitempty"`
}

// Filename returns the destination file name for the source.
func (s Source) Filename() string {
	format := s.Format
	if format == "" {
		format = "fit"
	}

	return fmt.Sprintf("%s.%s", s.ActivityID, format)
}

// Record is the canonical bookkeeping entry for one download. It is owned
// by the registry; the worker that drives the job is the only mutator, and
// every other party observes it through View snapshots.
type Record struct {
	id     string
	source Source
	status Status

	bytesTransferred int64
	totalBytes       *int64
	errMessage       string

	createdAt  time.Time
	startedAt  *time.Time
	finishedAt *time.Time

	cancelRequested bool
}

func (r *Record) transition(to Status, now time.Time) {
	if !r.status.canTransition(to) {
		panic(fmt.Sprintf("job: invalid transition %s -> %s for job %s", r.status, to, r.id))
	}

	switch to {
	case StatusRunning:
		r.startedAt = &now
	case StatusCompleted, StatusFailed, StatusCancelled:
		r.finishedAt = &now
	}

	r.status = to
}

// View is an immutable point-in-time copy of a record, safe to hold and
// read without synchronization with the owning worker.
type View struct {
	ID               string     `json:"id"`
	Source           Source     `json:"source"`
	Status           Status     `json:"status"`
	BytesTransferred int64      `json:"bytes_transferred"`
	TotalBytes       *int64     `json:"total_bytes,omitempty"`
	Error            string     `json:"error,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	StartedAt        *time.Time `json:"started_at,omitempty"`
	FinishedAt       *time.Time `json:"finished_at,omitempty"`
}

func (r *Record) view() View {
	v := View{
		ID:               r.id,
		Source:           r.source,
		Status:           r.status,
		BytesTransferred: r.bytesTransferred,
		Error:            r.errMessage,
		CreatedAt:        r.createdAt,
	}

	if r.totalBytes != nil {
		total := *r.totalBytes
		v.TotalBytes = &total
	}

	if r.startedAt != nil {
		started := *r.startedAt
		v.StartedAt = &started
	}

	if r.finishedAt != nil {
		finished := *r.finishedAt
		v.FinishedAt = &finished
	}

	return v
}
