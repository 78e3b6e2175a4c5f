package job

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Registry is the process-wide store of job records. It is the single
// source of truth for which jobs exist and in what state. All record
// mutation funnels through its lock; the typed mark/add methods below are
// reserved for the worker that owns the record, while external callers are
// limited to snapshots and RequestCancel.
type Registry struct {
	mu      sync.RWMutex
	records map[string]*Record
	order   []*Record // creation order, oldest first
	limit   int
}

// NewRegistry creates a registry that retains at most limit records,
// evicting the oldest terminal record once the ceiling is exceeded.
func NewRegistry(limit int) *Registry {
	return &Registry{
		records: make(map[string]*Record),
		limit:   limit,
	}
}

// Insert allocates a new queued record for the given source and returns
// its id.
func (g *Registry) Insert(source Source) string {
	g.mu.Lock()
	defer g.mu.Unlock()

	id := uuid.New().String()
	if _, exists := g.records[id]; exists {
		panic(fmt.Sprintf("job: id collision on %s", id))
	}

	record := &Record{
		id:        id,
		source:    source,
		status:    StatusQueued,
		createdAt: time.Now(),
	}

	g.records[id] = record
	g.order = append(g.order, record)
	g.evictLocked()

	return id
}

// Snapshot returns a point-in-time copy of the record, or false if the id
// is unknown or already evicted.
func (g *Registry) Snapshot(id string) (View, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	record, ok := g.records[id]
	if !ok {
		return View{}, false
	}

	return record.view(), true
}

// List returns snapshots of all retained records, most recently created
// first.
func (g *Registry) List() []View {
	g.mu.RLock()
	defer g.mu.RUnlock()

	views := make([]View, 0, len(g.order))
	for i := len(g.order) - 1; i >= 0; i-- {
		views = append(views, g.order[i].view())
	}

	return views
}

// RequestCancel flags the job for cooperative cancellation. It reports
// whether the flag transition had an effect: false for unknown ids,
// terminal jobs, and repeated requests. It never blocks on in-flight I/O.
func (g *Registry) RequestCancel(id string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	record, ok := g.records[id]
	if !ok || record.status.Terminal() || record.cancelRequested {
		return false
	}

	record.cancelRequested = true

	return true
}

// CancelRequested reports whether cancellation has been requested for the
// job. Polled by the owning worker at chunk boundaries.
func (g *Registry) CancelRequested(id string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()

	record, ok := g.records[id]

	return ok && record.cancelRequested
}

// MarkRunning transitions the job to Running and stamps its start time.
// Like all mark methods, it must only be called by the owning worker.
func (g *Registry) MarkRunning(id string) {
	g.update(id, func(r *Record) {
		r.transition(StatusRunning, time.Now())
	})
}

// MarkCompleted transitions the job to its Completed terminal state.
func (g *Registry) MarkCompleted(id string) {
	g.update(id, func(r *Record) {
		r.transition(StatusCompleted, time.Now())
	})
}

// MarkFailed transitions the job to Failed and records the classified
// error description.
func (g *Registry) MarkFailed(id string, err error) {
	g.update(id, func(r *Record) {
		r.errMessage = err.Error()
		r.transition(StatusFailed, time.Now())
	})
}

// MarkCancelled transitions the job to Cancelled. Valid from both Queued
// and Running.
func (g *Registry) MarkCancelled(id string) {
	g.update(id, func(r *Record) {
		r.transition(StatusCancelled, time.Now())
	})
}

// SetTotalBytes records the declared length reported by the transport
// source. Set at most once per job.
func (g *Registry) SetTotalBytes(id string, total int64) {
	g.update(id, func(r *Record) {
		r.totalBytes = &total
	})
}

// AddBytes adds the length of an acknowledged chunk to the job's progress
// counter.
func (g *Registry) AddBytes(id string, n int64) {
	g.update(id, func(r *Record) {
		r.bytesTransferred += n
	})
}

func (g *Registry) update(id string, mutate func(*Record)) {
	g.mu.Lock()
	defer g.mu.Unlock()

	record, ok := g.records[id]
	if !ok {
		panic(fmt.Sprintf("job: update on unknown job %s", id))
	}

	mutate(record)
}

// evictLocked drops the oldest terminal records until the retention
// ceiling is respected. Non-terminal records are never evicted, so the
// registry may temporarily exceed the ceiling while jobs are in flight.
func (g *Registry) evictLocked() {
	for len(g.records) > g.limit {
		evicted := false

		for i, record := range g.order {
			if !record.status.Terminal() {
				continue
			}

			delete(g.records, record.id)
			g.order = append(g.order[:i], g.order[i+1:]...)
			evicted = true

			break
		}

		if !evicted {
			return
		}
	}
}
