package downloader

import (
	"context"
	"path/filepath"
	"sync"

	"github.com/fitstream/activity_downloader/internal/job"
	"github.com/fitstream/activity_downloader/internal/telemetry"
	"github.com/fitstream/activity_downloader/internal/transfer"
)

// Manager is the public facade of the download subsystem. Start spawns a
// worker goroutine bound to a fresh registry record and returns its id
// without waiting for transfer progress; everything else is snapshot
// reads or the cancellation flag.
type Manager struct {
	registry    *job.Registry
	source      transfer.Source
	writer      transfer.Writer
	downloadDir string
	policy      Policy
	tel         *telemetry.Telemetry

	baseCtx       context.Context
	cancelWorkers context.CancelFunc
	sem           chan struct{}
	wg            sync.WaitGroup
}

// NewManager creates a manager whose workers inherit the given context.
// maxParallel bounds how many jobs transfer at once; jobs beyond that
// stay Queued until a slot frees up.
func NewManager(
	ctx context.Context,
	registry *job.Registry,
	source transfer.Source,
	writer transfer.Writer,
	downloadDir string,
	maxParallel int,
	policy Policy,
	tel *telemetry.Telemetry,
) *Manager {
	if maxParallel <= 0 {
		maxParallel = 1
	}

	baseCtx, cancel := context.WithCancel(ctx)

	return &Manager{
		registry:      registry,
		source:        source,
		writer:        writer,
		downloadDir:   downloadDir,
		policy:        policy,
		tel:           tel,
		baseCtx:       baseCtx,
		cancelWorkers: cancel,
		sem:           make(chan struct{}, maxParallel),
	}
}

// Start allocates a queued job for the given source reference and begins
// downloading it in the background.
func (m *Manager) Start(ref job.Source) string {
	id := m.registry.Insert(ref)

	w := &worker{
		id:       id,
		ref:      ref,
		dest:     filepath.Join(m.downloadDir, ref.Filename()),
		registry: m.registry,
		source:   m.source,
		writer:   m.writer,
		policy:   m.policy,
		tel:      m.tel,
		sem:      m.sem,
	}

	m.wg.Add(1)

	go func() {
		defer m.wg.Done()
		w.run(m.baseCtx)
	}()

	return id
}

// Status returns a snapshot of the job, or false if the id is unknown or
// evicted.
func (m *Manager) Status(id string) (job.View, bool) {
	return m.registry.Snapshot(id)
}

// List returns snapshots of all retained jobs, most recently created
// first.
func (m *Manager) List() []job.View {
	return m.registry.List()
}

// Cancel requests cooperative cancellation of the job. Best effort: the
// worker observes the flag at the next chunk boundary.
func (m *Manager) Cancel(id string) bool {
	return m.registry.RequestCancel(id)
}

// Shutdown treats process shutdown as implicit cancellation: it flags
// every non-terminal job, interrupts in-flight transfers, and waits for
// workers to clean up their partial output, bounded by ctx.
func (m *Manager) Shutdown(ctx context.Context) error {
	for _, v := range m.registry.List() {
		if !v.Status.Terminal() {
			m.registry.RequestCancel(v.ID)
		}
	}

	m.cancelWorkers()

	done := make(chan struct{})

	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
