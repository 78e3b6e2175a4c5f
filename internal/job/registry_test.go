package job

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_InsertAndSnapshot(t *testing.T) {
	registry := NewRegistry(10)

	id := registry.Insert(Source{ActivityID: "i100", Format: "gpx"})
	require.NotEmpty(t, id)

	view, ok := registry.Snapshot(id)
	require.True(t, ok)
	assert.Equal(t, id, view.ID)
	assert.Equal(t, StatusQueued, view.Status)
	assert.Equal(t, "i100", view.Source.ActivityID)
	assert.Zero(t, view.BytesTransferred)
	assert.Nil(t, view.TotalBytes)
	assert.False(t, view.CreatedAt.IsZero())
}

func TestRegistry_SnapshotUnknownID(t *testing.T) {
	registry := NewRegistry(10)

	_, ok := registry.Snapshot("missing")
	require.False(t, ok)
}

func TestRegistry_ListNewestFirst(t *testing.T) {
	registry := NewRegistry(10)

	first := registry.Insert(Source{ActivityID: "i1"})
	second := registry.Insert(Source{ActivityID: "i2"})
	third := registry.Insert(Source{ActivityID: "i3"})

	views := registry.List()
	require.Len(t, views, 3)
	assert.Equal(t, third, views[0].ID)
	assert.Equal(t, second, views[1].ID)
	assert.Equal(t, first, views[2].ID)
}

func TestRegistry_ProgressTracking(t *testing.T) {
	registry := NewRegistry(10)
	id := registry.Insert(Source{ActivityID: "i1"})

	registry.MarkRunning(id)
	registry.SetTotalBytes(id, 4096)
	registry.AddBytes(id, 1024)
	registry.AddBytes(id, 1024)

	view, ok := registry.Snapshot(id)
	require.True(t, ok)
	assert.Equal(t, StatusRunning, view.Status)
	assert.Equal(t, int64(2048), view.BytesTransferred)
	require.NotNil(t, view.TotalBytes)
	assert.Equal(t, int64(4096), *view.TotalBytes)
	assert.NotNil(t, view.StartedAt)
}

func TestRegistry_MarkFailedRecordsError(t *testing.T) {
	registry := NewRegistry(10)
	id := registry.Insert(Source{ActivityID: "i1"})

	registry.MarkRunning(id)
	registry.MarkFailed(id, errors.New("remote returned 404"))

	view, ok := registry.Snapshot(id)
	require.True(t, ok)
	assert.Equal(t, StatusFailed, view.Status)
	assert.Equal(t, "remote returned 404", view.Error)
	assert.NotNil(t, view.FinishedAt)
}

func TestRegistry_RequestCancel(t *testing.T) {
	registry := NewRegistry(10)
	id := registry.Insert(Source{ActivityID: "i1"})

	require.False(t, registry.CancelRequested(id))
	require.True(t, registry.RequestCancel(id))
	require.True(t, registry.CancelRequested(id))

	// A repeated request changes nothing.
	require.False(t, registry.RequestCancel(id))
}

func TestRegistry_RequestCancelUnknownID(t *testing.T) {
	registry := NewRegistry(10)

	require.False(t, registry.RequestCancel("missing"))
	require.False(t, registry.CancelRequested("missing"))
}

func TestRegistry_RequestCancelTerminalJob(t *testing.T) {
	registry := NewRegistry(10)
	id := registry.Insert(Source{ActivityID: "i1"})

	registry.MarkRunning(id)
	registry.MarkCompleted(id)

	require.False(t, registry.RequestCancel(id))
}

func TestRegistry_EvictsOldestTerminal(t *testing.T) {
	registry := NewRegistry(2)

	first := registry.Insert(Source{ActivityID: "i1"})
	registry.MarkRunning(first)
	registry.MarkCompleted(first)

	second := registry.Insert(Source{ActivityID: "i2"})
	registry.MarkRunning(second)
	registry.MarkCompleted(second)

	third := registry.Insert(Source{ActivityID: "i3"})

	_, ok := registry.Snapshot(first)
	assert.False(t, ok, "oldest terminal record should be evicted")

	_, ok = registry.Snapshot(second)
	assert.True(t, ok)

	_, ok = registry.Snapshot(third)
	assert.True(t, ok)

	assert.Len(t, registry.List(), 2)
}

func TestRegistry_NeverEvictsNonTerminal(t *testing.T) {
	registry := NewRegistry(2)

	var ids []string
	for i := 0; i < 4; i++ {
		ids = append(ids, registry.Insert(Source{ActivityID: "i1"}))
	}

	// Everything is still queued, so the ceiling is exceeded rather than
	// dropping live jobs.
	require.Len(t, registry.List(), 4)

	for _, id := range ids {
		_, ok := registry.Snapshot(id)
		require.True(t, ok)
	}
}

func TestRegistry_EvictionSkipsNonTerminalWhenChoosing(t *testing.T) {
	registry := NewRegistry(2)

	live := registry.Insert(Source{ActivityID: "i1"})

	done := registry.Insert(Source{ActivityID: "i2"})
	registry.MarkRunning(done)
	registry.MarkCompleted(done)

	registry.Insert(Source{ActivityID: "i3"})

	_, ok := registry.Snapshot(live)
	assert.True(t, ok, "non-terminal record must survive eviction")

	_, ok = registry.Snapshot(done)
	assert.False(t, ok, "terminal record is evicted even though an older one exists")
}

func TestRegistry_UpdateUnknownIDPanics(t *testing.T) {
	registry := NewRegistry(10)

	require.Panics(t, func() {
		registry.MarkRunning("missing")
	})
}
