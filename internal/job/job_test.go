package job

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestStatus_Terminal(t *testing.T) {
	tests := []struct {
		status   Status
		terminal bool
	}{
		{StatusQueued, false},
		{StatusRunning, false},
		{StatusCompleted, true},
		{StatusFailed, true},
		{StatusCancelled, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			require.Equal(t, tt.terminal, tt.status.Terminal())
		})
	}
}

func TestRecord_TransitionSetsTimestamps(t *testing.T) {
	record := &Record{id: "j1", status: StatusQueued}
	now := time.Now()

	record.transition(StatusRunning, now)
	require.Equal(t, StatusRunning, record.status)
	require.NotNil(t, record.startedAt)
	require.Nil(t, record.finishedAt)

	record.transition(StatusCompleted, now.Add(time.Second))
	require.Equal(t, StatusCompleted, record.status)
	require.NotNil(t, record.finishedAt)
}

func TestRecord_QueuedCanBeCancelledDirectly(t *testing.T) {
	record := &Record{id: "j1", status: StatusQueued}

	record.transition(StatusCancelled, time.Now())

	require.Equal(t, StatusCancelled, record.status)
	require.Nil(t, record.startedAt)
	require.NotNil(t, record.finishedAt)
}

func TestRecord_InvalidTransitionPanics(t *testing.T) {
	tests := []struct {
		name string
		from Status
		to   Status
	}{
		{"queued to completed", StatusQueued, StatusCompleted},
		{"queued to failed", StatusQueued, StatusFailed},
		{"completed to running", StatusCompleted, StatusRunning},
		{"failed to cancelled", StatusFailed, StatusCancelled},
		{"cancelled to running", StatusCancelled, StatusRunning},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			record := &Record{id: "j1", status: tt.from}

			require.Panics(t, func() {
				record.transition(tt.to, time.Now())
			})
		})
	}
}

func TestSource_Filename(t *testing.T) {
	require.Equal(t, "i123.fit", Source{ActivityID: "i123", Format: "fit"}.Filename())
	require.Equal(t, "i123.gpx", Source{ActivityID: "i123", Format: "gpx"}.Filename())
	require.Equal(t, "i123.fit", Source{ActivityID: "i123"}.Filename())
}
