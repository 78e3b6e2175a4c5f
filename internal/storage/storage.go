package storage

import (
	"context"
	"time"
)

// WebhookEvent represents one ingested webhook delivery.
type WebhookEvent struct {
	EventID    string
	Payload    []byte
	ReceivedAt time.Time
}

// WebhookEventReadRepository exposes read access to ingested events.
type WebhookEventReadRepository interface {
	GetEvents(ctx context.Context, limit int) ([]WebhookEvent, error)
}

// WebhookEventWriteRepository records deliveries and detects replays.
type WebhookEventWriteRepository interface {
	// RecordEvent stores the event, reporting whether the event id was
	// already recorded. A duplicate delivery is not stored again.
	RecordEvent(ctx context.Context, event WebhookEvent) (bool, error)
}

type WebhookEventRepository interface {
	WebhookEventReadRepository
	WebhookEventWriteRepository
}
