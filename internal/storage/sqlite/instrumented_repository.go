package sqlite

import (
	"context"
	"database/sql"

	"github.com/fitstream/activity_downloader/internal/storage"
	"github.com/fitstream/activity_downloader/internal/telemetry"
)

// InstrumentedWebhookEventRepository wraps WebhookEventRepository with
// telemetry.
type InstrumentedWebhookEventRepository struct {
	repo      *WebhookEventRepository
	telemetry *telemetry.Telemetry
}

func NewInstrumentedWebhookEventRepository(dbConn *sql.DB, tel *telemetry.Telemetry) *InstrumentedWebhookEventRepository {
	return &InstrumentedWebhookEventRepository{
		repo:      NewWebhookEventRepository(dbConn),
		telemetry: tel,
	}
}

func (r *InstrumentedWebhookEventRepository) RecordEvent(ctx context.Context, event storage.WebhookEvent) (bool, error) {
	var duplicate bool

	var err error

	instrumentedErr := r.telemetry.InstrumentDBOperation(ctx, "record_event", func(ctx context.Context) error {
		duplicate, err = r.repo.RecordEvent(ctx, event)

		return err
	})

	if instrumentedErr != nil {
		return false, instrumentedErr
	}

	return duplicate, nil
}

func (r *InstrumentedWebhookEventRepository) GetEvents(ctx context.Context, limit int) ([]storage.WebhookEvent, error) {
	var events []storage.WebhookEvent

	var err error

	instrumentedErr := r.telemetry.InstrumentDBOperation(ctx, "get_events", func(ctx context.Context) error {
		events, err = r.repo.GetEvents(ctx, limit)

		return err
	})

	if instrumentedErr != nil {
		return nil, instrumentedErr
	}

	return events, nil
}
