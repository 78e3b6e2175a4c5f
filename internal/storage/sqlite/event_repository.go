package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/fitstream/activity_downloader/internal/storage"
)

type WebhookEventRepository struct {
	db *sql.DB
}

func NewWebhookEventRepository(dbConn *sql.DB) *WebhookEventRepository {
	return &WebhookEventRepository{db: dbConn}
}

// RecordEvent inserts the event unless its id was already seen. The
// UNIQUE constraint on event_id makes replay detection atomic.
func (r *WebhookEventRepository) RecordEvent(ctx context.Context, event storage.WebhookEvent) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO webhook_events (event_id, payload, received_at)
		VALUES (?, ?, ?)
		ON CONFLICT(event_id) DO NOTHING
	`, event.EventID, event.Payload, event.ReceivedAt.Format(time.RFC3339))
	if err != nil {
		return false, err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	return affected == 0, nil
}

// GetEvents returns the most recently received events, newest first.
func (r *WebhookEventRepository) GetEvents(ctx context.Context, limit int) ([]storage.WebhookEvent, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT event_id, payload, received_at FROM webhook_events
		ORDER BY received_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []storage.WebhookEvent

	for rows.Next() {
		var event storage.WebhookEvent

		var receivedAt string

		if err := rows.Scan(&event.EventID, &event.Payload, &receivedAt); err != nil {
			return nil, err
		}

		event.ReceivedAt, _ = time.Parse(time.RFC3339, receivedAt)

		events = append(events, event)
	}

	return events, rows.Err()
}
