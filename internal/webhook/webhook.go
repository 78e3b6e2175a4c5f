package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fitstream/activity_downloader/internal/storage"
)

// ErrBadSignature is returned when a delivery's HMAC signature does not
// match the configured secret.
var ErrBadSignature = errors.New("webhook: signature mismatch")

// ErrNoSecret is returned when ingestion is attempted without a
// configured secret.
var ErrNoSecret = errors.New("webhook: no secret configured")

// Result describes the outcome of a verified delivery.
type Result struct {
	EventID   string `json:"id"`
	Duplicate bool   `json:"duplicate"`
}

// Service verifies and deduplicates incoming webhook deliveries. Its
// state is independent of the download job registry.
type Service struct {
	secret string
	repo   storage.WebhookEventRepository
}

func NewService(secret string, repo storage.WebhookEventRepository) *Service {
	return &Service{
		secret: secret,
		repo:   repo,
	}
}

// Process verifies the signature header against the raw payload, then
// records the event. Replayed event ids are acknowledged as duplicates
// without being stored again.
func (s *Service) Process(ctx context.Context, signature string, payload []byte) (Result, error) {
	if s.secret == "" {
		return Result{}, ErrNoSecret
	}

	if !s.verify(signature, payload) {
		return Result{}, ErrBadSignature
	}

	eventID := extractEventID(payload)

	duplicate, err := s.repo.RecordEvent(ctx, storage.WebhookEvent{
		EventID:    eventID,
		Payload:    payload,
		ReceivedAt: time.Now(),
	})
	if err != nil {
		return Result{}, fmt.Errorf("failed to record webhook event: %w", err)
	}

	return Result{EventID: eventID, Duplicate: duplicate}, nil
}

// verify checks a signature header of the form "sha256=<hex digest>".
func (s *Service) verify(signature string, payload []byte) bool {
	scheme, digest, found := strings.Cut(signature, "=")
	if !found || scheme != "sha256" {
		return false
	}

	sig, err := hex.DecodeString(digest)
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(s.secret))
	mac.Write(payload)

	return hmac.Equal(sig, mac.Sum(nil))
}

// extractEventID pulls the delivery's own id out of the payload, falling
// back to a timestamp id for payloads without one.
func extractEventID(payload []byte) string {
	var probe struct {
		ID string `json:"id"`
	}

	if err := json.Unmarshal(payload, &probe); err == nil && probe.ID != "" {
		return probe.ID
	}

	return fmt.Sprintf("ts-%d", time.Now().UnixMilli())
}
