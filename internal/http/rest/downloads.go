package rest

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/fitstream/activity_downloader/internal/downloader"
	"github.com/fitstream/activity_downloader/internal/job"
	"github.com/fitstream/activity_downloader/internal/logctx"
	"github.com/fitstream/activity_downloader/internal/telemetry"
	"github.com/fitstream/activity_downloader/internal/webhook"
	"github.com/go-chi/chi/v5"
)

// SignatureHeader carries the HMAC signature of a webhook delivery.
const SignatureHeader = "X-Signature"

const maxWebhookBody = 1 * 1024 * 1024 // 1MB

// DownloadHandler exposes the download manager and webhook ingestion
// over HTTP. It is a thin adapter: every transfer failure is surfaced as
// job status data, never as a request error.
type DownloadHandler struct {
	manager   *downloader.Manager
	webhooks  *webhook.Service
	telemetry *telemetry.Telemetry
}

// NewDownloadHandler creates a new download handler.
func NewDownloadHandler(manager *downloader.Manager, webhooks *webhook.Service, tel *telemetry.Telemetry) *DownloadHandler {
	return &DownloadHandler{
		manager:   manager,
		webhooks:  webhooks,
		telemetry: tel,
	}
}

func (h *DownloadHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/downloads", h.startDownload)
	r.Get("/downloads", h.listDownloads)
	r.Get("/downloads/{downloadID}", h.getDownload)
	r.Delete("/downloads/{downloadID}", h.cancelDownload)
	r.Post("/webhooks/intervals", h.receiveWebhook)
	r.Get("/healthz", h.health)

	return r
}

type startDownloadRequest struct {
	ActivityID string `json:"activity_id"`
	Format     string `json:"format"`
}

func (h *DownloadHandler) startDownload(w http.ResponseWriter, r *http.Request) {
	var req startDownloadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")

		return
	}

	if req.ActivityID == "" {
		respondError(w, http.StatusBadRequest, "activity_id is required")

		return
	}

	id := h.manager.Start(job.Source{
		ActivityID: req.ActivityID,
		Format:     req.Format,
	})

	respondJSON(w, http.StatusAccepted, map[string]string{"id": id})
}

func (h *DownloadHandler) listDownloads(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"downloads": h.manager.List()})
}

func (h *DownloadHandler) getDownload(w http.ResponseWriter, r *http.Request) {
	view, ok := h.manager.Status(chi.URLParam(r, "downloadID"))
	if !ok {
		respondError(w, http.StatusNotFound, "download not found")

		return
	}

	respondJSON(w, http.StatusOK, view)
}

func (h *DownloadHandler) cancelDownload(w http.ResponseWriter, r *http.Request) {
	acknowledged := h.manager.Cancel(chi.URLParam(r, "downloadID"))

	respondJSON(w, http.StatusOK, map[string]bool{"acknowledged": acknowledged})
}

func (h *DownloadHandler) receiveWebhook(w http.ResponseWriter, r *http.Request) {
	logger := logctx.LoggerFromContext(r.Context())

	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		respondError(w, http.StatusBadRequest, "failed to read request body")

		return
	}

	result, err := h.webhooks.Process(r.Context(), r.Header.Get(SignatureHeader), payload)

	switch {
	case errors.Is(err, webhook.ErrNoSecret):
		respondError(w, http.StatusServiceUnavailable, "webhook ingestion is not configured")

		return
	case errors.Is(err, webhook.ErrBadSignature):
		h.telemetry.RecordWebhookEvent("rejected")
		respondError(w, http.StatusUnauthorized, "signature verification failed")

		return
	case err != nil:
		logger.Error("failed to process webhook", "err", err)
		h.telemetry.RecordWebhookEvent("error")
		respondError(w, http.StatusInternalServerError, "failed to process webhook")

		return
	}

	if result.Duplicate {
		h.telemetry.RecordWebhookEvent("duplicate")
	} else {
		h.telemetry.RecordWebhookEvent("accepted")
	}

	respondJSON(w, http.StatusAccepted, result)
}

func (h *DownloadHandler) health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
