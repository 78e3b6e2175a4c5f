package downloader

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fitstream/activity_downloader/internal/job"
	"github.com/fitstream/activity_downloader/internal/logctx"
	"github.com/fitstream/activity_downloader/internal/telemetry"
	"github.com/fitstream/activity_downloader/internal/transfer"
)

// queuedPollInterval bounds how long a queued job can miss a cancellation
// request while waiting for a worker slot.
const queuedPollInterval = 100 * time.Millisecond

var errCancelled = errors.New("downloader: job cancelled")

// worker drives exactly one job from Queued to a terminal state. It is
// the only goroutine that mutates the job's record.
type worker struct {
	id   string
	ref  job.Source
	dest string

	registry *job.Registry
	source   transfer.Source
	writer   transfer.Writer
	policy   Policy
	tel      *telemetry.Telemetry
	sem      chan struct{}
}

func (w *worker) run(ctx context.Context) {
	logger := logctx.LoggerFromContext(ctx).With("job_id", w.id, "activity_id", w.ref.ActivityID)
	start := time.Now()

	if !w.acquireSlot(ctx) {
		w.finishCancelled(logger, start)

		return
	}

	defer func() { <-w.sem }()

	if w.cancelled(ctx) {
		w.finishCancelled(logger, start)

		return
	}

	w.registry.MarkRunning(w.id)
	w.tel.IncrementActiveDownloads()

	defer w.tel.DecrementActiveDownloads()

	logger.Info("download started", "format", w.ref.Format, "target", w.dest)

	w.transfer(ctx, logger, start)
}

func (w *worker) transfer(ctx context.Context, logger *slog.Logger, start time.Time) {
	// Retry budget for the whole job, shared between opening the stream
	// and pulling chunks.
	var attempts int

	stream, err := w.openStream(ctx, logger, &attempts)
	if err != nil {
		if errors.Is(err, errCancelled) {
			w.finishCancelled(logger, start)
		} else {
			w.finishFailed(logger, start, err)
		}

		return
	}

	defer stream.Close()

	if total, ok := stream.TotalBytes(); ok {
		w.registry.SetTotalBytes(w.id, total)
	}

	handle, err := w.writer.Open(w.dest)
	if err != nil {
		w.finishFailed(logger, start, err)

		return
	}

	var offset int64

	for {
		if w.cancelled(ctx) {
			w.discard(handle, logger)
			w.finishCancelled(logger, start)

			return
		}

		chunk, err := stream.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			if w.cancelled(ctx) {
				w.discard(handle, logger)
				w.finishCancelled(logger, start)

				return
			}

			if !transfer.IsTransient(err) {
				w.discard(handle, logger)
				w.finishFailed(logger, start, err)

				return
			}

			attempts++
			w.tel.RecordDownloadRetry()

			if attempts >= w.policy.MaxAttempts {
				w.discard(handle, logger)
				w.finishFailed(logger, start, err)

				return
			}

			delay := w.policy.Delay(attempts)
			logger.Warn("transient transport error, backing off",
				"attempt", attempts, "delay", delay.String(), "err", err)

			if !w.await(ctx, delay) {
				w.discard(handle, logger)
				w.finishCancelled(logger, start)

				return
			}

			continue
		}

		if len(chunk) == 0 {
			continue
		}

		if _, werr := handle.WriteAt(chunk, offset); werr != nil {
			w.discard(handle, logger)
			w.finishFailed(logger, start, werr)

			return
		}

		offset += int64(len(chunk))
		w.registry.AddBytes(w.id, int64(len(chunk)))
		w.tel.AddDownloadBytes(int64(len(chunk)))
	}

	if err := handle.Finalize(); err != nil {
		w.discard(handle, logger)
		w.finishFailed(logger, start, err)

		return
	}

	w.registry.MarkCompleted(w.id)
	w.tel.RecordDownload(string(job.StatusCompleted), time.Since(start))
	logger.Info("download completed", "target", w.dest, "size", humanize.Bytes(uint64(offset)))
}

// openStream opens the transport source, retrying transient failures
// against the shared attempt budget.
func (w *worker) openStream(ctx context.Context, logger *slog.Logger, attempts *int) (transfer.Stream, error) {
	for {
		if w.cancelled(ctx) {
			return nil, errCancelled
		}

		stream, err := w.source.Open(ctx, w.ref)
		if err == nil {
			return stream, nil
		}

		if w.cancelled(ctx) {
			return nil, errCancelled
		}

		if !transfer.IsTransient(err) {
			return nil, err
		}

		*attempts++
		w.tel.RecordDownloadRetry()

		if *attempts >= w.policy.MaxAttempts {
			return nil, err
		}

		delay := w.policy.Delay(*attempts)
		logger.Warn("failed to open stream, backing off",
			"attempt", *attempts, "delay", delay.String(), "err", err)

		if !w.await(ctx, delay) {
			return nil, errCancelled
		}
	}
}

// acquireSlot waits for a worker slot, reporting false if the job is
// cancelled while still queued.
func (w *worker) acquireSlot(ctx context.Context) bool {
	ticker := time.NewTicker(queuedPollInterval)
	defer ticker.Stop()

	for {
		select {
		case w.sem <- struct{}{}:
			return true
		case <-ctx.Done():
			return false
		case <-ticker.C:
			if w.registry.CancelRequested(w.id) {
				return false
			}
		}
	}
}

func (w *worker) cancelled(ctx context.Context) bool {
	return ctx.Err() != nil || w.registry.CancelRequested(w.id)
}

// await sleeps for the backoff delay. Cancellation flags are re-checked
// by the caller's loop; only context cancellation interrupts the sleep.
func (w *worker) await(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return !w.registry.CancelRequested(w.id)
	}
}

func (w *worker) discard(handle transfer.Handle, logger *slog.Logger) {
	if err := handle.Discard(); err != nil {
		logger.Error("failed to discard partial download", "target", w.dest, "err", err)
		w.tel.RecordSystemError("downloader", "discard_failed")
	}
}

func (w *worker) finishCancelled(logger *slog.Logger, start time.Time) {
	w.registry.MarkCancelled(w.id)
	w.tel.RecordDownload(string(job.StatusCancelled), time.Since(start))
	logger.Info("download cancelled")
}

func (w *worker) finishFailed(logger *slog.Logger, start time.Time, err error) {
	w.registry.MarkFailed(w.id, err)
	w.tel.RecordDownload(string(job.StatusFailed), time.Since(start))
	logger.Error("download failed", "err", err)
}
