package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/servemehq/chat-api/internal/domain/notification"
)

// RetentionWorker periodically purges notifications older than the retention
// window. Unread counts are not invalidated here: unread rows younger than
// the window are untouched, and stale cached counts self-correct within one
// poll interval anyway.
type RetentionWorker struct {
	service  *notification.Service
	interval time.Duration
	log      zerolog.Logger
	stopChan chan struct{}
}

// NewRetentionWorker creates the purge worker.
func NewRetentionWorker(service *notification.Service, interval time.Duration, log zerolog.Logger) *RetentionWorker {
	return &RetentionWorker{
		service:  service,
		interval: interval,
		log:      log.With().Str("component", "retention-worker").Logger(),
		stopChan: make(chan struct{}),
	}
}

// Start runs the sweep loop until the context is cancelled or Stop is called.
// One sweep runs immediately so a restart never defers an overdue purge by a
// full interval.
func (w *RetentionWorker) Start(ctx context.Context) {
	w.log.Info().Dur("interval", w.interval).Msg("retention worker started")

	w.sweep(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("retention worker stopped by context")
			return
		case <-w.stopChan:
			w.log.Info().Msg("retention worker stopped")
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

// Stop gracefully stops the worker.
func (w *RetentionWorker) Stop() {
	close(w.stopChan)
}

func (w *RetentionWorker) sweep(ctx context.Context) {
	sweepCtx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	if _, err := w.service.PurgeExpired(sweepCtx); err != nil {
		w.log.Error().Err(err).Msg("retention sweep failed")
	}
}
