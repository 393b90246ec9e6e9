package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/mitienda/mitienda/internal/cart"
)

// NewCartSweepHandler builds the handler that deletes carts idle longer
// than the payload's cutoff. The scheduler enqueues it hourly.
func NewCartSweepHandler(store *cart.Store, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload CartSweepPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		if payload.MaxAge <= 0 {
			return asynq.SkipRetry
		}

		start := time.Now()
		removed, err := store.SweepStale(ctx, payload.MaxAge)
		if err != nil {
			logger.Error("cart sweep failed", "error", err)
			return err
		}
		logger.Info("cart sweep complete",
			"removed", removed,
			"max_age", payload.MaxAge.String(),
			"took", time.Since(start).String())
		return nil
	}
}
