package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/saverio-kantox/tarearbol/worker"
)

// Logging returns middleware that logs tick start and completion.
func Logging(logger *slog.Logger) Middleware {
	return func(ctx context.Context, inv *worker.Invocation, next Handler) (worker.Directive, error) {
		logger.Debug("tick started",
			slog.String("worker_id", inv.ID),
			slog.String("unit_id", inv.Unit.String()),
		)

		start := time.Now()
		d, err := next(ctx)
		elapsed := time.Since(start)

		if err != nil {
			logger.Error("tick failed",
				slog.String("worker_id", inv.ID),
				slog.String("unit_id", inv.Unit.String()),
				slog.Duration("elapsed", elapsed),
				slog.String("error", err.Error()),
			)
		} else {
			logger.Debug("tick completed",
				slog.String("worker_id", inv.ID),
				slog.String("unit_id", inv.Unit.String()),
				slog.String("directive", d.String()),
				slog.Duration("elapsed", elapsed),
			)
		}

		return d, err
	}
}
