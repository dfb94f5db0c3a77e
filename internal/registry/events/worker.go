package events

import (
	"context"
	"log/slog"

	"visitid/internal/registry/models"
)

// Worker consumes receipts from the confirmation channel and hands them to a
// sink. It keeps background processing testable without wiring queue
// implementations into the ledger.
type Worker struct {
	sink   Sink
	inbox  <-chan models.Receipt
	logger *slog.Logger
}

func NewWorker(sink Sink, inbox <-chan models.Receipt, logger *slog.Logger) *Worker {
	return &Worker{sink: sink, inbox: inbox, logger: logger}
}

// Run drains the inbox until ctx is cancelled. Sink failures are logged, not
// fatal: confirmations are best-effort observers, the receipt already reached
// the caller directly.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case receipt := <-w.inbox:
			if err := w.sink.Append(ctx, receipt); err != nil && w.logger != nil {
				w.logger.ErrorContext(ctx, "failed to publish registration receipt",
					"record_id", int64(receipt.ID),
					"error", err.Error(),
				)
			}
		}
	}
}
