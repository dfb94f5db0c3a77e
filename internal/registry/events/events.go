// Package events fans registration confirmations out to sinks. The ledger
// signals each committed registration as a receipt; a worker drains the
// confirmation channel so slow sinks never block the write path.
package events

import (
	"context"

	"visitid/internal/registry/models"
)

// Sink consumes committed registration receipts.
type Sink interface {
	Append(ctx context.Context, receipt models.Receipt) error
}
