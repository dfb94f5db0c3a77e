// Package ledger holds the transactional store of identity records: the
// record set, the owner index, and the issuance counter. All mutation goes
// through Register; reads observe a consistent snapshot.
package ledger

import (
	"context"

	"visitid/internal/registry/models"
)

// Ledger is the registry's store of record. Implementations must serialize
// Register calls: ids are issued as a dense prefix of the positive integers
// and an owner can never end up with two records.
//
// Register returns sentinel.ErrAlreadyUsed when the owner already holds a
// record; Get returns sentinel.ErrNotFound for 0 or unassigned ids. Services
// translate those into coded domain errors.
type Ledger interface {
	Register(ctx context.Context, owner models.OwnerAddress, fields models.RegistrationFields) (models.Receipt, error)
	IDOf(ctx context.Context, owner models.OwnerAddress) (models.RecordID, error)
	Get(ctx context.Context, id models.RecordID) (models.IdentityRecord, error)
	Count(ctx context.Context) (int, error)
	AllIDs(ctx context.Context) ([]models.RecordID, error)
}

// Observer receives confirmation receipts after a registration commits.
type Observer func(models.Receipt)
