package ledger

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"visitid/internal/registry/commitment"
	"visitid/internal/registry/models"
	"visitid/pkg/platform/sentinel"
)

// InMemory keeps the ledger in process memory. It intentionally favors
// clarity over performance: one write lock serializes the allocate-then-store
// critical section, readers share an RLock and return copies.
type InMemory struct {
	mu        sync.RWMutex
	records   map[models.RecordID]models.IdentityRecord
	byOwner   map[models.OwnerAddress]models.RecordID
	issued    []models.RecordID
	counter   models.RecordID
	observers []Observer

	now    func() time.Time
	tracer trace.Tracer
}

type Option func(*InMemory)

// WithObserver registers a confirmation observer. Observers run after commit,
// on the registering goroutine.
func WithObserver(o Observer) Option {
	return func(l *InMemory) {
		l.observers = append(l.observers, o)
	}
}

// WithClock overrides record timestamps, for tests.
func WithClock(now func() time.Time) Option {
	return func(l *InMemory) {
		l.now = now
	}
}

func NewInMemory(opts ...Option) *InMemory {
	l := &InMemory{
		records: make(map[models.RecordID]models.IdentityRecord),
		byOwner: make(map[models.OwnerAddress]models.RecordID),
		now:     time.Now,
		tracer:  otel.Tracer("visitid/registry/ledger"),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Register allocates the next id, computes the commitment, and stores the
// record as one atomic unit. A failed attempt leaves no trace.
func (l *InMemory) Register(ctx context.Context, owner models.OwnerAddress, fields models.RegistrationFields) (models.Receipt, error) {
	_, span := l.tracer.Start(ctx, "ledger.Register",
		trace.WithAttributes(attribute.String("owner", owner.String())))
	defer span.End()

	if owner.IsZero() {
		return models.Receipt{}, sentinel.ErrInvalidState
	}

	l.mu.Lock()
	if _, exists := l.byOwner[owner]; exists {
		l.mu.Unlock()
		return models.Receipt{}, sentinel.ErrAlreadyUsed
	}

	id := l.counter + 1
	record := models.IdentityRecord{
		ID:             id,
		Owner:          owner,
		Name:           fields.Name,
		DocumentNumber: fields.DocumentNumber,
		Contact:        fields.Contact,
		Itinerary:      fields.Itinerary,
		Commitment:     commitment.Compute(owner, fields),
		IsActive:       true,
		CreatedAt:      l.now(),
	}

	l.counter = id
	l.records[id] = record
	l.byOwner[owner] = id
	l.issued = append(l.issued, id)
	l.mu.Unlock()

	receipt := models.Receipt{
		ID:         id,
		Owner:      owner,
		Commitment: record.Commitment,
		IssuedAt:   record.CreatedAt,
	}
	for _, observe := range l.observers {
		observe(receipt)
	}

	span.SetAttributes(attribute.Int64("record_id", int64(id)))
	return receipt, nil
}

// IDOf returns the owner's record id, or 0 when none exists.
func (l *InMemory) IDOf(_ context.Context, owner models.OwnerAddress) (models.RecordID, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.byOwner[owner], nil
}

func (l *InMemory) Get(_ context.Context, id models.RecordID) (models.IdentityRecord, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	record, ok := l.records[id]
	if !ok {
		return models.IdentityRecord{}, sentinel.ErrNotFound
	}
	return record, nil
}

func (l *InMemory) Count(_ context.Context) (int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.issued), nil
}

// AllIDs returns the issuance-order id sequence.
func (l *InMemory) AllIDs(_ context.Context) ([]models.RecordID, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]models.RecordID, len(l.issued))
	copy(out, l.issued)
	return out, nil
}
