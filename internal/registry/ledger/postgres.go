package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"visitid/internal/registry/commitment"
	"visitid/internal/registry/models"
	"visitid/pkg/platform/sentinel"
	"visitid/pkg/platform/tx"
)

// Postgres persists the ledger in PostgreSQL. The issuance counter lives in a
// single-row table; advancing it takes the row lock, so allocate-then-store
// runs inside one transaction and aborts as a unit. The UNIQUE constraint on
// owner backs the one-record-per-owner invariant even across processes.
type Postgres struct {
	db        *sql.DB
	observers []Observer
	now       func() time.Time
	tracer    trace.Tracer
}

type PostgresOption func(*Postgres)

func PostgresWithObserver(o Observer) PostgresOption {
	return func(l *Postgres) {
		l.observers = append(l.observers, o)
	}
}

func PostgresWithClock(now func() time.Time) PostgresOption {
	return func(l *Postgres) {
		l.now = now
	}
}

func NewPostgres(db *sql.DB, opts ...PostgresOption) *Postgres {
	l := &Postgres{
		db:     db,
		now:    time.Now,
		tracer: otel.Tracer("visitid/registry/ledger"),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// EnsureSchema creates the ledger tables when they do not exist yet.
func (l *Postgres) EnsureSchema(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS identity_records (
    id              BIGINT PRIMARY KEY,
    owner           TEXT NOT NULL UNIQUE,
    name            TEXT NOT NULL,
    document_number TEXT NOT NULL,
    contact         TEXT NOT NULL,
    itinerary       TEXT NOT NULL,
    commitment      TEXT NOT NULL,
    is_active       BOOLEAN NOT NULL,
    created_at      TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS issuance_counter (
    singleton BOOLEAN PRIMARY KEY DEFAULT TRUE CHECK (singleton),
    last_id   BIGINT NOT NULL
);
INSERT INTO issuance_counter (singleton, last_id)
    VALUES (TRUE, 0)
    ON CONFLICT (singleton) DO NOTHING;`
	if _, err := l.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("ensure ledger schema: %w", err)
	}
	return nil
}

const uniqueViolation = "23505"

func (l *Postgres) Register(ctx context.Context, owner models.OwnerAddress, fields models.RegistrationFields) (models.Receipt, error) {
	ctx, span := l.tracer.Start(ctx, "ledger.Register",
		trace.WithAttributes(attribute.String("owner", owner.String())))
	defer span.End()

	if owner.IsZero() {
		return models.Receipt{}, sentinel.ErrInvalidState
	}

	// Read committed is enough here: the counter UPDATE takes the row lock, so
	// concurrent registers queue on it instead of aborting with serialization
	// failures, and issuance stays dense.
	txn, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return models.Receipt{}, fmt.Errorf("begin register tx: %w", err)
	}
	defer txn.Rollback() //nolint:errcheck // no-op after commit

	// Reads below run inside this transaction. The pre-check keeps the common
	// duplicate case from advancing the counter; the UNIQUE constraint still
	// backs the invariant under concurrency.
	ctx = tx.WithTx(ctx, txn)
	existing, err := l.IDOf(ctx, owner)
	if err != nil {
		return models.Receipt{}, err
	}
	if existing != 0 {
		return models.Receipt{}, sentinel.ErrAlreadyUsed
	}

	var id models.RecordID
	err = txn.QueryRowContext(ctx,
		`UPDATE issuance_counter SET last_id = last_id + 1 RETURNING last_id`,
	).Scan(&id)
	if err != nil {
		return models.Receipt{}, fmt.Errorf("advance issuance counter: %w", err)
	}

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

	_, err = txn.ExecContext(ctx,
		`INSERT INTO identity_records
		    (id, owner, name, document_number, contact, itinerary, commitment, is_active, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		int64(record.ID), record.Owner.String(), record.Name, record.DocumentNumber,
		record.Contact, record.Itinerary, record.Commitment, record.IsActive, record.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			// Rollback discards the counter advance with the insert.
			return models.Receipt{}, sentinel.ErrAlreadyUsed
		}
		return models.Receipt{}, fmt.Errorf("insert identity record: %w", err)
	}

	if err := txn.Commit(); err != nil {
		return models.Receipt{}, fmt.Errorf("commit register tx: %w", err)
	}

	receipt := models.Receipt{
		ID:         record.ID,
		Owner:      record.Owner,
		Commitment: record.Commitment,
		IssuedAt:   record.CreatedAt,
	}
	for _, observe := range l.observers {
		observe(receipt)
	}

	span.SetAttributes(attribute.Int64("record_id", int64(record.ID)))
	return receipt, nil
}

// queryRow routes through an in-flight transaction when one is on the context.
func (l *Postgres) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	if txn, ok := tx.From(ctx); ok {
		return txn.QueryRowContext(ctx, query, args...)
	}
	return l.db.QueryRowContext(ctx, query, args...)
}

func (l *Postgres) IDOf(ctx context.Context, owner models.OwnerAddress) (models.RecordID, error) {
	var id int64
	err := l.queryRow(ctx,
		`SELECT id FROM identity_records WHERE owner = $1`, owner.String(),
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("find id by owner: %w", err)
	}
	return models.RecordID(id), nil
}

func (l *Postgres) Get(ctx context.Context, id models.RecordID) (models.IdentityRecord, error) {
	var record models.IdentityRecord
	var owner string
	err := l.queryRow(ctx,
		`SELECT id, owner, name, document_number, contact, itinerary, commitment, is_active, created_at
		   FROM identity_records WHERE id = $1`, int64(id),
	).Scan(&record.ID, &owner, &record.Name, &record.DocumentNumber, &record.Contact,
		&record.Itinerary, &record.Commitment, &record.IsActive, &record.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.IdentityRecord{}, sentinel.ErrNotFound
	}
	if err != nil {
		return models.IdentityRecord{}, fmt.Errorf("get identity record: %w", err)
	}
	record.Owner = models.OwnerAddress(owner)
	return record, nil
}

func (l *Postgres) Count(ctx context.Context) (int, error) {
	var n int
	if err := l.queryRow(ctx, `SELECT COUNT(*) FROM identity_records`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count identity records: %w", err)
	}
	return n, nil
}

func (l *Postgres) AllIDs(ctx context.Context) ([]models.RecordID, error) {
	rows, err := l.db.QueryContext(ctx, `SELECT id FROM identity_records ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list record ids: %w", err)
	}
	defer rows.Close()

	var ids []models.RecordID
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan record id: %w", err)
		}
		ids = append(ids, models.RecordID(id))
	}
	return ids, rows.Err()
}
