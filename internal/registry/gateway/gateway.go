// Package gateway is the client-side face of the registry: it submits signed
// registrations to the ledger, recovers the assigned id from the write's
// receipt, and serves read queries and the display dashboard.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"visitid/internal/geofence"
	"visitid/internal/platform/config"
	"visitid/internal/platform/metrics"
	platformredis "visitid/internal/platform/redis"
	"visitid/internal/registry/ledger"
	"visitid/internal/registry/models"
	dErrors "visitid/pkg/domain-errors"
	"visitid/pkg/platform/sentinel"
)

// Gateway orchestrates provider, ledger, and dashboard assembly. One
// registration may be in flight per client session; reads are unrestricted.
type Gateway struct {
	provider Provider
	ledger   ledger.Ledger
	zones    *geofence.Registry

	cache    *platformredis.Client
	cacheTTL time.Duration
	logger   *slog.Logger
	metrics  *metrics.Metrics
	tracer   trace.Tracer

	mu       sync.Mutex
	inflight map[string]bool

	// defaultCoord positions ledger records that have no movement history;
	// classification stays deterministic for them.
	defaultCoord geofence.Coordinate
}

type Option func(*Gateway)

func WithCache(c *platformredis.Client) Option {
	return func(g *Gateway) { g.cache = c }
}

func WithLogger(l *slog.Logger) Option {
	return func(g *Gateway) { g.logger = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Gateway) { g.metrics = m }
}

// New constructs a Gateway and subscribes to provider identity changes so a
// switched identity immediately re-resolves its record.
func New(provider Provider, l ledger.Ledger, zones *geofence.Registry, opts ...Option) *Gateway {
	g := &Gateway{
		provider:     provider,
		ledger:       l,
		zones:        zones,
		cacheTTL:     config.DashboardCacheTTL,
		tracer:       otel.Tracer("visitid/registry/gateway"),
		inflight:     make(map[string]bool),
		defaultCoord: defaultCoordinate(zones),
	}
	for _, opt := range opts {
		opt(g)
	}

	if provider != nil {
		provider.Subscribe(g.onIdentityChange)
	}
	return g
}

// defaultCoordinate picks the first safe zone's reference, falling back to
// the first zone.
func defaultCoordinate(zones *geofence.Registry) geofence.Coordinate {
	all := zones.All()
	for _, zone := range all {
		if zone.Risk == geofence.RiskSafe {
			return zone.Reference
		}
	}
	return all[0].Reference
}

// onIdentityChange re-resolves the record for the newly active identity.
func (g *Gateway) onIdentityChange(owner models.OwnerAddress) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	record, err := g.FetchMyRecord(ctx, owner)
	if g.logger == nil {
		return
	}
	switch {
	case err != nil:
		g.logger.WarnContext(ctx, "record re-resolve failed after identity change",
			"owner", owner.String(), "error", err.Error())
	case record == nil:
		g.logger.InfoContext(ctx, "identity changed, no record registered",
			"owner", owner.String())
	default:
		g.logger.InfoContext(ctx, "identity changed, record resolved",
			"owner", owner.String(), "record_id", int64(record.ID))
	}
}

// SubmitRegistration signs and submits a registration for the active
// identity, waits for the ledger's confirmation, and returns the receipt
// carrying the assigned id. A second call on the same session while one is
// pending is rejected, never interleaved.
func (g *Gateway) SubmitRegistration(ctx context.Context, sessionID string, fields models.RegistrationFields) (models.Receipt, error) {
	ctx, span := g.tracer.Start(ctx, "gateway.SubmitRegistration")
	defer span.End()

	fields.Normalize()
	if err := fields.Validate(); err != nil {
		return models.Receipt{}, err
	}

	if !g.acquireSession(sessionID) {
		return models.Receipt{}, dErrors.New(dErrors.CodeConflict, "a registration is already in flight for this session")
	}
	defer g.releaseSession(sessionID)

	if g.provider == nil {
		return models.Receipt{}, dErrors.New(dErrors.CodeProviderUnavailable, "no signing provider configured")
	}

	owner, err := g.provider.ActiveIdentity(ctx)
	if err != nil {
		if errors.Is(err, ErrNoIdentity) {
			return models.Receipt{}, dErrors.New(dErrors.CodeProviderUnavailable, "no signing identity available")
		}
		return models.Receipt{}, dErrors.Wrap(err, dErrors.CodeProviderUnavailable, "failed to resolve active identity")
	}
	owner = models.NormalizeOwner(owner.String())
	span.SetAttributes(attribute.String("owner", owner.String()))

	// Cancellation during signing must leave the ledger untouched, so the
	// signing step strictly precedes the write.
	if _, err := g.provider.SignSubmission(ctx, owner, fields); err != nil {
		switch {
		case errors.Is(err, ErrSigningCancelled):
			return models.Receipt{}, dErrors.New(dErrors.CodeUserCancelled, "registration cancelled before submission")
		case errors.Is(err, ErrNoIdentity):
			return models.Receipt{}, dErrors.New(dErrors.CodeProviderUnavailable, "no signing identity available")
		default:
			return models.Receipt{}, dErrors.Wrap(err, dErrors.CodeNetwork, "failed to sign submission")
		}
	}

	receipt, err := g.ledger.Register(ctx, owner, fields)
	if err != nil {
		switch {
		case errors.Is(err, sentinel.ErrAlreadyUsed):
			g.metrics.IncRegistrationConflicts()
			return models.Receipt{}, dErrors.New(dErrors.CodeAlreadyRegistered, "this identity is already registered")
		case errors.Is(err, sentinel.ErrInvalidState):
			return models.Receipt{}, dErrors.New(dErrors.CodeValidation, "owner identity is required")
		case errors.Is(err, sentinel.ErrUnavailable):
			return models.Receipt{}, dErrors.Wrap(err, dErrors.CodeNetwork, "ledger unavailable")
		default:
			return models.Receipt{}, dErrors.Wrap(err, dErrors.CodeInternal, "registration failed")
		}
	}

	g.metrics.IncRegistrations()
	if g.logger != nil {
		g.logger.InfoContext(ctx, "registration confirmed",
			"record_id", int64(receipt.ID),
			"owner", owner.String(),
			"session_id", sessionID,
		)
	}
	span.SetAttributes(attribute.Int64("record_id", int64(receipt.ID)))
	return receipt, nil
}

func (g *Gateway) acquireSession(sessionID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.inflight[sessionID] {
		return false
	}
	g.inflight[sessionID] = true
	return true
}

func (g *Gateway) releaseSession(sessionID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.inflight, sessionID)
}

// FetchMyRecord resolves the owner's record, or nil when none is registered.
// "Not registered" is an answer, not an error.
func (g *Gateway) FetchMyRecord(ctx context.Context, owner models.OwnerAddress) (*models.IdentityRecord, error) {
	id, err := g.ledger.IDOf(ctx, models.NormalizeOwner(owner.String()))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "owner lookup failed")
	}
	if id == 0 {
		return nil, nil
	}
	record, err := g.getRecord(ctx, id)
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// getRecord reads through the optional redis cache. Records are immutable, so
// cached copies never need invalidation, only expiry.
func (g *Gateway) getRecord(ctx context.Context, id models.RecordID) (models.IdentityRecord, error) {
	key := recordCacheKey(id)
	if g.cache != nil {
		if raw, err := g.cache.Get(ctx, key).Bytes(); err == nil {
			var record models.IdentityRecord
			if err := json.Unmarshal(raw, &record); err == nil {
				return record, nil
			}
		}
	}

	record, err := g.ledger.Get(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return models.IdentityRecord{}, dErrors.New(dErrors.CodeNotFound, "record not found")
		}
		return models.IdentityRecord{}, dErrors.Wrap(err, dErrors.CodeInternal, "record lookup failed")
	}

	if g.cache != nil {
		if raw, err := json.Marshal(record); err == nil {
			g.cache.Set(ctx, key, raw, g.cacheTTL)
		}
	}
	return record, nil
}

func recordCacheKey(id models.RecordID) string {
	return "visitid:record:" + strconv.FormatInt(int64(id), 10)
}
