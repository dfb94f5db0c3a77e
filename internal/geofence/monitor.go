package geofence

import (
	"context"
	"log/slog"
	"sync"

	"visitid/internal/platform/metrics"
	dErrors "visitid/pkg/domain-errors"
)

// Stats are the aggregate dashboard counts over ledger-backed and
// demonstration entries combined. Derived, never persisted.
type Stats struct {
	Total  int `json:"total"`
	Safe   int `json:"safe"`
	Danger int `json:"danger"`
	Active int `json:"active"`
}

// StatsSource recomputes aggregate counts on demand.
type StatsSource interface {
	Stats(ctx context.Context) (Stats, error)
}

// Status is a snapshot of the monitor after a zone change.
type Status struct {
	ZoneID      ZoneID     `json:"zoneId,omitempty"`
	DisplayName string     `json:"displayName,omitempty"`
	Risk        RiskClass  `json:"risk,omitempty"`
	Coordinate  Coordinate `json:"coordinate"`
	Message     string     `json:"message"`
	AlertRaised bool       `json:"alertRaised"`
	Stats       Stats      `json:"stats"`
}

// Status messages keyed by risk class.
const (
	messageUnknown    = "Location not detected"
	messageSafe       = "You are in a safe zone. Enjoy your visit!"
	messageDanger     = "Warning: You have entered a high-risk area!"
	messageAttraction = "You are at a popular visitor attraction. Have fun!"
)

// Monitor tracks the client position against the zone registry. It owns its
// position state exclusively: SetZone completes the whole transition (state
// update, alert, stats recompute) before returning. A mutex serializes
// callers; transitions are otherwise unconstrained, any zone can follow any
// other.
type Monitor struct {
	mu        sync.Mutex
	zones     *Registry
	current   *Zone
	coord     Coordinate
	message   string
	lastStats Stats

	alerter Alerter
	stats   StatsSource
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type MonitorOption func(*Monitor)

func WithAlerter(a Alerter) MonitorOption {
	return func(m *Monitor) { m.alerter = a }
}

func WithStatsSource(s StatsSource) MonitorOption {
	return func(m *Monitor) { m.stats = s }
}

func WithLogger(l *slog.Logger) MonitorOption {
	return func(m *Monitor) { m.logger = l }
}

func WithMetrics(mx *metrics.Metrics) MonitorOption {
	return func(m *Monitor) { m.metrics = mx }
}

func NewMonitor(zones *Registry, opts ...MonitorOption) *Monitor {
	m := &Monitor{zones: zones, message: messageUnknown}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// SetZone moves the monitored position to the zone's reference coordinate,
// reclassifies risk, and raises an alert when the zone is danger-classified.
// Every call into a danger zone alerts, repeated entries included.
func (m *Monitor) SetZone(ctx context.Context, id ZoneID) (Status, error) {
	zone, ok := m.zones.Lookup(id)
	if !ok {
		return Status{}, dErrors.New(dErrors.CodeUnknownZone, "unknown zone: "+string(id))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.current = &zone
	m.coord = zone.Reference
	m.message = statusMessage(zone.Risk)

	alerted := zone.Risk == RiskDanger
	if alerted {
		if m.alerter != nil {
			m.alerter.Alert(ctx, dangerAlert)
		}
		m.metrics.IncGeofenceAlerts()
	}
	m.metrics.IncZoneTransitions(string(zone.Risk))

	if m.logger != nil {
		m.logger.InfoContext(ctx, "zone transition",
			"zone", string(zone.ID),
			"risk", string(zone.Risk),
			"alerted", alerted,
		)
	}

	m.recomputeStats(ctx)
	return m.statusLocked(alerted), nil
}

// Current returns the monitor's present status without changing state.
func (m *Monitor) Current(ctx context.Context) Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recomputeStats(ctx)
	return m.statusLocked(false)
}

// recomputeStats refreshes aggregate counts, keeping the previous snapshot on
// failure so a flaky source never blanks the dashboard.
func (m *Monitor) recomputeStats(ctx context.Context) {
	if m.stats == nil {
		return
	}
	stats, err := m.stats.Stats(ctx)
	if err != nil {
		if m.logger != nil {
			m.logger.WarnContext(ctx, "stats recompute failed", "error", err.Error())
		}
		return
	}
	m.lastStats = stats
}

func (m *Monitor) statusLocked(alerted bool) Status {
	status := Status{
		Coordinate:  m.coord,
		Message:     m.message,
		AlertRaised: alerted,
		Stats:       m.lastStats,
	}
	if m.current != nil {
		status.ZoneID = m.current.ID
		status.DisplayName = m.current.DisplayName
		status.Risk = m.current.Risk
	}
	return status
}

func statusMessage(risk RiskClass) string {
	switch risk {
	case RiskSafe:
		return messageSafe
	case RiskDanger:
		return messageDanger
	case RiskAttraction:
		return messageAttraction
	default:
		return messageUnknown
	}
}
