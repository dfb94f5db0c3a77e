package gateway

import (
	"context"
	"strconv"

	"visitid/internal/geofence"
	dErrors "visitid/pkg/domain-errors"
)

// DefaultDashboardLimit caps ledger records shown on the dashboard.
const DefaultDashboardLimit = 10

// DashboardEntry merges identity-record projections with demonstration
// entries for display. Derived on demand, never stored.
type DashboardEntry struct {
	ID         string              `json:"id"`
	Name       string              `json:"name"`
	Active     bool                `json:"isActive"`
	Demo       bool                `json:"demo"`
	Coordinate geofence.Coordinate `json:"coordinate"`
	ZoneID     geofence.ZoneID     `json:"zoneId"`
	Risk       geofence.RiskClass  `json:"risk"`
}

// demoEntry is a fixed demonstration record shown alongside ledger records.
type demoEntry struct {
	id         string
	name       string
	coordinate geofence.Coordinate
}

// The demonstration set mirrors the demo roster; coordinates sit on zone
// references so classification reproduces the intended safe/danger mix.
var demoEntries = []demoEntry{
	{id: "M1", name: "Alice Johnson", coordinate: geofence.Coordinate{Lat: 40.7128, Lng: -74.0060}},
	{id: "M2", name: "Bob Smith", coordinate: geofence.Coordinate{Lat: 40.7589, Lng: -73.9851}},
	{id: "M3", name: "Carol Davis", coordinate: geofence.Coordinate{Lat: 40.7128, Lng: -74.0060}},
}

// FetchDashboard reads up to min(count, limit) ledger records, appends the
// demonstration set, and classifies every entry through the same
// deterministic zone classifier. Display aggregation only, not a data source
// of record.
func (g *Gateway) FetchDashboard(ctx context.Context, limit int) ([]DashboardEntry, error) {
	if limit <= 0 {
		limit = DefaultDashboardLimit
	}

	count, err := g.ledger.Count(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "dashboard count failed")
	}
	ids, err := g.ledger.AllIDs(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "dashboard id listing failed")
	}

	n := min(count, limit)
	entries := make([]DashboardEntry, 0, n+len(demoEntries))
	for _, id := range ids[:n] {
		record, err := g.getRecord(ctx, id)
		if err != nil {
			return nil, err
		}
		entries = append(entries, g.classified(DashboardEntry{
			ID:         strconv.FormatInt(int64(record.ID), 10),
			Name:       record.Name,
			Active:     record.IsActive,
			Coordinate: g.defaultCoord,
		}))
	}

	for _, demo := range demoEntries {
		entries = append(entries, g.classified(DashboardEntry{
			ID:         demo.id,
			Name:       demo.name,
			Active:     true,
			Demo:       true,
			Coordinate: demo.coordinate,
		}))
	}
	return entries, nil
}

func (g *Gateway) classified(entry DashboardEntry) DashboardEntry {
	zone := g.zones.Classify(entry.Coordinate)
	entry.ZoneID = zone.ID
	entry.Risk = zone.Risk
	return entry
}

// Stats recomputes the aggregate dashboard counts over all ledger records and
// the demonstration set. Implements geofence.StatsSource.
func (g *Gateway) Stats(ctx context.Context) (geofence.Stats, error) {
	ids, err := g.ledger.AllIDs(ctx)
	if err != nil {
		return geofence.Stats{}, dErrors.Wrap(err, dErrors.CodeInternal, "stats id listing failed")
	}

	var stats geofence.Stats
	tally := func(risk geofence.RiskClass, active bool) {
		stats.Total++
		if active {
			stats.Active++
		}
		switch risk {
		case geofence.RiskSafe:
			stats.Safe++
		case geofence.RiskDanger:
			stats.Danger++
		}
	}

	defaultRisk := g.zones.Classify(g.defaultCoord).Risk
	for _, id := range ids {
		record, err := g.getRecord(ctx, id)
		if err != nil {
			return geofence.Stats{}, err
		}
		tally(defaultRisk, record.IsActive)
	}
	for _, demo := range demoEntries {
		tally(g.zones.Classify(demo.coordinate).Risk, true)
	}
	return stats, nil
}
