// Package geofence classifies a monitored position against predefined risk
// zones and raises alerts on entry into dangerous areas.
package geofence

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
)

// RiskClass is a zone's risk classification.
type RiskClass string

const (
	RiskSafe       RiskClass = "safe"
	RiskDanger     RiskClass = "danger"
	RiskAttraction RiskClass = "attraction"
)

// ZoneID names a geofence zone.
type ZoneID string

// Coordinate is a WGS84 point.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Zone is a named area with a reference coordinate and a risk classification.
// The zone set is loaded once at startup and immutable for the process
// lifetime.
type Zone struct {
	ID          ZoneID     `json:"id"`
	DisplayName string     `json:"displayName"`
	Reference   Coordinate `json:"referenceCoordinate"`
	Risk        RiskClass  `json:"riskClass"`
}

// DefaultZones returns the built-in demonstration zone set.
func DefaultZones() []Zone {
	return []Zone{
		{ID: "safe", DisplayName: "Safe Visitor Zone", Reference: Coordinate{Lat: 40.7128, Lng: -74.0060}, Risk: RiskSafe},
		{ID: "danger", DisplayName: "High Risk Area", Reference: Coordinate{Lat: 40.7589, Lng: -73.9851}, Risk: RiskDanger},
		{ID: "attraction", DisplayName: "Popular Visitor Attraction", Reference: Coordinate{Lat: 40.7505, Lng: -73.9934}, Risk: RiskAttraction},
	}
}

// Registry holds the static zone set.
type Registry struct {
	zones map[ZoneID]Zone
	order []ZoneID
}

// NewRegistry validates and indexes the zone set.
func NewRegistry(zones []Zone) (*Registry, error) {
	if len(zones) == 0 {
		return nil, fmt.Errorf("zone set must not be empty")
	}
	r := &Registry{zones: make(map[ZoneID]Zone, len(zones))}
	for _, zone := range zones {
		if zone.ID == "" {
			return nil, fmt.Errorf("zone id must not be empty")
		}
		if _, dup := r.zones[zone.ID]; dup {
			return nil, fmt.Errorf("duplicate zone id %q", zone.ID)
		}
		switch zone.Risk {
		case RiskSafe, RiskDanger, RiskAttraction:
		default:
			return nil, fmt.Errorf("zone %q has unknown risk class %q", zone.ID, zone.Risk)
		}
		r.zones[zone.ID] = zone
		r.order = append(r.order, zone.ID)
	}
	return r, nil
}

// LoadRegistry reads a zone set from a JSON file, falling back to the
// built-in set when path is empty.
func LoadRegistry(path string) (*Registry, error) {
	if path == "" {
		return NewRegistry(DefaultZones())
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read zones file: %w", err)
	}
	var zones []Zone
	if err := json.Unmarshal(raw, &zones); err != nil {
		return nil, fmt.Errorf("parse zones file: %w", err)
	}
	return NewRegistry(zones)
}

// Lookup returns the zone for id.
func (r *Registry) Lookup(id ZoneID) (Zone, bool) {
	zone, ok := r.zones[id]
	return zone, ok
}

// All returns zones in declaration order.
func (r *Registry) All() []Zone {
	out := make([]Zone, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.zones[id])
	}
	return out
}

// Classify maps a coordinate to the zone whose reference point is nearest.
// It is deterministic and applied uniformly to every classified entry, so
// dashboard output is reproducible.
func (r *Registry) Classify(c Coordinate) Zone {
	var best Zone
	bestDist := math.Inf(1)
	for _, id := range r.order {
		zone := r.zones[id]
		d := squaredDistance(c, zone.Reference)
		if d < bestDist {
			bestDist = d
			best = zone
		}
	}
	return best
}

// squaredDistance is enough for nearest-reference comparison at demo scale;
// no need for great-circle math.
func squaredDistance(a, b Coordinate) float64 {
	dLat := a.Lat - b.Lat
	dLng := a.Lng - b.Lng
	return dLat*dLat + dLng*dLng
}
