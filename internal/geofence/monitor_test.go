package geofence

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	dErrors "visitid/pkg/domain-errors"
)

type recordingAlerter struct {
	alerts []Alert
}

func (a *recordingAlerter) Alert(_ context.Context, alert Alert) {
	a.alerts = append(a.alerts, alert)
}

type fixedStats struct {
	stats Stats
	calls int
	err   error
}

func (s *fixedStats) Stats(context.Context) (Stats, error) {
	s.calls++
	return s.stats, s.err
}

type MonitorSuite struct {
	suite.Suite
	zones   *Registry
	alerter *recordingAlerter
	stats   *fixedStats
	monitor *Monitor
	ctx     context.Context
}

func (s *MonitorSuite) SetupTest() {
	var err error
	s.zones, err = NewRegistry(DefaultZones())
	s.Require().NoError(err)
	s.alerter = &recordingAlerter{}
	s.stats = &fixedStats{stats: Stats{Total: 4, Safe: 2, Danger: 1, Active: 4}}
	s.monitor = NewMonitor(s.zones,
		WithAlerter(s.alerter),
		WithStatsSource(s.stats),
	)
	s.ctx = context.Background()
}

func TestMonitorSuite(t *testing.T) {
	suite.Run(t, new(MonitorSuite))
}

func (s *MonitorSuite) TestUnknownZone() {
	_, err := s.monitor.SetZone(s.ctx, "atlantis")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeUnknownZone))

	// State stays at the initial unknown position.
	status := s.monitor.Current(s.ctx)
	s.Empty(status.ZoneID)
	s.Equal("Location not detected", status.Message)
}

func (s *MonitorSuite) TestSafeZoneDoesNotAlert() {
	status, err := s.monitor.SetZone(s.ctx, "safe")
	s.Require().NoError(err)

	s.Equal(ZoneID("safe"), status.ZoneID)
	s.Equal(RiskSafe, status.Risk)
	s.Equal("You are in a safe zone. Enjoy your visit!", status.Message)
	s.False(status.AlertRaised)
	s.Empty(s.alerter.alerts)
}

func (s *MonitorSuite) TestDangerZoneAlertsEveryEntry() {
	for i := 0; i < 3; i++ {
		status, err := s.monitor.SetZone(s.ctx, "danger")
		s.Require().NoError(err)
		s.True(status.AlertRaised)
		s.Equal("Warning: You have entered a high-risk area!", status.Message)
	}
	// No "already alerted" suppression: one alert per call.
	s.Len(s.alerter.alerts, 3)
	s.Equal("High Risk Zone Detected!", s.alerter.alerts[0].Title)
}

func (s *MonitorSuite) TestTransitionsUnconstrained() {
	_, err := s.monitor.SetZone(s.ctx, "danger")
	s.Require().NoError(err)

	status, err := s.monitor.SetZone(s.ctx, "safe")
	s.Require().NoError(err)
	s.Equal(RiskSafe, status.Risk)
	s.False(status.AlertRaised)

	status, err = s.monitor.SetZone(s.ctx, "attraction")
	s.Require().NoError(err)
	s.Equal(RiskAttraction, status.Risk)
	s.Equal("You are at a popular visitor attraction. Have fun!", status.Message)
	s.Len(s.alerter.alerts, 1)
}

func (s *MonitorSuite) TestPositionFollowsZoneReference() {
	status, err := s.monitor.SetZone(s.ctx, "danger")
	s.Require().NoError(err)

	zone, ok := s.zones.Lookup("danger")
	s.Require().True(ok)
	s.Equal(zone.Reference, status.Coordinate)
}

func (s *MonitorSuite) TestStatsRecomputedOnTransition() {
	before := s.stats.calls
	status, err := s.monitor.SetZone(s.ctx, "safe")
	s.Require().NoError(err)

	s.Greater(s.stats.calls, before)
	s.Equal(Stats{Total: 4, Safe: 2, Danger: 1, Active: 4}, status.Stats)
}

func (s *MonitorSuite) TestStatsFailureKeepsLastSnapshot() {
	_, err := s.monitor.SetZone(s.ctx, "safe")
	s.Require().NoError(err)

	s.stats.err = context.DeadlineExceeded
	status, err := s.monitor.SetZone(s.ctx, "attraction")
	s.Require().NoError(err)
	s.Equal(Stats{Total: 4, Safe: 2, Danger: 1, Active: 4}, status.Stats)
}
