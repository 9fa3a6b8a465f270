package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/travigo/railops/pkg/ctdf"
)

func TestCalculate(t *testing.T) {
	snapshot := ctdf.Snapshot{
		Tick: 12,
		Stations: []ctdf.Station{
			{PrimaryIdentifier: "A", Platforms: 2, ClosedPlatforms: 1},
			{PrimaryIdentifier: "B", Platforms: 1, ClosedPlatforms: 1},
		},
		Tracks: []ctdf.TrackSection{
			{PrimaryIdentifier: "AB", Blocked: true},
			{PrimaryIdentifier: "BC"},
		},
		Trains: []ctdf.Train{
			{PrimaryIdentifier: "T1", Type: ctdf.TrainTypeHighSpeed, Status: ctdf.TrainStatusOnTime, CurrentSectionRef: "BC"},
			{PrimaryIdentifier: "T2", Type: ctdf.TrainTypeRegional, Status: ctdf.TrainStatusDelayed, DelayMinutes: 15, CurrentStationRef: "A"},
			{PrimaryIdentifier: "T3", Type: ctdf.TrainTypeFreight, Status: ctdf.TrainStatusCritical, DelayMinutes: 30, CurrentSectionRef: "BC"},
			{PrimaryIdentifier: "T4", Type: ctdf.TrainTypeFreight, Status: ctdf.TrainStatusOnTime, CurrentStationRef: "B"},
		},
		Incidents: []ctdf.Incident{
			{PrimaryIdentifier: "INC-001", Severity: ctdf.SeverityHigh, Status: ctdf.IncidentStatusOpen},
			{PrimaryIdentifier: "INC-002", Severity: ctdf.SeverityLow, Status: ctdf.IncidentStatusResolved},
		},
		Conflicts: []ctdf.Conflict{
			{Type: ctdf.ConflictTypeSectionCapacity, LocationRef: "BC"},
		},
	}

	dashboard := Calculate(snapshot)

	assert.Equal(t, int64(12), dashboard.Tick)
	assert.Equal(t, 4, dashboard.ActiveTrains)
	assert.Equal(t, 2, dashboard.OnTimeTrains)
	assert.Equal(t, 1, dashboard.DelayedTrains)
	assert.Equal(t, 1, dashboard.CriticalTrains)
	assert.Equal(t, 50.0, dashboard.OnTimePercentage)
	assert.Equal(t, 11.3, dashboard.AverageDelayMinutes)
	assert.Equal(t, 2, dashboard.TrainTypes[ctdf.TrainTypeFreight])
	assert.Equal(t, 1, dashboard.OpenIncidents)
	assert.Equal(t, 1, dashboard.IncidentSeverity[ctdf.SeverityHigh])
	assert.Equal(t, 1, dashboard.OpenConflicts)
	assert.Equal(t, 1, dashboard.BlockedSections)
	assert.Equal(t, 1, dashboard.SectionsOccupied)
	assert.Equal(t, 2, dashboard.ClosedPlatforms)
	assert.Equal(t, 1, dashboard.StationsAvailable)
}

func TestCalculateEmpty(t *testing.T) {
	dashboard := Calculate(ctdf.Snapshot{})

	assert.Zero(t, dashboard.ActiveTrains)
	assert.Zero(t, dashboard.OnTimePercentage)
}

func TestTrendLimit(t *testing.T) {
	trend := NewTrend(3)

	for tick := int64(1); tick <= 5; tick++ {
		trend.Add(DashboardStats{Tick: tick, OnTimePercentage: float64(tick * 10)})
	}

	points := trend.Points()
	assert.Len(t, points, 3)
	assert.Equal(t, int64(3), points[0].Tick)
	assert.Equal(t, 50.0, points[2].OnTimePercentage)
}
