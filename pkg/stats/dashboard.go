package stats

import (
	"math"

	"github.com/travigo/railops/pkg/ctdf"
)

type DashboardStats struct {
	Tick int64

	ActiveTrains   int
	OnTimeTrains   int
	DelayedTrains  int
	CriticalTrains int
	StoppedTrains  int

	OnTimePercentage    float64
	AverageDelayMinutes float64

	TrainTypes map[ctdf.TrainType]int

	OpenIncidents     int
	IncidentSeverity  map[ctdf.Severity]int
	OpenConflicts     int
	BlockedSections   int
	ClosedPlatforms   int
	SectionsOccupied  int
	StationsAvailable int
}

// Calculate summarises a snapshot for the dashboard
func Calculate(snapshot ctdf.Snapshot) DashboardStats {
	dashboard := DashboardStats{
		Tick:             snapshot.Tick,
		TrainTypes:       map[ctdf.TrainType]int{},
		IncidentSeverity: map[ctdf.Severity]int{},
		OpenConflicts:    len(snapshot.Conflicts),
	}

	totalDelay := 0.0
	occupied := map[string]bool{}

	for _, train := range snapshot.Trains {
		if train.Removed {
			continue
		}

		dashboard.ActiveTrains++
		dashboard.TrainTypes[train.Type]++
		totalDelay += train.DelayMinutes

		switch train.Status {
		case ctdf.TrainStatusOnTime:
			dashboard.OnTimeTrains++
		case ctdf.TrainStatusDelayed:
			dashboard.DelayedTrains++
		case ctdf.TrainStatusCritical:
			dashboard.CriticalTrains++
		case ctdf.TrainStatusStopped:
			dashboard.StoppedTrains++
		}

		if train.OnSection() {
			occupied[train.CurrentSectionRef] = true
		}
	}

	if dashboard.ActiveTrains > 0 {
		dashboard.OnTimePercentage = roundTo(float64(dashboard.OnTimeTrains)/float64(dashboard.ActiveTrains)*100, 1)
		dashboard.AverageDelayMinutes = roundTo(totalDelay/float64(dashboard.ActiveTrains), 1)
	}

	for _, incident := range snapshot.Incidents {
		if incident.IsOpen() {
			dashboard.OpenIncidents++
			dashboard.IncidentSeverity[incident.Severity]++
		}
	}

	for _, track := range snapshot.Tracks {
		if track.Blocked {
			dashboard.BlockedSections++
		}
	}
	dashboard.SectionsOccupied = len(occupied)

	for _, station := range snapshot.Stations {
		dashboard.ClosedPlatforms += station.ClosedPlatforms
		if station.AvailablePlatforms() > 0 {
			dashboard.StationsAvailable++
		}
	}

	return dashboard
}

func roundTo(value float64, places int) float64 {
	shift := math.Pow(10, float64(places))
	return math.Round(value*shift) / shift
}
