package scheduler

import (
	"math"
	"strconv"

	"github.com/travigo/railops/pkg/ctdf"
	"github.com/travigo/railops/pkg/simulator"
	"golang.org/x/exp/slices"
)

// candidates lists the single actions that could relieve a conflict
func (o *Optimizer) candidates(problem *Problem, conflict ctdf.Conflict) []ctdf.Action {
	switch conflict.Type {
	case ctdf.ConflictTypeSectionCapacity:
		return o.sectionCandidates(problem, conflict)
	case ctdf.ConflictTypeBlockedRoute, ctdf.ConflictTypeStarvation:
		return o.starvedCandidates(problem, conflict)
	case ctdf.ConflictTypePlatformContention:
		return o.platformCandidates(problem, conflict)
	default:
		return nil
	}
}

func (o *Optimizer) involved(problem *Problem, conflict ctdf.Conflict) []*ctdf.Train {
	var trains []*ctdf.Train

	for _, trainRef := range conflict.TrainRefs {
		if train := problem.train(trainRef); train != nil {
			trains = append(trains, train)
		}
	}

	return trains
}

func (o *Optimizer) sectionCandidates(problem *Problem, conflict ctdf.Conflict) []ctdf.Action {
	section, exists := problem.Network.Section(conflict.LocationRef)
	if !exists {
		return nil
	}

	trains := o.involved(problem, conflict)
	var actions []ctdf.Action

	for _, train := range trains {
		if !train.AtStation() {
			continue
		}

		// How long until everyone ranked ahead of this train is through the section
		clearTicks := 1
		for _, other := range trains {
			if other == train {
				continue
			}

			switch {
			case other.OnSection():
				clearTicks = max(clearTicks, simulator.TicksToArrive(other, section, problem.TickDuration))
			case o.ranker.Before(other, train):
				clearTicks = max(clearTicks, traversalTicks(other, section, problem))
			default:
				actions = append(actions, ctdf.Action{
					Type:            ctdf.ActionTypeReorder,
					TrainRef:        train.PrimaryIdentifier,
					AheadOfTrainRef: other.PrimaryIdentifier,
					Reason:          "Send " + train.PrimaryIdentifier + " through " + section.PrimaryIdentifier + " first",
				})
			}
		}

		actions = append(actions, ctdf.Action{
			Type:      ctdf.ActionTypeHold,
			TrainRef:  train.PrimaryIdentifier,
			HoldTicks: clearTicks,
			Reason:    "Wait for " + section.PrimaryIdentifier + " to clear",
		})
		if clearTicks > 1 {
			actions = append(actions, ctdf.Action{
				Type:      ctdf.ActionTypeHold,
				TrainRef:  train.PrimaryIdentifier,
				HoldTicks: 1,
				Reason:    "Stagger entry to " + section.PrimaryIdentifier,
			})
		}

		if reroute, ok := o.rerouteAround(problem, train, section.PrimaryIdentifier); ok {
			actions = append(actions, reroute)
		}
	}

	return actions
}

func (o *Optimizer) starvedCandidates(problem *Problem, conflict ctdf.Conflict) []ctdf.Action {
	var actions []ctdf.Action

	for _, train := range o.involved(problem, conflict) {
		if !train.AtStation() {
			continue
		}

		section, exists := problem.Network.SectionBetween(train.CurrentStationRef, train.NextStationRef())
		if !exists {
			continue
		}

		if reroute, ok := o.rerouteAround(problem, train, section.PrimaryIdentifier); ok {
			actions = append(actions, reroute)
		}

		// Jump the queue of trains waiting for the same section
		for i := range problem.Trains {
			other := &problem.Trains[i]
			if other == train || !other.AtStation() || other.CurrentStationRef != train.CurrentStationRef {
				continue
			}
			if other.NextStationRef() != train.NextStationRef() {
				continue
			}

			actions = append(actions, ctdf.Action{
				Type:            ctdf.ActionTypeReorder,
				TrainRef:        train.PrimaryIdentifier,
				AheadOfTrainRef: other.PrimaryIdentifier,
				Reason:          train.PrimaryIdentifier + " has been waiting for " + section.PrimaryIdentifier,
			})
		}
	}

	return actions
}

func (o *Optimizer) platformCandidates(problem *Problem, conflict ctdf.Conflict) []ctdf.Action {
	stationRef := conflict.LocationRef
	available := problem.Network.AvailablePlatforms(stationRef)
	occupants := problem.Tracker.PlatformOccupants(stationRef)

	freePlatform := 0
	for slot := 0; slot < available && slot < len(occupants); slot++ {
		if occupants[slot] == "" {
			freePlatform = slot + 1
			break
		}
	}

	var actions []ctdf.Action

	for _, train := range o.involved(problem, conflict) {
		if !train.AtStation() || train.CurrentStationRef != stationRef {
			continue
		}

		if train.Platform > available && freePlatform > 0 {
			actions = append(actions, ctdf.Action{
				Type:       ctdf.ActionTypePlatformChange,
				TrainRef:   train.PrimaryIdentifier,
				StationRef: stationRef,
				Platform:   freePlatform,
				Reason:     "Platform " + strconv.Itoa(train.Platform) + " at " + stationRef + " is closed",
			})
		}
	}

	// Meter trains still upstream of the station
	for i := range problem.Trains {
		train := &problem.Trains[i]
		if !train.AtStation() || train.AtTerminus() || train.NextStationRef() != stationRef {
			continue
		}

		actions = append(actions, ctdf.Action{
			Type:      ctdf.ActionTypeHold,
			TrainRef:  train.PrimaryIdentifier,
			HoldTicks: max(1, o.conflicts.PlatformLookaheadTicks),
			Reason:    "Wait for a platform at " + stationRef,
		})
	}

	return actions
}

// rerouteAround plans the quickest way to the end of the route without using the section
func (o *Optimizer) rerouteAround(problem *Problem, train *ctdf.Train, sectionRef string) (ctdf.Action, bool) {
	if !train.AtStation() || len(train.Route) == 0 {
		return ctdf.Action{}, false
	}

	destination := train.Route[len(train.Route)-1]
	path, err := problem.Network.ShortestPath(train.CurrentStationRef, destination, func(section ctdf.TrackSection) bool {
		return section.PrimaryIdentifier == sectionRef
	})
	if err != nil || len(path.StationRefs) < 2 {
		return ctdf.Action{}, false
	}

	if slices.Equal(path.StationRefs, train.Route[train.RouteIndex:]) {
		return ctdf.Action{}, false
	}

	return ctdf.Action{
		Type:     ctdf.ActionTypeReroute,
		TrainRef: train.PrimaryIdentifier,
		Route:    path.StationRefs,
		Reason:   "Avoid " + sectionRef,
	}, true
}

func traversalTicks(train *ctdf.Train, section ctdf.TrackSection, problem *Problem) int {
	minutes := section.LengthKm / simulator.LineSpeed(train, section) * 60
	tickMinutes := problem.TickDuration.Minutes()
	if tickMinutes <= 0 {
		return 1
	}

	return max(1, int(math.Ceil(minutes/tickMinutes)))
}
