package scheduler

import (
	"context"
	"math"
	"strings"

	"github.com/travigo/railops/pkg/conflicts"
	"github.com/travigo/railops/pkg/ctdf"
	"github.com/travigo/railops/pkg/dispatch"
	"github.com/travigo/railops/pkg/network"
	"github.com/travigo/railops/pkg/simulator"
)

const conflictTickPenalty = 5.0

type outcome struct {
	delay         float64
	energy        float64
	conflictTicks int
	conflictKeys  map[string]bool
	cost          float64
}

func conflictKey(conflict ctdf.Conflict) string {
	return string(conflict.Type) + "|" + conflict.LocationRef + "|" + strings.Join(conflict.TrainRefs, ",")
}

// rollout plays the plan forward over the horizon on private copies of the problem state. It
// returns false when the plan cannot be applied or the context ends first.
func (o *Optimizer) rollout(ctx context.Context, problem *Problem, plan []ctdf.Action) (outcome, bool) {
	net := problem.Network.Clone()
	tracker := problem.Tracker.Clone(net)
	trains, byIdentifier := cloneTrains(problem.Trains)

	state := dispatch.State{Network: net, Tracker: tracker, Trains: byIdentifier, Tick: problem.Tick + 1}
	for _, action := range plan {
		if err := dispatch.Apply(state, action); err != nil {
			return outcome{}, false
		}
	}

	sim := simulator.New(net, tracker, o.ranker, o.simulation)
	detector := conflicts.NewDetector(net, o.conflicts)

	result := outcome{conflictKeys: map[string]bool{}}
	for h := 1; h <= o.config.HorizonTicks; h++ {
		if ctx.Err() != nil {
			return outcome{}, false
		}

		tick := problem.Tick + int64(h)
		report := sim.Step(trains, tick, problem.TickDuration)
		result.delay += report.DelayMinutes
		result.energy += report.EnergyUnits

		for _, conflict := range detector.Detect(trains, tracker, tick, problem.TickDuration) {
			result.conflictTicks++
			result.conflictKeys[conflictKey(conflict)] = true
		}
	}

	for _, train := range trains {
		result.delay += remainingMinutes(net, train)
	}

	result.cost = o.cost(result, plan, problem.Weights)

	return result, true
}

// remainingMinutes is the unimpeded running time left to the end of the route
func remainingMinutes(net *network.Network, train *ctdf.Train) float64 {
	if train.Removed {
		return 0
	}

	minutes := 0.0
	index := train.RouteIndex

	if train.OnSection() {
		if section, exists := net.Section(train.CurrentSectionRef); exists {
			minutes += (1 - train.Progress) * section.LengthKm / simulator.LineSpeed(train, section) * 60
		}
		index++
	}

	for i := index; i+1 < len(train.Route); i++ {
		section, exists := net.SectionBetween(train.Route[i], train.Route[i+1])
		if !exists {
			continue
		}
		minutes += section.LengthKm / simulator.LineSpeed(train, section) * 60
	}

	return minutes
}

func (o *Optimizer) cost(result outcome, plan []ctdf.Action, weights ctdf.ObjectiveWeights) float64 {
	return weights.DelayWeight/100*result.delay +
		weights.EnergyWeight/100*result.energy +
		weights.StabilityWeight/100*stabilityPenalty(plan) +
		conflictTickPenalty*float64(result.conflictTicks)
}

// stabilityPenalty prices how much a plan disturbs the timetable
func stabilityPenalty(plan []ctdf.Action) float64 {
	penalty := 0.0

	for _, action := range plan {
		switch action.Type {
		case ctdf.ActionTypeHold:
			penalty += 2 + 0.5*float64(action.HoldTicks)
		case ctdf.ActionTypeReroute:
			penalty += 8
		case ctdf.ActionTypeReorder:
			penalty += 3
		case ctdf.ActionTypePlatformChange:
			penalty += 2
		}
	}

	return penalty
}

func round(value float64) float64 {
	return math.Round(value*100) / 100
}
