package scheduler

import (
	"time"

	"github.com/travigo/railops/pkg/ctdf"
	"github.com/travigo/railops/pkg/network"
	"github.com/travigo/railops/pkg/occupancy"
	"golang.org/x/exp/slices"
)

// Problem is a private copy of the engine state, nothing in it is shared with the live engine
type Problem struct {
	Network *network.Network
	Tracker *occupancy.Tracker
	Trains  []ctdf.Train

	Conflicts []ctdf.Conflict

	Tick         int64
	TickDuration time.Duration

	Weights ctdf.ObjectiveWeights
}

func NewProblem(net *network.Network, tracker *occupancy.Tracker, trains []*ctdf.Train, conflicts []ctdf.Conflict, tick int64, tickDuration time.Duration, weights ctdf.ObjectiveWeights) Problem {
	networkClone := net.Clone()

	problem := Problem{
		Network:      networkClone,
		Tracker:      tracker.Clone(networkClone),
		Conflicts:    make([]ctdf.Conflict, 0, len(conflicts)),
		Tick:         tick,
		TickDuration: tickDuration,
		Weights:      weights.Normalised(),
	}

	for _, train := range trains {
		if train.Removed {
			continue
		}
		problem.Trains = append(problem.Trains, cloneTrain(*train))
	}

	for _, conflict := range conflicts {
		conflict.TrainRefs = slices.Clone(conflict.TrainRefs)
		problem.Conflicts = append(problem.Conflicts, conflict)
	}

	return problem
}

func cloneTrain(train ctdf.Train) ctdf.Train {
	train.Route = slices.Clone(train.Route)
	return train
}

func cloneTrains(trains []ctdf.Train) ([]*ctdf.Train, map[string]*ctdf.Train) {
	list := make([]*ctdf.Train, 0, len(trains))
	byIdentifier := make(map[string]*ctdf.Train, len(trains))

	for _, train := range trains {
		train := cloneTrain(train)
		list = append(list, &train)
		byIdentifier[train.PrimaryIdentifier] = &train
	}

	return list, byIdentifier
}

func (p *Problem) train(identifier string) *ctdf.Train {
	for i := range p.Trains {
		if p.Trains[i].PrimaryIdentifier == identifier {
			return &p.Trains[i]
		}
	}

	return nil
}
