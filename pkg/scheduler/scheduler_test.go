package scheduler

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/travigo/railops/pkg/config"
	"github.com/travigo/railops/pkg/conflicts"
	"github.com/travigo/railops/pkg/ctdf"
	"github.com/travigo/railops/pkg/network"
	"github.com/travigo/railops/pkg/occupancy"
	"github.com/travigo/railops/pkg/priority"
)

type fixture struct {
	config  config.Config
	ranker  *priority.Ranker
	network *network.Network
	tracker *occupancy.Tracker
	trains  []*ctdf.Train
}

func newFixture(t *testing.T, net *network.Network, trains []*ctdf.Train) *fixture {
	cfg := config.Default()

	ranker, err := priority.NewRanker(cfg.Priority.Classes, "")
	require.NoError(t, err)

	tracker := occupancy.NewTracker(net)
	for _, train := range trains {
		if train.AtStation() {
			platform, err := tracker.TryOccupyPlatform(train.PrimaryIdentifier, train.CurrentStationRef)
			require.NoError(t, err)
			train.Platform = platform
		}
	}

	return &fixture{
		config:  cfg,
		ranker:  ranker,
		network: net,
		tracker: tracker,
		trains:  trains,
	}
}

func (f *fixture) problem() Problem {
	detector := conflicts.NewDetector(f.network, f.config.Conflicts)
	found := detector.Detect(f.trains, f.tracker, 0, f.config.TickDuration)

	return NewProblem(f.network, f.tracker, f.trains, found, 0, f.config.TickDuration, f.config.Optimizer.Objectives)
}

func (f *fixture) optimizer() *Optimizer {
	return NewOptimizer(f.config, f.ranker)
}

func twoTrains(t *testing.T) *fixture {
	net, err := network.Load(
		[]ctdf.Station{
			{PrimaryIdentifier: "A", Platforms: 2},
			{PrimaryIdentifier: "B", Platforms: 2},
		},
		[]ctdf.TrackSection{
			{PrimaryIdentifier: "AB", FromStationRef: "A", ToStationRef: "B", LengthKm: 5, MaxSpeedKmh: 100, Capacity: 1},
		},
	)
	require.NoError(t, err)

	return newFixture(t, net, []*ctdf.Train{
		{PrimaryIdentifier: "T1", Type: ctdf.TrainTypeHighSpeed, Status: ctdf.TrainStatusOnTime, Route: []string{"A", "B"}, CurrentStationRef: "A"},
		{PrimaryIdentifier: "T2", Type: ctdf.TrainTypeRegional, Status: ctdf.TrainStatusOnTime, Route: []string{"A", "B"}, CurrentStationRef: "A"},
	})
}

// busyLine has pairs of trains fighting over every section of a long single track line
func busyLine(t *testing.T) *fixture {
	var stations []ctdf.Station
	var tracks []ctdf.TrackSection
	var trains []*ctdf.Train

	const length = 30
	for i := 0; i < length; i++ {
		stations = append(stations, ctdf.Station{PrimaryIdentifier: fmt.Sprintf("S%02d", i), Platforms: 4})
		if i > 0 {
			tracks = append(tracks, ctdf.TrackSection{
				PrimaryIdentifier: fmt.Sprintf("S%02d-S%02d", i-1, i),
				FromStationRef:    fmt.Sprintf("S%02d", i-1),
				ToStationRef:      fmt.Sprintf("S%02d", i),
				LengthKm:          20,
				MaxSpeedKmh:       120,
				Capacity:          1,
			})
		}
	}

	for i := 0; i < length-1; i++ {
		var route []string
		for j := i; j < length; j++ {
			route = append(route, fmt.Sprintf("S%02d", j))
		}

		for _, trainType := range []ctdf.TrainType{ctdf.TrainTypeRegional, ctdf.TrainTypeFreight} {
			trains = append(trains, &ctdf.Train{
				PrimaryIdentifier: fmt.Sprintf("%s-%02d", trainType, i),
				Type:              trainType,
				Status:            ctdf.TrainStatusOnTime,
				Route:             route,
				CurrentStationRef: route[0],
			})
		}
	}

	net, err := network.Load(stations, tracks)
	require.NoError(t, err)

	return newFixture(t, net, trains)
}

func TestOptimizeNoConflicts(t *testing.T) {
	f := twoTrains(t)
	f.trains = f.trains[:1]

	result := f.optimizer().Optimize(context.Background(), f.problem())

	assert.Equal(t, ctdf.OptimizationStatusComplete, result.Status)
	assert.Equal(t, ctdf.SolverTypeNone, result.SolverType)
	assert.NotNil(t, result.Actions)
	assert.Empty(t, result.Actions)
	assert.True(t, result.Score.IsZero())
}

func TestOptimizeTwoTrains(t *testing.T) {
	f := twoTrains(t)
	problem := f.problem()
	require.Len(t, problem.Conflicts, 1)

	result := f.optimizer().Optimize(context.Background(), problem)

	assert.Equal(t, ctdf.OptimizationStatusComplete, result.Status)
	assert.Equal(t, ctdf.SolverTypeHybridAnnealing, result.SolverType)
	assert.Equal(t, f.config.Optimizer.MaxIterations, result.Iterations)

	require.NotEmpty(t, result.Actions)
	assert.Equal(t, "T2", result.Actions[0].TrainRef)
	assert.Equal(t, ctdf.ActionTypeHold, result.Actions[0].Type)
	assert.Len(t, result.Changes, len(result.Actions))
	assert.Equal(t, 1, result.Score.ConflictsResolved)
	assert.NotEmpty(t, result.Explanation)

	// The live state is untouched
	assert.Equal(t, "A", f.trains[0].CurrentStationRef)
	assert.Equal(t, int64(0), f.trains[1].HoldUntilTick)
	assert.Empty(t, f.tracker.Occupants("AB"))
}

func TestOptimizeIsDeterministic(t *testing.T) {
	f := twoTrains(t)

	first := f.optimizer().Optimize(context.Background(), f.problem())
	second := f.optimizer().Optimize(context.Background(), f.problem())

	assert.Equal(t, first.Actions, second.Actions)
	assert.Equal(t, first.Score, second.Score)
}

func TestOptimizeNeverWorseThanBaseline(t *testing.T) {
	definition, err := network.BundledDefinition("demo")
	require.NoError(t, err)
	net, err := definition.Load()
	require.NoError(t, err)

	var trains []*ctdf.Train
	for i := range definition.Trains {
		train := definition.Trains[i]
		trains = append(trains, &train)
	}

	f := newFixture(t, net, nil)
	f.trains = trains
	for _, train := range trains {
		if train.AtStation() {
			platform, err := f.tracker.TryOccupyPlatform(train.PrimaryIdentifier, train.CurrentStationRef)
			require.NoError(t, err)
			train.Platform = platform
		} else {
			require.NoError(t, f.tracker.TryEnter(train.PrimaryIdentifier, train.CurrentSectionRef))
		}
	}
	require.NoError(t, net.ApplyBlock("TRK-CE", true))

	// The freight at STN-E is booked over the blocked section
	problem := f.problem()
	assert.Contains(t, problem.Conflicts, ctdf.Conflict{
		Type:        ctdf.ConflictTypeBlockedRoute,
		TrainRefs:   []string{"TR-999"},
		LocationRef: "TRK-CE",
		Severity:    ctdf.SeverityHigh,
	})

	optimizer := f.optimizer()
	result := optimizer.Optimize(context.Background(), problem)

	baseline, ok := optimizer.rollout(context.Background(), &problem, nil)
	require.True(t, ok)
	best, ok := optimizer.rollout(context.Background(), &problem, result.Actions)
	require.True(t, ok)

	assert.LessOrEqual(t, best.cost, baseline.cost)
	assert.Contains(t, result.Actions, ctdf.Action{
		Type:     ctdf.ActionTypeReroute,
		TrainRef: "TR-999",
		Route:    []string{"STN-E", "STN-D", "STN-C", "STN-A"},
		Reason:   "Avoid TRK-CE",
	})
}

func TestOptimizeStopsAtBudget(t *testing.T) {
	f := busyLine(t)
	f.config.Optimizer.Budget = 50 * time.Millisecond
	f.config.Optimizer.MaxIterations = 10_000_000
	f.config.Optimizer.HorizonTicks = 200

	problem := f.problem()
	require.NotEmpty(t, problem.Conflicts)

	start := time.Now()
	result := f.optimizer().Optimize(context.Background(), problem)
	elapsed := time.Since(start)

	assert.Equal(t, ctdf.OptimizationStatusPartial, result.Status)
	assert.Less(t, elapsed, 500*time.Millisecond)
	assert.NotNil(t, result.Actions)
}

func TestNeighbourKeepsOneActionPerTrain(t *testing.T) {
	f := twoTrains(t)
	problem := f.problem()
	optimizer := f.optimizer()

	var candidatePool []ctdf.Action
	for _, conflict := range problem.Conflicts {
		candidatePool = append(candidatePool, optimizer.candidates(&problem, conflict)...)
	}
	require.NotEmpty(t, candidatePool)

	rng := newTestRand()
	plan := []ctdf.Action{}
	for i := 0; i < 500; i++ {
		next := neighbour(rng, plan, candidatePool)
		if next == nil {
			continue
		}
		plan = next

		seen := map[string]bool{}
		for _, action := range plan {
			assert.False(t, seen[action.TrainRef], "duplicate action for %s", action.TrainRef)
			seen[action.TrainRef] = true
			assert.NoError(t, action.Validate())
		}
	}
}
