package scheduler

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/travigo/railops/pkg/config"
	"github.com/travigo/railops/pkg/ctdf"
)

func newTestRand() *rand.Rand {
	return rand.New(rand.NewSource(7))
}

func slowFixture(t *testing.T) *fixture {
	f := busyLine(t)
	f.config.Optimizer.Budget = 10 * time.Second
	f.config.Optimizer.MaxIterations = 10_000_000
	f.config.Optimizer.HorizonTicks = 200

	return f
}

func await(t *testing.T, run *Run) ctdf.OptimizationResult {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	result, err := run.Await(ctx)
	require.NoError(t, err)

	return result
}

func TestRunnerCompletes(t *testing.T) {
	f := twoTrains(t)

	completed := make(chan ctdf.OptimizationResult, 1)
	runner := NewRunner(f.optimizer(), config.BusyPolicyReject, nil, func(result ctdf.OptimizationResult) {
		completed <- result
	})

	run, err := runner.Submit(context.Background(), f.problem())
	require.NoError(t, err)

	result := await(t, run)
	assert.Equal(t, run.Identifier, result.RunIdentifier)
	assert.Equal(t, ctdf.OptimizationStatusComplete, result.Status)

	stored, err := runner.Result(context.Background(), run.Identifier)
	require.NoError(t, err)
	assert.Equal(t, result.Actions, stored.Actions)

	select {
	case notified := <-completed:
		assert.Equal(t, run.Identifier, notified.RunIdentifier)
	case <-time.After(5 * time.Second):
		t.Fatal("completion callback not called")
	}

	_, err = runner.Result(context.Background(), "OPT-missing")
	assert.ErrorIs(t, err, ctdf.ErrUnknownRun)
}

func TestRunnerRejectsWhileBusy(t *testing.T) {
	f := slowFixture(t)
	runner := NewRunner(f.optimizer(), config.BusyPolicyReject, nil, nil)

	run, err := runner.Submit(context.Background(), f.problem())
	require.NoError(t, err)

	pending, err := runner.Result(context.Background(), run.Identifier)
	require.NoError(t, err)
	assert.Equal(t, ctdf.OptimizationStatusPending, pending.Status)

	_, err = runner.Submit(context.Background(), f.problem())
	assert.ErrorIs(t, err, ctdf.ErrOptimizerBusy)

	runner.Stop()
	assert.Equal(t, ctdf.OptimizationStatusCancelled, await(t, run).Status)

	// Free again once the run is over
	next, err := runner.Submit(context.Background(), f.problem())
	require.NoError(t, err)
	runner.Stop()
	await(t, next)
}

func TestRunnerLatestWins(t *testing.T) {
	f := slowFixture(t)
	runner := NewRunner(f.optimizer(), config.BusyPolicyLatestWins, nil, nil)

	first, err := runner.Submit(context.Background(), f.problem())
	require.NoError(t, err)

	second, err := runner.Submit(context.Background(), f.problem())
	require.NoError(t, err)
	assert.NotEqual(t, first.Identifier, second.Identifier)

	firstResult := await(t, first)
	assert.Equal(t, ctdf.OptimizationStatusCancelled, firstResult.Status)
	assert.Empty(t, firstResult.Actions)

	select {
	case <-second.Done():
		t.Fatal("second run finished early")
	default:
	}

	runner.Stop()
	await(t, second)
}

func TestCacheResultStore(t *testing.T) {
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})

	store := NewCacheResultStore(client, time.Hour)
	ctx := context.Background()

	result := ctdf.OptimizationResult{
		RunIdentifier: "OPT-1",
		Status:        ctdf.OptimizationStatusComplete,
		SolverType:    ctdf.SolverTypeGreedy,
		Actions: []ctdf.Action{
			{Type: ctdf.ActionTypeHold, TrainRef: "T2", HoldTicks: 2},
		},
		Score: ctdf.Score{DelayReduction: 4.5, ConflictsResolved: 1},
	}
	require.NoError(t, store.Put(ctx, result))

	stored, err := store.Get(ctx, "OPT-1")
	require.NoError(t, err)
	assert.Equal(t, result.Actions, stored.Actions)
	assert.Equal(t, result.Score, stored.Score)
	assert.True(t, server.Exists("railops/optimization/OPT-1"))

	_, err = store.Get(ctx, "OPT-2")
	assert.ErrorIs(t, err, ctdf.ErrUnknownRun)
}
