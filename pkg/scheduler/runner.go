package scheduler

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/travigo/railops/pkg/config"
	"github.com/travigo/railops/pkg/ctdf"
)

// Run is a single background optimization
type Run struct {
	Identifier string

	cancel    context.CancelFunc
	cancelled atomic.Bool
	done      chan struct{}
	result    ctdf.OptimizationResult
}

func (r *Run) Done() <-chan struct{} {
	return r.done
}

// Result is only meaningful once Done is closed
func (r *Run) Result() ctdf.OptimizationResult {
	return r.result
}

func (r *Run) Await(ctx context.Context) (ctdf.OptimizationResult, error) {
	select {
	case <-r.done:
		return r.result, nil
	case <-ctx.Done():
		return ctdf.OptimizationResult{}, ctx.Err()
	}
}

// Runner makes sure only one optimization runs at a time
type Runner struct {
	optimizer  *Optimizer
	policy     config.BusyPolicy
	store      ResultStore
	onComplete func(ctdf.OptimizationResult)

	mutex   sync.Mutex
	current *Run
}

func NewRunner(optimizer *Optimizer, policy config.BusyPolicy, store ResultStore, onComplete func(ctdf.OptimizationResult)) *Runner {
	if store == nil {
		store = NewMemoryResultStore()
	}

	return &Runner{
		optimizer:  optimizer,
		policy:     policy,
		store:      store,
		onComplete: onComplete,
	}
}

// Submit starts a run in the background. With the reject policy a second submit while a run is
// in flight fails with ErrOptimizerBusy, with latest-wins the older run is cancelled instead.
func (r *Runner) Submit(ctx context.Context, problem Problem) (*Run, error) {
	r.mutex.Lock()

	previous := r.current
	if previous != nil {
		select {
		case <-previous.done:
			previous = nil
		default:
		}
	}

	if previous != nil {
		if r.policy != config.BusyPolicyLatestWins {
			r.mutex.Unlock()
			return nil, ctdf.ErrOptimizerBusy
		}

		previous.cancelled.Store(true)
		previous.cancel()
	}

	runContext, cancel := context.WithCancel(context.Background())
	run := &Run{
		Identifier: "OPT-" + uuid.NewString(),
		cancel:     cancel,
		done:       make(chan struct{}),
	}
	r.current = run

	r.mutex.Unlock()

	pending := ctdf.OptimizationResult{
		RunIdentifier: run.Identifier,
		Status:        ctdf.OptimizationStatusPending,
		SolverType:    ctdf.SolverTypeNone,
		Objectives:    problem.Weights,
		Tick:          problem.Tick,
		Actions:       []ctdf.Action{},
		Changes:       []string{},
	}
	if err := r.store.Put(ctx, pending); err != nil {
		log.Error().Err(err).Str("run", run.Identifier).Msg("Failed to store pending optimization")
	}

	log.Info().Str("run", run.Identifier).Int64("tick", problem.Tick).Int("conflicts", len(problem.Conflicts)).Msg("Optimization started")

	go func() {
		if previous != nil {
			<-previous.done
		}

		r.execute(runContext, run, problem)
	}()

	return run, nil
}

func (r *Runner) execute(ctx context.Context, run *Run, problem Problem) {
	defer run.cancel()

	result := r.optimizer.Optimize(ctx, problem)
	result.RunIdentifier = run.Identifier

	if run.cancelled.Load() {
		result.Status = ctdf.OptimizationStatusCancelled
		result.Actions = []ctdf.Action{}
		result.Changes = []string{}
		result.Score = ctdf.Score{}
		result.Explanation = "Superseded by a newer optimization run."
	}

	if err := r.store.Put(context.Background(), result); err != nil {
		log.Error().Err(err).Str("run", run.Identifier).Msg("Failed to store optimization result")
	}

	run.result = result
	close(run.done)

	r.mutex.Lock()
	if r.current == run {
		r.current = nil
	}
	r.mutex.Unlock()

	log.Info().
		Str("run", run.Identifier).
		Str("status", string(result.Status)).
		Str("solver", string(result.SolverType)).
		Int("actions", len(result.Actions)).
		Msg("Optimization completed")

	if r.onComplete != nil {
		r.onComplete(result)
	}
}

func (r *Runner) Result(ctx context.Context, runIdentifier string) (ctdf.OptimizationResult, error) {
	return r.store.Get(ctx, runIdentifier)
}

// Stop cancels any run in flight and waits for it to finish
func (r *Runner) Stop() {
	r.mutex.Lock()
	current := r.current
	r.mutex.Unlock()

	if current == nil {
		return
	}

	current.cancelled.Store(true)
	current.cancel()
	<-current.done
}
