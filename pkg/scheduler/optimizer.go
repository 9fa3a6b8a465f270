package scheduler

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/pool"
	"github.com/travigo/railops/pkg/config"
	"github.com/travigo/railops/pkg/ctdf"
	"github.com/travigo/railops/pkg/priority"
	"golang.org/x/exp/slices"
)

// Optimizer searches for a set of dispatch actions that lowers the weighted cost of the next
// few ticks. It starts from a priority greedy pass and then refines the plan with simulated
// annealing until the iteration limit or the time budget runs out.
type Optimizer struct {
	config     config.Optimizer
	simulation config.Simulation
	conflicts  config.Conflicts
	ranker     *priority.Ranker

	workers int
}

func NewOptimizer(cfg config.Config, ranker *priority.Ranker) *Optimizer {
	// Rollouts run side by side so each one steps its own trains serially
	simulation := cfg.Simulation
	simulation.Workers = 1

	return &Optimizer{
		config:     cfg.Optimizer,
		simulation: simulation,
		conflicts:  cfg.Conflicts,
		ranker:     ranker,
		workers:    cfg.Simulation.Workers,
	}
}

type search struct {
	baseline outcome
	best     outcome
	plan     []ctdf.Action

	evaluated  int
	iterations int
	partial    bool
}

type evaluation struct {
	index   int
	plan    []ctdf.Action
	outcome outcome
	ok      bool
}

// Optimize never mutates the problem it is given and never returns a plan costed worse than
// doing nothing
func (o *Optimizer) Optimize(ctx context.Context, problem Problem) ctdf.OptimizationResult {
	start := time.Now()

	result := ctdf.OptimizationResult{
		Status:           ctdf.OptimizationStatusComplete,
		SolverType:       ctdf.SolverTypeNone,
		Objectives:       problem.Weights,
		Tick:             problem.Tick,
		CreationDateTime: start,
		Actions:          []ctdf.Action{},
		Changes:          []string{},
	}

	if len(problem.Conflicts) == 0 {
		result.Explanation = "No conflicts detected, the current schedule is kept."
		result.Duration = time.Since(start)
		return result
	}

	if o.config.Budget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.config.Budget)
		defer cancel()
	}

	baseline, ok := o.rollout(ctx, &problem, nil)
	if !ok {
		result.Status = ctdf.OptimizationStatusPartial
		result.SolverType = ctdf.SolverTypeGreedy
		result.Explanation = "Time budget ran out before the current schedule could be evaluated."
		result.Duration = time.Since(start)
		return result
	}

	s := &search{baseline: baseline, best: baseline}
	candidatePool := o.greedy(ctx, &problem, s)
	o.anneal(ctx, &problem, s, candidatePool)

	result.SolverType = ctdf.SolverTypeGreedy
	if s.iterations > 0 {
		result.SolverType = ctdf.SolverTypeHybridAnnealing
	}
	if s.partial {
		result.Status = ctdf.OptimizationStatusPartial
	}

	result.Iterations = s.iterations
	result.Actions = append(result.Actions, s.plan...)
	for _, action := range s.plan {
		result.Changes = append(result.Changes, action.String())
	}

	result.Score = ctdf.Score{
		DelayReduction:    round(s.baseline.delay - s.best.delay),
		EnergySaved:       round(s.baseline.energy - s.best.energy),
		ConflictsResolved: resolvedConflicts(problem.Conflicts, s.baseline, s.best),
	}
	result.Explanation = explain(&problem, s, o.config.HorizonTicks)
	result.Duration = time.Since(start)

	log.Debug().
		Int64("tick", problem.Tick).
		Str("status", string(result.Status)).
		Int("actions", len(result.Actions)).
		Int("iterations", s.iterations).
		Int("evaluated", s.evaluated).
		Float64("cost", s.best.cost).
		Float64("baseline", s.baseline.cost).
		Dur("duration", result.Duration).
		Msg("Optimization finished")

	return result
}

// greedy walks the conflicts most severe first and keeps the single best improving action for each
func (o *Optimizer) greedy(ctx context.Context, problem *Problem, s *search) []ctdf.Action {
	ordered := slices.Clone(problem.Conflicts)
	slices.SortStableFunc(ordered, func(a ctdf.Conflict, b ctdf.Conflict) int {
		return b.Severity.Rank() - a.Severity.Rank()
	})

	var candidatePool []ctdf.Action

	for _, conflict := range ordered {
		if ctx.Err() != nil {
			s.partial = true
			break
		}

		candidates := o.candidates(problem, conflict)
		candidatePool = append(candidatePool, candidates...)

		var plans [][]ctdf.Action
		for _, candidate := range candidates {
			if planIndex(s.plan, candidate.TrainRef) >= 0 {
				continue
			}

			plan := slices.Clone(s.plan)
			plans = append(plans, append(plan, candidate))
		}

		for _, evaluated := range o.evaluate(ctx, problem, plans) {
			if !evaluated.ok {
				continue
			}
			s.evaluated++

			if evaluated.outcome.cost < s.best.cost {
				s.best = evaluated.outcome
				s.plan = evaluated.plan
			}
		}
	}

	return candidatePool
}

func (o *Optimizer) evaluate(ctx context.Context, problem *Problem, plans [][]ctdf.Action) []evaluation {
	p := pool.NewWithResults[evaluation]()
	if o.workers > 0 {
		p = p.WithMaxGoroutines(o.workers)
	}

	for i, plan := range plans {
		i, plan := i, plan
		p.Go(func() evaluation {
			result, ok := o.rollout(ctx, problem, plan)
			return evaluation{index: i, plan: plan, outcome: result, ok: ok}
		})
	}

	evaluations := p.Wait()
	slices.SortFunc(evaluations, func(a evaluation, b evaluation) int {
		return a.index - b.index
	})

	return evaluations
}

func (o *Optimizer) anneal(ctx context.Context, problem *Problem, s *search, candidatePool []ctdf.Action) {
	if len(candidatePool) == 0 || s.partial {
		return
	}

	rng := rand.New(rand.NewSource(o.config.Seed + problem.Tick))

	current := s.plan
	currentOutcome := s.best
	temperature := math.Max(1, currentOutcome.cost*0.05)

	for s.iterations < o.config.MaxIterations {
		if ctx.Err() != nil {
			s.partial = true
			return
		}
		s.iterations++

		next := neighbour(rng, current, candidatePool)
		if next == nil {
			continue
		}

		result, ok := o.rollout(ctx, problem, next)
		if !ok {
			if ctx.Err() != nil {
				s.partial = true
				return
			}
			continue
		}
		s.evaluated++

		delta := result.cost - currentOutcome.cost
		if delta < 0 || rng.Float64() < math.Exp(-delta/temperature) {
			current = next
			currentOutcome = result
		}

		if result.cost < s.best.cost {
			s.best = result
			s.plan = next
		}

		temperature = math.Max(0.01, temperature*0.95)
	}
}

// neighbour makes one random change to the plan, nil when the change is not possible
func neighbour(rng *rand.Rand, plan []ctdf.Action, candidatePool []ctdf.Action) []ctdf.Action {
	next := slices.Clone(plan)

	switch rng.Intn(4) {
	case 0:
		if len(next) == 0 {
			return nil
		}
		i := rng.Intn(len(next))
		return slices.Delete(next, i, i+1)

	case 1:
		var holds []int
		for i, action := range next {
			if action.Type == ctdf.ActionTypeHold {
				holds = append(holds, i)
			}
		}
		if len(holds) == 0 {
			return nil
		}

		i := holds[rng.Intn(len(holds))]
		ticks := next[i].HoldTicks + 1
		if rng.Intn(2) == 0 {
			ticks = next[i].HoldTicks - 1
		}
		if ticks < 1 {
			return nil
		}
		next[i].HoldTicks = ticks
		return next

	case 2:
		candidate := candidatePool[rng.Intn(len(candidatePool))]
		if planIndex(next, candidate.TrainRef) >= 0 {
			return nil
		}
		return append(next, candidate)

	default:
		candidate := candidatePool[rng.Intn(len(candidatePool))]
		i := planIndex(next, candidate.TrainRef)
		if i < 0 || next[i].String() == candidate.String() {
			return nil
		}
		next[i] = candidate
		return next
	}
}

// planIndex finds the action for a train, plans carry at most one action per train
func planIndex(plan []ctdf.Action, trainRef string) int {
	for i, action := range plan {
		if action.TrainRef == trainRef {
			return i
		}
	}

	return -1
}

func resolvedConflicts(conflicts []ctdf.Conflict, baseline outcome, best outcome) int {
	resolved := 0

	for _, conflict := range conflicts {
		key := conflictKey(conflict)
		if baseline.conflictKeys[key] && !best.conflictKeys[key] {
			resolved++
		}
	}

	return resolved
}

func explain(problem *Problem, s *search, horizon int) string {
	var explanation strings.Builder

	fmt.Fprintf(&explanation, "%d open conflicts at tick %d. Evaluated %d candidate plans over a %d tick horizon.", len(problem.Conflicts), problem.Tick, s.evaluated, horizon)

	if len(s.plan) == 0 {
		explanation.WriteString(" No plan improved on the current schedule, so nothing is changed.")
	} else {
		fmt.Fprintf(&explanation, " Proposing %d actions, estimated %.1f delay minutes recovered and %.1f energy units saved.", len(s.plan), s.baseline.delay-s.best.delay, s.baseline.energy-s.best.energy)
	}

	if s.partial {
		explanation.WriteString(" The search hit its time budget, this is the best plan found so far.")
	}

	return explanation.String()
}
