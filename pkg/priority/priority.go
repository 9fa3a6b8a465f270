package priority

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/rs/zerolog/log"
	"github.com/travigo/railops/pkg/ctdf"
)

// Environment is what a priority expression can reference
type Environment struct {
	Type         string
	Status       string
	Class        int
	DelayMinutes float64
	HeldTicks    int
}

// Ranker orders trains for dispatch, a higher rank wins contested infrastructure
type Ranker struct {
	classes map[ctdf.TrainType]int
	program *vm.Program
}

func NewRanker(classes map[ctdf.TrainType]int, expression string) (*Ranker, error) {
	ranker := &Ranker{
		classes: map[ctdf.TrainType]int{},
	}

	for trainType, class := range classes {
		ranker.classes[trainType] = class
	}

	if expression != "" {
		program, err := expr.Compile(expression, expr.Env(Environment{}), expr.AsFloat64())
		if err != nil {
			return nil, fmt.Errorf("priority expression: %w", err)
		}

		ranker.program = program
	}

	return ranker, nil
}

func (r *Ranker) Class(trainType ctdf.TrainType) int {
	return r.classes[trainType]
}

func (r *Ranker) Rank(train *ctdf.Train) float64 {
	class := r.Class(train.Type)

	if r.program == nil {
		return float64(class)
	}

	output, err := expr.Run(r.program, Environment{
		Type:         string(train.Type),
		Status:       string(train.Status),
		Class:        class,
		DelayMinutes: train.DelayMinutes,
		HeldTicks:    train.HeldTicks,
	})
	if err != nil {
		log.Error().Err(err).Str("train", train.PrimaryIdentifier).Msg("Failed to evaluate priority expression")
		return float64(class)
	}

	rank, ok := output.(float64)
	if !ok {
		return float64(class)
	}

	return rank
}

// Before reports whether a should be dispatched ahead of b. Dispatcher precedence comes first,
// then rank, then identifier so the order is total.
func (r *Ranker) Before(a *ctdf.Train, b *ctdf.Train) bool {
	if a.Precedence != b.Precedence {
		return a.Precedence > b.Precedence
	}

	rankA, rankB := r.Rank(a), r.Rank(b)
	if rankA != rankB {
		return rankA > rankB
	}

	return a.PrimaryIdentifier < b.PrimaryIdentifier
}
