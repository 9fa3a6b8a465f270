package ctdf

import (
	"math"
	"time"
)

type OptimizationResult struct {
	RunIdentifier string `groups:"basic"`

	Status     OptimizationStatus `groups:"basic"`
	SolverType SolverType         `groups:"basic"`
	Objectives ObjectiveWeights   `groups:"basic"`

	Tick             int64         `groups:"detailed"`
	CreationDateTime time.Time     `groups:"detailed"`
	Duration         time.Duration `groups:"detailed"`
	Iterations       int           `groups:"detailed"`

	Actions []Action `groups:"basic"`
	Changes []string `groups:"basic"`
	Score   Score    `groups:"basic"`

	Explanation string `groups:"basic"`
}

type OptimizationStatus string

const (
	OptimizationStatusPending   OptimizationStatus = "PENDING"
	OptimizationStatusComplete  OptimizationStatus = "COMPLETE"
	OptimizationStatusPartial   OptimizationStatus = "PARTIAL"
	OptimizationStatusCancelled OptimizationStatus = "CANCELLED"
)

type SolverType string

const (
	SolverTypeNone            SolverType = "NONE"
	SolverTypeGreedy          SolverType = "GREEDY"
	SolverTypeHybridAnnealing SolverType = "HYBRID_ANNEALING"
)

type Score struct {
	DelayReduction    float64 `groups:"basic"`
	EnergySaved       float64 `groups:"basic"`
	ConflictsResolved int     `groups:"basic"`
}

func (s Score) IsZero() bool {
	return s.DelayReduction == 0 && s.EnergySaved == 0 && s.ConflictsResolved == 0
}

type ObjectiveWeights struct {
	DelayWeight     float64 `groups:"basic" yaml:"delay"`
	EnergyWeight    float64 `groups:"basic" yaml:"energy"`
	StabilityWeight float64 `groups:"basic" yaml:"stability"`
}

func DefaultObjectiveWeights() ObjectiveWeights {
	return ObjectiveWeights{
		DelayWeight:     80,
		EnergyWeight:    40,
		StabilityWeight: 60,
	}
}

// Normalised clamps every weight into 0-100
func (o ObjectiveWeights) Normalised() ObjectiveWeights {
	clamp := func(v float64) float64 {
		if math.IsNaN(v) {
			return 0
		}
		return math.Max(0, math.Min(100, v))
	}

	return ObjectiveWeights{
		DelayWeight:     clamp(o.DelayWeight),
		EnergyWeight:    clamp(o.EnergyWeight),
		StabilityWeight: clamp(o.StabilityWeight),
	}
}
