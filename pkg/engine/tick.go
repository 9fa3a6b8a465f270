package engine

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/travigo/railops/pkg/auditlog"
	"github.com/travigo/railops/pkg/ctdf"
	"github.com/travigo/railops/pkg/dispatch"
	"github.com/travigo/railops/pkg/simulator"
	"github.com/travigo/railops/pkg/stats"
	"golang.org/x/exp/slices"
)

type TickReport struct {
	Tick          int64
	SimulatedTime time.Duration
	Duration      time.Duration

	Applied []ctdf.Action
	Skipped []SkippedAction

	Moved         []string
	Held          []simulator.HeldTrain
	Arrived       []string
	Removed       []string
	StatusChanges []ctdf.TrainStatusChange

	Conflicts []ctdf.Conflict

	DelayMinutes float64
	EnergyUnits  float64
}

type SkippedAction struct {
	Action ctdf.Action
	Reason string
}

// AdvanceTick moves the clock on by one tick. Repeating the current tick returns the report it
// produced, any other tick number is refused.
func (e *Engine) AdvanceTick(tick int64, duration time.Duration) (TickReport, error) {
	e.mutex.Lock()

	if tick == e.tick {
		report := e.lastReport
		e.mutex.Unlock()
		return report, nil
	}
	if tick != e.tick+1 {
		current := e.tick
		e.mutex.Unlock()
		return TickReport{}, fmt.Errorf("%w: tick %d requested at tick %d", ctdf.ErrTickOutOfOrder, tick, current)
	}

	if duration <= 0 {
		duration = e.config.TickDuration
	}

	report, eventList := e.advance(tick, duration)
	e.unlockAndPublish(eventList)

	return report, nil
}

func (e *Engine) advance(tick int64, duration time.Duration) (TickReport, []ctdf.Event) {
	start := time.Now()
	var eventList []ctdf.Event

	report := TickReport{
		Tick:     tick,
		Duration: duration,
	}

	// Trains removed last tick leave the model
	e.trains = slices.DeleteFunc(e.trains, func(train *ctdf.Train) bool {
		return train.Removed
	})

	e.tick = tick
	e.tickDuration = duration
	e.simulatedTime += duration

	state := e.dispatchState(tick)
	for _, action := range e.pending {
		if err := dispatch.Apply(state, action); err != nil {
			report.Skipped = append(report.Skipped, SkippedAction{Action: action, Reason: err.Error()})
			eventList = append(eventList, e.event(ctdf.EventTypeActionSkipped, action))
			log.Warn().Err(err).Str("action", action.String()).Msg("Queued action no longer applies")
			continue
		}

		report.Applied = append(report.Applied, action)
		eventList = append(eventList, e.event(ctdf.EventTypeActionApplied, action))
	}
	e.pending = nil

	step := e.simulator.Step(e.trains, tick, duration)

	if err := e.tracker.Verify(); err != nil {
		log.Error().Err(err).Int64("tick", tick).Msg("Occupancy invariant broken")
	}

	e.refreshConflicts()

	report.SimulatedTime = e.simulatedTime
	report.Moved = step.Moved
	report.Held = step.Held
	report.Arrived = step.Arrived
	report.Removed = step.Removed
	report.StatusChanges = step.StatusChanges
	report.DelayMinutes = step.DelayMinutes
	report.EnergyUnits = step.EnergyUnits
	report.Conflicts = slices.Clone(e.conflicts)

	for _, change := range step.StatusChanges {
		eventList = append(eventList, e.event(ctdf.EventTypeTrainStatusChanged, change))
	}
	for _, trainRef := range step.Arrived {
		if train, exists := e.train(trainRef); exists {
			eventList = append(eventList, e.event(ctdf.EventTypeTrainArrived, *train))
		}
	}
	for _, trainRef := range step.Removed {
		eventList = append(eventList, e.event(ctdf.EventTypeTrainRemoved, trainRef))
	}
	for _, conflict := range e.conflicts {
		eventList = append(eventList, e.event(ctdf.EventTypeConflictDetected, conflict))
	}

	summary := ctdf.TickSummary{
		Tick:          tick,
		SimulatedTime: e.simulatedTime,
		Moved:         len(step.Moved),
		Held:          len(step.Held),
		Arrived:       len(step.Arrived),
		Conflicts:     len(e.conflicts),
	}
	eventList = append(eventList, e.event(ctdf.EventTypeTickCommitted, summary))

	e.record(auditlog.Entry{Kind: auditlog.EntryKindTick, TickDuration: duration})
	e.trend.Add(stats.Calculate(e.snapshot()))
	e.lastReport = report

	log.Debug().
		Int64("tick", tick).
		Int("moved", summary.Moved).
		Int("held", summary.Held).
		Int("arrived", summary.Arrived).
		Int("conflicts", summary.Conflicts).
		Int("applied", len(report.Applied)).
		Str("latency", time.Since(start).String()).
		Msg("Tick committed")

	return report, eventList
}
