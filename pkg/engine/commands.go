package engine

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/travigo/railops/pkg/auditlog"
	"github.com/travigo/railops/pkg/ctdf"
	"github.com/travigo/railops/pkg/dispatch"
	"github.com/travigo/railops/pkg/scheduler"
)

// ApplyAction validates the action against the current state and queues it for the next tick
// boundary
func (e *Engine) ApplyAction(action ctdf.Action) error {
	e.mutex.Lock()
	eventList, err := e.queueAction(action)
	e.unlockAndPublish(eventList)

	return err
}

func (e *Engine) queueAction(action ctdf.Action) ([]ctdf.Event, error) {
	if err := dispatch.Check(e.dispatchState(e.tick+1), action); err != nil {
		return nil, err
	}

	e.pending = append(e.pending, action)
	e.record(auditlog.Entry{Kind: auditlog.EntryKindActionQueued, Action: &action})

	log.Info().Str("action", action.String()).Int64("tick", e.tick+1).Msg("Action queued")

	return []ctdf.Event{e.event(ctdf.EventTypeActionQueued, action)}, nil
}

func (e *Engine) DelayTrain(trainRef string, minutes float64) (ctdf.Train, error) {
	e.mutex.Lock()

	train, exists := e.train(trainRef)
	if !exists {
		e.mutex.Unlock()
		return ctdf.Train{}, fmt.Errorf("%w: %s", ctdf.ErrUnknownTrain, trainRef)
	}

	if minutes <= 0 {
		minutes = defaultDelayMinutes
	}

	train.DelayMinutes += minutes

	var eventList []ctdf.Event
	if train.Status == ctdf.TrainStatusOnTime {
		eventList = append(eventList, e.event(ctdf.EventTypeTrainStatusChanged, ctdf.TrainStatusChange{
			TrainRef:       train.PrimaryIdentifier,
			PreviousStatus: train.Status,
			Status:         ctdf.TrainStatusDelayed,
			Reason:         fmt.Sprintf("delayed %.0f minutes by dispatcher", minutes),
		}))
		train.Status = ctdf.TrainStatusDelayed
	}

	e.record(auditlog.Entry{Kind: auditlog.EntryKindTrainDelayed, TrainRef: trainRef, DelayMinutes: minutes})

	trainCopy := *train
	e.unlockAndPublish(eventList)

	log.Info().Str("train", trainRef).Float64("minutes", minutes).Msg("Train delayed")

	return trainCopy, nil
}

func (e *Engine) CreateIncident(incidentType ctdf.IncidentType, locationRef string, severity ctdf.Severity, description string) (ctdf.Incident, error) {
	e.mutex.Lock()

	incident, err := e.incidents.CreateIncident(incidentType, locationRef, severity, description, e.tick)
	if err != nil {
		e.mutex.Unlock()
		return ctdf.Incident{}, err
	}

	e.record(auditlog.Entry{
		Kind: auditlog.EntryKindIncidentCreated,
		Incident: &auditlog.IncidentEntry{
			Identifier:  incident.PrimaryIdentifier,
			Type:        incident.Type,
			LocationRef: incident.LocationRef,
			Severity:    incident.Severity,
			Description: incident.Description,
		},
	})

	eventList := []ctdf.Event{e.event(ctdf.EventTypeIncidentCreated, incident)}
	for _, sectionRef := range incident.BlockedSectionRefs {
		eventList = append(eventList, e.event(ctdf.EventTypeSectionBlocked, sectionRef))
	}

	e.refreshConflicts()
	e.unlockAndPublish(eventList)

	return incident, nil
}

func (e *Engine) ResolveIncident(identifier string) (ctdf.Incident, error) {
	e.mutex.Lock()

	incident, err := e.incidents.ResolveIncident(identifier, e.tick)
	if err != nil {
		e.mutex.Unlock()
		return ctdf.Incident{}, err
	}

	e.record(auditlog.Entry{
		Kind:     auditlog.EntryKindIncidentResolved,
		Incident: &auditlog.IncidentEntry{Identifier: incident.PrimaryIdentifier},
	})

	eventList := []ctdf.Event{e.event(ctdf.EventTypeIncidentResolved, incident)}
	for _, sectionRef := range incident.BlockedSectionRefs {
		if !e.network.IsBlocked(sectionRef) {
			eventList = append(eventList, e.event(ctdf.EventTypeSectionUnblocked, sectionRef))
		}
	}

	e.refreshConflicts()
	e.unlockAndPublish(eventList)

	return incident, nil
}

// RunOptimization starts an optimization of the current state in the background
func (e *Engine) RunOptimization(ctx context.Context, weights *ctdf.ObjectiveWeights) (*scheduler.Run, error) {
	objectives := e.config.Optimizer.Objectives
	if weights != nil {
		objectives = *weights
	}

	e.mutex.Lock()
	problem := scheduler.NewProblem(e.network, e.tracker, e.trains, e.conflicts, e.tick, e.tickDuration, objectives)
	e.mutex.Unlock()

	return e.runner.Submit(ctx, problem)
}

func (e *Engine) OptimizationResult(ctx context.Context, runIdentifier string) (ctdf.OptimizationResult, error) {
	return e.runner.Result(ctx, runIdentifier)
}

// ApplyOptimization queues every action of a finished run. Actions that no longer fit the
// current state are left out and reported as skipped.
func (e *Engine) ApplyOptimization(ctx context.Context, runIdentifier string) ([]ctdf.Action, error) {
	result, err := e.runner.Result(ctx, runIdentifier)
	if err != nil {
		return nil, err
	}

	switch result.Status {
	case ctdf.OptimizationStatusComplete, ctdf.OptimizationStatusPartial:
	default:
		return nil, fmt.Errorf("%w: run %s is %s", ctdf.ErrInvalidAction, runIdentifier, result.Status)
	}

	return e.queueActions(result.Actions), nil
}

func (e *Engine) queueActions(actions []ctdf.Action) []ctdf.Action {
	queued := []ctdf.Action{}
	var eventList []ctdf.Event

	e.mutex.Lock()
	for _, action := range actions {
		actionEvents, err := e.queueAction(action)
		if err != nil {
			log.Warn().Err(err).Str("action", action.String()).Msg("Skipping optimization action")
			eventList = append(eventList, e.event(ctdf.EventTypeActionSkipped, action))
			continue
		}

		queued = append(queued, action)
		eventList = append(eventList, actionEvents...)
	}
	e.unlockAndPublish(eventList)

	return queued
}

func (e *Engine) optimizationComplete(result ctdf.OptimizationResult) {
	if result.Status == ctdf.OptimizationStatusCancelled {
		return
	}

	e.mutex.Lock()
	e.record(auditlog.Entry{Kind: auditlog.EntryKindOptimizationComplete, Result: &result})
	event := e.event(ctdf.EventTypeOptimizationCompleted, result)
	e.unlockAndPublish([]ctdf.Event{event})

	if e.config.AutoApply && len(result.Actions) > 0 {
		queued := e.queueActions(result.Actions)
		log.Info().Str("run", result.RunIdentifier).Int("actions", len(queued)).Msg("Optimization applied automatically")
	}
}

// HandleIntent carries out one structured dispatcher command
func (e *Engine) HandleIntent(ctx context.Context, intent ctdf.Intent) (ctdf.IntentResult, error) {
	parameters := intent.Parameters
	result := ctdf.IntentResult{Action: intent.Action}

	switch intent.Action {
	case ctdf.IntentActionCreateIncident:
		severity := parameters.Severity
		if severity == "" {
			severity = ctdf.SeverityMedium
		}

		incident, err := e.CreateIncident(parameters.IncidentType, parameters.LocationRef, severity, parameters.Description)
		if err != nil {
			return result, err
		}

		result.IncidentRef = incident.PrimaryIdentifier
		result.Message = fmt.Sprintf("Created %s %s at %s", incident.PrimaryIdentifier, incident.Type, incident.LocationRef)

	case ctdf.IntentActionDelayTrain:
		train, err := e.DelayTrain(parameters.TrainRef, parameters.DelayMinutes)
		if err != nil {
			return result, err
		}

		result.Message = fmt.Sprintf("%s now running %.0f minutes late", train.PrimaryIdentifier, train.DelayMinutes)

	case ctdf.IntentActionBlockSection:
		if !e.network.HasSection(parameters.SectionRef) {
			return result, fmt.Errorf("%w: section %s", ctdf.ErrUnknownLocation, parameters.SectionRef)
		}

		description := parameters.Description
		if description == "" {
			description = "Section blocked by dispatcher"
		}

		incident, err := e.CreateIncident(ctdf.IncidentTypeTrackObstruction, parameters.SectionRef, ctdf.SeverityHigh, description)
		if err != nil {
			return result, err
		}

		result.IncidentRef = incident.PrimaryIdentifier
		result.Message = fmt.Sprintf("Blocked %s under %s", parameters.SectionRef, incident.PrimaryIdentifier)

	case ctdf.IntentActionOptimize:
		run, err := e.RunOptimization(ctx, parameters.Objectives)
		if err != nil {
			return result, err
		}

		result.RunRef = run.Identifier
		result.Message = fmt.Sprintf("Optimization %s started", run.Identifier)

	default:
		return result, fmt.Errorf("%w: %q", ctdf.ErrUnknownIntent, intent.Action)
	}

	log.Info().Str("intent", string(intent.Action)).Str("result", result.Message).Msg("Intent handled")

	return result, nil
}
