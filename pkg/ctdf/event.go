package ctdf

import (
	"fmt"
	"time"
)

type Event struct {
	Type      EventType
	Timestamp time.Time
	Tick      int64
	Body      interface{}
}

type EventType string

const (
	EventTypeTickCommitted EventType = "TickCommitted"

	EventTypeTrainStatusChanged EventType = "TrainStatusChanged"
	EventTypeTrainArrived       EventType = "TrainArrived"
	EventTypeTrainRemoved       EventType = "TrainRemoved"

	EventTypeConflictDetected EventType = "ConflictDetected"

	EventTypeIncidentCreated  EventType = "IncidentCreated"
	EventTypeIncidentResolved EventType = "IncidentResolved"
	EventTypeSectionBlocked   EventType = "SectionBlocked"
	EventTypeSectionUnblocked EventType = "SectionUnblocked"

	EventTypeActionQueued  EventType = "ActionQueued"
	EventTypeActionApplied EventType = "ActionApplied"
	EventTypeActionSkipped EventType = "ActionSkipped"

	EventTypeOptimizationCompleted EventType = "OptimizationCompleted"
)

type TrainStatusChange struct {
	TrainRef       string
	PreviousStatus TrainStatus
	Status         TrainStatus
	Reason         string
}

type TickSummary struct {
	Tick          int64
	SimulatedTime time.Duration
	Moved         int
	Held          int
	Arrived       int
	Conflicts     int
}

// Summary returns a one line description for logs and notification feeds
func (e *Event) Summary() string {
	switch body := e.Body.(type) {
	case TrainStatusChange:
		return fmt.Sprintf("%s is now %s", body.TrainRef, body.Status)
	case Incident:
		return fmt.Sprintf("%s %s at %s (%s)", body.PrimaryIdentifier, body.Type, body.LocationRef, body.Status)
	case Conflict:
		return body.String()
	case Action:
		return body.String()
	case OptimizationResult:
		return fmt.Sprintf("%s %s with %d actions", body.RunIdentifier, body.Status, len(body.Actions))
	case TickSummary:
		return fmt.Sprintf("tick %d: %d moved, %d held, %d conflicts", body.Tick, body.Moved, body.Held, body.Conflicts)
	default:
		return string(e.Type)
	}
}
