package auditlog

import (
	"time"

	"github.com/travigo/railops/pkg/ctdf"
)

// Entry is one externally caused state change. Replaying the entries of a session in sequence
// order against the same network definition reproduces the engine state.
type Entry struct {
	Identifier        string
	SessionIdentifier string
	Sequence          int64

	Kind             EntryKind
	Tick             int64
	CreationDateTime time.Time

	TickDuration time.Duration `bson:",omitempty"`

	Incident *IncidentEntry `bson:",omitempty"`
	Action   *ctdf.Action   `bson:",omitempty"`

	TrainRef     string  `bson:",omitempty"`
	DelayMinutes float64 `bson:",omitempty"`

	Result *ctdf.OptimizationResult `bson:",omitempty"`
}

type EntryKind string

const (
	EntryKindTick                 EntryKind = "TICK"
	EntryKindIncidentCreated      EntryKind = "INCIDENT_CREATED"
	EntryKindIncidentResolved     EntryKind = "INCIDENT_RESOLVED"
	EntryKindActionQueued         EntryKind = "ACTION_QUEUED"
	EntryKindTrainDelayed         EntryKind = "TRAIN_DELAYED"
	EntryKindOptimizationComplete EntryKind = "OPTIMIZATION_COMPLETE"
)

type IncidentEntry struct {
	Identifier  string
	Type        ctdf.IncidentType
	LocationRef string
	Severity    ctdf.Severity
	Description string
}
