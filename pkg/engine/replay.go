package engine

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/travigo/railops/pkg/auditlog"
	"github.com/travigo/railops/pkg/config"
	"github.com/travigo/railops/pkg/network"
	"golang.org/x/exp/slices"
)

// Replay rebuilds an engine from its network definition and a recorded session. Optimizations
// are not re-run, the actions they produced are in the log as queued actions.
func Replay(definition *network.Definition, cfg config.Config, entries []auditlog.Entry, options Options) (*Engine, error) {
	// Nothing recorded during replay is new
	options.Recorder = nil
	cfg.AutoApply = false

	e, err := New(definition, cfg, options)
	if err != nil {
		return nil, err
	}

	ordered := slices.Clone(entries)
	slices.SortStableFunc(ordered, func(a auditlog.Entry, b auditlog.Entry) int {
		switch {
		case a.Sequence < b.Sequence:
			return -1
		case a.Sequence > b.Sequence:
			return 1
		default:
			return 0
		}
	})

	for _, entry := range ordered {
		if err := e.replayEntry(entry); err != nil {
			return nil, fmt.Errorf("replay entry %d (%s): %w", entry.Sequence, entry.Kind, err)
		}
	}

	log.Info().Int("entries", len(ordered)).Int64("tick", e.Tick()).Msg("Replay complete")

	return e, nil
}

func (e *Engine) replayEntry(entry auditlog.Entry) error {
	switch entry.Kind {
	case auditlog.EntryKindTick:
		_, err := e.AdvanceTick(entry.Tick, entry.TickDuration)
		return err

	case auditlog.EntryKindIncidentCreated:
		if entry.Incident == nil {
			return fmt.Errorf("incident missing")
		}

		incident, err := e.CreateIncident(entry.Incident.Type, entry.Incident.LocationRef, entry.Incident.Severity, entry.Incident.Description)
		if err != nil {
			return err
		}
		if incident.PrimaryIdentifier != entry.Incident.Identifier {
			return fmt.Errorf("replay diverged, created %s but the log has %s", incident.PrimaryIdentifier, entry.Incident.Identifier)
		}

		return nil

	case auditlog.EntryKindIncidentResolved:
		if entry.Incident == nil {
			return fmt.Errorf("incident missing")
		}

		_, err := e.ResolveIncident(entry.Incident.Identifier)
		return err

	case auditlog.EntryKindActionQueued:
		if entry.Action == nil {
			return fmt.Errorf("action missing")
		}

		return e.ApplyAction(*entry.Action)

	case auditlog.EntryKindTrainDelayed:
		_, err := e.DelayTrain(entry.TrainRef, entry.DelayMinutes)
		return err

	default:
		return nil
	}
}
