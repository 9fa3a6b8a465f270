package ctdf

import (
	"fmt"
	"strings"
)

// Action is a typed dispatch instruction for a single train
type Action struct {
	Type     ActionType `groups:"basic"`
	TrainRef string     `groups:"basic"`

	HoldTicks       int      `groups:"basic"`
	Route           []string `groups:"basic"`
	AheadOfTrainRef string   `groups:"basic"`
	StationRef      string   `groups:"basic"`
	Platform        int      `groups:"basic"`

	Reason string `groups:"detailed"`
}

type ActionType string

const (
	ActionTypeHold           ActionType = "HOLD"
	ActionTypeReroute        ActionType = "REROUTE"
	ActionTypeReorder        ActionType = "REORDER"
	ActionTypePlatformChange ActionType = "PLATFORM_CHANGE"
)

// Validate checks the action is well formed, it does not check it against live state
func (a *Action) Validate() error {
	if a.TrainRef == "" {
		return fmt.Errorf("%w: train reference missing", ErrInvalidAction)
	}

	switch a.Type {
	case ActionTypeHold:
		if a.HoldTicks <= 0 {
			return fmt.Errorf("%w: hold requires a positive tick count", ErrInvalidAction)
		}
	case ActionTypeReroute:
		if len(a.Route) < 2 {
			return fmt.Errorf("%w: reroute requires at least 2 stations", ErrInvalidAction)
		}
	case ActionTypeReorder:
		if a.AheadOfTrainRef == "" || a.AheadOfTrainRef == a.TrainRef {
			return fmt.Errorf("%w: reorder requires a different train to go ahead of", ErrInvalidAction)
		}
	case ActionTypePlatformChange:
		if a.StationRef == "" || a.Platform <= 0 {
			return fmt.Errorf("%w: platform change requires a station and platform", ErrInvalidAction)
		}
	default:
		return fmt.Errorf("%w: unknown action type %q", ErrInvalidAction, a.Type)
	}

	return nil
}

func (a *Action) String() string {
	switch a.Type {
	case ActionTypeHold:
		return fmt.Sprintf("Hold %s for %d ticks", a.TrainRef, a.HoldTicks)
	case ActionTypeReroute:
		return fmt.Sprintf("Reroute %s via %s", a.TrainRef, strings.Join(a.Route, " > "))
	case ActionTypeReorder:
		return fmt.Sprintf("Give %s precedence over %s", a.TrainRef, a.AheadOfTrainRef)
	case ActionTypePlatformChange:
		return fmt.Sprintf("Move %s to platform %d at %s", a.TrainRef, a.Platform, a.StationRef)
	default:
		return string(a.Type)
	}
}
