package dispatch

import (
	"fmt"

	"github.com/travigo/railops/pkg/ctdf"
	"github.com/travigo/railops/pkg/network"
	"github.com/travigo/railops/pkg/occupancy"
	"golang.org/x/exp/slices"
)

// State is the mutable view an action is applied against
type State struct {
	Network *network.Network
	Tracker *occupancy.Tracker
	Trains  map[string]*ctdf.Train

	// The tick about to be simulated
	Tick int64
}

func Check(state State, action ctdf.Action) error {
	return apply(state, action, false)
}

func Apply(state State, action ctdf.Action) error {
	return apply(state, action, true)
}

func apply(state State, action ctdf.Action, commit bool) error {
	if err := action.Validate(); err != nil {
		return err
	}

	train, exists := state.Trains[action.TrainRef]
	if !exists || train.Removed {
		return fmt.Errorf("%w: %s", ctdf.ErrUnknownTrain, action.TrainRef)
	}

	switch action.Type {
	case ctdf.ActionTypeHold:
		if !train.AtStation() {
			return fmt.Errorf("%w: %s can only be held at a station", ctdf.ErrInvalidAction, train.PrimaryIdentifier)
		}
		if commit {
			train.HoldUntilTick = state.Tick + int64(action.HoldTicks)
		}

	case ctdf.ActionTypeReroute:
		route, err := reroute(state, train, action.Route)
		if err != nil {
			return err
		}
		if commit {
			train.Route = route
		}

	case ctdf.ActionTypeReorder:
		other, exists := state.Trains[action.AheadOfTrainRef]
		if !exists || other.Removed {
			return fmt.Errorf("%w: %s", ctdf.ErrUnknownTrain, action.AheadOfTrainRef)
		}
		if commit && train.Precedence <= other.Precedence {
			train.Precedence = other.Precedence + 1
		}

	case ctdf.ActionTypePlatformChange:
		if !train.AtStation() || train.CurrentStationRef != action.StationRef {
			return fmt.Errorf("%w: %s is not at %s", ctdf.ErrInvalidAction, train.PrimaryIdentifier, action.StationRef)
		}
		if !commit {
			occupants := state.Tracker.PlatformOccupants(action.StationRef)
			if action.Platform > state.Network.AvailablePlatforms(action.StationRef) || action.Platform > len(occupants) {
				return fmt.Errorf("%w: platform %d at %s is not open", ctdf.ErrNoPlatformAvailable, action.Platform, action.StationRef)
			}
			if occupant := occupants[action.Platform-1]; occupant != "" && occupant != train.PrimaryIdentifier {
				return fmt.Errorf("%w: platform %d at %s is held by %s", ctdf.ErrNoPlatformAvailable, action.Platform, action.StationRef, occupant)
			}
			return nil
		}
		if err := state.Tracker.OccupyPlatform(train.PrimaryIdentifier, action.StationRef, action.Platform); err != nil {
			return err
		}
		train.Platform = action.Platform
	}

	return nil
}

// reroute splices the new path onto the part of the route already travelled. The path has to start
// at the station the train is standing at, or the station it is running towards.
func reroute(state State, train *ctdf.Train, path []string) ([]string, error) {
	var keep int
	switch {
	case train.AtStation() && path[0] == train.CurrentStationRef:
		keep = train.RouteIndex
	case train.OnSection() && path[0] == train.NextStationRef():
		keep = train.RouteIndex + 1
	default:
		return nil, fmt.Errorf("%w: new route for %s must start at its current or next station", ctdf.ErrInvalidAction, train.PrimaryIdentifier)
	}

	if err := state.Network.ValidateRoute(path); err != nil {
		return nil, fmt.Errorf("%w: %s", ctdf.ErrInvalidAction, err)
	}

	route := slices.Clone(train.Route[:keep])
	route = append(route, path...)

	return route, nil
}
