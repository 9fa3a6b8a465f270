package ctdf

import "errors"

var (
	ErrInvalidTopology = errors.New("invalid topology")

	ErrSectionFull         = errors.New("section full")
	ErrSectionBlocked      = errors.New("section blocked")
	ErrNoPlatformAvailable = errors.New("no platform available")

	ErrUnknownIncident = errors.New("unknown incident")
	ErrUnknownTrain    = errors.New("unknown train")
	ErrUnknownLocation = errors.New("unknown location")
	ErrUnknownRun      = errors.New("unknown optimization run")
	ErrUnknownIntent   = errors.New("unknown intent action")
	ErrInvalidAction   = errors.New("invalid action")
	ErrInvalidIncident = errors.New("invalid incident")

	ErrOptimizerBusy  = errors.New("optimizer busy")
	ErrTickOutOfOrder = errors.New("tick out of order")
)
