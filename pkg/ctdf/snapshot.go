package ctdf

import "time"

// Snapshot is a point in time copy of the engine state, it shares no memory with the engine
type Snapshot struct {
	Tick          int64         `groups:"basic"`
	SimulatedTime time.Duration `groups:"basic"`

	Stations  []Station      `groups:"basic"`
	Tracks    []TrackSection `groups:"basic"`
	Trains    []Train        `groups:"basic"`
	Incidents []Incident     `groups:"basic"`
	Conflicts []Conflict     `groups:"basic"`
}

func (s *Snapshot) Train(identifier string) *Train {
	for i := range s.Trains {
		if s.Trains[i].PrimaryIdentifier == identifier {
			return &s.Trains[i]
		}
	}

	return nil
}

func (s *Snapshot) Track(identifier string) *TrackSection {
	for i := range s.Tracks {
		if s.Tracks[i].PrimaryIdentifier == identifier {
			return &s.Tracks[i]
		}
	}

	return nil
}
