package ctdf

import (
	"fmt"
	"time"
)

type Incident struct {
	PrimaryIdentifier string `groups:"basic" yaml:"id"`

	Type        IncidentType   `groups:"basic" yaml:"type"`
	LocationRef string         `groups:"basic" yaml:"location"`
	Severity    Severity       `groups:"basic" yaml:"severity"`
	Status      IncidentStatus `groups:"basic" yaml:"status"`

	Description     string `groups:"basic" yaml:"description"`
	SuggestedAction string `groups:"basic" yaml:"suggested_action"`

	CreationDateTime time.Time `groups:"detailed" yaml:"-"`
	ResolvedDateTime time.Time `groups:"detailed" yaml:"-"`

	CreatedTick  int64 `groups:"detailed" yaml:"-"`
	ResolvedTick int64 `groups:"detailed" yaml:"-"`

	BlockedSectionRefs []string `groups:"detailed" yaml:"-"`
	ClosedPlatformRef  string   `groups:"detailed" yaml:"-"`
}

type IncidentType string

const (
	IncidentTypeSignalFailure    IncidentType = "SIGNAL_FAILURE"
	IncidentTypeTrackObstruction IncidentType = "TRACK_OBSTRUCTION"
	IncidentTypeWeather          IncidentType = "WEATHER"
	IncidentTypeRollingStock     IncidentType = "ROLLING_STOCK"
)

func (i IncidentType) Valid() bool {
	switch i {
	case IncidentTypeSignalFailure, IncidentTypeTrackObstruction, IncidentTypeWeather, IncidentTypeRollingStock:
		return true
	default:
		return false
	}
}

// ImpactsSections is true for incident types that take running lines out of use
func (i IncidentType) ImpactsSections() bool {
	switch i {
	case IncidentTypeSignalFailure, IncidentTypeTrackObstruction, IncidentTypeWeather:
		return true
	default:
		return false
	}
}

type IncidentStatus string

const (
	IncidentStatusOpen     IncidentStatus = "OPEN"
	IncidentStatusResolved IncidentStatus = "RESOLVED"
)

func (i *Incident) IsOpen() bool {
	return i.Status == IncidentStatusOpen
}

func SuggestedIncidentAction(incidentType IncidentType, severity Severity, locationName string) string {
	switch incidentType {
	case IncidentTypeSignalFailure:
		if severity.AtLeast(SeverityHigh) {
			return fmt.Sprintf("Close lines at %s and reroute via adjacent junctions.", locationName)
		}
		return fmt.Sprintf("Reduce speed on approach to %s.", locationName)
	case IncidentTypeTrackObstruction:
		if severity.AtLeast(SeverityHigh) {
			return fmt.Sprintf("Reroute all traffic away from %s.", locationName)
		}
		return fmt.Sprintf("Dispatch track inspection to %s.", locationName)
	case IncidentTypeWeather:
		return fmt.Sprintf("Apply temporary speed restriction around %s.", locationName)
	case IncidentTypeRollingStock:
		return fmt.Sprintf("Send recovery crew to %s and hold following services.", locationName)
	default:
		return ""
	}
}
