package conflicts

import (
	"strings"
	"time"

	"github.com/travigo/railops/pkg/config"
	"github.com/travigo/railops/pkg/ctdf"
	"github.com/travigo/railops/pkg/network"
	"github.com/travigo/railops/pkg/occupancy"
	"github.com/travigo/railops/pkg/simulator"
	"golang.org/x/exp/slices"
)

// Detector looks one tick ahead for section capacity breaches and a few ticks ahead for platform
// contention. It never mutates what it is given.
type Detector struct {
	network *network.Network
	config  config.Conflicts
}

func NewDetector(net *network.Network, conflictsConfig config.Conflicts) *Detector {
	return &Detector{
		network: net,
		config:  conflictsConfig,
	}
}

func (d *Detector) Detect(trains []*ctdf.Train, tracker *occupancy.Tracker, tick int64, duration time.Duration) []ctdf.Conflict {
	ordered := make([]*ctdf.Train, 0, len(trains))
	byIdentifier := map[string]*ctdf.Train{}
	for _, train := range trains {
		if train.Removed {
			continue
		}
		ordered = append(ordered, train)
		byIdentifier[train.PrimaryIdentifier] = train
	}
	slices.SortFunc(ordered, func(a *ctdf.Train, b *ctdf.Train) int {
		return strings.Compare(a.PrimaryIdentifier, b.PrimaryIdentifier)
	})

	var conflicts []ctdf.Conflict
	conflicts = append(conflicts, d.sectionConflicts(ordered, byIdentifier, tracker, tick, duration)...)
	conflicts = append(conflicts, d.starvationConflicts(ordered)...)
	conflicts = append(conflicts, d.platformConflicts(ordered, byIdentifier, tracker, duration)...)

	Sort(conflicts)

	return conflicts
}

// Sort orders conflicts by location, then first involved train, then type
func Sort(conflicts []ctdf.Conflict) {
	for i := range conflicts {
		slices.Sort(conflicts[i].TrainRefs)
	}

	slices.SortFunc(conflicts, func(a ctdf.Conflict, b ctdf.Conflict) int {
		if c := strings.Compare(a.LocationRef, b.LocationRef); c != 0 {
			return c
		}
		if c := strings.Compare(firstTrain(a), firstTrain(b)); c != 0 {
			return c
		}
		return strings.Compare(string(a.Type), string(b.Type))
	})
}

func firstTrain(conflict ctdf.Conflict) string {
	if len(conflict.TrainRefs) == 0 {
		return ""
	}

	return conflict.TrainRefs[0]
}

// departureSection is the section a station train will try to enter next tick, if any
func (d *Detector) departureSection(train *ctdf.Train, tick int64) (ctdf.TrackSection, bool) {
	if !train.AtStation() || train.AtTerminus() || train.Held(tick+1) {
		return ctdf.TrackSection{}, false
	}

	return d.network.SectionBetween(train.CurrentStationRef, train.NextStationRef())
}

func (d *Detector) sectionConflicts(trains []*ctdf.Train, byIdentifier map[string]*ctdf.Train, tracker *occupancy.Tracker, tick int64, duration time.Duration) []ctdf.Conflict {
	var conflicts []ctdf.Conflict
	entrants := map[string][]*ctdf.Train{}
	var sectionOrder []string

	for _, train := range trains {
		section, departing := d.departureSection(train, tick)
		if !departing {
			continue
		}

		if section.Blocked {
			conflicts = append(conflicts, ctdf.Conflict{
				Type:        ctdf.ConflictTypeBlockedRoute,
				TrainRefs:   []string{train.PrimaryIdentifier},
				LocationRef: section.PrimaryIdentifier,
				Severity:    ctdf.SeverityHigh,
			})
			continue
		}

		if _, seen := entrants[section.PrimaryIdentifier]; !seen {
			sectionOrder = append(sectionOrder, section.PrimaryIdentifier)
		}
		entrants[section.PrimaryIdentifier] = append(entrants[section.PrimaryIdentifier], train)
	}

	for _, sectionRef := range sectionOrder {
		section, _ := d.network.Section(sectionRef)
		involved := []*ctdf.Train{}
		contended := d.turnedAway(entrants[sectionRef], sectionRef, tracker)

		for _, occupantRef := range tracker.Occupants(sectionRef) {
			occupant, exists := byIdentifier[occupantRef]
			if !exists {
				continue
			}
			if !contended && d.clearsSection(occupant, section, tracker, duration) {
				continue
			}
			involved = append(involved, occupant)
		}
		involved = append(involved, entrants[sectionRef]...)

		if len(involved) < 2 || len(involved) <= section.Capacity {
			continue
		}

		conflicts = append(conflicts, ctdf.Conflict{
			Type:        ctdf.ConflictTypeSectionCapacity,
			TrainRefs:   trainRefs(involved),
			LocationRef: sectionRef,
			Severity:    severityFor(involved, ctdf.SeverityMedium),
		})
	}

	return conflicts
}

// turnedAway reports whether a waiting entrant was already refused the section and it is still
// full, the contention has happened even if the occupants clear next tick
func (d *Detector) turnedAway(entrants []*ctdf.Train, sectionRef string, tracker *occupancy.Tracker) bool {
	if tracker.FreeCapacity(sectionRef) > 0 {
		return false
	}

	for _, train := range entrants {
		if train.HeldTicks > 0 {
			return true
		}
	}

	return false
}

// clearsSection reports whether an occupant will reach a free platform next tick
func (d *Detector) clearsSection(train *ctdf.Train, section ctdf.TrackSection, tracker *occupancy.Tracker, duration time.Duration) bool {
	if simulator.ProjectProgress(train, section, duration) < 1 {
		return false
	}

	return tracker.FreePlatforms(train.NextStationRef()) > 0
}

func (d *Detector) starvationConflicts(trains []*ctdf.Train) []ctdf.Conflict {
	var conflicts []ctdf.Conflict

	for _, train := range trains {
		if train.HeldTicks < d.config.StarvationTicks {
			continue
		}

		// Where the train is trying to get to
		locationRef := train.NextStationRef()
		if train.AtStation() {
			if section, exists := d.network.SectionBetween(train.CurrentStationRef, train.NextStationRef()); exists {
				locationRef = section.PrimaryIdentifier
			}
		}

		severity := ctdf.SeverityHigh
		if train.HeldTicks >= 2*d.config.StarvationTicks {
			severity = ctdf.SeverityCritical
		}

		conflicts = append(conflicts, ctdf.Conflict{
			Type:        ctdf.ConflictTypeStarvation,
			TrainRefs:   []string{train.PrimaryIdentifier},
			LocationRef: locationRef,
			Severity:    severity,
		})
	}

	return conflicts
}

func (d *Detector) platformConflicts(trains []*ctdf.Train, byIdentifier map[string]*ctdf.Train, tracker *occupancy.Tracker, duration time.Duration) []ctdf.Conflict {
	var conflicts []ctdf.Conflict
	arriving := map[string][]*ctdf.Train{}

	for _, train := range trains {
		if !train.OnSection() {
			continue
		}

		section, exists := d.network.Section(train.CurrentSectionRef)
		if !exists {
			continue
		}

		if simulator.TicksToArrive(train, section, duration) <= d.config.PlatformLookaheadTicks {
			stationRef := train.NextStationRef()
			arriving[stationRef] = append(arriving[stationRef], train)
		}
	}

	for _, station := range d.network.Stations() {
		arrivals := arriving[station.PrimaryIdentifier]
		available := station.AvailablePlatforms()

		involved := []*ctdf.Train{}
		var closedHolders []*ctdf.Train
		for slot, holderRef := range tracker.PlatformOccupants(station.PrimaryIdentifier) {
			holder, exists := byIdentifier[holderRef]
			if !exists {
				continue
			}
			if slot >= available {
				closedHolders = append(closedHolders, holder)
				continue
			}
			// Trains that are due to leave free their platform in time
			if holder.AtTerminus() || holder.HeldTicks > 0 {
				involved = append(involved, holder)
			}
		}
		involved = append(involved, arrivals...)

		overbooked := len(arrivals) > 0 && len(involved) > available && (len(involved) >= 2 || available == 0)
		if !overbooked && len(closedHolders) == 0 {
			continue
		}

		severity := ctdf.SeverityMedium
		if available == 0 {
			severity = ctdf.SeverityHigh
		}

		if !overbooked {
			involved = nil
		}
		involved = append(involved, closedHolders...)

		conflicts = append(conflicts, ctdf.Conflict{
			Type:        ctdf.ConflictTypePlatformContention,
			TrainRefs:   trainRefs(involved),
			LocationRef: station.PrimaryIdentifier,
			Severity:    severityFor(involved, severity),
		})
	}

	return conflicts
}

func trainRefs(trains []*ctdf.Train) []string {
	refs := make([]string, 0, len(trains))
	for _, train := range trains {
		refs = append(refs, train.PrimaryIdentifier)
	}
	slices.Sort(refs)

	return refs
}

// severityFor raises the base severity when a critical train is caught up in the conflict
func severityFor(trains []*ctdf.Train, base ctdf.Severity) ctdf.Severity {
	for _, train := range trains {
		if train.Status == ctdf.TrainStatusCritical && !base.AtLeast(ctdf.SeverityHigh) {
			return ctdf.SeverityHigh
		}
	}

	return base
}
