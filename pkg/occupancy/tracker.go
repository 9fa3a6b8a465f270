package occupancy

import (
	"fmt"

	"github.com/travigo/railops/pkg/ctdf"
	"github.com/travigo/railops/pkg/network"
	"golang.org/x/exp/slices"
)

// Tracker records which trains hold which sections and platforms. It has a single writer, the tick
// driver, and does no locking of its own.
type Tracker struct {
	network *network.Network

	sections map[string]map[string]struct{}

	// station identifier -> platform slots, empty string is a free platform
	platforms map[string][]string

	// train identifier -> where it currently is
	trainSection  map[string]string
	trainPlatform map[string]platformSlot
}

type platformSlot struct {
	stationRef string
	platform   int
}

func NewTracker(net *network.Network) *Tracker {
	tracker := &Tracker{
		network:       net,
		sections:      map[string]map[string]struct{}{},
		platforms:     map[string][]string{},
		trainSection:  map[string]string{},
		trainPlatform: map[string]platformSlot{},
	}

	for _, station := range net.Stations() {
		tracker.platforms[station.PrimaryIdentifier] = make([]string, station.Platforms)
	}
	for _, section := range net.Sections() {
		tracker.sections[section.PrimaryIdentifier] = map[string]struct{}{}
	}

	return tracker
}

// TryEnter records the train on the section when it is open and has room
func (t *Tracker) TryEnter(trainRef string, sectionRef string) error {
	section, exists := t.network.Section(sectionRef)
	if !exists {
		return fmt.Errorf("%w: section %s", ctdf.ErrUnknownLocation, sectionRef)
	}

	occupants := t.sections[sectionRef]
	if _, already := occupants[trainRef]; already {
		return nil
	}

	if section.Blocked {
		return fmt.Errorf("%w: %s", ctdf.ErrSectionBlocked, sectionRef)
	}
	if len(occupants) >= section.Capacity {
		return fmt.Errorf("%w: %s", ctdf.ErrSectionFull, sectionRef)
	}

	if current, onSection := t.trainSection[trainRef]; onSection {
		return fmt.Errorf("train %s is already on section %s", trainRef, current)
	}

	occupants[trainRef] = struct{}{}
	t.trainSection[trainRef] = sectionRef

	return nil
}

func (t *Tracker) Leave(trainRef string, sectionRef string) {
	if occupants, exists := t.sections[sectionRef]; exists {
		delete(occupants, trainRef)
	}

	if t.trainSection[trainRef] == sectionRef {
		delete(t.trainSection, trainRef)
	}
}

// TryOccupyPlatform gives the train the lowest numbered free platform. Platforms above the open
// count are treated as closed.
func (t *Tracker) TryOccupyPlatform(trainRef string, stationRef string) (int, error) {
	slots, exists := t.platforms[stationRef]
	if !exists {
		return 0, fmt.Errorf("%w: station %s", ctdf.ErrUnknownLocation, stationRef)
	}

	if current, holding := t.trainPlatform[trainRef]; holding && current.stationRef == stationRef {
		return current.platform, nil
	}

	available := t.network.AvailablePlatforms(stationRef)
	for i := 0; i < available && i < len(slots); i++ {
		if slots[i] == "" {
			t.assignPlatform(trainRef, stationRef, i+1)
			return i + 1, nil
		}
	}

	return 0, fmt.Errorf("%w: %s", ctdf.ErrNoPlatformAvailable, stationRef)
}

// OccupyPlatform claims a specific platform, moving the train off any platform it holds at the
// same station
func (t *Tracker) OccupyPlatform(trainRef string, stationRef string, platform int) error {
	slots, exists := t.platforms[stationRef]
	if !exists {
		return fmt.Errorf("%w: station %s", ctdf.ErrUnknownLocation, stationRef)
	}

	if platform < 1 || platform > t.network.AvailablePlatforms(stationRef) || platform > len(slots) {
		return fmt.Errorf("%w: platform %d at %s is not open", ctdf.ErrNoPlatformAvailable, platform, stationRef)
	}

	occupant := slots[platform-1]
	if occupant == trainRef {
		return nil
	}
	if occupant != "" {
		return fmt.Errorf("%w: platform %d at %s is held by %s", ctdf.ErrNoPlatformAvailable, platform, stationRef, occupant)
	}

	if current, holding := t.trainPlatform[trainRef]; holding {
		if current.stationRef != stationRef {
			return fmt.Errorf("train %s is at %s not %s", trainRef, current.stationRef, stationRef)
		}
		t.ReleasePlatform(trainRef, stationRef)
	}

	t.assignPlatform(trainRef, stationRef, platform)

	return nil
}

func (t *Tracker) assignPlatform(trainRef string, stationRef string, platform int) {
	t.platforms[stationRef][platform-1] = trainRef
	t.trainPlatform[trainRef] = platformSlot{stationRef: stationRef, platform: platform}
}

func (t *Tracker) ReleasePlatform(trainRef string, stationRef string) {
	for i, occupant := range t.platforms[stationRef] {
		if occupant == trainRef {
			t.platforms[stationRef][i] = ""
		}
	}

	if current, holding := t.trainPlatform[trainRef]; holding && current.stationRef == stationRef {
		delete(t.trainPlatform, trainRef)
	}
}

// Occupants lists the trains on a section ordered by identifier
func (t *Tracker) Occupants(sectionRef string) []string {
	occupants := make([]string, 0, len(t.sections[sectionRef]))
	for trainRef := range t.sections[sectionRef] {
		occupants = append(occupants, trainRef)
	}
	slices.Sort(occupants)

	return occupants
}

// PlatformOccupants returns the slot table for a station, index 0 is platform 1
func (t *Tracker) PlatformOccupants(stationRef string) []string {
	return slices.Clone(t.platforms[stationRef])
}

func (t *Tracker) Platform(trainRef string) (string, int, bool) {
	slot, holding := t.trainPlatform[trainRef]
	return slot.stationRef, slot.platform, holding
}

func (t *Tracker) Section(trainRef string) (string, bool) {
	sectionRef, onSection := t.trainSection[trainRef]
	return sectionRef, onSection
}

func (t *Tracker) FreeCapacity(sectionRef string) int {
	section, exists := t.network.Section(sectionRef)
	if !exists {
		return 0
	}

	free := section.Capacity - len(t.sections[sectionRef])
	if free < 0 {
		return 0
	}

	return free
}

func (t *Tracker) FreePlatforms(stationRef string) int {
	slots := t.platforms[stationRef]
	available := t.network.AvailablePlatforms(stationRef)

	free := 0
	for i := 0; i < available && i < len(slots); i++ {
		if slots[i] == "" {
			free++
		}
	}

	return free
}

// Forget drops every claim a train holds, used when a train leaves the simulation
func (t *Tracker) Forget(trainRef string) {
	if sectionRef, onSection := t.trainSection[trainRef]; onSection {
		t.Leave(trainRef, sectionRef)
	}
	if slot, holding := t.trainPlatform[trainRef]; holding {
		t.ReleasePlatform(trainRef, slot.stationRef)
	}
}

// Verify checks section capacity and that no train is in two places at once
func (t *Tracker) Verify() error {
	for _, section := range t.network.Sections() {
		if occupants := len(t.sections[section.PrimaryIdentifier]); occupants > section.Capacity {
			return fmt.Errorf("section %s has %d occupants over capacity %d", section.PrimaryIdentifier, occupants, section.Capacity)
		}
	}

	for trainRef, sectionRef := range t.trainSection {
		if slot, holding := t.trainPlatform[trainRef]; holding {
			return fmt.Errorf("train %s is on section %s and platform %d at %s", trainRef, sectionRef, slot.platform, slot.stationRef)
		}
	}

	seen := map[string]string{}
	for stationRef, slots := range t.platforms {
		for _, occupant := range slots {
			if occupant == "" {
				continue
			}
			if other, exists := seen[occupant]; exists {
				return fmt.Errorf("train %s holds platforms at %s and %s", occupant, other, stationRef)
			}
			seen[occupant] = stationRef
		}
	}

	return nil
}

// Clone copies the tracker against another network instance, normally a clone of the original
func (t *Tracker) Clone(net *network.Network) *Tracker {
	clone := &Tracker{
		network:       net,
		sections:      make(map[string]map[string]struct{}, len(t.sections)),
		platforms:     make(map[string][]string, len(t.platforms)),
		trainSection:  make(map[string]string, len(t.trainSection)),
		trainPlatform: make(map[string]platformSlot, len(t.trainPlatform)),
	}

	for sectionRef, occupants := range t.sections {
		occupantsCopy := make(map[string]struct{}, len(occupants))
		for trainRef := range occupants {
			occupantsCopy[trainRef] = struct{}{}
		}
		clone.sections[sectionRef] = occupantsCopy
	}
	for stationRef, slots := range t.platforms {
		clone.platforms[stationRef] = slices.Clone(slots)
	}
	for trainRef, sectionRef := range t.trainSection {
		clone.trainSection[trainRef] = sectionRef
	}
	for trainRef, slot := range t.trainPlatform {
		clone.trainPlatform[trainRef] = slot
	}

	return clone
}
