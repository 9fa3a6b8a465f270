package network

import (
	"fmt"
	"strings"

	"github.com/travigo/railops/pkg/ctdf"
	"golang.org/x/exp/slices"
)

// Network is the static station and track graph. Only section blocks and platform closures
// change after Load.
type Network struct {
	stations map[string]*ctdf.Station
	sections map[string]*ctdf.TrackSection

	// station identifier -> incident section identifiers, sorted
	adjacency map[string][]string

	stationOrder []string
	sectionOrder []string
}

func Load(stations []ctdf.Station, tracks []ctdf.TrackSection) (*Network, error) {
	if len(stations) == 0 {
		return nil, fmt.Errorf("%w: network has no stations", ctdf.ErrInvalidTopology)
	}

	network := &Network{
		stations:  map[string]*ctdf.Station{},
		sections:  map[string]*ctdf.TrackSection{},
		adjacency: map[string][]string{},
	}

	for _, station := range stations {
		station := station

		if station.PrimaryIdentifier == "" {
			return nil, fmt.Errorf("%w: station without identifier", ctdf.ErrInvalidTopology)
		}
		if _, exists := network.stations[station.PrimaryIdentifier]; exists {
			return nil, fmt.Errorf("%w: duplicate station %s", ctdf.ErrInvalidTopology, station.PrimaryIdentifier)
		}
		if station.Platforms < 1 {
			return nil, fmt.Errorf("%w: station %s has no platforms", ctdf.ErrInvalidTopology, station.PrimaryIdentifier)
		}

		network.stations[station.PrimaryIdentifier] = &station
		network.stationOrder = append(network.stationOrder, station.PrimaryIdentifier)
		network.adjacency[station.PrimaryIdentifier] = []string{}
	}

	for _, track := range tracks {
		track := track

		if track.PrimaryIdentifier == "" {
			return nil, fmt.Errorf("%w: track section without identifier", ctdf.ErrInvalidTopology)
		}
		if _, exists := network.sections[track.PrimaryIdentifier]; exists {
			return nil, fmt.Errorf("%w: duplicate track section %s", ctdf.ErrInvalidTopology, track.PrimaryIdentifier)
		}
		if _, exists := network.stations[track.FromStationRef]; !exists {
			return nil, fmt.Errorf("%w: track section %s references unknown station %q", ctdf.ErrInvalidTopology, track.PrimaryIdentifier, track.FromStationRef)
		}
		if _, exists := network.stations[track.ToStationRef]; !exists {
			return nil, fmt.Errorf("%w: track section %s references unknown station %q", ctdf.ErrInvalidTopology, track.PrimaryIdentifier, track.ToStationRef)
		}
		if track.FromStationRef == track.ToStationRef {
			return nil, fmt.Errorf("%w: track section %s loops back to %s", ctdf.ErrInvalidTopology, track.PrimaryIdentifier, track.FromStationRef)
		}
		if track.LengthKm <= 0 || track.MaxSpeedKmh <= 0 {
			return nil, fmt.Errorf("%w: track section %s needs a positive length and speed", ctdf.ErrInvalidTopology, track.PrimaryIdentifier)
		}
		if track.Capacity < 0 {
			return nil, fmt.Errorf("%w: track section %s has negative capacity", ctdf.ErrInvalidTopology, track.PrimaryIdentifier)
		}
		if track.Capacity == 0 {
			track.Capacity = 1
		}

		network.sections[track.PrimaryIdentifier] = &track
		network.sectionOrder = append(network.sectionOrder, track.PrimaryIdentifier)
		network.adjacency[track.FromStationRef] = append(network.adjacency[track.FromStationRef], track.PrimaryIdentifier)
		network.adjacency[track.ToStationRef] = append(network.adjacency[track.ToStationRef], track.PrimaryIdentifier)
	}

	slices.Sort(network.stationOrder)
	slices.Sort(network.sectionOrder)
	for stationRef := range network.adjacency {
		slices.Sort(network.adjacency[stationRef])
	}

	if unreachable := network.unreachableFrom(network.stationOrder[0]); len(unreachable) > 0 {
		return nil, fmt.Errorf("%w: network is disconnected, unreachable from %s: %s", ctdf.ErrInvalidTopology, network.stationOrder[0], strings.Join(unreachable, ", "))
	}

	return network, nil
}

func (n *Network) unreachableFrom(start string) []string {
	visited := map[string]bool{start: true}
	queue := []string{start}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for _, sectionRef := range n.adjacency[current] {
			next := n.sections[sectionRef].OtherEnd(current)
			if !visited[next] {
				visited[next] = true
				queue = append(queue, next)
			}
		}
	}

	var unreachable []string
	for _, stationRef := range n.stationOrder {
		if !visited[stationRef] {
			unreachable = append(unreachable, stationRef)
		}
	}

	return unreachable
}

// Station returns a copy of the station
func (n *Network) Station(identifier string) (ctdf.Station, bool) {
	station, exists := n.stations[identifier]
	if !exists {
		return ctdf.Station{}, false
	}

	return *station, true
}

// Section returns a copy of the track section
func (n *Network) Section(identifier string) (ctdf.TrackSection, bool) {
	section, exists := n.sections[identifier]
	if !exists {
		return ctdf.TrackSection{}, false
	}

	return *section, true
}

func (n *Network) HasStation(identifier string) bool {
	_, exists := n.stations[identifier]
	return exists
}

func (n *Network) HasSection(identifier string) bool {
	_, exists := n.sections[identifier]
	return exists
}

func (n *Network) Stations() []ctdf.Station {
	stations := make([]ctdf.Station, 0, len(n.stationOrder))
	for _, identifier := range n.stationOrder {
		stations = append(stations, *n.stations[identifier])
	}

	return stations
}

func (n *Network) Sections() []ctdf.TrackSection {
	sections := make([]ctdf.TrackSection, 0, len(n.sectionOrder))
	for _, identifier := range n.sectionOrder {
		sections = append(sections, *n.sections[identifier])
	}

	return sections
}

// Neighbors returns the sections incident to a station ordered by identifier
func (n *Network) Neighbors(stationRef string) ([]ctdf.TrackSection, error) {
	sectionRefs, exists := n.adjacency[stationRef]
	if !exists {
		return nil, fmt.Errorf("%w: station %s", ctdf.ErrUnknownLocation, stationRef)
	}

	sections := make([]ctdf.TrackSection, 0, len(sectionRefs))
	for _, sectionRef := range sectionRefs {
		sections = append(sections, *n.sections[sectionRef])
	}

	return sections, nil
}

// SectionBetween picks the section joining two stations. When several run in parallel the first
// unblocked one by identifier wins, falling back to the first blocked one.
func (n *Network) SectionBetween(a string, b string) (ctdf.TrackSection, bool) {
	var fallback *ctdf.TrackSection

	for _, sectionRef := range n.adjacency[a] {
		section := n.sections[sectionRef]
		if !section.Connects(a, b) {
			continue
		}

		if !section.Blocked {
			return *section, true
		}
		if fallback == nil {
			fallback = section
		}
	}

	if fallback != nil {
		return *fallback, true
	}

	return ctdf.TrackSection{}, false
}

// ApplyBlock sets the blocked flag. Trains already on the section are not affected.
func (n *Network) ApplyBlock(sectionRef string, blocked bool) error {
	section, exists := n.sections[sectionRef]
	if !exists {
		return fmt.Errorf("%w: section %s", ctdf.ErrUnknownLocation, sectionRef)
	}

	section.Blocked = blocked

	return nil
}

func (n *Network) IsBlocked(sectionRef string) bool {
	section, exists := n.sections[sectionRef]
	return exists && section.Blocked
}

func (n *Network) SetClosedPlatforms(stationRef string, closed int) error {
	station, exists := n.stations[stationRef]
	if !exists {
		return fmt.Errorf("%w: station %s", ctdf.ErrUnknownLocation, stationRef)
	}

	if closed < 0 {
		closed = 0
	}
	if closed > station.Platforms {
		closed = station.Platforms
	}
	station.ClosedPlatforms = closed

	return nil
}

func (n *Network) AvailablePlatforms(stationRef string) int {
	station, exists := n.stations[stationRef]
	if !exists {
		return 0
	}

	return station.AvailablePlatforms()
}

// ValidateRoute checks every consecutive pair of stations is joined by a section
func (n *Network) ValidateRoute(route []string) error {
	if len(route) < 2 {
		return fmt.Errorf("route needs at least 2 stations")
	}

	for i, stationRef := range route {
		if !n.HasStation(stationRef) {
			return fmt.Errorf("%w: station %s", ctdf.ErrUnknownLocation, stationRef)
		}

		if i > 0 {
			if _, exists := n.SectionBetween(route[i-1], stationRef); !exists {
				return fmt.Errorf("no section between %s and %s", route[i-1], stationRef)
			}
		}
	}

	return nil
}

// Clone deep copies the network so it can be handed to a reader that must not see later changes
func (n *Network) Clone() *Network {
	clone := &Network{
		stations:     make(map[string]*ctdf.Station, len(n.stations)),
		sections:     make(map[string]*ctdf.TrackSection, len(n.sections)),
		adjacency:    make(map[string][]string, len(n.adjacency)),
		stationOrder: slices.Clone(n.stationOrder),
		sectionOrder: slices.Clone(n.sectionOrder),
	}

	for identifier, station := range n.stations {
		stationCopy := *station
		clone.stations[identifier] = &stationCopy
	}
	for identifier, section := range n.sections {
		sectionCopy := *section
		clone.sections[identifier] = &sectionCopy
	}
	for identifier, sectionRefs := range n.adjacency {
		clone.adjacency[identifier] = slices.Clone(sectionRefs)
	}

	return clone
}
