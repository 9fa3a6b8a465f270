package incidents

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/travigo/railops/pkg/ctdf"
	"github.com/travigo/railops/pkg/network"
	"golang.org/x/exp/slices"
)

// networkHolder marks sections that are blocked in the static network definition
const networkHolder = "network"

var identifierPattern = regexp.MustCompile(`^INC-(\d+)$`)

// Manager keeps the incident log and the infrastructure restrictions incidents impose.
// It is not safe for concurrent use, the engine serialises access to it.
type Manager struct {
	network *network.Network

	incidents    []*ctdf.Incident
	byIdentifier map[string]*ctdf.Incident
	sequence     int

	// Section -> identifiers of everything currently blocking it
	blocks map[string]map[string]struct{}

	basePlatformClosures map[string]int
	platformClosures     map[string]int

	Now func() time.Time
}

func NewManager(net *network.Network) *Manager {
	manager := &Manager{
		network:              net,
		byIdentifier:         map[string]*ctdf.Incident{},
		blocks:               map[string]map[string]struct{}{},
		basePlatformClosures: map[string]int{},
		platformClosures:     map[string]int{},
		Now:                  time.Now,
	}

	for _, section := range net.Sections() {
		if section.Blocked {
			manager.block(section.PrimaryIdentifier, networkHolder)
		}
	}
	for _, station := range net.Stations() {
		manager.basePlatformClosures[station.PrimaryIdentifier] = station.ClosedPlatforms
	}

	return manager
}

// Load adds incidents that already exist, open ones have their restrictions applied
func (m *Manager) Load(incidents []ctdf.Incident, tick int64) error {
	for _, incident := range incidents {
		if incident.PrimaryIdentifier == "" {
			return fmt.Errorf("%w: incident identifier missing", ctdf.ErrInvalidIncident)
		}
		if _, exists := m.byIdentifier[incident.PrimaryIdentifier]; exists {
			return fmt.Errorf("%w: duplicate incident %s", ctdf.ErrInvalidIncident, incident.PrimaryIdentifier)
		}
		if err := m.validate(incident.Type, incident.LocationRef, incident.Severity); err != nil {
			return err
		}

		incident := incident
		if incident.Status == "" {
			incident.Status = ctdf.IncidentStatusOpen
		}
		if incident.SuggestedAction == "" {
			incident.SuggestedAction = ctdf.SuggestedIncidentAction(incident.Type, incident.Severity, m.locationName(incident.LocationRef))
		}
		if incident.CreationDateTime.IsZero() {
			incident.CreationDateTime = m.Now()
		}
		incident.CreatedTick = tick

		m.add(&incident)
		if incident.IsOpen() {
			m.restrict(&incident)
		}

		if match := identifierPattern.FindStringSubmatch(incident.PrimaryIdentifier); match != nil {
			if number, err := strconv.Atoi(match[1]); err == nil && number > m.sequence {
				m.sequence = number
			}
		}
	}

	return nil
}

func (m *Manager) CreateIncident(incidentType ctdf.IncidentType, locationRef string, severity ctdf.Severity, description string, tick int64) (ctdf.Incident, error) {
	if err := m.validate(incidentType, locationRef, severity); err != nil {
		return ctdf.Incident{}, err
	}

	m.sequence++
	identifier := fmt.Sprintf("INC-%03d", m.sequence)
	for m.byIdentifier[identifier] != nil {
		m.sequence++
		identifier = fmt.Sprintf("INC-%03d", m.sequence)
	}

	incident := &ctdf.Incident{
		PrimaryIdentifier: identifier,
		Type:              incidentType,
		LocationRef:       locationRef,
		Severity:          severity,
		Status:            ctdf.IncidentStatusOpen,
		Description:       description,
		SuggestedAction:   ctdf.SuggestedIncidentAction(incidentType, severity, m.locationName(locationRef)),
		CreationDateTime:  m.Now(),
		CreatedTick:       tick,
	}

	m.add(incident)
	m.restrict(incident)

	log.Info().
		Str("incident", incident.PrimaryIdentifier).
		Str("type", string(incident.Type)).
		Str("location", incident.LocationRef).
		Str("severity", string(incident.Severity)).
		Strs("blocked", incident.BlockedSectionRefs).
		Msg("Incident created")

	return *incident, nil
}

func (m *Manager) ResolveIncident(identifier string, tick int64) (ctdf.Incident, error) {
	incident, exists := m.byIdentifier[identifier]
	if !exists {
		return ctdf.Incident{}, fmt.Errorf("%w: %s", ctdf.ErrUnknownIncident, identifier)
	}
	if !incident.IsOpen() {
		return ctdf.Incident{}, fmt.Errorf("%w: %s is already resolved", ctdf.ErrUnknownIncident, identifier)
	}

	incident.Status = ctdf.IncidentStatusResolved
	incident.ResolvedDateTime = m.Now()
	incident.ResolvedTick = tick

	for _, sectionRef := range incident.BlockedSectionRefs {
		m.unblock(sectionRef, incident.PrimaryIdentifier)
	}
	if incident.ClosedPlatformRef != "" {
		m.platformClosures[incident.ClosedPlatformRef]--
		m.applyPlatformClosures(incident.ClosedPlatformRef)
	}

	log.Info().Str("incident", incident.PrimaryIdentifier).Msg("Incident resolved")

	return *incident, nil
}

// Blockers lists what is holding a section blocked
func (m *Manager) Blockers(sectionRef string) []string {
	holders := make([]string, 0, len(m.blocks[sectionRef]))
	for holder := range m.blocks[sectionRef] {
		holders = append(holders, holder)
	}
	slices.Sort(holders)

	return holders
}

func (m *Manager) Incident(identifier string) (ctdf.Incident, bool) {
	incident, exists := m.byIdentifier[identifier]
	if !exists {
		return ctdf.Incident{}, false
	}

	return copyIncident(incident), true
}

func (m *Manager) All() []ctdf.Incident {
	incidents := make([]ctdf.Incident, 0, len(m.incidents))
	for _, incident := range m.incidents {
		incidents = append(incidents, copyIncident(incident))
	}

	return incidents
}

func (m *Manager) Open() []ctdf.Incident {
	incidents := []ctdf.Incident{}
	for _, incident := range m.incidents {
		if incident.IsOpen() {
			incidents = append(incidents, copyIncident(incident))
		}
	}

	return incidents
}

func (m *Manager) validate(incidentType ctdf.IncidentType, locationRef string, severity ctdf.Severity) error {
	if !incidentType.Valid() {
		return fmt.Errorf("%w: unknown incident type %q", ctdf.ErrInvalidIncident, incidentType)
	}
	if !severity.Valid() {
		return fmt.Errorf("%w: unknown severity %q", ctdf.ErrInvalidIncident, severity)
	}
	if !m.network.HasStation(locationRef) && !m.network.HasSection(locationRef) {
		return fmt.Errorf("%w: %s", ctdf.ErrUnknownLocation, locationRef)
	}

	return nil
}

func (m *Manager) add(incident *ctdf.Incident) {
	m.incidents = append(m.incidents, incident)
	m.byIdentifier[incident.PrimaryIdentifier] = incident
}

// restrict applies the blocks and closures an open incident implies
func (m *Manager) restrict(incident *ctdf.Incident) {
	if incident.Type.ImpactsSections() && incident.Severity.AtLeast(ctdf.SeverityHigh) {
		var sectionRefs []string

		if m.network.HasSection(incident.LocationRef) {
			sectionRefs = []string{incident.LocationRef}
		} else {
			sections, _ := m.network.Neighbors(incident.LocationRef)
			for _, section := range sections {
				sectionRefs = append(sectionRefs, section.PrimaryIdentifier)
			}
		}

		for _, sectionRef := range sectionRefs {
			m.block(sectionRef, incident.PrimaryIdentifier)
		}
		incident.BlockedSectionRefs = sectionRefs
	}

	if incident.Type == ctdf.IncidentTypeRollingStock && incident.Severity.AtLeast(ctdf.SeverityMedium) && m.network.HasStation(incident.LocationRef) {
		m.platformClosures[incident.LocationRef]++
		m.applyPlatformClosures(incident.LocationRef)
		incident.ClosedPlatformRef = incident.LocationRef
	}
}

func (m *Manager) block(sectionRef string, holder string) {
	holders, exists := m.blocks[sectionRef]
	if !exists {
		holders = map[string]struct{}{}
		m.blocks[sectionRef] = holders
	}
	holders[holder] = struct{}{}

	if err := m.network.ApplyBlock(sectionRef, true); err != nil {
		log.Error().Err(err).Str("section", sectionRef).Msg("Failed to block section")
	}
}

func (m *Manager) unblock(sectionRef string, holder string) {
	holders := m.blocks[sectionRef]
	delete(holders, holder)

	if len(holders) > 0 {
		return
	}
	delete(m.blocks, sectionRef)

	if err := m.network.ApplyBlock(sectionRef, false); err != nil {
		log.Error().Err(err).Str("section", sectionRef).Msg("Failed to unblock section")
	}
}

func (m *Manager) applyPlatformClosures(stationRef string) {
	closed := m.basePlatformClosures[stationRef] + m.platformClosures[stationRef]
	if err := m.network.SetClosedPlatforms(stationRef, closed); err != nil {
		log.Error().Err(err).Str("station", stationRef).Msg("Failed to close platforms")
	}
}

func (m *Manager) locationName(locationRef string) string {
	if station, exists := m.network.Station(locationRef); exists && station.PrimaryName != "" {
		return station.PrimaryName
	}

	return locationRef
}

func copyIncident(incident *ctdf.Incident) ctdf.Incident {
	incidentCopy := *incident
	incidentCopy.BlockedSectionRefs = slices.Clone(incident.BlockedSectionRefs)

	return incidentCopy
}
