package simulator

import (
	"errors"
	"math"
	"time"

	"github.com/sourcegraph/conc/pool"
	"github.com/travigo/railops/pkg/config"
	"github.com/travigo/railops/pkg/ctdf"
	"github.com/travigo/railops/pkg/network"
	"github.com/travigo/railops/pkg/occupancy"
	"github.com/travigo/railops/pkg/priority"
	"golang.org/x/exp/slices"
)

const (
	restartEnergy = 10.0
	departEnergy  = 2.0
)

// Simulator moves trains one tick at a time. Moves are planned concurrently and then committed
// against the occupancy tracker one train at a time in dispatch order.
type Simulator struct {
	network *network.Network
	tracker *occupancy.Tracker
	ranker  *priority.Ranker
	config  config.Simulation
}

func New(net *network.Network, tracker *occupancy.Tracker, ranker *priority.Ranker, simulationConfig config.Simulation) *Simulator {
	return &Simulator{
		network: net,
		tracker: tracker,
		ranker:  ranker,
		config:  simulationConfig,
	}
}

type HeldTrain struct {
	TrainRef    string
	LocationRef string
	Reason      error
}

type Report struct {
	Tick int64

	Moved   []string
	Held    []HeldTrain
	Arrived []string
	Removed []string

	StatusChanges []ctdf.TrainStatusChange

	DelayMinutes float64
	EnergyUnits  float64
}

type moveKind int

const (
	moveNone moveKind = iota
	moveHold
	moveDepart
	moveAdvance
	moveArrive
	moveRemove
)

type move struct {
	train *ctdf.Train
	kind  moveKind

	sectionRef string
	stationRef string

	progress float64
	speed    float64
	distance float64
}

// phase puts moves that free infrastructure first: removals free platforms for arrivals, and
// arrivals free sections for departures
func (m move) phase() int {
	switch m.kind {
	case moveRemove:
		return 0
	case moveArrive:
		return 1
	default:
		return 2
	}
}

func (s *Simulator) Step(trains []*ctdf.Train, tick int64, duration time.Duration) Report {
	report := Report{Tick: tick}

	p := pool.NewWithResults[move]()
	if s.config.Workers > 0 {
		p = p.WithMaxGoroutines(s.config.Workers)
	}
	for _, train := range trains {
		train := train
		p.Go(func() move {
			return s.plan(train, tick, duration)
		})
	}
	moves := p.Wait()

	slices.SortFunc(moves, func(a move, b move) int {
		if a.phase() != b.phase() {
			return a.phase() - b.phase()
		}
		if s.ranker.Before(a.train, b.train) {
			return -1
		}
		if s.ranker.Before(b.train, a.train) {
			return 1
		}
		return 0
	})

	for _, m := range moves {
		s.commit(m, duration, &report)
	}

	return report
}

// plan only reads the train and the network
func (s *Simulator) plan(train *ctdf.Train, tick int64, duration time.Duration) move {
	m := move{train: train, kind: moveNone}

	if train.Removed {
		return m
	}

	if train.AtStation() {
		if train.AtTerminus() {
			if train.Status == ctdf.TrainStatusStopped && s.config.TerminalPolicy == config.TerminalPolicyRemove {
				m.kind = moveRemove
			}
			return m
		}

		if train.Held(tick) {
			m.kind = moveHold
			return m
		}

		section, exists := s.network.SectionBetween(train.CurrentStationRef, train.NextStationRef())
		if !exists {
			return m
		}

		m.kind = moveDepart
		m.sectionRef = section.PrimaryIdentifier
		m.speed = LineSpeed(train, section)
		return m
	}

	section, exists := s.network.Section(train.CurrentSectionRef)
	if !exists {
		return m
	}

	m.speed = LineSpeed(train, section)
	m.sectionRef = section.PrimaryIdentifier
	m.stationRef = train.NextStationRef()
	m.progress = ProjectProgress(train, section, duration)
	m.distance = (m.progress - train.Progress) * section.LengthKm

	if m.progress >= 1 {
		m.kind = moveArrive
	} else {
		m.kind = moveAdvance
	}

	return m
}

// LineSpeed is the speed a train runs at on a section, the lower of its cruise and line speed
func LineSpeed(train *ctdf.Train, section ctdf.TrackSection) float64 {
	cruise := train.CruiseSpeedKmh
	if cruise <= 0 {
		cruise = train.Type.DefaultCruiseSpeed()
	}

	return math.Min(cruise, section.MaxSpeedKmh)
}

// ProjectProgress is the progress after running for duration, clamped to [0,1]
func ProjectProgress(train *ctdf.Train, section ctdf.TrackSection, duration time.Duration) float64 {
	advance := LineSpeed(train, section) / section.LengthKm * duration.Hours()

	return math.Max(0, math.Min(1, train.Progress+advance))
}

// TicksToArrive estimates how many ticks until an on-section train reaches the end of its section
func TicksToArrive(train *ctdf.Train, section ctdf.TrackSection, duration time.Duration) int {
	perTick := LineSpeed(train, section) / section.LengthKm * duration.Hours()
	if perTick <= 0 {
		return math.MaxInt32
	}

	return int(math.Ceil((1 - train.Progress) / perTick))
}

func (s *Simulator) commit(m move, duration time.Duration, report *Report) {
	train := m.train
	minutes := duration.Minutes()

	switch m.kind {
	case moveRemove:
		s.tracker.Forget(train.PrimaryIdentifier)
		train.Removed = true
		train.Platform = 0
		report.Removed = append(report.Removed, train.PrimaryIdentifier)

	case moveHold:
		train.SpeedKmh = 0
		train.DelayMinutes += minutes
		report.DelayMinutes += minutes
		report.Held = append(report.Held, HeldTrain{TrainRef: train.PrimaryIdentifier, LocationRef: train.CurrentStationRef, Reason: errDispatcherHold})
		s.setStatus(train, s.runningStatus(train), "held by dispatcher", report)

	case moveDepart:
		if err := s.tracker.TryEnter(train.PrimaryIdentifier, m.sectionRef); err != nil {
			s.fail(train, m.sectionRef, err, minutes, report)
			return
		}

		if train.HeldTicks > 0 {
			report.EnergyUnits += departEnergy
		}

		s.tracker.ReleasePlatform(train.PrimaryIdentifier, train.CurrentStationRef)
		train.CurrentStationRef = ""
		train.CurrentSectionRef = m.sectionRef
		train.Platform = 0
		train.Progress = 0
		train.SpeedKmh = m.speed
		train.Precedence = 0
		report.Moved = append(report.Moved, train.PrimaryIdentifier)
		s.succeed(train, "departed", report)

	case moveAdvance:
		wasStopped := train.SpeedKmh == 0
		train.Progress = m.progress
		train.SpeedKmh = m.speed
		report.EnergyUnits += energyFor(m.distance, m.speed)
		if wasStopped && train.HeldTicks > 0 {
			report.EnergyUnits += restartEnergy
		}
		report.Moved = append(report.Moved, train.PrimaryIdentifier)
		s.succeed(train, "running", report)

	case moveArrive:
		report.EnergyUnits += energyFor(m.distance, m.speed)

		platform, err := s.tracker.TryOccupyPlatform(train.PrimaryIdentifier, m.stationRef)
		if err != nil {
			// Wait at the protecting signal at the end of the section
			train.Progress = 1
			s.fail(train, m.stationRef, err, minutes, report)
			return
		}

		s.tracker.Leave(train.PrimaryIdentifier, m.sectionRef)
		train.CurrentSectionRef = ""
		train.CurrentStationRef = m.stationRef
		train.RouteIndex++
		train.Progress = 0
		train.SpeedKmh = 0
		train.Platform = platform
		report.Arrived = append(report.Arrived, train.PrimaryIdentifier)

		if train.AtTerminus() {
			train.HeldTicks = 0
			s.setStatus(train, ctdf.TrainStatusStopped, "reached end of route", report)
		} else {
			s.succeed(train, "arrived", report)
		}
	}
}

var errDispatcherHold = errors.New("dispatcher hold")

func energyFor(distanceKm float64, speed float64) float64 {
	return distanceKm * (1 + math.Pow(speed/200, 2))
}

// fail holds the train where it is and escalates its status
func (s *Simulator) fail(train *ctdf.Train, locationRef string, reason error, minutes float64, report *Report) {
	if train.SpeedKmh > 0 && train.OnSection() {
		report.EnergyUnits += restartEnergy
	}

	train.HeldTicks++
	train.SpeedKmh = 0
	train.DelayMinutes += minutes
	report.DelayMinutes += minutes
	report.Held = append(report.Held, HeldTrain{TrainRef: train.PrimaryIdentifier, LocationRef: locationRef, Reason: reason})

	status := ctdf.TrainStatusDelayed
	if train.HeldTicks > s.config.StarvationThreshold {
		status = ctdf.TrainStatusCritical
	}
	s.setStatus(train, status, reason.Error(), report)
}

func (s *Simulator) succeed(train *ctdf.Train, reason string, report *Report) {
	train.HeldTicks = 0
	s.setStatus(train, s.runningStatus(train), reason, report)
}

func (s *Simulator) runningStatus(train *ctdf.Train) ctdf.TrainStatus {
	if train.HeldTicks > s.config.StarvationThreshold {
		return ctdf.TrainStatusCritical
	}
	if train.HeldTicks > 0 || train.DelayMinutes >= s.config.DelayedThresholdMinutes {
		return ctdf.TrainStatusDelayed
	}

	return ctdf.TrainStatusOnTime
}

func (s *Simulator) setStatus(train *ctdf.Train, status ctdf.TrainStatus, reason string, report *Report) {
	if train.Status == status {
		return
	}

	report.StatusChanges = append(report.StatusChanges, ctdf.TrainStatusChange{
		TrainRef:       train.PrimaryIdentifier,
		PreviousStatus: train.Status,
		Status:         status,
		Reason:         reason,
	})
	train.Status = status
}
