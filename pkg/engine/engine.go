package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jinzhu/copier"
	"github.com/rs/zerolog/log"
	"github.com/travigo/railops/pkg/auditlog"
	"github.com/travigo/railops/pkg/config"
	"github.com/travigo/railops/pkg/conflicts"
	"github.com/travigo/railops/pkg/ctdf"
	"github.com/travigo/railops/pkg/dispatch"
	"github.com/travigo/railops/pkg/events"
	"github.com/travigo/railops/pkg/incidents"
	"github.com/travigo/railops/pkg/network"
	"github.com/travigo/railops/pkg/occupancy"
	"github.com/travigo/railops/pkg/priority"
	"github.com/travigo/railops/pkg/scheduler"
	"github.com/travigo/railops/pkg/simulator"
	"github.com/travigo/railops/pkg/stats"
	"golang.org/x/exp/slices"
)

const defaultDelayMinutes = 30

type Options struct {
	// Receives every externally caused change, nil disables the audit log
	Recorder auditlog.Recorder

	// Extra sinks for engine events besides in-process subscribers
	Publishers []events.Publisher

	ResultStore scheduler.ResultStore

	Now func() time.Time
}

// Engine owns the live network state. Every read and write goes through its mutex, optimizations
// work on private copies taken under it.
type Engine struct {
	mutex        sync.Mutex
	publishMutex sync.Mutex

	config     config.Config
	definition *network.Definition

	network   *network.Network
	tracker   *occupancy.Tracker
	trains    []*ctdf.Train
	incidents *incidents.Manager

	ranker    *priority.Ranker
	simulator *simulator.Simulator
	detector  *conflicts.Detector
	runner    *scheduler.Runner

	bus      *events.Bus
	recorder auditlog.Recorder
	trend    *stats.Trend
	now      func() time.Time

	tick          int64
	simulatedTime time.Duration
	// step length of the last tick, conflicts are projected over it
	tickDuration time.Duration
	conflicts    []ctdf.Conflict
	pending      []ctdf.Action
	lastReport   TickReport
}

func New(definition *network.Definition, cfg config.Config, options Options) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	net, err := definition.Load()
	if err != nil {
		return nil, err
	}

	ranker, err := priority.NewRanker(cfg.Priority.Classes, cfg.Priority.Expression)
	if err != nil {
		return nil, err
	}

	now := options.Now
	if now == nil {
		now = time.Now
	}

	e := &Engine{
		config:     cfg,
		definition: definition,
		network:    net,
		tracker:    occupancy.NewTracker(net),
		incidents:  incidents.NewManager(net),
		ranker:     ranker,
		bus:        events.NewBus(options.Publishers...),
		recorder:   options.Recorder,
		trend:      stats.NewTrend(500),
		now:        now,

		tickDuration: cfg.TickDuration,
	}
	e.incidents.Now = now

	if err := e.incidents.Load(definition.Incidents, 0); err != nil {
		return nil, err
	}

	if err := e.placeTrains(definition.Trains); err != nil {
		return nil, err
	}

	e.simulator = simulator.New(net, e.tracker, ranker, cfg.Simulation)
	e.detector = conflicts.NewDetector(net, cfg.Conflicts)
	e.runner = scheduler.NewRunner(scheduler.NewOptimizer(cfg, ranker), cfg.Optimizer.BusyPolicy, options.ResultStore, e.optimizationComplete)

	e.refreshConflicts()
	e.lastReport = TickReport{Tick: 0, Conflicts: slices.Clone(e.conflicts)}
	e.trend.Add(stats.Calculate(e.snapshot()))

	log.Info().
		Str("network", definition.Identifier).
		Int("stations", len(definition.Stations)).
		Int("tracks", len(definition.Tracks)).
		Int("trains", len(e.trains)).
		Int("conflicts", len(e.conflicts)).
		Msg("Engine loaded")

	return e, nil
}

// placeTrains validates the starting position of every train and claims its infrastructure
func (e *Engine) placeTrains(definitions []ctdf.Train) error {
	seen := map[string]bool{}

	for _, definition := range definitions {
		train := definition
		train.Route = slices.Clone(definition.Route)

		if train.PrimaryIdentifier == "" {
			return fmt.Errorf("%w: train identifier missing", ctdf.ErrInvalidTopology)
		}
		if seen[train.PrimaryIdentifier] {
			return fmt.Errorf("%w: duplicate train %s", ctdf.ErrInvalidTopology, train.PrimaryIdentifier)
		}
		seen[train.PrimaryIdentifier] = true

		if err := e.network.ValidateRoute(train.Route); err != nil {
			return fmt.Errorf("%w: train %s route: %s", ctdf.ErrInvalidTopology, train.PrimaryIdentifier, err)
		}
		if train.RouteIndex < 0 || train.RouteIndex >= len(train.Route) {
			return fmt.Errorf("%w: train %s route index %d out of range", ctdf.ErrInvalidTopology, train.PrimaryIdentifier, train.RouteIndex)
		}

		if train.CruiseSpeedKmh <= 0 {
			train.CruiseSpeedKmh = train.Type.DefaultCruiseSpeed()
		}
		if train.Status == "" {
			train.Status = ctdf.TrainStatusOnTime
		}

		switch {
		case train.AtStation():
			if train.Route[train.RouteIndex] != train.CurrentStationRef {
				return fmt.Errorf("%w: train %s is at %s but its route has it at %s", ctdf.ErrInvalidTopology, train.PrimaryIdentifier, train.CurrentStationRef, train.Route[train.RouteIndex])
			}

			train.Progress = 0
			train.SpeedKmh = 0

			var err error
			if train.Platform > 0 {
				err = e.tracker.OccupyPlatform(train.PrimaryIdentifier, train.CurrentStationRef, train.Platform)
			} else {
				train.Platform, err = e.tracker.TryOccupyPlatform(train.PrimaryIdentifier, train.CurrentStationRef)
			}
			if err != nil {
				return fmt.Errorf("%w: train %s: %s", ctdf.ErrInvalidTopology, train.PrimaryIdentifier, err)
			}

		case train.OnSection():
			section, exists := e.network.Section(train.CurrentSectionRef)
			if !exists {
				return fmt.Errorf("%w: train %s on unknown section %s", ctdf.ErrInvalidTopology, train.PrimaryIdentifier, train.CurrentSectionRef)
			}
			if train.RouteIndex+1 >= len(train.Route) || !section.Connects(train.Route[train.RouteIndex], train.Route[train.RouteIndex+1]) {
				return fmt.Errorf("%w: train %s section %s is not on its route", ctdf.ErrInvalidTopology, train.PrimaryIdentifier, section.PrimaryIdentifier)
			}
			if train.Progress < 0 || train.Progress > 1 {
				return fmt.Errorf("%w: train %s progress %.2f outside 0-1", ctdf.ErrInvalidTopology, train.PrimaryIdentifier, train.Progress)
			}

			// Static definitions may put trains on sections that are blocked or over capacity
			if err := e.tracker.TryEnter(train.PrimaryIdentifier, section.PrimaryIdentifier); err != nil {
				return fmt.Errorf("%w: train %s: %s", ctdf.ErrInvalidTopology, train.PrimaryIdentifier, err)
			}
			train.Platform = 0

		default:
			return fmt.Errorf("%w: train %s has no location", ctdf.ErrInvalidTopology, train.PrimaryIdentifier)
		}

		e.trains = append(e.trains, &train)
	}

	return nil
}

func (e *Engine) train(identifier string) (*ctdf.Train, bool) {
	for _, train := range e.trains {
		if train.PrimaryIdentifier == identifier && !train.Removed {
			return train, true
		}
	}

	return nil, false
}

func (e *Engine) dispatchState(tick int64) dispatch.State {
	trains := make(map[string]*ctdf.Train, len(e.trains))
	for _, train := range e.trains {
		trains[train.PrimaryIdentifier] = train
	}

	return dispatch.State{
		Network: e.network,
		Tracker: e.tracker,
		Trains:  trains,
		Tick:    tick,
	}
}

func (e *Engine) refreshConflicts() {
	e.conflicts = e.detector.Detect(e.trains, e.tracker, e.tick, e.tickDuration)
}

func (e *Engine) record(entry auditlog.Entry) {
	if e.recorder == nil {
		return
	}

	entry.Tick = e.tick
	e.recorder.Record(entry)
}

func (e *Engine) event(eventType ctdf.EventType, body interface{}) ctdf.Event {
	return ctdf.Event{
		Type:      eventType,
		Timestamp: e.now(),
		Tick:      e.tick,
		Body:      body,
	}
}

// unlockAndPublish releases the engine lock and delivers the events. The publish lock is taken
// before the engine lock is dropped, so batches go out in the order they were produced.
func (e *Engine) unlockAndPublish(eventList []ctdf.Event) {
	e.publishMutex.Lock()
	defer e.publishMutex.Unlock()

	e.mutex.Unlock()

	for _, event := range eventList {
		e.bus.Publish(event)
	}
}

func (e *Engine) Subscribe(buffer int) (<-chan ctdf.Event, func()) {
	return e.bus.Subscribe(buffer)
}

func (e *Engine) Tick() int64 {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	return e.tick
}

func (e *Engine) Config() config.Config {
	return e.config
}

func (e *Engine) Definition() *network.Definition {
	return e.definition
}

// Snapshot is a deep copy of the current state, safe to keep after the engine moves on
func (e *Engine) Snapshot() ctdf.Snapshot {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	return e.snapshot()
}

func (e *Engine) snapshot() ctdf.Snapshot {
	shallow := ctdf.Snapshot{
		Tick:          e.tick,
		SimulatedTime: e.simulatedTime,
		Stations:      e.network.Stations(),
		Tracks:        e.network.Sections(),
		Incidents:     e.incidents.All(),
		Conflicts:     e.conflicts,
	}
	for _, train := range e.trains {
		if !train.Removed {
			shallow.Trains = append(shallow.Trains, *train)
		}
	}

	var snapshot ctdf.Snapshot
	if err := copier.CopyWithOption(&snapshot, &shallow, copier.Option{DeepCopy: true}); err != nil {
		log.Error().Err(err).Msg("Failed to copy snapshot")
	}

	return snapshot
}

func (e *Engine) Train(identifier string) (ctdf.Train, error) {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	train, exists := e.train(identifier)
	if !exists {
		return ctdf.Train{}, fmt.Errorf("%w: %s", ctdf.ErrUnknownTrain, identifier)
	}

	trainCopy := *train
	trainCopy.Route = slices.Clone(train.Route)

	return trainCopy, nil
}

func (e *Engine) Incidents() []ctdf.Incident {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	return e.incidents.All()
}

func (e *Engine) Incident(identifier string) (ctdf.Incident, error) {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	incident, exists := e.incidents.Incident(identifier)
	if !exists {
		return ctdf.Incident{}, fmt.Errorf("%w: %s", ctdf.ErrUnknownIncident, identifier)
	}

	return incident, nil
}

func (e *Engine) PendingActions() []ctdf.Action {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	return slices.Clone(e.pending)
}

func (e *Engine) LastReport() TickReport {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	return e.lastReport
}

func (e *Engine) Stats() (stats.DashboardStats, []stats.TrendPoint) {
	snapshot := e.Snapshot()

	return stats.Calculate(snapshot), e.trend.Points()
}

// Close cancels any optimization in flight
func (e *Engine) Close() {
	e.runner.Stop()
}

func (e *Engine) Run(ctx context.Context, interval time.Duration, duration time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Info().Dur("interval", interval).Dur("duration", duration).Msg("Starting tick loop")

	for {
		select {
		case <-ctx.Done():
			log.Info().Int64("tick", e.Tick()).Msg("Tick loop stopped")
			return
		case <-ticker.C:
			if _, err := e.AdvanceTick(e.Tick()+1, duration); err != nil {
				log.Error().Err(err).Msg("Failed to advance tick")
			}
		}
	}
}
