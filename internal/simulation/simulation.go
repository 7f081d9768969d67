// Package simulation runs the tick pipeline: it applies controller commands,
// advances the bridge, spawns, moves and retires vehicles, and reports sensor,
// bridge and priority changes back to the controller.
package simulation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"math"
	"math/rand"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/ukydev/bridge-traffic-sim/internal/collision"
	"github.com/ukydev/bridge-traffic-sim/internal/models"
	"github.com/ukydev/bridge-traffic-sim/internal/priority"
	"github.com/ukydev/bridge-traffic-sim/internal/schedule"
	"github.com/ukydev/bridge-traffic-sim/internal/spatial"
	"github.com/ukydev/bridge-traffic-sim/internal/traffic"
	"github.com/ukydev/bridge-traffic-sim/internal/vehicle"
)

// ErrTickPanic wraps a panic recovered while running a tick.
var ErrTickPanic = errors.New("tick panicked")

// Publisher sends an outbound message. Implementations must not block on the network.
type Publisher interface {
	Publish(topic string, payload any) error
}

// CommandSource yields the latest raw light command payload and a version that
// changes whenever a new payload arrives.
type CommandSource interface {
	Load() ([]byte, uint64)
}

// Options tune the simulation. Zero values select the defaults.
type Options struct {
	TickRate            float64
	Seed                int64
	HeartbeatSeconds    float64
	BarrierDelaySeconds float64
	CellSize            float64
}

const (
	DefaultTickRate         = 30.0
	DefaultHeartbeatSeconds = 1.0
)

func (o Options) withDefaults() Options {
	if o.TickRate <= 0 {
		o.TickRate = DefaultTickRate
	}
	if o.HeartbeatSeconds <= 0 {
		o.HeartbeatSeconds = DefaultHeartbeatSeconds
	}
	if o.BarrierDelaySeconds <= 0 {
		o.BarrierDelaySeconds = traffic.DefaultBarrierSeconds
	}
	if o.CellSize <= 0 {
		o.CellSize = spatial.DefaultCellSize
	}
	return o
}

// Simulation owns all mutable state. Step and Run must be called from a
// single goroutine; Snapshot may be called from anywhere.
type Simulation struct {
	world  *World
	opts   Options
	pub    Publisher
	source CommandSource

	lights   map[string]*traffic.TrafficLight
	static   []collision.Collidable
	queue    *schedule.Queue
	planner  *vehicle.Planner
	spawner  *vehicle.Spawner
	priority *priority.Manager
	sensors  *detector

	vehicles []*vehicle.Vehicle
	tick     uint64
	simTime  float64

	commandVersion uint64
	prevLanes      models.LaneSensorUpdate
	prevSpecial    models.SpecialSensorUpdate
	lastHeartbeat  float64

	snapshot atomic.Pointer[models.Snapshot]
}

// New wires a simulation over world. pub and source may be nil.
func New(world *World, pub Publisher, source CommandSource, opts Options) (*Simulation, error) {
	if world == nil {
		return nil, errors.New("simulation: world is required")
	}
	opts = opts.withDefaults()
	rng := rand.New(rand.NewSource(opts.Seed))

	expander := vehicle.NewExpander(world.Components, vehicle.NewLaneCounter(), rng)
	for _, r := range world.Routes {
		if err := expander.Validate(r); err != nil {
			return nil, fmt.Errorf("simulation: route %s: %w", r.Name, err)
		}
	}

	s := &Simulation{
		world:         world,
		opts:          opts,
		pub:           pub,
		source:        source,
		lights:        world.Lights(),
		queue:         schedule.NewQueue(),
		planner:       vehicle.NewPlanner(opts.CellSize, vehicle.NewZoneSet(world.CollisionFreeZones)),
		spawner:       vehicle.NewSpawner(world.Routes, expander, rng, 0),
		priority:      priority.NewManager(world.PriorityZones),
		lastHeartbeat: math.Inf(-1),
	}

	var lights []*traffic.TrafficLight
	for _, d := range world.Directions {
		for _, l := range d.Lights {
			lights = append(lights, l)
			s.static = append(s.static, l)
		}
	}
	s.sensors = newDetector(lights, world.SpecialSensors, opts.CellSize)
	s.storeSnapshot(nil, nil, nil)
	return s, nil
}

// Run steps the simulation at the configured tick rate until ctx is done.
// Every tick advances simulation time by exactly 1/TickRate seconds.
func (s *Simulation) Run(ctx context.Context) error {
	dt := 1 / s.opts.TickRate
	ticker := time.NewTicker(time.Duration(float64(time.Second) * dt))
	defer ticker.Stop()

	log.WithFields(log.Fields{"tick_rate": s.opts.TickRate, "routes": len(s.world.Routes)}).Info("Simulation started")
	for {
		select {
		case <-ctx.Done():
			log.WithField("tick", s.tick).Info("Simulation stopped")
			return nil
		case <-ticker.C:
			if err := s.Step(dt); err != nil {
				log.WithError(err).WithField("tick", s.tick).Error("Tick failed")
			}
		}
	}
}

// Step advances the simulation by dt seconds. A failed spawn does not stop the
// rest of the tick. A panic inside any component is recovered and returned as
// an error; the next tick starts from whatever state was committed.
func (s *Simulation) Step(dt float64) (err error) {
	tick, advanced := s.tick, false
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w at tick %d: %v", ErrTickPanic, tick, r)
			if !advanced {
				s.tick++
				s.simTime += dt
			}
		}
	}()

	s.applyCommands()
	s.queue.RunDue(s.tick)

	if b := s.world.Bridge; b != nil {
		for _, state := range b.Update(dt) {
			s.publish(models.TopicBridgeSensors, models.BridgeSensorUpdate{b.ID: {State: state}})
		}
	}

	s.vehicles, _ = s.planner.Retire(s.vehicles)
	s.planner.Index(s.vehicles, s.static)
	spawnErr := s.spawn()
	res := s.planner.Step(dt)

	lanes, special := s.sensors.detect(s.vehicles)
	if s.prevLanes == nil || !maps.Equal(lanes, s.prevLanes) {
		s.prevLanes = lanes
		s.publish(models.TopicLaneSensors, lanes)
	}
	if len(special) > 0 && (s.prevSpecial == nil || !maps.Equal(special, s.prevSpecial)) {
		s.prevSpecial = special
		s.publish(models.TopicSpecialSensors, special)
	}

	queue, changed := s.priority.Update(s.vehicles, s.millis())
	if changed {
		s.publish(models.TopicPriorityVehicle, queue)
	}

	if s.simTime-s.lastHeartbeat >= s.opts.HeartbeatSeconds {
		s.lastHeartbeat = s.simTime
		s.publish(models.TopicTime, models.Heartbeat{SimulationTime: s.millis()})
	}

	log.WithFields(log.Fields{
		"tick":     s.tick,
		"vehicles": len(s.vehicles),
		"moved":    res.Moved,
		"blocked":  res.Blocked,
	}).Trace("Tick")

	s.tick++
	s.simTime += dt
	advanced = true
	s.storeSnapshot(lanes, special, queue)
	return spawnErr
}

func (s *Simulation) spawn() error {
	spawned, err := s.spawner.Spawn(s.simTime, func(v *vehicle.Vehicle) bool {
		return !s.planner.Occupied(v)
	})
	for _, v := range spawned {
		s.planner.Add(v)
		s.priority.Track(v)
		log.WithFields(log.Fields{"vehicle": v.ID, "kind": v.Kind, "lane": v.Lane}).Debug("Vehicle spawned")
	}
	s.vehicles = s.planner.Vehicles()
	if err != nil {
		return fmt.Errorf("spawn: %w", err)
	}
	return nil
}

// AddVehicle places a vehicle directly, bypassing the spawner.
func (s *Simulation) AddVehicle(v *vehicle.Vehicle) {
	s.vehicles = append(s.vehicles, v)
	s.priority.Track(v)
}

// applyCommands reads the command slot once. A payload that fails to parse is
// dropped and the lights keep their current colours; unknown keys and invalid
// colours are skipped individually.
func (s *Simulation) applyCommands() {
	if s.source == nil {
		return
	}
	payload, version := s.source.Load()
	if version == s.commandVersion {
		return
	}
	s.commandVersion = version

	var cmd models.LightCommand
	if err := json.Unmarshal(payload, &cmd); err != nil {
		log.WithError(err).Warn("Ignoring malformed light command")
		return
	}
	s.ApplyCommand(cmd)
}

// ApplyCommand applies a parsed light command.
func (s *Simulation) ApplyCommand(cmd models.LightCommand) {
	delay := uint64(math.Ceil(s.opts.BarrierDelaySeconds * s.opts.TickRate))
	var bridgeColor, approachColor models.LightColor

	for key, token := range cmd {
		c, err := models.ParseColor(token)
		if err != nil {
			log.WithError(err).WithField("light", key).Warn("Ignoring light colour")
			continue
		}
		switch key {
		case models.BridgeKey:
			bridgeColor = c
		case models.BridgeApproachKey:
			approachColor = c
		}
		if l, ok := s.lights[key]; ok {
			l.Command(c, s.tick, delay, s.queue)
		} else if key != models.BridgeKey && key != models.BridgeApproachKey {
			log.WithField("light", key).Debug("Command for unknown light")
		}
	}
	if s.world.Bridge != nil && (bridgeColor != "" || approachColor != "") {
		s.world.Bridge.Command(bridgeColor, approachColor)
	}
}

func (s *Simulation) publish(topic string, payload any) {
	if s.pub == nil {
		return
	}
	if err := s.pub.Publish(topic, payload); err != nil {
		log.WithError(err).WithField("topic", topic).Warn("Failed to publish")
	}
}

func (s *Simulation) millis() int64 {
	return int64(math.Round(s.simTime * 1000))
}

// Tick returns the number of completed ticks.
func (s *Simulation) Tick() uint64 { return s.tick }

// Vehicles returns the active vehicles. The slice is owned by the simulation.
func (s *Simulation) Vehicles() []*vehicle.Vehicle { return s.vehicles }

// Light returns the light with the given wire key.
func (s *Simulation) Light(key string) (*traffic.TrafficLight, bool) {
	l, ok := s.lights[key]
	return l, ok
}

// Snapshot returns the state published at the end of the last tick.
func (s *Simulation) Snapshot() *models.Snapshot { return s.snapshot.Load() }

func (s *Simulation) storeSnapshot(lanes models.LaneSensorUpdate, special models.SpecialSensorUpdate, queue []models.PriorityRequest) {
	snap := &models.Snapshot{
		Tick:           s.tick,
		SimulationTime: s.millis(),
		Vehicles:       make([]models.VehicleSnapshot, 0, len(s.vehicles)),
		Lights:         make(map[string]models.LightColor, len(s.lights)),
		LaneSensors:    lanes,
		SpecialSensors: special,
		PriorityQueue:  queue,
	}
	for _, v := range s.vehicles {
		p := v.Position()
		snap.Vehicles = append(snap.Vehicles, models.VehicleSnapshot{
			ID:       v.ID,
			Kind:     v.Kind,
			X:        p.X,
			Y:        p.Y,
			Heading:  v.Heading(),
			Lane:     v.Lane,
			Target:   v.TargetIndex(),
			Exiting:  v.Exiting(),
			Finished: v.HasFinished(),
		})
	}
	for k, l := range s.lights {
		snap.Lights[k] = l.Color()
	}
	if b := s.world.Bridge; b != nil {
		snap.Bridge = &models.BridgeSnapshot{
			ID:           b.ID,
			Height:       b.Height(),
			Open:         b.IsOpen(),
			State:        b.State(),
			BarriersDown: b.BarriersDown(),
		}
	}
	s.snapshot.Store(snap)
}
