package config

import (
	"errors"
	"fmt"
	"os"
	"slices"

	"github.com/samber/lo"
	"gopkg.in/yaml.v3"

	"github.com/ukydev/bridge-traffic-sim/internal/collision"
	"github.com/ukydev/bridge-traffic-sim/internal/geometry"
	"github.com/ukydev/bridge-traffic-sim/internal/models"
	"github.com/ukydev/bridge-traffic-sim/internal/priority"
	"github.com/ukydev/bridge-traffic-sim/internal/simulation"
	"github.com/ukydev/bridge-traffic-sim/internal/traffic"
	"github.com/ukydev/bridge-traffic-sim/internal/vehicle"
)

var (
	ErrInvalidTopology = errors.New("invalid topology")
	ErrInvalidPoint    = errors.New("point must be [x, y]")
)

// Coord is a YAML [x, y] pair.
type Coord []float64

func (c Coord) point() (geometry.Point, error) {
	if len(c) != 2 {
		return geometry.Point{}, fmt.Errorf("%w, got %v", ErrInvalidPoint, []float64(c))
	}
	p := geometry.Point{X: c[0], Y: c[1]}
	if !p.IsFinite() {
		return geometry.Point{}, fmt.Errorf("%w, got %v", ErrInvalidPoint, []float64(c))
	}
	return p, nil
}

func points(cs []Coord) ([]geometry.Point, error) {
	out := make([]geometry.Point, 0, len(cs))
	for _, c := range cs {
		p, err := c.point()
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// Topology mirrors the simulation YAML file.
type Topology struct {
	// Directions are grouped by the kind of traffic their lights regulate.
	Directions         map[string][]DirectionConfig `yaml:"directions"`
	SpecialSensors     []SensorConfig               `yaml:"special_sensors"`
	Bridge             *BridgeConfig                `yaml:"bridge"`
	CollisionFreeZones []ZoneConfig                 `yaml:"collision_free_zones"`
	PriorityZones      *PriorityZonesConfig         `yaml:"priority_zones"`
	Routes             []RouteConfig                `yaml:"routes"`
	RouteComponents    []ComponentConfig            `yaml:"route_components"`
}

type DirectionConfig struct {
	ID                string        `yaml:"id"`
	ApproachDirection string        `yaml:"approach_direction"`
	TrafficLights     []LightConfig `yaml:"traffic_lights"`
}

type LightConfig struct {
	ID              string   `yaml:"id"`
	Position        Coord    `yaml:"traffic_light_position"`
	FrontSensor     Coord    `yaml:"front_sensor_position"`
	BackSensor      Coord    `yaml:"back_sensor_position"`
	SensorSize      Coord    `yaml:"sensor_dimensions"`
	VehicleTypes    []string `yaml:"vehicle_types"`
	ControlsBarrier bool     `yaml:"controls_barrier"`
}

type SensorConfig struct {
	Name              string   `yaml:"name"`
	Position          Coord    `yaml:"position"`
	Dimensions        Coord    `yaml:"dimensions"`
	ApproachDirection string   `yaml:"approach_direction"`
	VehicleTypes      []string `yaml:"vehicle_types"`
}

type BridgeConfig struct {
	ID          string          `yaml:"id"`
	BaseHeight  float64         `yaml:"base_height"`
	OpenSeconds float64         `yaml:"open_seconds"`
	Barriers    []BarrierConfig `yaml:"barriers"`
}

type BarrierConfig struct {
	Position Coord   `yaml:"position"`
	Angle    float64 `yaml:"angle"`
}

type ZoneConfig struct {
	ID   string  `yaml:"id"`
	Zone []Coord `yaml:"zone"`
}

// PriorityZonesConfig overrides the built-in priority zones. Each zone is four
// corner points; omitted zones keep their defaults. BridgeLanes replaces the
// lanes that report the near bridge lane when given.
type PriorityZonesConfig struct {
	Relevance          []Coord  `yaml:"relevance"`
	BridgeRelevance    []Coord  `yaml:"bridge_relevance"`
	Intersection       []Coord  `yaml:"intersection"`
	BridgeIntersection []Coord  `yaml:"bridge_intersection"`
	BridgeLanes        []string `yaml:"bridge_lanes"`
}

type RouteConfig struct {
	Name              string          `yaml:"name"`
	VehicleType       string          `yaml:"vehicle_type"`
	VehiclesPerMinute float64         `yaml:"vehicles_per_minute"`
	AssociatedLane    string          `yaml:"associated_lane"`
	Path              []SegmentConfig `yaml:"path"`
}

type ComponentConfig struct {
	Name           string          `yaml:"name"`
	AssociatedLane string          `yaml:"associated_lane"`
	Path           []SegmentConfig `yaml:"path"`
}

// SegmentConfig is one path element. In YAML it is either an [x, y] pair, the
// name of a route component, or a mapping with multi_lane or variations.
type SegmentConfig struct {
	Point          Coord
	Component      string
	MultiLane      []BranchConfig
	Variations     []BranchConfig
	Group          string
	AssociatedLane string
}

type BranchConfig struct {
	Path            []SegmentConfig `yaml:"path"`
	AssociatedLane  string          `yaml:"associated_lane"`
	UsagePercentage float64         `yaml:"usage_percentage"`
}

type segmentMapping struct {
	MultiLane      []BranchConfig `yaml:"multi_lane"`
	Variations     []BranchConfig `yaml:"variations"`
	Group          string         `yaml:"group"`
	AssociatedLane string         `yaml:"associated_lane"`
}

func (s *SegmentConfig) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.SequenceNode:
		return value.Decode(&s.Point)
	case yaml.ScalarNode:
		s.Component = value.Value
		return nil
	case yaml.MappingNode:
		var m segmentMapping
		if err := value.Decode(&m); err != nil {
			return err
		}
		if len(m.MultiLane) == 0 && len(m.Variations) == 0 {
			return fmt.Errorf("line %d: segment needs multi_lane or variations", value.Line)
		}
		if len(m.MultiLane) > 0 && len(m.Variations) > 0 {
			return fmt.Errorf("line %d: segment has both multi_lane and variations", value.Line)
		}
		s.MultiLane, s.Variations = m.MultiLane, m.Variations
		s.Group, s.AssociatedLane = m.Group, m.AssociatedLane
		return nil
	default:
		return fmt.Errorf("line %d: unsupported path segment", value.Line)
	}
}

// LoadTopology reads and parses a topology file.
func LoadTopology(path string) (*Topology, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read topology: %w", err)
	}
	return ParseTopology(data)
}

func ParseTopology(data []byte) (*Topology, error) {
	var t Topology
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parse topology: %w", err)
	}
	return &t, nil
}

// BuildWorld validates the topology and turns it into simulation objects.
// Every configuration mistake is reported here rather than during a run.
func (t *Topology) BuildWorld() (*simulation.World, error) {
	w := &simulation.World{PriorityZones: priority.DefaultZones()}

	var err error
	if w.Directions, err = t.directions(); err != nil {
		return nil, err
	}
	for _, sc := range t.SpecialSensors {
		s, err := sc.build()
		if err != nil {
			return nil, fmt.Errorf("%w: special sensor %s: %w", ErrInvalidTopology, sc.Name, err)
		}
		w.SpecialSensors = append(w.SpecialSensors, s)
	}
	if t.Bridge != nil {
		if w.Bridge, err = t.Bridge.build(); err != nil {
			return nil, fmt.Errorf("%w: bridge: %w", ErrInvalidTopology, err)
		}
	}
	zoneIDs := make(map[string]bool, len(t.CollisionFreeZones))
	for i, zc := range t.CollisionFreeZones {
		switch {
		case zc.ID == "":
			return nil, fmt.Errorf("%w: collision-free zone %d has no id", ErrInvalidTopology, i)
		case zoneIDs[zc.ID]:
			return nil, fmt.Errorf("%w: duplicate collision-free zone %s", ErrInvalidTopology, zc.ID)
		}
		zoneIDs[zc.ID] = true
		z, err := zone(zc.ID, zc.Zone)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidTopology, err)
		}
		w.CollisionFreeZones = append(w.CollisionFreeZones, z)
	}
	if t.PriorityZones != nil {
		if err := t.PriorityZones.apply(&w.PriorityZones); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidTopology, err)
		}
	}

	for _, cc := range t.RouteComponents {
		path, err := segments(cc.Path)
		if err != nil {
			return nil, fmt.Errorf("%w: component %s: %w", ErrInvalidTopology, cc.Name, err)
		}
		w.Components = append(w.Components, vehicle.Component{Name: cc.Name, Path: path, AssociatedLane: cc.AssociatedLane})
	}
	validator := vehicle.NewExpander(w.Components, vehicle.NewLaneCounter(), nil)
	for i, rc := range t.Routes {
		r, err := rc.build(i)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidTopology, err)
		}
		if err := validator.Validate(r); err != nil {
			return nil, fmt.Errorf("%w: route %s: %w", ErrInvalidTopology, r.Name, err)
		}
		w.Routes = append(w.Routes, r)
	}
	return w, nil
}

func (t *Topology) directions() ([]*traffic.Direction, error) {
	var out []*traffic.Direction
	seen := make(map[string]bool)
	groups := lo.Keys(t.Directions)
	slices.Sort(groups)
	for _, group := range groups {
		kinds, err := groupKinds(group)
		if err != nil {
			return nil, fmt.Errorf("%w: direction group %s: %w", ErrInvalidTopology, group, err)
		}
		for _, dc := range t.Directions[group] {
			approach, err := geometry.ParseDirection(dc.ApproachDirection)
			if err != nil {
				return nil, fmt.Errorf("%w: direction %s: %w", ErrInvalidTopology, dc.ID, err)
			}
			d := &traffic.Direction{ID: dc.ID, Approach: approach}
			for _, lc := range dc.TrafficLights {
				l, err := lc.build(dc.ID, approach, kinds)
				if err != nil {
					return nil, fmt.Errorf("%w: light %s.%s: %w", ErrInvalidTopology, dc.ID, lc.ID, err)
				}
				if seen[l.Key()] {
					return nil, fmt.Errorf("%w: duplicate light %s", ErrInvalidTopology, l.Key())
				}
				seen[l.Key()] = true
				d.Lights = append(d.Lights, l)
			}
			out = append(out, d)
		}
	}
	return out, nil
}

// groupKinds maps a direction group to the kinds its lights stop. Road lights
// also hold buses and emergency vehicles.
func groupKinds(group string) ([]models.VehicleKind, error) {
	k, err := models.ParseVehicleKind(group)
	if err != nil {
		return nil, err
	}
	if k == models.KindCar {
		return []models.VehicleKind{models.KindCar, models.KindBus, models.KindEmergency}, nil
	}
	return []models.VehicleKind{k}, nil
}

func parseKinds(keys []string) ([]models.VehicleKind, error) {
	out := make([]models.VehicleKind, 0, len(keys))
	for _, key := range keys {
		k, err := models.ParseVehicleKind(key)
		if err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, nil
}

func (lc LightConfig) build(directionID string, approach geometry.Direction, kinds []models.VehicleKind) (*traffic.TrafficLight, error) {
	pos, err := lc.Position.point()
	if err != nil {
		return nil, err
	}
	if len(lc.VehicleTypes) > 0 {
		if kinds, err = parseKinds(lc.VehicleTypes); err != nil {
			return nil, err
		}
	}
	var w, h float64
	if len(lc.SensorSize) > 0 {
		size, err := lc.SensorSize.point()
		if err != nil {
			return nil, err
		}
		w, h = size.X, size.Y
	}

	l := traffic.NewTrafficLight(directionID, lc.ID, pos, approach, kinds)
	l.ControlsBarrier = lc.ControlsBarrier
	if len(lc.FrontSensor) > 0 {
		p, err := lc.FrontSensor.point()
		if err != nil {
			return nil, err
		}
		l.Front = traffic.NewSensor(l.Key()+" voor", p, w, h, approach, kinds)
	}
	if len(lc.BackSensor) > 0 {
		p, err := lc.BackSensor.point()
		if err != nil {
			return nil, err
		}
		l.Back = traffic.NewSensor(l.Key()+" achter", p, w, h, approach, kinds)
	}
	return l, nil
}

func (sc SensorConfig) build() (*traffic.Sensor, error) {
	if sc.Name == "" {
		return nil, errors.New("name is required")
	}
	pos, err := sc.Position.point()
	if err != nil {
		return nil, err
	}
	var w, h float64
	if len(sc.Dimensions) > 0 {
		size, err := sc.Dimensions.point()
		if err != nil {
			return nil, err
		}
		w, h = size.X, size.Y
	}
	approach, err := geometry.ParseDirection(sc.ApproachDirection)
	if err != nil {
		return nil, err
	}
	kinds, err := parseKinds(sc.VehicleTypes)
	if err != nil {
		return nil, err
	}
	return traffic.NewSensor(sc.Name, pos, w, h, approach, kinds), nil
}

func (bc *BridgeConfig) build() (*traffic.Bridge, error) {
	barriers := make([]*traffic.Barrier, 0, len(bc.Barriers))
	for _, b := range bc.Barriers {
		p, err := b.Position.point()
		if err != nil {
			return nil, err
		}
		barriers = append(barriers, traffic.NewBarrier(p, b.Angle))
	}
	id := bc.ID
	if id == "" {
		id = models.BridgeKey
	}
	return traffic.NewBridge(id, bc.BaseHeight, bc.OpenSeconds, barriers), nil
}

func zone(name string, corners []Coord) (*collision.Zone, error) {
	ps, err := points(corners)
	if err != nil {
		return nil, fmt.Errorf("zone %s: %w", name, err)
	}
	return collision.NewZoneFromCorners(name, ps)
}

func (pc *PriorityZonesConfig) apply(z *priority.Zones) error {
	for _, o := range []struct {
		name    string
		corners []Coord
		dst     **collision.Zone
	}{
		{"relevance", pc.Relevance, &z.Relevance},
		{"bridge_relevance", pc.BridgeRelevance, &z.BridgeRelevance},
		{"intersection", pc.Intersection, &z.Intersection},
		{"bridge_intersection", pc.BridgeIntersection, &z.BridgeIntersection},
	} {
		if o.corners == nil {
			continue
		}
		zz, err := zone(o.name, o.corners)
		if err != nil {
			return err
		}
		*o.dst = zz
	}
	if pc.BridgeLanes != nil {
		z.BridgeFeedLanes = slices.Clone(pc.BridgeLanes)
	}
	return nil
}

func (rc RouteConfig) build(i int) (vehicle.Route, error) {
	name := rc.Name
	if name == "" {
		name = fmt.Sprintf("route-%d", i)
	}
	kind, err := models.ParseVehicleKind(rc.VehicleType)
	if err != nil {
		return vehicle.Route{}, fmt.Errorf("route %s: %w", name, err)
	}
	if len(rc.Path) == 0 {
		return vehicle.Route{}, fmt.Errorf("route %s: %w", name, vehicle.ErrEmptyPath)
	}
	path, err := segments(rc.Path)
	if err != nil {
		return vehicle.Route{}, fmt.Errorf("route %s: %w", name, err)
	}
	return vehicle.Route{
		Name:              name,
		Kind:              kind,
		VehiclesPerMinute: rc.VehiclesPerMinute,
		Path:              path,
		AssociatedLane:    rc.AssociatedLane,
	}, nil
}

func segments(cfg []SegmentConfig) ([]vehicle.Segment, error) {
	out := make([]vehicle.Segment, 0, len(cfg))
	for _, sc := range cfg {
		seg := vehicle.Segment{Component: sc.Component, Group: sc.Group, AssociatedLane: sc.AssociatedLane}
		if sc.Point != nil {
			p, err := sc.Point.point()
			if err != nil {
				return nil, err
			}
			seg.Point = &p
		}
		var err error
		if seg.MultiLane, err = branches(sc.MultiLane); err != nil {
			return nil, err
		}
		if seg.Variations, err = branches(sc.Variations); err != nil {
			return nil, err
		}
		out = append(out, seg)
	}
	return out, nil
}

func branches(cfg []BranchConfig) ([]vehicle.Branch, error) {
	if len(cfg) == 0 {
		return nil, nil
	}
	out := make([]vehicle.Branch, 0, len(cfg))
	for _, bc := range cfg {
		if bc.UsagePercentage < 0 {
			return nil, fmt.Errorf("negative usage_percentage %g", bc.UsagePercentage)
		}
		path, err := segments(bc.Path)
		if err != nil {
			return nil, err
		}
		out = append(out, vehicle.Branch{Path: path, AssociatedLane: bc.AssociatedLane, UsagePercentage: bc.UsagePercentage})
	}
	return out, nil
}
