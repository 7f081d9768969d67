package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ukydev/bridge-traffic-sim/internal/collision"
	"github.com/ukydev/bridge-traffic-sim/internal/geometry"
	"github.com/ukydev/bridge-traffic-sim/internal/models"
	"github.com/ukydev/bridge-traffic-sim/internal/priority"
	"github.com/ukydev/bridge-traffic-sim/internal/vehicle"
)

const sampleTopology = `
directions:
  car:
    - id: 1
      approach_direction: west
      traffic_lights:
        - id: 1
          traffic_light_position: [300, 100]
          front_sensor_position: [290, 100]
          back_sensor_position: [200, 100]
          controls_barrier: true
  bike:
    - id: 21
      approach_direction: north
      traffic_lights:
        - id: 1
          traffic_light_position: [50, 50]
special_sensors:
  - name: brug_wegdek
    position: [1300, 900]
    dimensions: [40, 20]
    vehicle_types: [car, bus]
bridge:
  barriers:
    - position: [1200, 880]
    - position: [1500, 880]
      angle: 180
collision_free_zones:
  - id: fietspad
    zone: [[0, 0], [100, 0], [100, 50], [0, 50]]
priority_zones:
  intersection: [[10, 10], [20, 10], [20, 20], [10, 20]]
  bridge_lanes: ["1.1", "5.1"]
route_components:
  - name: kruispunt
    associated_lane: "1.1"
    path:
      - [300, 100]
      - [500, 100]
routes:
  - name: west-east
    vehicle_type: car
    vehicles_per_minute: 6
    path:
      - [0, 100]
      - multi_lane:
          - path: [[100, 100], kruispunt]
          - path: [[100, 90], kruispunt]
            associated_lane: "1.2"
      - variations:
          - usage_percentage: 70
            path: [[600, 100]]
          - usage_percentage: 30
            associated_lane: "1.3"
            path: [[600, 200]]
  - vehicle_type: emergency_vehicle
    path: [[0, 0], [10, 10]]
`

func TestBuildWorld_Sample(t *testing.T) {
	topo, err := ParseTopology([]byte(sampleTopology))
	require.NoError(t, err)
	w, err := topo.BuildWorld()
	require.NoError(t, err)

	require.Len(t, w.Directions, 2)
	// groups are built in name order
	assert.Equal(t, "21", w.Directions[0].ID)
	assert.Equal(t, geometry.DirectionNorth, w.Directions[0].Approach)
	assert.Equal(t, []models.VehicleKind{models.KindBike}, w.Directions[0].Lights[0].Kinds)
	assert.Nil(t, w.Directions[0].Lights[0].Front)

	car := w.Directions[1].Lights[0]
	assert.Equal(t, "1.1", car.Key())
	assert.True(t, car.ControlsBarrier)
	assert.Equal(t, []models.VehicleKind{models.KindCar, models.KindBus, models.KindEmergency}, car.Kinds)
	require.NotNil(t, car.Front)
	require.NotNil(t, car.Back)
	assert.Equal(t, geometry.Point{X: 290, Y: 100}, car.Front.Hitboxes()[0].Center())

	require.Len(t, w.SpecialSensors, 1)
	assert.Equal(t, geometry.Hitbox{X: 1280, Y: 890, Width: 40, Height: 20}, w.SpecialSensors[0].Hitboxes()[0])

	require.NotNil(t, w.Bridge)
	assert.Equal(t, models.BridgeKey, w.Bridge.ID)
	assert.Len(t, w.Bridge.Barriers, 2)

	require.Len(t, w.CollisionFreeZones, 1)
	assert.Equal(t, geometry.Hitbox{Width: 100, Height: 50}, w.CollisionFreeZones[0].Box())
	assert.Equal(t, geometry.Hitbox{X: 10, Y: 10, Width: 10, Height: 10}, w.PriorityZones.Intersection.Box())
	assert.NotNil(t, w.PriorityZones.Relevance)
	assert.Equal(t, []string{"1.1", "5.1"}, w.PriorityZones.BridgeFeedLanes)
	assert.Equal(t, priority.BridgeLaneNear, w.PriorityZones.BridgeLane("5.1"))
	assert.Equal(t, priority.BridgeLaneFar, w.PriorityZones.BridgeLane("2.1"))

	require.Len(t, w.Routes, 2)
	r := w.Routes[0]
	assert.Equal(t, models.KindCar, r.Kind)
	require.Len(t, r.Path, 3)
	require.Len(t, r.Path[1].MultiLane, 2)
	assert.Equal(t, "kruispunt", r.Path[1].MultiLane[0].Path[1].Component)
	assert.Equal(t, "1.2", r.Path[1].MultiLane[1].AssociatedLane)
	assert.InDelta(t, 30, r.Path[2].Variations[1].UsagePercentage, 1e-9)
	assert.Equal(t, "route-1", w.Routes[1].Name)
	assert.Equal(t, models.KindEmergency, w.Routes[1].Kind)
}

func TestBuildWorld_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want error
	}{
		{"zone point count", "collision_free_zones:\n  - id: z\n    zone: [[0, 0], [1, 0], [1, 1]]\n", collision.ErrZonePointCount},
		{"unknown route kind", "routes:\n  - vehicle_type: tram\n    path: [[0, 0]]\n", models.ErrUnknownVehicleKind},
		{"unknown group kind", "directions:\n  tram:\n    - id: 1\n", models.ErrUnknownVehicleKind},
		{"unknown sensor kind", "special_sensors:\n  - name: s\n    position: [0, 0]\n    vehicle_types: [ufo]\n", models.ErrUnknownVehicleKind},
		{"missing component", "routes:\n  - vehicle_type: car\n    path: [ghost]\n", vehicle.ErrUnknownComponent},
		{"empty path", "routes:\n  - vehicle_type: car\n", vehicle.ErrEmptyPath},
		{"bad point", "routes:\n  - vehicle_type: car\n    path: [[1, 2, 3]]\n", ErrInvalidPoint},
		{"bad light position", "directions:\n  car:\n    - id: 1\n      traffic_lights:\n        - id: 1\n", ErrInvalidPoint},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			topo, err := ParseTopology([]byte(tt.yaml))
			require.NoError(t, err)
			_, err = topo.BuildWorld()
			assert.ErrorIs(t, err, ErrInvalidTopology)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestBuildWorld_DuplicateLight(t *testing.T) {
	topo, err := ParseTopology([]byte(`
directions:
  car:
    - id: 1
      traffic_lights:
        - {id: 1, traffic_light_position: [0, 0]}
        - {id: 1, traffic_light_position: [5, 0]}
`))
	require.NoError(t, err)
	_, err = topo.BuildWorld()
	assert.ErrorContains(t, err, "duplicate light 1.1")
}

func TestBuildWorld_CollisionFreeZoneIDs(t *testing.T) {
	const square = "[[0, 0], [10, 0], [10, 10], [0, 10]]"
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"missing id", "collision_free_zones:\n  - zone: " + square + "\n", "collision-free zone 0 has no id"},
		{"empty id", "collision_free_zones:\n  - id: a\n    zone: " + square + "\n  - id: \"\"\n    zone: " + square + "\n", "collision-free zone 1 has no id"},
		{"duplicate id", "collision_free_zones:\n  - id: fietspad\n    zone: " + square + "\n  - id: fietspad\n    zone: " + square + "\n", "duplicate collision-free zone fietspad"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			topo, err := ParseTopology([]byte(tt.yaml))
			require.NoError(t, err)
			w, err := topo.BuildWorld()
			assert.Nil(t, w)
			assert.ErrorIs(t, err, ErrInvalidTopology)
			assert.ErrorContains(t, err, tt.want)
		})
	}

	topo, err := ParseTopology([]byte("collision_free_zones:\n  - id: a\n    zone: " + square + "\n  - id: b\n    zone: " + square + "\n"))
	require.NoError(t, err)
	w, err := topo.BuildWorld()
	require.NoError(t, err)
	assert.Len(t, w.CollisionFreeZones, 2)
	assert.Equal(t, priority.DefaultBridgeFeedLanes, w.PriorityZones.BridgeFeedLanes, "omitted bridge_lanes keeps the default")
}

func TestParseTopology_SegmentShapes(t *testing.T) {
	_, err := ParseTopology([]byte("routes:\n  - path:\n      - {group: g}\n"))
	assert.ErrorContains(t, err, "multi_lane or variations")

	_, err = ParseTopology([]byte("routes:\n  - path:\n      - {multi_lane: [{path: [[0, 0]]}], variations: [{path: [[0, 0]]}]}\n"))
	assert.ErrorContains(t, err, "both")

	topo, err := ParseTopology([]byte("routes:\n  - path:\n      - [1.5, 2]\n      - comp\n      - {group: g, associated_lane: '2.1', multi_lane: [{path: [[0, 0]]}]}\n"))
	require.NoError(t, err)
	path := topo.Routes[0].Path
	assert.Equal(t, Coord{1.5, 2}, path[0].Point)
	assert.Equal(t, "comp", path[1].Component)
	assert.Equal(t, "g", path[2].Group)
	assert.Equal(t, "2.1", path[2].AssociatedLane)
}

func TestLoadTopology_File(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "simulation.yaml")
	require.NoError(t, os.WriteFile(file, []byte(sampleTopology), 0o600))

	topo, err := LoadTopology(file)
	require.NoError(t, err)
	assert.Len(t, topo.Routes, 2)

	_, err = LoadTopology(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadTopology_RepositoryDefault(t *testing.T) {
	topo, err := LoadTopology(filepath.Join("..", "..", "simulation.yaml"))
	require.NoError(t, err)
	w, err := topo.BuildWorld()
	require.NoError(t, err)
	assert.NotEmpty(t, w.Routes)
	assert.NotNil(t, w.Bridge)
}

func TestLoadSettings_Defaults(t *testing.T) {
	for _, k := range []string{"MQTT_BROKER", "MQTT_CLIENT_ID", "TICK_RATE", "JWT_EXPIRY", "MONGO_URI", "TOPOLOGY_FILE"} {
		t.Setenv(k, "")
	}
	s, err := LoadSettings(filepath.Join(t.TempDir(), "absent.env"))
	require.NoError(t, err)
	assert.Equal(t, "tcp://localhost:1883", s.MQTTBroker)
	assert.Contains(t, s.MQTTClientID, "simulator-")
	assert.InDelta(t, 30, s.TickRate, 1e-9)
	assert.Equal(t, 24*time.Hour, s.JWTExpiry)
	assert.Empty(t, s.MongoURI)
	assert.Equal(t, "simulation.yaml", s.TopologyFile)
}

func TestLoadSettings_EnvAndFile(t *testing.T) {
	t.Setenv("TICK_RATE", "not-a-number")
	t.Setenv("SIM_SEED", "42")
	t.Setenv("JWT_EXPIRY", "90m")
	t.Setenv("OPERATOR_PASSWORD", "brugwacht1")
	// .env never overrides variables that are already set
	for _, k := range []string{"HTTP_ADDR", "MQTT_CLIENT_ID"} {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}

	env := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(env, []byte("HTTP_ADDR=:9090\nMQTT_CLIENT_ID=sim-1\n"), 0o600))

	s, err := LoadSettings(env)
	require.NoError(t, err)
	assert.InDelta(t, 30, s.TickRate, 1e-9)
	assert.Equal(t, int64(42), s.Seed)
	assert.Equal(t, 90*time.Minute, s.JWTExpiry)
	assert.Equal(t, ":9090", s.HTTPAddr)
	assert.Equal(t, "sim-1", s.MQTTClientID)
	assert.Equal(t, "brugwacht1", s.OperatorPassword)
}

func TestSetupLogging(t *testing.T) {
	defer log.SetLevel(log.GetLevel())
	defer log.SetFormatter(log.StandardLogger().Formatter)

	SetupLogging("debug", "json")
	assert.Equal(t, log.DebugLevel, log.GetLevel())
	assert.IsType(t, &log.JSONFormatter{}, log.StandardLogger().Formatter)

	SetupLogging("nonsense", "text")
	assert.Equal(t, log.InfoLevel, log.GetLevel())
	assert.IsType(t, &log.TextFormatter{}, log.StandardLogger().Formatter)
}
