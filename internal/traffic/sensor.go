// Package traffic holds the fixed road furniture: sensors, traffic lights and
// the movable bridge with its barriers.
package traffic

import (
	"github.com/samber/lo"

	"github.com/ukydev/bridge-traffic-sim/internal/collision"
	"github.com/ukydev/bridge-traffic-sim/internal/geometry"
	"github.com/ukydev/bridge-traffic-sim/internal/models"
)

// DefaultSensorSize is the edge length of a sensor when none is configured.
const DefaultSensorSize = 5.0

// Sensor is a small fixed detection area. Occupancy is derived every tick and
// never stored here.
type Sensor struct {
	Name     string
	Approach geometry.Direction
	Kinds    []models.VehicleKind
	box      []geometry.Hitbox
}

// NewSensor centres a sensor of the given size on position. A zero size uses
// DefaultSensorSize. An empty kind list detects every kind.
func NewSensor(name string, position geometry.Point, width, height float64, approach geometry.Direction, kinds []models.VehicleKind) *Sensor {
	if width <= 0 {
		width = DefaultSensorSize
	}
	if height <= 0 {
		height = DefaultSensorSize
	}
	return &Sensor{
		Name:     name,
		Approach: approach,
		Kinds:    kinds,
		box:      []geometry.Hitbox{geometry.Centered(position, width, height)},
	}
}

func (s *Sensor) Hitboxes() []geometry.Hitbox { return s.box }

// CanCollide filters by approach direction and by vehicle kind.
func (s *Sensor) CanCollide(f collision.Filter) bool {
	if f.Direction != geometry.DirectionNone && s.Approach != geometry.DirectionNone && f.Direction != s.Approach {
		return false
	}
	if f.Kind != "" && len(s.Kinds) > 0 && !lo.Contains(s.Kinds, f.Kind) {
		return false
	}
	return true
}
