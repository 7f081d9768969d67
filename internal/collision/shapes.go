package collision

import (
	"errors"
	"fmt"

	"github.com/ukydev/bridge-traffic-sim/internal/geometry"
)

// ErrZonePointCount is returned when a zone is not described by exactly four corners.
var ErrZonePointCount = errors.New("zone must have exactly 4 points")

// Zone is a static rectangular area that collides with everything.
type Zone struct {
	Name  string
	box   geometry.Hitbox
	boxes []geometry.Hitbox
}

// NewZone wraps a rectangle.
func NewZone(name string, box geometry.Hitbox) *Zone {
	return &Zone{Name: name, box: box, boxes: []geometry.Hitbox{box}}
}

// NewZoneFromCorners builds the axis-aligned rectangle spanned by four corner points.
func NewZoneFromCorners(name string, corners []geometry.Point) (*Zone, error) {
	if len(corners) != 4 {
		return nil, fmt.Errorf("zone %s: %w, got %d", name, ErrZonePointCount, len(corners))
	}
	for _, p := range corners {
		if !p.IsFinite() {
			return nil, fmt.Errorf("zone %s: non-finite corner %+v", name, p)
		}
	}
	box, _ := geometry.BoundingBox(corners)
	return NewZone(name, box), nil
}

// Box returns the zone rectangle.
func (z *Zone) Box() geometry.Hitbox { return z.box }

func (z *Zone) Hitboxes() []geometry.Hitbox { return z.boxes }

func (z *Zone) CanCollide(Filter) bool { return true }

// Body is a frozen set of hitboxes with a heading. Movers use it to probe a
// candidate position without mutating themselves.
type Body struct {
	Boxes   []geometry.Hitbox
	FrontAt int
	Angle   float64
}

func (b *Body) Hitboxes() []geometry.Hitbox { return b.Boxes }

func (b *Body) CanCollide(Filter) bool { return true }

func (b *Body) Heading() float64 { return b.Angle }

func (b *Body) Front() geometry.Hitbox {
	if b.FrontAt < 0 || b.FrontAt >= len(b.Boxes) {
		return geometry.Hitbox{}
	}
	return b.Boxes[b.FrontAt]
}
