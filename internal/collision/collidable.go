// Package collision defines the collidable capability shared by vehicles,
// sensors, traffic lights and zones, and the broad/narrow phase test between them.
package collision

import (
	"github.com/ukydev/bridge-traffic-sim/internal/geometry"
	"github.com/ukydev/bridge-traffic-sim/internal/models"
)

// FrontAngleMargin is the largest heading difference, in degrees, at which an
// oriented obstacle still blocks a mover looking ahead.
const FrontAngleMargin = 90.0

// Filter carries what the caller knows about itself. Zero values mean
// "unfiltered".
type Filter struct {
	Direction geometry.Direction
	Kind      models.VehicleKind
}

// Collidable is anything with hitboxes that may opt out of a collision based on
// who is asking. Implementations are pointer types.
type Collidable interface {
	Hitboxes() []geometry.Hitbox
	CanCollide(f Filter) bool
}

// Oriented is a collidable with a heading and a forward-most hitbox.
type Oriented interface {
	Collidable
	Heading() float64
	Front() geometry.Hitbox
}

// Query configures a collision test. When UseAngle is set only the caller's
// front hitbox is tested, and oriented obstacles heading away from Angle by
// more than FrontAngleMargin are ignored.
type Query struct {
	Filter
	Angle    float64
	UseAngle bool
}

// Ahead builds a query that only looks in front of a mover with the given heading.
func Ahead(f Filter, heading float64) Query {
	return Query{Filter: f, Angle: heading, UseAngle: true}
}

// Collides tests self against other. Cheap rejections run first: identity and
// the other side's filter, then the enclosing boxes, then the heading check,
// and only then every hitbox pair.
func Collides(self, other Collidable, q Query) bool {
	if self == other {
		return false
	}
	if !other.CanCollide(q.Filter) {
		return false
	}

	selfBoxes := self.Hitboxes()
	otherBoxes := other.Hitboxes()
	selfAll, ok := geometry.CombineAll(selfBoxes)
	if !ok {
		return false
	}
	otherAll, ok := geometry.CombineAll(otherBoxes)
	if !ok {
		return false
	}
	if !selfAll.Overlaps(otherAll) {
		return false
	}

	if q.UseAngle {
		if o, ok := self.(Oriented); ok {
			selfBoxes = []geometry.Hitbox{o.Front()}
		}
		if o, ok := other.(Oriented); ok && geometry.AngleDelta(o.Heading(), q.Angle) > FrontAngleMargin {
			return false
		}
	}

	return geometry.AnyOverlap(selfBoxes, otherBoxes)
}

// Bounds returns the box enclosing every hitbox of c.
func Bounds(c Collidable) (geometry.Hitbox, bool) {
	return geometry.CombineAll(c.Hitboxes())
}
