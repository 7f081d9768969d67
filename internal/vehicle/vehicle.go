package vehicle

import (
	"errors"
	"fmt"
	"math"

	"github.com/ukydev/bridge-traffic-sim/internal/collision"
	"github.com/ukydev/bridge-traffic-sim/internal/geometry"
	"github.com/ukydev/bridge-traffic-sim/internal/models"
)

// Segments is the number of square hitboxes laid along a vehicle.
const Segments = 4

var (
	// ErrEmptyPath is returned when a vehicle is created without waypoints.
	ErrEmptyPath = errors.New("vehicle path is empty")
	// ErrInvalidWaypoint is returned for NaN or infinite waypoints.
	ErrInvalidWaypoint = errors.New("vehicle waypoint is not finite")
)

// Vehicle follows a fixed path of waypoints. Position and target only change
// through a committed Plan.
type Vehicle struct {
	ID    int64
	Kind  models.VehicleKind
	Spec  Spec
	Speed float64
	Lane  string
	Path  []geometry.Point

	target  int
	pos     geometry.Point
	heading float64
	exiting string

	boxes      []geometry.Hitbox
	boxesValid bool
}

// New places a vehicle on the first waypoint of path, facing the second.
func New(id int64, kind models.VehicleKind, path []geometry.Point, lane string) (*Vehicle, error) {
	if len(path) == 0 {
		return nil, fmt.Errorf("vehicle %d: %w", id, ErrEmptyPath)
	}
	for i, p := range path {
		if !p.IsFinite() {
			return nil, fmt.Errorf("vehicle %d waypoint %d: %w", id, i, ErrInvalidWaypoint)
		}
	}
	spec, err := SpecFor(kind)
	if err != nil {
		return nil, err
	}

	v := &Vehicle{
		ID:    id,
		Kind:  kind,
		Spec:  spec,
		Speed: spec.Speed,
		Lane:  lane,
		Path:  path,
		pos:   path[0],
	}
	if len(path) > 1 {
		v.heading = geometry.Heading(path[1].X-path[0].X, path[1].Y-path[0].Y)
	}
	return v, nil
}

func (v *Vehicle) Position() geometry.Point { return v.pos }

func (v *Vehicle) Heading() float64 { return v.heading }

// TargetIndex is the index of the last waypoint reached.
func (v *Vehicle) TargetIndex() int { return v.target }

// HasFinished reports whether the final waypoint has been reached.
func (v *Vehicle) HasFinished() bool { return v.target >= len(v.Path)-1 }

// Exiting names the collision-free zone whose exit token the vehicle holds.
func (v *Vehicle) Exiting() string { return v.exiting }

// Direction classifies the current heading into the side the vehicle approaches from.
func (v *Vehicle) Direction() geometry.Direction {
	return geometry.ApproachDirection(v.heading)
}

// Filter describes the vehicle to the objects it is tested against.
func (v *Vehicle) Filter() collision.Filter {
	return collision.Filter{Direction: v.Direction(), Kind: v.Kind}
}

// Hitboxes returns the segments at the current position, cached until the
// vehicle moves or turns.
func (v *Vehicle) Hitboxes() []geometry.Hitbox {
	if !v.boxesValid {
		v.boxes = v.boxesAt(v.pos, v.heading)
		v.boxesValid = true
	}
	return v.boxes
}

// Front is the segment furthest along the heading.
func (v *Vehicle) Front() geometry.Hitbox {
	return v.Hitboxes()[Segments-1]
}

// CanCollide is always true: vehicles block everyone.
func (v *Vehicle) CanCollide(collision.Filter) bool { return true }

// Body freezes the hitboxes the vehicle would have at pos facing heading.
func (v *Vehicle) Body(pos geometry.Point, heading float64) *collision.Body {
	return &collision.Body{Boxes: v.boxesAt(pos, heading), FrontAt: Segments - 1, Angle: heading}
}

func (v *Vehicle) boxesAt(pos geometry.Point, heading float64) []geometry.Hitbox {
	fx, fy := geometry.Forward(heading)
	seg := v.Spec.Length / Segments
	side := v.Spec.Width
	boxes := make([]geometry.Hitbox, Segments)
	for i := range boxes {
		offset := (float64(i) - Segments/2 + 0.5) * seg
		boxes[i] = geometry.Centered(pos.Add(fx*offset, fy*offset), side, side)
	}
	return boxes
}

// propose computes where the vehicle would be after dt seconds with nothing in
// the way. ok is false for a finished or stationary vehicle.
func (v *Vehicle) propose(dt float64) (pos geometry.Point, heading float64, target int, ok bool) {
	if v.HasFinished() || v.Speed <= 0 || dt <= 0 {
		return v.pos, v.heading, v.target, false
	}
	next := v.Path[v.target+1]
	dx, dy := next.X-v.pos.X, next.Y-v.pos.Y
	dist := math.Hypot(dx, dy)
	step := v.Speed * dt
	target = v.target
	heading = v.heading

	if dist > 0 {
		heading = geometry.Heading(dx, dy)
	}
	if step >= dist {
		return next, heading, target + 1, true
	}
	pos = v.pos.Add(dx/dist*step, dy/dist*step)
	// intermediate waypoints count as reached within half a step; the last one
	// has to be hit exactly
	if target+1 < len(v.Path)-1 && pos.Distance(next) <= step/2 {
		target++
	}
	return pos, heading, target, true
}

func (v *Vehicle) apply(pos geometry.Point, heading float64, target int) {
	if pos != v.pos || heading != v.heading {
		v.boxesValid = false
	}
	v.pos = pos
	v.heading = heading
	if target > v.target {
		v.target = min(target, len(v.Path)-1)
	}
}
