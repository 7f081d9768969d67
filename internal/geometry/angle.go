package geometry

import (
	"fmt"
	"math"
	"strings"
)

// Direction is the side of the intersection a vehicle approaches from.
type Direction string

const (
	DirectionNone  Direction = ""
	DirectionNorth Direction = "north"
	DirectionEast  Direction = "east"
	DirectionSouth Direction = "south"
	DirectionWest  Direction = "west"
)

// ParseDirection accepts the four cardinal names, case-insensitive. The empty
// string maps to DirectionNone.
func ParseDirection(s string) (Direction, error) {
	switch d := Direction(strings.ToLower(strings.TrimSpace(s))); d {
	case DirectionNone, DirectionNorth, DirectionEast, DirectionSouth, DirectionWest:
		return d, nil
	default:
		return DirectionNone, fmt.Errorf("unknown approach direction %q", s)
	}
}

// NormalizeDegrees wraps an angle into [-180, 180].
func NormalizeDegrees(a float64) float64 {
	a = math.Mod(a, 360)
	if a > 180 {
		a -= 360
	} else if a < -180 {
		a += 360
	}
	return a
}

// AngleDelta is the absolute angular distance between two headings, in [0, 180].
func AngleDelta(a, b float64) float64 {
	return math.Abs(NormalizeDegrees(a - b))
}

// Heading returns the angle in degrees of a displacement in screen space
// (y grows downwards), so that 90 points up the screen.
func Heading(dx, dy float64) float64 {
	return math.Atan2(-dy, dx) * 180 / math.Pi
}

// Forward is the unit vector in screen space for a heading.
func Forward(heading float64) (float64, float64) {
	r := heading * math.Pi / 180
	return math.Cos(r), -math.Sin(r)
}

// ApproachDirection buckets a heading into the side of the intersection the
// mover is coming from: heading east means approaching from the west.
func ApproachDirection(heading float64) Direction {
	a := NormalizeDegrees(heading)
	switch {
	case a >= -45 && a <= 45:
		return DirectionWest
	case a > 45 && a <= 135:
		return DirectionSouth
	case a >= -135 && a < -45:
		return DirectionNorth
	default:
		return DirectionEast
	}
}
