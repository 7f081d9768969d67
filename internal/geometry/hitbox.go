package geometry

import (
	"errors"
	"fmt"
	"math"
)

// ErrNegativeSize is returned when a hitbox is built with a negative width or height.
var ErrNegativeSize = errors.New("hitbox width and height must be non-negative")

// Point is a position in world space.
type Point struct {
	X float64 `json:"x" bson:"x" yaml:"x"`
	Y float64 `json:"y" bson:"y" yaml:"y"`
}

// Add returns p translated by (dx, dy).
func (p Point) Add(dx, dy float64) Point {
	return Point{X: p.X + dx, Y: p.Y + dy}
}

// Distance returns the euclidean distance between two points.
func (p Point) Distance(o Point) float64 {
	return math.Hypot(o.X-p.X, o.Y-p.Y)
}

// IsFinite reports whether both coordinates are finite numbers.
func (p Point) IsFinite() bool {
	return !math.IsNaN(p.X) && !math.IsNaN(p.Y) && !math.IsInf(p.X, 0) && !math.IsInf(p.Y, 0)
}

// Hitbox is an axis-aligned bounding box anchored at its top-left corner.
type Hitbox struct {
	X      float64 `json:"x" bson:"x"`
	Y      float64 `json:"y" bson:"y"`
	Width  float64 `json:"width" bson:"width"`
	Height float64 `json:"height" bson:"height"`
}

// NewHitbox validates the dimensions and returns the box.
func NewHitbox(x, y, width, height float64) (Hitbox, error) {
	if width < 0 || height < 0 {
		return Hitbox{}, fmt.Errorf("%w: %gx%g", ErrNegativeSize, width, height)
	}
	return Hitbox{X: x, Y: y, Width: width, Height: height}, nil
}

// Centered returns a box of the given size centred on c.
func Centered(c Point, width, height float64) Hitbox {
	return Hitbox{X: c.X - width/2, Y: c.Y - height/2, Width: width, Height: height}
}

// BoundingBox returns the minimal box enclosing all points. It reports false
// for an empty slice.
func BoundingBox(points []Point) (Hitbox, bool) {
	if len(points) == 0 {
		return Hitbox{}, false
	}
	minX, minY := points[0].X, points[0].Y
	maxX, maxY := minX, minY
	for _, p := range points[1:] {
		minX = math.Min(minX, p.X)
		minY = math.Min(minY, p.Y)
		maxX = math.Max(maxX, p.X)
		maxY = math.Max(maxY, p.Y)
	}
	return Hitbox{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}, true
}

// Right is the x coordinate of the right edge.
func (h Hitbox) Right() float64 { return h.X + h.Width }

// Bottom is the y coordinate of the bottom edge.
func (h Hitbox) Bottom() float64 { return h.Y + h.Height }

// Center returns the centre point of the box.
func (h Hitbox) Center() Point {
	return Point{X: h.X + h.Width/2, Y: h.Y + h.Height/2}
}

// Overlaps reports whether the interiors of the two boxes intersect. Boxes that
// only touch along an edge do not overlap.
func (h Hitbox) Overlaps(o Hitbox) bool {
	return h.X < o.X+o.Width &&
		h.X+h.Width > o.X &&
		h.Y < o.Y+o.Height &&
		h.Y+h.Height > o.Y
}

// Contains reports whether o lies completely inside h.
func (h Hitbox) Contains(o Hitbox) bool {
	return h.X <= o.X && o.Right() <= h.Right() && h.Y <= o.Y && o.Bottom() <= h.Bottom()
}

// ContainsPoint reports whether p lies inside h, edges included.
func (h Hitbox) ContainsPoint(p Point) bool {
	return h.X <= p.X && p.X <= h.Right() && h.Y <= p.Y && p.Y <= h.Bottom()
}

// Combine returns the minimal box enclosing both h and o.
func (h Hitbox) Combine(o Hitbox) Hitbox {
	x := math.Min(h.X, o.X)
	y := math.Min(h.Y, o.Y)
	return Hitbox{
		X:      x,
		Y:      y,
		Width:  math.Max(h.Right(), o.Right()) - x,
		Height: math.Max(h.Bottom(), o.Bottom()) - y,
	}
}

// Expand grows the box by buffer on every side.
func (h Hitbox) Expand(buffer float64) Hitbox {
	return Hitbox{X: h.X - buffer, Y: h.Y - buffer, Width: h.Width + 2*buffer, Height: h.Height + 2*buffer}
}

// Translate moves the box by (dx, dy).
func (h Hitbox) Translate(dx, dy float64) Hitbox {
	h.X += dx
	h.Y += dy
	return h
}

// CombineAll folds a hitbox list into its enclosing box. It reports false when
// the list is empty.
func CombineAll(boxes []Hitbox) (Hitbox, bool) {
	if len(boxes) == 0 {
		return Hitbox{}, false
	}
	out := boxes[0]
	for _, b := range boxes[1:] {
		out = out.Combine(b)
	}
	return out, true
}

// AnyOverlap reports whether any box of a overlaps any box of b.
func AnyOverlap(a, b []Hitbox) bool {
	for _, x := range a {
		for _, y := range b {
			if x.Overlaps(y) {
				return true
			}
		}
	}
	return false
}
