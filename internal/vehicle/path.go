package vehicle

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/samber/lo"

	"github.com/ukydev/bridge-traffic-sim/internal/geometry"
	"github.com/ukydev/bridge-traffic-sim/internal/models"
)

// maxComponentDepth bounds how deep named components may reference each other.
const maxComponentDepth = 32

var (
	// ErrUnknownComponent is returned when a path names a route component that
	// does not exist.
	ErrUnknownComponent = errors.New("unknown route component")
	// ErrComponentDepth is returned for component references nested too deep,
	// which in practice means a cycle.
	ErrComponentDepth = errors.New("route components nested too deep")
)

// Segment is one element of a configured path. Exactly one of Point,
// Component, MultiLane or Variations is set.
type Segment struct {
	Point      *geometry.Point
	Component  string
	MultiLane  []Branch
	Variations []Branch
	// Group keys the lane counters of a multi-lane segment. Segments that share
	// a group share their counters.
	Group          string
	AssociatedLane string
}

// Branch is one lane of a multi-lane segment or one variation.
type Branch struct {
	Path            []Segment
	AssociatedLane  string
	UsagePercentage float64
}

// Component is a named, reusable piece of path.
type Component struct {
	Name           string
	Path           []Segment
	AssociatedLane string
}

// Route is a spawn source: vehicles of one kind following one configured path.
type Route struct {
	Name              string
	Kind              models.VehicleKind
	VehiclesPerMinute float64
	Path              []Segment
	AssociatedLane    string
}

// LaneCounter remembers how many vehicles picked each lane of a multi-lane
// group. Counts are cumulative for the lifetime of the simulation.
type LaneCounter struct {
	counts map[string][]int
}

func NewLaneCounter() *LaneCounter {
	return &LaneCounter{counts: make(map[string][]int)}
}

// Select picks a lane out of n for group and records the pick. Lane 0 is the
// rightmost. A left lane is chosen only when one more vehicle on it would not
// put it ahead of the lane to its right; otherwise the rightmost lane is used.
func (c *LaneCounter) Select(group string, n int) int {
	counts := c.counts[group]
	if len(counts) < n {
		counts = append(counts, make([]int, n-len(counts))...)
	}
	chosen := 0
	for i := 1; i < n; i++ {
		if counts[i]+1 <= counts[i-1] {
			chosen = i
			break
		}
	}
	counts[chosen]++
	c.counts[group] = counts
	return chosen
}

// Counts returns a copy of the counters of a group.
func (c *LaneCounter) Counts(group string) []int {
	return append([]int(nil), c.counts[group]...)
}

// Expander turns configured segments into a flat list of waypoints.
type Expander struct {
	components map[string]Component
	lanes      *LaneCounter
	rng        *rand.Rand
}

// NewExpander indexes the components by name.
func NewExpander(components []Component, lanes *LaneCounter, rng *rand.Rand) *Expander {
	return &Expander{
		components: lo.KeyBy(components, func(c Component) string { return c.Name }),
		lanes:      lanes,
		rng:        rng,
	}
}

// Expand resolves a route into waypoints and the deepest associated lane found
// along the way.
func (e *Expander) Expand(route Route) ([]geometry.Point, string, error) {
	x := expansion{Expander: e, lane: route.AssociatedLane}
	points, err := x.segments(route.Path, 0)
	if err != nil {
		return nil, "", fmt.Errorf("route %s: %w", route.Name, err)
	}
	if len(points) == 0 {
		return nil, "", fmt.Errorf("route %s: %w", route.Name, ErrEmptyPath)
	}
	return points, x.lane, nil
}

// Validate expands every variation and lane of a route without touching the
// lane counters, so configuration mistakes surface at load time.
func (e *Expander) Validate(route Route) error {
	return e.validate(route.Path, 0)
}

func (e *Expander) validate(segs []Segment, depth int) error {
	if depth > maxComponentDepth {
		return ErrComponentDepth
	}
	for _, s := range segs {
		switch {
		case s.Component != "":
			c, ok := e.components[s.Component]
			if !ok {
				return fmt.Errorf("%w: %q", ErrUnknownComponent, s.Component)
			}
			if err := e.validate(c.Path, depth+1); err != nil {
				return err
			}
		case len(s.MultiLane) > 0 || len(s.Variations) > 0:
			for _, b := range lo.Flatten([][]Branch{s.MultiLane, s.Variations}) {
				if err := e.validate(b.Path, depth+1); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

type expansion struct {
	*Expander
	lane string
}

func (x *expansion) segments(segs []Segment, depth int) ([]geometry.Point, error) {
	if depth > maxComponentDepth {
		return nil, ErrComponentDepth
	}
	var out []geometry.Point
	for _, s := range segs {
		if s.AssociatedLane != "" {
			x.lane = s.AssociatedLane
		}
		var (
			part []geometry.Point
			err  error
		)
		switch {
		case s.Point != nil:
			part = []geometry.Point{*s.Point}
		case s.Component != "":
			c, ok := x.components[s.Component]
			if !ok {
				return nil, fmt.Errorf("%w: %q", ErrUnknownComponent, s.Component)
			}
			if c.AssociatedLane != "" {
				x.lane = c.AssociatedLane
			}
			part, err = x.segments(c.Path, depth+1)
		case len(s.MultiLane) > 0:
			part, err = x.branch(s.MultiLane[x.lanes.Select(groupKey(s), len(s.MultiLane))], depth)
		case len(s.Variations) > 0:
			part, err = x.branch(pickVariation(x.rng, s.Variations), depth)
		}
		if err != nil {
			return nil, err
		}
		out = append(out, part...)
	}
	return out, nil
}

func (x *expansion) branch(b Branch, depth int) ([]geometry.Point, error) {
	if b.AssociatedLane != "" {
		x.lane = b.AssociatedLane
	}
	return x.segments(b.Path, depth+1)
}

// pickVariation draws a variation weighted by its usage percentage.
func pickVariation(rng *rand.Rand, variations []Branch) Branch {
	total := lo.SumBy(variations, func(b Branch) float64 { return b.UsagePercentage })
	r := rng.Float64() * total
	upto := 0.0
	for _, v := range variations {
		if upto+v.UsagePercentage >= r {
			return v
		}
		upto += v.UsagePercentage
	}
	return variations[len(variations)-1]
}

// groupKey falls back to the first waypoint of the rightmost lane, so that the
// same junction referenced from different routes shares one counter.
func groupKey(s Segment) string {
	if s.Group != "" {
		return s.Group
	}
	for _, seg := range s.MultiLane[0].Path {
		if seg.Point != nil {
			return fmt.Sprintf("%g,%g", seg.Point.X, seg.Point.Y)
		}
		if seg.Component != "" {
			return seg.Component
		}
	}
	return "default"
}
