package vehicle

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ukydev/bridge-traffic-sim/internal/geometry"
	"github.com/ukydev/bridge-traffic-sim/internal/models"
)

func at(x, y float64) Segment {
	return Segment{Point: &geometry.Point{X: x, Y: y}}
}

func TestLaneCounter_Select(t *testing.T) {
	testCases := []struct {
		name  string
		lanes int
		want  []int
	}{
		{"single lane", 1, []int{0, 0, 0}},
		{"two lanes alternate", 2, []int{0, 1, 0, 1, 0}},
		{"three lanes fill right to left", 3, []int{0, 1, 2, 0, 1, 2}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			c := NewLaneCounter()
			var got []int
			for range tc.want {
				got = append(got, c.Select("g", tc.lanes))
			}
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestLaneCounter_LeftNeverOvertakesRight(t *testing.T) {
	c := NewLaneCounter()
	for i := 0; i < 50; i++ {
		c.Select("kruising", 3)
		counts := c.Counts("kruising")
		for lane := 1; lane < len(counts); lane++ {
			require.LessOrEqual(t, counts[lane], counts[lane-1])
		}
	}
	c.Select("other", 2)
	assert.Equal(t, []int{1, 0}, c.Counts("other"))
}

func TestExpander_ResolvesComponentsAndLanes(t *testing.T) {
	components := []Component{
		{Name: "aanloop", AssociatedLane: "2.1", Path: []Segment{at(10, 0)}},
	}
	route := Route{
		Name:           "noord",
		Kind:           models.KindCar,
		AssociatedLane: "1.1",
		Path: []Segment{
			at(0, 0),
			{Component: "aanloop"},
			{Group: "splitsing", MultiLane: []Branch{
				{AssociatedLane: "3.1", Path: []Segment{at(20, 0)}},
				{AssociatedLane: "3.2", Path: []Segment{at(20, 5)}},
			}},
		},
	}
	e := NewExpander(components, NewLaneCounter(), rand.New(rand.NewSource(1)))
	require.NoError(t, e.Validate(route))

	points, lane, err := e.Expand(route)
	require.NoError(t, err)
	assert.Equal(t, pts(0, 0, 10, 0, 20, 0), points)
	assert.Equal(t, "3.1", lane)

	points, lane, err = e.Expand(route)
	require.NoError(t, err)
	assert.Equal(t, pts(0, 0, 10, 0, 20, 5), points)
	assert.Equal(t, "3.2", lane)
}

func TestExpander_RouteLaneWithoutOverrides(t *testing.T) {
	e := NewExpander(nil, NewLaneCounter(), rand.New(rand.NewSource(1)))
	_, lane, err := e.Expand(Route{Name: "r", AssociatedLane: "5.1", Path: []Segment{at(0, 0), at(1, 1)}})
	require.NoError(t, err)
	assert.Equal(t, "5.1", lane)
}

func TestExpander_Variations(t *testing.T) {
	route := Route{Name: "r", Path: []Segment{
		at(0, 0),
		{Variations: []Branch{
			{UsagePercentage: 0, Path: []Segment{at(-1, -1)}},
			{UsagePercentage: 100, AssociatedLane: "7.1", Path: []Segment{at(5, 5)}},
		}},
	}}
	e := NewExpander(nil, NewLaneCounter(), rand.New(rand.NewSource(42)))
	for i := 0; i < 20; i++ {
		points, lane, err := e.Expand(route)
		require.NoError(t, err)
		assert.Equal(t, pts(0, 0, 5, 5), points)
		assert.Equal(t, "7.1", lane)
	}
}

func TestExpander_Errors(t *testing.T) {
	e := NewExpander([]Component{
		{Name: "loop", Path: []Segment{{Component: "loop"}}},
	}, NewLaneCounter(), rand.New(rand.NewSource(1)))

	missing := Route{Name: "r", Path: []Segment{at(0, 0), {Component: "nowhere"}}}
	_, _, err := e.Expand(missing)
	assert.ErrorIs(t, err, ErrUnknownComponent)
	assert.ErrorIs(t, e.Validate(missing), ErrUnknownComponent)

	nested := Route{Name: "r", Path: []Segment{{Variations: []Branch{{Path: []Segment{{Component: "nowhere"}}}}}}}
	assert.ErrorIs(t, e.Validate(nested), ErrUnknownComponent)

	cycle := Route{Name: "r", Path: []Segment{{Component: "loop"}}}
	_, _, err = e.Expand(cycle)
	assert.ErrorIs(t, err, ErrComponentDepth)
	assert.ErrorIs(t, e.Validate(cycle), ErrComponentDepth)

	_, _, err = e.Expand(Route{Name: "leeg"})
	assert.ErrorIs(t, err, ErrEmptyPath)
}

func TestGroupKey_DefaultsToFirstWaypoint(t *testing.T) {
	s := Segment{MultiLane: []Branch{{Path: []Segment{at(3, 4)}}}}
	assert.Equal(t, "3,4", groupKey(s))
	s.Group = "named"
	assert.Equal(t, "named", groupKey(s))
}
