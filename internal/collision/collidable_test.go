package collision

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ukydev/bridge-traffic-sim/internal/geometry"
	"github.com/ukydev/bridge-traffic-sim/internal/models"
)

type gate struct {
	Zone
	allow func(Filter) bool
}

func (g *gate) CanCollide(f Filter) bool { return g.allow(f) }

func newGate(box geometry.Hitbox, allow func(Filter) bool) *gate {
	return &gate{Zone: *NewZone("gate", box), allow: allow}
}

func TestCollides_SelfNeverCollides(t *testing.T) {
	z := NewZone("z", geometry.Hitbox{X: 0, Y: 0, Width: 10, Height: 10})
	assert.False(t, Collides(z, z, Query{}))
}

func TestCollides_RespectsOtherFilter(t *testing.T) {
	box := geometry.Hitbox{X: 0, Y: 0, Width: 10, Height: 10}
	mover := NewZone("mover", box)
	onlyBikes := newGate(box, func(f Filter) bool { return f.Kind == models.KindBike })

	assert.False(t, Collides(mover, onlyBikes, Query{Filter: Filter{Kind: models.KindCar}}))
	assert.True(t, Collides(mover, onlyBikes, Query{Filter: Filter{Kind: models.KindBike}}))
}

func TestCollides_NarrowPhaseAfterBroadPhase(t *testing.T) {
	// Two L-shaped bodies whose enclosing boxes overlap while no pair of boxes does.
	a := &Body{Boxes: []geometry.Hitbox{{X: 0, Y: 0, Width: 10, Height: 2}, {X: 0, Y: 0, Width: 2, Height: 10}}}
	b := &Body{Boxes: []geometry.Hitbox{{X: 5, Y: 5, Width: 5, Height: 5}}}
	assert.False(t, Collides(a, b, Query{}))

	b.Boxes = append(b.Boxes, geometry.Hitbox{X: 1, Y: 8, Width: 2, Height: 2})
	assert.True(t, Collides(a, b, Query{}))
}

func TestCollides_FrontOnlyWithAngle(t *testing.T) {
	// A mover heading east whose tail overlaps an obstacle but whose front does not.
	mover := &Body{
		Boxes:   []geometry.Hitbox{{X: 0, Y: 0, Width: 5, Height: 5}, {X: 20, Y: 0, Width: 5, Height: 5}},
		FrontAt: 1,
		Angle:   0,
	}
	behind := NewZone("behind", geometry.Hitbox{X: 2, Y: 2, Width: 3, Height: 3})

	assert.True(t, Collides(mover, behind, Query{}))
	assert.False(t, Collides(mover, behind, Ahead(Filter{}, 0)))

	ahead := NewZone("ahead", geometry.Hitbox{X: 22, Y: 0, Width: 3, Height: 3})
	assert.True(t, Collides(mover, ahead, Ahead(Filter{}, 0)))
}

func TestCollides_OncomingOrientedObstacleIgnored(t *testing.T) {
	mover := &Body{Boxes: []geometry.Hitbox{{X: 0, Y: 0, Width: 5, Height: 5}}, Angle: 0}
	oncoming := &Body{Boxes: []geometry.Hitbox{{X: 3, Y: 0, Width: 5, Height: 5}}, Angle: 180}
	crossing := &Body{Boxes: []geometry.Hitbox{{X: 3, Y: 0, Width: 5, Height: 5}}, Angle: 90}

	assert.False(t, Collides(mover, oncoming, Ahead(Filter{}, 0)))
	assert.True(t, Collides(mover, crossing, Ahead(Filter{}, 0)))
}

// Whenever the narrow phase finds an overlap the enclosing boxes overlap too.
func TestCollides_BroadPhaseHasNoFalseNegatives(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	randomBody := func() *Body {
		n := 1 + rng.Intn(4)
		b := &Body{}
		for i := 0; i < n; i++ {
			b.Boxes = append(b.Boxes, geometry.Hitbox{X: rng.Float64() * 60, Y: rng.Float64() * 60, Width: 1 + rng.Float64()*10, Height: 1 + rng.Float64()*10})
		}
		return b
	}
	for i := 0; i < 3000; i++ {
		a, b := randomBody(), randomBody()
		if geometry.AnyOverlap(a.Boxes, b.Boxes) {
			aAll, _ := geometry.CombineAll(a.Boxes)
			bAll, _ := geometry.CombineAll(b.Boxes)
			require.True(t, aAll.Overlaps(bAll))
			require.True(t, Collides(a, b, Query{}))
			require.True(t, Collides(b, a, Query{}))
		}
	}
}

func TestNewZoneFromCorners(t *testing.T) {
	z, err := NewZoneFromCorners("rotary", []geometry.Point{{X: 10, Y: 10}, {X: 30, Y: 10}, {X: 30, Y: 25}, {X: 10, Y: 25}})
	require.NoError(t, err)
	assert.Equal(t, geometry.Hitbox{X: 10, Y: 10, Width: 20, Height: 15}, z.Box())

	_, err = NewZoneFromCorners("broken", []geometry.Point{{X: 0, Y: 0}, {X: 1, Y: 1}, {X: 2, Y: 2}})
	assert.ErrorIs(t, err, ErrZonePointCount)
}
