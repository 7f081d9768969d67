package traffic

import (
	"github.com/samber/lo"

	"github.com/ukydev/bridge-traffic-sim/internal/geometry"
	"github.com/ukydev/bridge-traffic-sim/internal/models"
)

// Defaults for the bridge deck and its barriers.
const (
	DefaultBridgeHeight      = 30.0
	DefaultBridgeOpenSeconds = 8.0
	DefaultBarrierHeight     = 50.0
	DefaultBarrierSeconds    = 5.0

	heightEpsilon = 1e-9
)

// moveHeight steps h towards target without passing it, snapping onto the
// bound when accumulated rounding leaves it a hair short.
func moveHeight(h, target, step, base float64) float64 {
	if target < h {
		h -= step
	} else {
		h += step
	}
	h = lo.Clamp(h, 0, base)
	if h < heightEpsilon {
		return 0
	}
	if base-h < heightEpsilon {
		return base
	}
	return h
}

// Barrier is a road barrier whose height moves linearly towards 0 (lifted) or
// its base height (down).
type Barrier struct {
	Position    geometry.Point
	Angle       float64
	BaseHeight  float64
	OpenSeconds float64

	height float64
	open   bool
}

// NewBarrier returns a lifted barrier.
func NewBarrier(position geometry.Point, angle float64) *Barrier {
	return &Barrier{
		Position:    position,
		Angle:       angle,
		BaseHeight:  DefaultBarrierHeight,
		OpenSeconds: DefaultBarrierSeconds,
		open:        true,
	}
}

func (b *Barrier) Open()  { b.open = true }
func (b *Barrier) Close() { b.open = false }

// IsOpen reports the commanded state, not whether the motion has finished.
func (b *Barrier) IsOpen() bool { return b.open }

func (b *Barrier) Height() float64 { return b.height }

// Update moves the barrier for dt seconds.
func (b *Barrier) Update(dt float64) {
	step := b.BaseHeight / b.OpenSeconds * dt
	if b.open {
		b.height = moveHeight(b.height, 0, step, b.BaseHeight)
	} else {
		b.height = moveHeight(b.height, b.BaseHeight, step, b.BaseHeight)
	}
}

// Bridge is the movable deck. Height 0 is fully open for boats, BaseHeight is
// closed for road traffic.
type Bridge struct {
	ID          string
	BaseHeight  float64
	OpenSeconds float64
	Barriers    []*Barrier

	height        float64
	open          bool
	approachColor models.LightColor
}

// NewBridge returns a closed bridge with the given barriers lifted.
func NewBridge(id string, baseHeight, openSeconds float64, barriers []*Barrier) *Bridge {
	if baseHeight <= 0 {
		baseHeight = DefaultBridgeHeight
	}
	if openSeconds <= 0 {
		openSeconds = DefaultBridgeOpenSeconds
	}
	return &Bridge{
		ID:            id,
		BaseHeight:    baseHeight,
		OpenSeconds:   openSeconds,
		Barriers:      barriers,
		height:        baseHeight,
		approachColor: models.ColorRed,
	}
}

func (b *Bridge) Height() float64 { return b.height }

// IsOpen reports the commanded state.
func (b *Bridge) IsOpen() bool { return b.open }

// State derives the deck sensor reading from the current height.
func (b *Bridge) State() models.BridgeState {
	switch b.height {
	case 0:
		return models.BridgeOpen
	case b.BaseHeight:
		return models.BridgeClosed
	default:
		return models.BridgeIndeterminate
	}
}

// Command applies the bridge colour and the colour of the light on the bridge
// approach. Orange leaves the deck as it is. When the approach light stops
// being green the barriers come down.
func (b *Bridge) Command(bridge, approach models.LightColor) {
	switch bridge {
	case models.ColorGreen:
		b.open = true
	case models.ColorRed:
		b.open = false
	}
	if approach != "" && approach != b.approachColor {
		b.approachColor = approach
		if approach != models.ColorGreen {
			b.CloseBarriers()
		}
	}
}

func (b *Bridge) OpenBarriers() {
	for _, barrier := range b.Barriers {
		barrier.Open()
	}
}

func (b *Bridge) CloseBarriers() {
	for _, barrier := range b.Barriers {
		barrier.Close()
	}
}

// BarriersDown reports whether every barrier has fully come down.
func (b *Bridge) BarriersDown() bool {
	for _, barrier := range b.Barriers {
		if barrier.IsOpen() || barrier.Height() < barrier.BaseHeight {
			return false
		}
	}
	return true
}

// Update advances the deck and barriers by dt seconds and returns the sensor
// events of boundary crossings, in order. Completing the close lifts the barriers.
func (b *Bridge) Update(dt float64) []models.BridgeState {
	var events []models.BridgeState
	step := b.BaseHeight / b.OpenSeconds * dt

	switch {
	case b.open && b.height > 0:
		prev := b.height
		b.height = moveHeight(b.height, 0, step, b.BaseHeight)
		if prev == b.BaseHeight {
			events = append(events, models.BridgeIndeterminate)
		}
		if b.height == 0 {
			events = append(events, models.BridgeOpen)
		}
	case !b.open && b.height < b.BaseHeight:
		prev := b.height
		b.height = moveHeight(b.height, b.BaseHeight, step, b.BaseHeight)
		if prev == 0 {
			events = append(events, models.BridgeIndeterminate)
		}
		if b.height == b.BaseHeight {
			events = append(events, models.BridgeClosed)
			b.OpenBarriers()
		}
	}

	for _, barrier := range b.Barriers {
		barrier.Update(dt)
	}
	return events
}
