package traffic

import (
	"fmt"

	"github.com/samber/lo"

	"github.com/ukydev/bridge-traffic-sim/internal/collision"
	"github.com/ukydev/bridge-traffic-sim/internal/geometry"
	"github.com/ukydev/bridge-traffic-sim/internal/models"
	"github.com/ukydev/bridge-traffic-sim/internal/schedule"
)

// LightSize is the edge length of the stop line hitbox of a traffic light.
const LightSize = 2.0

// Scheduler defers an action to a later tick.
type Scheduler interface {
	At(due uint64, action func()) schedule.Handle
	Cancel(h schedule.Handle)
}

// TrafficLight is a stop line controlled by the external controller. Colour
// changes only through Command.
type TrafficLight struct {
	ID              string
	DirectionID     string
	Position        geometry.Point
	Approach        geometry.Direction
	Kinds           []models.VehicleKind
	Front           *Sensor
	Back            *Sensor
	ControlsBarrier bool

	color      models.LightColor
	box        []geometry.Hitbox
	pending    schedule.Handle
	hasPending bool
}

// NewTrafficLight creates a red light at position.
func NewTrafficLight(directionID, id string, position geometry.Point, approach geometry.Direction, kinds []models.VehicleKind) *TrafficLight {
	return &TrafficLight{
		ID:          id,
		DirectionID: directionID,
		Position:    position,
		Approach:    approach,
		Kinds:       kinds,
		color:       models.ColorRed,
		box:         []geometry.Hitbox{geometry.Centered(position, LightSize, LightSize)},
	}
}

// Key is the "{direction}.{light}" identifier used on the wire.
func (l *TrafficLight) Key() string {
	return fmt.Sprintf("%s.%s", l.DirectionID, l.ID)
}

// Color returns the colour currently shown.
func (l *TrafficLight) Color() models.LightColor { return l.color }

// PendingGreen reports whether a delayed green is waiting to be applied.
func (l *TrafficLight) PendingGreen() bool { return l.hasPending }

func (l *TrafficLight) Hitboxes() []geometry.Hitbox { return l.box }

// CanCollide opens the lane on green, and otherwise only stops traffic of its
// own kinds coming from its own side.
func (l *TrafficLight) CanCollide(f collision.Filter) bool {
	if l.color == models.ColorGreen {
		return false
	}
	if f.Direction != geometry.DirectionNone && l.Approach != geometry.DirectionNone && f.Direction != l.Approach {
		return false
	}
	if f.Kind != "" && len(l.Kinds) > 0 && !lo.Contains(l.Kinds, f.Kind) {
		return false
	}
	return true
}

// Command applies a colour from the controller. A light that controls a
// barrier shows green only delayTicks after the command, so the barriers have
// lifted by the time traffic may go; any other command cancels that pending
// green.
func (l *TrafficLight) Command(c models.LightColor, now, delayTicks uint64, s Scheduler) {
	if l.ControlsBarrier && c == models.ColorGreen && l.color != models.ColorGreen && delayTicks > 0 {
		if l.hasPending {
			return
		}
		l.pending = s.At(now+delayTicks, func() {
			l.color = models.ColorGreen
			l.hasPending = false
		})
		l.hasPending = true
		return
	}
	if l.hasPending {
		s.Cancel(l.pending)
		l.hasPending = false
	}
	l.color = c
}

// Direction groups the lights of one approach.
type Direction struct {
	ID       string
	Approach geometry.Direction
	Lights   []*TrafficLight
}
