package simulation

import (
	"github.com/ukydev/bridge-traffic-sim/internal/collision"
	"github.com/ukydev/bridge-traffic-sim/internal/models"
	"github.com/ukydev/bridge-traffic-sim/internal/spatial"
	"github.com/ukydev/bridge-traffic-sim/internal/traffic"
	"github.com/ukydev/bridge-traffic-sim/internal/vehicle"
)

type sensorSlot struct {
	sensor *traffic.Sensor
	key    string
	back   bool
	lane   bool
}

// detector derives sensor occupancy from vehicle positions. Sensors never move,
// so their grid is built once.
type detector struct {
	grid     *spatial.Grid[int]
	slots    []sensorSlot
	laneKeys []string
	special  []string
}

func newDetector(lights []*traffic.TrafficLight, special []*traffic.Sensor, cellSize float64) *detector {
	d := &detector{grid: spatial.NewGrid[int](cellSize)}
	add := func(s *traffic.Sensor, slot sensorSlot) {
		if s == nil {
			return
		}
		slot.sensor = s
		if b, ok := collision.Bounds(s); ok {
			d.grid.Insert(len(d.slots), b)
		}
		d.slots = append(d.slots, slot)
	}
	for _, l := range lights {
		d.laneKeys = append(d.laneKeys, l.Key())
		add(l.Front, sensorSlot{key: l.Key(), lane: true})
		add(l.Back, sensorSlot{key: l.Key(), back: true, lane: true})
	}
	for _, s := range special {
		d.special = append(d.special, s.Name)
		add(s, sensorSlot{key: s.Name})
	}
	return d
}

// detect reports every lane and special sensor, occupied or not.
func (d *detector) detect(vehicles []*vehicle.Vehicle) (models.LaneSensorUpdate, models.SpecialSensorUpdate) {
	lanes := make(models.LaneSensorUpdate, len(d.laneKeys))
	for _, k := range d.laneKeys {
		lanes[k] = models.LaneSensorState{}
	}
	special := make(models.SpecialSensorUpdate, len(d.special))
	for _, name := range d.special {
		special[name] = false
	}

	for _, v := range vehicles {
		b, ok := collision.Bounds(v)
		if !ok {
			continue
		}
		q := collision.Query{Filter: v.Filter()}
		for _, i := range d.grid.Query(b) {
			slot := d.slots[i]
			if !collision.Collides(v, slot.sensor, q) {
				continue
			}
			if !slot.lane {
				special[slot.key] = true
				continue
			}
			state := lanes[slot.key]
			if slot.back {
				state.Back = true
			} else {
				state.Front = true
			}
			lanes[slot.key] = state
		}
	}
	return lanes, special
}
