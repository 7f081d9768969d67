package simulation

import (
	"github.com/ukydev/bridge-traffic-sim/internal/collision"
	"github.com/ukydev/bridge-traffic-sim/internal/priority"
	"github.com/ukydev/bridge-traffic-sim/internal/traffic"
	"github.com/ukydev/bridge-traffic-sim/internal/vehicle"
)

// World is the static topology the simulation runs on. It is built once from
// configuration; lights, bridge and barriers keep their own mutable state.
type World struct {
	Directions         []*traffic.Direction
	SpecialSensors     []*traffic.Sensor
	Bridge             *traffic.Bridge
	CollisionFreeZones []*collision.Zone
	PriorityZones      priority.Zones
	Routes             []vehicle.Route
	Components         []vehicle.Component
}

// Lights returns every light keyed by its wire key.
func (w *World) Lights() map[string]*traffic.TrafficLight {
	lights := make(map[string]*traffic.TrafficLight)
	for _, d := range w.Directions {
		for _, l := range d.Lights {
			lights[l.Key()] = l
		}
	}
	return lights
}
