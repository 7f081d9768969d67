package vehicle

import (
	"github.com/ukydev/bridge-traffic-sim/internal/collision"
	"github.com/ukydev/bridge-traffic-sim/internal/geometry"
)

// ZoneSet holds the collision-free zones and their exit tokens. Only one
// vehicle at a time may hold the token of a zone.
type ZoneSet struct {
	zones  []*collision.Zone
	tokens map[string]int64
}

// NewZoneSet wraps the configured zones. Zone names must be unique.
func NewZoneSet(zones []*collision.Zone) *ZoneSet {
	return &ZoneSet{zones: zones, tokens: make(map[string]int64)}
}

// Zones returns the configured zones.
func (z *ZoneSet) Zones() []*collision.Zone {
	if z == nil {
		return nil
	}
	return z.zones
}

// At returns the name of the first zone overlapped by boxes.
func (z *ZoneSet) At(boxes []geometry.Hitbox) string {
	if z == nil {
		return ""
	}
	for _, zone := range z.zones {
		if geometry.AnyOverlap(boxes, zone.Hitboxes()) {
			return zone.Name
		}
	}
	return ""
}

// Overlaps reports whether boxes touch the named zone.
func (z *ZoneSet) Overlaps(name string, boxes []geometry.Hitbox) bool {
	zone := z.find(name)
	return zone != nil && geometry.AnyOverlap(boxes, zone.Hitboxes())
}

// Containing returns the name of the first zone containing p.
func (z *ZoneSet) Containing(p geometry.Point) string {
	if z == nil {
		return ""
	}
	for _, zone := range z.zones {
		if zone.Box().ContainsPoint(p) {
			return zone.Name
		}
	}
	return ""
}

// Contains reports whether box lies entirely within the named zone.
func (z *ZoneSet) Contains(name string, box geometry.Hitbox) bool {
	zone := z.find(name)
	return zone != nil && zone.Box().Contains(box)
}

// Holder returns the vehicle holding the exit token of a zone.
func (z *ZoneSet) Holder(name string) (int64, bool) {
	if z == nil {
		return 0, false
	}
	id, ok := z.tokens[name]
	return id, ok
}

// Acquire grants the exit token to id unless another vehicle holds it.
func (z *ZoneSet) Acquire(name string, id int64) bool {
	if holder, ok := z.tokens[name]; ok {
		return holder == id
	}
	z.tokens[name] = id
	return true
}

// Release hands the token back if id holds it.
func (z *ZoneSet) Release(name string, id int64) {
	if holder, ok := z.tokens[name]; ok && holder == id {
		delete(z.tokens, name)
	}
}

func (z *ZoneSet) find(name string) *collision.Zone {
	if z == nil || name == "" {
		return nil
	}
	for _, zone := range z.zones {
		if zone.Name == name {
			return zone
		}
	}
	return nil
}

// shareZone reports whether two zone-capable vehicles may ignore each other
// because they touch the same zone. A vehicle mid-exit keeps touching the zone
// it leaves until it is clear of it.
func (z *ZoneSet) shareZone(a, b *Vehicle) bool {
	if z == nil || !a.Spec.CollisionFreeZones || !b.Spec.CollisionFreeZones {
		return false
	}
	za := z.At(a.Hitboxes())
	return za != "" && za == z.At(b.Hitboxes())
}
