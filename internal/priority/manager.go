// Package priority tracks buses and emergency vehicles through the relevance
// and intersection zones and keeps the queue of priority requests sent to the
// controller.
package priority

import (
	"slices"

	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"

	"github.com/ukydev/bridge-traffic-sim/internal/collision"
	"github.com/ukydev/bridge-traffic-sim/internal/geometry"
	"github.com/ukydev/bridge-traffic-sim/internal/models"
	"github.com/ukydev/bridge-traffic-sim/internal/vehicle"
)

// DefaultBridgeFeedLanes are the lanes approaching the bridge from the
// intersection side.
var DefaultBridgeFeedLanes = []string{"1.1", "2.1", "2.2", "3.1"}

const (
	BridgeLaneNear = "41.1"
	BridgeLaneFar  = "42.1"
)

// Zones are the four areas the manager watches, plus the lanes that feed the
// bridge from the intersection side.
type Zones struct {
	Relevance          *collision.Zone
	BridgeRelevance    *collision.Zone
	Intersection       *collision.Zone
	BridgeIntersection *collision.Zone
	BridgeFeedLanes    []string
}

// BridgeLane maps a lane to the bridge lane reported while the vehicle is in
// the bridge relevance zone: feed lanes report the near bridge lane,
// everything else the far one.
func (z Zones) BridgeLane(lane string) string {
	if lo.Contains(z.BridgeFeedLanes, lane) {
		return BridgeLaneNear
	}
	return BridgeLaneFar
}

// DefaultZones matches the standard intersection layout.
func DefaultZones() Zones {
	return Zones{
		Relevance:          collision.NewZone("relevance", geometry.Hitbox{X: 0, Y: 0, Width: 826, Height: 620}),
		BridgeRelevance:    collision.NewZone("bridge_relevance", geometry.Hitbox{X: 1026, Y: 587, Width: 893, Height: 622}),
		Intersection:       collision.NewZone("intersection", geometry.Hitbox{X: 215, Y: 110, Width: 243, Height: 234}),
		BridgeIntersection: collision.NewZone("bridge_intersection", geometry.Hitbox{X: 1294, Y: 864, Width: 190, Height: 120}),
		BridgeFeedLanes:    slices.Clone(DefaultBridgeFeedLanes),
	}
}

type tracked struct {
	lane           string
	priority       int
	inIntersection bool
	queued         bool
	request        models.PriorityRequest
}

// Manager owns the priority queue. It is driven once per tick by the
// simulation and is not safe for concurrent use.
type Manager struct {
	zones   Zones
	tracked map[int64]*tracked
	order   []int64
	queue   []int64
}

func NewManager(zones Zones) *Manager {
	return &Manager{zones: zones, tracked: make(map[int64]*tracked)}
}

// Track starts following a vehicle. Kinds without priority are ignored.
func (m *Manager) Track(v *vehicle.Vehicle) bool {
	if !v.Kind.IsPriority() {
		return false
	}
	if _, ok := m.tracked[v.ID]; ok {
		return true
	}
	m.tracked[v.ID] = &tracked{lane: v.Lane, priority: v.Kind.Priority()}
	m.order = append(m.order, v.ID)
	return true
}

// Tracking reports whether a vehicle is followed.
func (m *Manager) Tracking(id int64) bool {
	_, ok := m.tracked[id]
	return ok
}

// Update moves every tracked vehicle through the zone rules. It returns the
// queue and true when membership changed this tick.
func (m *Manager) Update(vehicles []*vehicle.Vehicle, nowMs int64) ([]models.PriorityRequest, bool) {
	byID := make(map[int64]*vehicle.Vehicle, len(m.tracked))
	for _, v := range vehicles {
		if _, ok := m.tracked[v.ID]; ok {
			byID[v.ID] = v
		}
	}

	changed := false
	keep := m.order[:0]
	for _, id := range m.order {
		t := m.tracked[id]
		v, alive := byID[id]
		if !alive {
			changed = m.dequeue(id, t) || changed
			delete(m.tracked, id)
			continue
		}
		if m.step(id, t, v, nowMs) {
			changed = true
		}
		if _, still := m.tracked[id]; still {
			keep = append(keep, id)
		}
	}
	m.order = keep

	if changed {
		log.WithFields(log.Fields{"queued": len(m.queue)}).Debug("Priority queue changed")
	}
	return m.Queue(), changed
}

func (m *Manager) step(id int64, t *tracked, v *vehicle.Vehicle, nowMs int64) bool {
	inRelevance := m.in(v, m.zones.Relevance)
	inBridgeRelevance := m.in(v, m.zones.BridgeRelevance)
	changed := false

	if !t.queued {
		switch {
		case (inRelevance || inBridgeRelevance) && !t.inIntersection:
			lane := t.lane
			if !inRelevance {
				lane = m.zones.BridgeLane(t.lane)
			}
			t.request = models.PriorityRequest{Lane: lane, SimulationTime: nowMs, Priority: t.priority}
			t.queued = true
			m.queue = append(m.queue, id)
			changed = true
		case !inRelevance && !inBridgeRelevance:
			t.inIntersection = false
		}
	}

	if m.in(v, m.zones.Intersection) || m.in(v, m.zones.BridgeIntersection) {
		t.inIntersection = true
	} else if t.inIntersection && t.queued {
		changed = m.dequeue(id, t) || changed
		delete(m.tracked, id)
	}
	return changed
}

func (m *Manager) dequeue(id int64, t *tracked) bool {
	if !t.queued {
		return false
	}
	t.queued = false
	m.queue = slices.DeleteFunc(m.queue, func(q int64) bool { return q == id })
	return true
}

func (m *Manager) in(v *vehicle.Vehicle, zone *collision.Zone) bool {
	return zone != nil && collision.Collides(v, zone, collision.Query{})
}

// Queue returns the pending requests in the order they were queued.
func (m *Manager) Queue() []models.PriorityRequest {
	out := make([]models.PriorityRequest, 0, len(m.queue))
	for _, id := range m.queue {
		out = append(out, m.tracked[id].request)
	}
	return out
}
