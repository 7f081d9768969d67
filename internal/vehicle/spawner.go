package vehicle

import (
	"math"
	"math/rand"

	log "github.com/sirupsen/logrus"

	"github.com/ukydev/bridge-traffic-sim/internal/collision"
)

// Spawner creates vehicles on every route with exponentially distributed
// inter-arrival times, averaging VehiclesPerMinute. Time is simulation time in
// seconds, so runs with the same seed are reproducible.
type Spawner struct {
	routes   []Route
	next     []float64
	expander *Expander
	rng      *rand.Rand
	nextID   int64
}

// NewSpawner schedules the first arrival of every route relative to now.
func NewSpawner(routes []Route, expander *Expander, rng *rand.Rand, now float64) *Spawner {
	s := &Spawner{
		routes:   routes,
		next:     make([]float64, len(routes)),
		expander: expander,
		rng:      rng,
		nextID:   1,
	}
	for i := range routes {
		s.next[i] = now + s.delay(routes[i])
	}
	return s
}

func (s *Spawner) delay(r Route) float64 {
	if r.VehiclesPerMinute <= 0 {
		return math.Inf(1)
	}
	return s.rng.ExpFloat64() / (r.VehiclesPerMinute / 60)
}

// Spawn creates at most one vehicle per due route. A new vehicle is dropped
// when fits rejects it or when it overlaps a vehicle spawned earlier in the
// same call; the route is rescheduled either way.
func (s *Spawner) Spawn(now float64, fits func(*Vehicle) bool) ([]*Vehicle, error) {
	var spawned []*Vehicle
	for i, r := range s.routes {
		if now < s.next[i] {
			continue
		}
		s.next[i] = now + s.delay(r)

		path, lane, err := s.expander.Expand(r)
		if err != nil {
			return spawned, err
		}
		v, err := New(s.nextID, r.Kind, path, lane)
		if err != nil {
			return spawned, err
		}
		if overlapsAny(v, spawned) || (fits != nil && !fits(v)) {
			log.WithFields(log.Fields{"route": r.Name, "kind": r.Kind}).Debug("Spawn skipped, spawn point occupied")
			continue
		}
		s.nextID++
		spawned = append(spawned, v)
	}
	return spawned, nil
}

func overlapsAny(v *Vehicle, others []*Vehicle) bool {
	for _, o := range others {
		if collision.Collides(v, o, collision.Query{}) {
			return true
		}
	}
	return false
}

// NextArrival returns when the route at index i fires next.
func (s *Spawner) NextArrival(i int) float64 { return s.next[i] }
