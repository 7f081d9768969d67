package vehicle

import (
	log "github.com/sirupsen/logrus"

	"github.com/ukydev/bridge-traffic-sim/internal/collision"
	"github.com/ukydev/bridge-traffic-sim/internal/geometry"
	"github.com/ukydev/bridge-traffic-sim/internal/spatial"
)

// DefaultBuffer widens the neighbourhood queried around a moving vehicle.
const DefaultBuffer = 10.0

// Ref addresses an entry of the planner's arena: a vehicle or a static obstacle.
type Ref struct {
	Static bool
	Index  int
}

// Plan is the outcome of the compute phase for one vehicle.
type Plan struct {
	Pos     geometry.Point
	Heading float64
	Target  int
	Move    bool
	Blocked bool

	exitZone string
}

// Result counts what happened in one Step.
type Result struct {
	Moved   int
	Blocked int
}

// Planner resolves movement for all vehicles of a tick in two phases. Every
// plan is computed against the positions at the start of the tick, then the
// accepted plans are committed in index order.
type Planner struct {
	Buffer float64
	Zones  *ZoneSet

	grid     *spatial.Grid[Ref]
	moved    *spatial.Grid[int]
	vehicles []*Vehicle
	static   []collision.Collidable
	plans    []Plan
}

// NewPlanner builds a planner with a grid of the given cell size. zones may be nil.
func NewPlanner(cellSize float64, zones *ZoneSet) *Planner {
	return &Planner{
		Buffer: DefaultBuffer,
		Zones:  zones,
		grid:   spatial.NewGrid[Ref](cellSize),
		moved:  spatial.NewGrid[int](cellSize),
	}
}

// Index rebuilds the spatial index from scratch.
func (p *Planner) Index(vehicles []*Vehicle, static []collision.Collidable) {
	p.grid.Clear()
	p.vehicles = vehicles
	p.static = static
	for i, o := range static {
		if b, ok := collision.Bounds(o); ok {
			p.grid.Insert(Ref{Static: true, Index: i}, b)
		}
	}
	for i, v := range vehicles {
		if b, ok := collision.Bounds(v); ok {
			p.grid.Insert(Ref{Index: i}, b)
		}
	}
}

// Add appends a vehicle to the indexed set, e.g. right after it spawned.
func (p *Planner) Add(v *Vehicle) {
	p.vehicles = append(p.vehicles, v)
	if b, ok := collision.Bounds(v); ok {
		p.grid.Insert(Ref{Index: len(p.vehicles) - 1}, b)
	}
}

// Vehicles returns the indexed vehicles.
func (p *Planner) Vehicles() []*Vehicle { return p.vehicles }

// Occupied reports whether v overlaps any indexed vehicle.
func (p *Planner) Occupied(v *Vehicle) bool {
	b, ok := collision.Bounds(v)
	if !ok {
		return false
	}
	for _, ref := range p.grid.Query(b) {
		if ref.Static {
			continue
		}
		if collision.Collides(v, p.vehicles[ref.Index], collision.Query{}) {
			return true
		}
	}
	return false
}

// Plans returns the plans of the last Step, indexed like Vehicles.
func (p *Planner) Plans() []Plan { return p.plans }

// Step releases exit tokens that are no longer needed, computes a plan for
// every indexed vehicle and commits the accepted ones.
func (p *Planner) Step(dt float64) Result {
	p.releaseTokens()

	if cap(p.plans) < len(p.vehicles) {
		p.plans = make([]Plan, len(p.vehicles))
	}
	p.plans = p.plans[:len(p.vehicles)]
	for i, v := range p.vehicles {
		p.plans[i] = p.compute(i, v, dt)
	}
	return p.commit()
}

func (p *Planner) compute(i int, v *Vehicle, dt float64) Plan {
	pos, heading, target, ok := v.propose(dt)
	plan := Plan{Pos: pos, Heading: heading, Target: target}
	if !ok {
		return plan
	}

	body := v.Body(pos, heading)
	region, _ := geometry.CombineAll(append(body.Boxes, v.Hitboxes()...))
	region = region.Expand(p.Buffer)
	q := collision.Ahead(v.Filter(), heading)

	for _, ref := range p.grid.Query(region) {
		if p.blocks(i, v, ref, body, q) {
			plan.Blocked = true
			return plan
		}
	}

	if zone := p.leaving(v, body); zone != "" {
		if holder, held := p.Zones.Holder(zone); held && holder != v.ID {
			plan.Blocked = true
			return plan
		}
		plan.exitZone = zone
	}

	plan.Move = true
	return plan
}

func (p *Planner) blocks(i int, v *Vehicle, ref Ref, body *collision.Body, q collision.Query) bool {
	if ref.Static {
		return collision.Collides(body, p.static[ref.Index], q)
	}
	if ref.Index == i {
		return false
	}
	other := p.vehicles[ref.Index]
	if p.Zones.shareZone(v, other) {
		return false
	}
	return collision.Collides(body, other, q)
}

// leaving returns the zone v is about to leave without holding its token: the
// vehicle's centre is in the zone and the candidate front pokes out of it.
func (p *Planner) leaving(v *Vehicle, body *collision.Body) string {
	if p.Zones == nil || !v.Spec.CollisionFreeZones || v.exiting != "" {
		return ""
	}
	zone := p.Zones.Containing(v.pos)
	if zone == "" || p.Zones.Contains(zone, body.Front()) {
		return ""
	}
	return zone
}

func (p *Planner) commit() Result {
	var res Result
	p.moved.Clear()

	for i := range p.plans {
		plan := &p.plans[i]
		if !plan.Move {
			if plan.Blocked {
				res.Blocked++
			}
			continue
		}
		v := p.vehicles[i]
		body := v.Body(plan.Pos, plan.Heading)
		bounds, _ := geometry.CombineAll(body.Boxes)

		if p.conflicts(v, body, bounds, collision.Ahead(v.Filter(), plan.Heading)) ||
			(plan.exitZone != "" && !p.Zones.Acquire(plan.exitZone, v.ID)) {
			log.WithFields(log.Fields{"vehicle": v.ID, "kind": v.Kind}).Debug("Plan rejected at commit")
			plan.Move = false
			plan.Blocked = true
			res.Blocked++
			continue
		}

		v.apply(plan.Pos, plan.Heading, plan.Target)
		if plan.exitZone != "" {
			v.exiting = plan.exitZone
		}
		p.moved.Insert(i, bounds)
		res.Moved++
	}
	return res
}

// conflicts checks a plan against the plans already committed this tick.
func (p *Planner) conflicts(v *Vehicle, body *collision.Body, bounds geometry.Hitbox, q collision.Query) bool {
	for _, j := range p.moved.Query(bounds) {
		other := p.vehicles[j]
		if p.Zones.shareZone(v, other) {
			continue
		}
		if collision.Collides(body, other, q) {
			return true
		}
	}
	return false
}

// releaseTokens drops the exit token of every vehicle that is clear of its zone
// and of any obstacle.
func (p *Planner) releaseTokens() {
	if p.Zones == nil {
		return
	}
	for i, v := range p.vehicles {
		if v.exiting == "" || p.Zones.Overlaps(v.exiting, v.Hitboxes()) {
			continue
		}
		if p.touchesAnything(i, v) {
			continue
		}
		p.Zones.Release(v.exiting, v.ID)
		v.exiting = ""
	}
}

func (p *Planner) touchesAnything(i int, v *Vehicle) bool {
	b, ok := collision.Bounds(v)
	if !ok {
		return false
	}
	q := collision.Query{Filter: v.Filter()}
	for _, ref := range p.grid.Query(b) {
		if !ref.Static && ref.Index == i {
			continue
		}
		var other collision.Collidable
		if ref.Static {
			other = p.static[ref.Index]
		} else {
			other = p.vehicles[ref.Index]
		}
		if collision.Collides(v, other, q) {
			return true
		}
	}
	return false
}

// Retire drops finished vehicles, releasing any exit token they still hold.
func (p *Planner) Retire(vehicles []*Vehicle) (active, finished []*Vehicle) {
	active = vehicles[:0]
	for _, v := range vehicles {
		if v.HasFinished() {
			if v.exiting != "" && p.Zones != nil {
				p.Zones.Release(v.exiting, v.ID)
			}
			finished = append(finished, v)
			continue
		}
		active = append(active, v)
	}
	return active, finished
}
