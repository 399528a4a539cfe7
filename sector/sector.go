package sector

import (
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/gridrider/body"
	"github.com/aukilabs/gridrider/field"
	"github.com/aukilabs/gridrider/lattice"
	"github.com/aukilabs/gridrider/models"
	"github.com/aukilabs/gridrider/modules"
	"github.com/aukilabs/gridrider/spatial"
	"github.com/go-gl/mathgl/mgl64"
)

// Stats summarizes a tick.
type Stats struct {
	Tick        uint64        `json:"tick"`
	Nodes       int           `json:"nodes"`
	Connections int           `json:"connections"`
	Bodies      int           `json:"bodies"`
	Died        int           `json:"died"`
	Subdivided  int           `json:"subdivided"`
	Collapsed   int           `json:"collapsed"`
	Pruned      int           `json:"pruned"`
	Rebased     int           `json:"rebased"`
	Collisions  int           `json:"collisions"`
	Duration    time.Duration `json:"duration"`
}

// Sector is a lattice overlaid with a vector field, the static objects
// standing in it and the bodies riding it.
//
// A Sector is not safe for concurrent use. Sessions serialize access to it.
type Sector struct {
	name    string
	config  Config
	index   *spatial.Grid[models.Handle]
	lattice *lattice.Lattice
	field   *field.Field
	objects []*modules.Object
	bodies  models.Arena[*body.Body]
	events  chan<- Event
	tick    uint64
}

// New builds the sector described by info. Only configuration errors abort
// the construction.
func New(info Info) (*Sector, error) {
	c := info.Config
	if err := c.Validate(); err != nil {
		return nil, err
	}

	layout, ok := spatial.LayoutFor(c.Lattice.Dimensions)
	if !ok {
		return nil, errors.New("no spatial layout for dimensions").
			WithType(models.ErrTypeInvalidConfig).
			WithTag("dimensions", c.Lattice.Dimensions)
	}

	index, err := spatial.NewGrid[models.Handle](layout, c.TotalSideLength(), c.BucketSize())
	if err != nil {
		return nil, err
	}

	l, err := lattice.Generate(c.Lattice, index)
	if err != nil {
		return nil, err
	}

	s := &Sector{
		name:    info.Name,
		config:  c,
		index:   index,
		lattice: l,
		field:   field.New(info.Sources...),
	}

	for _, oi := range info.Objects {
		o, err := modules.NewObject(oi)
		if err != nil {
			return nil, err
		}
		s.objects = append(s.objects, o)
	}

	for _, pos := range info.Bodies {
		if _, err := s.AddBody(pos); err != nil {
			return nil, err
		}
	}

	logs.WithTag("sector", s.name).
		WithTag("nodes", l.NodeCount()).
		WithTag("connections", l.ConnectionCount()).
		WithTag("sources", s.field.Len()).
		WithTag("objects", len(s.objects)).
		Debug("sector created")

	return s, nil
}

func (s *Sector) Name() string {
	return s.name
}

func (s *Sector) Config() Config {
	return s.config
}

func (s *Sector) Tick() uint64 {
	return s.tick
}

func (s *Sector) Lattice() *lattice.Lattice {
	return s.lattice
}

func (s *Sector) Field() *field.Field {
	return s.field
}

func (s *Sector) Objects() []*modules.Object {
	return s.objects
}

// Advance moves the simulation forward by dt seconds. A non positive dt
// skips integration but still runs the structural phases.
func (s *Sector) Advance(dt float64) Stats {
	start := time.Now()
	s.tick++

	stats := Stats{Tick: s.tick}

	s.lattice.ApplyDrift(s.nodeDrift)
	s.lattice.AccumulateForces(dt)
	s.lattice.Integrate(dt)

	if !s.config.DisableNodeDeath {
		died := s.lattice.MarkDead(s.field.Kills)
		for _, h := range died {
			pos, _ := s.lattice.Position(h)
			s.emit(Event{Kind: EventNodeDied, Node: h, Position: pos})
		}
		stats.Died = len(died)
	}

	s.lattice.UpdateIndex()

	if !s.config.DisableSubdivision {
		subdivisions := s.lattice.Subdivide()
		for _, sub := range subdivisions {
			pos, _ := s.lattice.Position(sub.Node)
			s.emit(Event{Kind: EventEdgeSubdivided, Node: sub.Node, Position: pos})
		}
		stats.Subdivided = len(subdivisions)
	}

	if !s.config.DisableCollapse {
		collapses := s.lattice.CollapseShortEdges()
		for _, c := range collapses {
			pos, _ := s.lattice.Position(c.Kept)
			s.emit(Event{Kind: EventEdgeCollapsed, Node: c.Kept, Position: pos})
		}
		stats.Collapsed = len(collapses)
	}

	stats.Pruned = len(s.lattice.Prune())

	// Bodies riding a pruned node are reanchored before they integrate.
	stats.Rebased = s.rebaseBodies(func(b *body.Body) bool {
		return !b.AnchorsAlive(s.lattice)
	})

	starts := s.moveBodies(dt)

	if !s.config.DisableBodyCollisions && dt > 0 {
		stats.Collisions = s.collideBodies(starts, dt)
	}

	stats.Rebased += s.rebaseBodies(func(b *body.Body) bool {
		return b.ShouldRebase(s.lattice)
	})

	stats.Nodes = s.lattice.NodeCount()
	stats.Connections = s.lattice.ConnectionCount()
	stats.Bodies = s.bodies.Len()
	stats.Duration = time.Since(start)

	instrumentTick(s.name, stats.Duration, stats)
	return stats
}

func (s *Sector) nodeDrift(h models.Handle, pos mgl64.Vec3) mgl64.Vec3 {
	v := s.field.VelocityAt(pos)
	for _, o := range s.objects {
		v = v.Add(o.AffectNode(pos))
	}
	return v
}

// moveBodies applies the field, the object modules and the pending intents
// to every body and integrates them. It returns where each body started.
func (s *Sector) moveBodies(dt float64) map[models.Handle]mgl64.Vec3 {
	starts := make(map[models.Handle]mgl64.Vec3, s.bodies.Len())

	s.bodies.Each(func(h models.Handle, bp **body.Body) bool {
		b := *bp
		starts[h] = b.Position()
		wasDocked := b.Docked()

		if !wasDocked {
			b.AddForce(s.field.VelocityAt(b.Position()).Mul(b.Config().FieldInfluence))
		}

		for _, o := range s.objects {
			o.AffectBody(b, dt)
		}

		b.Integrate(dt, s.lattice)

		switch {
		case !wasDocked && b.Docked():
			s.emit(Event{Kind: EventBodyDocked, Body: h, Position: b.Position()})
		case wasDocked && !b.Docked():
			s.emit(Event{Kind: EventBodyUndocked, Body: h, Position: b.Position()})
		}
		return true
	})

	return starts
}

// collideBodies resolves the collisions of the bodies with the field
// sources, the objects and the other bodies. Bodies are handled in arena
// order, each one against the others' already resolved positions.
func (s *Sector) collideBodies(starts map[models.Handle]mgl64.Vec3, dt float64) int {
	sources := s.field.Sources()
	count := 0

	s.bodies.Each(func(h models.Handle, bp **body.Body) bool {
		b := *bp
		if b.Docked() {
			return true
		}

		start := starts[h]
		size := b.Config().Size
		collided := false

		for _, src := range sources {
			if src.Radius <= 0 {
				continue
			}
			if b.CollideCircle(start, src.Position, src.Radius+size, dt) {
				collided = true
			}
		}

		for _, o := range s.objects {
			if o.Size <= 0 {
				continue
			}
			if b.CollideCircle(start, o.Position, o.Size+size, dt) {
				collided = true
			}
		}

		s.bodies.Each(func(other models.Handle, op **body.Body) bool {
			if other == h {
				return true
			}

			o := *op
			if b.CollideCircle(start, o.Position(), o.Config().Size+size, dt) {
				collided = true
			}
			return true
		})

		if collided {
			count++
			s.emit(Event{Kind: EventBodyCollided, Body: h, Position: b.Position()})
		}
		return true
	})

	return count
}

// rebaseBodies anchors the bodies selected by needed to their nearest
// nodes. Bodies without enough candidates keep their anchors and retry next
// tick.
func (s *Sector) rebaseBodies(needed func(*body.Body) bool) int {
	count := 0

	s.bodies.Each(func(h models.Handle, bp **body.Body) bool {
		b := *bp
		if !needed(b) {
			return true
		}

		anchors := s.index.KNearest(b.Position(), b.AnchorCount())
		if err := b.Rebase(anchors, s.lattice); err != nil {
			logs.WithTag("sector", s.name).
				WithTag("body", h).
				Debug(err)
			return true
		}

		count++
		return true
	})

	return count
}

// AddBody seeds a body at pos and anchors it to the lattice.
func (s *Sector) AddBody(pos mgl64.Vec3) (models.Handle, error) {
	if s.index.Len() == 0 {
		err := errors.New("seeding a body in a sector without indexed nodes").
			WithType(models.ErrTypeInvariantViolation).
			WithTag("sector", s.name).
			WithTag("position", pos)
		if s.config.strict() {
			panic(err)
		}

		logs.Warn(err)
		return models.Handle{}, err
	}

	b := body.New(s.config.Body, s.config.Lattice.Dimensions, pos)
	if err := b.Rebase(s.index.KNearest(pos, b.AnchorCount()), s.lattice); err != nil {
		logs.WithTag("sector", s.name).
			WithTag("position", pos).
			Debug(err)
	}

	h := s.bodies.Add(b)
	s.emit(Event{Kind: EventBodyAdded, Body: h, Position: pos})
	return h, nil
}

func (s *Sector) RemoveBody(h models.Handle) error {
	b, err := s.body(h)
	if err != nil {
		return err
	}

	s.emit(Event{Kind: EventBodyRemoved, Body: h, Position: b.Position()})
	s.bodies.Remove(h)
	return nil
}

func (s *Sector) Body(h models.Handle) (body.State, bool) {
	b, err := s.body(h)
	if err != nil {
		return body.State{}, false
	}
	return b.State(), true
}

func (s *Sector) BodyCount() int {
	return s.bodies.Len()
}

// Rotate turns a body during the next tick.
func (s *Sector) Rotate(h models.Handle, dir float64) error {
	b, err := s.body(h)
	if err != nil {
		return err
	}

	b.Rotate(dir)
	return nil
}

// Thrust accelerates a body along its heading during the next tick.
func (s *Sector) Thrust(h models.Handle, dir float64) error {
	b, err := s.body(h)
	if err != nil {
		return err
	}

	b.Thrust(dir)
	return nil
}

// Impulse boosts a body forward, or undocks it.
func (s *Sector) Impulse(h models.Handle) error {
	b, err := s.body(h)
	if err != nil {
		return err
	}

	b.Impulse()
	return nil
}

func (s *Sector) body(h models.Handle) (*body.Body, error) {
	bp, ok := s.bodies.Get(h)
	if !ok {
		return nil, errors.New("unknown body").
			WithType(models.ErrTypeStaleReference).
			WithTag("sector", s.name).
			WithTag("body", h)
	}
	return *bp, nil
}

func (s *Sector) AddSource(src field.Source) models.Handle {
	return s.field.Add(src)
}

func (s *Sector) RemoveSource(h models.Handle) error {
	if !s.field.Remove(h) {
		return errors.New("unknown field source").
			WithType(models.ErrTypeStaleReference).
			WithTag("sector", s.name).
			WithTag("source", h)
	}
	return nil
}

// KNearest returns the k free nodes closest to p.
func (s *Sector) KNearest(p mgl64.Vec3, k int) []models.Handle {
	return s.index.KNearest(p, k)
}

func (s *Sector) VelocityAt(p mgl64.Vec3) mgl64.Vec3 {
	return s.field.VelocityAt(p)
}

func (s *Sector) IndexDebugInfo() spatial.DebugInfo {
	return s.index.GetDebugInfo()
}

// CheckInvariants verifies the structural invariants of the sector: no
// connection references a pruned node or connects a node to itself, every
// indexed node is a live free node and every anchor of a rebased body
// exists.
func (s *Sector) CheckInvariants() error {
	for _, c := range s.lattice.Connections() {
		if c.A == c.B {
			return invariantError("self connection", "node", c.A)
		}

		for _, h := range []models.Handle{c.A, c.B} {
			if _, ok := s.lattice.Node(h); !ok {
				return invariantError("connection references a pruned node", "node", h)
			}
		}
	}

	indexed := 0
	var err error
	s.lattice.Each(func(h models.Handle, n lattice.Node) bool {
		switch {
		case n.Pinned && s.index.Contains(h):
			err = invariantError("pinned node is indexed", "node", h)
		case !n.Pinned && n.Alive && !s.index.Contains(h):
			err = invariantError("free node is not indexed", "node", h)
		}

		if s.index.Contains(h) {
			indexed++
		}
		return err == nil
	})
	if err != nil {
		return err
	}

	if indexed != s.index.Len() {
		return invariantError("index tracks pruned nodes", "indexed", s.index.Len())
	}

	s.bodies.Each(func(h models.Handle, bp **body.Body) bool {
		b := *bp
		anchors := b.Anchors()
		if len(anchors) == 0 {
			return true
		}

		if len(anchors) != b.AnchorCount() {
			err = invariantError("body has a partial anchor set", "body", h)
			return false
		}

		if b.ShouldRebase(s.lattice) {
			return true
		}

		for _, a := range anchors {
			if _, ok := s.lattice.Node(a); !ok {
				err = invariantError("body is anchored to a pruned node", "node", a)
				return false
			}
		}
		return true
	})

	return err
}

func invariantError(msg, key string, v any) error {
	return errors.New(msg).
		WithType(models.ErrTypeInvariantViolation).
		WithTag(key, v)
}
