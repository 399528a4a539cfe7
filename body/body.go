package body

import (
	"math"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/gridrider/models"
	"github.com/aukilabs/gridrider/spatial"
	"github.com/go-gl/mathgl/mgl64"
)

// Lattice is the view of the lattice a body needs to ride it.
type Lattice interface {
	Centroid(handles []models.Handle) (mgl64.Vec3, int)
	IsAlive(h models.Handle) bool
}

type Config struct {
	Size              float64 `json:"size"               yaml:"size"`
	Thrust            float64 `json:"thrust"             yaml:"thrust"`
	RotateSpeed       float64 `json:"rotate_speed"       yaml:"rotate_speed"`
	ImpulseMultiplier float64 `json:"impulse_multiplier" yaml:"impulse_multiplier"`

	// RidePull is the rate at which a body is pulled back to the position
	// implied by its anchors.
	RidePull float64 `json:"ride_pull" yaml:"ride_pull"`

	Bounciness float64 `json:"bounciness" yaml:"bounciness"`

	// StopSpeedSq is the squared speed under which a collision stops the
	// body instead of bouncing it.
	StopSpeedSq float64 `json:"stop_speed_sq" yaml:"stop_speed_sq"`

	// FieldInfluence scales the field velocity applied as a force.
	FieldInfluence float64 `json:"field_influence" yaml:"field_influence"`
}

func DefaultConfig() Config {
	return Config{
		Size:              0.15,
		Thrust:            2,
		RotateSpeed:       2,
		ImpulseMultiplier: 2,
		RidePull:          1,
		Bounciness:        0.5,
		StopSpeedSq:       0.07,
		FieldInfluence:    1,
	}
}

func (c Config) Validate() error {
	switch {
	case c.Size <= 0:
		return errors.New("body size must be positive").
			WithType(models.ErrTypeInvalidConfig).
			WithTag("size", c.Size)

	case c.RidePull < 0:
		return errors.New("body ride pull must not be negative").
			WithType(models.ErrTypeInvalidConfig).
			WithTag("ride_pull", c.RidePull)

	case c.Bounciness < 0:
		return errors.New("body bounciness must not be negative").
			WithType(models.ErrTypeInvalidConfig).
			WithTag("bounciness", c.Bounciness)

	case c.StopSpeedSq < 0:
		return errors.New("body stop speed must not be negative").
			WithType(models.ErrTypeInvalidConfig).
			WithTag("stop_speed_sq", c.StopSpeedSq)
	}

	return nil
}

// AnchorCount returns the number of anchors a body needs: a triangle in 2D
// and a tetrahedron in 3D.
func AnchorCount(dimensions int) int {
	if dimensions == 3 {
		return 4
	}
	return 3
}

// Body rides the lattice: its position is expressed as an offset from the
// centroid of its anchor nodes and is dragged along as they move.
//
// A Body is not safe for concurrent use.
type Body struct {
	config      Config
	anchorCount int

	position mgl64.Vec3
	previous mgl64.Vec3
	velocity mgl64.Vec3
	accel    mgl64.Vec3
	heading  float64

	anchors     []models.Handle
	offset      mgl64.Vec3
	needsRebase bool

	rotateInput float64
	impulse     bool

	docked       bool
	dockPosition mgl64.Vec3
	undockTimer  float64
}

// New creates a body at rest at pos. The body needs to be rebased before it
// can ride the lattice.
func New(c Config, dimensions int, pos mgl64.Vec3) *Body {
	return &Body{
		config:      c,
		anchorCount: AnchorCount(dimensions),
		position:    pos,
		previous:    pos,
		needsRebase: true,
	}
}

func (b *Body) Config() Config {
	return b.config
}

func (b *Body) Position() mgl64.Vec3 {
	return b.position
}

// Velocity is the displacement of the last integration divided by its
// elapsed time.
func (b *Body) Velocity() mgl64.Vec3 {
	return b.velocity
}

func (b *Body) Heading() float64 {
	return b.heading
}

// Forward returns the unit vector the body is facing.
func (b *Body) Forward() mgl64.Vec3 {
	return mgl64.Vec3{-math.Sin(b.heading), math.Cos(b.heading), 0}
}

func (b *Body) Anchors() []models.Handle {
	return append([]models.Handle(nil), b.anchors...)
}

func (b *Body) Offset() mgl64.Vec3 {
	return b.offset
}

func (b *Body) AnchorCount() int {
	return b.anchorCount
}

// Rebase anchors the body to the given nodes. It fails without changing the
// current anchors when fewer than AnchorCount nodes are given.
func (b *Body) Rebase(anchors []models.Handle, l Lattice) error {
	if len(anchors) < b.anchorCount {
		return errors.New("not enough anchors to rebase").
			WithType(models.ErrTypeInsufficientCandidates).
			WithTag("anchors", len(anchors)).
			WithTag("required", b.anchorCount)
	}

	anchors = anchors[:b.anchorCount]
	centroid, count := l.Centroid(anchors)
	if count != len(anchors) {
		return errors.New("rebasing on pruned anchors").
			WithType(models.ErrTypeStaleReference).
			WithTag("anchors", len(anchors)).
			WithTag("found", count)
	}

	b.anchors = append(b.anchors[:0], anchors...)
	b.offset = b.position.Sub(centroid)
	b.needsRebase = false
	return nil
}

// GridPosition returns the position implied by the anchors. It reports false
// unless every anchor is alive, since the offset only holds for the full
// anchor set.
func (b *Body) GridPosition(l Lattice) (mgl64.Vec3, bool) {
	if len(b.anchors) == 0 || !b.AnchorsAlive(l) {
		return mgl64.Vec3{}, false
	}

	centroid, count := l.Centroid(b.anchors)
	if count != len(b.anchors) {
		return mgl64.Vec3{}, false
	}
	return centroid.Add(b.offset), true
}

// AnchorsAlive reports whether none of the anchors died.
func (b *Body) AnchorsAlive(l Lattice) bool {
	for _, a := range b.anchors {
		if !l.IsAlive(a) {
			return false
		}
	}
	return true
}

// ShouldRebase reports whether the anchors need to be recomputed: after a
// collision, while moving, or once an anchor died.
func (b *Body) ShouldRebase(l Lattice) bool {
	return b.needsRebase || b.velocity.LenSqr() > 0 || !b.AnchorsAlive(l)
}

// Rotate turns the body during the next integration. dir is clamped to
// [-1, 1].
func (b *Body) Rotate(dir float64) {
	if b.docked {
		return
	}
	b.rotateInput = mgl64.Clamp(b.rotateInput+dir, -1, 1)
}

// Thrust accelerates the body along its heading. dir is clamped to [-1, 1].
func (b *Body) Thrust(dir float64) {
	if b.docked {
		return
	}
	b.AddForce(b.Forward().Mul(b.config.Thrust * mgl64.Clamp(dir, -1, 1)))
}

// Impulse is a boosted forward thrust. When docked it requests undocking
// instead.
func (b *Body) Impulse() {
	if b.docked {
		b.impulse = true
		return
	}
	b.AddForce(b.Forward().Mul(b.config.Thrust * b.config.ImpulseMultiplier))
}

func (b *Body) AddForce(f mgl64.Vec3) {
	b.accel = b.accel.Add(f)
}

// Integrate moves the body: it is first pulled towards its grid position,
// then advanced with a Verlet step. A non positive dt only drops pending
// inputs.
func (b *Body) Integrate(dt float64, l Lattice) {
	defer b.clearInputs()

	if dt <= 0 {
		return
	}

	if b.undockTimer > 0 {
		b.undockTimer = math.Max(b.undockTimer-dt, 0)
	}

	if b.docked {
		b.position = b.dockPosition
		b.previous = b.dockPosition
		b.velocity = mgl64.Vec3{}
		return
	}

	b.heading += b.rotateInput * b.config.RotateSpeed * dt

	if grid, ok := b.GridPosition(l); ok {
		pull := math.Min(dt*b.config.RidePull, 1)
		b.position = b.position.Add(grid.Sub(b.position).Mul(pull))
	}

	current := b.position
	b.position = current.Mul(2).Sub(b.previous).Add(b.accel.Mul(dt * dt))
	b.previous = current
	b.velocity = b.position.Sub(current).Mul(1 / dt)
}

func (b *Body) clearInputs() {
	b.accel = mgl64.Vec3{}
	b.rotateInput = 0
	b.impulse = false
}

// Collide snaps the body to a collision point. Slow bodies stop, the others
// bounce off normal. Either way the body gets rebased.
func (b *Body) Collide(at, normal mgl64.Vec3, dt float64) {
	b.position = at
	b.needsRebase = true

	if b.velocity.LenSqr() < b.config.StopSpeedSq || dt <= 0 {
		b.velocity = mgl64.Vec3{}
		b.previous = at
		return
	}

	b.velocity = spatial.Reflect(b.velocity, normal, b.config.Bounciness)
	b.previous = at.Sub(b.velocity.Mul(dt))
}

// CollideCircle resolves a collision with a circular obstacle, given where
// the body was before its last integration. It reports whether the body
// ended inside the obstacle or went through it during the step.
func (b *Body) CollideCircle(start, center mgl64.Vec3, radius, dt float64) bool {
	rSq := radius * radius
	endsInside := b.position.Sub(center).LenSqr() < rSq
	crossed := start.Sub(center).LenSqr() >= rSq &&
		spatial.ClosestPointOnSegment(start, b.position, center).Sub(center).LenSqr() < rSq
	if !endsInside && !crossed {
		return false
	}

	hit, ok := spatial.SegmentCircleIntersection(start, b.position, center, radius)
	if !ok {
		return false
	}

	normal, ok := spatial.Normalize(hit.Sub(center))
	if !ok {
		normal = mgl64.Vec3{0, 1, 0}
	}

	b.Collide(hit, normal, dt)
	return true
}

// Dock holds the body at pos until it undocks.
func (b *Body) Dock(pos mgl64.Vec3) {
	b.docked = true
	b.dockPosition = pos
	b.position = pos
	b.previous = pos
	b.velocity = mgl64.Vec3{}
	b.needsRebase = true
}

func (b *Body) Docked() bool {
	return b.docked
}

// WantsUndock reports whether an impulse was requested while docked.
func (b *Body) WantsUndock() bool {
	return b.docked && b.impulse
}

// Undock releases the body with the given velocity. It cannot be docked
// again for cooldown seconds.
func (b *Body) Undock(push mgl64.Vec3, cooldown, dt float64) {
	b.docked = false
	b.undockTimer = cooldown
	b.velocity = push
	if dt > 0 {
		b.previous = b.position.Sub(push.Mul(dt))
	}
	b.needsRebase = true
}

// Undocking reports whether the body recently undocked and cannot dock yet.
func (b *Body) Undocking() bool {
	return b.undockTimer > 0
}

// State is a read-only copy of a body.
type State struct {
	Position mgl64.Vec3      `json:"position" msgpack:"position"`
	Velocity mgl64.Vec3      `json:"velocity" msgpack:"velocity"`
	Heading  float64         `json:"heading"  msgpack:"heading"`
	Size     float64         `json:"size"     msgpack:"size"`
	Anchors  []models.Handle `json:"anchors"  msgpack:"anchors"`
	Docked   bool            `json:"docked"   msgpack:"docked"`
}

func (b *Body) State() State {
	return State{
		Position: b.position,
		Velocity: b.velocity,
		Heading:  b.heading,
		Size:     b.config.Size,
		Anchors:  b.Anchors(),
		Docked:   b.docked,
	}
}
