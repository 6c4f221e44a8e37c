// Package interact turns pointer and touch drags into a yaw velocity shared
// by every avatar on stage.
package interact

const (
	// Sensitivity converts horizontal pointer travel into radians.
	Sensitivity = 0.005
	// Damping is the per-tick velocity decay factor while idle.
	Damping = 0.95
)

// Rotator applies a yaw delta to every loaded avatar.
type Rotator interface {
	RotateAll(delta float64)
}

// Point is a pointer or touch position.
type Point struct {
	X, Y float64
}

// Controller holds the drag state. It is not safe for concurrent use; the
// event loop that feeds it input also calls Step.
type Controller struct {
	target      Rotator
	sensitivity float64
	damping     float64

	dragging bool
	last     Point
	velocity float64
}

// Option configures a Controller.
type Option func(*Controller)

// WithSensitivity overrides the radians-per-unit drag factor.
func WithSensitivity(s float64) Option {
	return func(c *Controller) {
		c.sensitivity = s
	}
}

// WithDamping overrides the idle decay factor.
func WithDamping(d float64) Option {
	return func(c *Controller) {
		c.damping = d
	}
}

// New creates a controller rotating target.
func New(target Rotator, opts ...Option) *Controller {
	c := &Controller{
		target:      target,
		sensitivity: Sensitivity,
		damping:     Damping,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Dragging reports whether a drag is in progress.
func (c *Controller) Dragging() bool {
	return c.dragging
}

// Velocity returns the current yaw velocity in radians per tick.
func (c *Controller) Velocity() float64 {
	return c.velocity
}

// SetVelocity replaces the yaw velocity, e.g. for a keyboard nudge.
func (c *Controller) SetVelocity(v float64) {
	c.velocity = v
}

// PointerDown starts a drag at p.
func (c *Controller) PointerDown(p Point) {
	c.dragging = true
	c.last = p
}

// PointerMove rotates by the horizontal travel since the last position.
func (c *Controller) PointerMove(p Point) {
	if !c.dragging {
		return
	}
	c.velocity = (p.X - c.last.X) * c.sensitivity
	c.target.RotateAll(c.velocity)
	c.last = p
}

// PointerUp ends the drag. The velocity carries into the idle decay.
func (c *Controller) PointerUp() {
	c.dragging = false
}

// PointerLeave ends the drag like PointerUp.
func (c *Controller) PointerLeave() {
	c.dragging = false
}

// TouchStart starts a drag for single-finger touches only.
func (c *Controller) TouchStart(touches []Point) {
	if len(touches) != 1 {
		return
	}
	c.PointerDown(touches[0])
}

// TouchMove follows a single-finger drag. Multi-touch moves are ignored.
func (c *Controller) TouchMove(touches []Point) {
	if len(touches) != 1 {
		return
	}
	c.PointerMove(touches[0])
}

// TouchEnd ends the drag.
func (c *Controller) TouchEnd() {
	c.dragging = false
}

// Step runs the idle phase of one frame: while not dragging, the velocity
// is applied and then decayed.
func (c *Controller) Step() {
	if c.dragging {
		return
	}
	c.target.RotateAll(c.velocity)
	c.velocity *= c.damping
}
