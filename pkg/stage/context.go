// Package stage owns the avatars on screen, the shared interaction state
// and the per-frame update loop.
package stage

import (
	"context"
	"errors"
	"slices"
	"sync"

	"go.uber.org/zap"

	"github.com/taigrr/podium/pkg/avatar"
	"github.com/taigrr/podium/pkg/interact"
	"github.com/taigrr/podium/pkg/scene"
)

// Renderer draws the roots of every loaded avatar.
type Renderer interface {
	Render(roots []*scene.Node) error
}

// Context is the scene: loaded avatars plus the interaction controller that
// spins them. Avatars join from loader goroutines, so the list is guarded;
// the controller belongs to the frame loop goroutine.
type Context struct {
	mu      sync.Mutex
	avatars []*avatar.Avatar

	input     *interact.Controller
	inputOpts []interact.Option
	renderer  Renderer
	log       *zap.Logger
}

// Option configures a Context.
type Option func(*Context)

// WithRenderer sets the renderer Tick hands off to.
func WithRenderer(r Renderer) Option {
	return func(c *Context) {
		c.renderer = r
	}
}

// WithLogger sets the logger.
func WithLogger(log *zap.Logger) Option {
	return func(c *Context) {
		c.log = log
	}
}

// WithInteraction tunes the stage's interaction controller.
func WithInteraction(opts ...interact.Option) Option {
	return func(c *Context) {
		c.inputOpts = append(c.inputOpts, opts...)
	}
}

// New creates an empty stage.
func New(opts ...Option) *Context {
	c := &Context{log: zap.NewNop()}
	for _, opt := range opts {
		opt(c)
	}
	c.input = interact.New(c, c.inputOpts...)
	return c
}

// Input returns the interaction controller bound to this stage.
func (c *Context) Input() *interact.Controller {
	return c.input
}

// Add puts a on stage. Adding an avatar twice is a no-op.
func (c *Context) Add(a *avatar.Avatar) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if slices.Contains(c.avatars, a) {
		return
	}
	c.avatars = append(c.avatars, a)
}

// Remove takes a off stage and reports whether it was there.
func (c *Context) Remove(a *avatar.Avatar) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := slices.Index(c.avatars, a)
	if i < 0 {
		return false
	}
	c.avatars = slices.Delete(c.avatars, i, i+1)
	return true
}

// Avatars returns a snapshot of the avatars on stage, in insertion order.
func (c *Context) Avatars() []*avatar.Avatar {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.avatars)
}

// RotateAll adds delta yaw to every loaded avatar.
func (c *Context) RotateAll(delta float64) {
	for _, a := range c.Avatars() {
		a.Rotate(delta)
	}
}

// Tick runs one frame: animations advance by delta seconds, the idle
// rotation is applied and decayed, and the renderer draws the result.
func (c *Context) Tick(delta float64) error {
	avatars := c.Avatars()
	for _, a := range avatars {
		a.Update(delta)
	}

	c.input.Step()

	if c.renderer == nil {
		return nil
	}
	roots := make([]*scene.Node, 0, len(avatars))
	for _, a := range avatars {
		if root := a.Root(); root != nil {
			root.UpdateWorld()
			roots = append(roots, root)
		}
	}
	return c.renderer.Render(roots)
}

// stagingObserver adds avatars to the stage as soon as their load succeeds
// and forwards every signal.
type stagingObserver struct {
	stage *Context
	next  avatar.Observer
}

func (o stagingObserver) LoadStarted(a *avatar.Avatar) {
	o.next.LoadStarted(a)
}

func (o stagingObserver) LoadProgress(a *avatar.Avatar, loaded, total int64) {
	o.next.LoadProgress(a, loaded, total)
}

func (o stagingObserver) LoadDone(a *avatar.Avatar) {
	o.stage.Add(a)
	o.stage.log.Info("avatar on stage", zap.String("model", a.Spec().ModelPath))
	o.next.LoadDone(a)
}

func (o stagingObserver) LoadFailed(a *avatar.Avatar, err error) {
	o.stage.log.Error("avatar failed to load", zap.String("model", a.Spec().ModelPath), zap.Error(err))
	o.next.LoadFailed(a, err)
}

// LoadAvatars loads avatars concurrently, at most limit at a time, and puts
// each on stage as it succeeds. It returns once every load has settled,
// joining the errors of the avatars that failed.
func (c *Context) LoadAvatars(ctx context.Context, avatars []*avatar.Avatar, obs avatar.Observer, limit int) error {
	if obs == nil {
		obs = avatar.NopObserver{}
	}
	errs := avatar.LoadAll(ctx, avatars, stagingObserver{stage: c, next: obs}, limit)
	return errors.Join(errs...)
}

// LoadPair loads two avatars side by side.
func (c *Context) LoadPair(ctx context.Context, a, b *avatar.Avatar, obs avatar.Observer) error {
	return c.LoadAvatars(ctx, []*avatar.Avatar{a, b}, obs, 0)
}
