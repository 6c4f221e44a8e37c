package avatar

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/taigrr/podium/pkg/math3d"
	"github.com/taigrr/podium/pkg/models"
	"github.com/taigrr/podium/pkg/scene"
)

// ErrNotLoaded is returned by operations that need a loaded model.
var ErrNotLoaded = errors.New("avatar: not loaded")

// Avatar is one loadable, animated character. Load runs on its own
// goroutine while the frame loop calls Update and Rotate, so all state is
// guarded by mu.
type Avatar struct {
	mu sync.Mutex

	spec     AssetSpec
	loader   AssetLoader
	resolver *Resolver
	log      *zap.Logger

	root     *scene.Node
	norm     NormalizedTransform
	loaded   bool
	scale    float64 // Live scale multiplier
	yOffset  float64 // Live vertical offset
	rotation float64 // Yaw in radians
	res      Resolution
}

// Option configures an Avatar.
type Option func(*Avatar)

// WithLoader sets the loader used for the model and external animation.
func WithLoader(l AssetLoader) Option {
	return func(a *Avatar) {
		a.loader = l
	}
}

// WithLogger sets the avatar's logger.
func WithLogger(log *zap.Logger) Option {
	return func(a *Avatar) {
		a.log = log
	}
}

// New creates an unloaded avatar for spec.
func New(spec AssetSpec, opts ...Option) *Avatar {
	a := &Avatar{
		spec:    spec,
		scale:   coerceScale(spec.ScaleMultiplier),
		yOffset: coerceOffset(spec.YOffsetMultiplier),
		log:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.loader == nil {
		a.loader = models.NewLoader(a.log)
	}
	a.log = a.log.With(zap.String("avatar", spec.ModelPath))
	a.resolver = &Resolver{Loader: a.loader, Log: a.log}
	return a
}

// Spec returns the avatar's construction parameters.
func (a *Avatar) Spec() AssetSpec {
	return a.spec
}

// Load fetches the model, normalizes it and resolves its animation. Only a
// failure to load the model itself is returned.
func (a *Avatar) Load(ctx context.Context) error {
	return a.LoadWithProgress(ctx, nil)
}

// LoadWithProgress is Load with byte progress for the model download.
func (a *Avatar) LoadWithProgress(ctx context.Context, progress models.ProgressFunc) error {
	start := time.Now()
	asset, err := a.loader.Load(ctx, a.spec.ModelPath, progress)
	if err != nil {
		a.log.Error("model load failed", zap.Error(err))
		return fmt.Errorf("load avatar %s: %w", a.spec.ModelPath, err)
	}
	root := asset.Scene

	prepareMeshes(root)

	// Pending live values set before load win over the spec
	a.mu.Lock()
	spec := a.spec
	spec.ScaleMultiplier, spec.YOffsetMultiplier = a.scale, a.yOffset
	a.mu.Unlock()

	norm := Normalize(root, spec)
	res := a.resolver.Resolve(ctx, root, asset.Clips, a.spec.AnimPath)

	a.mu.Lock()
	defer a.mu.Unlock()
	a.root = root
	a.norm = norm
	a.res = res
	a.loaded = true
	// Values may have changed while the animation resolved
	a.applyLocked()

	a.log.Info("avatar loaded",
		zap.Float64("base_scale", norm.BaseScale),
		zap.Float64("base_y", norm.BaseYOffset),
		zap.Stringer("animation", res.State),
		zap.Duration("took", time.Since(start)))
	return nil
}

// Loaded reports whether Load has completed successfully.
func (a *Avatar) Loaded() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.loaded
}

// Root returns the normalized model, or nil before load.
func (a *Avatar) Root() *scene.Node {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.root
}

// Normalized returns the transform stamped at load.
func (a *Avatar) Normalized() (NormalizedTransform, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.loaded {
		return NormalizedTransform{}, ErrNotLoaded
	}
	return a.norm, nil
}

// Resolution returns the animation binding chosen at load.
func (a *Avatar) Resolution() Resolution {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.res
}

// Update advances the bound animation by dt seconds. It is a no-op while
// unbound.
func (a *Avatar) Update(dt float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.res.Mixer != nil {
		a.res.Mixer.Update(dt)
	}
}

// Rotate adds delta radians of yaw. Unloaded avatars ignore it.
func (a *Avatar) Rotate(delta float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.loaded {
		return
	}
	a.rotation += delta
	a.root.Rotation = math3d.QuatFromAxisAngle(math3d.Up(), a.rotation)
}

// Rotation returns the current yaw in radians.
func (a *Avatar) Rotation() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.rotation
}

// applyLocked writes the live parameters into the model transform.
func (a *Avatar) applyLocked() {
	if !a.loaded {
		return
	}
	a.root.Scale = math3d.One3().Scale(a.norm.BaseScale * a.scale)
	a.root.Position.Y = a.norm.BaseYOffset + a.yOffset
}
