package avatar

import (
	"context"

	"go.uber.org/zap"

	"github.com/taigrr/podium/pkg/anim"
	"github.com/taigrr/podium/pkg/models"
	"github.com/taigrr/podium/pkg/scene"
)

// ResolveState is a step of animation resolution.
type ResolveState int

const (
	StateUnloaded ResolveState = iota
	StateResolvingExternal
	StateAppliedExternalRoot
	StateAppliedExternalSkinned
	StateResolvingEmbedded
	StateAppliedEmbedded
	StateNone
)

// String returns the state name.
func (s ResolveState) String() string {
	switch s {
	case StateUnloaded:
		return "unloaded"
	case StateResolvingExternal:
		return "resolving-external"
	case StateAppliedExternalRoot:
		return "applied-external-root"
	case StateAppliedExternalSkinned:
		return "applied-external-skinned"
	case StateResolvingEmbedded:
		return "resolving-embedded"
	case StateAppliedEmbedded:
		return "applied-embedded"
	case StateNone:
		return "none"
	}
	return "unknown"
}

// Terminal reports whether resolution stops at s.
func (s ResolveState) Terminal() bool {
	switch s {
	case StateAppliedExternalRoot, StateAppliedExternalSkinned, StateAppliedEmbedded, StateNone:
		return true
	}
	return false
}

// AssetLoader fetches and decodes an asset. *models.Loader implements it.
type AssetLoader interface {
	Load(ctx context.Context, path string, progress models.ProgressFunc) (*models.Asset, error)
}

// Resolution is the outcome of animation resolution: the single binding an
// avatar plays, if any.
type Resolution struct {
	State  ResolveState
	Mixer  *anim.Mixer  // nil for StateNone
	Action *anim.Action // nil for StateNone
	Trace  []ResolveState
}

// Clip returns the bound clip, or nil.
func (r Resolution) Clip() *anim.Clip {
	if r.Action == nil {
		return nil
	}
	return r.Action.Clip()
}

// Root returns the node the mixer is bound to, or nil.
func (r Resolution) Root() *scene.Node {
	if r.Mixer == nil {
		return nil
	}
	return r.Mixer.Root()
}

// Resolver decides which clip drives a model. Failures along the way only
// move it to the next candidate; they are logged, never returned.
type Resolver struct {
	Loader AssetLoader
	Log    *zap.Logger
}

func (r *Resolution) enter(s ResolveState) {
	r.State = s
	r.Trace = append(r.Trace, s)
}

// Resolve binds the first clip of the external asset at animPath, falling
// back to the first skinned mesh of model, then to the first of embedded.
func (rv *Resolver) Resolve(ctx context.Context, model *scene.Node, embedded []*anim.Clip, animPath string) Resolution {
	log := rv.Log
	if log == nil {
		log = zap.NewNop()
	}
	log = log.With(zap.String("model", model.Name))

	var r Resolution
	r.enter(StateUnloaded)

	if animPath != "" {
		r.enter(StateResolvingExternal)
		if rv.external(ctx, &r, model, animPath, log) {
			return r
		}
	}

	r.enter(StateResolvingEmbedded)
	if len(embedded) > 0 {
		clip := embedded[0]
		m := anim.NewMixer(model)
		action, err := m.Bind(clip)
		if err == nil {
			r.Mixer, r.Action = m, action.Reset().Play()
			r.enter(StateAppliedEmbedded)
			log.Info("playing embedded clip", zap.String("clip", clip.DisplayName()))
			return r
		}
		log.Warn("embedded clip does not bind", zap.String("clip", clip.DisplayName()), zap.Error(err))
	}

	r.enter(StateNone)
	log.Info("no animation; avatar is static")
	return r
}

func (rv *Resolver) external(ctx context.Context, r *Resolution, model *scene.Node, animPath string, log *zap.Logger) bool {
	log = log.With(zap.String("anim", animPath))
	if rv.Loader == nil {
		log.Warn("no loader for external animation")
		return false
	}

	asset, err := rv.Loader.Load(ctx, animPath, nil)
	if err != nil {
		log.Warn("external animation load failed", zap.Error(err))
		return false
	}
	if len(asset.Clips) == 0 {
		log.Info("external animation has no clips")
		return false
	}
	clip := asset.Clips[0]

	m := anim.NewMixer(model)
	action, err := m.Bind(clip)
	if err == nil {
		r.Mixer, r.Action = m, action.Reset().Play()
		r.enter(StateAppliedExternalRoot)
		log.Info("applied external animation", zap.String("clip", clip.DisplayName()))
		return true
	}
	log.Warn("external clip does not bind to model root", zap.Error(err))

	skinned := model.FindFirst(scene.KindSkinnedMesh)
	if skinned == nil {
		return false
	}
	m = anim.NewMixer(skinned)
	action, err = m.Bind(clip)
	if err != nil {
		log.Warn("external clip does not bind to skinned mesh", zap.String("mesh", skinned.Name), zap.Error(err))
		return false
	}
	r.Mixer, r.Action = m, action.Reset().Play()
	r.enter(StateAppliedExternalSkinned)
	log.Info("applied external clip to skinned mesh", zap.String("mesh", skinned.Name), zap.String("clip", clip.DisplayName()))
	return true
}
