package avatar

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/qmuntal/gltf"

	"github.com/taigrr/podium/internal/fixture"
	"github.com/taigrr/podium/pkg/math3d"
	"github.com/taigrr/podium/pkg/models"
	"github.com/taigrr/podium/pkg/scene"
)

const eps = 1e-9

var errMissing = errors.New("missing asset")

// stubLoader serves decoded fixture documents by path.
type stubLoader struct {
	docs  map[string]*gltf.Document
	gates map[string]chan struct{} // Loads of these paths block until closed
}

func (s *stubLoader) Load(ctx context.Context, path string, progress models.ProgressFunc) (*models.Asset, error) {
	if gate, ok := s.gates[path]; ok {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	doc, ok := s.docs[path]
	if !ok {
		return nil, errMissing
	}
	if progress != nil {
		progress(1, -1)
	}
	return models.Decode(doc, path, true, nil, nil)
}

func rig(prefix, embedded string) *gltf.Document {
	return fixture.Rigged(fixture.Rig{
		BonePrefix:   prefix,
		Min:          [3]float32{-0.5, 0, -0.25},
		Max:          [3]float32{0.5, 4, 0.25},
		EmbeddedClip: embedded,
	})
}

func meshNode(min, max math3d.Vec3) *scene.Node {
	root := scene.NewNode("model", scene.KindGroup)
	n := scene.NewNode("mesh", scene.KindMesh)
	g := scene.NewGeometry()
	g.Vertices = []scene.Vertex{{Position: min}, {Position: max}}
	n.Geometry = g
	root.Add(n)
	return root
}

func TestNormalizeInvariant(t *testing.T) {
	root := meshNode(math3d.V3(10, 20, 30), math3d.V3(14, 21, 31))

	norm := Normalize(root, AssetSpec{})
	if math.Abs(norm.BaseScale-0.5) > eps {
		t.Errorf("expected base scale 0.5, got %f", norm.BaseScale)
	}

	box := scene.ComputeBounds(root)
	if d := box.Size().MaxComponent(); math.Abs(d-ReferenceSize) > eps {
		t.Errorf("expected largest dimension %f, got %f", ReferenceSize, d)
	}
	if c := box.Center(); c.Len() > eps {
		t.Errorf("expected centered box, got center %v", c)
	}
	if math.Abs(norm.BaseYOffset-root.Position.Y) > eps {
		t.Errorf("base Y offset should be the centered Y, got %f vs %f", norm.BaseYOffset, root.Position.Y)
	}
}

func TestNormalizeAppliesOffsets(t *testing.T) {
	root := meshNode(math3d.V3(-1, -1, -1), math3d.V3(1, 3, 1))
	spec := AssetSpec{Offset: Offset{X: 3, Z: -2}, ScaleMultiplier: 2, YOffsetMultiplier: 0.25}

	norm := Normalize(root, spec)
	if math.Abs(root.Scale.X-norm.BaseScale*2) > eps || root.Scale.X != root.Scale.Y || root.Scale.Y != root.Scale.Z {
		t.Errorf("expected uniform scale %f, got %v", norm.BaseScale*2, root.Scale)
	}
	if math.Abs(root.Position.Y-(norm.BaseYOffset+0.25)) > eps {
		t.Errorf("expected y = base + 0.25, got %f", root.Position.Y)
	}
	if math.Abs(root.Position.X-3) > eps || math.Abs(root.Position.Z+2) > eps {
		t.Errorf("expected planar offset (3,-2), got (%f,%f)", root.Position.X, root.Position.Z)
	}
}

// The multiplier scales about the model origin, which centering placed at
// -center × base scale. The box center therefore only lands on the origin
// when the multiplier is 1, and yaw pivots around that same point.
func TestNormalizeScaleMultiplierPivot(t *testing.T) {
	lo, hi := math3d.V3(0, 0, 0), math3d.V3(2, 4, 2) // center (1,2,1), base scale 0.5

	tests := []struct {
		mult float64
		want math3d.Vec3
	}{
		{1, math3d.V3(0, 0, 0)},
		{2, math3d.V3(0.5, 1, 0.5)},
		{0.5, math3d.V3(-0.25, -0.5, -0.25)},
	}
	for _, tt := range tests {
		root := meshNode(lo, hi)
		norm := Normalize(root, AssetSpec{ScaleMultiplier: tt.mult})
		box := scene.ComputeBounds(root)

		if d := box.Size().MaxComponent(); math.Abs(d-ReferenceSize*tt.mult) > eps {
			t.Errorf("mult %v: expected largest dimension %v, got %v", tt.mult, ReferenceSize*tt.mult, d)
		}
		if c := box.Center(); c.Sub(tt.want).Len() > eps {
			t.Errorf("mult %v: expected box center %v, got %v", tt.mult, tt.want, c)
		}
		if want := math3d.V3(-0.5, -1, -0.5); root.Position.Sub(want).Len() > eps || norm.BaseYOffset != -1 {
			t.Errorf("mult %v: centering should ignore the multiplier, got position %v", tt.mult, root.Position)
		}
	}

	// Half a turn swings the box center around the model origin
	root := meshNode(lo, hi)
	Normalize(root, AssetSpec{})
	root.Rotation = math3d.QuatFromAxisAngle(math3d.Up(), math.Pi)
	root.UpdateWorld()
	if c := scene.ComputeBounds(root).Center(); c.Sub(math3d.V3(-1, 0, -1)).Len() > 1e-6 {
		t.Errorf("expected rotated center (-1,0,-1), got %v", c)
	}
}

func TestNormalizeDegenerate(t *testing.T) {
	root := meshNode(math3d.V3(5, 5, 5), math3d.V3(5, 5, 5))
	norm := Normalize(root, AssetSpec{})
	if norm.BaseScale != ReferenceSize {
		t.Errorf("zero extent should use maxDim 1, got base scale %f", norm.BaseScale)
	}

	empty := Normalize(scene.NewNode("empty", scene.KindGroup), AssetSpec{})
	if empty.BaseScale != ReferenceSize || empty.BaseYOffset != 0 {
		t.Errorf("empty model should normalize to identity placement, got %+v", empty)
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	root := meshNode(math3d.V3(0, 0, 0), math3d.V3(2, 8, 4))
	spec := AssetSpec{Offset: Offset{X: 1}, ScaleMultiplier: 1.5, YOffsetMultiplier: 1}

	first := Normalize(root, spec)
	pos, scl := root.Position, root.Scale
	second := Normalize(root, spec)

	if first != second {
		t.Errorf("expected same transform, got %+v then %+v", first, second)
	}
	if root.Position != pos || root.Scale != scl {
		t.Errorf("expected same placement, got %v/%v then %v/%v", pos, scl, root.Position, root.Scale)
	}
}

func TestPrepareMeshes(t *testing.T) {
	doc := rig("", "")
	asset, err := models.Decode(doc, "rig", true, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	prepareMeshes(asset.Scene)

	asset.Scene.Traverse(func(n *scene.Node) {
		if !n.IsMesh() {
			return
		}
		if !n.CastShadow || !n.ReceiveShadow {
			t.Errorf("%s should cast and receive shadows", n.Name)
		}
		for _, m := range n.Geometry.Materials {
			if !m.NeedsUpdate || m.Side != scene.SideFront {
				t.Errorf("material %s should be refreshed front-sided", m.Name)
			}
		}
	})
}

func TestResolveFallbackOrdering(t *testing.T) {
	tests := []struct {
		name     string
		docs     map[string]*gltf.Document
		animPath string
		state    ResolveState
		clip     string
		trace    []ResolveState
	}{
		{
			name:     "external wins over embedded",
			docs:     map[string]*gltf.Document{"x.glb": fixture.AnimationOnly("X", "Hips", "Spine")},
			animPath: "x.glb",
			state:    StateAppliedExternalRoot,
			clip:     "X",
			trace:    []ResolveState{StateUnloaded, StateResolvingExternal, StateAppliedExternalRoot},
		},
		{
			name:     "external load failure uses embedded",
			animPath: "missing.glb",
			state:    StateAppliedEmbedded,
			clip:     "E",
			trace:    []ResolveState{StateUnloaded, StateResolvingExternal, StateResolvingEmbedded, StateAppliedEmbedded},
		},
		{
			name:     "external without clips uses embedded",
			docs:     map[string]*gltf.Document{"empty.glb": fixture.Empty()},
			animPath: "empty.glb",
			state:    StateAppliedEmbedded,
			clip:     "E",
		},
		{
			name:  "no external path goes straight to embedded",
			state: StateAppliedEmbedded,
			clip:  "E",
			trace: []ResolveState{StateUnloaded, StateResolvingEmbedded, StateAppliedEmbedded},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			asset, err := models.Decode(rig("", "E"), "model", true, nil, nil)
			if err != nil {
				t.Fatal(err)
			}
			rv := &Resolver{Loader: &stubLoader{docs: tt.docs}}
			res := rv.Resolve(context.Background(), asset.Scene, asset.Clips, tt.animPath)

			if res.State != tt.state {
				t.Errorf("expected state %v, got %v", tt.state, res.State)
			}
			if res.Clip() == nil || res.Clip().Name != tt.clip {
				t.Errorf("expected clip %s, got %v", tt.clip, res.Clip())
			}
			if res.Root() != asset.Scene {
				t.Errorf("expected binding on model root, got %v", res.Root())
			}
			if !res.Action.IsRunning() {
				t.Error("bound action should be playing")
			}
			if tt.trace != nil {
				if len(res.Trace) != len(tt.trace) {
					t.Fatalf("expected trace %v, got %v", tt.trace, res.Trace)
				}
				for i := range tt.trace {
					if res.Trace[i] != tt.trace[i] {
						t.Errorf("trace[%d]: expected %v, got %v", i, tt.trace[i], res.Trace[i])
					}
				}
			}
		})
	}
}

func TestResolveSkeletalFallback(t *testing.T) {
	asset, err := models.Decode(rig("mixamorig:", "E"), "model", true, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	loader := &stubLoader{docs: map[string]*gltf.Document{
		"x.glb": fixture.AnimationOnly("X", "Hips", "Spine"),
	}}

	res := (&Resolver{Loader: loader}).Resolve(context.Background(), asset.Scene, asset.Clips, "x.glb")
	if res.State != StateAppliedExternalSkinned {
		t.Fatalf("expected skinned fallback, got %v (trace %v)", res.State, res.Trace)
	}
	if res.Clip().Name != "X" {
		t.Errorf("expected external clip X, got %s", res.Clip().Name)
	}
	body := asset.Scene.FindFirst(scene.KindSkinnedMesh)
	if res.Root() != body {
		t.Errorf("expected binding on %s, got %v", body.Name, res.Root())
	}

	res.Mixer.Update(0.5)
	hips := body.Skin.Joints[0]
	if math.Abs(hips.Position.X-0.5) > 1e-6 {
		t.Errorf("external clip should drive prefixed hips, got x=%f", hips.Position.X)
	}
}

func TestResolveUnbindableExternalWithoutSkinUsesEmbedded(t *testing.T) {
	doc := fixture.Box("statue", [3]float32{0, 0, 0}, [3]float32{1, 1, 1})
	fixture.AddClip(doc, "E", 0)
	asset, err := models.Decode(doc, "model", true, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	loader := &stubLoader{docs: map[string]*gltf.Document{
		"x.glb": fixture.AnimationOnly("X", "Hips"),
	}}

	res := (&Resolver{Loader: loader}).Resolve(context.Background(), asset.Scene, asset.Clips, "x.glb")
	if res.State != StateAppliedEmbedded || res.Clip().Name != "E" {
		t.Errorf("expected embedded E, got %v %v", res.State, res.Clip())
	}
}

func TestResolveNone(t *testing.T) {
	asset, err := models.Decode(fixture.Box("rock", [3]float32{0, 0, 0}, [3]float32{1, 1, 1}), "rock", true, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	res := (&Resolver{}).Resolve(context.Background(), asset.Scene, nil, "")
	if res.State != StateNone || !res.State.Terminal() {
		t.Errorf("expected terminal none, got %v", res.State)
	}
	if res.Mixer != nil || res.Clip() != nil {
		t.Error("static avatar should have no binding")
	}
}

func TestAvatarLoadStatic(t *testing.T) {
	loader := &stubLoader{docs: map[string]*gltf.Document{
		"rock.glb": fixture.Box("rock", [3]float32{0, 0, 0}, [3]float32{1, 1, 1}),
	}}
	a := New(AssetSpec{ModelPath: "rock.glb"}, WithLoader(loader))

	if a.Loaded() || a.Root() != nil {
		t.Fatal("avatar should start unloaded")
	}
	if _, err := a.Normalized(); !errors.Is(err, ErrNotLoaded) {
		t.Errorf("expected ErrNotLoaded, got %v", err)
	}
	a.Update(1) // unbound, no-op
	a.Rotate(1)
	if a.Rotation() != 0 {
		t.Error("unloaded avatar should ignore rotation")
	}

	if err := a.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !a.Loaded() || a.Resolution().State != StateNone {
		t.Errorf("expected loaded static avatar, got state %v", a.Resolution().State)
	}
	a.Update(1)
}

func TestAvatarLoadFailure(t *testing.T) {
	a := New(AssetSpec{ModelPath: "nope.glb"}, WithLoader(&stubLoader{}))
	err := a.Load(context.Background())
	if !errors.Is(err, errMissing) {
		t.Errorf("expected wrapped load error, got %v", err)
	}
	if a.Loaded() || a.Root() != nil {
		t.Error("failed avatar should stay unloaded")
	}
}

func TestAvatarLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	model := fixture.Save(t, dir, "model.glb", rig("", "E"))
	anim := fixture.Save(t, dir, "walk.glb", fixture.AnimationOnly("Walk", "Hips", "Spine"))

	a := New(AssetSpec{ModelPath: model, AnimPath: anim})
	if err := a.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	res := a.Resolution()
	if res.State != StateAppliedExternalRoot || res.Clip().Name != "Walk" {
		t.Errorf("expected external Walk on root, got %v %v", res.State, res.Clip())
	}
}

func TestSetScaleIdempotent(t *testing.T) {
	a := loadedRig(t)
	norm, _ := a.Normalized()

	a.SetScale(1.7)
	once, _ := a.EffectiveScale()
	a.SetScale(1.7)
	twice, _ := a.EffectiveScale()

	if once != twice || math.Abs(once-norm.BaseScale*1.7) > eps {
		t.Errorf("expected %f twice, got %f and %f", norm.BaseScale*1.7, once, twice)
	}
	root := a.Root()
	if root.Scale.X != root.Scale.Y || root.Scale.Y != root.Scale.Z {
		t.Errorf("scale should be uniform, got %v", root.Scale)
	}
}

func TestSetYOffsetDoesNotAccumulate(t *testing.T) {
	a := loadedRig(t)
	norm, _ := a.Normalized()

	for _, y := range []float64{0.5, -3, 2, 0.25} {
		a.SetYOffset(y)
	}
	got, _ := a.EffectiveY()
	if math.Abs(got-(norm.BaseYOffset+0.25)) > eps {
		t.Errorf("expected base + 0.25, got %f", got)
	}
}

func TestSetterCoercion(t *testing.T) {
	tests := []struct {
		in        float64
		wantScale float64
		wantY     float64
	}{
		{math.NaN(), 1, 0},
		{math.Inf(1), 1, 0},
		{math.Inf(-1), 1, 0},
		{0, 1, 0},
		{-2, -2, -2},
		{0.5, 0.5, 0.5},
	}
	for _, tt := range tests {
		a := New(AssetSpec{}, WithLoader(&stubLoader{}))
		a.SetScale(tt.in)
		a.SetYOffset(tt.in)
		if a.ScaleMultiplier() != tt.wantScale {
			t.Errorf("SetScale(%v): got %v, want %v", tt.in, a.ScaleMultiplier(), tt.wantScale)
		}
		if a.YOffset() != tt.wantY {
			t.Errorf("SetYOffset(%v): got %v, want %v", tt.in, a.YOffset(), tt.wantY)
		}
	}
}

func TestPendingParamsAppliedAtLoad(t *testing.T) {
	loader := &stubLoader{docs: map[string]*gltf.Document{"m.glb": rig("", "")}}
	a := New(AssetSpec{ModelPath: "m.glb", ScaleMultiplier: 3}, WithLoader(loader))
	a.SetScale(2)
	a.SetYOffset(1)

	if err := a.Load(context.Background()); err != nil {
		t.Fatal(err)
	}
	norm, _ := a.Normalized()
	s, _ := a.EffectiveScale()
	y, _ := a.EffectiveY()
	if math.Abs(s-norm.BaseScale*2) > eps {
		t.Errorf("pending scale should win, got %f", s)
	}
	if math.Abs(y-(norm.BaseYOffset+1)) > eps {
		t.Errorf("pending offset should win, got %f", y)
	}
}

func TestRotateSetsYaw(t *testing.T) {
	a := loadedRig(t)
	a.Rotate(math.Pi / 4)
	a.Rotate(math.Pi / 4)

	if math.Abs(a.Rotation()-math.Pi/2) > eps {
		t.Errorf("expected yaw pi/2, got %f", a.Rotation())
	}
	want := math3d.QuatFromAxisAngle(math3d.Up(), math.Pi/2)
	if got := a.Root().Rotation; math.Abs(math.Abs(got.Dot(want))-1) > eps {
		t.Errorf("expected root rotation %v, got %v", want, got)
	}
}

// recorder collects observer signals.
type recorder struct {
	mu     sync.Mutex
	events []string
	done   chan *Avatar
}

func (r *recorder) add(e string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) LoadStarted(a *Avatar)              { r.add("start " + a.Spec().ModelPath) }
func (r *recorder) LoadProgress(a *Avatar, _, _ int64) { r.add("progress " + a.Spec().ModelPath) }
func (r *recorder) LoadFailed(a *Avatar, _ error)      { r.add("fail " + a.Spec().ModelPath) }
func (r *recorder) LoadDone(a *Avatar) {
	r.add("done " + a.Spec().ModelPath)
	if r.done != nil {
		r.done <- a
	}
}

func TestLoadAllFailureDoesNotDelaySibling(t *testing.T) {
	gate := make(chan struct{})
	loader := &stubLoader{
		docs:  map[string]*gltf.Document{"good.glb": rig("", "E")},
		gates: map[string]chan struct{}{"bad.glb": gate},
	}
	good := New(AssetSpec{ModelPath: "good.glb"}, WithLoader(loader))
	bad := New(AssetSpec{ModelPath: "bad.glb"}, WithLoader(loader))
	rec := &recorder{done: make(chan *Avatar, 1)}

	result := make(chan []error, 1)
	go func() {
		result <- LoadAll(context.Background(), []*Avatar{good, bad}, rec, 0)
	}()

	// The good avatar finishes while the bad one is still blocked
	if got := <-rec.done; got != good {
		t.Fatalf("expected good avatar to finish first")
	}
	if !good.Loaded() {
		t.Error("good avatar should be loaded")
	}
	close(gate)

	errs := <-result
	if errs[0] != nil {
		t.Errorf("good avatar failed: %v", errs[0])
	}
	if !errors.Is(errs[1], errMissing) {
		t.Errorf("expected bad avatar error, got %v", errs[1])
	}
	if bad.Loaded() {
		t.Error("bad avatar should not be loaded")
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	var fails, dones int
	for _, e := range rec.events {
		switch e {
		case "fail bad.glb":
			fails++
		case "done good.glb":
			dones++
		}
	}
	if fails != 1 || dones != 1 {
		t.Errorf("expected one done and one fail, got %v", rec.events)
	}
}

func TestResolveStateString(t *testing.T) {
	for s := StateUnloaded; s <= StateNone; s++ {
		if s.String() == "unknown" {
			t.Errorf("state %d has no name", s)
		}
	}
	if StateResolvingExternal.Terminal() || !StateAppliedEmbedded.Terminal() {
		t.Error("unexpected terminal classification")
	}
}

func loadedRig(t *testing.T) *Avatar {
	t.Helper()
	loader := &stubLoader{docs: map[string]*gltf.Document{"rig.glb": rig("", "")}}
	a := New(AssetSpec{ModelPath: "rig.glb"}, WithLoader(loader))
	if err := a.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	return a
}
