package render

import (
	"image"
	"image/color"
	"image/png"
	"io"
	"math"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
	"golang.org/x/image/webp"

	"github.com/taigrr/podium/internal/fixture"
	"github.com/taigrr/podium/pkg/math3d"
	"github.com/taigrr/podium/pkg/models"
	"github.com/taigrr/podium/pkg/scene"
)

// panel returns a mesh node holding a 2x2 quad facing +Z.
func panel(m *scene.Material) *scene.Node {
	g := scene.NewGeometry()
	n := math3d.V3(0, 0, 1)
	for _, p := range []math3d.Vec3{{X: -1, Y: -1}, {X: 1, Y: -1}, {X: 1, Y: 1}, {X: -1, Y: 1}} {
		g.Vertices = append(g.Vertices, scene.Vertex{Position: p, Normal: n})
	}
	g.Faces = []scene.Face{{V: [3]int{0, 2, 1}}, {V: [3]int{0, 3, 2}}}
	g.Materials = []*scene.Material{m}
	g.CalculateBounds()

	node := scene.NewNode("panel", scene.KindMesh)
	node.Geometry = g
	root := scene.NewNode("root", scene.KindGroup)
	root.Add(node)
	root.UpdateWorld()
	return root
}

func red() *scene.Material {
	m := scene.NewMaterial("red")
	m.BaseColor = [4]float64{1, 0, 0, 1}
	return m
}

func newTestRenderer() *SceneRenderer {
	r := NewSceneRenderer(60, 40)
	r.Camera.SetHeight(0)
	r.Rasterizer().LightDir = math3d.V3(0, 0, 1)
	return r
}

func TestRenderDrawsMeshes(t *testing.T) {
	r := newTestRenderer()
	root := panel(red())
	if err := r.Render([]*scene.Node{root}); err != nil {
		t.Fatalf("Render: %v", err)
	}

	if got := r.Framebuffer().GetPixel(30, 20); got != RGB(255, 0, 0) {
		t.Errorf("expected lit red at center, got %v", got)
	}
	if got := r.Framebuffer().GetPixel(0, 0); got != ColorBackdrop {
		t.Errorf("expected backdrop in corner, got %v", got)
	}
	if s := r.Stats(); s.Meshes != 1 || s.Triangles != 2 || s.Culled != 0 {
		t.Errorf("unexpected stats %+v", s)
	}
}

func TestRenderCullsOffscreenMeshes(t *testing.T) {
	r := newTestRenderer()
	root := panel(red())
	root.Position = math3d.V3(100, 0, 0)
	root.UpdateWorld()

	if err := r.Render([]*scene.Node{root}); err != nil {
		t.Fatal(err)
	}
	if s := r.Stats(); s.Culled != 1 || s.Triangles != 0 {
		t.Errorf("expected the mesh to be culled, got %+v", s)
	}
}

func TestRenderWireframe(t *testing.T) {
	r := newTestRenderer()
	r.Wireframe = true
	if err := r.Render([]*scene.Node{panel(red())}); err != nil {
		t.Fatal(err)
	}
	for _, p := range r.Framebuffer().Pixels {
		if p == RGB(255, 0, 0) {
			t.Fatal("wireframe mode should not fill triangles")
		}
	}
}

func TestRenderEmptyFramebuffer(t *testing.T) {
	r := NewSceneRenderer(0, 0)
	if err := r.Render([]*scene.Node{panel(red())}); err != nil {
		t.Errorf("zero-size frame should render nothing, got %v", err)
	}
	if r.Stats().Meshes != 0 {
		t.Error("nothing should be visited without pixels")
	}
}

func TestShadeCacheHonorsNeedsUpdate(t *testing.T) {
	r := newTestRenderer()
	m := red()
	root := panel(m)
	if err := r.Render([]*scene.Node{root}); err != nil {
		t.Fatal(err)
	}
	if m.NeedsUpdate {
		t.Error("render should consume the update flag")
	}

	// Without the flag the cached color is kept
	m.BaseColor = [4]float64{0, 0, 1, 1}
	_ = r.Render([]*scene.Node{root})
	if got := r.Framebuffer().GetPixel(30, 20); got.R != 255 {
		t.Errorf("expected cached red, got %v", got)
	}

	m.Refresh()
	_ = r.Render([]*scene.Node{root})
	if got := r.Framebuffer().GetPixel(30, 20); got != RGB(0, 0, 255) {
		t.Errorf("expected refreshed blue, got %v", got)
	}
}

func TestShadeUsesColorMap(t *testing.T) {
	r := newTestRenderer()
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	for y := range 2 {
		for x := range 2 {
			img.Set(x, y, color.RGBA{0, 255, 0, 255})
		}
	}
	m := scene.NewMaterial("green")
	m.Map = &scene.Texture{Image: img}
	m.Refresh()

	if err := r.Render([]*scene.Node{panel(m)}); err != nil {
		t.Fatal(err)
	}
	if got := r.Framebuffer().GetPixel(30, 20); got != RGB(0, 255, 0) {
		t.Errorf("expected texel color, got %v", got)
	}
	if m.Map.NeedsUpdate {
		t.Error("texture upload should clear the flag")
	}
}

func TestRenderPosesSkinnedMesh(t *testing.T) {
	asset, err := models.Decode(fixture.Rigged(fixture.Rig{
		Min: [3]float32{-0.5, 0, -0.5},
		Max: [3]float32{0.5, 1, 0.5},
	}), "rig", true, nil, zap.NewNop())
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	root := asset.Scene
	root.UpdateWorld()

	r := newTestRenderer()
	if err := r.Render([]*scene.Node{root}); err != nil {
		t.Fatal(err)
	}
	if s := r.Stats(); s.Meshes != 1 || s.Culled != 0 || s.Triangles != 12 {
		t.Fatalf("expected the body drawn, got %+v", s)
	}

	// The body follows its joints, not the mesh node
	var hips *scene.Node
	root.Traverse(func(n *scene.Node) {
		if n.Name == "Hips" {
			hips = n
		}
	})
	if hips == nil {
		t.Fatal("no Hips bone")
	}
	hips.Position = math3d.V3(100, 0, 0)
	root.UpdateWorld()

	if err := r.Render([]*scene.Node{root}); err != nil {
		t.Fatal(err)
	}
	if s := r.Stats(); s.Culled != 1 {
		t.Errorf("expected the deformed body off screen, got %+v", s)
	}
}

func TestCameraProjectsTargetToCenter(t *testing.T) {
	c := NewCamera()
	c.SetAspectRatio(2)
	x, y, _, ok := c.WorldToScreen(c.Target, 200, 100)
	if !ok {
		t.Fatal("target should be visible")
	}
	if math.Abs(x-100) > 1e-9 || math.Abs(y-50) > 1e-9 {
		t.Errorf("expected (100, 50), got (%f, %f)", x, y)
	}

	if _, _, _, ok := c.WorldToScreen(math3d.V3(0, 0, 20), 200, 100); ok {
		t.Error("point behind the camera should not be visible")
	}
}

func TestCameraDistanceClamp(t *testing.T) {
	c := NewCamera()
	c.SetDistance(0.1)
	if c.Distance != MinDistance {
		t.Errorf("expected distance clamped to %f, got %f", MinDistance, c.Distance)
	}
	c.SetDistance(8)
	if p := c.Position(); p.Z != 8 {
		t.Errorf("expected eye at z=8, got %v", p)
	}
}

func TestFrustum(t *testing.T) {
	c := NewCamera()
	f := NewFrustum(c.ViewProjectionMatrix())

	tests := []struct {
		name    string
		lo, hi  math3d.Vec3
		visible bool
	}{
		{"around target", math3d.V3(-1, -1, -1), math3d.V3(1, 1, 1), true},
		{"far left", math3d.V3(-101, -1, -1), math3d.V3(-99, 1, 1), false},
		{"behind camera", math3d.V3(-1, -1, 10), math3d.V3(1, 1, 12), false},
		{"straddling edge", math3d.V3(2, -1, -1), math3d.V3(50, 1, 1), true},
		{"beyond far plane", math3d.V3(-1, -1, -200), math3d.V3(1, 1, -150), false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := f.IntersectBounds(tc.lo, tc.hi); got != tc.visible {
				t.Errorf("IntersectBounds = %v, want %v", got, tc.visible)
			}
		})
	}

	if !f.ContainsPoint(c.Target) {
		t.Error("target should be inside the frustum")
	}
}

func TestPlaneNormalize(t *testing.T) {
	plane := Plane{Normal: math3d.V3(0, 3, 4), D: 10}
	plane.Normalize()
	if math.Abs(plane.Normal.Len()-1) > 1e-9 || math.Abs(plane.D-2) > 1e-9 {
		t.Errorf("unexpected plane %+v", plane)
	}
	if d := plane.DistanceToPoint(math3d.V3(0, 0, 5)); math.Abs(d-6) > 1e-9 {
		t.Errorf("expected distance 6, got %f", d)
	}
}

func TestTextureSampling(t *testing.T) {
	// Top row red, bottom row blue
	tex := &Texture{Width: 1, Height: 2, Pixels: []Color{RGB(255, 0, 0), RGB(0, 0, 255)}}

	tests := []struct {
		name string
		u, v float64
		want Color
	}{
		{"top", 0.5, 0.9, RGB(255, 0, 0)},
		{"bottom", 0.5, 0.1, RGB(0, 0, 255)},
		{"wraps", 3.5, -0.9, RGB(0, 0, 255)},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tex.Sample(tc.u, tc.v); got != tc.want {
				t.Errorf("Sample(%v, %v) = %v, want %v", tc.u, tc.v, got, tc.want)
			}
		})
	}
}

func TestColorHelpers(t *testing.T) {
	if got := LinearToSRGB([4]float64{0.5, 0, 1, 1}); got != (Color{R: 188, G: 0, B: 255, A: 255}) {
		t.Errorf("LinearToSRGB = %v", got)
	}
	if got := LinearToSRGB([4]float64{2, -1, 0, 0.5}); got.R != 255 || got.G != 0 || got.A != 128 {
		t.Errorf("LinearToSRGB should clamp, got %v", got)
	}

	for in, want := range map[string]Color{
		"#ff8000": RGB(255, 128, 0),
		"18181f":  RGB(24, 24, 31),
	} {
		got, ok := ParseHex(in)
		if !ok || got != want {
			t.Errorf("ParseHex(%q) = %v, %v", in, got, ok)
		}
	}
	if _, ok := ParseHex("nope"); ok {
		t.Error("ParseHex should reject junk")
	}
}

func TestSaveSnapshot(t *testing.T) {
	fb := NewFramebuffer(4, 2)
	fb.Clear(ColorBackdrop)
	fb.DrawLine(0, 0, 3, 1, ColorWhite)

	tests := []struct {
		name   string
		decode func(io.Reader) (image.Image, error)
	}{
		{"frame.png", png.Decode},
		{"frame.webp", webp.Decode},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), tt.name)
			if err := fb.Save(path); err != nil {
				t.Fatalf("Save: %v", err)
			}
			f, err := os.Open(path)
			if err != nil {
				t.Fatal(err)
			}
			defer f.Close()
			img, err := tt.decode(f)
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if b := img.Bounds(); b.Dx() != 4 || b.Dy() != 2 {
				t.Errorf("unexpected size %v", b)
			}
			if r, _, _, _ := img.At(0, 0).RGBA(); r>>8 != 255 {
				t.Error("line start should be white")
			}
		})
	}

	if err := fb.Save(filepath.Join(t.TempDir(), "frame.bmp")); err == nil {
		t.Error("Save should reject unknown extensions")
	}
}

func TestTextureDownsample(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 1024, 512))
	for i := range src.Pix {
		src.Pix[i] = 255
	}
	tex := TextureFromImage(src)
	if tex.Width != MaxTextureSize || tex.Height != MaxTextureSize/2 {
		t.Errorf("expected %dx%d, got %dx%d", MaxTextureSize, MaxTextureSize/2, tex.Width, tex.Height)
	}
	if c := tex.GetPixel(10, 10); c.R < 250 || c.A < 250 {
		t.Errorf("expected a white texel, got %v", c)
	}

	small := TextureFromImage(image.NewRGBA(image.Rect(0, 0, 3, 5)))
	if small.Width != 3 || small.Height != 5 {
		t.Errorf("small textures keep their size, got %dx%d", small.Width, small.Height)
	}
}

func TestFramebufferResize(t *testing.T) {
	fb := NewFramebuffer(4, 4)
	fb.Resize(8, -2)
	if fb.Width != 8 || fb.Height != 0 || len(fb.Pixels) != 0 {
		t.Errorf("unexpected framebuffer %dx%d (%d)", fb.Width, fb.Height, len(fb.Pixels))
	}
	fb.SetPixel(1, 1, ColorWhite) // out of bounds, must not panic
}
