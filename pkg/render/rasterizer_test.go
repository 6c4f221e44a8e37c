package render

import (
	"math"
	"testing"

	"github.com/taigrr/podium/pkg/math3d"
)

// quad returns two triangles covering [-s, s] on the XY plane at depth z,
// wound the way decoded geometry is (clockwise on screen when facing +Z).
func quad(s, z float64) []Triangle {
	n := math3d.V3(0, 0, 1)
	a := Vertex{Position: math3d.V3(-s, -s, z), Normal: n, UV: math3d.V2(0, 0)}
	b := Vertex{Position: math3d.V3(s, -s, z), Normal: n, UV: math3d.V2(1, 0)}
	c := Vertex{Position: math3d.V3(s, s, z), Normal: n, UV: math3d.V2(1, 1)}
	d := Vertex{Position: math3d.V3(-s, s, z), Normal: n, UV: math3d.V2(0, 1)}
	return []Triangle{{V: [3]Vertex{a, c, b}}, {V: [3]Vertex{a, d, c}}}
}

func flip(tri Triangle) Triangle {
	tri.V[1], tri.V[2] = tri.V[2], tri.V[1]
	return tri
}

// createTestRasterizer creates a rasterizer looking at the origin from +Z.
func createTestRasterizer(width, height int) (*Rasterizer, *Framebuffer) {
	fb := NewFramebuffer(width, height)
	camera := NewCamera()
	camera.SetHeight(0)
	camera.SetAspectRatio(float64(width) / float64(height))
	r := NewRasterizer(camera, fb)
	r.LightDir = math3d.V3(0, 0, 1)
	r.ClearDepth()
	return r, fb
}

func TestBarycentric(t *testing.T) {
	tests := []struct {
		name     string
		px, py   float64
		expected math3d.Vec3
	}{
		{"vertex 0", 0, 0, math3d.V3(1, 0, 0)},
		{"vertex 1", 1, 0, math3d.V3(0, 1, 0)},
		{"vertex 2", 0, 1, math3d.V3(0, 0, 1)},
		{"centroid", 1.0 / 3, 1.0 / 3, math3d.V3(1.0/3, 1.0/3, 1.0/3)},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			// Triangle: (0,0), (1,0), (0,1)
			bc := barycentric(0, 0, 1, 0, 0, 1, tc.px, tc.py)

			if math.Abs(bc.X-tc.expected.X) > 0.001 ||
				math.Abs(bc.Y-tc.expected.Y) > 0.001 ||
				math.Abs(bc.Z-tc.expected.Z) > 0.001 {
				t.Errorf("barycentric(%v, %v) = %v, want %v", tc.px, tc.py, bc, tc.expected)
			}
		})
	}

	t.Run("outside triangle", func(t *testing.T) {
		bc := barycentric(0, 0, 1, 0, 0, 1, -1, -1)
		if bc.X >= 0 && bc.Y >= 0 && bc.Z >= 0 {
			t.Error("point outside triangle should have negative barycentric coordinate")
		}
	})

	t.Run("degenerate", func(t *testing.T) {
		bc := barycentric(0, 0, 1, 1, 2, 2, 1, 1)
		if bc.X >= 0 {
			t.Error("degenerate triangle should cover no pixels")
		}
	})
}

func TestDrawTriangleLitCenter(t *testing.T) {
	r, fb := createTestRasterizer(40, 40)
	for _, tri := range quad(1, 0) {
		r.DrawTriangle(tri, Shade{Color: RGB(200, 100, 0)})
	}

	// Normal faces the light head-on, so intensity is 1
	got := fb.GetPixel(20, 20)
	if got != RGB(200, 100, 0) {
		t.Errorf("expected fully lit base color at center, got %v", got)
	}
	if fb.GetPixel(0, 0).A != 0 {
		t.Error("corner should be untouched")
	}
}

func TestDrawTriangleAmbientOnly(t *testing.T) {
	r, fb := createTestRasterizer(40, 40)
	r.LightDir = math3d.V3(0, 0, -1)
	for _, tri := range quad(1, 0) {
		r.DrawTriangle(tri, Shade{Color: RGB(200, 200, 200)})
	}
	want := uint8(200 * Ambient)
	if got := fb.GetPixel(20, 20); got.R != want {
		t.Errorf("expected ambient-only %d, got %d", want, got.R)
	}
}

func TestDepthTest(t *testing.T) {
	r, fb := createTestRasterizer(40, 40)
	red, blue := Shade{Color: RGB(255, 0, 0)}, Shade{Color: RGB(0, 0, 255)}

	for _, tri := range quad(1, 0) {
		r.DrawTriangle(tri, red)
	}
	for _, tri := range quad(1, -1) {
		r.DrawTriangle(tri, blue)
	}
	if got := fb.GetPixel(20, 20); got.B != 0 {
		t.Errorf("farther quad should be hidden, got %v", got)
	}

	for _, tri := range quad(0.5, 1) {
		r.DrawTriangle(tri, blue)
	}
	if got := fb.GetPixel(20, 20); got.R != 0 || got.B == 0 {
		t.Errorf("nearer quad should win, got %v", got)
	}
}

func TestBackfaceCulling(t *testing.T) {
	r, fb := createTestRasterizer(40, 40)
	for _, tri := range quad(1, 0) {
		r.DrawTriangle(flip(tri), Shade{Color: ColorWhite})
	}
	if fb.GetPixel(20, 20).A != 0 {
		t.Error("back-facing triangle should be culled")
	}

	// Double-sided back faces are drawn with the normal flipped
	r.LightDir = math3d.V3(0, 0, -1)
	for _, tri := range quad(1, 0) {
		r.DrawTriangle(flip(tri), Shade{Color: ColorWhite, DoubleSided: true})
	}
	if got := fb.GetPixel(20, 20); got.R != 255 {
		t.Errorf("double-sided back face should be lit from behind, got %v", got)
	}
}

func TestTextureModulatesColor(t *testing.T) {
	r, fb := createTestRasterizer(40, 40)
	tex := &Texture{Width: 1, Height: 1, Pixels: []Color{RGB(0, 255, 0)}}
	for _, tri := range quad(1, 0) {
		r.DrawTriangle(tri, Shade{Color: ColorWhite, Texture: tex})
	}
	if got := fb.GetPixel(20, 20); got != RGB(0, 255, 0) {
		t.Errorf("expected texel color, got %v", got)
	}
}

func TestDrawWireframe(t *testing.T) {
	r, fb := createTestRasterizer(40, 40)
	for _, tri := range quad(1, 0) {
		r.DrawWireframe(tri, ColorWireframe)
	}
	var lit int
	for _, p := range fb.Pixels {
		if p == ColorWireframe {
			lit++
		}
	}
	if lit == 0 {
		t.Fatal("expected edge pixels")
	}
	if fb.GetPixel(16, 20) == ColorWireframe {
		t.Error("wireframe should not fill the interior")
	}
}

func TestBehindCameraSkipped(t *testing.T) {
	r, fb := createTestRasterizer(40, 40)
	for _, tri := range quad(1, 10) {
		r.DrawTriangle(tri, Shade{Color: ColorWhite})
	}
	for _, p := range fb.Pixels {
		if p.A != 0 {
			t.Fatal("geometry behind the camera should not be drawn")
		}
	}
}

func TestRasterizerClearDepth(t *testing.T) {
	r, _ := createTestRasterizer(10, 10)
	for i := range r.zbuffer {
		r.zbuffer[i] = 0.5
	}
	r.ClearDepth()
	for i, z := range r.zbuffer {
		if z != math.MaxFloat64 {
			t.Fatalf("depth[%d] = %v after clear", i, z)
		}
	}
}

func BenchmarkDrawTriangle(b *testing.B) {
	r, _ := createTestRasterizer(200, 100)
	tris := quad(1, 0)
	shade := Shade{Color: ColorWhite}
	b.ResetTimer()
	for b.Loop() {
		r.ClearDepth()
		for _, tri := range tris {
			r.DrawTriangle(tri, shade)
		}
	}
}
