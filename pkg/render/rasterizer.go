// Package render draws posed avatars into a half-block terminal framebuffer
// with a software rasterizer.
package render

import (
	"math"

	"github.com/taigrr/podium/pkg/math3d"
)

// Ambient is the light floor added to every lit vertex.
const Ambient = 0.3

// Vertex is a world-space vertex ready for rasterization.
type Vertex struct {
	Position math3d.Vec3
	Normal   math3d.Vec3
	UV       math3d.Vec2
}

// Triangle represents a triangle to be rasterized.
type Triangle struct {
	V [3]Vertex
}

// Shade is the per-material state the rasterizer needs.
type Shade struct {
	Color       Color    // Base color, display space
	Texture     *Texture // Optional color map, modulated by Color
	DoubleSided bool
}

// Rasterizer handles software triangle rasterization.
type Rasterizer struct {
	camera   *Camera
	fb       *Framebuffer
	zbuffer  []float64 // Row-major depth buffer
	LightDir math3d.Vec3
}

// NewRasterizer creates a new rasterizer.
func NewRasterizer(camera *Camera, fb *Framebuffer) *Rasterizer {
	r := &Rasterizer{
		camera:   camera,
		fb:       fb,
		LightDir: math3d.V3(0.4, 0.8, 0.6),
	}
	r.Resize()
	return r
}

// Resize resizes the depth buffer to match the framebuffer.
func (r *Rasterizer) Resize() {
	if n := r.fb.Width * r.fb.Height; len(r.zbuffer) != n {
		r.zbuffer = make([]float64, n)
	}
}

// ClearDepth clears the depth buffer (call before each frame).
func (r *Rasterizer) ClearDepth() {
	// Copy-doubling fill
	n := len(r.zbuffer)
	if n == 0 {
		return
	}
	r.zbuffer[0] = math.MaxFloat64
	for i := 1; i < n; i *= 2 {
		copy(r.zbuffer[i:], r.zbuffer[:i])
	}
}

func (r *Rasterizer) depthAt(x, y int) float64 {
	return r.zbuffer[y*r.fb.Width+x]
}

// screenVertex holds a vertex transformed to screen space.
type screenVertex struct {
	X, Y  float64 // Screen coordinates
	Z     float64 // NDC depth
	InvW  float64 // 1/w for perspective-correct UVs
	Light float64
	UV    math3d.Vec2
}

// project maps the triangle to screen space. ok is false when the triangle
// is behind the camera or culled as back-facing; back is true when a
// double-sided triangle faces away and its lighting must be flipped.
func (r *Rasterizer) project(tri Triangle, doubleSided bool) (sv [3]screenVertex, back, ok bool) {
	viewProj := r.camera.ViewProjectionMatrix()
	w, h := float64(r.fb.Width), float64(r.fb.Height)

	for i, v := range tri.V {
		clip := viewProj.MulVec4(math3d.V4FromV3(v.Position, 1))
		// No near-plane clipping; drop anything touching the camera plane
		if clip.W <= r.camera.Near*0.5 {
			return sv, false, false
		}
		inv := 1 / clip.W
		sv[i] = screenVertex{
			X:    (clip.X*inv + 1) * 0.5 * w,
			Y:    (1 - clip.Y*inv) * 0.5 * h,
			Z:    clip.Z * inv,
			InvW: inv,
			UV:   v.UV,
		}
	}

	// Winding is clockwise on screen for front faces
	e1 := math3d.V2(sv[1].X-sv[0].X, sv[1].Y-sv[0].Y)
	e2 := math3d.V2(sv[2].X-sv[0].X, sv[2].Y-sv[0].Y)
	if cross := e1.Cross(e2); cross < 0 {
		if !doubleSided {
			return sv, false, false
		}
		back = true
	}
	return sv, back, true
}

// DrawTriangle rasterizes a triangle with Gouraud shading: lighting is
// computed per vertex and interpolated. Texture coordinates are
// interpolated perspective-correct.
func (r *Rasterizer) DrawTriangle(tri Triangle, shade Shade) {
	sv, back, ok := r.project(tri, shade.DoubleSided)
	if !ok {
		return
	}

	light := r.LightDir.Normalize()
	for i, v := range tri.V {
		n := v.Normal
		if back {
			n = n.Scale(-1)
		}
		sv[i].Light = Ambient + (1-Ambient)*math.Max(0, n.Dot(light))
	}

	minX := int(math.Max(0, math.Floor(min3(sv[0].X, sv[1].X, sv[2].X))))
	maxX := int(math.Min(float64(r.fb.Width-1), math.Ceil(max3(sv[0].X, sv[1].X, sv[2].X))))
	minY := int(math.Max(0, math.Floor(min3(sv[0].Y, sv[1].Y, sv[2].Y))))
	maxY := int(math.Min(float64(r.fb.Height-1), math.Ceil(max3(sv[0].Y, sv[1].Y, sv[2].Y))))

	for y := minY; y <= maxY; y++ {
		for x := minX; x <= maxX; x++ {
			bc := barycentric(sv[0].X, sv[0].Y, sv[1].X, sv[1].Y, sv[2].X, sv[2].Y, float64(x)+0.5, float64(y)+0.5)
			if bc.X < 0 || bc.Y < 0 || bc.Z < 0 {
				continue
			}

			z := bc.X*sv[0].Z + bc.Y*sv[1].Z + bc.Z*sv[2].Z
			if z >= r.depthAt(x, y) {
				continue
			}

			c := shade.Color
			if shade.Texture != nil {
				invW := bc.X*sv[0].InvW + bc.Y*sv[1].InvW + bc.Z*sv[2].InvW
				u := (bc.X*sv[0].UV.X*sv[0].InvW + bc.Y*sv[1].UV.X*sv[1].InvW + bc.Z*sv[2].UV.X*sv[2].InvW) / invW
				v := (bc.X*sv[0].UV.Y*sv[0].InvW + bc.Y*sv[1].UV.Y*sv[1].InvW + bc.Z*sv[2].UV.Y*sv[2].InvW) / invW
				c = ModulateColor(shade.Texture.Sample(u, v), c)
			}
			if c.A == 0 {
				continue
			}

			intensity := bc.X*sv[0].Light + bc.Y*sv[1].Light + bc.Z*sv[2].Light
			r.zbuffer[y*r.fb.Width+x] = z
			c = MultiplyColor(c, intensity)
			c.A = 255
			r.fb.SetPixel(x, y, c)
		}
	}
}

// DrawWireframe draws the edges of a triangle, ignoring depth.
func (r *Rasterizer) DrawWireframe(tri Triangle, color Color) {
	sv, _, ok := r.project(tri, true)
	if !ok {
		return
	}
	for i := range 3 {
		a, b := sv[i], sv[(i+1)%3]
		r.fb.DrawLine(int(a.X), int(a.Y), int(b.X), int(b.Y), color)
	}
}

// barycentric calculates barycentric coordinates for point (px, py) in triangle.
func barycentric(x0, y0, x1, y1, x2, y2, px, py float64) math3d.Vec3 {
	v0x, v0y := x2-x0, y2-y0
	v1x, v1y := x1-x0, y1-y0
	v2x, v2y := px-x0, py-y0

	dot00 := v0x*v0x + v0y*v0y
	dot01 := v0x*v1x + v0y*v1y
	dot02 := v0x*v2x + v0y*v2y
	dot11 := v1x*v1x + v1y*v1y
	dot12 := v1x*v2x + v1y*v2y

	denom := dot00*dot11 - dot01*dot01
	if denom == 0 {
		return math3d.V3(-1, -1, -1) // Degenerate
	}
	invDenom := 1.0 / denom
	u := (dot11*dot02 - dot01*dot12) * invDenom
	v := (dot00*dot12 - dot01*dot02) * invDenom

	return math3d.V3(1-u-v, v, u)
}

func min3(a, b, c float64) float64 {
	return math.Min(a, math.Min(b, c))
}

func max3(a, b, c float64) float64 {
	return math.Max(a, math.Max(b, c))
}
