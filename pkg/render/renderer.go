package render

import (
	"github.com/taigrr/podium/pkg/math3d"
	"github.com/taigrr/podium/pkg/scene"
)

// Stats counts what the last frame drew.
type Stats struct {
	Meshes    int // Mesh nodes visited
	Culled    int // Meshes outside the view frustum
	Triangles int // Triangles submitted to the rasterizer
}

// SceneRenderer draws avatar scene graphs into a framebuffer. It is used
// from the frame loop goroutine only.
type SceneRenderer struct {
	Camera     *Camera
	Background Color
	Wireframe  bool

	fb     *Framebuffer
	raster *Rasterizer
	stats  Stats

	textures map[*scene.Texture]*Texture
	shades   map[*scene.Material]Shade
}

// NewSceneRenderer creates a renderer with a width x height pixel
// framebuffer.
func NewSceneRenderer(width, height int) *SceneRenderer {
	r := &SceneRenderer{
		Camera:     NewCamera(),
		Background: ColorBackdrop,
		fb:         NewFramebuffer(width, height),
		textures:   make(map[*scene.Texture]*Texture),
		shades:     make(map[*scene.Material]Shade),
	}
	r.raster = NewRasterizer(r.Camera, r.fb)
	r.Resize(width, height)
	return r
}

// Resize adjusts the framebuffer and camera aspect to a new pixel size.
func (r *SceneRenderer) Resize(width, height int) {
	r.fb.Resize(width, height)
	r.raster.Resize()
	if width > 0 && height > 0 {
		r.Camera.SetAspectRatio(float64(width) / float64(height))
	}
}

// Framebuffer returns the frame being drawn into.
func (r *SceneRenderer) Framebuffer() *Framebuffer {
	return r.fb
}

// Rasterizer returns the underlying rasterizer, e.g. to move the light.
func (r *SceneRenderer) Rasterizer() *Rasterizer {
	return r.raster
}

// Stats returns the counters of the last Render.
func (r *SceneRenderer) Stats() Stats {
	return r.stats
}

// Render clears the frame and draws every mesh under roots. World matrices
// must be current. Skinned meshes are posed by their skin.
func (r *SceneRenderer) Render(roots []*scene.Node) error {
	r.fb.Clear(r.Background)
	r.raster.ClearDepth()
	r.stats = Stats{}
	if r.fb.Width == 0 || r.fb.Height == 0 {
		return nil
	}

	frustum := NewFrustum(r.Camera.ViewProjectionMatrix())
	for _, root := range roots {
		root.Traverse(func(n *scene.Node) {
			if n.IsMesh() && n.Geometry != nil {
				r.drawMesh(n, frustum)
			}
		})
	}
	return nil
}

func (r *SceneRenderer) drawMesh(n *scene.Node, frustum Frustum) {
	g := n.Geometry
	r.stats.Meshes++

	positions, normals := posed(n)
	lo, hi, ok := pointBounds(positions)
	if !ok || !frustum.IntersectBounds(lo, hi) {
		r.stats.Culled++
		return
	}

	for i, f := range g.Faces {
		var tri Triangle
		for k, idx := range f.V {
			tri.V[k] = Vertex{Position: positions[idx], Normal: normals[idx], UV: g.Vertices[idx].UV}
		}
		r.stats.Triangles++
		if r.Wireframe {
			r.raster.DrawWireframe(tri, ColorWireframe)
			continue
		}
		r.raster.DrawTriangle(tri, r.shade(g.MaterialFor(i)))
	}
}

// posed returns world-space positions and normals of a mesh node.
func posed(n *scene.Node) ([]math3d.Vec3, []math3d.Vec3) {
	g := n.Geometry
	if n.IsSkinnedMesh() && n.Skin != nil {
		return n.Skin.Deform(g, n.World())
	}

	world := n.World()
	positions := make([]math3d.Vec3, len(g.Vertices))
	normals := make([]math3d.Vec3, len(g.Vertices))
	for i, v := range g.Vertices {
		positions[i] = world.MulVec3(v.Position)
		normals[i] = world.MulVec3Dir(v.Normal).Normalize()
	}
	return positions, normals
}

// shade returns the cached raster state for m, rebuilding it when the
// material or one of its textures was flagged for update.
func (r *SceneRenderer) shade(m *scene.Material) Shade {
	if m == nil {
		return Shade{Color: ColorWhite}
	}
	if s, ok := r.shades[m]; ok && !m.NeedsUpdate && (m.Map == nil || !m.Map.NeedsUpdate) {
		return s
	}

	s := Shade{
		Color:       LinearToSRGB(m.BaseColor),
		DoubleSided: m.Side == scene.SideDouble,
	}
	if m.Map != nil && m.Map.Image != nil {
		s.Texture = r.texture(m.Map)
	}
	m.NeedsUpdate = false
	r.shades[m] = s
	return s
}

func (r *SceneRenderer) texture(t *scene.Texture) *Texture {
	if tex, ok := r.textures[t]; ok && !t.NeedsUpdate {
		return tex
	}
	tex := TextureFromImage(t.Image)
	tex.Bilinear = true
	t.NeedsUpdate = false
	r.textures[t] = tex
	return tex
}
