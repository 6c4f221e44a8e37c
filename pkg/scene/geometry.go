package scene

import (
	"github.com/taigrr/podium/pkg/math3d"
)

// Geometry holds the triangles of one mesh node, in the node's local space.
type Geometry struct {
	Vertices  []Vertex
	Faces     []Face
	Materials []*Material

	// Bounding box (calculated on load)
	BoundsMin math3d.Vec3
	BoundsMax math3d.Vec3
}

// Vertex holds all vertex attributes, including skinning influences.
type Vertex struct {
	Position math3d.Vec3
	Normal   math3d.Vec3
	UV       math3d.Vec2
	Joints   [4]int     // Indices into Skin.Joints
	Weights  [4]float64 // Zero weights mean the vertex is not skinned
}

// Face represents a triangle face with vertex indices and material reference.
type Face struct {
	V        [3]int // Indices into Geometry.Vertices
	Material int    // Index into Geometry.Materials (-1 for no material)
}

// NewGeometry creates an empty geometry.
func NewGeometry() *Geometry {
	return &Geometry{
		Vertices: make([]Vertex, 0),
		Faces:    make([]Face, 0),
	}
}

// CalculateBounds computes the axis-aligned bounding box.
func (g *Geometry) CalculateBounds() {
	if len(g.Vertices) == 0 {
		return
	}

	g.BoundsMin = g.Vertices[0].Position
	g.BoundsMax = g.Vertices[0].Position

	for _, v := range g.Vertices[1:] {
		g.BoundsMin = g.BoundsMin.Min(v.Position)
		g.BoundsMax = g.BoundsMax.Max(v.Position)
	}
}

// CalculateSmoothNormals computes averaged normals for smooth shading.
func (g *Geometry) CalculateSmoothNormals() {
	for i := range g.Vertices {
		g.Vertices[i].Normal = math3d.Zero3()
	}

	// Accumulate unnormalized face normals so larger faces weigh more
	for _, f := range g.Faces {
		v0 := g.Vertices[f.V[0]].Position
		v1 := g.Vertices[f.V[1]].Position
		v2 := g.Vertices[f.V[2]].Position

		normal := v1.Sub(v0).Cross(v2.Sub(v0))
		for _, idx := range f.V {
			g.Vertices[idx].Normal = g.Vertices[idx].Normal.Add(normal)
		}
	}

	for i := range g.Vertices {
		g.Vertices[i].Normal = g.Vertices[i].Normal.Normalize()
	}
}

// HasNormals reports whether any vertex carries a usable normal.
func (g *Geometry) HasNormals() bool {
	for _, v := range g.Vertices {
		if v.Normal.Len() > 0.001 {
			return true
		}
	}
	return false
}

// TriangleCount returns the number of triangles.
func (g *Geometry) TriangleCount() int {
	return len(g.Faces)
}

// VertexCount returns the number of vertices.
func (g *Geometry) VertexCount() int {
	return len(g.Vertices)
}

// MaterialFor returns the material of face i, or nil.
func (g *Geometry) MaterialFor(i int) *Material {
	idx := g.Faces[i].Material
	if idx < 0 || idx >= len(g.Materials) {
		return nil
	}
	return g.Materials[idx]
}
