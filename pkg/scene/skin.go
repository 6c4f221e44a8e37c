package scene

import (
	"github.com/taigrr/podium/pkg/math3d"
)

// Skin binds a mesh to a joint hierarchy.
type Skin struct {
	Name        string
	Joints      []*Node
	InverseBind []math3d.Mat4 // One per joint; identity when absent
}

// JointMatrices returns joint world * inverse bind for every joint. World
// matrices must be current.
func (s *Skin) JointMatrices() []math3d.Mat4 {
	out := make([]math3d.Mat4, len(s.Joints))
	for i, j := range s.Joints {
		inv := math3d.Identity()
		if i < len(s.InverseBind) {
			inv = s.InverseBind[i]
		}
		out[i] = j.World().Mul(inv)
	}
	return out
}

// Deform returns world-space positions and normals of g posed by the skin.
// Vertices without weights fall back to the mesh node's world matrix.
func (s *Skin) Deform(g *Geometry, fallback math3d.Mat4) ([]math3d.Vec3, []math3d.Vec3) {
	joints := s.JointMatrices()
	positions := make([]math3d.Vec3, len(g.Vertices))
	normals := make([]math3d.Vec3, len(g.Vertices))

	for i, v := range g.Vertices {
		var m math3d.Mat4
		var total float64
		for k := range 4 {
			w := v.Weights[k]
			j := v.Joints[k]
			if w == 0 || j < 0 || j >= len(joints) {
				continue
			}
			total += w
			for e := range m {
				m[e] += joints[j][e] * w
			}
		}
		if total == 0 {
			m = fallback
		}
		positions[i] = m.MulVec3(v.Position)
		normals[i] = m.MulVec3Dir(v.Normal).Normalize()
	}
	return positions, normals
}
