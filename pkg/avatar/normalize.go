package avatar

import (
	"github.com/taigrr/podium/pkg/math3d"
	"github.com/taigrr/podium/pkg/scene"
)

// ReferenceSize is the length the largest bounding-box dimension of every
// model is scaled to.
const ReferenceSize = 2.0

// NormalizedTransform is derived once from a model's own geometry.
type NormalizedTransform struct {
	BaseScale   float64
	BaseYOffset float64
}

// Normalize centers root on the origin, scales its largest dimension to
// ReferenceSize times the spec's scale multiplier and applies the vertical
// and planar offsets. root must not be attached to a parent.
//
// Position and scale are reset before measuring, so repeated calls with the
// same spec give the same result.
func Normalize(root *scene.Node, spec AssetSpec) NormalizedTransform {
	root.Position = math3d.Zero3()
	root.Scale = math3d.One3()

	box := scene.ComputeBounds(root)
	maxDim := box.Size().MaxComponent()
	if maxDim == 0 {
		maxDim = 1
	}
	base := ReferenceSize / maxDim

	// Centering happens in scaled space so the box center lands on the
	// origin once the base scale is applied. A multiplier other than 1
	// scales about that origin, not about the box center.
	root.Position = box.Center().Scale(-base)
	root.Scale = math3d.One3().Scale(base * coerceScale(spec.ScaleMultiplier))

	t := NormalizedTransform{BaseScale: base, BaseYOffset: root.Position.Y}
	root.Position.Y = t.BaseYOffset + coerceOffset(spec.YOffsetMultiplier)
	root.Position.X += spec.Offset.X
	root.Position.Z += spec.Offset.Z
	root.UpdateWorld()
	return t
}

// prepareMeshes flags every mesh for shadows and refreshes each reachable
// material once.
func prepareMeshes(root *scene.Node) {
	seen := make(map[*scene.Material]bool)
	root.Traverse(func(n *scene.Node) {
		if !n.IsMesh() {
			return
		}
		n.CastShadow = true
		n.ReceiveShadow = true
		if n.Geometry == nil {
			return
		}
		for _, m := range n.Geometry.Materials {
			if m != nil && !seen[m] {
				seen[m] = true
				m.Refresh()
			}
		}
	})
}
