package scene

import (
	"github.com/taigrr/podium/pkg/math3d"
)

// Box is an axis-aligned bounding box. The zero value is empty.
type Box struct {
	Min, Max math3d.Vec3
	valid    bool
}

// ExpandByPoint grows the box to contain p.
func (b *Box) ExpandByPoint(p math3d.Vec3) {
	if !b.valid {
		b.Min, b.Max, b.valid = p, p, true
		return
	}
	b.Min = b.Min.Min(p)
	b.Max = b.Max.Max(p)
}

// IsEmpty reports whether no point was ever added.
func (b Box) IsEmpty() bool {
	return !b.valid
}

// Center returns the center of the box, or the origin when empty.
func (b Box) Center() math3d.Vec3 {
	if !b.valid {
		return math3d.Zero3()
	}
	return b.Min.Add(b.Max).Scale(0.5)
}

// Size returns the box dimensions, or zero when empty.
func (b Box) Size() math3d.Vec3 {
	if !b.valid {
		return math3d.Zero3()
	}
	return b.Max.Sub(b.Min)
}

// ComputeBounds returns the world-space bounding box of every mesh vertex in
// the subtree rooted at root, in bind pose. World matrices are refreshed
// first.
func ComputeBounds(root *Node) Box {
	root.UpdateWorld()

	var box Box
	root.Traverse(func(n *Node) {
		if !n.IsMesh() || n.Geometry == nil {
			return
		}
		world := n.World()
		for _, v := range n.Geometry.Vertices {
			box.ExpandByPoint(world.MulVec3(v.Position))
		}
	})
	return box
}
