// Package scene provides the scene graph podium loads models into: a tree of
// nodes with TRS transforms, mesh geometry, materials and skins.
package scene

import (
	"github.com/taigrr/podium/pkg/math3d"
)

// Kind tags what a node is, replacing runtime property probing.
type Kind int

const (
	KindGroup       Kind = iota // Transform-only node
	KindMesh                    // Static mesh
	KindSkinnedMesh             // Mesh deformed by a skin
	KindBone                    // Joint referenced by a skin
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindMesh:
		return "mesh"
	case KindSkinnedMesh:
		return "skinned-mesh"
	case KindBone:
		return "bone"
	default:
		return "group"
	}
}

// Node is an element of the scene graph.
type Node struct {
	Name string
	Kind Kind

	// Local transform (T * R * S)
	Position math3d.Vec3
	Rotation math3d.Quat
	Scale    math3d.Vec3

	Geometry *Geometry // Set for mesh kinds
	Skin     *Skin     // Set for KindSkinnedMesh

	CastShadow    bool
	ReceiveShadow bool

	Parent   *Node
	Children []*Node

	world math3d.Mat4
}

// NewNode creates a node with an identity transform.
func NewNode(name string, kind Kind) *Node {
	return &Node{
		Name:     name,
		Kind:     kind,
		Rotation: math3d.QuatIdentity(),
		Scale:    math3d.One3(),
		world:    math3d.Identity(),
	}
}

// IsMesh reports whether the node carries renderable geometry.
func (n *Node) IsMesh() bool {
	return n.Kind == KindMesh || n.Kind == KindSkinnedMesh
}

// IsSkinnedMesh reports whether the node is deformed by a skin.
func (n *Node) IsSkinnedMesh() bool {
	return n.Kind == KindSkinnedMesh
}

// Add attaches child to n, detaching it from any previous parent.
func (n *Node) Add(child *Node) {
	if child.Parent != nil {
		child.Parent.Remove(child)
	}
	child.Parent = n
	n.Children = append(n.Children, child)
}

// Remove detaches child from n. It reports whether child was found.
func (n *Node) Remove(child *Node) bool {
	for i, c := range n.Children {
		if c == child {
			n.Children = append(n.Children[:i], n.Children[i+1:]...)
			child.Parent = nil
			return true
		}
	}
	return false
}

// Traverse visits n and its descendants depth-first, parents before children.
func (n *Node) Traverse(visit func(*Node)) {
	visit(n)
	for _, c := range n.Children {
		c.Traverse(visit)
	}
}

// FindFirst returns the first node in traversal order with the given kind,
// or nil.
func (n *Node) FindFirst(kind Kind) *Node {
	if n.Kind == kind {
		return n
	}
	for _, c := range n.Children {
		if found := c.FindFirst(kind); found != nil {
			return found
		}
	}
	return nil
}

// LocalMatrix returns the node's local transform.
func (n *Node) LocalMatrix() math3d.Mat4 {
	return math3d.Compose(n.Position, n.Rotation, n.Scale)
}

// UpdateWorld recomputes cached world matrices for n and its subtree. The
// parent's cached world matrix is used as the base.
func (n *Node) UpdateWorld() {
	parent := math3d.Identity()
	if n.Parent != nil {
		parent = n.Parent.world
	}
	n.updateWorld(parent)
}

func (n *Node) updateWorld(parent math3d.Mat4) {
	n.world = parent.Mul(n.LocalMatrix())
	for _, c := range n.Children {
		c.updateWorld(n.world)
	}
}

// World returns the world matrix computed by the last UpdateWorld.
func (n *Node) World() math3d.Mat4 {
	return n.world
}
