// Package fixture builds small glTF documents for tests: boxes, a rigged
// figure with a skinned body, and animation-only clip files.
package fixture

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
)

// Box returns a document with a single mesh node spanning min..max.
func Box(name string, min, max [3]float32) *gltf.Document {
	doc := gltf.NewDocument()
	mesh := addBoxMesh(doc, name, min, max, false)
	node := addNode(doc, &gltf.Node{Name: name, Mesh: gltf.Index(mesh)})
	doc.Scenes[0].Nodes = append(doc.Scenes[0].Nodes, node)
	return doc
}

// Rig describes a rigged figure.
type Rig struct {
	BonePrefix   string     // Prepended to bone names, e.g. "mixamorig:"
	Min, Max     [3]float32 // Body extents
	EmbeddedClip string     // Name of an embedded clip; empty for none
}

// Rigged returns a document shaped like exported character models:
//
//	Armature (group)
//	├── Hips (bone)
//	│   └── Spine (bone)
//	└── Body (skinned mesh over Hips and Spine)
func Rigged(r Rig) *gltf.Document {
	doc := gltf.NewDocument()

	spine := addNode(doc, &gltf.Node{Name: r.BonePrefix + "Spine", Translation: [3]float64{0, 0.5, 0}})
	hips := addNode(doc, &gltf.Node{Name: r.BonePrefix + "Hips", Children: []int{spine}})

	mesh := addBoxMesh(doc, "Body", r.Min, r.Max, true)
	ibm := modeler.WriteAccessor(doc, gltf.TargetNone, [][4][4]float32{
		identity(),
		translation(0, -0.5, 0),
	})
	doc.Skins = append(doc.Skins, &gltf.Skin{
		Name:                "Skeleton",
		Joints:              []int{hips, spine},
		InverseBindMatrices: gltf.Index(ibm),
	})
	body := addNode(doc, &gltf.Node{Name: "Body", Mesh: gltf.Index(mesh), Skin: gltf.Index(0)})

	armature := addNode(doc, &gltf.Node{Name: "Armature", Children: []int{hips, body}})
	doc.Scenes[0].Nodes = append(doc.Scenes[0].Nodes, armature)

	if r.EmbeddedClip != "" {
		AddClip(doc, r.EmbeddedClip, hips)
	}
	return doc
}

// AnimationOnly returns a document holding bare bone nodes and one clip
// named clip that translates every bone.
func AnimationOnly(clip string, bones ...string) *gltf.Document {
	doc := gltf.NewDocument()
	var nodes []int
	for _, b := range bones {
		n := addNode(doc, &gltf.Node{Name: b})
		nodes = append(nodes, n)
		doc.Scenes[0].Nodes = append(doc.Scenes[0].Nodes, n)
	}
	AddClip(doc, clip, nodes...)
	return doc
}

// Empty returns a document with a scene but no clips or meshes.
func Empty() *gltf.Document {
	doc := gltf.NewDocument()
	n := addNode(doc, &gltf.Node{Name: "Empty"})
	doc.Scenes[0].Nodes = append(doc.Scenes[0].Nodes, n)
	return doc
}

// AddClip appends a one-second clip sliding each node 1 unit along X.
func AddClip(doc *gltf.Document, name string, nodes ...int) {
	input := modeler.WriteAccessor(doc, gltf.TargetNone, []float32{0, 1})
	output := modeler.WriteAccessor(doc, gltf.TargetNone, [][3]float32{{0, 0, 0}, {1, 0, 0}})

	a := &gltf.Animation{Name: name}
	a.Samplers = append(a.Samplers, &gltf.AnimationSampler{
		Input:         input,
		Output:        output,
		Interpolation: gltf.InterpolationLinear,
	})
	for _, n := range nodes {
		a.Channels = append(a.Channels, &gltf.AnimationChannel{
			Sampler: 0,
			Target:  gltf.AnimationChannelTarget{Node: gltf.Index(n), Path: gltf.TRSTranslation},
		})
	}
	doc.Animations = append(doc.Animations, a)
}

// Texture embeds an encoded image and makes it the base color map of every
// material in doc. WebP images are referenced through EXT_texture_webp the
// way exporters write them.
func Texture(tb testing.TB, doc *gltf.Document, mimeType string, encoded []byte) {
	tb.Helper()
	img, err := modeler.WriteImage(doc, "albedo", mimeType, bytes.NewReader(encoded))
	if err != nil {
		tb.Fatalf("write image: %v", err)
	}
	tex := &gltf.Texture{Source: gltf.Index(img)}
	if mimeType == "image/webp" {
		tex.Source = nil
		tex.Extensions = gltf.Extensions{
			"EXT_texture_webp": json.RawMessage(fmt.Sprintf(`{"source":%d}`, img)),
		}
		doc.ExtensionsUsed = append(doc.ExtensionsUsed, "EXT_texture_webp")
	}
	doc.Textures = append(doc.Textures, tex)
	for _, m := range doc.Materials {
		m.PBRMetallicRoughness.BaseColorTexture = &gltf.TextureInfo{Index: len(doc.Textures) - 1}
	}
}

// Save writes doc as GLB under dir and returns its path.
func Save(tb testing.TB, dir, name string, doc *gltf.Document) string {
	tb.Helper()
	p := filepath.Join(dir, name)
	if err := gltf.SaveBinary(doc, p); err != nil {
		tb.Fatalf("save %s: %v", name, err)
	}
	return p
}

// SaveSplit writes doc as JSON glTF under dir with its buffer in a
// separate .bin file next to it, and returns the .gltf path.
func SaveSplit(tb testing.TB, dir, name string, doc *gltf.Document) string {
	tb.Helper()
	bin := strings.TrimSuffix(name, filepath.Ext(name)) + ".bin"
	buf := doc.Buffers[0]
	if err := os.WriteFile(filepath.Join(dir, bin), buf.Data, 0o644); err != nil {
		tb.Fatalf("write %s: %v", bin, err)
	}
	buf.URI = bin
	data, err := json.Marshal(doc)
	if err != nil {
		tb.Fatalf("marshal %s: %v", name, err)
	}
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, data, 0o644); err != nil {
		tb.Fatalf("write %s: %v", name, err)
	}
	return p
}

func addNode(doc *gltf.Document, n *gltf.Node) int {
	doc.Nodes = append(doc.Nodes, n)
	return len(doc.Nodes) - 1
}

// addBoxMesh writes the 8 corners and 12 triangles of a box. Skinned boxes
// bind the lower half to joint 0 and the upper half to joint 1.
func addBoxMesh(doc *gltf.Document, name string, lo, hi [3]float32, skinned bool) int {
	var corners [][3]float32
	var joints [][4]uint8
	var weights [][4]float32
	for _, x := range []float32{lo[0], hi[0]} {
		for _, y := range []float32{lo[1], hi[1]} {
			for _, z := range []float32{lo[2], hi[2]} {
				corners = append(corners, [3]float32{x, y, z})
				j := uint8(0)
				if y == hi[1] {
					j = 1
				}
				joints = append(joints, [4]uint8{j, 0, 0, 0})
				weights = append(weights, [4]float32{1, 0, 0, 0})
			}
		}
	}
	indices := []uint16{
		0, 1, 3, 0, 3, 2, // -x
		4, 6, 7, 4, 7, 5, // +x
		0, 4, 5, 0, 5, 1, // -y
		2, 3, 7, 2, 7, 6, // +y
		0, 2, 6, 0, 6, 4, // -z
		1, 5, 7, 1, 7, 3, // +z
	}

	attrs := map[string]int{
		gltf.POSITION: modeler.WritePosition(doc, corners),
	}
	if skinned {
		attrs[gltf.JOINTS_0] = modeler.WriteJoints(doc, joints)
		attrs[gltf.WEIGHTS_0] = modeler.WriteWeights(doc, weights)
	}

	doc.Materials = append(doc.Materials, &gltf.Material{
		Name:        name + "-material",
		DoubleSided: true,
		PBRMetallicRoughness: &gltf.PBRMetallicRoughness{
			BaseColorFactor: &[4]float64{0.8, 0.6, 0.4, 1},
		},
	})
	doc.Meshes = append(doc.Meshes, &gltf.Mesh{
		Name: name,
		Primitives: []*gltf.Primitive{{
			Indices:    gltf.Index(modeler.WriteIndices(doc, indices)),
			Attributes: attrs,
			Material:   gltf.Index(len(doc.Materials) - 1),
		}},
	})
	return len(doc.Meshes) - 1
}

func identity() [4][4]float32 {
	return [4][4]float32{{1, 0, 0, 0}, {0, 1, 0, 0}, {0, 0, 1, 0}, {0, 0, 0, 1}}
}

// translation returns a column-major translation matrix.
func translation(x, y, z float32) [4][4]float32 {
	m := identity()
	m[3] = [4]float32{x, y, z, 1}
	return m
}
