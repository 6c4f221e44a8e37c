// Package models decodes glTF/GLB assets into podium scene graphs and fetches
// them from local files or http(s) URLs.
package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"

	"github.com/ftrvxmtrx/tga"
	"github.com/qmuntal/gltf"
	"go.uber.org/zap"
	"golang.org/x/image/webp"

	"github.com/taigrr/podium/pkg/anim"
	"github.com/taigrr/podium/pkg/math3d"
	"github.com/taigrr/podium/pkg/scene"
)

var (
	// ErrNoScene is returned for documents without any node to show.
	ErrNoScene = errors.New("models: document has no scene")
	// ErrUnsupportedFormat is returned when fetched bytes are neither GLB
	// nor glTF JSON.
	ErrUnsupportedFormat = errors.New("models: unsupported asset format")
)

// Asset is a decoded document: its scene subtree and embedded clips, in
// document order.
type Asset struct {
	Name  string
	Scene *scene.Node
	Clips []*anim.Clip
}

// ResourceFunc fetches an external resource referenced by uri, relative to
// the document being decoded.
type ResourceFunc func(uri string) ([]byte, error)

const extTextureWebP = "EXT_texture_webp"

var identityMatrix = [16]float64{1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1}

type decoder struct {
	doc      *gltf.Document
	log      *zap.Logger
	resource ResourceFunc
	normals  bool

	nodes     []*scene.Node
	materials []*scene.Material
	textures  map[int]*scene.Texture
	skins     map[int]*scene.Skin
}

// Decode converts doc into an Asset named name. Missing normals are computed
// when calculateNormals is set. External images are fetched with resource,
// which may be nil.
func Decode(doc *gltf.Document, name string, calculateNormals bool, resource ResourceFunc, log *zap.Logger) (*Asset, error) {
	if log == nil {
		log = zap.NewNop()
	}
	d := &decoder{
		doc:      doc,
		log:      log,
		resource: resource,
		normals:  calculateNormals,
		textures: make(map[int]*scene.Texture),
		skins:    make(map[int]*scene.Skin),
	}
	return d.decode(name)
}

func (d *decoder) decode(name string) (*Asset, error) {
	roots, err := d.sceneRoots()
	if err != nil {
		return nil, err
	}

	d.materials = make([]*scene.Material, len(d.doc.Materials))
	for i := range d.doc.Materials {
		d.materials[i] = d.material(i)
	}

	joints := make(map[int]bool)
	for _, s := range d.doc.Skins {
		for _, j := range s.Joints {
			joints[j] = true
		}
	}

	d.nodes = make([]*scene.Node, len(d.doc.Nodes))
	for i, gn := range d.doc.Nodes {
		n, err := d.node(i, gn, joints[i])
		if err != nil {
			return nil, fmt.Errorf("node %d (%s): %w", i, gn.Name, err)
		}
		d.nodes[i] = n
	}

	for i, gn := range d.doc.Nodes {
		for _, c := range gn.Children {
			if c < 0 || c >= len(d.nodes) {
				return nil, fmt.Errorf("node %d: child %d out of range", i, c)
			}
			d.nodes[i].Add(d.nodes[c])
		}
		if gn.Skin != nil {
			skin, err := d.skin(*gn.Skin)
			if err != nil {
				return nil, fmt.Errorf("node %d skin: %w", i, err)
			}
			d.nodes[i].Skin = skin
		}
	}

	root := scene.NewNode(name, scene.KindGroup)
	for _, r := range roots {
		root.Add(d.nodes[r])
	}

	clips, err := d.clips()
	if err != nil {
		return nil, err
	}

	return &Asset{Name: name, Scene: root, Clips: clips}, nil
}

// sceneRoots returns the root node indices of the default scene. Documents
// without scenes fall back to every parentless node.
func (d *decoder) sceneRoots() ([]int, error) {
	if len(d.doc.Scenes) > 0 {
		idx := 0
		if d.doc.Scene != nil {
			idx = *d.doc.Scene
		}
		if idx < 0 || idx >= len(d.doc.Scenes) {
			return nil, fmt.Errorf("%w: default scene %d out of range", ErrNoScene, idx)
		}
		roots := d.doc.Scenes[idx].Nodes
		for _, r := range roots {
			if r < 0 || r >= len(d.doc.Nodes) {
				return nil, fmt.Errorf("scene root %d out of range", r)
			}
		}
		return roots, nil
	}

	if len(d.doc.Nodes) == 0 {
		return nil, ErrNoScene
	}
	child := make([]bool, len(d.doc.Nodes))
	for _, n := range d.doc.Nodes {
		for _, c := range n.Children {
			if c >= 0 && c < len(child) {
				child[c] = true
			}
		}
	}
	var roots []int
	for i, isChild := range child {
		if !isChild {
			roots = append(roots, i)
		}
	}
	return roots, nil
}

func (d *decoder) node(i int, gn *gltf.Node, joint bool) (*scene.Node, error) {
	name := gn.Name
	if name == "" {
		name = fmt.Sprintf("node_%d", i)
	}

	kind := scene.KindGroup
	switch {
	case gn.Mesh != nil && gn.Skin != nil:
		kind = scene.KindSkinnedMesh
	case gn.Mesh != nil:
		kind = scene.KindMesh
	case joint:
		kind = scene.KindBone
	}

	n := scene.NewNode(name, kind)
	setTransform(n, gn)

	if gn.Mesh != nil {
		if *gn.Mesh < 0 || *gn.Mesh >= len(d.doc.Meshes) {
			return nil, fmt.Errorf("mesh %d out of range", *gn.Mesh)
		}
		g, err := d.geometry(d.doc.Meshes[*gn.Mesh])
		if err != nil {
			return nil, err
		}
		n.Geometry = g
	}
	return n, nil
}

func setTransform(n *scene.Node, gn *gltf.Node) {
	if gn.Matrix != identityMatrix && gn.Matrix != [16]float64{} {
		n.Position, n.Rotation, n.Scale = math3d.Mat4(gn.Matrix).Decompose()
		return
	}

	t := gn.Translation
	n.Position = math3d.V3(t[0], t[1], t[2])
	if r := gn.Rotation; r != [4]float64{} {
		n.Rotation = math3d.Quat{X: r[0], Y: r[1], Z: r[2], W: r[3]}.Normalize()
	}
	if s := gn.Scale; s != [3]float64{} {
		n.Scale = math3d.V3(s[0], s[1], s[2])
	}
}

// geometry merges every triangle primitive of m into one geometry.
func (d *decoder) geometry(m *gltf.Mesh) (*scene.Geometry, error) {
	g := scene.NewGeometry()
	local := make(map[int]int) // document material index -> geometry index

	for pi, prim := range m.Primitives {
		if prim.Mode != gltf.PrimitiveTriangles && prim.Mode != 0 {
			// Skip non-triangle primitives (lines, points, etc)
			continue
		}
		posIdx, ok := prim.Attributes[gltf.POSITION]
		if !ok {
			continue
		}

		positions, err := readPositions(d.doc, posIdx)
		if err != nil {
			return nil, fmt.Errorf("primitive %d positions: %w", pi, err)
		}
		var normals []math3d.Vec3
		if idx, ok := prim.Attributes[gltf.NORMAL]; ok {
			if normals, err = readNormals(d.doc, idx); err != nil {
				return nil, fmt.Errorf("primitive %d normals: %w", pi, err)
			}
		}
		var uvs []math3d.Vec2
		if idx, ok := prim.Attributes[gltf.TEXCOORD_0]; ok {
			if uvs, err = readUVs(d.doc, idx); err != nil {
				return nil, fmt.Errorf("primitive %d uvs: %w", pi, err)
			}
		}
		var joints [][4]int
		var weights [][4]float64
		if idx, ok := prim.Attributes[gltf.JOINTS_0]; ok {
			if joints, err = readJoints(d.doc, idx); err != nil {
				return nil, fmt.Errorf("primitive %d joints: %w", pi, err)
			}
		}
		if idx, ok := prim.Attributes[gltf.WEIGHTS_0]; ok {
			if weights, err = readWeights(d.doc, idx); err != nil {
				return nil, fmt.Errorf("primitive %d weights: %w", pi, err)
			}
		}

		matIdx := -1
		if prim.Material != nil && *prim.Material >= 0 && *prim.Material < len(d.materials) {
			li, seen := local[*prim.Material]
			if !seen {
				li = len(g.Materials)
				local[*prim.Material] = li
				g.Materials = append(g.Materials, d.materials[*prim.Material])
			}
			matIdx = li
		}

		base := len(g.Vertices)
		for i, p := range positions {
			v := scene.Vertex{Position: p}
			if i < len(normals) {
				v.Normal = normals[i]
			}
			if i < len(uvs) {
				// glTF puts V=0 at the top; flip for a bottom-left origin
				v.UV = math3d.V2(uvs[i].X, 1-uvs[i].Y)
			}
			if i < len(joints) && i < len(weights) {
				v.Joints = joints[i]
				v.Weights = weights[i]
			}
			g.Vertices = append(g.Vertices, v)
		}

		var indices []int
		if prim.Indices != nil {
			if indices, err = readIndices(d.doc, *prim.Indices); err != nil {
				return nil, fmt.Errorf("primitive %d indices: %w", pi, err)
			}
		} else {
			indices = make([]int, len(positions))
			for i := range indices {
				indices[i] = i
			}
		}

		// glTF front faces are CCW; the rasterizer's Y-flip makes them CW
		// in screen space, so swap the last two corners.
		for i := 0; i+2 < len(indices); i += 3 {
			a, b, c := indices[i], indices[i+1], indices[i+2]
			if a >= len(positions) || b >= len(positions) || c >= len(positions) {
				return nil, fmt.Errorf("primitive %d: index out of range", pi)
			}
			g.Faces = append(g.Faces, scene.Face{
				V:        [3]int{base + a, base + c, base + b},
				Material: matIdx,
			})
		}
	}

	if d.normals && !g.HasNormals() {
		g.CalculateSmoothNormals()
	}
	g.CalculateBounds()
	return g, nil
}

func (d *decoder) skin(i int) (*scene.Skin, error) {
	if s, ok := d.skins[i]; ok {
		return s, nil
	}
	if i < 0 || i >= len(d.doc.Skins) {
		return nil, fmt.Errorf("skin %d out of range", i)
	}
	gs := d.doc.Skins[i]

	s := &scene.Skin{Name: gs.Name}
	for _, j := range gs.Joints {
		if j < 0 || j >= len(d.nodes) {
			return nil, fmt.Errorf("joint %d out of range", j)
		}
		s.Joints = append(s.Joints, d.nodes[j])
	}
	if gs.InverseBindMatrices != nil {
		mats, err := readMatrices(d.doc, *gs.InverseBindMatrices)
		if err != nil {
			return nil, fmt.Errorf("inverse bind matrices: %w", err)
		}
		s.InverseBind = mats
	}
	d.skins[i] = s
	return s, nil
}

func (d *decoder) material(i int) *scene.Material {
	gm := d.doc.Materials[i]
	m := scene.NewMaterial(gm.Name)
	if gm.DoubleSided {
		m.Side = scene.SideDouble
	}
	if pbr := gm.PBRMetallicRoughness; pbr != nil {
		if pbr.BaseColorFactor != nil {
			m.BaseColor = *pbr.BaseColorFactor
		}
		if pbr.MetallicFactor != nil {
			m.Metallic = *pbr.MetallicFactor
		}
		if pbr.RoughnessFactor != nil {
			m.Roughness = *pbr.RoughnessFactor
		}
		if pbr.BaseColorTexture != nil {
			m.Map = d.texture(pbr.BaseColorTexture.Index)
		}
		if pbr.MetallicRoughnessTexture != nil {
			tex := d.texture(pbr.MetallicRoughnessTexture.Index)
			m.RoughnessMap, m.MetalnessMap = tex, tex
		}
	}
	if gm.NormalTexture != nil && gm.NormalTexture.Index != nil {
		m.NormalMap = d.texture(*gm.NormalTexture.Index)
	}
	if gm.EmissiveTexture != nil {
		m.EmissiveMap = d.texture(gm.EmissiveTexture.Index)
	}
	return m
}

// texture returns the shared texture for index i, or nil when its image
// cannot be decoded. Texture failures only degrade rendering.
func (d *decoder) texture(i int) *scene.Texture {
	if tex, ok := d.textures[i]; ok {
		return tex
	}
	var tex *scene.Texture
	if i >= 0 && i < len(d.doc.Textures) {
		src, ok := textureSource(d.doc.Textures[i])
		if !ok {
			d.textures[i] = nil
			return nil
		}
		img, err := d.image(src)
		if err != nil {
			d.log.Warn("texture image skipped", zap.Int("texture", i), zap.Error(err))
		} else {
			tex = &scene.Texture{Image: img}
		}
	}
	d.textures[i] = tex
	return tex
}

// textureSource returns the image a texture samples. EXT_texture_webp
// takes precedence over the core source.
func textureSource(t *gltf.Texture) (int, bool) {
	if raw, ok := t.Extensions[extTextureWebP]; ok {
		var ext struct {
			Source *int `json:"source"`
		}
		var data []byte
		switch v := raw.(type) {
		case json.RawMessage:
			data = v
		case []byte:
			data = v
		}
		if json.Unmarshal(data, &ext) == nil && ext.Source != nil {
			return *ext.Source, true
		}
	}
	if t.Source != nil {
		return *t.Source, true
	}
	return 0, false
}

func (d *decoder) image(i int) (image.Image, error) {
	if i < 0 || i >= len(d.doc.Images) {
		return nil, fmt.Errorf("image %d out of range", i)
	}
	gi := d.doc.Images[i]

	var data []byte
	switch {
	case gi.BufferView != nil:
		bv := d.doc.BufferViews[*gi.BufferView]
		buf := d.doc.Buffers[bv.Buffer]
		if buf.Data == nil || bv.ByteOffset+bv.ByteLength > len(buf.Data) {
			return nil, fmt.Errorf("image %d: buffer has no data", i)
		}
		data = buf.Data[bv.ByteOffset : bv.ByteOffset+bv.ByteLength]
	case gi.IsEmbeddedResource():
		var err error
		if data, err = gi.MarshalData(); err != nil {
			return nil, err
		}
	case gi.URI != "" && d.resource != nil:
		var err error
		if data, err = d.resource(gi.URI); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("image %d has no reachable data", i)
	}

	return decodeImage(data, gi.MimeType)
}

// decodeImage picks the codec from the magic bytes, then the declared MIME
// type. TGA has no signature, so it is only tried last.
func decodeImage(data []byte, mimeType string) (image.Image, error) {
	r := bytes.NewReader(data)
	switch {
	case bytes.HasPrefix(data, []byte("\x89PNG\r\n\x1a\n")):
		return png.Decode(r)
	case bytes.HasPrefix(data, []byte{0xff, 0xd8, 0xff}):
		return jpeg.Decode(r)
	case len(data) >= 12 && string(data[:4]) == "RIFF" && string(data[8:12]) == "WEBP":
		return webp.Decode(r)
	}
	switch mimeType {
	case "image/png":
		return png.Decode(r)
	case "image/jpeg":
		return jpeg.Decode(r)
	case "image/webp":
		return webp.Decode(r)
	}
	img, err := tga.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("%w: unrecognized image data", err)
	}
	return img, nil
}

func (d *decoder) clips() ([]*anim.Clip, error) {
	var clips []*anim.Clip
	for ai, ga := range d.doc.Animations {
		var tracks []anim.Track
		for ci, ch := range ga.Channels {
			if ch.Target.Node == nil {
				continue
			}
			path, ok := trackPath(ch.Target.Path)
			if !ok {
				// Morph target weights are not animated
				continue
			}
			if *ch.Target.Node < 0 || *ch.Target.Node >= len(d.nodes) {
				return nil, fmt.Errorf("animation %d channel %d: node out of range", ai, ci)
			}
			if ch.Sampler < 0 || ch.Sampler >= len(ga.Samplers) {
				return nil, fmt.Errorf("animation %d channel %d: sampler out of range", ai, ci)
			}
			s := ga.Samplers[ch.Sampler]

			times, err := readFloats(d.doc, s.Input)
			if err != nil {
				return nil, fmt.Errorf("animation %d channel %d input: %w", ai, ci, err)
			}
			values, err := readFloats(d.doc, s.Output)
			if err != nil {
				return nil, fmt.Errorf("animation %d channel %d output: %w", ai, ci, err)
			}

			tracks = append(tracks, anim.Track{
				Node:          d.nodes[*ch.Target.Node].Name,
				Path:          path,
				Interpolation: interpolation(s.Interpolation),
				Times:         times,
				Values:        values,
			})
		}
		if len(tracks) == 0 {
			d.log.Debug("animation without node tracks skipped", zap.Int("animation", ai), zap.String("name", ga.Name))
			continue
		}
		clips = append(clips, anim.NewClip(ga.Name, tracks))
	}
	return clips, nil
}

func trackPath(p gltf.TRSProperty) (anim.Path, bool) {
	switch p {
	case gltf.TRSTranslation:
		return anim.PathTranslation, true
	case gltf.TRSRotation:
		return anim.PathRotation, true
	case gltf.TRSScale:
		return anim.PathScale, true
	}
	return 0, false
}

func interpolation(i gltf.Interpolation) anim.Interpolation {
	switch i {
	case gltf.InterpolationStep:
		return anim.InterpolationStep
	case gltf.InterpolationCubicSpline:
		return anim.InterpolationCubicSpline
	}
	return anim.InterpolationLinear
}
