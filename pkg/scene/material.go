package scene

import "image"

// ColorSpace tells the renderer how to interpret texel values.
type ColorSpace int

const (
	ColorSpaceLinear ColorSpace = iota
	ColorSpaceSRGB
)

// Side selects which triangle faces a material renders.
type Side int

const (
	SideFront Side = iota
	SideBack
	SideDouble
)

// Texture is an image bound to a material slot.
type Texture struct {
	Image       image.Image
	ColorSpace  ColorSpace
	NeedsUpdate bool
}

// Material represents a PBR material from glTF.
type Material struct {
	Name      string
	BaseColor [4]float64 // RGBA in 0-1 range
	Metallic  float64    // 0 = dielectric, 1 = metal
	Roughness float64    // 0 = smooth, 1 = rough
	Side      Side

	Map          *Texture // Base color
	NormalMap    *Texture
	RoughnessMap *Texture
	MetalnessMap *Texture
	EmissiveMap  *Texture

	// NeedsUpdate asks the renderer to rebuild any cached state for the
	// material before its next draw.
	NeedsUpdate bool
}

// NewMaterial returns a white, fully rough dielectric material.
func NewMaterial(name string) *Material {
	return &Material{
		Name:      name,
		BaseColor: [4]float64{1, 1, 1, 1},
		Roughness: 1,
	}
}

// Refresh flags the material and its textures for a renderer update. Color
// maps are tagged sRGB and the material is forced front-sided.
func (m *Material) Refresh() {
	m.NeedsUpdate = true
	if m.Map != nil {
		m.Map.ColorSpace = ColorSpaceSRGB
		m.Map.NeedsUpdate = true
	}
	for _, tex := range []*Texture{m.NormalMap, m.RoughnessMap, m.MetalnessMap} {
		if tex != nil {
			tex.NeedsUpdate = true
		}
	}
	if m.EmissiveMap != nil {
		m.EmissiveMap.ColorSpace = ColorSpaceSRGB
		m.EmissiveMap.NeedsUpdate = true
	}
	m.Side = SideFront
}
