package render

import (
	"image"
	"math"

	"golang.org/x/image/draw"
)

// MaxTextureSize bounds the larger side of a sampled texture. A terminal
// frame never shows more texels than this across an avatar.
const MaxTextureSize = 256

// Texture is a decoded material image ready for sampling. Wrapping is always
// repeat, the glTF default.
type Texture struct {
	Width    int
	Height   int
	Pixels   []Color // Row-major, top row first
	Bilinear bool
}

// TextureFromImage copies img into a texture, downsampling it first when
// either side exceeds MaxTextureSize.
func TextureFromImage(img image.Image) *Texture {
	img = downsample(img, MaxTextureSize)
	bounds := img.Bounds()
	tex := &Texture{
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
		Pixels: make([]Color, bounds.Dx()*bounds.Dy()),
	}
	for y := range tex.Height {
		for x := range tex.Width {
			// RGBA returns 16-bit values, scale to 8-bit
			r, g, b, a := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			tex.Pixels[y*tex.Width+x] = Color{R: uint8(r >> 8), G: uint8(g >> 8), B: uint8(b >> 8), A: uint8(a >> 8)}
		}
	}
	return tex
}

// downsample scales img so neither side exceeds size, keeping its aspect.
func downsample(img image.Image, size int) image.Image {
	b := img.Bounds()
	if b.Dx() <= size && b.Dy() <= size {
		return img
	}
	scale := float64(size) / float64(max(b.Dx(), b.Dy()))
	w := max(1, int(math.Round(float64(b.Dx())*scale)))
	h := max(1, int(math.Round(float64(b.Dy())*scale)))
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

// GetPixel returns the pixel at (x, y) after repeat wrapping.
func (t *Texture) GetPixel(x, y int) Color {
	if t.Width == 0 || t.Height == 0 {
		return ColorWhite
	}
	return t.Pixels[wrap(y, t.Height)*t.Width+wrap(x, t.Width)]
}

// Sample samples the texture at UV coordinates. V runs bottom to top, so
// it is flipped against the image rows.
func (t *Texture) Sample(u, v float64) Color {
	u -= math.Floor(u)
	v = 1 - (v - math.Floor(v))

	if !t.Bilinear {
		return t.GetPixel(int(u*float64(t.Width)), int(v*float64(t.Height)))
	}

	fx := u*float64(t.Width) - 0.5
	fy := v*float64(t.Height) - 0.5
	x0, y0 := int(math.Floor(fx)), int(math.Floor(fy))
	tx, ty := fx-float64(x0), fy-float64(y0)

	top := lerpColor(t.GetPixel(x0, y0), t.GetPixel(x0+1, y0), tx)
	bot := lerpColor(t.GetPixel(x0, y0+1), t.GetPixel(x0+1, y0+1), tx)
	return lerpColor(top, bot, ty)
}

func wrap(x, size int) int {
	x %= size
	if x < 0 {
		x += size
	}
	return x
}

// lerpColor linearly interpolates between two colors.
func lerpColor(a, b Color, t float64) Color {
	return Color{
		R: uint8(float64(a.R) + (float64(b.R)-float64(a.R))*t),
		G: uint8(float64(a.G) + (float64(b.G)-float64(a.G))*t),
		B: uint8(float64(a.B) + (float64(b.B)-float64(a.B))*t),
		A: uint8(float64(a.A) + (float64(b.A)-float64(a.A))*t),
	}
}

// MultiplyColor multiplies a color by a scalar (for lighting).
func MultiplyColor(c Color, intensity float64) Color {
	return Color{
		R: uint8(math.Min(255, math.Round(float64(c.R)*intensity))),
		G: uint8(math.Min(255, math.Round(float64(c.G)*intensity))),
		B: uint8(math.Min(255, math.Round(float64(c.B)*intensity))),
		A: c.A,
	}
}

// ModulateColor modulates one color by another (texture * base color).
func ModulateColor(a, b Color) Color {
	return Color{
		R: uint8((int(a.R) * int(b.R)) / 255),
		G: uint8((int(a.G) * int(b.G)) / 255),
		B: uint8((int(a.B) * int(b.B)) / 255),
		A: uint8((int(a.A) * int(b.A)) / 255),
	}
}
