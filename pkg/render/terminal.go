package render

import (
	"image/color"
	"math"
	"strings"

	uv "github.com/charmbracelet/ultraviolet"
	"github.com/lucasb-eyer/go-colorful"
)

// Draw converts the internal framebuffer to terminal cells and draws them on
// the screen.
// The framebuffer height should be 2x the terminal height.
func (fb *Framebuffer) Draw(scr uv.Screen, area uv.Rectangle) {
	// Each terminal row holds two framebuffer rows: ▀ with fg=top, bg=bottom
	for row := area.Min.Y; row < area.Max.Y; row++ {
		topY := (row - area.Min.Y) * 2
		botY := topY + 1

		for col := area.Min.X; col < area.Max.X; col++ {
			x := col - area.Min.X
			if x >= fb.Width {
				break
			}
			scr.SetCell(col, row, &uv.Cell{
				Content: "▀",
				Width:   1,
				Style: uv.Style{
					Fg: rgbaToColor(fb.GetPixel(x, topY)),
					Bg: rgbaToColor(fb.GetPixel(x, botY)),
				},
			})
		}
	}
}

// rgbaToColor converts color.RGBA to Go's color.Color interface.
func rgbaToColor(c color.RGBA) color.Color {
	if c.A == 0 {
		return nil // Transparent = no color
	}
	return c
}

// Color is an alias for color.RGBA for convenience.
type Color = color.RGBA

// Palette used by the viewer.
var (
	ColorBlack     = color.RGBA{0, 0, 0, 255}
	ColorWhite     = color.RGBA{255, 255, 255, 255}
	ColorWireframe = color.RGBA{0, 255, 180, 255}
	ColorBackdrop  = color.RGBA{24, 24, 32, 255}
)

// RGB creates a color from RGB values.
func RGB(r, g, b uint8) color.RGBA {
	return color.RGBA{r, g, b, 255}
}

// LinearToSRGB converts a linear 0-1 RGBA factor, as stored in glTF
// materials, to a display color.
func LinearToSRGB(c [4]float64) Color {
	r, g, b := colorful.LinearRgb(c[0], c[1], c[2]).Clamped().RGB255()
	return Color{R: r, G: g, B: b, A: uint8(math.Round(math.Max(0, math.Min(1, c[3])) * 255))}
}

// ParseHex parses a CSS-style hex color, with or without the leading #.
func ParseHex(s string) (Color, bool) {
	if !strings.HasPrefix(s, "#") {
		s = "#" + s
	}
	c, err := colorful.Hex(s)
	if err != nil {
		return Color{}, false
	}
	r, g, b := c.RGB255()
	return RGB(r, g, b), true
}
