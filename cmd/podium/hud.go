package main

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"charm.land/lipgloss/v2"
	uv "github.com/charmbracelet/ultraviolet"

	"github.com/taigrr/podium/pkg/avatar"
	"github.com/taigrr/podium/pkg/render"
)

var (
	hudBar    = lipgloss.NewStyle().Background(lipgloss.Color("#000000")).Foreground(lipgloss.Color("#f0f0f0")).Padding(0, 1)
	hudFPS    = hudBar.Foreground(lipgloss.Color("#5fff87"))
	hudTitle  = hudBar.Bold(true)
	hudStats  = hudBar.Foreground(lipgloss.Color("#5fd7ff"))
	hudHint   = hudBar.Faint(true).Foreground(lipgloss.Color("#ffd75f"))
	hudError  = hudBar.Foreground(lipgloss.Color("#ff5f5f"))
	barFilled = lipgloss.NewStyle().Foreground(lipgloss.Color("#00ffb4"))
	barEmpty  = lipgloss.NewStyle().Foreground(lipgloss.Color("#3a3a4a"))
)

// HUD draws the overlay rows on top of the rendered frame.
type HUD struct {
	Visible bool

	fps       float64
	fpsFrames int
	fpsTime   time.Time
}

// NewHUD creates a HUD.
func NewHUD(visible bool) *HUD {
	return &HUD{Visible: visible, fpsTime: time.Now()}
}

// UpdateFPS updates the FPS counter (call once per frame)
func (h *HUD) UpdateFPS() {
	h.fpsFrames++
	elapsed := time.Since(h.fpsTime)
	if elapsed >= time.Second {
		h.fps = float64(h.fpsFrames) / elapsed.Seconds()
		h.fpsFrames = 0
		h.fpsTime = time.Now()
	}
}

// hudState is what the HUD shows for one frame.
type hudState struct {
	selected  *avatar.Avatar
	index     int
	count     int
	stats     render.Stats
	wireframe bool
	message   string
}

// Draw renders the top and bottom rows onto scr.
func (h *HUD) Draw(scr uv.Screen, width, height int, s hudState) {
	if !h.Visible || width <= 0 || height <= 0 {
		return
	}

	top := hudFPS.Render(fmt.Sprintf("%.0f FPS", h.fps))
	if s.selected != nil {
		title := fmt.Sprintf("[%d/%d] %s", s.index+1, s.count, filepath.Base(s.selected.Spec().ModelPath))
		top += hudTitle.Render(title)
		top += hudBar.Render(fmt.Sprintf("scale %.2f  y %+.2f  anim %s",
			s.selected.ScaleMultiplier(), s.selected.YOffset(), s.selected.Resolution().State))
	}
	top += hudStats.Render(fmt.Sprintf("%d tris  %d culled", s.stats.Triangles, s.stats.Culled))
	drawLine(scr, 0, width, top)

	check := "[ ]"
	if s.wireframe {
		check = "[✓]"
	}
	bottom := hudBar.Render(check + " X-Ray (wireframe)")
	if s.message != "" {
		bottom += hudHint.Render(s.message)
	} else {
		bottom += hudHint.Render("tab: select  +/-: scale  [/]: height  s: save  p: snapshot")
	}
	drawLine(scr, height-1, width, bottom)
}

// DrawLoading renders a centered progress bar while avatars load, plus any
// load failures below it.
func DrawLoading(scr uv.Screen, width, height int, fraction float64, pending bool, failures []string) {
	if width <= 0 || height <= 0 {
		return
	}
	row := height / 2
	if pending {
		barWidth := min(40, max(width-12, 4))
		filled := int(fraction*float64(barWidth) + 0.5)
		filled = min(max(filled, 0), barWidth)
		bar := barFilled.Render(strings.Repeat("█", filled)) +
			barEmpty.Render(strings.Repeat("░", barWidth-filled)) +
			hudBar.Render(fmt.Sprintf("%3.0f%%", fraction*100))
		drawCentered(scr, row, width, bar)
		row++
	}
	for _, f := range failures {
		if row >= height-1 {
			break
		}
		drawCentered(scr, row, width, hudError.Render(f))
		row++
	}
}

func drawLine(scr uv.Screen, row, width int, s string) {
	uv.NewStyledString(s).Draw(scr, uv.Rect(0, row, width, 1))
}

func drawCentered(scr uv.Screen, row, width int, s string) {
	w := lipgloss.Width(s)
	x := max((width-w)/2, 0)
	uv.NewStyledString(s).Draw(scr, uv.Rect(x, row, min(w, width), 1))
}
