// podium - Terminal avatar stage
// Load one or more rigged glTF/GLB characters, play their animation and spin
// them together with the mouse.
//
// Controls:
//
//	Mouse drag  - Spin every avatar (keeps coasting after release)
//	Scroll      - Zoom in/out
//	Tab         - Select next avatar
//	+/-         - Scale selected avatar
//	[ / ]       - Lower/raise selected avatar
//	S           - Save live parameters
//	P           - Save a PNG/WebP snapshot
//	X           - Toggle wireframe mode (x-ray)
//	?           - Toggle HUD overlay
//	Esc         - Quit
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	uv "github.com/charmbracelet/ultraviolet"
	"go.uber.org/zap"

	"github.com/taigrr/podium/internal/config"
	"github.com/taigrr/podium/internal/logger"
	"github.com/taigrr/podium/internal/settings"
	"github.com/taigrr/podium/pkg/avatar"
	"github.com/taigrr/podium/pkg/interact"
	"github.com/taigrr/podium/pkg/models"
	"github.com/taigrr/podium/pkg/render"
	"github.com/taigrr/podium/pkg/stage"
)

const (
	scaleStep   = 0.1
	offsetStep  = 0.05
	zoomStep    = 0.5
	maxDistance = 20.0
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "podium - Terminal avatar stage\n\n")
		fmt.Fprintf(os.Stderr, "Usage: podium [options] [model.glb ...]\n\n")
		fmt.Fprintf(os.Stderr, "Models may be file paths or http(s) URLs. Without arguments the\n")
		fmt.Fprintf(os.Stderr, "avatars listed in the config file are loaded.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nControls:\n")
		fmt.Fprintf(os.Stderr, "  Mouse drag  - Spin avatars\n")
		fmt.Fprintf(os.Stderr, "  Scroll      - Zoom in/out\n")
		fmt.Fprintf(os.Stderr, "  Tab         - Select next avatar\n")
		fmt.Fprintf(os.Stderr, "  +/-         - Scale selected avatar\n")
		fmt.Fprintf(os.Stderr, "  [ / ]       - Lower/raise selected avatar\n")
		fmt.Fprintf(os.Stderr, "  S           - Save live parameters\n")
		fmt.Fprintf(os.Stderr, "  P           - Save snapshot (png or webp)\n")
		fmt.Fprintf(os.Stderr, "  X           - Toggle wireframe\n")
		fmt.Fprintf(os.Stderr, "  ?           - Toggle HUD overlay\n")
		fmt.Fprintf(os.Stderr, "  Esc         - Quit\n")
	}

	flags, err := config.ParseFlags(flag.CommandLine, os.Args[1:])
	if err != nil {
		os.Exit(2)
	}
	cfg, err := config.Load(flags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid config:\n%v\n\n", err)
		flag.Usage()
		os.Exit(1)
	}

	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg); err != nil {
		logger.Log.Error("podium exited", zap.Error(err))
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		logger.Sync()
		os.Exit(1)
	}
}

// openSettings returns the persistent store, or an in-memory one when
// persistence is off or unavailable.
func openSettings(cfg *config.Config) *settings.Store {
	log := logger.Named("settings")
	if !cfg.Settings.Persist {
		return settings.New(nil)
	}
	store, err := settings.Open(cfg.Settings.AppName)
	switch {
	case store == nil:
		log.Warn("settings unavailable, changes will not be saved", zap.Error(err))
		return settings.New(nil)
	case err != nil:
		log.Warn("saved settings discarded", zap.Error(err))
	default:
		log.Debug("settings loaded", zap.Int("avatars", store.Len()))
	}
	return store
}

func newLoader(cfg *config.Config) *models.Loader {
	loader := models.NewLoader(logger.Named("models"))
	loader.Source = models.AutoSource{
		HTTP: models.HTTPSource{Client: &http.Client{Timeout: cfg.Loading.HTTPTimeout}},
	}
	return loader
}

func run(cfg *config.Config) error {
	store := openSettings(cfg)
	loader := newLoader(cfg)

	avatars := make([]*avatar.Avatar, 0, len(cfg.Avatars))
	for _, spec := range cfg.Specs() {
		a := avatar.New(spec, avatar.WithLoader(loader), avatar.WithLogger(logger.Named("avatar")))
		store.Apply(a)
		avatars = append(avatars, a)
	}

	background, ok := render.ParseHex(cfg.View.Background)
	if !ok {
		return fmt.Errorf("invalid background color %q", cfg.View.Background)
	}

	// Create terminal
	term := uv.DefaultTerminal()

	width, height, err := term.GetSize()
	if err != nil {
		return fmt.Errorf("get terminal size: %w", err)
	}

	if err := term.Start(); err != nil {
		return fmt.Errorf("start terminal: %w", err)
	}

	term.EnterAltScreen()
	term.HideCursor()
	term.Resize(width, height)

	fmt.Fprint(os.Stdout, "\x1b[?1003h") // Enable any-event mouse tracking
	fmt.Fprint(os.Stdout, "\x1b[?1006h") // Enable SGR extended mouse mode
	fmt.Fprint(os.Stdout, "\x1b[?1004h") // Enable focus reporting

	renderer := render.NewSceneRenderer(width, height*2)
	renderer.Background = background
	renderer.Wireframe = cfg.View.Wireframe
	renderer.Camera.SetHeight(cfg.View.CameraHeight)
	renderer.Camera.SetDistance(cfg.View.CameraDistance)

	stg := stage.New(
		stage.WithRenderer(renderer),
		stage.WithLogger(logger.Named("stage")),
		stage.WithInteraction(
			interact.WithSensitivity(cfg.View.Sensitivity),
			interact.WithDamping(cfg.View.Damping),
		),
	)

	// Context for clean shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()

	board := newLoadBoard(avatars)
	go func() {
		if err := stg.LoadAvatars(ctx, avatars, board, cfg.Loading.MaxConcurrent); err != nil {
			logger.Log.Warn("some avatars failed to load", zap.Error(err))
		}
	}()

	// Events are handed to the frame loop so the interaction controller is
	// only touched from one goroutine.
	events := make(chan uv.Event, 64)
	go func() {
		for ev := range term.Events() {
			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	fps := cfg.View.FPS
	hud := NewHUD(cfg.View.ShowHUD)
	zoom := newEasedValue(fps, 6.0, renderer.Camera.Distance)
	zoomTarget := renderer.Camera.Distance
	progress := newEasedValue(fps, 4.0, 0)
	selected := 0
	var message string
	var messageUntil time.Time

	notify := func(msg string) {
		message = msg
		messageUntil = time.Now().Add(3 * time.Second)
	}

	selectedAvatar := func() *avatar.Avatar {
		if len(avatars) == 0 {
			return nil
		}
		return avatars[selected%len(avatars)]
	}

	handle := func(ev uv.Event) bool {
		input := stg.Input()
		switch ev := ev.(type) {
		case uv.WindowSizeEvent:
			width, height = ev.Width, ev.Height
			term.Erase()
			term.Resize(width, height)
			renderer.Resize(width, height*2)

		case uv.KeyPressEvent:
			a := selectedAvatar()
			switch {
			case ev.MatchString("escape"), ev.MatchString("ctrl+c"):
				return false
			case ev.MatchString("tab"):
				selected = (selected + 1) % max(len(avatars), 1)
			case ev.MatchString("+", "="):
				if a != nil {
					a.SetScale(a.ScaleMultiplier() + scaleStep)
				}
			case ev.MatchString("-", "_"):
				if a != nil && a.ScaleMultiplier()-scaleStep > scaleStep/2 {
					a.SetScale(a.ScaleMultiplier() - scaleStep)
				}
			case ev.MatchString("]"):
				if a != nil {
					a.SetYOffset(a.YOffset() + offsetStep)
				}
			case ev.MatchString("["):
				if a != nil {
					a.SetYOffset(a.YOffset() - offsetStep)
				}
			case ev.MatchString("s"):
				store.Capture(avatars...)
				if err := store.Save(); err != nil {
					logger.Log.Error("save settings", zap.Error(err))
					notify("save failed: " + err.Error())
				} else {
					notify("settings saved")
				}
			case ev.MatchString("p"):
				path := fmt.Sprintf("podium-%s.%s", time.Now().Format("20060102-150405"), cfg.View.SnapshotFormat)
				if err := renderer.Framebuffer().Save(path); err != nil {
					logger.Log.Error("save snapshot", zap.Error(err))
					notify("snapshot failed: " + err.Error())
				} else {
					notify("saved " + path)
				}
			case ev.MatchString("x"):
				renderer.Wireframe = !renderer.Wireframe
			case ev.MatchString("?"), ev.MatchString("shift+/"):
				hud.Visible = !hud.Visible
			}

		case uv.MouseClickEvent:
			input.PointerDown(interact.Point{X: float64(ev.X), Y: float64(ev.Y)})

		case uv.MouseMotionEvent:
			input.PointerMove(interact.Point{X: float64(ev.X), Y: float64(ev.Y)})

		case uv.MouseReleaseEvent:
			input.PointerUp()

		case uv.BlurEvent:
			input.PointerLeave()

		case uv.MouseWheelEvent:
			switch ev.Button {
			case uv.MouseWheelUp:
				zoomTarget = max(render.MinDistance, zoomTarget-zoomStep)
			case uv.MouseWheelDown:
				zoomTarget = min(maxDistance, zoomTarget+zoomStep)
			}
		}
		return true
	}

	cleanup := func() {
		fmt.Fprint(os.Stdout, "\x1b[?1004l")
		fmt.Fprint(os.Stdout, "\x1b[?1003l")
		fmt.Fprint(os.Stdout, "\x1b[?1006l")
		term.ExitAltScreen()
		term.ShowCursor()
		term.Shutdown(context.Background())
	}
	defer cleanup()

	// Main loop
	targetDuration := time.Second / time.Duration(fps)
	lastFrame := time.Now()

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		running := true
	drain:
		for running {
			select {
			case ev := <-events:
				running = handle(ev)
			default:
				break drain
			}
		}
		if !running {
			cancel()
			return nil
		}

		now := time.Now()
		dt := now.Sub(lastFrame).Seconds()
		lastFrame = now

		if dt > 0.1 {
			dt = 0.1
		}

		renderer.Camera.SetDistance(zoom.Update(zoomTarget))
		if err := stg.Tick(dt); err != nil {
			return fmt.Errorf("render: %w", err)
		}

		area := uv.Rect(0, 0, width, height)
		renderer.Framebuffer().Draw(term, area)

		fraction, pending := board.Fraction()
		shown := progress.Update(fraction)
		DrawLoading(term, width, height, shown, pending, board.Failures())

		if time.Now().After(messageUntil) {
			message = ""
		}
		hud.UpdateFPS()
		hud.Draw(term, width, height, hudState{
			selected:  selectedAvatar(),
			index:     selected,
			count:     len(avatars),
			stats:     renderer.Stats(),
			wireframe: renderer.Wireframe,
			message:   message,
		})

		if err := term.Display(); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return fmt.Errorf("display: %w", err)
		}

		// Frame timing
		elapsed := time.Since(now)
		if elapsed < targetDuration {
			time.Sleep(targetDuration - elapsed)
		}
	}
}
