package config

import (
	"flag"
	"time"
)

// Flags holds command-line overrides. Zero values leave the config alone.
type Flags struct {
	Config     string
	Anim       string
	Debug      bool
	LogFile    string
	FPS        int
	Background string
	Wireframe  bool
	NoPersist  bool
	Timeout    time.Duration
	Models     []string // Positional arguments
}

// ParseFlags parses args (without the program name) into Flags.
func ParseFlags(fs *flag.FlagSet, args []string) (*Flags, error) {
	f := &Flags{}
	fs.StringVar(&f.Config, "config", "", "Path to config file")
	fs.StringVar(&f.Anim, "anim", "", "External animation file or URL applied to every model argument")
	fs.BoolVar(&f.Debug, "debug", false, "Enable debug logging")
	fs.StringVar(&f.LogFile, "log", "", "Write logs to this file")
	fs.IntVar(&f.FPS, "fps", 0, "Target frames per second")
	fs.StringVar(&f.Background, "bg", "", "Background color (hex)")
	fs.BoolVar(&f.Wireframe, "wireframe", false, "Start in wireframe mode")
	fs.BoolVar(&f.NoPersist, "no-persist", false, "Do not load or save live parameters")
	fs.DurationVar(&f.Timeout, "timeout", 0, "HTTP timeout for remote models")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	f.Models = fs.Args()
	return f, nil
}

// applyFlags applies CLI flag overrides to the config.
func applyFlags(cfg *Config, f *Flags) {
	if f == nil {
		return
	}
	if len(f.Models) > 0 {
		cfg.Layout(f.Models, f.Anim)
	} else if f.Anim != "" {
		for i := range cfg.Avatars {
			cfg.Avatars[i].Anim = f.Anim
		}
	}
	if f.Debug {
		cfg.Logging.Level = "debug"
	}
	if f.LogFile != "" {
		cfg.Logging.LogFile = f.LogFile
	}
	if f.FPS > 0 {
		cfg.View.FPS = f.FPS
	}
	if f.Background != "" {
		cfg.View.Background = f.Background
	}
	if f.Wireframe {
		cfg.View.Wireframe = true
	}
	if f.NoPersist {
		cfg.Settings.Persist = false
	}
	if f.Timeout > 0 {
		cfg.Loading.HTTPTimeout = f.Timeout
	}
}
