// Package config handles viewer configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/taigrr/podium/pkg/avatar"
	"github.com/taigrr/podium/pkg/interact"
)

// Spacing is the gap between avatar centers when laid out automatically.
const Spacing = 3.0

// Config holds all viewer settings.
type Config struct {
	Avatars  []AvatarConfig `yaml:"avatars"`
	View     ViewConfig     `yaml:"view"`
	Loading  LoadingConfig  `yaml:"loading"`
	Logging  LoggingConfig  `yaml:"logging"`
	Settings SettingsConfig `yaml:"settings"`
}

// AvatarConfig describes one avatar on stage.
type AvatarConfig struct {
	Model   string  `yaml:"model"`
	Anim    string  `yaml:"anim,omitempty"`
	X       float64 `yaml:"x"`
	Z       float64 `yaml:"z"`
	Scale   float64 `yaml:"scale,omitempty"`
	YOffset float64 `yaml:"y_offset,omitempty"`
}

// Spec converts the entry into an avatar.AssetSpec.
func (a AvatarConfig) Spec() avatar.AssetSpec {
	return avatar.AssetSpec{
		ModelPath:         a.Model,
		AnimPath:          a.Anim,
		Offset:            avatar.Offset{X: a.X, Z: a.Z},
		ScaleMultiplier:   a.Scale,
		YOffsetMultiplier: a.YOffset,
	}
}

// ViewConfig holds display and interaction settings.
type ViewConfig struct {
	FPS            int     `yaml:"fps"`
	Background     string  `yaml:"background"` // Hex color
	CameraDistance float64 `yaml:"camera_distance"`
	CameraHeight   float64 `yaml:"camera_height"`
	Sensitivity    float64 `yaml:"sensitivity"`
	Damping        float64 `yaml:"damping"`
	Wireframe      bool    `yaml:"wireframe"`
	ShowHUD        bool    `yaml:"show_hud"`
	SnapshotFormat string  `yaml:"snapshot_format"` // png or webp
}

// LoadingConfig holds asset loading settings.
type LoadingConfig struct {
	HTTPTimeout   time.Duration `yaml:"http_timeout"`
	MaxConcurrent int           `yaml:"max_concurrent"` // 0 means unlimited
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// SettingsConfig controls persisted live parameters.
type SettingsConfig struct {
	Persist bool   `yaml:"persist"`
	AppName string `yaml:"app_name"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		View: ViewConfig{
			FPS:            30,
			Background:     "#181820",
			CameraDistance: 5,
			CameraHeight:   0.4,
			Sensitivity:    interact.Sensitivity,
			Damping:        interact.Damping,
			ShowHUD:        true,
			SnapshotFormat: "png",
		},
		Loading: LoadingConfig{
			HTTPTimeout:   30 * time.Second,
			MaxConcurrent: 4,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Settings: SettingsConfig{
			Persist: true,
			AppName: "podium",
		},
	}
}

// Layout replaces the avatar list with one entry per model, centered on the
// origin and Spacing apart along X.
func (c *Config) Layout(models []string, anim string) {
	c.Avatars = nil
	mid := float64(len(models)-1) / 2
	for i, m := range models {
		c.Avatars = append(c.Avatars, AvatarConfig{
			Model: m,
			Anim:  anim,
			X:     (float64(i) - mid) * Spacing,
		})
	}
}

// Specs returns the asset specs of every configured avatar.
func (c *Config) Specs() []avatar.AssetSpec {
	specs := make([]avatar.AssetSpec, len(c.Avatars))
	for i, a := range c.Avatars {
		specs[i] = a.Spec()
	}
	return specs
}

// Validate reports every setting that cannot be used.
func (c *Config) Validate() error {
	var errs []error
	if len(c.Avatars) == 0 {
		errs = append(errs, errors.New("no avatars configured"))
	}
	for i, a := range c.Avatars {
		if a.Model == "" {
			errs = append(errs, fmt.Errorf("avatars[%d]: model is required", i))
		}
	}
	if c.View.FPS < 1 || c.View.FPS > 240 {
		errs = append(errs, fmt.Errorf("view.fps %d out of range 1-240", c.View.FPS))
	}
	if c.View.Sensitivity <= 0 {
		errs = append(errs, fmt.Errorf("view.sensitivity must be positive, got %v", c.View.Sensitivity))
	}
	if c.View.Damping < 0 || c.View.Damping >= 1 {
		errs = append(errs, fmt.Errorf("view.damping must be in [0, 1), got %v", c.View.Damping))
	}
	if f := c.View.SnapshotFormat; f != "png" && f != "webp" {
		errs = append(errs, fmt.Errorf("view.snapshot_format must be png or webp, got %q", f))
	}
	if c.Loading.MaxConcurrent < 0 {
		errs = append(errs, fmt.Errorf("loading.max_concurrent must not be negative, got %d", c.Loading.MaxConcurrent))
	}
	return errors.Join(errs...)
}
