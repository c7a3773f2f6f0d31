// Package config loads wrd-server's runtime configuration from the
// environment, grounded on api/pkg/config/config.go's struct-of-structs
// plus envconfig tags convention (spec.md §9's "Dynamic configuration"
// guidance: one enumerated struct, no dynamic key-value bag).
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/kelseyhightower/envconfig"

	"github.com/wrd-project/wrd-server/internal/encoder"
	"github.com/wrd-project/wrd-server/internal/rate"
)

// Config is the complete set of environment-derived settings for one
// wrd-server process. Every field is enumerated; there is no generic
// settings map.
type Config struct {
	Server     Server
	Display    Display
	Encoding   Encoding
	Governor   Governor
	Credential Credential
	Logging    Logging
}

// Server controls the listener the CLI binds for incoming RDP
// connections.
type Server struct {
	Port int `envconfig:"WRD_PORT" default:"3389"`
}

// Display describes the target monitor and its reported resolution,
// mirroring the teacher's GAMESCOPE_WIDTH/HEIGHT-style plumbing.
// Scale is parsed but not applied anywhere: input.MonitorLayout has no
// scale field.
type Display struct {
	MutterMonitor string  `envconfig:"WRD_MUTTER_MONITOR"`
	ScreenWidth   int     `envconfig:"WRD_SCREEN_WIDTH" default:"1920"`
	ScreenHeight  int     `envconfig:"WRD_SCREEN_HEIGHT" default:"1080"`
	Scale         float64 `envconfig:"WRD_DISPLAY_SCALE" default:"1.0"`
}

// Encoding selects the colour space the encoder backends tag NAL VUI
// parameters with. "auto" (the default) applies spec.md §3's
// resolution-based rule instead of a fixed choice.
type Encoding struct {
	ColorSpace string `envconfig:"WRD_COLOR_SPACE" default:"auto"`
}

// ColorSpec resolves the configured colour-space name to the encoder
// package's concrete constant. "auto" and any unrecognized value defer
// to encoder.ColorSpecAuto against the negotiated stream dimensions
// (spec.md §3: BT.709 full range at max(width,height) >= 720, BT.601
// limited otherwise); an explicit bt601/bt709/bt2020 override always
// wins regardless of resolution.
func (e Encoding) ColorSpec(width, height int) encoder.ColorSpec {
	switch e.ColorSpace {
	case "bt601":
		return encoder.ColorSpecBT601
	case "bt709":
		return encoder.ColorSpecBT709
	case "bt2020":
		return encoder.ColorSpecBT2020
	default:
		return encoder.ColorSpecAuto(width, height)
	}
}

// Governor controls the rate governor's latency/quality bias.
type Governor struct {
	LatencyMode string `envconfig:"WRD_LATENCY_MODE" default:"balanced"`
}

// Mode resolves the configured latency mode name, defaulting to
// Balanced for an unrecognized value.
func (g Governor) Mode() rate.LatencyMode {
	switch g.LatencyMode {
	case "interactive":
		return rate.LatencyModeInteractive
	case "quality":
		return rate.LatencyModeQuality
	default:
		return rate.LatencyModeBalanced
	}
}

// Credential controls where restore tokens are persisted.
type Credential struct {
	TokenDir string `envconfig:"WRD_TOKEN_DIR"`
}

// ResolvedTokenDir returns TokenDir, or spec.md §6's documented default
// path ($XDG_CONFIG_HOME/wrd-server/tokens) when unset.
func (c Credential) ResolvedTokenDir() string {
	if c.TokenDir != "" {
		return c.TokenDir
	}
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		if home, err := os.UserHomeDir(); err == nil {
			base = filepath.Join(home, ".config")
		}
	}
	return filepath.Join(base, "wrd-server", "tokens")
}

// Logging controls the slog handler the CLI constructs before anything
// else runs.
type Logging struct {
	Level string `envconfig:"WRD_LOG_LEVEL" default:"info"`
	JSON  bool   `envconfig:"WRD_LOG_JSON" default:"false"`
	File  string `envconfig:"WRD_LOG_FILE"`
}

// Load reads Config from the environment, applying the `default:` tags
// above for anything unset. Values are later overridden by CLI flags
// where spec.md §6 gives a flag precedence over its env equivalent
// (-p over WRD_PORT, -v over WRD_LOG_LEVEL, --log-file over
// WRD_LOG_FILE).
func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}
