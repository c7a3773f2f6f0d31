package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wrd-project/wrd-server/internal/encoder"
	"github.com/wrd-project/wrd-server/internal/rate"
)

func clearWRDEnv(t *testing.T) {
	for _, key := range []string{
		"WRD_PORT", "WRD_MUTTER_MONITOR", "WRD_SCREEN_WIDTH", "WRD_SCREEN_HEIGHT",
		"WRD_DISPLAY_SCALE", "WRD_COLOR_SPACE", "WRD_LATENCY_MODE", "WRD_TOKEN_DIR",
		"WRD_LOG_LEVEL", "WRD_LOG_JSON", "WRD_LOG_FILE", "XDG_CONFIG_HOME",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	clearWRDEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 3389, cfg.Server.Port)
	require.Equal(t, 1920, cfg.Display.ScreenWidth)
	require.Equal(t, 1080, cfg.Display.ScreenHeight)
	require.Equal(t, "balanced", cfg.Governor.LatencyMode)
	require.Equal(t, "info", cfg.Logging.Level)
	require.Equal(t, "auto", cfg.Encoding.ColorSpace)
}

func TestLoadReadsOverrides(t *testing.T) {
	clearWRDEnv(t)
	t.Setenv("WRD_PORT", "4000")
	t.Setenv("WRD_COLOR_SPACE", "bt2020")
	t.Setenv("WRD_LATENCY_MODE", "interactive")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 4000, cfg.Server.Port)
	require.Equal(t, encoder.ColorSpecBT2020, cfg.Encoding.ColorSpec(1920, 1080))
	require.Equal(t, rate.LatencyModeInteractive, cfg.Governor.Mode())
}

func TestEncodingColorSpecExplicitOverrideIgnoresResolution(t *testing.T) {
	e := Encoding{ColorSpace: "bt709"}
	require.Equal(t, encoder.ColorSpecBT709, e.ColorSpec(320, 240))
}

func TestEncodingColorSpecUnrecognizedValueFallsBackToAuto(t *testing.T) {
	e := Encoding{ColorSpace: "not-a-real-space"}
	require.Equal(t, encoder.ColorSpecBT709, e.ColorSpec(1920, 1080))
	require.Equal(t, encoder.ColorSpecBT601, e.ColorSpec(640, 480))
}

func TestEncodingColorSpecAutoAppliesResolutionRule(t *testing.T) {
	e := Encoding{ColorSpace: "auto"}
	require.Equal(t, encoder.ColorSpecBT709, e.ColorSpec(1280, 720))
	require.Equal(t, encoder.ColorSpecBT601, e.ColorSpec(719, 719))
}

func TestGovernorModeDefaultsToBalanced(t *testing.T) {
	g := Governor{LatencyMode: "not-a-real-mode"}
	require.Equal(t, rate.LatencyModeBalanced, g.Mode())
}

func TestCredentialResolvedTokenDirUsesExplicitValue(t *testing.T) {
	c := Credential{TokenDir: "/tmp/explicit"}
	require.Equal(t, "/tmp/explicit", c.ResolvedTokenDir())
}

func TestCredentialResolvedTokenDirDefaultsUnderXDGConfigHome(t *testing.T) {
	clearWRDEnv(t)
	t.Setenv("XDG_CONFIG_HOME", "/home/user/.config")

	c := Credential{}
	require.Equal(t, "/home/user/.config/wrd-server/tokens", c.ResolvedTokenDir())
}
