package config

import "time"

// Config is the top-level configuration structure mapping to gantry.toml.
type Config struct {
	Run     RunConfig               `toml:"run"`
	Server  ServerConfig            `toml:"server"`
	Systems map[string]SystemConfig `toml:"systems"`
}

// RunConfig maps to the [run] section in gantry.toml.
type RunConfig struct {
	// Mode selects how adapters are constructed: "real" or "simulation".
	Mode string `toml:"mode"`

	// Headless controls display behavior for UI-bearing adapters; it has no
	// effect in simulation mode.
	Headless bool `toml:"headless"`

	// StopOnFirstFailure halts the run as soon as any stage fails.
	StopOnFirstFailure bool `toml:"stop_on_first_failure"`

	// Flows lists glob patterns used to discover flow definition files.
	Flows []string `toml:"flows"`

	// ScreenshotDir is where UI-bearing stages place screenshots. Empty
	// disables screenshot capture.
	ScreenshotDir string `toml:"screenshot_dir"`
}

// ServerConfig maps to the [server] section in gantry.toml.
type ServerConfig struct {
	// Listen is the host:port the web driver binds to.
	Listen string `toml:"listen"`

	// AllowedOrigins restricts CORS; empty allows any origin.
	AllowedOrigins []string `toml:"allowed_origins"`
}

// SystemConfig maps to a [systems.<id>] section in gantry.toml. Which fields
// apply depends on the system: api/ui/yard/mobile adapters use BaseURL, the
// database adapter uses DSN.
type SystemConfig struct {
	BaseURL string   `toml:"base_url"`
	DSN     string   `toml:"dsn"`
	Timeout Duration `toml:"timeout"`
}

// Duration wraps time.Duration so TOML values like "30s" decode directly.
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler for TOML decoding.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

// MarshalText implements encoding.TextMarshaler so configs round-trip.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// OrDefault returns the wrapped duration, or fallback when unset.
func (d Duration) OrDefault(fallback time.Duration) time.Duration {
	if d.Duration == 0 {
		return fallback
	}
	return d.Duration
}
