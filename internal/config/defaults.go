package config

// NewDefaults returns a Config populated with all default values. A project
// with no gantry.toml at all gets a working simulation-mode setup.
func NewDefaults() *Config {
	return &Config{
		Run: RunConfig{
			Mode:          "simulation",
			Headless:      true,
			Flows:         []string{"flows/**/*.toml"},
			ScreenshotDir: "screenshots",
		},
		Server: ServerConfig{
			Listen: "127.0.0.1:8844",
		},
		Systems: map[string]SystemConfig{},
	}
}
