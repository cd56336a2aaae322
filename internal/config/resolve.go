package config

import "strings"

// ConfigSource identifies where a configuration value came from.
type ConfigSource string

const (
	// SourceDefault indicates the value came from built-in defaults.
	SourceDefault ConfigSource = "default"
	// SourceFile indicates the value came from the gantry.toml config file.
	SourceFile ConfigSource = "file"
	// SourceEnv indicates the value came from an environment variable.
	SourceEnv ConfigSource = "env"
	// SourceCLI indicates the value came from a CLI flag.
	SourceCLI ConfigSource = "cli"
)

// ResolvedConfig holds the fully-resolved configuration with source tracking.
// The Config field contains the merged values; Sources tracks where each came
// from.
type ResolvedConfig struct {
	Config  *Config
	Sources map[string]ConfigSource // key is dotted path, e.g., "run.mode"
	Path    string                  // path to the config file used (empty if none)
}

// CLIOverrides captures flag values that can override configuration.
// A nil pointer means "not set" (do not override); a pointer to the zero
// value means "override to the zero value".
type CLIOverrides struct {
	Mode               *string
	Headless           *bool
	StopOnFirstFailure *bool
	ScreenshotDir      *string
	Listen             *string
	Flows              []string
}

// EnvFunc is a function that looks up environment variables.
// Default implementation is os.LookupEnv. Injected for testability.
type EnvFunc func(key string) (string, bool)

// Resolve merges configuration from all sources in priority order:
// CLI flags > environment variables > config file > defaults.
func Resolve(defaults *Config, fileConfig *Config, envFn EnvFunc, overrides *CLIOverrides) *ResolvedConfig {
	rc := &ResolvedConfig{
		Config:  &Config{},
		Sources: make(map[string]ConfigSource),
	}

	if defaults == nil {
		defaults = &Config{}
	}
	if envFn == nil {
		envFn = func(string) (string, bool) { return "", false }
	}
	if overrides == nil {
		overrides = &CLIOverrides{}
	}

	resolveFromDefaults(rc, defaults)
	if fileConfig != nil {
		resolveFromFile(rc, fileConfig)
	}
	resolveFromEnv(rc, envFn)
	resolveFromCLI(rc, overrides)

	return rc
}

// --- Layer 1: Defaults ---

func resolveFromDefaults(rc *ResolvedConfig, defaults *Config) {
	r := &rc.Config.Run
	d := &defaults.Run

	setString(&r.Mode, d.Mode, "run.mode", SourceDefault, rc.Sources)
	setString(&rc.Config.Run.ScreenshotDir, d.ScreenshotDir, "run.screenshot_dir", SourceDefault, rc.Sources)
	r.Headless = d.Headless
	rc.Sources["run.headless"] = SourceDefault
	r.StopOnFirstFailure = d.StopOnFirstFailure
	rc.Sources["run.stop_on_first_failure"] = SourceDefault

	if len(d.Flows) > 0 {
		r.Flows = append([]string(nil), d.Flows...)
	}
	rc.Sources["run.flows"] = SourceDefault

	setString(&rc.Config.Server.Listen, defaults.Server.Listen, "server.listen", SourceDefault, rc.Sources)
	if len(defaults.Server.AllowedOrigins) > 0 {
		rc.Config.Server.AllowedOrigins = append([]string(nil), defaults.Server.AllowedOrigins...)
	}
	rc.Sources["server.allowed_origins"] = SourceDefault

	rc.Config.Systems = make(map[string]SystemConfig)
	for name, sys := range defaults.Systems {
		rc.Config.Systems[name] = sys
		setSystemSources(rc.Sources, name, SourceDefault)
	}
}

// --- Layer 2: File ---

func resolveFromFile(rc *ResolvedConfig, file *Config) {
	r := &rc.Config.Run
	f := &file.Run

	mergeString(&r.Mode, f.Mode, "run.mode", SourceFile, rc.Sources)
	mergeString(&r.ScreenshotDir, f.ScreenshotDir, "run.screenshot_dir", SourceFile, rc.Sources)

	// Booleans in the file always apply: TOML presence cannot be told apart
	// from a false zero value, and the file is an explicit statement of
	// intent either way.
	r.Headless = f.Headless
	rc.Sources["run.headless"] = SourceFile
	r.StopOnFirstFailure = f.StopOnFirstFailure
	rc.Sources["run.stop_on_first_failure"] = SourceFile

	if len(f.Flows) > 0 {
		r.Flows = append([]string(nil), f.Flows...)
		rc.Sources["run.flows"] = SourceFile
	}

	mergeString(&rc.Config.Server.Listen, file.Server.Listen, "server.listen", SourceFile, rc.Sources)
	if len(file.Server.AllowedOrigins) > 0 {
		rc.Config.Server.AllowedOrigins = append([]string(nil), file.Server.AllowedOrigins...)
		rc.Sources["server.allowed_origins"] = SourceFile
	}

	for name, sys := range file.Systems {
		rc.Config.Systems[name] = sys
		setSystemSources(rc.Sources, name, SourceFile)
	}
}

// --- Layer 3: Environment ---

// Environment variable mapping:
//
//	GANTRY_MODE            -> run.mode
//	GANTRY_SCREENSHOT_DIR  -> run.screenshot_dir
//	GANTRY_LISTEN          -> server.listen
//	GANTRY_<SYSTEM>_URL    -> systems.<system>.base_url (e.g. GANTRY_API_URL)
//	GANTRY_DATABASE_DSN    -> systems.database.dsn
func resolveFromEnv(rc *ResolvedConfig, envFn EnvFunc) {
	if val, ok := envFn("GANTRY_MODE"); ok {
		rc.Config.Run.Mode = val
		rc.Sources["run.mode"] = SourceEnv
	}
	if val, ok := envFn("GANTRY_SCREENSHOT_DIR"); ok {
		rc.Config.Run.ScreenshotDir = val
		rc.Sources["run.screenshot_dir"] = SourceEnv
	}
	if val, ok := envFn("GANTRY_LISTEN"); ok {
		rc.Config.Server.Listen = val
		rc.Sources["server.listen"] = SourceEnv
	}

	for _, system := range []string{"api", "ui", "yard", "mobile"} {
		key := "GANTRY_" + strings.ToUpper(system) + "_URL"
		if val, ok := envFn(key); ok {
			sys := rc.Config.Systems[system]
			sys.BaseURL = val
			rc.Config.Systems[system] = sys
			rc.Sources["systems."+system+".base_url"] = SourceEnv
		}
	}
	if val, ok := envFn("GANTRY_DATABASE_DSN"); ok {
		sys := rc.Config.Systems["database"]
		sys.DSN = val
		rc.Config.Systems["database"] = sys
		rc.Sources["systems.database.dsn"] = SourceEnv
	}
}

// --- Layer 4: CLI overrides ---

func resolveFromCLI(rc *ResolvedConfig, overrides *CLIOverrides) {
	if overrides.Mode != nil {
		rc.Config.Run.Mode = *overrides.Mode
		rc.Sources["run.mode"] = SourceCLI
	}
	if overrides.Headless != nil {
		rc.Config.Run.Headless = *overrides.Headless
		rc.Sources["run.headless"] = SourceCLI
	}
	if overrides.StopOnFirstFailure != nil {
		rc.Config.Run.StopOnFirstFailure = *overrides.StopOnFirstFailure
		rc.Sources["run.stop_on_first_failure"] = SourceCLI
	}
	if overrides.ScreenshotDir != nil {
		rc.Config.Run.ScreenshotDir = *overrides.ScreenshotDir
		rc.Sources["run.screenshot_dir"] = SourceCLI
	}
	if overrides.Listen != nil {
		rc.Config.Server.Listen = *overrides.Listen
		rc.Sources["server.listen"] = SourceCLI
	}
	if len(overrides.Flows) > 0 {
		rc.Config.Run.Flows = append([]string(nil), overrides.Flows...)
		rc.Sources["run.flows"] = SourceCLI
	}
}

// --- Helpers ---

// setString unconditionally sets the target to the given value and records
// the source.
func setString(target *string, value string, path string, source ConfigSource, sources map[string]ConfigSource) {
	*target = value
	sources[path] = source
}

// mergeString overwrites the target only if value is non-empty. An empty
// string in the file means "not set in file", so it does not override the
// default.
func mergeString(target *string, value string, path string, source ConfigSource, sources map[string]ConfigSource) {
	if value != "" {
		*target = value
		sources[path] = source
	}
}

// setSystemSources records the source for all fields of a named system.
func setSystemSources(sources map[string]ConfigSource, name string, source ConfigSource) {
	prefix := "systems." + name
	sources[prefix+".base_url"] = source
	sources[prefix+".dsn"] = source
	sources[prefix+".timeout"] = source
}
