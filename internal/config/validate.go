package config

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/bmatcuk/doublestar/v4"
)

// ValidationSeverity indicates whether a validation issue is an error or
// warning.
type ValidationSeverity string

const (
	// SeverityError indicates a fatal validation issue; the configuration is
	// unusable.
	SeverityError ValidationSeverity = "error"
	// SeverityWarning indicates an informational validation issue; the
	// configuration works but may have problems.
	SeverityWarning ValidationSeverity = "warning"
)

// ValidationIssue represents a single validation finding.
type ValidationIssue struct {
	Severity ValidationSeverity
	Field    string // dotted path, e.g., "run.mode"
	Message  string
}

// ValidationResult holds all validation findings.
type ValidationResult struct {
	Issues []ValidationIssue
}

// HasErrors returns true if any issue has error severity.
func (vr *ValidationResult) HasErrors() bool {
	for _, issue := range vr.Issues {
		if issue.Severity == SeverityError {
			return true
		}
	}
	return false
}

// HasWarnings returns true if any issue has warning severity.
func (vr *ValidationResult) HasWarnings() bool {
	for _, issue := range vr.Issues {
		if issue.Severity == SeverityWarning {
			return true
		}
	}
	return false
}

// Errors returns only error-severity issues.
func (vr *ValidationResult) Errors() []ValidationIssue {
	var errs []ValidationIssue
	for _, issue := range vr.Issues {
		if issue.Severity == SeverityError {
			errs = append(errs, issue)
		}
	}
	return errs
}

// Warnings returns only warning-severity issues.
func (vr *ValidationResult) Warnings() []ValidationIssue {
	var warns []ValidationIssue
	for _, issue := range vr.Issues {
		if issue.Severity == SeverityWarning {
			warns = append(warns, issue)
		}
	}
	return warns
}

// validModes is the set of valid values for run.mode.
var validModes = map[string]bool{
	"real":       true,
	"simulation": true,
}

// knownSystems is the set of system identifiers adapters exist for.
var knownSystems = map[string]bool{
	"api":      true,
	"ui":       true,
	"yard":     true,
	"mobile":   true,
	"database": true,
}

// Validate checks the configuration for correctness and completeness.
// It performs structural validation, semantic validation, and unknown key
// detection.
//
// Parameters:
//   - cfg: the configuration to validate
//   - meta: TOML metadata from BurntSushi/toml (may be nil if no file was
//     loaded)
//
// Returns validation results. Check HasErrors() to determine if the config
// is usable.
func Validate(cfg *Config, meta *toml.MetaData) *ValidationResult {
	vr := &ValidationResult{}

	if cfg == nil {
		addError(vr, "", "configuration is nil")
		return vr
	}

	validateRun(vr, &cfg.Run)
	validateServer(vr, &cfg.Server)
	validateSystems(vr, cfg)
	validateUnknownKeys(vr, meta)

	return vr
}

// validateRun checks the [run] section for errors and warnings.
func validateRun(vr *ValidationResult, r *RunConfig) {
	// Error: run.mode must be recognized.
	if !validModes[r.Mode] {
		addError(vr, "run.mode",
			fmt.Sprintf("unrecognized mode %q; must be one of: real, simulation", r.Mode))
	}

	// Error: flow patterns must be valid globs.
	for i, pattern := range r.Flows {
		if pattern == "" {
			addError(vr, fmt.Sprintf("run.flows[%d]", i), "must not be an empty string")
			continue
		}
		if !doublestar.ValidatePattern(pattern) {
			addError(vr, fmt.Sprintf("run.flows[%d]", i),
				fmt.Sprintf("invalid glob pattern %q", pattern))
		}
	}

	// Warning: no flow patterns means nothing will ever run.
	if len(r.Flows) == 0 {
		addWarning(vr, "run.flows", "no flow patterns configured; discovery will find nothing")
	}
}

// validateServer checks the [server] section.
func validateServer(vr *ValidationResult, s *ServerConfig) {
	if s.Listen == "" {
		return
	}
	if _, _, err := net.SplitHostPort(s.Listen); err != nil {
		addError(vr, "server.listen",
			fmt.Sprintf("invalid listen address %q: %v", s.Listen, err))
	}
}

// validateSystems checks all [systems.*] sections.
func validateSystems(vr *ValidationResult, cfg *Config) {
	for name, sys := range cfg.Systems {
		prefix := "systems." + name

		// Warning: a system no adapter exists for is silently useless.
		if !knownSystems[name] {
			addWarning(vr, prefix,
				fmt.Sprintf("unknown system %q; known systems: api, ui, yard, mobile, database", name))
		}

		// Error: base_url must parse if set.
		if sys.BaseURL != "" {
			u, err := url.Parse(sys.BaseURL)
			if err != nil || u.Scheme == "" || u.Host == "" {
				addError(vr, prefix+".base_url",
					fmt.Sprintf("invalid base URL %q", sys.BaseURL))
			}
		}

		// Error: negative timeouts are meaningless.
		if sys.Timeout.Duration < 0 {
			addError(vr, prefix+".timeout", "must not be negative")
		}
	}

	// In real mode each configured-for-real-use system needs its endpoint.
	if cfg.Run.Mode == "real" {
		for name, sys := range cfg.Systems {
			if !knownSystems[name] {
				continue
			}
			prefix := "systems." + name
			if name == "database" {
				if sys.DSN == "" {
					addError(vr, prefix+".dsn", "required in real mode")
				}
			} else if sys.BaseURL == "" {
				addError(vr, prefix+".base_url", "required in real mode")
			}
		}
	}
}

// validateUnknownKeys checks for TOML keys that did not map to any config
// struct field.
func validateUnknownKeys(vr *ValidationResult, meta *toml.MetaData) {
	if meta == nil {
		return
	}

	for _, key := range meta.Undecoded() {
		path := strings.Join(key, ".")
		addWarning(vr, path, "unknown configuration key")
	}
}

// addError appends an error-severity issue to the validation result.
func addError(vr *ValidationResult, field, message string) {
	vr.Issues = append(vr.Issues, ValidationIssue{
		Severity: SeverityError,
		Field:    field,
		Message:  message,
	})
}

// addWarning appends a warning-severity issue to the validation result.
func addWarning(vr *ValidationResult, field, message string) {
	vr.Issues = append(vr.Issues, ValidationIssue{
		Severity: SeverityWarning,
		Field:    field,
		Message:  message,
	})
}
