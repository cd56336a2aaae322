package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fieldIssues collects the fields of all issues at a given severity.
func fieldIssues(vr *ValidationResult, sev ValidationSeverity) []string {
	var fields []string
	for _, issue := range vr.Issues {
		if issue.Severity == sev {
			fields = append(fields, issue.Field)
		}
	}
	return fields
}

func TestValidateDefaultsAreValid(t *testing.T) {
	t.Parallel()

	vr := Validate(NewDefaults(), nil)
	assert.False(t, vr.HasErrors(), "issues: %+v", vr.Issues)
}

func TestValidateNilConfig(t *testing.T) {
	t.Parallel()

	vr := Validate(nil, nil)
	assert.True(t, vr.HasErrors())
}

func TestValidateBadMode(t *testing.T) {
	t.Parallel()

	cfg := NewDefaults()
	cfg.Run.Mode = "dry-run"

	vr := Validate(cfg, nil)
	assert.Contains(t, fieldIssues(vr, SeverityError), "run.mode")
}

func TestValidateFlowPatterns(t *testing.T) {
	t.Parallel()

	cfg := NewDefaults()
	cfg.Run.Flows = []string{"flows/**/*.toml", "", "bad[pattern"}

	vr := Validate(cfg, nil)
	errs := fieldIssues(vr, SeverityError)
	assert.Contains(t, errs, "run.flows[1]")
	assert.Contains(t, errs, "run.flows[2]")
}

func TestValidateEmptyFlowsWarns(t *testing.T) {
	t.Parallel()

	cfg := NewDefaults()
	cfg.Run.Flows = nil

	vr := Validate(cfg, nil)
	assert.False(t, vr.HasErrors())
	assert.Contains(t, fieldIssues(vr, SeverityWarning), "run.flows")
}

func TestValidateListenAddress(t *testing.T) {
	t.Parallel()

	cfg := NewDefaults()
	cfg.Server.Listen = "no-port-here"

	vr := Validate(cfg, nil)
	assert.Contains(t, fieldIssues(vr, SeverityError), "server.listen")
}

func TestValidateSystems(t *testing.T) {
	t.Parallel()

	cfg := NewDefaults()
	cfg.Systems = map[string]SystemConfig{
		"api":       {BaseURL: "://broken"},
		"warehouse": {BaseURL: "http://localhost:1234"},
		"database":  {Timeout: Duration{-1 * time.Second}},
	}

	vr := Validate(cfg, nil)
	assert.Contains(t, fieldIssues(vr, SeverityError), "systems.api.base_url")
	assert.Contains(t, fieldIssues(vr, SeverityError), "systems.database.timeout")
	assert.Contains(t, fieldIssues(vr, SeverityWarning), "systems.warehouse")
}

func TestValidateRealModeRequiresEndpoints(t *testing.T) {
	t.Parallel()

	cfg := NewDefaults()
	cfg.Run.Mode = "real"
	cfg.Systems = map[string]SystemConfig{
		"api":      {}, // missing base_url
		"ui":       {BaseURL: "http://localhost:4444"},
		"database": {}, // missing dsn
	}

	vr := Validate(cfg, nil)
	errs := fieldIssues(vr, SeverityError)
	assert.Contains(t, errs, "systems.api.base_url")
	assert.Contains(t, errs, "systems.database.dsn")
	assert.NotContains(t, errs, "systems.ui.base_url")
}

func TestValidateSimulationModeNeedsNoEndpoints(t *testing.T) {
	t.Parallel()

	cfg := NewDefaults()
	cfg.Systems = map[string]SystemConfig{"api": {}, "database": {}}

	vr := Validate(cfg, nil)
	assert.False(t, vr.HasErrors(), "issues: %+v", vr.Issues)
}

func TestValidateUnknownKeysFromMetadata(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, t.TempDir(), `
[run]
mode = "simulation"
flows = ["flows/*.toml"]
speling_mistake = 1
`)

	cfg, md, err := LoadFromFile(path)
	require.NoError(t, err)

	vr := Validate(cfg, &md)
	assert.False(t, vr.HasErrors())
	assert.Contains(t, fieldIssues(vr, SeverityWarning), "run.speling_mistake")
}

func TestValidationResultAccessors(t *testing.T) {
	t.Parallel()

	vr := &ValidationResult{}
	addError(vr, "a", "broken")
	addWarning(vr, "b", "iffy")

	assert.True(t, vr.HasErrors())
	assert.True(t, vr.HasWarnings())
	assert.Len(t, vr.Errors(), 1)
	assert.Len(t, vr.Warnings(), 1)
	assert.Equal(t, "a", vr.Errors()[0].Field)
	assert.Equal(t, "b", vr.Warnings()[0].Field)
}
