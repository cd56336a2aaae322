package cli

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/gantrylabs/gantry/internal/adapter"
	"github.com/gantrylabs/gantry/internal/adapter/database"
	"github.com/gantrylabs/gantry/internal/adapter/httpapi"
	"github.com/gantrylabs/gantry/internal/adapter/sim"
	"github.com/gantrylabs/gantry/internal/adapter/uibridge"
	"github.com/gantrylabs/gantry/internal/config"
	"github.com/gantrylabs/gantry/internal/engine"
	"github.com/gantrylabs/gantry/internal/flow"
	"github.com/gantrylabs/gantry/internal/logging"
	"github.com/gantrylabs/gantry/internal/server"
)

// defaultSystemTimeout applies when a [systems.<id>] section sets no timeout.
const defaultSystemTimeout = 30 * time.Second

// buildRegistry constructs the adapter registry for the resolved config. In
// simulation mode every system gets a simulator over one shared world so
// cross-system flows observe each other's effects. In real mode only the
// configured systems are registered; a flow touching an unconfigured system
// fails that stage at execution time with a missing-adapter error.
func buildRegistry(cfg *config.Config) (*adapter.Registry, error) {
	registry := adapter.NewRegistry()

	if adapter.Mode(cfg.Run.Mode) == adapter.ModeSimulation {
		world := sim.NewWorld()
		for _, a := range sim.NewAll(world) {
			registry.Register(a)
		}
		return registry, nil
	}

	for name, sys := range cfg.Systems {
		timeout := sys.Timeout.OrDefault(defaultSystemTimeout)
		switch flow.System(name) {
		case flow.SystemAPI:
			registry.Register(httpapi.New(sys.BaseURL, httpapi.WithTimeout(timeout)))
		case flow.SystemDatabase:
			registry.Register(database.New(sys.DSN, database.WithTimeout(timeout)))
		case flow.SystemUI, flow.SystemYard, flow.SystemMobile:
			registry.Register(uibridge.New(
				flow.System(name),
				sys.BaseURL,
				uibridge.WithTimeout(timeout),
				uibridge.WithHeadless(cfg.Run.Headless),
			))
		default:
			return nil, fmt.Errorf("unknown system %q in config", name)
		}
	}
	return registry, nil
}

// buildExecutor constructs the engine executor from the resolved config. The
// metrics recorder may be nil.
func buildExecutor(cfg *config.Config, m engine.MetricsRecorder) (*engine.Executor, error) {
	registry, err := buildRegistry(cfg)
	if err != nil {
		return nil, err
	}

	return engine.NewExecutor(registry,
		engine.WithMode(adapter.Mode(cfg.Run.Mode)),
		engine.WithStopOnFirstFailure(cfg.Run.StopOnFirstFailure),
		engine.WithScreenshotDir(cfg.Run.ScreenshotDir),
		engine.WithLogger(logging.New("engine")),
		engine.WithMetrics(m),
	), nil
}

// fileFlowSource serves flow definitions discovered from disk. Files are
// re-read on every call so edits to a flow show up without restarting the
// server.
type fileFlowSource struct {
	root     string
	patterns []string
}

var _ server.FlowSource = (*fileFlowSource)(nil)

// newFlowSource creates a flow source rooted at the config file's directory,
// falling back to the current directory when no config file was found.
func newFlowSource(resolved *config.ResolvedConfig) *fileFlowSource {
	root := "."
	if resolved.Path != "" {
		root = filepath.Dir(resolved.Path)
	}
	return &fileFlowSource{root: root, patterns: resolved.Config.Run.Flows}
}

func (fs *fileFlowSource) Flows() ([]*flow.Definition, error) {
	return flow.LoadAll(fs.root, fs.patterns)
}

func (fs *fileFlowSource) Find(name string) (*flow.Definition, error) {
	defs, err := fs.Flows()
	if err != nil {
		return nil, err
	}
	for _, def := range defs {
		if def.Name == name {
			return def, nil
		}
	}
	return nil, fmt.Errorf("flow %q not found", name)
}
