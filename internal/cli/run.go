package cli

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/gantrylabs/gantry/internal/config"
	"github.com/gantrylabs/gantry/internal/engine"
	"github.com/gantrylabs/gantry/internal/flow"
	"github.com/gantrylabs/gantry/internal/logging"
)

// runFlags holds the flag values for the run command.
type runFlags struct {
	Mode               string
	Headless           bool
	StopOnFirstFailure bool
	ScreenshotDir      string
	Flows              []string
}

// newRunCmd creates the "gantry run" command.
func newRunCmd() *cobra.Command {
	var flags runFlags

	cmd := &cobra.Command{
		Use:   "run [flow-name...]",
		Short: "Execute one or more flows",
		Long: `Execute flows against the configured systems. With no arguments every
discovered flow runs in discovery order; otherwise only the named flows run.

Flows run one at a time. Within a flow, stages execute in dependency order
and the run halts early only with --stop-on-first-failure (or the config
equivalent).`,
		Example: `  # Run every discovered flow in simulation mode
  gantry run --mode simulation

  # Run one flow against real systems, stopping at the first failure
  gantry run container-import --mode real --stop-on-first-failure`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(cmd, args, flags)
		},
	}

	cmd.Flags().StringVarP(&flags.Mode, "mode", "m", "", `Execution mode: "real" or "simulation"`)
	cmd.Flags().BoolVar(&flags.Headless, "headless", false, "Run UI-bearing adapters without a visible display")
	cmd.Flags().BoolVar(&flags.StopOnFirstFailure, "stop-on-first-failure", false, "Halt the run when any stage fails")
	cmd.Flags().StringVar(&flags.ScreenshotDir, "screenshot-dir", "", "Directory for UI screenshots (empty disables capture)")
	cmd.Flags().StringSliceVar(&flags.Flows, "flows", nil, "Glob patterns for flow discovery (overrides config)")

	return cmd
}

func init() {
	rootCmd.AddCommand(newRunCmd())
}

// runRun is the RunE handler for the run command.
func runRun(cmd *cobra.Command, args []string, flags runFlags) error {
	logger := logging.New("run")

	resolved, meta, err := resolveWithOverrides(cmd, flags)
	if err != nil {
		return err
	}
	if err := requireValidConfig(cmd, resolved, meta); err != nil {
		return err
	}

	exec, err := buildExecutor(resolved.Config, nil)
	if err != nil {
		return err
	}

	defs, err := selectFlows(resolved, args)
	if err != nil {
		return err
	}
	if len(defs) == 0 {
		return fmt.Errorf("no flows matched patterns %v", resolved.Config.Run.Flows)
	}

	out := cmd.OutOrStdout()
	failures := 0

	for i, def := range defs {
		if i > 0 {
			if err := exec.Reset(); err != nil {
				return fmt.Errorf("resetting executor: %w", err)
			}
		}

		logger.Info("running flow", "flow", def.Name, "stages", len(def.Stages), "mode", resolved.Config.Run.Mode)

		final, runErr := exec.Execute(cmd.Context(), def)
		printRunResult(out, def, final)

		if runErr != nil {
			logger.Error("run error", "flow", def.Name, "error", runErr)
		}
		if final.Status != engine.StatusPassed || final.Summarize().Failed > 0 {
			failures++
		}
	}

	if failures > 0 {
		return fmt.Errorf("%d of %d flow(s) had failures", failures, len(defs))
	}
	return nil
}

// resolveWithOverrides loads the config and applies only the run flags the
// user actually set, so config-file values survive unset flags.
func resolveWithOverrides(cmd *cobra.Command, flags runFlags) (*config.ResolvedConfig, *toml.MetaData, error) {
	overrides := &config.CLIOverrides{Flows: flags.Flows}
	if cmd.Flags().Changed("mode") {
		overrides.Mode = &flags.Mode
	}
	if cmd.Flags().Changed("headless") {
		overrides.Headless = &flags.Headless
	}
	if cmd.Flags().Changed("stop-on-first-failure") {
		overrides.StopOnFirstFailure = &flags.StopOnFirstFailure
	}
	if cmd.Flags().Changed("screenshot-dir") {
		overrides.ScreenshotDir = &flags.ScreenshotDir
	}
	return loadAndResolveWith(overrides)
}

// requireValidConfig validates the resolved config, printing every finding.
// Warnings are reported but do not block the run.
func requireValidConfig(cmd *cobra.Command, resolved *config.ResolvedConfig, meta *toml.MetaData) error {
	result := config.Validate(resolved.Config, meta)
	if result.HasErrors() {
		printValidationResult(cmd, result)
		return fmt.Errorf("configuration has %d error(s)", len(result.Errors()))
	}
	for _, w := range result.Warnings() {
		fmt.Fprintf(os.Stderr, "warning: [%s] %s\n", w.Field, w.Message)
	}
	return nil
}

// selectFlows returns the flows to run: the named ones when args is
// non-empty, otherwise every discovered flow.
func selectFlows(resolved *config.ResolvedConfig, names []string) ([]*flow.Definition, error) {
	source := newFlowSource(resolved)
	if len(names) == 0 {
		return source.Flows()
	}
	defs := make([]*flow.Definition, 0, len(names))
	for _, name := range names {
		def, err := source.Find(name)
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	return defs, nil
}

// ---- result rendering -------------------------------------------------------

var (
	stylePass = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true) // green
	styleFail = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)  // red
	styleDim  = lipgloss.NewStyle().Faint(true)
)

// printRunResult writes a per-stage breakdown and the run summary for one
// completed flow.
func printRunResult(out io.Writer, def *flow.Definition, final engine.State) {
	summary := final.Summarize()

	fmt.Fprintf(out, "\n%s\n", lipgloss.NewStyle().Bold(true).Render("Flow: "+def.Name))

	for _, id := range final.Order {
		result, ok := final.Results[id]
		if !ok {
			continue
		}
		mark := stylePass.Render("PASS")
		if result.Status == engine.StageFailed {
			mark = styleFail.Render("FAIL")
		}
		fmt.Fprintf(out, "  %s  %-24s %s\n", mark, id, styleDim.Render(string(result.System)))
		if result.Status == engine.StageFailed && result.Error != "" {
			fmt.Fprintf(out, "        %s\n", result.Error)
		}
	}

	for _, w := range final.Warnings {
		fmt.Fprintf(out, "  warning: %s\n", w)
	}

	status := stylePass.Render(string(summary.Status))
	if summary.Status != engine.StatusPassed {
		status = styleFail.Render(string(summary.Status))
	}
	fmt.Fprintf(out, "  %s: %d/%d stages passed in %s\n",
		status, summary.Passed, summary.Total, summary.Duration.Round(time.Millisecond))
}
