package cli

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/gantrylabs/gantry/internal/config"
)

// configCmd is the parent "config" namespace command. It has no action of its
// own -- it groups debug and validate subcommands.
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management commands",
	Long:  "Inspect, validate, and debug Gantry configuration.",
	// RunE shows help when invoked with no subcommand.
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// configDebugCmd implements "gantry config debug".
// It prints the fully-resolved configuration with source annotations.
var configDebugCmd = &cobra.Command{
	Use:   "debug",
	Short: "Show resolved configuration with source annotations",
	Long: `Display the fully-resolved configuration showing each value and
the source where it came from (cli flag, environment variable, config file, or default).`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		resolved, _, err := loadAndResolveConfig()
		if err != nil {
			return err
		}
		printResolvedConfig(cmd, resolved)
		return nil
	},
}

// configValidateCmd implements "gantry config validate".
// It validates the resolved configuration and reports all errors and warnings.
var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration and report issues",
	Long:  "Check the configuration for errors and warnings.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		resolved, meta, err := loadAndResolveConfig()
		if err != nil {
			return err
		}
		result := config.Validate(resolved.Config, meta)
		printValidationResult(cmd, result)
		if result.HasErrors() {
			return fmt.Errorf("configuration has %d error(s)", len(result.Errors()))
		}
		return nil
	},
}

func init() {
	configCmd.AddCommand(configDebugCmd)
	configCmd.AddCommand(configValidateCmd)
	rootCmd.AddCommand(configCmd)
}

// loadAndResolveConfig loads and resolves the configuration from all sources
// (file, env) with no CLI overrides.
func loadAndResolveConfig() (*config.ResolvedConfig, *toml.MetaData, error) {
	return loadAndResolveWith(nil)
}

// loadAndResolveWith loads and resolves the configuration from all sources.
// It returns the resolved config, the TOML metadata (nil when no file was
// found), and any loading error.
//
// When flagConfig is set, that path is used directly. Otherwise,
// config.FindConfigFile searches upward from the current directory.
func loadAndResolveWith(overrides *config.CLIOverrides) (*config.ResolvedConfig, *toml.MetaData, error) {
	var (
		fileCfg *config.Config
		meta    *toml.MetaData
		cfgPath string
	)

	if flagConfig != "" {
		// Explicit --config path provided.
		cfgPath = flagConfig
		fc, md, err := config.LoadFromFile(cfgPath)
		if err != nil {
			return nil, nil, fmt.Errorf("loading config: %w", err)
		}
		fileCfg = fc
		meta = &md
	} else {
		// Auto-detect gantry.toml by walking up from cwd.
		found, err := config.FindConfigFile(".")
		if err != nil {
			return nil, nil, fmt.Errorf("finding config file: %w", err)
		}
		if found != "" {
			cfgPath = found
			fc, md, err := config.LoadFromFile(cfgPath)
			if err != nil {
				return nil, nil, fmt.Errorf("loading config: %w", err)
			}
			fileCfg = fc
			meta = &md
		}
	}

	resolved := config.Resolve(config.NewDefaults(), fileCfg, os.LookupEnv, overrides)
	resolved.Path = cfgPath

	return resolved, meta, nil
}

// ---- Lipgloss styles --------------------------------------------------------

// sourceStyle returns a lipgloss style for a given ConfigSource.
// When --no-color is active, lipgloss automatically strips ANSI because
// the root PersistentPreRunE sets the color profile to Ascii.
func sourceStyle(src config.ConfigSource) lipgloss.Style {
	switch src {
	case config.SourceFile:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("12")) // bright blue
	case config.SourceEnv:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("11")) // bright yellow
	case config.SourceCLI:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("9")) // bright red
	default: // SourceDefault
		return lipgloss.NewStyle().Foreground(lipgloss.Color("10")) // bright green
	}
}

var (
	styleHeader    = lipgloss.NewStyle().Bold(true)
	styleSeparator = lipgloss.NewStyle()
	styleSection   = lipgloss.NewStyle().Bold(true)
	styleErrorLbl  = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)  // red
	styleWarnLbl   = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true) // yellow
	styleSuccess   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))            // green
)

// ---- printResolvedConfig ----------------------------------------------------

const fieldWidth = 24 // column width for field names

// printResolvedConfig writes the formatted resolved configuration to cmd's
// output writer (stdout by default).
func printResolvedConfig(cmd *cobra.Command, rc *config.ResolvedConfig) {
	out := cmd.OutOrStdout()

	header := styleHeader.Render("Configuration Debug")
	sep := styleSeparator.Render(strings.Repeat("=", len("Configuration Debug")))
	fmt.Fprintln(out, header)
	fmt.Fprintln(out, sep)
	fmt.Fprintln(out)

	if rc.Path != "" {
		fmt.Fprintf(out, "Config file: %s\n", rc.Path)
	} else {
		fmt.Fprintln(out, "Config file: none found")
	}
	fmt.Fprintln(out)

	// --- [run] ---
	fmt.Fprintln(out, styleSection.Render("[run]"))
	r := rc.Config.Run
	printField(out, "mode", fmtStr(r.Mode), rc.Sources["run.mode"])
	printField(out, "headless", fmt.Sprintf("%t", r.Headless), rc.Sources["run.headless"])
	printField(out, "stop_on_first_failure", fmt.Sprintf("%t", r.StopOnFirstFailure), rc.Sources["run.stop_on_first_failure"])
	printField(out, "flows", fmtSlice(r.Flows), rc.Sources["run.flows"])
	printField(out, "screenshot_dir", fmtStr(r.ScreenshotDir), rc.Sources["run.screenshot_dir"])
	fmt.Fprintln(out)

	// --- [server] ---
	fmt.Fprintln(out, styleSection.Render("[server]"))
	s := rc.Config.Server
	printField(out, "listen", fmtStr(s.Listen), rc.Sources["server.listen"])
	printField(out, "allowed_origins", fmtSlice(s.AllowedOrigins), rc.Sources["server.allowed_origins"])
	fmt.Fprintln(out)

	// --- [systems.*] (sorted for determinism) ---
	if len(rc.Config.Systems) > 0 {
		names := make([]string, 0, len(rc.Config.Systems))
		for n := range rc.Config.Systems {
			names = append(names, n)
		}
		sort.Strings(names)

		for _, name := range names {
			sys := rc.Config.Systems[name]
			prefix := "systems." + name
			fmt.Fprintln(out, styleSection.Render(fmt.Sprintf("[systems.%s]", name)))
			printField(out, "base_url", fmtStr(sys.BaseURL), rc.Sources[prefix+".base_url"])
			printField(out, "dsn", fmtStr(redactDSN(sys.DSN)), rc.Sources[prefix+".dsn"])
			printField(out, "timeout", sys.Timeout.String(), rc.Sources[prefix+".timeout"])
			fmt.Fprintln(out)
		}
	}
}

// printField writes a single key = value (source: ...) line.
func printField(out io.Writer, name, value string, src config.ConfigSource) {
	// Left-pad the field name to fieldWidth.
	padded := fmt.Sprintf("  %-*s", fieldWidth, name)
	srcLabel := sourceStyle(src).Render(fmt.Sprintf("(source: %s)", src))
	line := fmt.Sprintf("%s = %-40s %s\n", padded, value, srcLabel)
	fmt.Fprint(out, line)
}

// fmtStr formats a string value for display (quoted).
func fmtStr(s string) string {
	return fmt.Sprintf("%q", s)
}

// fmtSlice formats a string slice for display.
func fmtSlice(ss []string) string {
	if len(ss) == 0 {
		return "[]"
	}
	quoted := make([]string, len(ss))
	for i, s := range ss {
		quoted[i] = fmt.Sprintf("%q", s)
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}

// redactDSN masks the password portion of a connection string so debug
// output is safe to paste into tickets.
func redactDSN(dsn string) string {
	if dsn == "" {
		return ""
	}
	at := strings.LastIndex(dsn, "@")
	scheme := strings.Index(dsn, "://")
	if at < 0 || scheme < 0 || at < scheme {
		return dsn
	}
	creds := dsn[scheme+3 : at]
	if colon := strings.Index(creds, ":"); colon >= 0 {
		return dsn[:scheme+3] + creds[:colon] + ":****" + dsn[at:]
	}
	return dsn
}

// ---- printValidationResult --------------------------------------------------

// printValidationResult writes the formatted validation report to cmd's
// output writer.
func printValidationResult(cmd *cobra.Command, result *config.ValidationResult) {
	out := cmd.OutOrStdout()

	header := styleHeader.Render("Configuration Validation")
	sep := styleSeparator.Render(strings.Repeat("=", len("Configuration Validation")))
	fmt.Fprintln(out, header)
	fmt.Fprintln(out, sep)
	fmt.Fprintln(out)

	errs := result.Errors()
	warns := result.Warnings()

	if len(errs) == 0 && len(warns) == 0 {
		fmt.Fprintln(out, styleSuccess.Render("No issues found."))
		return
	}

	if len(errs) > 0 {
		fmt.Fprintln(out, styleErrorLbl.Render("Errors:"))
		for _, issue := range errs {
			fmt.Fprintf(out, "  [%s] %s\n", issue.Field, issue.Message)
		}
		fmt.Fprintln(out)
	}

	if len(warns) > 0 {
		fmt.Fprintln(out, styleWarnLbl.Render("Warnings:"))
		for _, issue := range warns {
			fmt.Fprintf(out, "  [%s] %s\n", issue.Field, issue.Message)
		}
		fmt.Fprintln(out)
	}

	fmt.Fprintf(out, "%d error(s), %d warning(s)\n", len(errs), len(warns))
}
