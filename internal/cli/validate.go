package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gantrylabs/gantry/internal/flow"
)

// validateCmd implements "gantry validate". It statically checks flow
// definitions without touching any system: schema problems are errors,
// dependency problems (unknown references, cycles) surface as the same
// warnings the engine would report at run time.
var validateCmd = &cobra.Command{
	Use:   "validate [flow-file...]",
	Short: "Validate flow definitions without executing them",
	Long: `Validate flow definition files. With no arguments every discovered flow
is checked; otherwise only the given files are.

Schema violations (unknown systems, malformed actions, missing operators)
are errors. Dependency issues such as references to unknown stages or
cycles are reported as warnings; at run time the engine skips past them.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		defs, err := flowsToValidate(args)
		if err != nil {
			return err
		}
		if len(defs) == 0 {
			return fmt.Errorf("no flow definitions found")
		}

		out := cmd.OutOrStdout()
		invalid := 0

		for _, def := range defs {
			result := flow.Validate(def)
			_, warnings := flow.Resolve(def.Stages)

			if result.IsValid() && len(warnings) == 0 {
				fmt.Fprintf(out, "%s: ok\n", def.Name)
				continue
			}

			fmt.Fprintf(out, "%s:\n", def.Name)
			if !result.IsValid() {
				invalid++
				fmt.Fprint(out, indent(result.String()))
			}
			for _, w := range warnings {
				fmt.Fprintf(out, "  warning: %s\n", w)
			}
		}

		if invalid > 0 {
			return fmt.Errorf("%d of %d flow(s) invalid", invalid, len(defs))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

// flowsToValidate loads the explicitly named files, or falls back to config
// driven discovery when none are given.
func flowsToValidate(paths []string) ([]*flow.Definition, error) {
	if len(paths) == 0 {
		resolved, _, err := loadAndResolveConfig()
		if err != nil {
			return nil, err
		}
		return newFlowSource(resolved).Flows()
	}

	defs := make([]*flow.Definition, 0, len(paths))
	for _, path := range paths {
		def, err := flow.LoadFile(path)
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	return defs, nil
}

// indent prefixes every non-empty line with two spaces.
func indent(s string) string {
	var b strings.Builder
	for _, line := range strings.Split(s, "\n") {
		if line == "" {
			continue
		}
		b.WriteString("  ")
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return b.String()
}
