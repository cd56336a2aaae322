package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

// flowsJSON is the --json flag for the flows command.
var flowsJSON bool

// flowListEntry is the JSON output type for one discovered flow.
type flowListEntry struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Stages      int      `json:"stages"`
	Systems     []string `json:"systems"`
}

// flowsCmd implements "gantry flows". It lists every flow the configured
// glob patterns discover, without executing anything.
var flowsCmd = &cobra.Command{
	Use:   "flows",
	Short: "List discovered flow definitions",
	Long: `List every flow definition matched by the configured discovery patterns
([run].flows in gantry.toml), showing each flow's stage count and the
systems it touches.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		resolved, _, err := loadAndResolveConfig()
		if err != nil {
			return err
		}

		defs, err := newFlowSource(resolved).Flows()
		if err != nil {
			return err
		}

		entries := make([]flowListEntry, 0, len(defs))
		for _, def := range defs {
			seen := make(map[string]bool)
			var systems []string
			for _, stage := range def.Stages {
				s := string(stage.System)
				if !seen[s] {
					seen[s] = true
					systems = append(systems, s)
				}
			}
			entries = append(entries, flowListEntry{
				Name:        def.Name,
				Description: def.Description,
				Stages:      len(def.Stages),
				Systems:     systems,
			})
		}

		out := cmd.OutOrStdout()

		if flowsJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(entries)
		}

		if len(entries) == 0 {
			fmt.Fprintf(out, "No flows matched patterns %v\n", resolved.Config.Run.Flows)
			return nil
		}

		nameStyle := lipgloss.NewStyle().Bold(true)
		for _, e := range entries {
			fmt.Fprintf(out, "%s  %d stage(s)  [%s]\n",
				nameStyle.Render(fmt.Sprintf("%-28s", e.Name)),
				e.Stages, strings.Join(e.Systems, ", "))
			if e.Description != "" {
				fmt.Fprintf(out, "  %s\n", e.Description)
			}
		}
		return nil
	},
}

func init() {
	flowsCmd.Flags().BoolVar(&flowsJSON, "json", false, "Output flow list as JSON")
	rootCmd.AddCommand(flowsCmd)
}
