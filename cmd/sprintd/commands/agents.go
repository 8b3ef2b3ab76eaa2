package commands

import (
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var agentsCmd = &cobra.Command{
	Use:   "agents",
	Short: "Show the configured agent pool",
	RunE:  runAgents,
}

func init() {
	rootCmd.AddCommand(agentsCmd)
}

func runAgents(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"ID", "Kind", "Tier", "Capabilities", "Max Concurrent"})
	for _, a := range cfg.Agents {
		tier := a.Tier
		if tier == "" {
			tier = "standard"
		}
		t.AppendRow(table.Row{a.ID, a.Kind, tier, strings.Join(a.Capabilities, ", "), a.MaxConcurrent})
	}
	t.Render()
	return nil
}
