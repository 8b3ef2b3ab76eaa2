package commands

import (
	"fmt"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/marcus/sprintd/internal/history"
)

var statusLimit int

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show recent session runs",
	Long:  `Status lists recently completed scheduler sessions from the history database.`,
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().IntVarP(&statusLimit, "limit", "n", 20, "Number of runs to show")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := history.Open(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening history db: %w", err)
	}
	defer store.Close()

	records, err := store.Recent(statusLimit)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Println("no session runs recorded yet")
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Sprint", "Status", "Completed", "Failed", "Cost", "Duration", "Finished"})
	for _, rec := range records {
		t.AppendRow(table.Row{
			rec.SprintID,
			rec.Status,
			fmt.Sprintf("%d/%d", rec.TasksCompleted, rec.TasksTotal),
			rec.TasksFailed,
			fmt.Sprintf("$%.2f", rec.TotalCost),
			rec.CompletedAt.Sub(rec.StartedAt).Round(time.Second),
			rec.CompletedAt.Local().Format("2006-01-02 15:04"),
		})
	}
	t.Render()
	return nil
}
