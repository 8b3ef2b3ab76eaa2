package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/marcus/sprintd/internal/agents"
	"github.com/marcus/sprintd/internal/config"
	"github.com/marcus/sprintd/internal/events"
	"github.com/marcus/sprintd/internal/history"
	"github.com/marcus/sprintd/internal/logging"
	"github.com/marcus/sprintd/internal/scheduler"
	"github.com/marcus/sprintd/internal/tasks"
)

var (
	runContinuous    bool
	runRequireReview bool
	runMaxAgents     int
	runCostLimit     float64
	runSprintsDir    string
	runDryRun        bool
)

var runCmd = &cobra.Command{
	Use:   "run <sprint-id>",
	Short: "Run a sprint's task backlog to completion",
	Long: `Run starts a scheduler session over the sprint's task list and streams
lifecycle events until every task resolves. The sprint file is read from
<sprints-dir>/<sprint-id>.json.

With --dry-run, prints the dispatch order without executing anything.`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().BoolVar(&runContinuous, "continuous", true, "Keep dispatching after task failures")
	runCmd.Flags().BoolVar(&runRequireReview, "require-review", false, "Ask backends to self-review before finishing")
	runCmd.Flags().IntVar(&runMaxAgents, "max-agents", 0, "Max tasks in flight (default from config)")
	runCmd.Flags().Float64Var(&runCostLimit, "cost-limit", 0, "Pause the session past this cost (default from config)")
	runCmd.Flags().StringVar(&runSprintsDir, "sprints-dir", "", "Directory holding sprint task files (default from config)")
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "Print the dispatch order and exit")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	sprintID := args[0]

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyRunFlags(cmd, cfg)

	source := tasks.NewFileSource(cfg.Sprints.Dir)

	if runDryRun {
		return printDispatchOrder(source, sprintID)
	}

	registry, err := cfg.BuildRegistry()
	if err != nil {
		return err
	}

	store, err := history.Open(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening history db: %w", err)
	}
	defer store.Close()

	bus := events.NewBus()
	defer bus.Close()
	stream := bus.SubscribeAll(0)

	opts := []scheduler.Option{
		scheduler.WithRegistry(registry),
		scheduler.WithSource(source),
		scheduler.WithBus(bus),
		scheduler.WithHistory(store),
		scheduler.WithLogger(logging.Component("scheduler")),
		scheduler.WithSweepInterval(cfg.Scheduler.SweepInterval),
		scheduler.WithDispatchBackoff(cfg.Scheduler.DispatchBackoff),
	}
	for kind, backend := range buildBackends(cfg) {
		opts = append(opts, scheduler.WithBackend(kind, backend))
	}

	engine := scheduler.New(opts...)
	engine.Start()
	defer engine.Stop()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	sessionID, err := engine.StartSession(ctx, sprintID, scheduler.Config{
		MaxAgents:      cfg.Scheduler.MaxAgents,
		ContinuousMode: cfg.Scheduler.Continuous,
		RequireReview:  cfg.Scheduler.RequireReview,
		CostLimit:      cfg.Scheduler.CostLimit,
	})
	if err != nil {
		return err
	}
	fmt.Printf("session %s started for sprint %q\n", sessionID, sprintID)

	for {
		select {
		case <-ctx.Done():
			_ = engine.PauseSession(sessionID)
			fmt.Println("\ninterrupted; session paused, in-flight tasks finishing")
			return nil
		case ev, ok := <-stream:
			if !ok {
				return nil
			}
			if ev.SessionID != sessionID {
				continue
			}
			printEvent(ev)
			if ev.Type == events.SessionCompleted {
				return summarize(ev)
			}
		}
	}
}

// applyRunFlags lets command-line flags override config file settings.
func applyRunFlags(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("continuous") {
		cfg.Scheduler.Continuous = runContinuous
	}
	if cmd.Flags().Changed("require-review") {
		cfg.Scheduler.RequireReview = runRequireReview
	}
	if cmd.Flags().Changed("max-agents") {
		cfg.Scheduler.MaxAgents = runMaxAgents
	}
	if cmd.Flags().Changed("cost-limit") {
		cfg.Scheduler.CostLimit = runCostLimit
	}
	if cmd.Flags().Changed("sprints-dir") {
		cfg.Sprints.Dir = runSprintsDir
	}
}

// buildBackends creates one exec backend per agent kind in the roster.
func buildBackends(cfg *config.Config) map[string]agents.Backend {
	backends := make(map[string]agents.Backend)
	for _, ac := range cfg.Agents {
		if _, ok := backends[ac.Kind]; ok {
			continue
		}
		command := ac.Command
		if command == "" {
			command = ac.Kind
		}
		backends[ac.Kind] = agents.NewExecBackend(ac.Kind, command, agents.WithArgs(ac.Args...))
	}
	return backends
}

// printDispatchOrder shows the heuristic task order without executing.
func printDispatchOrder(source tasks.Source, sprintID string) error {
	specs, err := source.Fetch(context.Background(), sprintID)
	if err != nil {
		return err
	}
	if err := tasks.ValidateSpecs(specs); err != nil {
		return err
	}

	list := make([]*tasks.Task, 0, len(specs))
	for _, spec := range specs {
		list = append(list, tasks.New(spec))
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"#", "Task", "Title", "Deps", "Priority", "Complexity"})
	for i, task := range tasks.Order(list) {
		t.AppendRow(table.Row{i + 1, task.SourceID, task.Title, len(task.Dependencies), task.Priority, task.Complexity})
	}
	t.Render()
	return nil
}

func printEvent(ev events.Event) {
	ts := ev.Time.Format(time.TimeOnly)
	switch ev.Type {
	case events.TaskStarted:
		fmt.Printf("%s  %-16s task=%s agent=%s\n", ts, ev.Type, ev.TaskID, ev.AgentID)
	case events.TaskCompleted:
		fmt.Printf("%s  %-16s task=%s\n", ts, ev.Type, ev.TaskID)
	case events.TaskFailed:
		fmt.Printf("%s  %-16s task=%s error=%v\n", ts, ev.Type, ev.TaskID, ev.Payload["error"])
	case events.TaskRequeued:
		fmt.Printf("%s  %-16s task=%s agent=%s\n", ts, ev.Type, ev.TaskID, ev.AgentID)
	default:
		fmt.Printf("%s  %-16s\n", ts, ev.Type)
	}
}

// summarize prints final metrics and returns an error when tasks failed,
// so the process exit code reflects the sprint outcome.
func summarize(ev events.Event) error {
	completed, _ := ev.Payload["tasks_completed"].(int)
	failed, _ := ev.Payload["tasks_failed"].(int)
	total, _ := ev.Payload["tasks_total"].(int)

	fmt.Printf("\nsprint finished: %d/%d completed, %d failed\n", completed, total, failed)
	if failed > 0 {
		return fmt.Errorf("%d of %d tasks failed", failed, total)
	}
	return nil
}
