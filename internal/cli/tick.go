package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/voxline/workday/internal/comms"
	"github.com/voxline/workday/internal/config"
	"github.com/voxline/workday/internal/store"
)

// TickOptions holds flags for the tick command.
type TickOptions struct {
	*RootOptions
	Config   string
	Database string
	Plans    string
	Count    int64
}

// NewTickCommand creates the tick command.
func NewTickCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TickOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "tick",
		Short: "Advance the simulation by a number of ticks",
		Long: `Advance the simulation clock manually, running the full per-tick
pipeline for each advanced tick. The clock resumes from the database's
last persisted tick, so repeated invocations continue one timeline.

Example:
  workday tick --config team.yaml --db ./workday.db
  workday tick --config team.yaml --db ./workday.db -n 16`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return advanceTicks(cmd.Context(), opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Config, "config", "", "path to YAML config (required)")
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	cmd.Flags().StringVar(&opts.Plans, "plans", "", "directory of per-person plan files")
	cmd.Flags().Int64VarP(&opts.Count, "count", "n", 1, "number of ticks to advance")
	_ = cmd.MarkFlagRequired("config")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

// tickSummary aggregates the reports of one tick invocation.
type tickSummary struct {
	FromTick   int64 `json:"from_tick"`
	ToTick     int64 `json:"to_tick"`
	Events     int   `json:"events"`
	EmailsSent int   `json:"emails_sent"`
	ChatsSent  int   `json:"chats_sent"`
}

func (s tickSummary) String() string {
	return fmt.Sprintf("advanced tick %d -> %d: events=%d emails=%d chats=%d",
		s.FromTick, s.ToTick, s.Events, s.EmailsSent, s.ChatsSent)
}

func advanceTicks(ctx context.Context, opts *TickOptions, cmd *cobra.Command) error {
	if opts.Count <= 0 {
		return WrapExitError(ExitCommandError, "count must be positive", nil)
	}

	cfg, err := config.Load(opts.Config)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}
	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	sim, err := buildSimulation(ctx, cfg, st, FilePlanner{Dir: opts.Plans}, comms.LogGateway{}, comms.NoProjects{})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to build simulation", err)
	}

	summary := tickSummary{FromTick: sim.Clock().Tick()}
	for i := int64(0); i < opts.Count; i++ {
		report, err := sim.Step(ctx)
		if err != nil {
			return WrapExitError(ExitFailure, "step failed", err)
		}
		summary.Events += report.Events
		summary.EmailsSent += report.EmailsSent
		summary.ChatsSent += report.ChatsSent
	}
	summary.ToTick = sim.Clock().Tick()

	f := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	return f.Success(summary)
}
