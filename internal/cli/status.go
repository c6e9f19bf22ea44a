package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/voxline/workday/internal/config"
	"github.com/voxline/workday/internal/model"
	"github.com/voxline/workday/internal/store"
)

// StatusOptions holds flags for the status command.
type StatusOptions struct {
	*RootOptions
	Config   string
	Database string
	LogLines int
}

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StatusOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "status",
		Short:         "Show the simulation clock and recent tick log",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return showStatus(cmd.Context(), opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Config, "config", "", "path to YAML config (required)")
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	cmd.Flags().IntVar(&opts.LogLines, "log", 5, "number of recent tick log entries to show")
	_ = cmd.MarkFlagRequired("config")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

// statusReport is the status command's output payload.
type statusReport struct {
	Tick    int64                `json:"tick"`
	Day     int64                `json:"day"`
	Time    string               `json:"time"`
	People  int                  `json:"people"`
	TickLog []model.TickLogEntry `json:"tick_log,omitempty"`
}

func (r statusReport) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "tick %d (day %d, %s), %d people", r.Tick, r.Day, r.Time, r.People)
	for _, e := range r.TickLog {
		fmt.Fprintf(&b, "\n  tick %d %s at %s", e.Tick, e.Reason, e.At.Format("15:04:05"))
	}
	return b.String()
}

func showStatus(ctx context.Context, opts *StatusOptions, cmd *cobra.Command) error {
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}
	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	tick, err := st.LatestTick(ctx)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to read tick", err)
	}
	entries, err := st.TickLog(ctx, opts.LogLines)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to read tick log", err)
	}

	layout := cfg.Layout()
	hour, minute := layout.TimeOfDay(tick)
	report := statusReport{
		Tick:    tick,
		Day:     layout.Day(tick),
		Time:    fmt.Sprintf("%02d:%02d", hour, minute),
		People:  len(cfg.People),
		TickLog: entries,
	}

	f := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	return f.Success(report)
}
