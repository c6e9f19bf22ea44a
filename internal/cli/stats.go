package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/voxline/workday/internal/balance"
	"github.com/voxline/workday/internal/config"
	"github.com/voxline/workday/internal/model"
	"github.com/voxline/workday/internal/store"
)

// StatsOptions holds flags for the stats command.
type StatsOptions struct {
	*RootOptions
	Config   string
	Database string
	Day      int64
}

// NewStatsCommand creates the stats command.
func NewStatsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StatsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show participation statistics for a simulated day",
		Long: `Show per-person participation counts for one simulated day, plus the
day's distribution diagnostics (Gini coefficient and top-two share).
Defaults to the day of the latest persisted tick.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return showStats(cmd.Context(), opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Config, "config", "", "path to YAML config (required)")
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	cmd.Flags().Int64Var(&opts.Day, "day", -1, "simulated day (-1 = day of the latest tick)")
	_ = cmd.MarkFlagRequired("config")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

// statsReport is the stats command's output payload.
type statsReport struct {
	Day         int64                     `json:"day"`
	People      []model.ParticipationStat `json:"people"`
	Gini        float64                   `json:"gini"`
	TopTwoShare float64                   `json:"top_two_share"`
}

func (r statsReport) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "day %d: gini=%.3f top2=%.3f", r.Day, r.Gini, r.TopTwoShare)
	for _, st := range r.People {
		fmt.Fprintf(&b, "\n  %s emails=%d chats=%d", st.PersonID, st.EmailCount, st.ChatCount)
	}
	if len(r.People) == 0 {
		b.WriteString("\n  no participation recorded")
	}
	return b.String()
}

func showStats(ctx context.Context, opts *StatsOptions, cmd *cobra.Command) error {
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}
	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	day := opts.Day
	if day < 0 {
		tick, err := st.LatestTick(ctx)
		if err != nil {
			return WrapExitError(ExitFailure, "failed to read tick", err)
		}
		day = cfg.Layout().Day(tick)
	}

	stats, err := st.ParticipationForDay(ctx, day)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to read participation", err)
	}

	bal := balance.New(st, cfg.Balancing)
	if err := bal.LoadDay(ctx, day); err != nil {
		return WrapExitError(ExitFailure, "failed to load counters", err)
	}

	report := statsReport{
		Day:         day,
		People:      stats,
		Gini:        bal.Gini(day),
		TopTwoShare: bal.TopTwoShare(day),
	}
	f := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	return f.Success(report)
}
