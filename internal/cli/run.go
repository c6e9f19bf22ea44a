package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/voxline/workday/internal/comms"
	"github.com/voxline/workday/internal/config"
	"github.com/voxline/workday/internal/model"
	"github.com/voxline/workday/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Config   string
	Database string
	Plans    string
	Ticks    int64
	Interval time.Duration
	Watch    bool
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the simulation",
		Long: `Run the workday simulation.

With --ticks N the simulation advances N ticks and exits. Without it,
the clock auto-advances on a wall-clock interval until interrupted.
Plans come from --plans, a directory of <person-id>.txt files standing
in for a generation service.

Example:
  workday run --config team.yaml --db ./workday.db --ticks 16
  workday run --config team.yaml --db ./workday.db --plans ./plans --watch`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulation(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.Config, "config", "", "path to YAML config (required)")
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	cmd.Flags().StringVar(&opts.Plans, "plans", "", "directory of per-person plan files")
	cmd.Flags().Int64Var(&opts.Ticks, "ticks", 0, "number of ticks to advance (0 = auto-advance until interrupted)")
	cmd.Flags().DurationVar(&opts.Interval, "interval", 2*time.Second, "wall-clock interval between auto-advanced ticks")
	cmd.Flags().BoolVar(&opts.Watch, "watch", false, "hot-reload the config file on change")
	_ = cmd.MarkFlagRequired("config")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runSimulation(ctx context.Context, opts *RunOptions) error {
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
	slog.Info("simulation ready",
		"people", len(cfg.People), "tick", sim.Clock().Tick(), "seed", cfg.Seed)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if opts.Watch {
		watcher, err := config.NewWatcher(opts.Config, func(next config.Config) {
			if err := sim.ReloadRoster(ctx, model.NewRoster(next.People), false); err != nil {
				slog.Error("roster reload failed", "error", err)
			}
		})
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to watch config", err)
		}
		go watcher.Run(ctx)
	}

	if opts.Ticks > 0 {
		for i := int64(0); i < opts.Ticks; i++ {
			if ctx.Err() != nil {
				break
			}
			if _, err := sim.Step(ctx); err != nil {
				return WrapExitError(ExitFailure, "step failed", err)
			}
		}
		return nil
	}

	interval := opts.Interval
	if cfg.Clock.AutoAdvanceSeconds > 0 {
		interval = time.Duration(cfg.Clock.AutoAdvanceSeconds) * time.Second
	}
	if err := sim.StartAuto(ctx, interval); err != nil {
		return WrapExitError(ExitFailure, "auto advance failed", err)
	}
	slog.Info("auto-advancing", "interval", interval)
	<-ctx.Done()
	sim.StopAuto()
	slog.Info("simulation stopped", "tick", sim.Clock().Tick())
	return nil
}
