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

// InjectOptions holds flags for the inject command.
type InjectOptions struct {
	*RootOptions
	Config   string
	Database string
	Kind     string
	Targets  []string
	Project  string
	Tick     int64
	Payload  []string
}

// NewInjectCommand creates the inject command.
func NewInjectCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InjectOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "inject",
		Short: "Inject an event into the simulation",
		Long: `Inject an event directly, bypassing the random triggers. Injection is
a trusted operation: the event is validated and persisted as-is, and
picked up by the next processed tick.

Example:
  workday inject --config team.yaml --db ./workday.db \
    --kind absence --target a-1 --payload person_id=a-1 --payload person_name=Alice`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return injectEvent(cmd.Context(), opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Config, "config", "", "path to YAML config (required)")
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	cmd.Flags().StringVar(&opts.Kind, "kind", "", "event kind (absence|feature_request) (required)")
	cmd.Flags().StringSliceVar(&opts.Targets, "target", nil, "target person id (repeatable, required)")
	cmd.Flags().StringVar(&opts.Project, "project", "", "project id")
	cmd.Flags().Int64Var(&opts.Tick, "tick", -1, "tick to attach the event to (-1 = next tick)")
	cmd.Flags().StringArrayVar(&opts.Payload, "payload", nil, "payload entry as key=value (repeatable)")
	_ = cmd.MarkFlagRequired("config")
	_ = cmd.MarkFlagRequired("db")
	_ = cmd.MarkFlagRequired("kind")
	_ = cmd.MarkFlagRequired("target")

	return cmd
}

func injectEvent(ctx context.Context, opts *InjectOptions, cmd *cobra.Command) error {
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}
	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	payload := make(map[string]string, len(opts.Payload))
	for _, kv := range opts.Payload {
		k, v, found := strings.Cut(kv, "=")
		if !found || k == "" {
			return WrapExitError(ExitCommandError, fmt.Sprintf("malformed payload entry %q", kv), nil)
		}
		payload[k] = v
	}

	tick := opts.Tick
	if tick < 0 {
		latest, err := st.LatestTick(ctx)
		if err != nil {
			return WrapExitError(ExitFailure, "failed to read tick", err)
		}
		tick = latest + 1
	}

	ev := buildEventSystem(cfg, st)
	injected, err := ev.Inject(ctx, model.Event{
		Kind:      model.EventKind(opts.Kind),
		TargetIDs: opts.Targets,
		ProjectID: opts.Project,
		AtTick:    tick,
		Payload:   payload,
	})
	if err != nil {
		return WrapExitError(ExitFailure, "event rejected", err)
	}

	f := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	if opts.Format == "json" {
		return f.Success(injected)
	}
	return f.Success(fmt.Sprintf("injected %s event %s at tick %d targeting %s",
		injected.Kind, injected.ID, injected.AtTick, strings.Join(injected.TargetIDs, ",")))
}
