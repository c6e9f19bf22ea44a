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

// EventsOptions holds flags for the events command.
type EventsOptions struct {
	*RootOptions
	Config   string
	Database string
	Project  string
	Target   string
}

// NewEventsCommand creates the events command.
func NewEventsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EventsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "events",
		Short:         "List recorded events",
		Long:          "List recorded events in tick order, optionally filtered by project or target person.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return listEvents(cmd.Context(), opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Config, "config", "", "path to YAML config (required)")
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	cmd.Flags().StringVar(&opts.Project, "project", "", "filter by project id")
	cmd.Flags().StringVar(&opts.Target, "target", "", "filter by target person id")
	_ = cmd.MarkFlagRequired("config")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

// eventsReport is the events command's output payload.
type eventsReport struct {
	Events []model.Event `json:"events"`
}

func (r eventsReport) String() string {
	if len(r.Events) == 0 {
		return "no events recorded"
	}
	var b strings.Builder
	for i, e := range r.Events {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "tick %d %s %s targets=%s", e.AtTick, e.Kind, e.ID, strings.Join(e.TargetIDs, ","))
		if e.ProjectID != "" {
			fmt.Fprintf(&b, " project=%s", e.ProjectID)
		}
	}
	return b.String()
}

func listEvents(ctx context.Context, opts *EventsOptions, cmd *cobra.Command) error {
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}
	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	evs, err := buildEventSystem(cfg, st).List(ctx, opts.Project, opts.Target)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to list events", err)
	}

	f := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	return f.Success(eventsReport{Events: evs})
}
