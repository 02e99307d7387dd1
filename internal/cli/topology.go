package cli

import (
	"fmt"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/sqlgraph/internal/topology"
)

// NewTopologyCommand creates the topology command.
func NewTopologyCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "topology",
		Short: "Print the committed topology",
		Long: `Print the schemas, vertex labels and edge labels of the database with
their property types and edge endpoints.

Example:
  sqlgraph topology --db ./graph.db --format yaml`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTopology(rootOpts, cmd)
		},
	}
}

// topologyView renders a topology description as text.
type topologyView struct {
	topology.Description `yaml:",inline"`
}

func (v topologyView) String() string {
	var b strings.Builder
	for _, s := range v.Schemas {
		fmt.Fprintf(&b, "schema %s\n", s)
	}
	for _, l := range v.VertexLabels {
		fmt.Fprintf(&b, "vertex %s.%s %s\n", l.Schema, l.Label, formatTypes(l.Properties))
	}
	for _, l := range v.EdgeLabels {
		eps := make([]string, len(l.Endpoints))
		for i, ep := range l.Endpoints {
			eps[i] = fmt.Sprintf("%s.%s %s", ep.Schema, ep.Label, ep.Side)
		}
		fmt.Fprintf(&b, "edge %s.%s %s [%s]\n", l.Schema, l.Label, formatTypes(l.Properties), strings.Join(eps, ", "))
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func formatTypes(props map[string]string) string {
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + " " + props[k]
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func runTopology(opts *RootOptions, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	g, err := opts.openGraph(cmd)
	if err != nil {
		return f.Fail(err)
	}
	defer opts.closeGraph(g)

	return f.Success(topologyView{g.Topology().Snapshot()})
}

// WatchOptions holds flags for the watch command.
type WatchOptions struct {
	*RootOptions
	Once bool
}

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WatchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Merge topology changes made by other processes",
		Long: `Poll the topology log and merge labels and properties committed by
other processes until interrupted. With --once, poll a single time and
report how many changes were merged.

Example:
  sqlgraph watch --db ./graph.db --verbose`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(opts, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Once, "once", false, "poll once and exit")

	return cmd
}

type pollResult struct {
	Merged int   `json:"merged" yaml:"merged"`
	Log    int64 `json:"logPosition" yaml:"logPosition"`
}

func (r pollResult) String() string {
	return fmt.Sprintf("Merged %d topology change(s), log position %d", r.Merged, r.Log)
}

func runWatch(opts *WatchOptions, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	g, err := opts.openGraph(cmd)
	if err != nil {
		return f.Fail(err)
	}
	defer opts.closeGraph(g)

	listener := g.Listener()
	if opts.Once {
		n, err := listener.Poll(cmd.Context())
		if err != nil {
			return f.Fail(graphFailure("topology poll failed", err))
		}
		return f.Success(pollResult{Merged: n, Log: g.Topology().LogPosition()})
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(cmd.OutOrStdout(), "Watching topology of %s (instance %s)\n", opts.Config.Database.Path, g.Topology().InstanceID())
	fmt.Fprintln(cmd.OutOrStdout(), "Press Ctrl-C to stop.")

	if err := listener.Run(ctx); err != nil {
		return WrapExitError(ExitFailure, "listener error", err)
	}
	opts.Logger.Info("watch stopped gracefully")
	return nil
}
