package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/sqlgraph/internal/graph"
	"github.com/roach88/sqlgraph/internal/schemafile"
)

// NewInitCommand creates the init command.
func NewInitCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the database and its topology tables",
		Long: `Create the configured database if it does not exist and install the
topology tables. Running init on an existing database changes nothing.

Example:
  sqlgraph init --db ./graph.db`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(rootOpts, cmd)
		},
	}
}

type initResult struct {
	Path     string `json:"path" yaml:"path"`
	Instance string `json:"instance" yaml:"instance"`
}

func (r initResult) String() string {
	return fmt.Sprintf("Initialized %s (instance %s)", r.Path, r.Instance)
}

func runInit(opts *RootOptions, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	g, err := opts.openGraph(cmd)
	if err != nil {
		return f.Fail(err)
	}
	defer opts.closeGraph(g)

	return f.Success(initResult{
		Path:     opts.Config.Database.Path,
		Instance: g.Topology().InstanceID(),
	})
}

// NewApplyCommand creates the apply command.
func NewApplyCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "apply <definitions-dir>",
		Short: "Create labels from CUE topology definitions",
		Long: `Create the schemas, vertex labels, edge labels and properties declared
in the CUE files of a directory. Existing labels are kept; new properties
are added. All changes commit in one transaction.

Example:
  sqlgraph apply --db ./graph.db ./definitions`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApply(rootOpts, args[0], cmd)
		},
	}
}

type applyResult struct {
	Schemas      int `json:"schemas" yaml:"schemas"`
	VertexLabels int `json:"vertexLabels" yaml:"vertexLabels"`
	EdgeLabels   int `json:"edgeLabels" yaml:"edgeLabels"`
}

func (r applyResult) String() string {
	return fmt.Sprintf("Applied %d schema(s), %d vertex label(s), %d edge label(s)", r.Schemas, r.VertexLabels, r.EdgeLabels)
}

func runApply(opts *RootOptions, dir string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	defs, err := schemafile.Load(dir)
	if err != nil {
		return f.Fail(WrapExitError(ExitCommandError, "failed to load definitions", err))
	}
	f.VerboseLog("Loaded %d vertex and %d edge definition(s) from %s", len(defs.Vertices), len(defs.Edges), dir)

	g, err := opts.openGraph(cmd)
	if err != nil {
		return f.Fail(err)
	}
	defer opts.closeGraph(g)

	ctx := cmd.Context()
	err = g.Update(ctx, func(tx *graph.Tx) error {
		return schemafile.Apply(ctx, g.Topology(), tx.Raw(), defs)
	})
	if err != nil {
		return f.Fail(graphFailure("failed to apply definitions", err))
	}

	return f.Success(applyResult{
		Schemas:      len(defs.Schemas),
		VertexLabels: len(defs.Vertices),
		EdgeLabels:   len(defs.Edges),
	})
}
