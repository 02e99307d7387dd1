package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/sqlgraph/internal/graph"
	"github.com/roach88/sqlgraph/internal/model"
)

// NewVertexCommand creates the vertex command group.
func NewVertexCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vertex",
		Short: "Add, read and remove vertices",
	}
	cmd.AddCommand(newVertexAddCommand(rootOpts))
	cmd.AddCommand(newVertexGetCommand(rootOpts))
	cmd.AddCommand(newVertexRemoveCommand(rootOpts))
	cmd.AddCommand(newVertexListCommand(rootOpts))
	return cmd
}

func newVertexAddCommand(opts *RootOptions) *cobra.Command {
	var props []string
	cmd := &cobra.Command{
		Use:   "add <label>",
		Short: "Add a vertex",
		Long: `Add a vertex with the given label, creating the label and its
property columns if needed. Properties are key=value or key:TYPE=value.

Example:
  sqlgraph vertex add Person --prop name=marko --prop age:INTEGER=29
  sqlgraph vertex add hr.Employee --prop tags='[a, b]'`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := opts.formatter(cmd)
			values, err := parseProps(props)
			if err != nil {
				return f.Fail(WrapExitError(ExitCommandError, "invalid property", err))
			}
			g, err := opts.openGraph(cmd)
			if err != nil {
				return f.Fail(err)
			}
			defer opts.closeGraph(g)

			var v *graph.Vertex
			err = g.Update(cmd.Context(), func(tx *graph.Tx) error {
				var err error
				v, err = tx.AddVertex(cmd.Context(), args[0], values)
				return err
			})
			if err != nil {
				return f.Fail(graphFailure("failed to add vertex", err))
			}
			return f.Success(newVertexView(v))
		},
	}
	cmd.Flags().StringArrayVar(&props, "prop", nil, "property key[:TYPE]=value (repeatable)")
	return cmd
}

func newVertexGetCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "get <id>",
		Short:         "Print a vertex",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := opts.formatter(cmd)
			id, err := parseID("vertex", args[0])
			if err != nil {
				return f.Fail(err)
			}
			g, err := opts.openGraph(cmd)
			if err != nil {
				return f.Fail(err)
			}
			defer opts.closeGraph(g)

			tx := g.Begin()
			defer tx.Rollback()
			v, err := tx.Vertex(cmd.Context(), id)
			if err != nil {
				return f.Fail(graphFailure("failed to load vertex", err))
			}
			return f.Success(newVertexView(v))
		},
	}
}

func newVertexRemoveCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "rm <id>",
		Short:         "Remove a vertex and its edges",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := opts.formatter(cmd)
			id, err := parseID("vertex", args[0])
			if err != nil {
				return f.Fail(err)
			}
			g, err := opts.openGraph(cmd)
			if err != nil {
				return f.Fail(err)
			}
			defer opts.closeGraph(g)

			err = g.Update(cmd.Context(), func(tx *graph.Tx) error {
				return tx.RemoveVertex(cmd.Context(), id)
			})
			if err != nil {
				return f.Fail(graphFailure("failed to remove vertex", err))
			}
			return f.Success(message{fmt.Sprintf("Removed vertex %d", id)})
		},
	}
}

func newVertexListCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "list <label>",
		Short:         "Print all vertices of a label",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := opts.formatter(cmd)
			g, err := opts.openGraph(cmd)
			if err != nil {
				return f.Fail(err)
			}
			defer opts.closeGraph(g)

			tx := g.Begin()
			defer tx.Rollback()
			vertices, err := tx.VerticesOfLabel(cmd.Context(), args[0])
			if err != nil {
				return f.Fail(graphFailure("failed to list vertices", err))
			}
			list := make(vertexList, len(vertices))
			for i, v := range vertices {
				list[i] = newVertexView(v)
			}
			return f.Success(list)
		},
	}
}

// NewEdgeCommand creates the edge command group.
func NewEdgeCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "edge",
		Short: "Add and remove edges",
	}
	cmd.AddCommand(newEdgeAddCommand(rootOpts))
	cmd.AddCommand(newEdgeRemoveCommand(rootOpts))
	return cmd
}

func newEdgeAddCommand(opts *RootOptions) *cobra.Command {
	var props []string
	cmd := &cobra.Command{
		Use:   "add <label> <out-id> <in-id>",
		Short: "Add an edge between two vertices",
		Long: `Add an edge from the out vertex to the in vertex. The edge label lives
in the out vertex's schema unless the label names a schema.

Example:
  sqlgraph edge add knows 1 2 --prop weight=0.5`,
		Args:          cobra.ExactArgs(3),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := opts.formatter(cmd)
			outID, err := parseID("vertex", args[1])
			if err != nil {
				return f.Fail(err)
			}
			inID, err := parseID("vertex", args[2])
			if err != nil {
				return f.Fail(err)
			}
			values, err := parseProps(props)
			if err != nil {
				return f.Fail(WrapExitError(ExitCommandError, "invalid property", err))
			}
			g, err := opts.openGraph(cmd)
			if err != nil {
				return f.Fail(err)
			}
			defer opts.closeGraph(g)

			ctx := cmd.Context()
			var e *graph.Edge
			err = g.Update(ctx, func(tx *graph.Tx) error {
				out, err := tx.Vertex(ctx, outID)
				if err != nil {
					return err
				}
				in, err := tx.Vertex(ctx, inID)
				if err != nil {
					return err
				}
				e, err = tx.AddEdge(ctx, args[0], out.Ref(), in.Ref(), values)
				return err
			})
			if err != nil {
				return f.Fail(graphFailure("failed to add edge", err))
			}
			return f.Success(newEdgeView(e))
		},
	}
	cmd.Flags().StringArrayVar(&props, "prop", nil, "property key[:TYPE]=value (repeatable)")
	return cmd
}

func newEdgeRemoveCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "rm <id>",
		Short:         "Remove an edge",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := opts.formatter(cmd)
			id, err := parseID("edge", args[0])
			if err != nil {
				return f.Fail(err)
			}
			g, err := opts.openGraph(cmd)
			if err != nil {
				return f.Fail(err)
			}
			defer opts.closeGraph(g)

			err = g.Update(cmd.Context(), func(tx *graph.Tx) error {
				return tx.RemoveEdge(cmd.Context(), id)
			})
			if err != nil {
				return f.Fail(graphFailure("failed to remove edge", err))
			}
			return f.Success(message{fmt.Sprintf("Removed edge %d", id)})
		},
	}
}

// EdgesOptions holds flags for the edges command.
type EdgesOptions struct {
	*RootOptions
	Direction string
	Labels    []string
}

// NewEdgesCommand creates the edges command.
func NewEdgesCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EdgesOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "edges <vertex-id>",
		Short: "Print the edges of a vertex",
		Long: `Print the edges incident to a vertex in one direction, optionally
restricted to edge labels. A label without a schema matches every schema.

Example:
  sqlgraph edges 1 --direction out --label knows`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEdges(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Direction, "direction", "both", "edge direction (in|out|both)")
	cmd.Flags().StringArrayVar(&opts.Labels, "label", nil, "edge label filter (repeatable)")

	return cmd
}

func runEdges(opts *EdgesOptions, arg string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	id, err := parseID("vertex", arg)
	if err != nil {
		return f.Fail(err)
	}
	dir, err := model.ParseDirection(opts.Direction)
	if err != nil {
		return f.Fail(WrapExitError(ExitCommandError, "invalid --direction", err))
	}
	g, err := opts.openGraph(cmd)
	if err != nil {
		return f.Fail(err)
	}
	defer opts.closeGraph(g)

	ctx := cmd.Context()
	tx := g.Begin()
	defer tx.Rollback()

	v, err := tx.Vertex(ctx, id)
	if err != nil {
		return f.Fail(graphFailure("failed to load vertex", err))
	}
	edges, err := tx.Edges(ctx, v.Ref(), dir, opts.Labels...)
	if err != nil {
		return f.Fail(graphFailure("failed to read edges", err))
	}
	list := make(edgeList, len(edges))
	for i, e := range edges {
		list[i] = newEdgeView(e)
	}
	return f.Success(list)
}
