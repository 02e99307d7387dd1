package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/sqlgraph/internal/config"
	"github.com/roach88/sqlgraph/internal/graph"
)

// RootOptions holds global flags for all commands and the configuration
// resolved from them.
type RootOptions struct {
	Verbose    bool
	Format     string // "text" | "json" | "yaml"
	ConfigFile string
	Database   string

	Config *config.Config
	Logger *slog.Logger
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json", "yaml"}

// NewRootCommand creates the root command for the sqlgraph CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "sqlgraph",
		Short: "sqlgraph - property graphs on SQL",
		Long: `Store and traverse a property graph of labelled vertices and edges
in a SQL database. Labels and property columns are created on first use.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return opts.setup(cmd)
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (text|json|yaml)")
	cmd.PersistentFlags().StringVar(&opts.ConfigFile, "config", "", "path to YAML config file")
	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "path to SQLite database (overrides config)")

	cmd.AddCommand(NewInitCommand(opts))
	cmd.AddCommand(NewApplyCommand(opts))
	cmd.AddCommand(NewTopologyCommand(opts))
	cmd.AddCommand(NewVertexCommand(opts))
	cmd.AddCommand(NewEdgeCommand(opts))
	cmd.AddCommand(NewEdgesCommand(opts))
	cmd.AddCommand(NewWatchCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

// Execute runs the CLI with args and returns the process exit code.
// Errors not already rendered as JSON or YAML are printed to stderr.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := NewRootCommand()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
	}
	return GetExitCode(err)
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}

// setup resolves configuration and installs the logger. It runs once per
// command; commands built without the root command call it lazily.
func (o *RootOptions) setup(cmd *cobra.Command) error {
	if o.Config != nil {
		return nil
	}

	v := config.New()
	if o.Database != "" {
		v.Set("database.path", o.Database)
	}
	cfg, err := config.Load(v, o.ConfigFile)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}

	level, err := config.ParseLevel(cfg.Log.Level)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if o.Verbose {
		level = slog.LevelDebug
	}
	handlerOpts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Log.Format == "json" {
		handler = slog.NewJSONHandler(cmd.ErrOrStderr(), handlerOpts)
	} else {
		handler = slog.NewTextHandler(cmd.ErrOrStderr(), handlerOpts)
	}

	o.Config = cfg
	o.Logger = slog.New(handler)
	return nil
}

// formatter returns an output formatter for cmd.
func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	format := o.Format
	if format == "" {
		format = "text"
	}
	return &OutputFormatter{
		Format:    format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

// openGraph opens the configured database.
func (o *RootOptions) openGraph(cmd *cobra.Command) (*graph.Graph, error) {
	if err := o.setup(cmd); err != nil {
		return nil, err
	}
	g, err := graph.Open(cmd.Context(), graph.Options{
		Path:         o.Config.Database.Path,
		MaxOpenConns: o.Config.Database.MaxOpenConns,
		BusyTimeout:  o.Config.Database.BusyTimeout,
		PollInterval: o.Config.Topology.PollInterval,
		Logger:       o.Logger,
	})
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return g, nil
}

// closeGraph closes g, logging a failure.
func (o *RootOptions) closeGraph(g *graph.Graph) {
	if err := g.Close(); err != nil {
		o.Logger.Error("error closing database", "error", err)
	}
}
