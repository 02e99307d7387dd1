// Command sqlgraph stores and traverses a property graph in SQLite.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/roach88/sqlgraph/internal/cli"
)

func main() {
	// Use a minimal logger until the configured one is installed.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	os.Exit(cli.Execute(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}
