// Command rxnrecon is the operator CLI: run passes, resolve names, manage the
// schema and inspect the event stream.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/turtacn/rxn-reconciler/internal/interfaces/cli"
)

// Build-time variables injected via ldflags.
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func init() {
	cli.Version = version
	cli.GitCommit = commit
	cli.BuildDate = buildDate
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := cli.Execute(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
