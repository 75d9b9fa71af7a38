package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/GraphPe/pinata-cli/internal/cli"
)

// Set via -ldflags "-X main.version=... -X main.commit=... -X main.date=...".
var (
	version = "dev"
	commit  = ""
	date    = ""
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	app := cli.NewApp(cli.BuildInfo{Version: version, Commit: commit, Date: date})
	code := app.Run(ctx, os.Args[1:])
	stop()
	os.Exit(code)
}
