// Package main is the entry point for the blogportal CLI
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/MrEthical07/goBlog/internal/cli"
)

// Set at build time via ldflags.
var (
	version   = "dev"
	commit    = ""
	buildTime = ""
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := cli.Execute(ctx, cli.Options{
		Build: cli.BuildInfo{Version: version, Commit: commit, BuildTime: buildTime},
	}, os.Args[1:])
	stop()
	os.Exit(code)
}
