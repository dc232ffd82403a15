// Package main is the entry point of the quorumdesk command line client.
package main

import (
	"log/slog"
	"os"

	"github.com/quorumdesk/quorumdesk/cmd/quorumdesk/app"
)

func main() {
	handler, sync, err := app.NewLogHandler(app.LogLevel(), "")
	if err != nil {
		slog.Error("Failed to set up logging", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(slog.New(handler))

	err = app.NewRootCmd().Execute()
	sync()
	if err != nil {
		os.Exit(1)
	}
}
