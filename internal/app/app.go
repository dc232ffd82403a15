// Package app assembles a quorumdesk session: the meeting client, the attendance controller,
// the sync loop, the push channel and the ballot submitter.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/quorumdesk/quorumdesk/internal/config"
)

// App is a configured session
type App struct {
	config     *config.Config
	components *Components
}

// Run starts the sync loop and, when enabled, the push channel. It blocks until ctx is
// done or Stop is called.
func (app *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	if sub := app.components.Subscriber; sub != nil {
		g.Go(func() error {
			slog.Info("Subscribing to push channel", "url", sub.URL())
			return sub.Run(gctx)
		})
	}
	g.Go(func() error {
		// The push channel ends with the sync loop
		defer cancel()
		return app.components.Coordinator.Start(gctx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("session failed: %w", err)
	}
	return nil
}

// Stop stops the sync loop. A pending autosave is not flushed; callers that need it
// should Save before stopping.
func (app *App) Stop() error {
	slog.Info("Stopping session")
	return app.components.Coordinator.Stop()
}

// Close releases the resources held by the session
func (app *App) Close() error {
	if err := app.components.Markers.Close(); err != nil {
		return fmt.Errorf("failed to close markers store: %w", err)
	}
	return nil
}

// Components returns the session components
func (app *App) Components() *Components {
	return app.components
}

// GetConfig returns the session configuration
func (app *App) GetConfig() *config.Config {
	return app.config
}
