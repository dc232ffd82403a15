package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	qdapp "github.com/quorumdesk/quorumdesk/internal/app"
)

const defaultGracefulTimeout = 30 * time.Second

func newDevServerCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "devserver",
		Short: "Serve a fake meeting service for local testing",
		Long: `Serve an in-memory meeting service with the REST endpoints and the push channel
quorumdesk uses. A seed file provides the attendance list, voting sessions and users:

  records:
    - id: 1
      accionista: Ana Pérez
      acciones: 100
      estado: AUSENTE
  votings:
    - id: "7"
      quorum: 50
      questions:
        - id: 4
          texto: Aprobación de estados financieros
          opciones: {10: A favor, 11: En contra}
  users:
    admin: secret`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			address, err := cmd.Flags().GetString("address")
			if err != nil {
				return err
			}
			seedPath, err := cmd.Flags().GetString("seed")
			if err != nil {
				return err
			}
			socketIO, err := cmd.Flags().GetBool("socketio")
			if err != nil {
				return err
			}

			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			tel, err := newTelemetry(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer shutdownTelemetry(tel)

			serverOpts := []qdapp.DevServerOption{
				qdapp.WithAddress(address),
				qdapp.WithSocketIO(socketIO),
				qdapp.WithDevTelemetry(tel),
			}
			if seedPath != "" {
				seed, err := qdapp.LoadSeed(seedPath)
				if err != nil {
					return err
				}
				serverOpts = append(serverOpts, qdapp.WithSeed(seed))
			}

			server, err := qdapp.NewDevServer(serverOpts...)
			if err != nil {
				return fmt.Errorf("failed to create development server: %w", err)
			}
			return runUntilSignal(cmd.Context(), server)
		},
	}
	cmd.Flags().String("address", "127.0.0.1:5000", "Address to listen on")
	cmd.Flags().String("seed", "", "Path to the seed file (YAML format)")
	cmd.Flags().Bool("socketio", false, "Emit push events as Socket.IO frames")
	return cmd
}

// runUntilSignal serves until SIGINT or SIGTERM, then shuts down gracefully
func runUntilSignal(ctx context.Context, server *qdapp.DevServer) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(server.Start)
	g.Go(func() error {
		<-gctx.Done()
		return server.Stop(defaultGracefulTimeout)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
