package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/adrg/xdg"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	qdapp "github.com/quorumdesk/quorumdesk/internal/app"
	"github.com/quorumdesk/quorumdesk/internal/attendance"
	pkgsync "github.com/quorumdesk/quorumdesk/internal/sync"
	"github.com/quorumdesk/quorumdesk/internal/tui"
)

const (
	watchLogFile     = "quorumdesk/watch.log"
	noticeQueueSize  = 16
	exitFlushTimeout = 10 * time.Second
)

func newWatchCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow and edit the attendance list live",
		Long: `Load the attendance list, follow changes pushed by the meeting service and save local
edits periodically. The interactive screen accepts:

  ↑/↓ j/k   move            enter/space  cycle the status of the selected row
  p         mark visible PRESENCIAL      a  mark visible AUSENTE
  f         cycle status filter          /  search by name
  s         save now                     r  reload
  q         quit (pending edits are saved first)

With --headless the screen is replaced by a log line per change.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			headless, err := cmd.Flags().GetBool("headless")
			if err != nil {
				return err
			}
			return opts.runWatch(cmd.Context(), headless)
		},
	}
	cmd.Flags().Bool("headless", false, "Log summaries instead of showing the interactive screen")
	return cmd
}

func (o *rootOptions) runWatch(ctx context.Context, headless bool) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The screen owns the terminal, so logs move to a file
	if !headless && o.v.GetString("log-file") == "" {
		path, err := xdg.StateFile(watchLogFile)
		if err != nil {
			return fmt.Errorf("failed to resolve log file: %w", err)
		}
		level := LogLevel()
		if o.v.GetBool("debug") {
			level = slog.LevelDebug
		}
		if err := o.configureLogging(level, path); err != nil {
			return err
		}
	}

	cfg, err := o.loadConfig()
	if err != nil {
		return err
	}

	var program atomic.Pointer[tea.Program]
	queue := tui.NewNoticeQueue(noticeQueueSize, pkgsync.LogNotifier{})
	var appOpts []qdapp.AppOption
	if !headless {
		appOpts = append(appOpts,
			qdapp.WithNotifier(queue),
			qdapp.WithClock(func(t time.Time) {
				if p := program.Load(); p != nil {
					p.Send(tui.ClockMsg(t))
				}
			}))
	}

	s, err := o.openSession(ctx, cfg, appOpts...)
	if err != nil {
		return err
	}
	defer s.Close()
	defer serveMetrics(cfg, s.tel)()

	components := s.Components()
	g, gctx := errgroup.WithContext(ctx)
	runCtx, cancelRun := context.WithCancel(gctx)
	defer cancelRun()

	g.Go(func() error { return s.Run(runCtx) })

	if headless {
		g.Go(func() error {
			logChanges(runCtx, components.Controller)
			return nil
		})
	} else {
		model := tui.New(gctx, components.Controller, components.Coordinator, tui.WithNotices(queue))
		defer model.Close()

		p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(gctx))
		program.Store(p)
		g.Go(func() error {
			defer cancelRun()
			if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
				return fmt.Errorf("interactive screen failed: %w", err)
			}
			return nil
		})
	}

	err = g.Wait()
	return errors.Join(err, flushOnExit(components.Controller))
}

// logChanges logs the summary after every change until ctx is done
func logChanges(ctx context.Context, controller *pkgsync.Controller) {
	changes, unsubscribe := controller.Subscribe()
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return
		case <-changes:
			view, err := controller.View(attendance.Filter{})
			if err != nil {
				slog.Warn("Failed to build attendance view", "error", err)
				continue
			}
			slog.Info("Attendance changed",
				"scope", view.Scope.String(),
				"summary", view.Summary.String(),
				"quorum_met", view.Quorum.Met,
				"present", view.Quorum.Present,
				"required", view.Quorum.Required,
				"pending", view.Pending)
		}
	}
}

// flushOnExit saves edits still pending when the loop ends
func flushOnExit(controller *pkgsync.Controller) error {
	pending := controller.Store().PendingCount()
	if pending == 0 {
		return nil
	}

	slog.Info("Saving pending edits before exit", "pending", pending)
	ctx, cancel := context.WithTimeout(context.Background(), exitFlushTimeout)
	defer cancel()
	if _, err := controller.Save(ctx); err != nil {
		return fmt.Errorf("%d pending edits were not saved: %w", pending, err)
	}
	return nil
}
