package app

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/quorumdesk/quorumdesk/internal/attendance"
)

// openLoaded opens a session and loads the configured scope
func (o *rootOptions) openLoaded(ctx context.Context) (*session, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}
	s, err := o.openSession(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := s.Components().Controller.Load(ctx, cfg.GetScope()); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// filterFlags registers --search and --status on cmd
func filterFlags(cmd *cobra.Command) {
	cmd.Flags().String("search", "", "Only rows whose names contain this text (prefix with glob: for a pattern)")
	cmd.Flags().String("status", "", "Only rows with this status (PRESENCIAL, VIRTUAL, AUSENTE)")
}

// readFilter builds the row filter from --search and --status
func readFilter(cmd *cobra.Command) (attendance.Filter, error) {
	search, err := cmd.Flags().GetString("search")
	if err != nil {
		return attendance.Filter{}, err
	}
	statusFlag, err := cmd.Flags().GetString("status")
	if err != nil {
		return attendance.Filter{}, err
	}

	filter := attendance.Filter{Search: search}
	if statusFlag != "" {
		status, err := attendance.ParseStatus(statusFlag)
		if err != nil {
			return attendance.Filter{}, err
		}
		filter.Status = status
	}
	return filter, nil
}

func newSummaryCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Print the attendance list with totals and quorum",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			filter, err := readFilter(cmd)
			if err != nil {
				return err
			}
			totalsOnly, err := cmd.Flags().GetBool("totals-only")
			if err != nil {
				return err
			}
			out, err := opts.reportWriter(cmd.OutOrStdout())
			if err != nil {
				return err
			}

			s, err := opts.openLoaded(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()

			view, err := s.Components().Controller.View(filter)
			if err != nil {
				return err
			}
			if !totalsOnly {
				if err := out.Attendance(view.Rows); err != nil {
					return err
				}
			}
			return out.Summary(view.Summary, view.Quorum)
		},
	}
	filterFlags(cmd)
	cmd.Flags().Bool("totals-only", false, "Skip the attendance table")
	return cmd
}

func newSetCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "set <id> <estado>",
		Short: "Change the attendance status of one record and save it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid record id %q: %w", args[0], err)
			}
			status, err := attendance.ParseStatus(args[1])
			if err != nil {
				return err
			}

			s, err := opts.openLoaded(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()

			controller := s.Components().Controller
			if err := controller.Edit(id, status); err != nil {
				return err
			}
			if _, err := controller.Save(cmd.Context()); err != nil {
				return err
			}

			slog.Debug("Record saved", "id", id, "status", status)
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Registro %d: %s\n", id, status)
			return err
		},
	}
}

func newMarkAllCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mark-all <estado>",
		Short: "Set the status of every matching row and save",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := attendance.ParseStatus(args[0])
			if err != nil {
				return err
			}
			filter, err := readFilter(cmd)
			if err != nil {
				return err
			}

			s, err := opts.openLoaded(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()

			changed, _, err := s.Components().Controller.MarkAll(cmd.Context(), status, filter)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%d filas marcadas %s\n", changed, status)
			return err
		},
	}
	filterFlags(cmd)
	return cmd
}
