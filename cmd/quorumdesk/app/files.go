package app

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/pkg/browser"
	"github.com/spf13/cobra"

	"github.com/quorumdesk/quorumdesk/internal/meeting"
)

const defaultExportName = "asistencia"

func newImportCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.xlsx>",
		Short: "Replace the attendance list with a spreadsheet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := filepath.Clean(args[0])
			f, err := os.Open(path)
			if err != nil {
				return fmt.Errorf("failed to open import file: %w", err)
			}
			defer f.Close()

			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			s, err := opts.openSession(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer s.Close()

			if err := s.Components().Service.ImportAttendance(cmd.Context(), filepath.Base(path), f); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Lista importada desde %s\n", path)
			return err
		},
	}
}

func newExportCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:       "export <excel|csv|pdf>",
		Short:     "Download an attendance report",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{string(meeting.ExportExcel), string(meeting.ExportCSV), string(meeting.ExportPDF)},
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := meeting.ParseExportFormat(args[0])
			if err != nil {
				return err
			}
			output, err := cmd.Flags().GetString("output")
			if err != nil {
				return err
			}
			if output == "" {
				output = defaultExportName + format.Extension()
			}
			open, err := cmd.Flags().GetBool("open")
			if err != nil {
				return err
			}

			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			s, err := opts.openSession(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer s.Close()

			n, err := exportTo(cmd, s.Components().Service, format, output)
			if err != nil {
				return err
			}
			if _, err := fmt.Fprintf(cmd.OutOrStdout(), "%s: %d bytes\n", output, n); err != nil {
				return err
			}

			if open {
				slog.Debug("Opening report", "path", output)
				if err := browser.OpenFile(output); err != nil {
					return fmt.Errorf("failed to open report: %w", err)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringP("output", "o", "", "Destination file (default asistencia.<ext> in the current directory)")
	cmd.Flags().Bool("open", false, "Open the report once downloaded")
	return cmd
}

// exportTo downloads the report into path, removing the file if the download fails
func exportTo(cmd *cobra.Command, svc meeting.Service, format meeting.ExportFormat, path string) (int64, error) {
	f, err := os.Create(filepath.Clean(path))
	if err != nil {
		return 0, fmt.Errorf("failed to create report file: %w", err)
	}

	n, err := svc.Export(cmd.Context(), format, f)
	closeErr := f.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(path)
		return 0, err
	}
	return n, nil
}

func newLoginCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Check the configured credentials against the meeting service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			username, err := cmd.Flags().GetString("username")
			if err != nil {
				return err
			}
			if username != "" {
				cfg.Server.Username = username
			}
			if cfg.Server.Username == "" {
				return fmt.Errorf("no username configured: use --username or server.username")
			}

			s, err := opts.openSession(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer s.Close()

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Sesión iniciada como %s\n", cfg.Server.Username)
			return err
		},
	}
	cmd.Flags().String("username", "", "User name (overrides server.username)")
	return cmd
}
