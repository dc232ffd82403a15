// Package app provides the entry point for the quorumdesk command line client.
package app

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/adrg/xdg"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/text/language"

	"github.com/quorumdesk/quorumdesk/internal/config"
	"github.com/quorumdesk/quorumdesk/internal/report"
	"github.com/quorumdesk/quorumdesk/internal/versions"
)

const defaultConfigFile = "quorumdesk/config.yaml"

// rootOptions carries the state shared by every command
type rootOptions struct {
	v        *viper.Viper
	stdin    *os.File
	closeLog func()
}

// NewRootCmd creates the quorumdesk command tree.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{v: viper.New(), stdin: os.Stdin}
	opts.v.SetEnvPrefix(config.EnvPrefix)
	opts.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	opts.v.AutomaticEnv()

	rootCmd := &cobra.Command{
		Use:               "quorumdesk",
		DisableAutoGenTag: true,
		SilenceUsage:      true,
		Short:             "Attendance and voting client for shareholder meetings",
		Long: `quorumdesk keeps a live copy of a meeting's attendance list, saves status changes back
to the meeting service, follows changes made by other operators and submits ballots.`,
		PersistentPreRunE: opts.setupLogging,
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			if opts.closeLog != nil {
				opts.closeLog()
			}
		},
		Run: func(cmd *cobra.Command, _ []string) {
			// If no subcommand is provided, print help
			if err := cmd.Help(); err != nil {
				slog.Error("Error displaying help", "error", err)
			}
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "Path to configuration file (YAML format)")
	flags.Bool("debug", false, "Enable debug logging")
	flags.String("log-file", "", "Write logs to this file instead of stderr")
	flags.String("voting", "", "Voting session id; empty selects the global attendance list")
	flags.String("server", "", "Base URL of the meeting service")
	flags.String("lang", report.DefaultLanguage.String(), "Language used to format numbers in reports")
	flags.Bool("ephemeral", false, "Keep voted markers in memory only")

	for _, name := range []string{"config", "debug", "log-file", "voting", "server", "lang", "ephemeral"} {
		if err := opts.v.BindPFlag(name, flags.Lookup(name)); err != nil {
			slog.Error("Error binding flag", "flag", name, "error", err)
		}
	}

	rootCmd.AddCommand(
		newWatchCmd(opts),
		newSummaryCmd(opts),
		newSetCmd(opts),
		newMarkAllCmd(opts),
		newVoteCmd(opts),
		newQuestionsCmd(opts),
		newImportCmd(opts),
		newExportCmd(opts),
		newLoginCmd(opts),
		newDevServerCmd(opts),
		newVersionCmd(),
	)

	return rootCmd
}

// setupLogging replaces the default logger when --debug or --log-file is set
func (o *rootOptions) setupLogging(_ *cobra.Command, _ []string) error {
	debug := o.v.GetBool("debug")
	logFile := o.v.GetString("log-file")
	if !debug && logFile == "" {
		return nil
	}

	level := LogLevel()
	if debug {
		level = slog.LevelDebug
	}
	return o.configureLogging(level, logFile)
}

func (o *rootOptions) configureLogging(level slog.Level, path string) error {
	handler, closeLog, err := NewLogHandler(level, path)
	if err != nil {
		return err
	}
	if o.closeLog != nil {
		o.closeLog()
	}
	o.closeLog = closeLog
	slog.SetDefault(slog.New(handler))
	return nil
}

// loadConfig reads the configuration file and applies the command line overrides
func (o *rootOptions) loadConfig() (*config.Config, error) {
	path := o.v.GetString("config")
	if path == "" {
		if found, err := xdg.SearchConfigFile(defaultConfigFile); err == nil {
			path = found
		}
	}

	var loadOpts []config.Option
	if path != "" {
		loadOpts = append(loadOpts, config.WithConfigPath(path))
	}
	cfg, err := config.LoadConfig(loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if server := o.v.GetString("server"); server != "" {
		cfg.Server.BaseURL = server
	}
	if votingID := o.v.GetString("voting"); votingID != "" {
		cfg.Scope.VotingID = votingID
	}
	if o.v.GetBool("ephemeral") {
		cfg.Markers.Driver = config.MarkersDriverMemory
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	slog.Debug("Configuration loaded", "path", path, "base_url", cfg.GetBaseURL(), "scope", cfg.GetScope().String())
	return cfg, nil
}

// language returns the locale used for report numbers
func (o *rootOptions) language() (language.Tag, error) {
	return report.ParseLanguage(o.v.GetString("lang"))
}

// reportWriter returns a report writer for w in the configured language
func (o *rootOptions) reportWriter(w io.Writer) (*report.Writer, error) {
	tag, err := o.language()
	if err != nil {
		return nil, err
	}
	return report.New(w, report.WithLanguage(tag)), nil
}

func newVersionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, _ []string) error {
			info := versions.GetInfo()
			format, err := cmd.Flags().GetString("format")
			if err != nil {
				return fmt.Errorf("failed to read format flag: %w", err)
			}

			out := cmd.OutOrStdout()
			if format == "json" {
				output, err := json.MarshalIndent(info, "", "  ")
				if err != nil {
					return fmt.Errorf("failed to format version info as JSON: %w", err)
				}
				_, err = fmt.Fprintln(out, string(output))
				return err
			}

			_, err = fmt.Fprintf(out, "quorumdesk %s\ncommit: %s\nbuilt: %s\ngo: %s\nplatform: %s\n",
				info.Version, info.Commit, info.BuildDate, info.GoVersion, info.Platform)
			return err
		},
	}
	cmd.Flags().String("format", "", "Output format (json)")
	return cmd
}
