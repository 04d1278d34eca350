package cli

import (
	"log/slog"

	"github.com/spf13/cobra"

	"edfsched/internal/config"
	"edfsched/internal/logging"
)

var (
	flagConfig    string
	flagDebug     bool
	flagLogLevel  string
	flagLogFormat string

	cfg    config.File
	logger *slog.Logger
)

// NewRootCmd creates the root cobra command for the edfsched CLI.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "edfsched",
		Short: "edfsched is an earliest-deadline-first periodic task scheduler",
		Long:  "edfsched runs, simulates and checks sets of periodic tasks under EDF scheduling.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load(flagConfig)
			if err != nil {
				return err
			}
			level, format := cfg.Log.Level, cfg.Log.Format
			if cmd.Flags().Changed("log-level") {
				level = flagLogLevel
			}
			if cmd.Flags().Changed("log-format") {
				format = flagLogFormat
			}
			if flagDebug {
				level = "debug"
			}
			logger = logging.NewLogger(logging.ParseLevel(level), format)
			return nil
		},
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&flagConfig, "config", "config.yml", "Config file (defaults are used if it does not exist)")
	root.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Enable debug logging")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&flagLogFormat, "log-format", "text", "Log format (text, json)")

	root.AddCommand(
		newRunCmd(),
		newSimCmd(),
		newCheckCmd(),
	)

	return root
}
