package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/LavishGent/imgedge/internal/logging"
)

const (
	flagConfig    = "config"
	flagAddr      = "addr"
	flagLogLevel  = "loglevel"
	flagLogFormat = "logformat"
)

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "imgedge [sub-command]",
		Short: "HTTP edge image resizer",
		Long: `imgedge fetches source images, resizes them to a requested width and
re-encodes them as PNG, JPEG or WEBP, caching every rendition in memory
and optionally in Redis.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
		SilenceUsage:      true,
		DisableAutoGenTag: true,
	}

	cmd.PersistentFlags().StringP(flagConfig, "c", "", "path to a JSON configuration file")
	cmd.PersistentFlags().String(flagLogLevel, "info", "set the log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringP(flagLogFormat, "f", "text", "set the log format (text, json)")

	cmd.AddCommand(newServeCommand())
	cmd.AddCommand(newVersionCommand())
	return cmd
}

func baseLogger(cmd *cobra.Command) (*slog.Logger, error) {
	level, err := cmd.Flags().GetString(flagLogLevel)
	if err != nil {
		return nil, err
	}
	format, err := cmd.Flags().GetString(flagLogFormat)
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(cmd.ErrOrStderr(), level, format)
	if err != nil {
		return nil, fmt.Errorf("could not create logger: %w", err)
	}
	return logger, nil
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the build version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), version)
			return err
		},
	}
}
