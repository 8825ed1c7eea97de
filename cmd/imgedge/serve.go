package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/LavishGent/imgedge/internal/config"
	"github.com/LavishGent/imgedge/pkg/imgedge"
)

func newServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve /image until interrupted",
		Example: `  imgedge serve --addr :8080
  IMGEDGE_REDIS_ENABLED=true IMGEDGE_REDIS_ADDRESS=localhost:6379 imgedge serve -c imgedge.json`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}
	cmd.Flags().String(flagAddr, "", "listen address, overriding server.address")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	logger, err := baseLogger(cmd)
	if err != nil {
		return err
	}

	path, err := cmd.Flags().GetString(flagConfig)
	if err != nil {
		return err
	}
	cfg, err := config.LoadWithEnv(path)
	if err != nil {
		return fmt.Errorf("could not load configuration: %w", err)
	}
	if addr, _ := cmd.Flags().GetString(flagAddr); addr != "" {
		cfg.Server.Address = addr
	}

	svc, err := imgedge.NewFromConfig(cfg,
		imgedge.WithSlogLogger(logger),
		imgedge.WithVersion(version),
	)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("starting imgedge", "version", version, "addr", cfg.Server.Address)
	serveErr := svc.ListenAndServe(ctx)
	closeErr := svc.Close()
	logger.Info("imgedge stopped")

	return errors.Join(serveErr, closeErr)
}
