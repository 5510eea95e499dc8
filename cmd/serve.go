package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/hire-intake/internal/secrets"
	"github.com/spigell/hire-intake/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the intake HTTP API",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return serve(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func serve(parent context.Context) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := setup(ctx, "")
	if err != nil {
		return err
	}
	defer rt.close()

	cfg := rt.config.Server
	apiKey, err := secrets.Optional(secrets.Source{
		Name:  "server api key",
		Value: cfg.APIKey,
		File:  cfg.APIKeyFile,
	})
	if err != nil {
		return fmt.Errorf("loading server api key: %w", err)
	}
	if apiKey == "" {
		rt.logger.Warn("X-API-Key check is disabled")
	}

	srv := server.New(*cfg, apiKey, server.Deps{
		Engine:   rt.engine,
		Store:    rt.store,
		Gatherer: rt.registry,
		Logger:   rt.logger.Named("server"),
	})
	if err := srv.Run(ctx); err != nil {
		rt.logger.Error("server stopped with error", zap.Error(err))
		return err
	}
	return nil
}
