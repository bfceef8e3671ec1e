package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/melih/tunnelwatch/internal/adapters/http"
	"github.com/melih/tunnelwatch/internal/log"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, svc, err := setup(os.Stdout)
		if err != nil {
			return err
		}
		if addr, _ := cmd.Flags().GetString("listen"); addr != "" {
			cfg.ListenAddr = addr
		}

		app := http.NewApp(http.NewTunnelHandler(svc.status, svc.lifecycle, Version))

		errCh := make(chan error, 1)
		go func() {
			log.Logger.Info().Str("addr", cfg.ListenAddr).Str("backend", cfg.RuntimeBackend).Msg("server starting")
			if err := app.Listen(cfg.ListenAddr); err != nil {
				errCh <- fmt.Errorf("server failed: %w", err)
			}
		}()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

		select {
		case <-sigCh:
			log.Info("shutting down")
		case err := <-errCh:
			return err
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return app.ShutdownWithContext(ctx)
	},
}

func init() {
	serveCmd.Flags().String("listen", "", "listen address (overrides TUNNELWATCH_LISTEN_ADDR)")
}
