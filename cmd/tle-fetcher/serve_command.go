package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cywf/tle-fetcher/internal/api"
	"github.com/cywf/tle-fetcher/internal/auth"
)

func newServeCommand(app *appContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve TLE lookups over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := app.setup()
			if err != nil {
				return err
			}

			st, err := app.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			svc, err := app.newService(st)
			if err != nil {
				return err
			}

			authCfg := auth.Config{
				Enabled: cfg.Server.AuthToken != "",
				Token:   cfg.Server.AuthToken,
			}
			srv := api.NewServer(cfg.Server.Bind, logger, authCfg, svc, app.fetchOptions(false), st.Ping)

			// Graceful shutdown on SIGINT/SIGTERM.
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() {
				logger.Info("starting server",
					"addr", cfg.Server.Bind,
					"auth_enabled", authCfg.Enabled,
					"offline", cfg.Fetch.Offline,
				)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			logger.Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.HTTPServer().Shutdown(shutdownCtx); err != nil {
				logger.Error("shutdown error", "error", err)
				return err
			}
			logger.Info("server stopped")
			return nil
		},
	}
	return cmd
}
