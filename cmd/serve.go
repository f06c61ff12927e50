package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/goalpulse/internal/adapters/http/api"
	"github.com/okian/goalpulse/internal/adapters/http/swagger"
	"github.com/okian/goalpulse/internal/config"
	"github.com/okian/goalpulse/pkg/logger"
)

// HTTP server timeout constants.
const (
	readTimeout       = 10 * time.Second
	writeTimeout      = 60 * time.Second
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 30 * time.Second
)

func newServeCmd(flags *rootFlags) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the polling loop and the HTTP API until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := setup(cmd, flags, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Addr = addr
			}

			// Root context with cancel on SIGINT/SIGTERM.
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "HTTP listen address (overrides config)")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config) error {
	log := logger.Get()
	defer func() {
		_ = logger.Sync()
	}()

	app, err := build(ctx, cfg)
	if err != nil {
		return err
	}
	if err := app.svc.Start(ctx); err != nil {
		app.close()
		return fmt.Errorf("failed to start service: %w", err)
	}

	go startSystemMetricsUpdater(ctx)

	apiOpts := []api.Option{api.WithMaxLimit(cfg.MaxLeaderboardLimit)}
	if app.hub != nil {
		apiOpts = append(apiOpts, api.WithWebsocket(app.hub.ServeWS))
	}
	router := api.NewServer(app.svc, apiOpts...).Router()
	swagger.Register(ctx, router)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	runErr := make(chan error, 1)
	go func() {
		runErr <- app.svc.Run(ctx)
	}()

	var failure error
	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			failure = fmt.Errorf("HTTP server failed: %w", err)
		}
	case err := <-runErr:
		if err != nil {
			failure = fmt.Errorf("polling loop failed: %w", err)
		}
	}
	log.Info(ctx, "shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(shutdownCtx, "server shutdown failed", logger.Error(err))
	}
	if err := app.svc.Stop(shutdownCtx); err != nil {
		log.Error(shutdownCtx, "service stop failed", logger.Error(err))
	}
	app.close()

	log.Info(shutdownCtx, "server stopped")
	return failure
}
