package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/net/netutil"

	"github.com/tchayre/logsti/internal/api"
	"github.com/tchayre/logsti/internal/export"
	"github.com/tchayre/logsti/internal/realtime"
	"github.com/tchayre/logsti/internal/runner"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, realtime hub and scheduled backups",
	RunE:  runServe,
}

// listen opens addr accepting at most max connections at once. Further
// clients wait in the kernel backlog until one closes.
func listen(addr string, max int) (net.Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}
	return netutil.LimitListener(ln, max), nil
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.App.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	a := newApp(cfg)
	defer func() {
		if err := a.Close(); err != nil {
			log.Error().Err(err).Msg("shutdown")
		}
	}()

	gw, broker, err := a.openDatabaseGateway(ctx)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	backup, err := a.openBackup(ctx, registry)
	if err != nil {
		return err
	}

	hub := realtime.NewHub(broker, realtime.WithHubLogger(log))
	hubDone := make(chan error, 1)
	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	go func() { hubDone <- hub.Run(hubCtx) }()

	tasks := runner.NewTaskRegistry()
	tasks.Register(export.NewBackupJob(backup, gw.Tickets(), cfg.Backup.Schedule))
	jobs := runner.NewRunner(tasks, runner.WithLogger(log), runner.WithLocation(cfg.App.Location()))
	if err := jobs.Start(ctx); err != nil {
		return err
	}
	defer jobs.Stop()

	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Path
	}
	server := api.NewServer(gw,
		api.WithLogger(log),
		api.WithHub(hub),
		api.WithBackup(backup),
		api.WithLocation(cfg.App.Location()),
		api.WithRegistry(registry),
		api.WithMetricsPath(metricsPath),
		api.WithCORSOrigins(cfg.Server.CORSOrigins),
	)

	srv := &http.Server{
		Addr:         cfg.Server.GetServerAddr(),
		Handler:      server.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	ln, err := listen(srv.Addr, cfg.Server.MaxConnections)
	if err != nil {
		return err
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", ln.Addr().String()).Int("max_connections", cfg.Server.MaxConnections).Msg("http server listening")
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down")
	case err := <-errCh:
		if err != nil {
			return err
		}
	case err := <-hubDone:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	// websockets are hijacked and not drained by Shutdown; stop the hub first
	stopHub()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	log.Info().Msg("server stopped")
	return nil
}
