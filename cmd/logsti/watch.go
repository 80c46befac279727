package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tchayre/logsti/internal/dashboard"
	"github.com/tchayre/logsti/internal/gateway"
	"github.com/tchayre/logsti/internal/models"
)

var watchURL string

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow a running server and log dashboard stats on every change",
	Long: `Mount a dashboard against the REST gateway of a running server. Stats are
logged after every collection change and every connectivity transition
until interrupted.`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVar(&watchURL, "url", "", "Server base URL (default: gateway.base_url)")
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if watchURL != "" {
		cfg.Gateway.BaseURL = watchURL
	}
	a := newApp(cfg)
	defer a.Close()
	gw := a.openRESTGateway()

	d := dashboard.New(gw,
		dashboard.WithLogger(log),
		dashboard.WithLocation(cfg.App.Location()),
		dashboard.WithHealthInterval(cfg.Health.Interval),
	)
	cancel := d.OnChange(func() {
		stats := d.Stats()
		log.Info().
			Bool("connected", d.Monitor().Connected()).
			Int("total", stats.Total).
			Int("open", stats.Open).
			Int("in_progress", stats.InProgress).
			Int("resolved", stats.Resolved).
			Int("technicians", len(d.SelectionNames(models.KindTechnician))).
			Msg("dashboard changed")
	})
	defer cancel()

	if err := d.Mount(ctx); err != nil {
		log.Warn().Err(err).Str("kind", string(gateway.KindOf(err))).Msg("dashboard mounted with errors")
	}
	defer d.Unmount()
	log.Info().Str("url", cfg.Gateway.BaseURL).Msg("watching; press Ctrl+C to stop")

	<-ctx.Done()
	return nil
}
