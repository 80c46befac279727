package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/tchayre/logsti/internal/dashboard"
	"github.com/tchayre/logsti/internal/export"
	"github.com/tchayre/logsti/internal/gateway"
	"github.com/tchayre/logsti/internal/models"
)

var (
	exportRange  export.DateRange
	exportDir    string
	exportSearch string
	exportStatus string

	backupMonth int
	backupYear  int
	backupList  bool
)

var exportCmd = &cobra.Command{
	Use:     "export",
	Short:   "Export the tickets of a month range to a spreadsheet",
	Example: `  logsti export --start-month 1 --start-year 2024 --end-month 3 --end-year 2024
  logsti export --search impressora --status Resolvido`,
	RunE:    runExport,
}

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Snapshot one month of tickets into the backup store",
	Long: `Snapshot the tickets of --month/--year (default: the current month) into
the configured backup store. --list prints the months already stored.`,
	RunE: runBackup,
}

var chartsCmd = &cobra.Command{
	Use:   "charts",
	Short: "Print ticket counts per technician, status, priority and month as JSON",
	RunE:  runCharts,
}

func init() {
	now := time.Now()
	f := exportCmd.Flags()
	f.IntVar(&exportRange.StartMonth, "start-month", int(now.Month()), "First month (1-12)")
	f.IntVar(&exportRange.StartYear, "start-year", now.Year(), "First year")
	f.IntVar(&exportRange.EndMonth, "end-month", int(now.Month()), "Last month (1-12), inclusive")
	f.IntVar(&exportRange.EndYear, "end-year", now.Year(), "Last year")
	f.StringVar(&exportDir, "dir", "", "Output directory (default: export.dir)")
	f.StringVar(&exportSearch, "search", "", "Only export tickets whose title, description, technician or user contains this text")
	f.StringVar(&exportStatus, "status", "", "Only export tickets in this status")

	backupCmd.Flags().IntVar(&backupMonth, "month", 0, "Month to snapshot (default: current)")
	backupCmd.Flags().IntVar(&backupYear, "year", 0, "Year to snapshot (default: current)")
	backupCmd.Flags().BoolVar(&backupList, "list", false, "List stored months instead of taking a snapshot")
}

// mountDashboard loads every collection through the configured gateway.
func mountDashboard(cmd *cobra.Command, a *app, opts ...dashboard.Option) (*dashboard.Dashboard, error) {
	gw, err := a.openGateway(cmd.Context())
	if err != nil {
		return nil, err
	}
	opts = append([]dashboard.Option{
		dashboard.WithLogger(log),
		dashboard.WithLocation(cfg.App.Location()),
		dashboard.WithHealthInterval(cfg.Health.Interval),
	}, opts...)
	d := dashboard.New(gw, opts...)
	if err := d.Mount(cmd.Context()); err != nil {
		d.Unmount()
		return nil, describeLoadError(err)
	}
	if err := d.Tickets().Err(); err != nil {
		d.Unmount()
		return nil, describeLoadError(fmt.Errorf("load tickets: %w", err))
	}
	return d, nil
}

func describeLoadError(err error) error {
	if gateway.KindOf(err) == gateway.KindNetwork {
		return fmt.Errorf("backend unreachable: %w", err)
	}
	return err
}

func runExport(cmd *cobra.Command, args []string) error {
	if err := exportRange.Validate(); err != nil {
		return err
	}
	status := models.TicketStatus(exportStatus)
	if status != "" && !status.Valid() {
		return fmt.Errorf("unknown status %q, want one of %v", exportStatus, models.TicketStatuses)
	}
	dir := exportDir
	if dir == "" {
		dir = cfg.Export.Dir
	}

	a := newApp(cfg)
	defer a.Close()
	d, err := mountDashboard(cmd, a, dashboard.WithExportDir(dir))
	if err != nil {
		return err
	}
	defer d.Unmount()

	path, err := d.Export(exportRange, exportSearch, status)
	if err != nil {
		return err
	}
	log.Info().Str("file", path).Str("range", exportRange.String()).Msg("spreadsheet exported")
	fmt.Fprintln(cmd.OutOrStdout(), path)
	return nil
}

func runBackup(cmd *cobra.Command, args []string) error {
	a := newApp(cfg)
	defer a.Close()
	backup, err := a.openBackup(cmd.Context(), nil)
	if err != nil {
		return err
	}

	if backupList {
		periods, err := backup.Periods(cmd.Context())
		if err != nil {
			return err
		}
		for _, p := range periods {
			fmt.Fprintf(cmd.OutOrStdout(), "%d/%d\t%s\n", p.Month, p.Year, backup.Key(p.Month, p.Year))
		}
		return nil
	}

	now := time.Now().In(cfg.App.Location())
	month, year := backupMonth, backupYear
	if month == 0 {
		month = int(now.Month())
	}
	if year == 0 {
		year = now.Year()
	}

	d, err := mountDashboard(cmd, a, dashboard.WithBackup(backup))
	if err != nil {
		return err
	}
	defer d.Unmount()
	if err := d.Backup(cmd.Context(), month, year); err != nil {
		return err
	}
	log.Info().Int("month", month).Int("year", year).Str("key", backup.Key(month, year)).Msg("backup stored")
	return nil
}

func runCharts(cmd *cobra.Command, args []string) error {
	a := newApp(cfg)
	defer a.Close()
	d, err := mountDashboard(cmd, a)
	if err != nil {
		return err
	}
	defer d.Unmount()

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(d.Charts())
}
