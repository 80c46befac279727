// Package dashboard owns the state of one mounted dashboard view: the five
// entity stores and the connectivity monitor.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/tchayre/logsti/internal/charts"
	"github.com/tchayre/logsti/internal/export"
	"github.com/tchayre/logsti/internal/gateway"
	"github.com/tchayre/logsti/internal/health"
	"github.com/tchayre/logsti/internal/models"
	"github.com/tchayre/logsti/internal/store"
)

// ErrNoBackup is returned by Backup when no backup store is configured.
var ErrNoBackup = errors.New("dashboard: backups not configured")

// Dashboard ties the stores to a gateway. Mount starts everything and
// Unmount releases every subscription and timer.
type Dashboard struct {
	gw         gateway.Gateway
	tickets    *store.TicketStore
	references map[models.ReferenceKind]*store.ReferenceStore
	monitor    *health.Monitor
	exporter   *export.Exporter
	backup     *export.Backup
	metrics    *charts.Metrics
	loc        *time.Location
	log        zerolog.Logger
}

// Option configures a Dashboard.
type Option func(*config)

type config struct {
	log            zerolog.Logger
	loc            *time.Location
	healthInterval time.Duration
	exportDir      string
	backup         *export.Backup
	metrics        *charts.Metrics
}

func WithLogger(log zerolog.Logger) Option {
	return func(c *config) { c.log = log }
}

// WithLocation sets the zone used for export ranges and chart months.
func WithLocation(loc *time.Location) Option {
	return func(c *config) { c.loc = loc }
}

func WithHealthInterval(d time.Duration) Option {
	return func(c *config) { c.healthInterval = d }
}

// WithExportDir sets where Export writes workbooks.
func WithExportDir(dir string) Option {
	return func(c *config) { c.exportDir = dir }
}

func WithBackup(b *export.Backup) Option {
	return func(c *config) { c.backup = b }
}

// WithMetrics feeds chart gauges on every Charts call.
func WithMetrics(m *charts.Metrics) Option {
	return func(c *config) { c.metrics = m }
}

// New builds an unmounted dashboard over gw.
func New(gw gateway.Gateway, opts ...Option) *Dashboard {
	c := config{log: zerolog.Nop(), loc: time.UTC, healthInterval: health.DefaultInterval, exportDir: "."}
	for _, opt := range opts {
		opt(&c)
	}
	d := &Dashboard{
		gw:         gw,
		references: map[models.ReferenceKind]*store.ReferenceStore{},
		backup:     c.backup,
		metrics:    c.metrics,
		loc:        c.loc,
		log:        c.log,
	}
	d.tickets = store.NewTicketStore(gw.Tickets(), store.WithLogger(c.log))
	for _, kind := range models.ReferenceKinds {
		d.references[kind] = store.NewReferenceStore(kind, gw.References(kind), store.WithLogger(c.log))
	}
	d.monitor = health.NewMonitor(gw, c.healthInterval, health.WithLogger(c.log))
	d.exporter = export.NewExporter(c.exportDir, export.WithLocation(c.loc), export.WithLogger(c.log))
	return d
}

// Mount loads every collection, subscribes to changes and starts the
// health monitor. Stores whose subscription failed are still loaded; the
// failures are joined in the returned error.
func (d *Dashboard) Mount(ctx context.Context) error {
	var errs []error
	if err := d.tickets.Mount(ctx); err != nil {
		errs = append(errs, fmt.Errorf("tickets: %w", err))
	}
	for _, kind := range models.ReferenceKinds {
		if err := d.references[kind].Mount(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", kind, err))
		}
	}
	if err := d.monitor.Start(); err != nil {
		errs = append(errs, err)
	}
	d.log.Debug().Msg("dashboard mounted")
	return errors.Join(errs...)
}

// Unmount is the explicit teardown: subscriptions are released and the
// health timer is cancelled.
func (d *Dashboard) Unmount() {
	d.monitor.Stop()
	d.tickets.Unmount()
	for _, kind := range models.ReferenceKinds {
		d.references[kind].Unmount()
	}
	d.log.Debug().Msg("dashboard unmounted")
}

func (d *Dashboard) Tickets() *store.TicketStore { return d.tickets }

// References returns the store of kind, nil for unknown kinds.
func (d *Dashboard) References(kind models.ReferenceKind) *store.ReferenceStore {
	return d.references[kind]
}

func (d *Dashboard) Monitor() *health.Monitor { return d.monitor }

// OnChange runs fn after any store or connectivity change.
func (d *Dashboard) OnChange(fn func()) (cancel func()) {
	cancels := []func(){d.tickets.OnChange(fn)}
	for _, kind := range models.ReferenceKinds {
		cancels = append(cancels, d.references[kind].OnChange(fn))
	}
	cancels = append(cancels, d.monitor.OnChange(func(bool) { fn() }))
	return func() {
		for _, c := range cancels {
			c()
		}
	}
}

// Stats counts the loaded tickets per status.
func (d *Dashboard) Stats() models.TicketStats {
	return models.CountTickets(d.tickets.Items())
}

// FilteredTickets applies the search box and status selector.
func (d *Dashboard) FilteredTickets(search string, status models.TicketStatus) []models.Ticket {
	return models.FilterTickets(d.tickets.Items(), search, status)
}

// SelectionNames lists the names offered in the form selector of kind.
func (d *Dashboard) SelectionNames(kind models.ReferenceKind) []string {
	s, ok := d.references[kind]
	if !ok {
		return []string{}
	}
	return models.ActiveNames(s.Items())
}

// Charts aggregates the loaded tickets.
func (d *Dashboard) Charts() charts.Result {
	res := charts.Aggregate(d.tickets.Items(), d.loc)
	if d.metrics != nil {
		d.metrics.Observe(res)
	}
	return res
}

// Export writes the loaded tickets of r to a workbook and returns its
// file name. Only the tickets matching search and status are exported,
// the same ones FilteredTickets shows.
func (d *Dashboard) Export(r export.DateRange, search string, status models.TicketStatus) (string, error) {
	return d.exporter.ExportToSpreadsheet(d.FilteredTickets(search, status), r)
}

// Backup snapshots the loaded tickets of month/year.
func (d *Dashboard) Backup(ctx context.Context, month, year int) error {
	if d.backup == nil {
		return ErrNoBackup
	}
	return d.backup.SnapshotBackup(ctx, d.tickets.Items(), month, year)
}
