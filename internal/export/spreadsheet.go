package export

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"

	"github.com/tchayre/logsti/internal/models"
)

// Option configures an Exporter or a Backup.
type Option func(*options)

type options struct {
	loc    *time.Location
	log    zerolog.Logger
	prefix string
}

func buildOptions(opts []Option) options {
	o := options{loc: time.UTC, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithLocation sets the zone used to match dates and format timestamps.
func WithLocation(loc *time.Location) Option {
	return func(o *options) {
		if loc != nil {
			o.loc = loc
		}
	}
}

func WithLogger(log zerolog.Logger) Option {
	return func(o *options) { o.log = log }
}

// WithKeyPrefix prefixes backup keys.
func WithKeyPrefix(prefix string) Option {
	return func(o *options) { o.prefix = prefix }
}

// Exporter writes ticket workbooks.
type Exporter struct {
	dir string
	loc *time.Location
	log zerolog.Logger
}

// NewExporter creates an exporter that saves files under dir.
func NewExporter(dir string, opts ...Option) *Exporter {
	o := buildOptions(opts)
	return &Exporter{dir: dir, loc: o.loc, log: o.log}
}

// Location returns the zone dates are evaluated in.
func (e *Exporter) Location() *time.Location { return e.loc }

// ExportToSpreadsheet saves the tickets of r to <dir>/<r.FileName()> and
// returns the file name. It fails with *EmptyResultError when nothing
// matches.
func (e *Exporter) ExportToSpreadsheet(tickets []models.Ticket, r DateRange) (string, error) {
	f, err := e.build(tickets, r)
	if err != nil {
		return "", err
	}
	defer f.Close()

	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}
	name := r.FileName()
	if err := f.SaveAs(filepath.Join(e.dir, name)); err != nil {
		return "", fmt.Errorf("save workbook: %w", err)
	}
	e.log.Info().Str("file", name).Str("range", r.String()).Msg("spreadsheet exported")
	return name, nil
}

// WriteSpreadsheet streams the workbook for r to w.
func (e *Exporter) WriteSpreadsheet(w io.Writer, tickets []models.Ticket, r DateRange) error {
	f, err := e.build(tickets, r)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func (e *Exporter) build(tickets []models.Ticket, r DateRange) (*excelize.File, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	matched := Filter(tickets, r, e.loc)
	if len(matched) == 0 {
		return nil, &EmptyResultError{Range: r}
	}

	f := excelize.NewFile()
	sheet := r.SheetName()
	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("name sheet: %w", err)
	}
	if err := writeRows(f, sheet, Rows(matched, e.loc)); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

func writeRows(f *excelize.File, sheet string, rows []Row) error {
	header := make([]interface{}, len(Headers))
	for i, h := range Headers {
		header[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}
	last, _ := excelize.ColumnNumberToName(len(Headers))
	if err := f.SetCellStyle(sheet, "A1", last+"1", bold); err != nil {
		return fmt.Errorf("header style: %w", err)
	}

	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		values := row.Values()
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	for i, width := range columnWidths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		if err := f.SetColWidth(sheet, col, col, width); err != nil {
			return fmt.Errorf("column width: %w", err)
		}
	}
	return nil
}
