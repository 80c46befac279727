// Package export writes ticket spreadsheets and monthly snapshot backups.
package export

import (
	"fmt"
	"time"

	"github.com/tchayre/logsti/internal/models"
)

// DateTimeLayout is how event timestamps appear in exported rows.
const DateTimeLayout = "02/01/2006 15:04:05"

// Headers are the exported columns, in order.
var Headers = []string{
	"ID", "Título", "Técnico", "Setor", "Usuário", "Status",
	"Categoria", "Prioridade", "Data/Hora", "Descrição", "Solução",
}

var columnWidths = []float64{8, 25, 20, 20, 20, 15, 15, 12, 20, 40, 40}

// Row is the exported projection of a ticket. The JSON names match the
// spreadsheet headers.
type Row struct {
	ID          string `json:"ID"`
	Title       string `json:"Título"`
	Technician  string `json:"Técnico"`
	Sector      string `json:"Setor"`
	UserName    string `json:"Usuário"`
	Status      string `json:"Status"`
	Category    string `json:"Categoria"`
	Priority    string `json:"Prioridade"`
	DateTime    string `json:"Data/Hora"`
	Description string `json:"Descrição"`
	Solution    string `json:"Solução"`
}

// Values returns the row cells in header order.
func (r Row) Values() []interface{} {
	return []interface{}{
		r.ID, r.Title, r.Technician, r.Sector, r.UserName, r.Status,
		r.Category, r.Priority, r.DateTime, r.Description, r.Solution,
	}
}

// ToRow projects t, formatting its event time in loc.
func ToRow(t models.Ticket, loc *time.Location) Row {
	return Row{
		ID:          t.ID,
		Title:       t.Title,
		Technician:  t.Technician,
		Sector:      t.Sector,
		UserName:    t.UserName,
		Status:      string(t.Status),
		Category:    t.Category,
		Priority:    string(t.Priority),
		DateTime:    t.DateTime.In(loc).Format(DateTimeLayout),
		Description: t.Description,
		Solution:    t.Solution,
	}
}

// Rows projects every ticket.
func Rows(tickets []models.Ticket, loc *time.Location) []Row {
	rows := make([]Row, 0, len(tickets))
	for _, t := range tickets {
		rows = append(rows, ToRow(t, loc))
	}
	return rows
}

// DateRange selects whole months, from the first day of the start month
// to the last day of the end month.
type DateRange struct {
	StartMonth int `json:"start_month" form:"start_month"`
	StartYear  int `json:"start_year" form:"start_year"`
	EndMonth   int `json:"end_month" form:"end_month"`
	EndYear    int `json:"end_year" form:"end_year"`
}

// MonthRange is the range covering a single month.
func MonthRange(month, year int) DateRange {
	return DateRange{StartMonth: month, StartYear: year, EndMonth: month, EndYear: year}
}

func (r DateRange) Validate() error {
	if r.StartMonth < 1 || r.StartMonth > 12 {
		return &models.FieldError{Field: "start_month", Message: fmt.Sprintf("invalid month %d", r.StartMonth)}
	}
	if r.EndMonth < 1 || r.EndMonth > 12 {
		return &models.FieldError{Field: "end_month", Message: fmt.Sprintf("invalid month %d", r.EndMonth)}
	}
	if r.StartYear < 1 || r.EndYear < 1 {
		return &models.FieldError{Field: "start_year", Message: "year is required"}
	}
	if r.EndYear*12+r.EndMonth < r.StartYear*12+r.StartMonth {
		return &models.FieldError{Field: "end_month", Message: "range ends before it starts"}
	}
	return nil
}

// Bounds returns the first instant of the range and the first instant
// after it, both in loc.
func (r DateRange) Bounds(loc *time.Location) (start, end time.Time) {
	start = time.Date(r.StartYear, time.Month(r.StartMonth), 1, 0, 0, 0, 0, loc)
	end = time.Date(r.EndYear, time.Month(r.EndMonth)+1, 1, 0, 0, 0, 0, loc)
	return start, end
}

// Contains reports whether the calendar date of t in loc falls in r.
func (r DateRange) Contains(t time.Time, loc *time.Location) bool {
	start, end := r.Bounds(loc)
	local := t.In(loc)
	return !local.Before(start) && local.Before(end)
}

func (r DateRange) label() string {
	return fmt.Sprintf("%d-%d_a_%d-%d", r.StartMonth, r.StartYear, r.EndMonth, r.EndYear)
}

// SheetName is the name of the single exported sheet.
func (r DateRange) SheetName() string { return "Chamados_" + r.label() }

// FileName is the deterministic workbook name for r.
func (r DateRange) FileName() string { return "chamados_" + r.label() + ".xlsx" }

func (r DateRange) String() string {
	return fmt.Sprintf("%d/%d to %d/%d", r.StartMonth, r.StartYear, r.EndMonth, r.EndYear)
}

// Filter returns the tickets whose event time falls in r, keeping order.
func Filter(tickets []models.Ticket, r DateRange, loc *time.Location) []models.Ticket {
	out := []models.Ticket{}
	for _, t := range tickets {
		if r.Contains(t.DateTime, loc) {
			out = append(out, t)
		}
	}
	return out
}

// EmptyResultError reports an export range without tickets.
type EmptyResultError struct {
	Range DateRange
}

func (e *EmptyResultError) Error() string {
	return "no tickets found from " + e.Range.String()
}
