package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/tchayre/logsti/internal/models"
)

const ticketColumns = `id, title, description, solution, technician, sector, user_name,
	category, status, priority, date_time, created_at, updated_at, resolved_at`

// SQLTicketRepository implements TicketRepository over sqlx.
type SQLTicketRepository struct {
	db   *sqlx.DB
	opts options
}

// NewSQLTicketRepository creates a ticket repository on db.
func NewSQLTicketRepository(db *sqlx.DB, opts ...Option) *SQLTicketRepository {
	return &SQLTicketRepository{db: db, opts: newOptions(opts)}
}

func (r *SQLTicketRepository) List(ctx context.Context) ([]models.Ticket, error) {
	tickets := []models.Ticket{}
	query := `SELECT ` + ticketColumns + ` FROM tickets ORDER BY created_at DESC`
	if err := r.db.SelectContext(ctx, &tickets, query); err != nil {
		return nil, fmt.Errorf("list tickets: %w", err)
	}
	return tickets, nil
}

func (r *SQLTicketRepository) Get(ctx context.Context, id string) (models.Ticket, error) {
	var t models.Ticket
	query := r.db.Rebind(`SELECT ` + ticketColumns + ` FROM tickets WHERE id = ?`)
	if err := r.db.GetContext(ctx, &t, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Ticket{}, ErrNotFound
		}
		return models.Ticket{}, fmt.Errorf("get ticket %s: %w", id, err)
	}
	return t, nil
}

func (r *SQLTicketRepository) Create(ctx context.Context, in models.TicketInput) (models.Ticket, error) {
	in = in.Normalize()
	if err := in.Validate(); err != nil {
		return models.Ticket{}, err
	}
	in.DateTime = utcPtr(in.DateTime)
	t := models.NewTicket(r.opts.newID(), in, r.opts.clock())

	query := `INSERT INTO tickets (` + ticketColumns + `) VALUES (
		:id, :title, :description, :solution, :technician, :sector, :user_name,
		:category, :status, :priority, :date_time, :created_at, :updated_at, :resolved_at)`
	if _, err := r.db.NamedExecContext(ctx, query, t); err != nil {
		return models.Ticket{}, fmt.Errorf("insert ticket: %w", err)
	}
	return t, nil
}

// Update writes only the columns present in patch, plus updated_at and,
// when the status changes, resolved_at.
func (r *SQLTicketRepository) Update(ctx context.Context, id string, patch models.TicketPatch) (models.Ticket, error) {
	if err := patch.Validate(); err != nil {
		return models.Ticket{}, err
	}
	current, err := r.Get(ctx, id)
	if err != nil {
		return models.Ticket{}, err
	}
	patch.DateTime = utcPtr(patch.DateTime)
	next := patch.Apply(current, r.opts.clock())

	sets, args := ticketAssignments(patch, next)
	args["id"] = id
	query := `UPDATE tickets SET ` + strings.Join(sets, ", ") + ` WHERE id = :id`
	named, bound, err := sqlx.Named(query, args)
	if err != nil {
		return models.Ticket{}, fmt.Errorf("bind ticket update: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, r.db.Rebind(named), bound...); err != nil {
		return models.Ticket{}, fmt.Errorf("update ticket %s: %w", id, err)
	}
	return r.Get(ctx, id)
}

func ticketAssignments(p models.TicketPatch, next models.Ticket) ([]string, map[string]interface{}) {
	sets := []string{}
	args := map[string]interface{}{}
	add := func(col string, v interface{}) {
		sets = append(sets, col+" = :"+col)
		args[col] = v
	}
	if p.Title != nil {
		add("title", next.Title)
	}
	if p.Description != nil {
		add("description", next.Description)
	}
	if p.Solution != nil {
		add("solution", next.Solution)
	}
	if p.Technician != nil {
		add("technician", next.Technician)
	}
	if p.Sector != nil {
		add("sector", next.Sector)
	}
	if p.UserName != nil {
		add("user_name", next.UserName)
	}
	if p.Category != nil {
		add("category", next.Category)
	}
	if p.Priority != nil {
		add("priority", next.Priority)
	}
	if p.DateTime != nil {
		add("date_time", next.DateTime)
	}
	if p.Status != nil {
		add("status", next.Status)
		add("resolved_at", next.ResolvedAt)
	}
	add("updated_at", next.UpdatedAt)
	return sets, args
}

func (r *SQLTicketRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM tickets WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("delete ticket %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete ticket %s: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
