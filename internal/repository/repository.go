package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tchayre/logsti/internal/models"
)

var (
	// ErrNotFound is returned when no record matches the identifier.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicateName is returned when an active reference already uses the name.
	ErrDuplicateName = errors.New("name already in use")
)

// TicketRepository stores tickets. List returns every ticket, newest
// created first. Delete is a hard delete.
type TicketRepository interface {
	List(ctx context.Context) ([]models.Ticket, error)
	Get(ctx context.Context, id string) (models.Ticket, error)
	Create(ctx context.Context, in models.TicketInput) (models.Ticket, error)
	Update(ctx context.Context, id string, patch models.TicketPatch) (models.Ticket, error)
	Delete(ctx context.Context, id string) error
}

// ReferenceRepository stores one reference kind. ListActive returns only
// active records ordered by name; Deactivate is the only deletion.
type ReferenceRepository interface {
	Kind() models.ReferenceKind
	ListActive(ctx context.Context) ([]models.Reference, error)
	Get(ctx context.Context, id string) (models.Reference, error)
	Create(ctx context.Context, in models.ReferenceInput) (models.Reference, error)
	Update(ctx context.Context, id string, patch models.ReferencePatch) (models.Reference, error)
	Deactivate(ctx context.Context, id string) error
}

// Set groups the repositories of one backend.
type Set struct {
	Tickets    TicketRepository
	References map[models.ReferenceKind]ReferenceRepository
}

// Reference returns the repository for kind, or nil.
func (s Set) Reference(kind models.ReferenceKind) ReferenceRepository {
	return s.References[kind]
}

type options struct {
	now   func() time.Time
	newID func() string
}

// Option configures a repository.
type Option func(*options)

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithIDGenerator overrides identifier generation.
func WithIDGenerator(fn func() string) Option {
	return func(o *options) { o.newID = fn }
}

func newOptions(opts []Option) options {
	o := options{
		now:   time.Now,
		newID: func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// timestamps are kept in UTC so text-backed drivers sort chronologically.
func (o options) clock() time.Time { return o.now().UTC() }

func sameName(a, b string) bool { return strings.EqualFold(a, b) }

func utcPtr(t *time.Time) *time.Time {
	if t == nil || t.IsZero() {
		return nil
	}
	u := t.UTC()
	return &u
}
