package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/tchayre/logsti/internal/models"
)

// MemoryTicketRepository implements TicketRepository with in-memory storage.
// It backs tests and the demo server.
type MemoryTicketRepository struct {
	mu      sync.RWMutex
	tickets map[string]models.Ticket
	order   []string // insertion order
	opts    options
}

// NewMemoryTicketRepository creates an empty in-memory ticket repository.
func NewMemoryTicketRepository(opts ...Option) *MemoryTicketRepository {
	return &MemoryTicketRepository{
		tickets: make(map[string]models.Ticket),
		opts:    newOptions(opts),
	}
}

func (r *MemoryTicketRepository) List(ctx context.Context) ([]models.Ticket, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.Ticket, 0, len(r.order))
	for i := len(r.order) - 1; i >= 0; i-- {
		out = append(out, r.tickets[r.order[i]])
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *MemoryTicketRepository) Get(ctx context.Context, id string) (models.Ticket, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tickets[id]
	if !ok {
		return models.Ticket{}, ErrNotFound
	}
	return t, nil
}

func (r *MemoryTicketRepository) Create(ctx context.Context, in models.TicketInput) (models.Ticket, error) {
	in = in.Normalize()
	if err := in.Validate(); err != nil {
		return models.Ticket{}, err
	}
	in.DateTime = utcPtr(in.DateTime)

	r.mu.Lock()
	defer r.mu.Unlock()
	t := models.NewTicket(r.opts.newID(), in, r.opts.clock())
	if _, exists := r.tickets[t.ID]; exists {
		return models.Ticket{}, fmt.Errorf("insert ticket: duplicate id %s", t.ID)
	}
	r.tickets[t.ID] = t
	r.order = append(r.order, t.ID)
	return t, nil
}

func (r *MemoryTicketRepository) Update(ctx context.Context, id string, patch models.TicketPatch) (models.Ticket, error) {
	if err := patch.Validate(); err != nil {
		return models.Ticket{}, err
	}
	patch.DateTime = utcPtr(patch.DateTime)

	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.tickets[id]
	if !ok {
		return models.Ticket{}, ErrNotFound
	}
	next := patch.Apply(current, r.opts.clock())
	r.tickets[id] = next
	return next, nil
}

func (r *MemoryTicketRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tickets[id]; !ok {
		return ErrNotFound
	}
	delete(r.tickets, id)
	for i, existing := range r.order {
		if existing == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

// MemoryReferenceRepository implements ReferenceRepository in memory.
type MemoryReferenceRepository struct {
	mu   sync.RWMutex
	kind models.ReferenceKind
	refs map[string]models.Reference
	opts options
}

// NewMemoryReferenceRepository creates an empty repository for kind.
func NewMemoryReferenceRepository(kind models.ReferenceKind, opts ...Option) *MemoryReferenceRepository {
	return &MemoryReferenceRepository{
		kind: kind,
		refs: make(map[string]models.Reference),
		opts: newOptions(opts),
	}
}

// NewMemorySet builds a full in-memory repository set.
func NewMemorySet(opts ...Option) Set {
	set := Set{
		Tickets:    NewMemoryTicketRepository(opts...),
		References: map[models.ReferenceKind]ReferenceRepository{},
	}
	for _, kind := range models.ReferenceKinds {
		set.References[kind] = NewMemoryReferenceRepository(kind, opts...)
	}
	return set
}

func (r *MemoryReferenceRepository) Kind() models.ReferenceKind { return r.kind }

func (r *MemoryReferenceRepository) ListActive(ctx context.Context) ([]models.Reference, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.Reference, 0, len(r.refs))
	for _, ref := range r.refs {
		if ref.Active {
			out = append(out, ref)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name == out[j].Name {
			return out[i].ID < out[j].ID
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (r *MemoryReferenceRepository) Get(ctx context.Context, id string) (models.Reference, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ref, ok := r.refs[id]
	if !ok {
		return models.Reference{}, ErrNotFound
	}
	return ref, nil
}

// caller holds the lock
func (r *MemoryReferenceRepository) nameTaken(name, exceptID string) bool {
	for id, ref := range r.refs {
		if id != exceptID && ref.Active && sameName(ref.Name, name) {
			return true
		}
	}
	return false
}

func (r *MemoryReferenceRepository) Create(ctx context.Context, in models.ReferenceInput) (models.Reference, error) {
	in = in.Normalize(r.kind)
	if err := in.Validate(); err != nil {
		return models.Reference{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.nameTaken(in.Name, "") {
		return models.Reference{}, fmt.Errorf("%s %q: %w", r.kind.Singular(), in.Name, ErrDuplicateName)
	}
	ref := models.NewReference(r.opts.newID(), in, r.opts.clock())
	r.refs[ref.ID] = ref
	return ref, nil
}

func (r *MemoryReferenceRepository) Update(ctx context.Context, id string, patch models.ReferencePatch) (models.Reference, error) {
	patch = patch.Normalize(r.kind)
	if err := patch.Validate(); err != nil {
		return models.Reference{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.refs[id]
	if !ok {
		return models.Reference{}, ErrNotFound
	}
	next := patch.Apply(current)
	if next.Active && (patch.Name != nil || patch.Active != nil) && r.nameTaken(next.Name, id) {
		return models.Reference{}, fmt.Errorf("%s %q: %w", r.kind.Singular(), next.Name, ErrDuplicateName)
	}
	r.refs[id] = next
	return next, nil
}

func (r *MemoryReferenceRepository) Deactivate(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ref, ok := r.refs[id]
	if !ok {
		return ErrNotFound
	}
	ref.Active = false
	r.refs[id] = ref
	return nil
}
