// Package store keeps one entity collection in memory for a mounted view
// and keeps it in sync with the gateway.
package store

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/tchayre/logsti/internal/gateway"
	"github.com/tchayre/logsti/internal/models"
)

// State is the load state of a Store.
type State string

const (
	StateIdle    State = "idle"
	StateLoading State = "loading"
	StateReady   State = "ready"
	StateError   State = "error"
)

// Entity is anything with a stable identifier.
type Entity interface {
	EntityID() string
}

// Placement decides where Create puts a new record.
type Placement int

const (
	Append Placement = iota
	Prepend
)

// Store owns the collection of one entity kind. Mutations are applied
// locally on success; change notifications replace the whole collection,
// so the most recent full reload always wins.
type Store[T Entity, C any, P any] struct {
	res       gateway.Resource[T, C, P]
	placement Placement
	log       zerolog.Logger
	name      string

	mu        sync.RWMutex
	items     []T
	state     State
	err       error
	epoch     uint64
	mounted   bool
	sub       gateway.Subscription
	nextID    int
	listeners map[int]func()
}

// Option configures a Store.
type Option func(*options)

type options struct {
	placement Placement
	log       zerolog.Logger
	name      string
}

// WithPlacement sets where created records go.
func WithPlacement(p Placement) Option {
	return func(o *options) { o.placement = p }
}

// WithLogger sets the store logger.
func WithLogger(log zerolog.Logger) Option {
	return func(o *options) { o.log = log }
}

// WithName labels log lines.
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

// New creates an idle store over res.
func New[T Entity, C any, P any](res gateway.Resource[T, C, P], opts ...Option) *Store[T, C, P] {
	o := options{placement: Append, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(&o)
	}
	return &Store[T, C, P]{
		res:       res,
		placement: o.placement,
		log:       o.log,
		name:      o.name,
		state:     StateIdle,
		items:     []T{},
		listeners: map[int]func(){},
	}
}

// TicketStore holds tickets, newest first.
type TicketStore = Store[models.Ticket, models.TicketInput, models.TicketPatch]

// ReferenceStore holds the active records of one reference kind.
type ReferenceStore = Store[models.Reference, models.ReferenceInput, models.ReferencePatch]

// NewTicketStore creates a store that prepends created tickets.
func NewTicketStore(res gateway.TicketResource, opts ...Option) *TicketStore {
	opts = append([]Option{WithPlacement(Prepend), WithName(models.TicketsTable)}, opts...)
	return New(res, opts...)
}

// NewReferenceStore creates a store that appends created references.
func NewReferenceStore(kind models.ReferenceKind, res gateway.ReferenceResource, opts ...Option) *ReferenceStore {
	opts = append([]Option{WithPlacement(Append), WithName(kind.Table())}, opts...)
	return New(res, opts...)
}

// Mount starts loading and subscribes to changes. Mounting an already
// mounted store does nothing. The returned error only reports a failed
// subscription; load failures land in Err.
func (s *Store[T, C, P]) Mount(ctx context.Context) error {
	s.mu.Lock()
	if s.mounted {
		s.mu.Unlock()
		return nil
	}
	s.mounted = true
	s.epoch++
	epoch := s.epoch
	s.items = []T{}
	s.state = StateLoading
	s.err = nil
	s.mu.Unlock()
	s.notify()

	sub, err := s.res.Subscribe(func(items []T) { s.replace(epoch, items) })
	if err != nil {
		s.log.Warn().Err(err).Str("store", s.name).Msg("subscribe failed")
	} else {
		s.mu.Lock()
		if s.epoch == epoch {
			s.sub = sub
			sub = nil
		}
		s.mu.Unlock()
		// unmounted while subscribing
		if sub != nil {
			sub.Unsubscribe()
		}
	}

	s.Load(ctx)
	return err
}

// Unmount releases the subscription. Results of requests still in flight
// are discarded when they arrive.
func (s *Store[T, C, P]) Unmount() {
	s.mu.Lock()
	if !s.mounted {
		s.mu.Unlock()
		return
	}
	s.mounted = false
	s.epoch++
	sub := s.sub
	s.sub = nil
	s.mu.Unlock()
	if sub != nil {
		sub.Unsubscribe()
	}
}

// Mounted reports whether the store is mounted.
func (s *Store[T, C, P]) Mounted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mounted
}

// current returns the epoch if mounted.
func (s *Store[T, C, P]) current() (uint64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.epoch, s.mounted
}

// apply runs fn under the lock when epoch is still current and notifies.
func (s *Store[T, C, P]) apply(epoch uint64, fn func()) bool {
	s.mu.Lock()
	if !s.mounted || s.epoch != epoch {
		s.mu.Unlock()
		return false
	}
	fn()
	s.mu.Unlock()
	s.notify()
	return true
}

func (s *Store[T, C, P]) replace(epoch uint64, items []T) {
	s.apply(epoch, func() {
		s.items = append([]T{}, items...)
		s.state = StateReady
		s.err = nil
	})
}

// Load fetches the full collection. Failures are recorded, not returned.
func (s *Store[T, C, P]) Load(ctx context.Context) {
	epoch, mounted := s.current()
	if !mounted {
		return
	}
	s.apply(epoch, func() {
		s.state = StateLoading
		s.err = nil
	})

	items, err := s.res.List(ctx)
	if err != nil {
		if s.apply(epoch, func() {
			s.state = StateError
			s.err = err
		}) {
			s.log.Warn().Err(err).Str("store", s.name).Msg("load failed")
		}
		return
	}
	s.replace(epoch, items)
}

func (s *Store[T, C, P]) fail(epoch uint64, err error) error {
	s.apply(epoch, func() { s.err = err })
	return err
}

// Create stores in and adds the result locally. On failure the error is
// recorded and returned, and the collection is unchanged.
func (s *Store[T, C, P]) Create(ctx context.Context, in C) (T, error) {
	epoch, _ := s.current()
	created, err := s.res.Create(ctx, in)
	if err != nil {
		var zero T
		return zero, s.fail(epoch, err)
	}
	s.apply(epoch, func() {
		if s.placement == Prepend {
			s.items = append([]T{created}, s.items...)
		} else {
			s.items = append(s.items, created)
		}
		s.err = nil
	})
	return created, nil
}

// Update patches id and replaces the local record in place.
func (s *Store[T, C, P]) Update(ctx context.Context, id string, patch P) (T, error) {
	epoch, _ := s.current()
	updated, err := s.res.Update(ctx, id, patch)
	if err != nil {
		var zero T
		return zero, s.fail(epoch, err)
	}
	s.apply(epoch, func() {
		for i := range s.items {
			if s.items[i].EntityID() == id {
				s.items[i] = updated
				break
			}
		}
		s.err = nil
	})
	return updated, nil
}

// Delete removes id remotely and locally.
func (s *Store[T, C, P]) Delete(ctx context.Context, id string) error {
	epoch, _ := s.current()
	if err := s.res.Delete(ctx, id); err != nil {
		return s.fail(epoch, err)
	}
	s.apply(epoch, func() {
		kept := s.items[:0:0]
		for _, item := range s.items {
			if item.EntityID() != id {
				kept = append(kept, item)
			}
		}
		s.items = kept
		s.err = nil
	})
	return nil
}

// Items returns a copy of the collection.
func (s *Store[T, C, P]) Items() []T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]T{}, s.items...)
}

// State returns the load state.
func (s *Store[T, C, P]) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Loading reports whether a load is in progress.
func (s *Store[T, C, P]) Loading() bool { return s.State() == StateLoading }

// Err returns the last recorded failure, nil after a success.
func (s *Store[T, C, P]) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

// OnChange registers fn to run after every state change. fn runs on the
// goroutine that caused the change and must not block.
func (s *Store[T, C, P]) OnChange(fn func()) (cancel func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

func (s *Store[T, C, P]) notify() {
	s.mu.RLock()
	fns := make([]func(), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.RUnlock()
	for _, fn := range fns {
		fn()
	}
}
