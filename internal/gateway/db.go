package gateway

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/tchayre/logsti/internal/models"
	"github.com/tchayre/logsti/internal/realtime"
	"github.com/tchayre/logsti/internal/repository"
)

// DBGateway serves resources straight from repositories and announces
// every successful write on the broker.
type DBGateway struct {
	repos      repository.Set
	broker     realtime.Broker
	log        zerolog.Logger
	now        func() time.Time
	ping       func(ctx context.Context) error
	timeout    time.Duration
	tickets    *dbTickets
	references map[models.ReferenceKind]*dbReferences
}

// DBOption configures a DBGateway.
type DBOption func(*DBGateway)

// WithLogger sets the gateway logger.
func WithLogger(log zerolog.Logger) DBOption {
	return func(g *DBGateway) { g.log = log }
}

// WithPinger sets the liveness check used by HealthCheck.
func WithPinger(ping func(ctx context.Context) error) DBOption {
	return func(g *DBGateway) { g.ping = ping }
}

// WithClock overrides the time source of events and health results.
func WithClock(now func() time.Time) DBOption {
	return func(g *DBGateway) { g.now = now }
}

// WithReloadTimeout bounds each subscription reload.
func WithReloadTimeout(d time.Duration) DBOption {
	return func(g *DBGateway) { g.timeout = d }
}

// NewDBGateway creates a gateway over repos and broker.
func NewDBGateway(repos repository.Set, broker realtime.Broker, opts ...DBOption) *DBGateway {
	g := &DBGateway{
		repos:      repos,
		broker:     broker,
		log:        zerolog.Nop(),
		now:        time.Now,
		ping:       func(context.Context) error { return nil },
		timeout:    10 * time.Second,
		references: map[models.ReferenceKind]*dbReferences{},
	}
	for _, opt := range opts {
		opt(g)
	}
	g.tickets = &dbTickets{g: g, repo: repos.Tickets}
	for kind, repo := range repos.References {
		g.references[kind] = &dbReferences{g: g, kind: kind, repo: repo}
	}
	return g
}

func (g *DBGateway) Tickets() TicketResource { return g.tickets }

// References returns the resource for kind, or nil when kind has no
// repository.
func (g *DBGateway) References(kind models.ReferenceKind) ReferenceResource {
	r, ok := g.references[kind]
	if !ok {
		return nil
	}
	return r
}

func (g *DBGateway) HealthCheck(ctx context.Context) HealthStatus {
	status := HealthStatus{CheckedAt: g.now().UTC()}
	if err := g.ping(ctx); err != nil {
		status.Status = StatusError
		status.Message = err.Error()
		return status
	}
	status.OK = true
	status.Status = StatusOK
	status.Message = "database connected"
	return status
}

// Close releases nothing; the broker and database belong to the caller.
func (g *DBGateway) Close() error { return nil }

func (g *DBGateway) publish(ctx context.Context, table string, typ realtime.EventType) {
	e := realtime.Event{Table: table, Type: typ, At: g.now().UTC()}
	// the write is committed; publish even if the caller has given up
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := g.broker.Publish(pubCtx, e); err != nil {
		g.log.Warn().Err(err).Str("table", table).Msg("change event not published")
	}
}

// subscribeTable reloads with list after each event on table. Reloads run
// on the broker's delivery goroutine, so they never overlap.
func subscribeTable[T any](g *DBGateway, table string, list func(context.Context) ([]T, error), fn func([]T)) (Subscription, error) {
	ctx, cancel := context.WithCancel(context.Background())
	stop, err := g.broker.Subscribe(table, func(realtime.Event) {
		if ctx.Err() != nil {
			return
		}
		reloadCtx, done := context.WithTimeout(ctx, g.timeout)
		defer done()
		items, err := list(reloadCtx)
		if err != nil {
			g.log.Warn().Err(err).Str("table", table).Msg("reload after change failed")
			return
		}
		if ctx.Err() != nil {
			return
		}
		fn(items)
	})
	if err != nil {
		cancel()
		return nil, classify("subscribe "+table, err)
	}
	return newSubscription(func() {
		cancel()
		stop()
	}), nil
}

type dbTickets struct {
	g    *DBGateway
	repo repository.TicketRepository
}

func (r *dbTickets) List(ctx context.Context) ([]models.Ticket, error) {
	tickets, err := r.repo.List(ctx)
	if err != nil {
		return nil, classify("list tickets", err)
	}
	return tickets, nil
}

func (r *dbTickets) Create(ctx context.Context, in models.TicketInput) (models.Ticket, error) {
	t, err := r.repo.Create(ctx, in)
	if err != nil {
		return models.Ticket{}, classify("create ticket", err)
	}
	r.g.publish(ctx, models.TicketsTable, realtime.EventInsert)
	return t, nil
}

func (r *dbTickets) Update(ctx context.Context, id string, patch models.TicketPatch) (models.Ticket, error) {
	t, err := r.repo.Update(ctx, id, patch)
	if err != nil {
		return models.Ticket{}, classify("update ticket "+id, err)
	}
	r.g.publish(ctx, models.TicketsTable, realtime.EventUpdate)
	return t, nil
}

func (r *dbTickets) Delete(ctx context.Context, id string) error {
	if err := r.repo.Delete(ctx, id); err != nil {
		return classify("delete ticket "+id, err)
	}
	r.g.publish(ctx, models.TicketsTable, realtime.EventDelete)
	return nil
}

func (r *dbTickets) Subscribe(fn func([]models.Ticket)) (Subscription, error) {
	return subscribeTable(r.g, models.TicketsTable, r.List, fn)
}

type dbReferences struct {
	g    *DBGateway
	kind models.ReferenceKind
	repo repository.ReferenceRepository
}

func (r *dbReferences) List(ctx context.Context) ([]models.Reference, error) {
	refs, err := r.repo.ListActive(ctx)
	if err != nil {
		return nil, classify("list "+string(r.kind), err)
	}
	return refs, nil
}

func (r *dbReferences) Create(ctx context.Context, in models.ReferenceInput) (models.Reference, error) {
	ref, err := r.repo.Create(ctx, in)
	if err != nil {
		return models.Reference{}, classify("create "+r.kind.Singular(), err)
	}
	r.g.publish(ctx, r.kind.Table(), realtime.EventInsert)
	return ref, nil
}

func (r *dbReferences) Update(ctx context.Context, id string, patch models.ReferencePatch) (models.Reference, error) {
	ref, err := r.repo.Update(ctx, id, patch)
	if err != nil {
		return models.Reference{}, classify("update "+r.kind.Singular()+" "+id, err)
	}
	r.g.publish(ctx, r.kind.Table(), realtime.EventUpdate)
	return ref, nil
}

// Delete deactivates; the change is published as an UPDATE.
func (r *dbReferences) Delete(ctx context.Context, id string) error {
	if err := r.repo.Deactivate(ctx, id); err != nil {
		return classify("delete "+r.kind.Singular()+" "+id, err)
	}
	r.g.publish(ctx, r.kind.Table(), realtime.EventUpdate)
	return nil
}

func (r *dbReferences) Subscribe(fn func([]models.Reference)) (Subscription, error) {
	return subscribeTable(r.g, r.kind.Table(), r.List, fn)
}
