// Package gateway is the typed boundary between dashboard state and the
// backend. Every failure it returns is a *RemoteError.
package gateway

import (
	"context"
	"sync"
	"time"

	"github.com/tchayre/logsti/internal/models"
)

// Resource is the operation set of one entity kind. C is the creatable
// subset of T, P its partial update.
type Resource[T any, C any, P any] interface {
	List(ctx context.Context) ([]T, error)
	Create(ctx context.Context, in C) (T, error)
	Update(ctx context.Context, id string, patch P) (T, error)
	Delete(ctx context.Context, id string) error
	// Subscribe calls fn with a fresh List result after every change to
	// the kind's table, until the subscription is released.
	Subscribe(fn func([]T)) (Subscription, error)
}

// TicketResource lists all tickets newest first; Delete is a hard delete.
type TicketResource = Resource[models.Ticket, models.TicketInput, models.TicketPatch]

// ReferenceResource lists active records by name; Delete deactivates.
type ReferenceResource = Resource[models.Reference, models.ReferenceInput, models.ReferencePatch]

// Gateway exposes every resource plus a liveness check.
type Gateway interface {
	Tickets() TicketResource
	References(kind models.ReferenceKind) ReferenceResource
	// HealthCheck never fails; problems are reported in the status.
	HealthCheck(ctx context.Context) HealthStatus
	Close() error
}

// HealthStatus is the result of a liveness check.
type HealthStatus struct {
	OK        bool      `json:"-"`
	Status    string    `json:"status"`
	Message   string    `json:"message"`
	CheckedAt time.Time `json:"checked_at"`
}

// Health status literals.
const (
	StatusOK    = "OK"
	StatusError = "ERROR"
)

// Subscription is a registered change listener.
type Subscription interface {
	// Unsubscribe stops delivery. It is safe to call more than once.
	Unsubscribe()
}

// subscription runs release exactly once.
type subscription struct {
	once    sync.Once
	release func()
}

func newSubscription(release func()) *subscription {
	return &subscription{release: release}
}

func (s *subscription) Unsubscribe() {
	s.once.Do(s.release)
}
