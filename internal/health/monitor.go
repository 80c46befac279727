// Package health runs the periodic connectivity check behind the
// dashboard's online indicator.
package health

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/tchayre/logsti/internal/gateway"
)

// DefaultInterval is the time between scheduled checks.
const DefaultInterval = 30 * time.Second

// Checker checks the backend. It must not panic and reports failure in
// the returned status.
type Checker interface {
	HealthCheck(ctx context.Context) gateway.HealthStatus
}

// Monitor tracks whether the backend answers. It starts out connected
// and updates after every check.
type Monitor struct {
	checker  Checker
	interval time.Duration
	timeout  time.Duration
	log      zerolog.Logger

	mu        sync.RWMutex
	connected bool
	checking  int
	last      gateway.HealthStatus
	cron      *cron.Cron
	cancel    context.CancelFunc
	nextID    int
	listeners map[int]func(connected bool)
	wg        sync.WaitGroup
}

// Option configures a Monitor.
type Option func(*Monitor)

func WithLogger(log zerolog.Logger) Option {
	return func(m *Monitor) { m.log = log }
}

// WithTimeout bounds each check. It defaults to the interval.
func WithTimeout(d time.Duration) Option {
	return func(m *Monitor) { m.timeout = d }
}

// NewMonitor creates a stopped monitor. A non-positive interval uses
// DefaultInterval.
func NewMonitor(checker Checker, interval time.Duration, opts ...Option) *Monitor {
	if interval <= 0 {
		interval = DefaultInterval
	}
	m := &Monitor{
		checker:   checker,
		interval:  interval,
		timeout:   interval,
		log:       zerolog.Nop(),
		connected: true,
		listeners: map[int]func(bool){},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start runs a first check in the background and schedules the rest.
// Starting a running monitor does nothing.
func (m *Monitor) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cron != nil {
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(fmt.Sprintf("@every %s", m.interval), func() { m.Check(ctx) }); err != nil {
		cancel()
		return fmt.Errorf("schedule health check: %w", err)
	}
	m.cron = c
	m.cancel = cancel
	c.Start()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.Check(ctx)
	}()
	return nil
}

// Stop cancels the schedule and waits for a check in progress.
func (m *Monitor) Stop() {
	m.mu.Lock()
	c, cancel := m.cron, m.cancel
	m.cron, m.cancel = nil, nil
	m.mu.Unlock()
	if c == nil {
		return
	}
	cancel()
	<-c.Stop().Done()
	m.wg.Wait()
}

// Check asks the backend now and returns whether it answered. It is
// also the operator's "try again" action.
func (m *Monitor) Check(ctx context.Context) bool {
	m.mu.Lock()
	m.checking++
	m.mu.Unlock()
	m.notify()

	checkCtx, cancel := context.WithTimeout(ctx, m.timeout)
	status := m.checker.HealthCheck(checkCtx)
	cancel()

	m.mu.Lock()
	m.checking--
	changed := m.connected != status.OK
	m.connected = status.OK
	m.last = status
	m.mu.Unlock()

	if changed {
		ev := m.log.Info()
		if !status.OK {
			ev = m.log.Warn()
		}
		ev.Bool("connected", status.OK).Str("message", status.Message).Msg("connectivity changed")
	}
	m.notify()
	return status.OK
}

// Connected reports the result of the latest check; true before any.
func (m *Monitor) Connected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.connected
}

// Checking reports whether a check is in flight.
func (m *Monitor) Checking() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.checking > 0
}

// Last returns the latest status; zero before the first check.
func (m *Monitor) Last() gateway.HealthStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.last
}

// OnChange registers fn to run when a check starts or finishes.
func (m *Monitor) OnChange(fn func(connected bool)) (cancel func()) {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = fn
	m.mu.Unlock()
	return func() {
		m.mu.Lock()
		delete(m.listeners, id)
		m.mu.Unlock()
	}
}

func (m *Monitor) notify() {
	m.mu.RLock()
	connected := m.connected
	fns := make([]func(bool), 0, len(m.listeners))
	for _, fn := range m.listeners {
		fns = append(fns, fn)
	}
	m.mu.RUnlock()
	for _, fn := range fns {
		fn(connected)
	}
}
