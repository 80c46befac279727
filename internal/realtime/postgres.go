package realtime

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/rs/zerolog"
)

// PGBroker publishes with pg_notify and receives through LISTEN, so every
// server process sharing the database sees every change.
type PGBroker struct {
	db       *sqlx.DB
	listener *pq.Listener
	prefix   string
	subs     *fanout
	log      zerolog.Logger

	mu        sync.Mutex
	listening map[string]bool
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// PGOption configures a PGBroker.
type PGOption func(*PGBroker)

// WithPGLogger sets the broker logger.
func WithPGLogger(log zerolog.Logger) PGOption {
	return func(b *PGBroker) { b.log = log }
}

// NewPGBroker opens a LISTEN connection on dsn. prefix is prepended to
// table names to form notification channels.
func NewPGBroker(db *sqlx.DB, dsn, prefix string, opts ...PGOption) *PGBroker {
	b := &PGBroker{
		db:        db,
		prefix:    prefix,
		subs:      newFanout(),
		log:       zerolog.Nop(),
		listening: map[string]bool{},
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.listener = pq.NewListener(dsn, time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			b.log.Warn().Err(err).Msg("postgres listener event")
		}
	})
	b.wg.Add(1)
	go b.loop()
	return b
}

// Channel returns the notification channel of table.
func (b *PGBroker) Channel(table string) string { return b.prefix + table }

func (b *PGBroker) loop() {
	defer b.wg.Done()
	ping := time.NewTicker(90 * time.Second)
	defer ping.Stop()
	for {
		select {
		case <-b.done:
			return
		case n, ok := <-b.listener.Notify:
			if !ok {
				return
			}
			if n == nil {
				// reconnected; notifications may have been missed
				b.subs.dispatchAll(time.Now().UTC())
				continue
			}
			e, err := decodeEvent(n.Extra)
			if err != nil {
				b.log.Warn().Err(err).Str("channel", n.Channel).Msg("dropping notification")
				continue
			}
			b.subs.dispatch(e)
		case <-ping.C:
			go func() { _ = b.listener.Ping() }()
		}
	}
}

func (b *PGBroker) Publish(ctx context.Context, e Event) error {
	if !ValidTable(e.Table) {
		return fmt.Errorf("unknown table %q", e.Table)
	}
	payload, err := encodeEvent(e)
	if err != nil {
		return err
	}
	if _, err := b.db.ExecContext(ctx, `SELECT pg_notify($1, $2)`, b.Channel(e.Table), payload); err != nil {
		return fmt.Errorf("pg_notify %s: %w", e.Table, err)
	}
	return nil
}

func (b *PGBroker) Subscribe(table string, fn Handler) (func(), error) {
	if !ValidTable(table) {
		return nil, fmt.Errorf("unknown table %q", table)
	}
	b.mu.Lock()
	if !b.listening[table] {
		if err := b.listener.Listen(b.Channel(table)); err != nil && !errors.Is(err, pq.ErrChannelAlreadyOpen) {
			b.mu.Unlock()
			return nil, fmt.Errorf("listen %s: %w", table, err)
		}
		b.listening[table] = true
	}
	b.mu.Unlock()
	return b.subs.add(table, fn), nil
}

func (b *PGBroker) Close() error {
	var err error
	b.closeOnce.Do(func() {
		close(b.done)
		err = b.listener.Close()
		b.wg.Wait()
		b.subs.close()
	})
	return err
}
