package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/tchayre/logsti/internal/models"
)

// EventType is the kind of row change.
type EventType string

const (
	EventInsert EventType = "INSERT"
	EventUpdate EventType = "UPDATE"
	EventDelete EventType = "DELETE"
)

// Event announces that a table changed. It carries no row payload;
// consumers re-list the table.
type Event struct {
	Table string    `json:"table"`
	Type  EventType `json:"event"`
	At    time.Time `json:"at"`
}

// Handler receives events for one table.
type Handler func(Event)

// Broker fans change events out to subscribers, in process or across
// processes.
type Broker interface {
	Publish(ctx context.Context, e Event) error
	// Subscribe registers fn for table. The returned cancel func is
	// idempotent; a delivery already in flight may still complete.
	Subscribe(table string, fn Handler) (cancel func(), err error)
	Close() error
}

// Tables lists every realtime topic.
func Tables() []string {
	tables := []string{models.TicketsTable}
	for _, kind := range models.ReferenceKinds {
		tables = append(tables, kind.Table())
	}
	return tables
}

// ValidTable reports whether table is a known topic.
func ValidTable(table string) bool {
	for _, t := range Tables() {
		if t == table {
			return true
		}
	}
	return false
}

func encodeEvent(e Event) (string, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return "", fmt.Errorf("encode event: %w", err)
	}
	return string(b), nil
}

func decodeEvent(payload string) (Event, error) {
	var e Event
	if err := json.Unmarshal([]byte(payload), &e); err != nil {
		return Event{}, fmt.Errorf("decode event: %w", err)
	}
	return e, nil
}

// subscriber delivers on its own goroutine. A pending slot of one event
// collapses bursts into a single extra delivery.
type subscriber struct {
	fn      Handler
	pending chan Event
	done    chan struct{}
	once    sync.Once
	wg      sync.WaitGroup
}

func newSubscriber(fn Handler) *subscriber {
	s := &subscriber{fn: fn, pending: make(chan Event, 1), done: make(chan struct{})}
	s.wg.Add(1)
	go s.loop()
	return s
}

func (s *subscriber) loop() {
	defer s.wg.Done()
	for {
		select {
		case <-s.done:
			return
		case e := <-s.pending:
			select {
			case <-s.done:
				return
			default:
			}
			s.fn(e)
		}
	}
}

func (s *subscriber) offer(e Event) {
	select {
	case s.pending <- e:
	default:
	}
}

func (s *subscriber) stop() {
	s.once.Do(func() { close(s.done) })
}

// fanout is the local subscriber registry shared by every broker.
type fanout struct {
	mu     sync.RWMutex
	nextID int
	subs   map[string]map[int]*subscriber
}

func newFanout() *fanout {
	return &fanout{subs: map[string]map[int]*subscriber{}}
}

func (f *fanout) add(table string, fn Handler) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subs[table] == nil {
		f.subs[table] = map[int]*subscriber{}
	}
	id := f.nextID
	f.nextID++
	s := newSubscriber(fn)
	f.subs[table][id] = s

	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.subs[table], id)
			f.mu.Unlock()
			s.stop()
		})
	}
}

func (f *fanout) dispatch(e Event) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	for _, s := range f.subs[e.Table] {
		s.offer(e)
	}
}

// dispatchAll sends a synthetic update on every table with subscribers.
func (f *fanout) dispatchAll(at time.Time) {
	f.mu.RLock()
	tables := make([]string, 0, len(f.subs))
	for table := range f.subs {
		tables = append(tables, table)
	}
	f.mu.RUnlock()
	for _, table := range tables {
		f.dispatch(Event{Table: table, Type: EventUpdate, At: at})
	}
}

func (f *fanout) count(table string) int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.subs[table])
}

func (f *fanout) close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for table, subs := range f.subs {
		for id, s := range subs {
			s.stop()
			delete(subs, id)
		}
		delete(f.subs, table)
	}
}

// MemoryBroker delivers events within the process.
type MemoryBroker struct {
	subs *fanout
}

// NewMemoryBroker creates an in-process broker.
func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{subs: newFanout()}
}

func (b *MemoryBroker) Publish(ctx context.Context, e Event) error {
	if !ValidTable(e.Table) {
		return fmt.Errorf("unknown table %q", e.Table)
	}
	b.subs.dispatch(e)
	return nil
}

func (b *MemoryBroker) Subscribe(table string, fn Handler) (func(), error) {
	if !ValidTable(table) {
		return nil, fmt.Errorf("unknown table %q", table)
	}
	return b.subs.add(table, fn), nil
}

// Subscribers returns the number of live subscriptions on table.
func (b *MemoryBroker) Subscribers(table string) int { return b.subs.count(table) }

func (b *MemoryBroker) Close() error {
	b.subs.close()
	return nil
}
