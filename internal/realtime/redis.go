package realtime

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisBroker fans events out through Redis pub/sub on one channel per
// table, all matched by a single pattern subscription.
type RedisBroker struct {
	client *redis.Client
	prefix string
	subs   *fanout
	log    zerolog.Logger
	pubsub *redis.PubSub
	wg     sync.WaitGroup
}

// NewRedisBroker subscribes to prefix* on client.
func NewRedisBroker(ctx context.Context, client *redis.Client, prefix string, log zerolog.Logger) (*RedisBroker, error) {
	pubsub := client.PSubscribe(ctx, prefix+"*")
	// wait for the subscription confirmation so early publishes are not lost
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("redis psubscribe: %w", err)
	}
	b := &RedisBroker{client: client, prefix: prefix, subs: newFanout(), log: log, pubsub: pubsub}
	b.wg.Add(1)
	go b.loop()
	return b, nil
}

// Channel returns the pub/sub channel of table.
func (b *RedisBroker) Channel(table string) string { return b.prefix + table }

func (b *RedisBroker) loop() {
	defer b.wg.Done()
	for msg := range b.pubsub.Channel() {
		e, err := decodeEvent(msg.Payload)
		if err != nil {
			b.log.Warn().Err(err).Str("channel", msg.Channel).Msg("dropping message")
			continue
		}
		if e.Table == "" {
			e.Table = strings.TrimPrefix(msg.Channel, b.prefix)
		}
		b.subs.dispatch(e)
	}
}

func (b *RedisBroker) Publish(ctx context.Context, e Event) error {
	if !ValidTable(e.Table) {
		return fmt.Errorf("unknown table %q", e.Table)
	}
	payload, err := encodeEvent(e)
	if err != nil {
		return err
	}
	if err := b.client.Publish(ctx, b.Channel(e.Table), payload).Err(); err != nil {
		return fmt.Errorf("redis publish %s: %w", e.Table, err)
	}
	return nil
}

func (b *RedisBroker) Subscribe(table string, fn Handler) (func(), error) {
	if !ValidTable(table) {
		return nil, fmt.Errorf("unknown table %q", table)
	}
	return b.subs.add(table, fn), nil
}

func (b *RedisBroker) Close() error {
	err := b.pubsub.Close()
	b.wg.Wait()
	b.subs.close()
	return err
}
