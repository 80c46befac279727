package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/tchayre/logsti/internal/cache"
	"github.com/tchayre/logsti/internal/config"
	"github.com/tchayre/logsti/internal/database"
	"github.com/tchayre/logsti/internal/export"
	"github.com/tchayre/logsti/internal/gateway"
	"github.com/tchayre/logsti/internal/realtime"
	"github.com/tchayre/logsti/internal/repository"
)

// app collects the resources a command opens so they close in reverse.
type app struct {
	cfg     *config.Config
	closers []func() error
	redis   *redis.Client
}

func newApp(cfg *config.Config) *app {
	return &app{cfg: cfg}
}

func (a *app) onClose(fn func() error) {
	a.closers = append(a.closers, fn)
}

func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *app) openDB(ctx context.Context) (*sqlx.DB, error) {
	db, err := database.Open(ctx, a.cfg.Database, log)
	if err != nil {
		return nil, err
	}
	a.onClose(db.Close)
	if a.cfg.Database.AutoMigrate {
		if _, err := database.Migrate(ctx, db, log); err != nil {
			return nil, err
		}
	}
	return db, nil
}

// redisClient dials once and shares the client between broker and store.
func (a *app) redisClient(ctx context.Context) (*redis.Client, error) {
	if a.redis != nil {
		return a.redis, nil
	}
	rc := a.cfg.Redis
	client, err := cache.DialRedis(ctx, rc.Addr, rc.Password, rc.DB)
	if err != nil {
		return nil, err
	}
	a.onClose(client.Close)
	a.redis = client
	return client, nil
}

func (a *app) openBroker(ctx context.Context, db *sqlx.DB) (realtime.Broker, error) {
	var (
		broker realtime.Broker
		err    error
	)
	prefix := a.cfg.Realtime.ChannelPrefix
	switch a.cfg.Realtime.Broker {
	case "postgres":
		if a.cfg.Database.Driver != database.DriverPostgres {
			return nil, fmt.Errorf("realtime broker postgres needs the postgres driver, got %s", a.cfg.Database.Driver)
		}
		broker = realtime.NewPGBroker(db, a.cfg.Database.DSN, prefix, realtime.WithPGLogger(log))
	case "redis":
		client, cerr := a.redisClient(ctx)
		if cerr != nil {
			return nil, cerr
		}
		broker, err = realtime.NewRedisBroker(ctx, client, prefix, log)
		if err != nil {
			return nil, err
		}
	default:
		broker = realtime.NewMemoryBroker()
	}
	a.onClose(broker.Close)
	log.Info().Str("broker", a.cfg.Realtime.Broker).Msg("realtime broker ready")
	return broker, nil
}

// openDatabaseGateway wires repositories and broker into a DBGateway.
func (a *app) openDatabaseGateway(ctx context.Context) (*gateway.DBGateway, realtime.Broker, error) {
	db, err := a.openDB(ctx)
	if err != nil {
		return nil, nil, err
	}
	broker, err := a.openBroker(ctx, db)
	if err != nil {
		return nil, nil, err
	}
	gw := gateway.NewDBGateway(repository.NewSQLSet(db), broker,
		gateway.WithLogger(log),
		gateway.WithPinger(func(ctx context.Context) error { return database.Ping(ctx, db) }),
	)
	a.onClose(gw.Close)
	return gw, broker, nil
}

// openGateway returns the gateway selected by gateway.mode.
func (a *app) openGateway(ctx context.Context) (gateway.Gateway, error) {
	if a.cfg.Gateway.Mode == "rest" {
		return a.openRESTGateway(), nil
	}
	gw, _, err := a.openDatabaseGateway(ctx)
	if err != nil {
		return nil, err
	}
	return gw, nil
}

func (a *app) openRESTGateway() *gateway.RESTGateway {
	gw := gateway.NewRESTGateway(gateway.RESTConfig{
		BaseURL:        a.cfg.Gateway.BaseURL,
		Timeout:        a.cfg.Gateway.Timeout,
		ReconnectDelay: a.cfg.Realtime.ReconnectDelay,
		Logger:         log,
	})
	a.onClose(gw.Close)
	return gw
}

// openBackup opens the snapshot store selected by backup.store.
func (a *app) openBackup(ctx context.Context, reg prometheus.Registerer) (*export.Backup, error) {
	var store cache.Store
	switch a.cfg.Backup.Store {
	case "redis":
		client, err := a.redisClient(ctx)
		if err != nil {
			return nil, err
		}
		// the client is shared; closing it is the app's job
		store = cache.NewRedisStore(client, "")
	case "memory":
		store = cache.NewMemoryStore()
		a.onClose(store.Close)
	default:
		bunt, err := cache.OpenBunt(a.cfg.Backup.Path)
		if err != nil {
			return nil, err
		}
		store = bunt
		a.onClose(store.Close)
	}
	if reg != nil {
		store = cache.Instrument(store, cache.NewMetrics(reg))
	}
	log.Info().Str("store", a.cfg.Backup.Store).Msg("backup store ready")
	return export.NewBackup(store,
		export.WithKeyPrefix(a.cfg.Backup.KeyPrefix),
		export.WithLocation(a.cfg.App.Location()),
		export.WithLogger(log),
	), nil
}
