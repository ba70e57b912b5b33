package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/soaringjerry/surveyform/internal/api"
	"github.com/soaringjerry/surveyform/internal/config"
	"github.com/soaringjerry/surveyform/internal/db"
	"github.com/soaringjerry/surveyform/internal/session"
)

// backend is an open store together with its health check and cleanup.
type backend struct {
	store api.Store
	ping  func(ctx context.Context) error
	close func() error
}

func noop() error { return nil }

// openBackend opens the configured store and brings its schema up to date.
func openBackend(ctx context.Context, cfg config.StoreConfig, logger *slog.Logger) (*backend, error) {
	switch cfg.Driver {
	case "memory":
		logger.Warn("using in-memory store, data is lost on restart")
		return &backend{store: api.NewMemoryStore(), close: noop}, nil
	case "sqlite":
		sqlDB, err := db.OpenSQLite(cfg.DSN)
		if err != nil {
			return nil, err
		}
		st, err := db.NewSQLiteStore(sqlDB)
		if err != nil {
			sqlDB.Close()
			return nil, err
		}
		applied, err := db.RunMigrations(sqlDB, cfg.MigrationsDir)
		if err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
		if len(applied) > 0 {
			logger.Info("migrations applied", "driver", cfg.Driver, "files", applied)
		}
		return &backend{store: st, ping: st.Ping, close: st.Close}, nil
	case "postgres":
		gdb, err := db.OpenPostgres(cfg.DSN)
		if err != nil {
			return nil, err
		}
		st, err := db.NewPostgresStore(gdb)
		if err != nil {
			return nil, err
		}
		if err := st.AutoMigrate(ctx); err != nil {
			st.Close()
			return nil, fmt.Errorf("auto migrate: %w", err)
		}
		return &backend{store: st, ping: st.Ping, close: st.Close}, nil
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
}

// healthCheck adapts the store ping to the router's /health hook.
func (b *backend) healthCheck() func(r *http.Request) error {
	if b.ping == nil {
		return nil
	}
	return func(r *http.Request) error {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		return b.ping(ctx)
	}
}

func openDrafts(ctx context.Context, cfg config.DraftConfig) (session.DraftStore, func() error, error) {
	if cfg.Driver != "redis" {
		return session.NewMemoryDraftStore(cfg.TTL), noop, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("connect redis %s: %w", cfg.RedisAddr, err)
	}
	return session.NewRedisDraftStore(client, "", cfg.TTL), client.Close, nil
}

var (
	_ api.Store = (*db.SQLiteStore)(nil)
	_ api.Store = (*db.PostgresStore)(nil)
)
