// Package app собирает клиентское ядро: локальное хранилище, клиент бэкенда,
// канал событий аутентификации и сервисы сессии и премиум-статуса.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/medcampus/medcampus-client/internal/backend"
	"github.com/medcampus/medcampus-client/internal/config"
	"github.com/medcampus/medcampus-client/internal/kvstore"
	"github.com/medcampus/medcampus-client/internal/lib/sl"
	"github.com/medcampus/medcampus-client/internal/services/premium"
	"github.com/medcampus/medcampus-client/internal/services/profile"
	"github.com/medcampus/medcampus-client/internal/services/session"
)

// App клиентское ядро в собранном виде.
type App struct {
	Session *session.Manager
	Premium *premium.Checker

	store  kvstore.Store
	feed   *backend.AuthFeed
	logger *slog.Logger
}

// New создаёт все компоненты ядра по конфигурации.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	const op = "app.New"

	store, err := newStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	client := backend.New(cfg.BackendConnector, logger)
	feed := backend.NewAuthFeed(cfg.BackendConnector, logger)

	materializer := profile.New(client, cfg.Profile.RetryDelay, logger)
	sess := session.New(client, client, materializer, store, cfg.BackendConnector.RedirectURL, logger)
	prem := premium.New(client, store, cfg.Premium.TTL, logger)

	return &App{
		Session: sess,
		Premium: prem,
		store:   store,
		feed:    feed,
		logger:  logger,
	}, nil
}

// newStore выбирает реализацию локального хранилища по драйверу из конфига.
func newStore(ctx context.Context, cfg *config.Config) (kvstore.Store, error) {
	switch cfg.LocalStore.Driver {
	case "sqlite":
		return kvstore.NewSQLiteStore(cfg.LocalStore.Path)
	case "redis":
		return kvstore.NewRedisStore(ctx, cfg.RedisConnection)
	case "memory":
		return kvstore.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown local store driver %q", cfg.LocalStore.Driver)
	}
}

// Run восстанавливает сессию, запускает канал событий аутентификации и
// обработку событий, затем блокируется до отмены контекста.
func (a *App) Run(ctx context.Context) error {
	const op = "app.Run"
	log := a.logger.With(sl.Op(op))

	a.Session.Init(ctx)

	go func() {
		if err := a.feed.Run(ctx); err != nil {
			log.Error("auth feed stopped", sl.Err(err))
		}
	}()

	runDone := make(chan struct{})
	go func() {
		a.Session.Run(ctx, a.feed.Events())
		close(runDone)
	}()

	log.Info("client core started")

	<-ctx.Done()
	<-runDone
	if err := a.store.Close(); err != nil {
		log.Error("failed to close local store", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
