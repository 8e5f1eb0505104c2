package kvstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/medcampus/medcampus-client/internal/config"
)

// RedisStore хранилище поверх redis для развертываний, где клиентское ядро
// работает на стороне сервера и хранилище разделяется между экземплярами.
type RedisStore struct {
	db *redis.Client
}

// NewRedisStore подключается к redis и проверяет соединение.
func NewRedisStore(ctx context.Context, cfg config.RedisConnection) (*RedisStore, error) {
	const op = "kvstore.NewRedisStore"

	db := redis.NewClient(&redis.Options{
		Addr:         cfg.AddressRedis,
		Password:     cfg.Password,
		DB:           cfg.DB,
		Username:     cfg.User,
		MaxRetries:   cfg.MaxRetries,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.TimeoutRedis,
		WriteTimeout: cfg.TimeoutRedis,
	})

	if err := db.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &RedisStore{db: db}, nil
}

// Get возвращает значение по ключу.
func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	const op = "kvstore.RedisStore.Get"

	val, err := s.db.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("%s: %w", op, err)
	}
	return val, true, nil
}

// Set записывает значение по ключу без срока жизни.
func (s *RedisStore) Set(ctx context.Context, key, value string) error {
	const op = "kvstore.RedisStore.Set"

	if err := s.db.Set(ctx, key, value, 0).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Delete удаляет ключ.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	const op = "kvstore.RedisStore.Delete"

	if err := s.db.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Close закрывает соединение с redis.
func (s *RedisStore) Close() error {
	return s.db.Close()
}
