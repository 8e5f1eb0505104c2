package kvstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	// Регистрация драйвера sqlite для использования с database/sql.
	_ "modernc.org/sqlite"
)

// SQLiteStore файловое хранилище на основе sqlite — вариант по умолчанию,
// переживающий перезапуск процесса на устройстве пользователя.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore открывает (или создаёт) файл базы и инициализирует таблицу.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	const op = "kvstore.NewSQLiteStore"

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err = db.PingContext(context.Background()); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	create := `CREATE TABLE IF NOT EXISTS kv (
			"key" TEXT PRIMARY KEY,
			"value" TEXT NOT NULL
	);`
	if _, err = db.Exec(create); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &SQLiteStore{db: db}, nil
}

// Get возвращает значение по ключу.
func (s *SQLiteStore) Get(ctx context.Context, key string) (string, bool, error) {
	const op = "kvstore.SQLiteStore.Get"

	query := `SELECT value FROM kv WHERE key = ?`
	var value string
	err := s.db.QueryRowContext(ctx, query, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("%s: %w", op, err)
	}
	return value, true, nil
}

// Set записывает значение по ключу, перезаписывая существующее.
func (s *SQLiteStore) Set(ctx context.Context, key, value string) error {
	const op = "kvstore.SQLiteStore.Set"

	query := `INSERT INTO kv (key, value) VALUES (?, ?)
			  ON CONFLICT(key) DO UPDATE SET value = excluded.value`
	if _, err := s.db.ExecContext(ctx, query, key, value); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Delete удаляет ключ.
func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	const op = "kvstore.SQLiteStore.Delete"

	query := `DELETE FROM kv WHERE key = ?`
	if _, err := s.db.ExecContext(ctx, query, key); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Close закрывает соединение с базой.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
