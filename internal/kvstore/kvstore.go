// Package kvstore реализует локальное персистентное хранилище ключ-значение
// клиентского ядра. В нём живут демо-маркер, сохранённая сессия и зеркало
// кэша премиум-статуса. Хранилище не блокируется между процессами:
// при конкурентной записи выигрывает последняя (узкое пространство ключей
// делает такие гонки приемлемыми).
package kvstore

import "context"

// Store контракт хранилища ключ-значение.
type Store interface {
	// Get возвращает значение по ключу; второй результат false, если ключа нет.
	Get(ctx context.Context, key string) (string, bool, error)

	// Set записывает значение по ключу, перезаписывая существующее.
	Set(ctx context.Context, key, value string) error

	// Delete удаляет ключ; отсутствие ключа не является ошибкой.
	Delete(ctx context.Context, key string) error

	// Close освобождает ресурсы хранилища.
	Close() error
}
