// Package premium кэширует премиум-статус пользователя с ограниченным
// временем жизни, чтобы не дёргать бэкенд на каждую проверку доступа.
package premium

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/medcampus/medcampus-client/internal/kvstore"
	"github.com/medcampus/medcampus-client/internal/lib/sl"
	"github.com/medcampus/medcampus-client/internal/models"
)

// PremiumAPI удалённая проверка премиум-статуса.
type PremiumAPI interface {
	CheckPremium(ctx context.Context, accessToken, userID string) (bool, error)
}

// Status наблюдаемый результат проверки. IsLoading выставлен, пока идёт
// первый запрос для пользователя без закэшированного значения.
type Status struct {
	IsPremium bool
	IsLoading bool
}

type cacheEntry struct {
	value     bool
	checkedAt time.Time
}

// Checker проверяет премиум-статус с кэшем в памяти и зеркалом в локальном
// хранилище. Значение считается свежим в пределах TTL; сбой проверки не
// кэшируется и трактуется как отсутствие премиума.
type Checker struct {
	api   PremiumAPI
	store kvstore.Store
	ttl   time.Duration
	log   *slog.Logger
	now   func() time.Time

	mu    sync.Mutex
	cache map[string]cacheEntry
}

// New создаёт Checker с заданным временем жизни кэша.
func New(api PremiumAPI, store kvstore.Store, ttl time.Duration, log *slog.Logger) *Checker {
	return &Checker{
		api:   api,
		store: store,
		ttl:   ttl,
		log:   log,
		now:   time.Now,
		cache: make(map[string]cacheEntry),
	}
}

func statusKey(userID string) string    { return "premium_status_" + userID }
func timestampKey(userID string) string { return statusKey(userID) + "_timestamp" }

// Check возвращает премиум-статус пользователя. Демо-пользователи считаются
// премиумом без сетевых вызовов. Свежее закэшированное значение возвращается
// как есть; устаревшее или отсутствующее приводит к запросу на бэкенд.
// При сбое запроса возвращается false, кэш не обновляется.
func (c *Checker) Check(ctx context.Context, accessToken string, user *models.User) Status {
	const op = "premium.Check"
	log := c.log.With(sl.Op(op))

	if user == nil {
		return Status{}
	}
	if user.IsDemo {
		return Status{IsPremium: true}
	}

	if val, ok := c.cached(ctx, user.ID); ok {
		return Status{IsPremium: val}
	}

	val, err := c.api.CheckPremium(ctx, accessToken, user.ID)
	if err != nil {
		// сбой не кэшируем: следующая проверка снова пойдёт на бэкенд
		log.Warn("premium check failed", slog.String("user_id", user.ID), sl.Err(err))
		return Status{IsPremium: false}
	}

	c.remember(ctx, user.ID, val)
	return Status{IsPremium: val}
}

// Watch выдаёт статус, не блокируя вызывающий код: сначала немедленный
// снимок (кэш либо IsLoading), затем, если понадобился запрос, итоговое
// значение. Канал закрывается после последнего снимка.
func (c *Checker) Watch(ctx context.Context, accessToken string, user *models.User) <-chan Status {
	out := make(chan Status, 2)

	if user == nil || user.IsDemo {
		out <- c.Check(ctx, accessToken, user)
		close(out)
		return out
	}
	if val, ok := c.cached(ctx, user.ID); ok {
		out <- Status{IsPremium: val}
		close(out)
		return out
	}

	out <- Status{IsLoading: true}
	go func() {
		defer close(out)
		out <- c.Check(ctx, accessToken, user)
	}()
	return out
}

// Invalidate сбрасывает кэш пользователя, например после смены подписки.
func (c *Checker) Invalidate(ctx context.Context, userID string) {
	const op = "premium.Invalidate"

	c.mu.Lock()
	delete(c.cache, userID)
	c.mu.Unlock()

	if err := c.store.Delete(ctx, statusKey(userID)); err != nil {
		c.log.With(sl.Op(op)).Warn("failed to drop cached status", sl.Err(err))
	}
	if err := c.store.Delete(ctx, timestampKey(userID)); err != nil {
		c.log.With(sl.Op(op)).Warn("failed to drop cached timestamp", sl.Err(err))
	}
}

// cached возвращает свежее значение из памяти или из локального хранилища.
// Найденное в хранилище значение поднимается в память.
func (c *Checker) cached(ctx context.Context, userID string) (bool, bool) {
	now := c.now()

	c.mu.Lock()
	entry, ok := c.cache[userID]
	c.mu.Unlock()
	if ok && now.Sub(entry.checkedAt) < c.ttl {
		return entry.value, true
	}

	val, checkedAt, ok := c.loadStored(ctx, userID)
	if !ok || now.Sub(checkedAt) >= c.ttl {
		return false, false
	}

	c.mu.Lock()
	c.cache[userID] = cacheEntry{value: val, checkedAt: checkedAt}
	c.mu.Unlock()
	return val, true
}

// remember записывает значение в память и зеркалит его в локальное хранилище.
// Отметка времени хранится как миллисекунды Unix-эпохи.
func (c *Checker) remember(ctx context.Context, userID string, val bool) {
	const op = "premium.remember"
	now := c.now()

	c.mu.Lock()
	c.cache[userID] = cacheEntry{value: val, checkedAt: now}
	c.mu.Unlock()

	if err := c.store.Set(ctx, statusKey(userID), strconv.FormatBool(val)); err != nil {
		c.log.With(sl.Op(op)).Warn("failed to persist status", sl.Err(err))
		return
	}
	if err := c.store.Set(ctx, timestampKey(userID), strconv.FormatInt(now.UnixMilli(), 10)); err != nil {
		c.log.With(sl.Op(op)).Warn("failed to persist timestamp", sl.Err(err))
	}
}

func (c *Checker) loadStored(ctx context.Context, userID string) (bool, time.Time, bool) {
	const op = "premium.loadStored"
	log := c.log.With(sl.Op(op))

	rawVal, ok, err := c.store.Get(ctx, statusKey(userID))
	if err != nil || !ok {
		return false, time.Time{}, false
	}
	rawTS, ok, err := c.store.Get(ctx, timestampKey(userID))
	if err != nil || !ok {
		return false, time.Time{}, false
	}

	val, err := strconv.ParseBool(rawVal)
	if err != nil {
		log.Warn("corrupt cached status", sl.Err(fmt.Errorf("%s: %w", op, err)))
		return false, time.Time{}, false
	}
	ms, err := strconv.ParseInt(rawTS, 10, 64)
	if err != nil {
		log.Warn("corrupt cached timestamp", sl.Err(fmt.Errorf("%s: %w", op, err)))
		return false, time.Time{}, false
	}
	return val, time.UnixMilli(ms), true
}
