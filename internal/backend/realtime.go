package backend

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/medcampus/medcampus-client/internal/config"
	"github.com/medcampus/medcampus-client/internal/lib/sl"
)

// AuthEventType тип события канала аутентификации.
type AuthEventType string

// События, которые провайдер может доставить вне очереди действий пользователя:
// вход из другой вкладки/устройства, обновление токена, выход.
const (
	EventSignedIn       AuthEventType = "SIGNED_IN"
	EventSignedOut      AuthEventType = "SIGNED_OUT"
	EventTokenRefreshed AuthEventType = "TOKEN_REFRESHED"
)

// AuthEvent событие изменения состояния аутентификации.
type AuthEvent struct {
	Type        AuthEventType `json:"event"`
	AccessToken string        `json:"access_token,omitempty"`
}

// reconnectDelay пауза перед повторным подключением к каналу.
const reconnectDelay = 5 * time.Second

// AuthFeed подписка на события аутентификации по websocket.
// События доставляются в канал в порядке получения от провайдера.
type AuthFeed struct {
	url    string
	apiKey string
	events chan AuthEvent
	log    *slog.Logger
}

// NewAuthFeed создаёт подписку по настройкам подключения. При пустом
// realtime-адресе канал остаётся пассивным: Run сразу возвращает nil.
func NewAuthFeed(cfg config.BackendConnector, log *slog.Logger) *AuthFeed {
	return &AuthFeed{
		url:    cfg.RealtimeURL,
		apiKey: cfg.APIKey,
		events: make(chan AuthEvent, 16),
		log:    log,
	}
}

// Events канал входящих событий. Закрывается после завершения Run.
func (f *AuthFeed) Events() <-chan AuthEvent {
	return f.events
}

// Run держит подключение к каналу, переподключаясь с фиксированной паузой,
// пока контекст не будет отменён.
func (f *AuthFeed) Run(ctx context.Context) error {
	const op = "backend.AuthFeed.Run"
	defer close(f.events)

	if f.url == "" {
		return nil
	}
	log := f.log.With(sl.Op(op))

	for {
		if err := f.readLoop(ctx); err != nil && ctx.Err() == nil {
			log.Warn("auth feed connection lost", sl.Err(err))
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(reconnectDelay):
		}
	}
}

// readLoop одно подключение: dial и чтение событий до ошибки или отмены.
func (f *AuthFeed) readLoop(ctx context.Context) error {
	header := http.Header{}
	header.Set("apikey", f.apiKey)

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, f.url, header)
	if err != nil {
		return err
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	defer func() {
		_ = conn.Close()
	}()

	done := make(chan struct{})
	defer close(done)
	go func() {
		// Отмена контекста рвёт блокирующее чтение.
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	for {
		var ev AuthEvent
		if err := conn.ReadJSON(&ev); err != nil {
			return err
		}
		if ev.Type == "" {
			continue
		}
		select {
		case f.events <- ev:
		case <-ctx.Done():
			return nil
		}
	}
}
