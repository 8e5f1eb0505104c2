// Package backend содержит клиентов внешнего провайдера платформы:
// сервис аутентификации, хранилище данных и realtime-канал событий.
// Протокол провайдера здесь не переопределяется — пакет лишь переводит
// его ответы в доменные модели и ошибки клиентского ядра.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"golang.org/x/time/rate"

	"github.com/medcampus/medcampus-client/internal/config"
)

// Client HTTP-клиент провайдера. Все вызовы проходят через локальный
// ограничитель частоты, чтобы всплески обращений не расходовали квоту.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	log        *slog.Logger
}

// New создаёт клиента провайдера по настройкам подключения.
func New(cfg config.BackendConnector, log *slog.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst),
		log:        log,
	}
}

// newRequest готовит запрос к провайдеру: JSON-тело, ключ API и токен доступа.
// Пустой bearer означает анонимный запрос под ключом API.
func (c *Client) newRequest(ctx context.Context, method, path string, body any, bearer string) (*http.Request, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, &buf)
	if err != nil {
		return nil, err
	}
	if bearer == "" {
		bearer = c.apiKey
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+bearer)
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// do выполняет запрос с учётом ограничителя частоты и декодирует ответ в out.
// Ошибочные статусы переводит через classify.
func (c *Client) do(req *http.Request, out any, classify func(statusCode int, body io.Reader) error) error {
	if err := c.limiter.Wait(req.Context()); err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= http.StatusBadRequest {
		var buf bytes.Buffer
		_, _ = buf.ReadFrom(resp.Body)
		return classify(resp.StatusCode, bytes.NewReader(buf.Bytes()))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
