package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/medcampus/medcampus-client/internal/models"
)

// classifyDataError переводит ошибку хранилища данных в общий вид.
func classifyDataError(statusCode int, body io.Reader) error {
	var payload apiError
	_ = json.NewDecoder(body).Decode(&payload)
	if text := payload.text(); text != "" {
		return fmt.Errorf("data service returned status %d: %s", statusCode, text)
	}
	return fmt.Errorf("data service returned status %d", statusCode)
}

// ProfileByID возвращает запись профиля по идентификатору учётной записи.
// Отсутствие записи — ErrProfileNotFound.
func (c *Client) ProfileByID(ctx context.Context, accessToken, id string) (*models.Profile, error) {
	const op = "backend.ProfileByID"

	path := "/rest/v1/profiles?select=*&id=eq." + url.QueryEscape(id)
	req, err := c.newRequest(ctx, http.MethodGet, path, nil, accessToken)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var rows []models.Profile
	if err := c.do(req, &rows, classifyDataError); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%s: %w", op, ErrProfileNotFound)
	}
	return &rows[0], nil
}

// UpsertProfile создаёт запись профиля, идемпотентно по идентификатору:
// конкурирующие материализации одной учётной записи не плодят дубликатов.
func (c *Client) UpsertProfile(ctx context.Context, accessToken string, p models.Profile) error {
	const op = "backend.UpsertProfile"

	req, err := c.newRequest(ctx, http.MethodPost, "/rest/v1/profiles", p, accessToken)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Prefer", "resolution=merge-duplicates")

	if err := c.do(req, nil, classifyDataError); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// UpdateProfile частично обновляет запись профиля по идентификатору.
func (c *Client) UpdateProfile(ctx context.Context, accessToken, id string, patch map[string]any) error {
	const op = "backend.UpdateProfile"

	path := "/rest/v1/profiles?id=eq." + url.QueryEscape(id)
	req, err := c.newRequest(ctx, http.MethodPatch, path, patch, accessToken)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := c.do(req, nil, classifyDataError); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// CheckPremium спрашивает у бэкенда, действует ли у пользователя премиум-доступ.
func (c *Client) CheckPremium(ctx context.Context, accessToken, userID string) (bool, error) {
	const op = "backend.CheckPremium"

	body := map[string]string{"user_id": userID}
	req, err := c.newRequest(ctx, http.MethodPost, "/rest/v1/rpc/check_premium", body, accessToken)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	var isPremium bool
	if err := c.do(req, &isPremium, classifyDataError); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return isPremium, nil
}
