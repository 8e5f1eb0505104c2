package backend

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/medcampus/medcampus-client/internal/models"
)

// identityPayload учётная запись в ответах сервиса аутентификации.
type identityPayload struct {
	ID           string         `json:"id"`
	Email        string         `json:"email"`
	UserMetadata map[string]any `json:"user_metadata"`
}

func (p *identityPayload) toIdentity() *models.Identity {
	return &models.Identity{
		ID:       p.ID,
		Email:    p.Email,
		Metadata: p.UserMetadata,
	}
}

// tokenResponse ответ сервиса аутентификации с выданной сессией.
// При регистрации с подтверждением почты токены отсутствуют.
type tokenResponse struct {
	AccessToken  string           `json:"access_token"`
	RefreshToken string           `json:"refresh_token"`
	TokenType    string           `json:"token_type"`
	ExpiresIn    int              `json:"expires_in"`
	User         *identityPayload `json:"user"`

	// Форма ответа signup без сессии: учётная запись лежит в корне.
	ID           string         `json:"id"`
	Email        string         `json:"email"`
	UserMetadata map[string]any `json:"user_metadata"`
}

func (r *tokenResponse) session() *models.Session {
	if r.AccessToken == "" {
		return nil
	}
	return &models.Session{
		AccessToken:  r.AccessToken,
		RefreshToken: r.RefreshToken,
		TokenType:    r.TokenType,
		ExpiresAt:    time.Now().UTC().Add(time.Duration(r.ExpiresIn) * time.Second),
	}
}

func (r *tokenResponse) identity() *models.Identity {
	if r.User != nil {
		return r.User.toIdentity()
	}
	if r.ID != "" {
		return &models.Identity{ID: r.ID, Email: r.Email, Metadata: r.UserMetadata}
	}
	return nil
}

// SignInWithPassword выполняет вход по email и паролю.
func (c *Client) SignInWithPassword(ctx context.Context, email, pass string) (*models.Session, *models.Identity, error) {
	const op = "backend.SignInWithPassword"

	body := map[string]string{"email": email, "password": pass}
	req, err := c.newRequest(ctx, http.MethodPost, "/auth/v1/token?grant_type=password", body, "")
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}

	var resp tokenResponse
	if err := c.do(req, &resp, classifyAuthError); err != nil {
		return nil, nil, err
	}

	sess := resp.session()
	identity := resp.identity()
	if sess == nil || identity == nil {
		return nil, nil, fmt.Errorf("%s: incomplete token response", op)
	}
	return sess, identity, nil
}

// SignUp регистрирует пользователя с метаданными и адресом возврата для
// письма подтверждения. Если провайдер требует подтверждения почты,
// сессия в результате равна nil.
func (c *Client) SignUp(ctx context.Context, email, pass string, metadata map[string]any, redirectURL string) (*models.Session, *models.Identity, error) {
	const op = "backend.SignUp"

	path := "/auth/v1/signup"
	if redirectURL != "" {
		path += "?redirect_to=" + url.QueryEscape(redirectURL)
	}
	body := map[string]any{"email": email, "password": pass}
	if len(metadata) > 0 {
		body["data"] = metadata
	}
	req, err := c.newRequest(ctx, http.MethodPost, path, body, "")
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}

	var resp tokenResponse
	if err := c.do(req, &resp, classifyAuthError); err != nil {
		return nil, nil, err
	}

	identity := resp.identity()
	if identity == nil {
		return nil, nil, fmt.Errorf("%s: response without user", op)
	}
	return resp.session(), identity, nil
}

// SignOut завершает сессию на стороне бэкенда.
func (c *Client) SignOut(ctx context.Context, accessToken string) error {
	const op = "backend.SignOut"

	req, err := c.newRequest(ctx, http.MethodPost, "/auth/v1/logout", nil, accessToken)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return c.do(req, nil, classifyAuthError)
}

// RefreshSession обменивает refresh-токен на свежую сессию. Используется при
// восстановлении сессии после перезапуска.
func (c *Client) RefreshSession(ctx context.Context, refreshToken string) (*models.Session, *models.Identity, error) {
	const op = "backend.RefreshSession"

	body := map[string]string{"refresh_token": refreshToken}
	req, err := c.newRequest(ctx, http.MethodPost, "/auth/v1/token?grant_type=refresh_token", body, "")
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}

	var resp tokenResponse
	if err := c.do(req, &resp, classifyAuthError); err != nil {
		return nil, nil, err
	}

	sess := resp.session()
	identity := resp.identity()
	if sess == nil || identity == nil {
		return nil, nil, fmt.Errorf("%s: incomplete token response", op)
	}
	return sess, identity, nil
}

// ResetPasswordForEmail запрашивает у провайдера письмо для сброса пароля.
func (c *Client) ResetPasswordForEmail(ctx context.Context, email, redirectURL string) error {
	const op = "backend.ResetPasswordForEmail"

	path := "/auth/v1/recover"
	if redirectURL != "" {
		path += "?redirect_to=" + url.QueryEscape(redirectURL)
	}
	req, err := c.newRequest(ctx, http.MethodPost, path, map[string]string{"email": email}, "")
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return c.do(req, nil, classifyAuthError)
}
