package backend

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Ошибки внешнего провайдера, различимые для вызывающего кода.
var (
	// ErrInvalidCredentials неверная пара email/пароль.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrEmailNotConfirmed вход до подтверждения адреса почты.
	ErrEmailNotConfirmed = errors.New("email not confirmed")

	// ErrProfileNotFound запись профиля отсутствует.
	ErrProfileNotFound = errors.New("profile not found")

	// ErrSessionExpired бэкенд отклонил refresh-токен.
	ErrSessionExpired = errors.New("session expired")
)

// apiError тело ошибки провайдера. Сервисы провайдера используют разные
// формы конверта, поэтому поля собраны в одну структуру.
type apiError struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	ErrorCode        string `json:"error_code"`
	Msg              string `json:"msg"`
	Message          string `json:"message"`
}

func (e apiError) text() string {
	for _, s := range []string{e.ErrorDescription, e.Msg, e.Message, e.Error} {
		if s != "" {
			return s
		}
	}
	return ""
}

// classifyAuthError переводит тело ошибки сервиса аутентификации в ошибку
// из таксономии клиентского ядра.
func classifyAuthError(statusCode int, body io.Reader) error {
	var payload apiError
	_ = json.NewDecoder(body).Decode(&payload)
	text := payload.text()

	lower := strings.ToLower(text)
	switch {
	case payload.ErrorCode == "invalid_credentials" || strings.Contains(lower, "invalid login credentials"):
		return ErrInvalidCredentials
	case payload.ErrorCode == "email_not_confirmed" || strings.Contains(lower, "email not confirmed"):
		return ErrEmailNotConfirmed
	case payload.ErrorCode == "refresh_token_not_found" || strings.Contains(lower, "refresh token"):
		return ErrSessionExpired
	}
	if text == "" {
		return fmt.Errorf("auth service returned status %d", statusCode)
	}
	return fmt.Errorf("auth service returned status %d: %s", statusCode, text)
}
