package backend

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/medcampus/medcampus-client/internal/models"
)

// ParseAccessToken извлекает учётную запись и срок действия из access-токена.
// Подпись не проверяется: её проверяет бэкенд при каждом вызове, клиенту
// нужны только идентификатор, почта и срок действия для восстановления сессии.
func ParseAccessToken(tokenStr string) (*models.Identity, time.Time, error) {
	const op = "backend.ParseAccessToken"

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenStr, claims); err != nil {
		return nil, time.Time{}, fmt.Errorf("%s: %w", op, err)
	}

	sub, _ := claims["sub"].(string)
	if _, err := uuid.Parse(sub); err != nil {
		return nil, time.Time{}, fmt.Errorf("%s: subject is not a valid id: %w", op, err)
	}
	email, _ := claims["email"].(string)
	metadata, _ := claims["user_metadata"].(map[string]any)

	var expiresAt time.Time
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		expiresAt = exp.Time
	}

	identity := &models.Identity{
		ID:       sub,
		Email:    email,
		Metadata: metadata,
	}
	return identity, expiresAt, nil
}
