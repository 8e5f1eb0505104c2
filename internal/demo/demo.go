// Package demo реализует демо-аккаунты: фиксированный набор пар учётных
// данных, дающих готовую запись пользователя без обращения к бэкенду.
// Демо-пользователь существует только на клиенте: создаётся при входе,
// уничтожается при выходе и никогда не синхронизируется с бэкендом.
package demo

import (
	"context"
	"fmt"
	"time"

	"github.com/medcampus/medcampus-client/internal/kvstore"
	"github.com/medcampus/medcampus-client/internal/lib/password"
	"github.com/medcampus/medcampus-client/internal/models"
)

// MarkerKey ключ локального хранилища, под которым сохраняется тип активного
// демо-пользователя. Наличие ключа позволяет восстановить демо-сессию после
// перезапуска без повторной аутентификации.
const MarkerKey = "demoUser"

// Фиксированные адреса демо-аккаунтов. Сравнение строгое, с учётом регистра.
const (
	StudentEmail      = "student@example.com"
	ProfessionalEmail = "doctor@example.com"
)

// bcrypt-хэш фиксированного демо-пароля, чтобы не держать его в исходниках
// открытым текстом.
const demoPasswordHash = "$2b$10$K9xPqf3mZjWvR0uYtGcBaeHJ6ukEsBNsp4u3DsfarEpd77ZTMbfpy"

// Фиксированные идентификаторы демо-пользователей.
const (
	studentID      = "00000000-0000-4000-8000-000000000001"
	professionalID = "00000000-0000-4000-8000-000000000002"
)

// demoCreatedAt фиксированная дата создания, чтобы записи были детерминированы.
var demoCreatedAt = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// IsDemoAccount сообщает, образуют ли email и пароль демо-пару.
func IsDemoAccount(email, pass string) bool {
	if email != StudentEmail && email != ProfessionalEmail {
		return false
	}
	return password.CompareHash(demoPasswordHash, pass) == nil
}

// UserType возвращает роль демо-пользователя по адресу почты
// или пустую роль, если адрес не демо-аккаунт.
func UserType(email string) models.Role {
	switch email {
	case StudentEmail:
		return models.RoleStudent
	case ProfessionalEmail:
		return models.RoleProfessional
	default:
		return ""
	}
}

// User возвращает полностью заполненную детерминированную запись
// демо-пользователя или nil для неизвестного типа.
func User(userType models.Role) *models.User {
	switch userType {
	case models.RoleStudent:
		return &models.User{
			ID:                 studentID,
			Email:              StudentEmail,
			DisplayName:        "Demo Student",
			Role:               models.RoleStudent,
			KYCStatus:          models.KYCVerified,
			University:         "Demo Medical University",
			SubscriptionStatus: models.SubscriptionPremium,
			CreatedAt:          demoCreatedAt,
			UpdatedAt:          demoCreatedAt,
			IsDemo:             true,
		}
	case models.RoleProfessional:
		return &models.User{
			ID:                 professionalID,
			Email:              ProfessionalEmail,
			DisplayName:        "Demo Doctor",
			Role:               models.RoleProfessional,
			KYCStatus:          models.KYCVerified,
			Specialty:          "Cardiology",
			SubscriptionStatus: models.SubscriptionPremium,
			CreatedAt:          demoCreatedAt,
			UpdatedAt:          demoCreatedAt,
			IsDemo:             true,
		}
	default:
		return nil
	}
}

// SaveMarker сохраняет тип выбранного демо-пользователя в локальном хранилище.
func SaveMarker(ctx context.Context, store kvstore.Store, userType models.Role) error {
	const op = "demo.SaveMarker"
	if User(userType) == nil {
		return fmt.Errorf("%s: unknown demo user type %q", op, userType)
	}
	if err := store.Set(ctx, MarkerKey, string(userType)); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// LoadMarker читает сохранённый тип демо-пользователя.
// Второй результат false, если маркер отсутствует.
func LoadMarker(ctx context.Context, store kvstore.Store) (models.Role, bool, error) {
	const op = "demo.LoadMarker"
	val, ok, err := store.Get(ctx, MarkerKey)
	if err != nil {
		return "", false, fmt.Errorf("%s: %w", op, err)
	}
	if !ok {
		return "", false, nil
	}
	return models.Role(val), true, nil
}

// ClearMarker удаляет маркер демо-сессии.
func ClearMarker(ctx context.Context, store kvstore.Store) error {
	const op = "demo.ClearMarker"
	if err := store.Delete(ctx, MarkerKey); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
