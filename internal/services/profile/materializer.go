// Package profile реализует материализацию профиля: превращение учётной
// записи внешнего сервиса аутентификации в полноценный профиль пользователя
// с ленивым созданием записи при первом входе.
package profile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/medcampus/medcampus-client/internal/backend"
	"github.com/medcampus/medcampus-client/internal/lib/sl"
	"github.com/medcampus/medcampus-client/internal/models"
)

// ErrProfileUnavailable профиль не удалось ни прочитать, ни создать.
// Для вызывающего кода это неотличимо от отсутствия аутентификации.
var ErrProfileUnavailable = errors.New("profile unavailable")

// ProfileStore описывает контракт хранилища профилей на стороне бэкенда.
type ProfileStore interface {
	// ProfileByID возвращает запись профиля или backend.ErrProfileNotFound.
	ProfileByID(ctx context.Context, accessToken, id string) (*models.Profile, error)

	// UpsertProfile создаёт запись, идемпотентно по идентификатору.
	UpsertProfile(ctx context.Context, accessToken string, p models.Profile) error
}

// Materializer отвечает за получение или ленивое создание профиля.
type Materializer struct {
	store      ProfileStore
	retryDelay time.Duration
	log        *slog.Logger
}

// New создаёт материализатор. retryDelay — пауза перед повторным чтением
// после неудачного создания записи.
func New(store ProfileStore, retryDelay time.Duration, log *slog.Logger) *Materializer {
	return &Materializer{
		store:      store,
		retryDelay: retryDelay,
		log:        log,
	}
}

// Materialize возвращает профиль пользователя для учётной записи, создавая
// запись при первом входе. Создаётся не больше одной записи на учётную
// запись: конкурирующий вызов разрешается идемпотентностью upsert на
// стороне хранилища. Ошибки бэкенда наружу не пробрасываются — только
// ErrProfileUnavailable.
func (m *Materializer) Materialize(ctx context.Context, accessToken string, identity models.Identity) (*models.User, error) {
	const op = "profile.Materialize"
	log := m.log.With(sl.Op(op), slog.String("user_id", identity.ID))

	existing, err := m.store.ProfileByID(ctx, accessToken, identity.ID)
	if err == nil {
		return existing.ToUser(), nil
	}
	if !errors.Is(err, backend.ErrProfileNotFound) {
		log.Error("failed to query profile", sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, ErrProfileUnavailable)
	}

	fresh := defaultProfile(identity)
	if err := m.store.UpsertProfile(ctx, accessToken, fresh); err != nil {
		// Запись могла появиться параллельно (другая вкладка, триггер бэкенда) —
		// ждём и перечитываем один раз.
		log.Warn("profile upsert failed, re-reading", sl.Err(err))
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%s: %w", op, ctx.Err())
		case <-time.After(m.retryDelay):
		}

		existing, err = m.store.ProfileByID(ctx, accessToken, identity.ID)
		if err != nil {
			log.Error("profile still missing after retry", sl.Err(err))
			return nil, fmt.Errorf("%s: %w", op, ErrProfileUnavailable)
		}
		return existing.ToUser(), nil
	}

	log.Info("profile created")
	return fresh.ToUser(), nil
}

// defaultProfile собирает запись профиля по умолчанию для новой учётной записи.
func defaultProfile(identity models.Identity) models.Profile {
	role := string(models.RoleStudent)
	if v, ok := identity.Metadata["role"].(string); ok {
		switch models.Role(v) {
		case models.RoleStudent, models.RoleProfessional, models.RoleAdmin:
			role = v
		}
	}

	kyc := string(models.KYCNotSubmitted)
	sub := models.SubscriptionFree
	now := time.Now().UTC().Format(time.RFC3339)

	return models.Profile{
		ID:                 identity.ID,
		Email:              identity.Email,
		DisplayName:        displayName(identity),
		Role:               role,
		KYCStatus:          &kyc,
		SubscriptionStatus: &sub,
		CreatedAt:          &now,
		UpdatedAt:          &now,
	}
}

// displayName выбирает отображаемое имя: метаданные регистрации,
// затем локальная часть почты, затем "User".
func displayName(identity models.Identity) string {
	if v, ok := identity.Metadata["display_name"].(string); ok && v != "" {
		return v
	}
	if v, ok := identity.Metadata["name"].(string); ok && v != "" {
		return v
	}
	if at := strings.IndexByte(identity.Email, '@'); at > 0 {
		return identity.Email[:at]
	}
	return "User"
}
