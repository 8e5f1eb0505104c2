// Package models содержит доменные модели клиентского ядра:
// пользователя, сессию, учётную запись бэкенда и зеркальную запись профиля.
// Структуры используются в бизнес‑логике и при обмене с внешним сервисом.
package models

import "time"

// Role роль пользователя платформы.
type Role string

// Допустимые роли. Роль назначается один раз при создании профиля
// и далее меняется только явным редактированием профиля.
const (
	RoleStudent      Role = "student"
	RoleProfessional Role = "professional"
	RoleAdmin        Role = "admin"
)

// KYCStatus статус верификации пользователя.
type KYCStatus string

// Состояния верификации.
const (
	KYCNotSubmitted KYCStatus = "not_submitted"
	KYCPending      KYCStatus = "pending"
	KYCVerified     KYCStatus = "verified"
	KYCRejected     KYCStatus = "rejected"
)

// Статусы подписки пользователя на платформе.
const (
	SubscriptionFree    = "free"
	SubscriptionPremium = "premium"
	SubscriptionTrial   = "trial"
)

// User клиентская проекция профиля пользователя.
//
// Поле ID неизменно и всегда совпадает с идентификатором учётной записи,
// выданным внешним сервисом аутентификации.
type User struct {
	ID                 string     // Идентификатор, равный id учётной записи бэкенда
	Email              string     // Электронная почта
	DisplayName        string     // Отображаемое имя
	Role               Role       // Роль: student, professional или admin
	KYCStatus          KYCStatus  // Статус верификации
	ProfileImage       string     // URL аватара, пустая строка если не задан
	University         string     // Университет (для студентов)
	Specialty          string     // Специальность (для врачей)
	SubscriptionStatus string     // Статус подписки: free, premium, trial
	SubscriptionExpiry *time.Time // Дата истечения подписки, nil если бессрочно/нет
	CreatedAt          time.Time  // Дата создания профиля
	UpdatedAt          time.Time  // Дата последнего обновления профиля
	IsDemo             bool       // Локальный демо-пользователь без учётной записи бэкенда
}

// Identity учётная запись, выданная внешним сервисом аутентификации.
// Не содержит данных профиля — только идентификатор, почту и метаданные регистрации.
type Identity struct {
	ID       string
	Email    string
	Metadata map[string]any
}

// Session непрозрачный набор учётных данных, выданный бэкендом.
// Для демо-пользователей сессия отсутствует (nil).
type Session struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	ExpiresAt    time.Time
}

// Profile зеркало строки таблицы profiles на стороне бэкенда.
// Nullable-колонки приходят указателями, даты — строками в формате RFC3339.
type Profile struct {
	ID                 string  `json:"id" validate:"required,uuid"`
	Email              string  `json:"email"`
	DisplayName        string  `json:"display_name"`
	Role               string  `json:"role"`
	KYCStatus          *string `json:"kyc_status"`
	ProfileImage       *string `json:"profile_image"`
	University         *string `json:"university"`
	Specialty          *string `json:"specialty"`
	SubscriptionStatus *string `json:"subscription_status"`
	SubscriptionExpiry *string `json:"subscription_expiry"`
	CreatedAt          *string `json:"created_at"`
	UpdatedAt          *string `json:"updated_at"`
}
