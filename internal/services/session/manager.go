// Package session реализует состояние аутентификации клиентского ядра:
// машину состояний сессии, операции входа, регистрации и выхода,
// и подписку наблюдателей на изменения состояния.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/medcampus/medcampus-client/internal/backend"
	"github.com/medcampus/medcampus-client/internal/demo"
	"github.com/medcampus/medcampus-client/internal/kvstore"
	"github.com/medcampus/medcampus-client/internal/lib/sl"
	"github.com/medcampus/medcampus-client/internal/models"
	"github.com/medcampus/medcampus-client/internal/services/profile"
	"github.com/medcampus/medcampus-client/internal/validation"
)

// State состояние машины аутентификации.
type State string

// Состояния машины. Флаг loading ортогонален им и выставляется на время
// переходов с сетевыми вызовами.
const (
	StateInitializing         State = "initializing"
	StateAnonymous            State = "anonymous"
	StateAuthenticatedDemo    State = "authenticated_demo"
	StateAuthenticatedBackend State = "authenticated_backend"
)

// sessionKey ключ локального хранилища с refresh-токеном для восстановления
// сессии после перезапуска.
const sessionKey = "session"

// Ошибки, которые менеджер отдаёт вызывающему коду. Сырые ошибки бэкенда
// за пределы пакета не выходят.
var (
	// ErrValidation учётные данные не прошли локальную проверку.
	ErrValidation = errors.New("validation failed")

	// ErrAuthUnavailable сбой сети или неизвестная ошибка сервиса аутентификации.
	ErrAuthUnavailable = errors.New("authentication service unavailable")
)

// AuthAPI операции внешнего сервиса аутентификации, используемые менеджером.
type AuthAPI interface {
	SignInWithPassword(ctx context.Context, email, pass string) (*models.Session, *models.Identity, error)
	SignUp(ctx context.Context, email, pass string, metadata map[string]any, redirectURL string) (*models.Session, *models.Identity, error)
	SignOut(ctx context.Context, accessToken string) error
	RefreshSession(ctx context.Context, refreshToken string) (*models.Session, *models.Identity, error)
	ResetPasswordForEmail(ctx context.Context, email, redirectURL string) error
}

// Materializer превращает учётную запись бэкенда в профиль пользователя.
type Materializer interface {
	Materialize(ctx context.Context, accessToken string, identity models.Identity) (*models.User, error)
}

// ProfileUpdater частичное обновление записи профиля на бэкенде.
type ProfileUpdater interface {
	UpdateProfile(ctx context.Context, accessToken, id string, patch map[string]any) error
}

// Snapshot наблюдаемое состояние для UI-слоя.
type Snapshot struct {
	State   State
	User    *models.User
	Session *models.Session
	Loading bool
}

// Manager машина состояний аутентификации. Все переходы сериализованы
// мьютексом; публичные методы не паникуют и не возвращают сырых ошибок
// бэкенда. Любой невосстановимый сбой аутентификации заканчивается
// состоянием Anonymous.
type Manager struct {
	auth         AuthAPI
	data         ProfileUpdater
	materializer Materializer
	store        kvstore.Store
	redirectURL  string
	log          *slog.Logger

	mu          sync.Mutex
	state       State
	user        *models.User
	session     *models.Session
	loading     bool
	subscribers []func(Snapshot)
}

// New создаёт менеджер в состоянии Initializing.
func New(auth AuthAPI, data ProfileUpdater, materializer Materializer, store kvstore.Store, redirectURL string, log *slog.Logger) *Manager {
	return &Manager{
		auth:         auth,
		data:         data,
		materializer: materializer,
		store:        store,
		redirectURL:  redirectURL,
		log:          log,
		state:        StateInitializing,
		loading:      true,
	}
}

// Init восстанавливает сессию при старте: сначала демо-маркер в локальном
// хранилище (без сетевых вызовов), затем сохранённая сессия бэкенда.
// При любой неудаче состояние становится Anonymous.
func (m *Manager) Init(ctx context.Context) {
	const op = "session.Init"
	log := m.log.With(sl.Op(op))

	userType, ok, err := demo.LoadMarker(ctx, m.store)
	if err != nil {
		log.Warn("failed to read demo marker", sl.Err(err))
	}
	if ok {
		if u := demo.User(userType); u != nil {
			m.setDemo(u)
			return
		}
		// битый маркер — вычищаем и идём обычным путём
		log.Warn("unknown demo marker value", slog.String("value", string(userType)))
		_ = demo.ClearMarker(ctx, m.store)
	}

	refreshToken, ok, err := m.store.Get(ctx, sessionKey)
	if err != nil || !ok {
		m.setAnonymous()
		return
	}

	sess, identity, err := m.auth.RefreshSession(ctx, refreshToken)
	if err != nil {
		log.Warn("stored session rejected", sl.Err(err))
		_ = m.store.Delete(ctx, sessionKey)
		m.setAnonymous()
		return
	}
	if err := m.completeBackendSignIn(ctx, sess, identity); err != nil {
		log.Warn("failed to restore session", sl.Err(err))
	}
}

// SignInWithEmail выполняет вход по email и паролю. Проверка учётных данных
// выполняется до любого сетевого вызова; демо-пара коротко замыкается на
// демо-пользователя без обращения к бэкенду.
func (m *Manager) SignInWithEmail(ctx context.Context, email, pass string) error {
	const op = "session.SignInWithEmail"
	log := m.log.With(sl.Op(op))

	if res := validation.ValidateCredentials(email, pass); !res.Valid {
		return fmt.Errorf("%w: %s", ErrValidation, strings.Join(res.Errors, ", "))
	}

	if demo.IsDemoAccount(email, pass) {
		return m.SignInAsDemo(ctx, demo.UserType(email))
	}

	m.setLoading(true)
	defer m.setLoading(false)

	sess, identity, err := m.auth.SignInWithPassword(ctx, email, pass)
	if err != nil {
		log.Error("sign-in failed", sl.Err(err))
		m.setAnonymous()
		switch {
		case errors.Is(err, backend.ErrInvalidCredentials):
			return backend.ErrInvalidCredentials
		case errors.Is(err, backend.ErrEmailNotConfirmed):
			return backend.ErrEmailNotConfirmed
		default:
			return ErrAuthUnavailable
		}
	}
	return m.completeBackendSignIn(ctx, sess, identity)
}

// SignUpWithEmail регистрирует пользователя. Если провайдер требует
// подтверждения почты, возвращается confirmationRequired=true и состояние
// остаётся Anonymous.
func (m *Manager) SignUpWithEmail(ctx context.Context, email, pass string, metadata map[string]any) (confirmationRequired bool, err error) {
	const op = "session.SignUpWithEmail"
	log := m.log.With(sl.Op(op))

	if res := validation.ValidateCredentials(email, pass); !res.Valid {
		return false, fmt.Errorf("%w: %s", ErrValidation, strings.Join(res.Errors, ", "))
	}

	m.setLoading(true)
	defer m.setLoading(false)

	sess, identity, err := m.auth.SignUp(ctx, email, pass, metadata, m.redirectURL)
	if err != nil {
		log.Error("sign-up failed", sl.Err(err))
		m.setAnonymous()
		return false, ErrAuthUnavailable
	}
	if sess == nil {
		// учётная запись создана, ждём подтверждения по почте
		m.setAnonymous()
		return true, nil
	}
	return false, m.completeBackendSignIn(ctx, sess, identity)
}

// SignInAsDemo входит демо-пользователем указанного типа без обращения
// к бэкенду и сохраняет маркер для восстановления после перезапуска.
func (m *Manager) SignInAsDemo(ctx context.Context, userType models.Role) error {
	const op = "session.SignInAsDemo"

	u := demo.User(userType)
	if u == nil {
		return fmt.Errorf("%w: unknown demo user type %q", ErrValidation, userType)
	}
	if err := demo.SaveMarker(ctx, m.store, userType); err != nil {
		// без маркера демо-сессия не переживёт перезапуск, но вход состоится
		m.log.With(sl.Op(op)).Warn("failed to persist demo marker", sl.Err(err))
	}
	m.setDemo(u)
	return nil
}

// SignOut завершает сессию. Состояние становится Anonymous безусловно,
// даже если вызов бэкенда завершился ошибкой: локальное состояние никогда
// не остаётся «авторизованным» после запроса на выход.
func (m *Manager) SignOut(ctx context.Context) {
	const op = "session.SignOut"
	log := m.log.With(sl.Op(op))

	m.mu.Lock()
	state, sess := m.state, m.session
	m.mu.Unlock()

	switch state {
	case StateAuthenticatedDemo:
		if err := demo.ClearMarker(ctx, m.store); err != nil {
			log.Warn("failed to clear demo marker", sl.Err(err))
		}
	case StateAuthenticatedBackend:
		if sess != nil {
			if err := m.auth.SignOut(ctx, sess.AccessToken); err != nil {
				log.Warn("backend sign-out failed", sl.Err(err))
			}
		}
		if err := m.store.Delete(ctx, sessionKey); err != nil {
			log.Warn("failed to drop stored session", sl.Err(err))
		}
	}
	m.setAnonymous()
}

// ResetPassword запрашивает письмо для сброса пароля.
func (m *Manager) ResetPassword(ctx context.Context, email string) error {
	const op = "session.ResetPassword"

	if res := validation.ValidateEmail(email); !res.Valid {
		return fmt.Errorf("%w: %s", ErrValidation, strings.Join(res.Errors, ", "))
	}
	if err := m.auth.ResetPasswordForEmail(ctx, email, m.redirectURL); err != nil {
		m.log.With(sl.Op(op)).Error("reset password request failed", sl.Err(err))
		return ErrAuthUnavailable
	}
	return nil
}

// UpdateCurrentUser локально правит кэшированного пользователя, не обращаясь
// к бэкенду. Используется после точечных обновлений профиля, чтобы не делать
// полную повторную загрузку.
func (m *Manager) UpdateCurrentUser(apply func(*models.User)) {
	m.mu.Lock()
	if m.user == nil {
		m.mu.Unlock()
		return
	}
	patched := *m.user
	apply(&patched)
	// идентификатор неизменен по инварианту
	patched.ID = m.user.ID
	m.user = &patched
	m.mu.Unlock()
	m.notify()
}

// ProfileUpdate проверяемая форма редактирования профиля.
type ProfileUpdate struct {
	DisplayName  string `json:"display_name,omitempty" validate:"omitempty,max=100"`
	Role         string `json:"role,omitempty" validate:"omitempty,oneof=student professional admin"`
	ProfileImage string `json:"profile_image,omitempty" validate:"omitempty,url"`
	University   string `json:"university,omitempty" validate:"omitempty,max=200"`
	Specialty    string `json:"specialty,omitempty" validate:"omitempty,max=200"`
}

// UpdateProfile отправляет проверенное обновление профиля на бэкенд и
// применяет его к локальной копии пользователя. Доступно только в состоянии
// AuthenticatedBackend: демо-пользователь не синхронизируется с бэкендом.
func (m *Manager) UpdateProfile(ctx context.Context, upd ProfileUpdate) error {
	const op = "session.UpdateProfile"
	log := m.log.With(sl.Op(op))

	if err := validation.ValidateStruct(upd); err != nil {
		return fmt.Errorf("%w: %s", ErrValidation, err)
	}

	m.mu.Lock()
	state, sess, user := m.state, m.session, m.user
	m.mu.Unlock()
	if state != StateAuthenticatedBackend || sess == nil || user == nil {
		return fmt.Errorf("%w: not signed in", ErrValidation)
	}

	patch := map[string]any{}
	if upd.DisplayName != "" {
		patch["display_name"] = upd.DisplayName
	}
	if upd.Role != "" {
		patch["role"] = upd.Role
	}
	if upd.ProfileImage != "" {
		patch["profile_image"] = upd.ProfileImage
	}
	if upd.University != "" {
		patch["university"] = upd.University
	}
	if upd.Specialty != "" {
		patch["specialty"] = upd.Specialty
	}
	if len(patch) == 0 {
		return nil
	}

	if err := m.data.UpdateProfile(ctx, sess.AccessToken, user.ID, patch); err != nil {
		log.Error("profile update failed", sl.Err(err))
		return ErrAuthUnavailable
	}

	m.UpdateCurrentUser(func(u *models.User) {
		if upd.DisplayName != "" {
			u.DisplayName = upd.DisplayName
		}
		if upd.Role != "" {
			u.Role = models.Role(upd.Role)
		}
		if upd.ProfileImage != "" {
			u.ProfileImage = upd.ProfileImage
		}
		if upd.University != "" {
			u.University = upd.University
		}
		if upd.Specialty != "" {
			u.Specialty = upd.Specialty
		}
	})
	return nil
}

// Run обрабатывает события канала аутентификации по одному, в порядке
// доставки, до отмены контекста или закрытия канала.
func (m *Manager) Run(ctx context.Context, events <-chan backend.AuthEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			m.handleAuthEvent(ctx, ev)
		}
	}
}

// handleAuthEvent реагирует на событие, инициированное вне этого процесса:
// вход из другой вкладки, обновление токена, выход. Повторное событие входа
// для той же учётной записи сводится к обновлению профиля.
func (m *Manager) handleAuthEvent(ctx context.Context, ev backend.AuthEvent) {
	const op = "session.handleAuthEvent"
	log := m.log.With(sl.Op(op), slog.String("event", string(ev.Type)))

	switch ev.Type {
	case backend.EventSignedOut:
		if err := m.store.Delete(ctx, sessionKey); err != nil {
			log.Warn("failed to drop stored session", sl.Err(err))
		}
		m.setAnonymous()

	case backend.EventSignedIn, backend.EventTokenRefreshed:
		identity, expiresAt, err := backend.ParseAccessToken(ev.AccessToken)
		if err != nil {
			log.Warn("unreadable access token in auth event", sl.Err(err))
			return
		}
		sess := &models.Session{
			AccessToken: ev.AccessToken,
			TokenType:   "bearer",
			ExpiresAt:   expiresAt,
		}
		if err := m.completeBackendSignIn(ctx, sess, identity); err != nil {
			log.Warn("failed to apply auth event", sl.Err(err))
		}
	default:
		log.Debug("ignoring unknown auth event")
	}
}

// Subscribe регистрирует наблюдателя и сразу вызывает его с текущим
// снимком состояния.
func (m *Manager) Subscribe(fn func(Snapshot)) {
	m.mu.Lock()
	m.subscribers = append(m.subscribers, fn)
	m.mu.Unlock()
	fn(m.Snapshot())
}

// Snapshot возвращает текущее наблюдаемое состояние.
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Snapshot{
		State:   m.state,
		User:    m.user,
		Session: m.session,
		Loading: m.loading,
	}
}

// completeBackendSignIn материализует профиль и переводит машину в
// AuthenticatedBackend. Недоступность профиля неотличима от отсутствия
// аутентификации: состояние становится Anonymous.
func (m *Manager) completeBackendSignIn(ctx context.Context, sess *models.Session, identity *models.Identity) error {
	user, err := m.materializer.Materialize(ctx, sess.AccessToken, *identity)
	if err != nil || user == nil {
		m.setAnonymous()
		return profile.ErrProfileUnavailable
	}

	m.mu.Lock()
	if sess.RefreshToken == "" && m.session != nil && m.user != nil && m.user.ID == user.ID {
		// событие без refresh-токена не должно терять сохранённый
		sess.RefreshToken = m.session.RefreshToken
	}
	m.state = StateAuthenticatedBackend
	m.user = user
	m.session = sess
	m.loading = false
	m.mu.Unlock()

	if sess.RefreshToken != "" {
		if err := m.store.Set(ctx, sessionKey, sess.RefreshToken); err != nil {
			m.log.Warn("failed to persist session", sl.Err(err))
		}
	}
	m.notify()
	return nil
}

func (m *Manager) setDemo(u *models.User) {
	m.mu.Lock()
	m.state = StateAuthenticatedDemo
	m.user = u
	m.session = nil // демо-сессия намеренно не имеет учётных данных бэкенда
	m.loading = false
	m.mu.Unlock()
	m.notify()
}

func (m *Manager) setAnonymous() {
	m.mu.Lock()
	m.state = StateAnonymous
	m.user = nil
	m.session = nil
	m.loading = false
	m.mu.Unlock()
	m.notify()
}

func (m *Manager) setLoading(v bool) {
	m.mu.Lock()
	m.loading = v
	m.mu.Unlock()
	m.notify()
}

// notify вызывает наблюдателей вне мьютекса, чтобы они могли читать Snapshot.
func (m *Manager) notify() {
	m.mu.Lock()
	subs := make([]func(Snapshot), len(m.subscribers))
	copy(subs, m.subscribers)
	m.mu.Unlock()

	snap := m.Snapshot()
	for _, fn := range subs {
		fn(snap)
	}
}
