package session

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medcampus/medcampus-client/internal/backend"
	"github.com/medcampus/medcampus-client/internal/demo"
	"github.com/medcampus/medcampus-client/internal/kvstore"
	"github.com/medcampus/medcampus-client/internal/models"
)

const identityID = "8d6e1b9a-3f3b-4c6e-9a91-2b8c7d5e4f10"

type mockAuth struct {
	SignInFunc  func(ctx context.Context, email, pass string) (*models.Session, *models.Identity, error)
	SignUpFunc  func(ctx context.Context, email, pass string, metadata map[string]any, redirectURL string) (*models.Session, *models.Identity, error)
	SignOutFunc func(ctx context.Context, accessToken string) error
	RefreshFunc func(ctx context.Context, refreshToken string) (*models.Session, *models.Identity, error)
	ResetFunc   func(ctx context.Context, email, redirectURL string) error
}

func (m *mockAuth) SignInWithPassword(ctx context.Context, email, pass string) (*models.Session, *models.Identity, error) {
	return m.SignInFunc(ctx, email, pass)
}

func (m *mockAuth) SignUp(ctx context.Context, email, pass string, metadata map[string]any, redirectURL string) (*models.Session, *models.Identity, error) {
	return m.SignUpFunc(ctx, email, pass, metadata, redirectURL)
}

func (m *mockAuth) SignOut(ctx context.Context, accessToken string) error {
	return m.SignOutFunc(ctx, accessToken)
}

func (m *mockAuth) RefreshSession(ctx context.Context, refreshToken string) (*models.Session, *models.Identity, error) {
	return m.RefreshFunc(ctx, refreshToken)
}

func (m *mockAuth) ResetPasswordForEmail(ctx context.Context, email, redirectURL string) error {
	return m.ResetFunc(ctx, email, redirectURL)
}

type mockMaterializer struct {
	MaterializeFunc func(ctx context.Context, accessToken string, identity models.Identity) (*models.User, error)
}

func (m *mockMaterializer) Materialize(ctx context.Context, accessToken string, identity models.Identity) (*models.User, error) {
	return m.MaterializeFunc(ctx, accessToken, identity)
}

type mockUpdater struct {
	UpdateFunc func(ctx context.Context, accessToken, id string, patch map[string]any) error
}

func (m *mockUpdater) UpdateProfile(ctx context.Context, accessToken, id string, patch map[string]any) error {
	return m.UpdateFunc(ctx, accessToken, id, patch)
}

// discard logger
type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (discardHandler) WithAttrs([]slog.Attr) slog.Handler        { return discardHandler{} }
func (discardHandler) WithGroup(string) slog.Handler             { return discardHandler{} }

func makeLogger() *slog.Logger {
	return slog.New(discardHandler{})
}

func passthroughMaterializer() *mockMaterializer {
	return &mockMaterializer{
		MaterializeFunc: func(_ context.Context, _ string, identity models.Identity) (*models.User, error) {
			return &models.User{ID: identity.ID, Email: identity.Email, Role: models.RoleStudent}, nil
		},
	}
}

func newManager(auth *mockAuth, mat Materializer, store kvstore.Store) *Manager {
	return New(auth, &mockUpdater{
		UpdateFunc: func(context.Context, string, string, map[string]any) error { return nil },
	}, mat, store, "https://app.test/callback", makeLogger())
}

func TestSignInWithEmail_ValidationRejectsBeforeNetwork(t *testing.T) {
	auth := &mockAuth{
		SignInFunc: func(context.Context, string, string) (*models.Session, *models.Identity, error) {
			t.Fatal("SignInWithPassword should not be called")
			return nil, nil, nil
		},
	}
	m := newManager(auth, passthroughMaterializer(), kvstore.NewMemoryStore())

	err := m.SignInWithEmail(context.Background(), "not-an-email", "123")

	require.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), "invalid email format")
	assert.Contains(t, err.Error(), "password too short")
}

func TestSignInWithEmail_DemoPairShortCircuits(t *testing.T) {
	ctx := context.Background()
	store := kvstore.NewMemoryStore()
	auth := &mockAuth{
		SignInFunc: func(context.Context, string, string) (*models.Session, *models.Identity, error) {
			t.Fatal("SignInWithPassword should not be called")
			return nil, nil, nil
		},
	}
	m := newManager(auth, passthroughMaterializer(), store)

	err := m.SignInWithEmail(ctx, "student@example.com", "password")

	require.NoError(t, err)
	snap := m.Snapshot()
	assert.Equal(t, StateAuthenticatedDemo, snap.State)
	assert.Equal(t, models.RoleStudent, snap.User.Role)
	assert.Nil(t, snap.Session)

	marker, ok, err := store.Get(ctx, demo.MarkerKey)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "student", marker)
}

func TestSignInWithEmail_BackendSuccess(t *testing.T) {
	ctx := context.Background()
	store := kvstore.NewMemoryStore()
	auth := &mockAuth{
		SignInFunc: func(_ context.Context, email, _ string) (*models.Session, *models.Identity, error) {
			return &models.Session{AccessToken: "access-123", RefreshToken: "refresh-456"},
				&models.Identity{ID: identityID, Email: email}, nil
		},
	}
	m := newManager(auth, passthroughMaterializer(), store)

	err := m.SignInWithEmail(ctx, "ivanov@medcampus.io", "secret123")

	require.NoError(t, err)
	snap := m.Snapshot()
	assert.Equal(t, StateAuthenticatedBackend, snap.State)
	assert.Equal(t, identityID, snap.User.ID)
	assert.False(t, snap.Loading)

	stored, ok, err := store.Get(ctx, "session")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "refresh-456", stored)
}

func TestSignInWithEmail_ErrorCategories(t *testing.T) {
	tests := []struct {
		name    string
		authErr error
		wantErr error
	}{
		{"invalid credentials", backend.ErrInvalidCredentials, backend.ErrInvalidCredentials},
		{"unconfirmed email", backend.ErrEmailNotConfirmed, backend.ErrEmailNotConfirmed},
		{"network failure", errors.New("connection refused"), ErrAuthUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			auth := &mockAuth{
				SignInFunc: func(context.Context, string, string) (*models.Session, *models.Identity, error) {
					return nil, nil, tt.authErr
				},
			}
			m := newManager(auth, passthroughMaterializer(), kvstore.NewMemoryStore())

			err := m.SignInWithEmail(context.Background(), "ivanov@medcampus.io", "secret123")

			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, StateAnonymous, m.Snapshot().State)
		})
	}
}

func TestSignInWithEmail_ProfileUnavailableEndsAnonymous(t *testing.T) {
	auth := &mockAuth{
		SignInFunc: func(context.Context, string, string) (*models.Session, *models.Identity, error) {
			return &models.Session{AccessToken: "access-123"}, &models.Identity{ID: identityID}, nil
		},
	}
	mat := &mockMaterializer{
		MaterializeFunc: func(context.Context, string, models.Identity) (*models.User, error) {
			return nil, errors.New("profile unavailable")
		},
	}
	m := newManager(auth, mat, kvstore.NewMemoryStore())

	err := m.SignInWithEmail(context.Background(), "ivanov@medcampus.io", "secret123")

	require.Error(t, err)
	snap := m.Snapshot()
	assert.Equal(t, StateAnonymous, snap.State)
	assert.Nil(t, snap.User)
}

func TestSignOut_DemoClearsMarker(t *testing.T) {
	ctx := context.Background()
	store := kvstore.NewMemoryStore()
	m := newManager(&mockAuth{}, passthroughMaterializer(), store)
	require.NoError(t, m.SignInAsDemo(ctx, models.RoleStudent))

	m.SignOut(ctx)

	snap := m.Snapshot()
	assert.Equal(t, StateAnonymous, snap.State)
	assert.Nil(t, snap.User)

	_, ok, err := store.Get(ctx, demo.MarkerKey)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSignOut_AlwaysAnonymousEvenIfBackendFails(t *testing.T) {
	ctx := context.Background()
	store := kvstore.NewMemoryStore()
	auth := &mockAuth{
		SignInFunc: func(context.Context, string, string) (*models.Session, *models.Identity, error) {
			return &models.Session{AccessToken: "access-123", RefreshToken: "refresh-456"},
				&models.Identity{ID: identityID}, nil
		},
		SignOutFunc: func(context.Context, string) error {
			return errors.New("network is down")
		},
	}
	m := newManager(auth, passthroughMaterializer(), store)
	require.NoError(t, m.SignInWithEmail(ctx, "ivanov@medcampus.io", "secret123"))

	m.SignOut(ctx)

	snap := m.Snapshot()
	assert.Equal(t, StateAnonymous, snap.State)
	assert.Nil(t, snap.User)
	assert.Nil(t, snap.Session)

	_, ok, err := store.Get(ctx, "session")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestInit_DemoMarkerRestoresWithoutNetwork(t *testing.T) {
	ctx := context.Background()
	store := kvstore.NewMemoryStore()
	require.NoError(t, store.Set(ctx, demo.MarkerKey, "professional"))

	auth := &mockAuth{
		RefreshFunc: func(context.Context, string) (*models.Session, *models.Identity, error) {
			t.Fatal("RefreshSession should not be called")
			return nil, nil, nil
		},
	}
	m := newManager(auth, passthroughMaterializer(), store)

	m.Init(ctx)

	snap := m.Snapshot()
	assert.Equal(t, StateAuthenticatedDemo, snap.State)
	assert.Equal(t, models.RoleProfessional, snap.User.Role)
	assert.Nil(t, snap.Session)
}

func TestInit_RestoresStoredBackendSession(t *testing.T) {
	ctx := context.Background()
	store := kvstore.NewMemoryStore()
	require.NoError(t, store.Set(ctx, "session", "refresh-456"))

	auth := &mockAuth{
		RefreshFunc: func(_ context.Context, refreshToken string) (*models.Session, *models.Identity, error) {
			require.Equal(t, "refresh-456", refreshToken)
			return &models.Session{AccessToken: "access-123", RefreshToken: "refresh-789"},
				&models.Identity{ID: identityID}, nil
		},
	}
	m := newManager(auth, passthroughMaterializer(), store)

	m.Init(ctx)

	snap := m.Snapshot()
	assert.Equal(t, StateAuthenticatedBackend, snap.State)
	assert.Equal(t, identityID, snap.User.ID)

	stored, _, err := store.Get(ctx, "session")
	require.NoError(t, err)
	assert.Equal(t, "refresh-789", stored)
}

func TestInit_RejectedStoredSessionEndsAnonymous(t *testing.T) {
	ctx := context.Background()
	store := kvstore.NewMemoryStore()
	require.NoError(t, store.Set(ctx, "session", "stale-token"))

	auth := &mockAuth{
		RefreshFunc: func(context.Context, string) (*models.Session, *models.Identity, error) {
			return nil, nil, backend.ErrSessionExpired
		},
	}
	m := newManager(auth, passthroughMaterializer(), store)

	m.Init(ctx)

	assert.Equal(t, StateAnonymous, m.Snapshot().State)
	_, ok, err := store.Get(ctx, "session")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestInit_NothingStoredEndsAnonymous(t *testing.T) {
	m := newManager(&mockAuth{}, passthroughMaterializer(), kvstore.NewMemoryStore())

	m.Init(context.Background())

	snap := m.Snapshot()
	assert.Equal(t, StateAnonymous, snap.State)
	assert.False(t, snap.Loading)
}

func TestSignUpWithEmail_ConfirmationRequired(t *testing.T) {
	auth := &mockAuth{
		SignUpFunc: func(_ context.Context, _, _ string, metadata map[string]any, redirectURL string) (*models.Session, *models.Identity, error) {
			require.Equal(t, "https://app.test/callback", redirectURL)
			require.Equal(t, "student", metadata["role"])
			return nil, &models.Identity{ID: identityID, Email: "new@medcampus.io"}, nil
		},
	}
	m := newManager(auth, passthroughMaterializer(), kvstore.NewMemoryStore())

	confirmationRequired, err := m.SignUpWithEmail(context.Background(), "new@medcampus.io", "secret123",
		map[string]any{"role": "student"})

	require.NoError(t, err)
	assert.True(t, confirmationRequired)
	assert.Equal(t, StateAnonymous, m.Snapshot().State)
}

func TestSignUpWithEmail_ImmediateSession(t *testing.T) {
	auth := &mockAuth{
		SignUpFunc: func(context.Context, string, string, map[string]any, string) (*models.Session, *models.Identity, error) {
			return &models.Session{AccessToken: "access-123"}, &models.Identity{ID: identityID}, nil
		},
	}
	m := newManager(auth, passthroughMaterializer(), kvstore.NewMemoryStore())

	confirmationRequired, err := m.SignUpWithEmail(context.Background(), "new@medcampus.io", "secret123", nil)

	require.NoError(t, err)
	assert.False(t, confirmationRequired)
	assert.Equal(t, StateAuthenticatedBackend, m.Snapshot().State)
}

func TestUpdateCurrentUser_LocalPatchOnly(t *testing.T) {
	m := newManager(&mockAuth{}, passthroughMaterializer(), kvstore.NewMemoryStore())
	require.NoError(t, m.SignInAsDemo(context.Background(), models.RoleStudent))

	m.UpdateCurrentUser(func(u *models.User) {
		u.DisplayName = "Renamed"
		u.ID = "attempted-override"
	})

	snap := m.Snapshot()
	assert.Equal(t, "Renamed", snap.User.DisplayName)
	// идентификатор неизменен
	assert.NotEqual(t, "attempted-override", snap.User.ID)
}

func TestUpdateProfile_ValidatedAndApplied(t *testing.T) {
	ctx := context.Background()
	var gotPatch map[string]any
	updater := &mockUpdater{
		UpdateFunc: func(_ context.Context, accessToken, id string, patch map[string]any) error {
			require.Equal(t, "access-123", accessToken)
			require.Equal(t, identityID, id)
			gotPatch = patch
			return nil
		},
	}
	auth := &mockAuth{
		SignInFunc: func(context.Context, string, string) (*models.Session, *models.Identity, error) {
			return &models.Session{AccessToken: "access-123"}, &models.Identity{ID: identityID}, nil
		},
	}
	m := New(auth, updater, passthroughMaterializer(), kvstore.NewMemoryStore(), "", makeLogger())
	require.NoError(t, m.SignInWithEmail(ctx, "ivanov@medcampus.io", "secret123"))

	err := m.UpdateProfile(ctx, ProfileUpdate{DisplayName: "Dr. Ivanov", Specialty: "Cardiology"})

	require.NoError(t, err)
	assert.Equal(t, "Dr. Ivanov", gotPatch["display_name"])
	assert.Equal(t, "Cardiology", gotPatch["specialty"])
	assert.Equal(t, "Dr. Ivanov", m.Snapshot().User.DisplayName)
}

func TestUpdateProfile_RejectsInvalidPayload(t *testing.T) {
	m := newManager(&mockAuth{}, passthroughMaterializer(), kvstore.NewMemoryStore())

	err := m.UpdateProfile(context.Background(), ProfileUpdate{Role: "superuser"})

	assert.ErrorIs(t, err, ErrValidation)
}

func TestHandleAuthEvent_SignedOut(t *testing.T) {
	ctx := context.Background()
	store := kvstore.NewMemoryStore()
	auth := &mockAuth{
		SignInFunc: func(context.Context, string, string) (*models.Session, *models.Identity, error) {
			return &models.Session{AccessToken: "access-123", RefreshToken: "refresh-456"},
				&models.Identity{ID: identityID}, nil
		},
	}
	m := newManager(auth, passthroughMaterializer(), store)
	require.NoError(t, m.SignInWithEmail(ctx, "ivanov@medcampus.io", "secret123"))

	events := make(chan backend.AuthEvent, 1)
	events <- backend.AuthEvent{Type: backend.EventSignedOut}
	close(events)
	m.Run(ctx, events)

	assert.Equal(t, StateAnonymous, m.Snapshot().State)
	_, ok, err := store.Get(ctx, "session")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSubscribe_ReceivesCurrentAndSubsequentSnapshots(t *testing.T) {
	m := newManager(&mockAuth{}, passthroughMaterializer(), kvstore.NewMemoryStore())

	var states []State
	m.Subscribe(func(s Snapshot) { states = append(states, s.State) })

	require.NoError(t, m.SignInAsDemo(context.Background(), models.RoleStudent))

	require.GreaterOrEqual(t, len(states), 2)
	assert.Equal(t, StateInitializing, states[0])
	assert.Equal(t, StateAuthenticatedDemo, states[len(states)-1])
}

func TestResetPassword(t *testing.T) {
	var gotEmail string
	auth := &mockAuth{
		ResetFunc: func(_ context.Context, email, _ string) error {
			gotEmail = email
			return nil
		},
	}
	m := newManager(auth, passthroughMaterializer(), kvstore.NewMemoryStore())

	require.NoError(t, m.ResetPassword(context.Background(), "ivanov@medcampus.io"))
	assert.Equal(t, "ivanov@medcampus.io", gotEmail)

	err := m.ResetPassword(context.Background(), "not-an-email")
	assert.ErrorIs(t, err, ErrValidation)
}
