package client

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"mytask/internal/domain/errors"
	"mytask/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockAuthenticator struct {
	mock.Mock
}

func (m *MockAuthenticator) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	args := m.Called(ctx, req)
	resp, _ := args.Get(0).(*models.LoginResponse)
	return resp, args.Error(1)
}

func (m *MockAuthenticator) Register(ctx context.Context, req models.RegisterRequest) error {
	args := m.Called(ctx, req)
	return args.Error(0)
}

func TestSessionLifecycle(t *testing.T) {
	api := &MockAuthenticator{}
	api.On("Login", mock.Anything, models.LoginRequest{Email: "ada@example.com", Password: "secret123"}).
		Return(&models.LoginResponse{Token: "tok", User: models.PublicUser{ID: "u1", Name: "Ada", Email: "ada@example.com"}}, nil)

	session := NewSession(NewMemoryStore(), api)
	assert.False(t, session.IsAuthenticated())

	resp, err := session.Login(context.Background(), "ada@example.com", "secret123")
	require.NoError(t, err)
	assert.Equal(t, "tok", resp.Token)
	assert.True(t, session.IsAuthenticated())
	assert.Equal(t, "tok", session.Token())
	assert.Equal(t, "Ada", session.UserName())

	require.NoError(t, session.Logout())
	assert.False(t, session.IsAuthenticated())
	assert.Empty(t, session.Token())
	assert.Empty(t, session.UserName())
	api.AssertExpectations(t)
}

func TestSessionLoginFailureStoresNothing(t *testing.T) {
	api := &MockAuthenticator{}
	api.On("Login", mock.Anything, mock.Anything).Return(nil, errors.InvalidCredentials())

	session := NewSession(NewMemoryStore(), api)
	_, err := session.Login(context.Background(), "ada@example.com", "wrong-password")
	assert.Equal(t, errors.KindInvalidCredentials, errors.KindOf(err))
	assert.False(t, session.IsAuthenticated())
}

func TestSessionRegisterDoesNotAuthenticate(t *testing.T) {
	api := &MockAuthenticator{}
	req := models.RegisterRequest{Name: "Ada", Email: "ada@example.com", Password: "secret123"}
	api.On("Register", mock.Anything, req).Return(nil)

	session := NewSession(NewMemoryStore(), api)
	require.NoError(t, session.Register(context.Background(), req.Name, req.Email, req.Password))
	assert.False(t, session.IsAuthenticated())
	api.AssertExpectations(t)
}

func TestSessionPresenceOnly(t *testing.T) {
	store := NewMemoryStore()
	session := NewSession(store, &MockAuthenticator{})

	require.NoError(t, store.Set(keyToken, "not-even-a-jwt"))
	assert.True(t, session.IsAuthenticated())

	require.NoError(t, session.Demo())
	assert.True(t, session.IsAuthenticated())
	assert.Equal(t, DemoToken, session.Token())
	assert.Equal(t, DemoUserName, session.UserName())
}

func TestFileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "session.json")
	store := NewFileStore(path)

	_, ok, err := store.Get(keyToken)
	require.NoError(t, err)
	assert.False(t, ok, "missing file reads as empty")

	require.NoError(t, store.Set(keyToken, "tok"))
	require.NoError(t, store.Set(keyUserName, "Ada"))

	reopened := NewSession(NewFileStore(path), nil)
	assert.True(t, reopened.IsAuthenticated(), "survives a new process")
	assert.Equal(t, "Ada", reopened.UserName())

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	require.NoError(t, reopened.Logout())
	_, ok, err = store.Get(keyToken)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFileStoreCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(path, []byte("{broken"), 0o600))

	store := NewFileStore(path)
	_, _, err := store.Get(keyToken)
	assert.Error(t, err)
	assert.Error(t, store.Set(keyToken, "tok"))

	session := NewSession(store, nil)
	assert.False(t, session.IsAuthenticated())
	assert.Empty(t, session.Token())
}

func TestSessionAgainstServer(t *testing.T) {
	srv := newTestServer(t)
	store := NewFileStore(filepath.Join(t.TempDir(), "session.json"))
	api := NewAPIClient(srv.URL, store)
	session := NewSession(store, api)
	ctx := context.Background()

	require.NoError(t, session.Register(ctx, "Ada", "ada@example.com", "secret123"))
	assert.False(t, session.IsAuthenticated())

	err := session.Register(ctx, "Ada", "ADA@example.com", "secret123")
	assert.Equal(t, errors.KindValidation, errors.KindOf(err))
	assert.Equal(t, "User already exists", errors.MessageOf(err))

	_, err = session.Login(ctx, "ada@example.com", "secret123")
	require.NoError(t, err)
	assert.True(t, session.IsAuthenticated())

	tasks, err := api.GetTasks(ctx)
	require.NoError(t, err)
	assert.Empty(t, tasks)

	require.NoError(t, session.Logout())
	assert.False(t, session.IsAuthenticated())
	_, err = api.GetTasks(ctx)
	assert.Equal(t, errors.KindUnauthorized, errors.KindOf(err))

	// The demo token is present, so the session reports authenticated until
	// the server refuses it.
	require.NoError(t, session.Demo())
	assert.True(t, session.IsAuthenticated())
	_, err = api.GetTasks(ctx)
	assert.Equal(t, errors.KindUnauthorized, errors.KindOf(err))
	assert.Equal(t, "Invalid token", errors.MessageOf(err))
}
