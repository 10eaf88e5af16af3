package client

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"mytask/internal/domain/models"
)

const (
	keyToken    = "userToken"
	keyUserName = "userName"

	DemoToken    = "demo-token"
	DemoUserName = "Demo User"
)

// KeyValueStore is the durable client-side storage the session lives in.
type KeyValueStore interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Delete(keys ...string) error
}

// Authenticator is the part of the API the session needs.
type Authenticator interface {
	Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error)
	Register(ctx context.Context, req models.RegisterRequest) error
}

type Session struct {
	store KeyValueStore
	api   Authenticator
}

func NewSession(store KeyValueStore, api Authenticator) *Session {
	return &Session{store: store, api: api}
}

// Login authenticates against the API and persists the token and display name.
func (s *Session) Login(ctx context.Context, email, password string) (*models.LoginResponse, error) {
	resp, err := s.api.Login(ctx, models.LoginRequest{Email: email, Password: password})
	if err != nil {
		return nil, err
	}
	if err := s.store.Set(keyToken, resp.Token); err != nil {
		return nil, err
	}
	if err := s.store.Set(keyUserName, resp.User.Name); err != nil {
		return nil, err
	}
	return resp, nil
}

// Register creates the account. It does not sign the user in.
func (s *Session) Register(ctx context.Context, name, email, password string) error {
	return s.api.Register(ctx, models.RegisterRequest{Name: name, Email: email, Password: password})
}

// Demo stores the demo credentials without contacting the server.
func (s *Session) Demo() error {
	if err := s.store.Set(keyToken, DemoToken); err != nil {
		return err
	}
	return s.store.Set(keyUserName, DemoUserName)
}

func (s *Session) Logout() error {
	return s.store.Delete(keyToken, keyUserName)
}

// IsAuthenticated only checks that a token is stored; it is never validated
// locally, so an expired token still counts until the server rejects it.
func (s *Session) IsAuthenticated() bool {
	_, ok, err := s.store.Get(keyToken)
	return err == nil && ok
}

func (s *Session) Token() string {
	return storedToken(s.store)
}

func (s *Session) UserName() string {
	name, _, _ := s.store.Get(keyUserName)
	return name
}

func storedToken(store KeyValueStore) string {
	if store == nil {
		return ""
	}
	token, _, _ := store.Get(keyToken)
	return token
}

type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

func (m *MemoryStore) Get(key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *MemoryStore) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *MemoryStore) Delete(keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.values, k)
	}
	return nil
}

// FileStore keeps the session as a JSON object in a single file. Every write
// replaces the file through a rename so a crash never leaves it half written.
type FileStore struct {
	mu   sync.Mutex
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// DefaultSessionPath is ~/.mytask/session.json, or a relative path when the
// home directory cannot be resolved.
func DefaultSessionPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".mytask", "session.json")
	}
	return filepath.Join(home, ".mytask", "session.json")
}

func (f *FileStore) Get(key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	values, err := f.load()
	if err != nil {
		return "", false, err
	}
	v, ok := values[key]
	return v, ok, nil
}

func (f *FileStore) Set(key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	values, err := f.load()
	if err != nil {
		return err
	}
	values[key] = value
	return f.save(values)
}

func (f *FileStore) Delete(keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	values, err := f.load()
	if err != nil {
		return err
	}
	for _, k := range keys {
		delete(values, k)
	}
	return f.save(values)
}

func (f *FileStore) load() (map[string]string, error) {
	values := make(map[string]string)
	raw, err := os.ReadFile(f.path)
	if stderrors.Is(err, fs.ErrNotExist) {
		return values, nil
	}
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return values, nil
	}
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil, err
	}
	return values, nil
}

func (f *FileStore) save(values map[string]string) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return err
	}
	raw, err := json.MarshalIndent(values, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".session-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), f.path)
}
