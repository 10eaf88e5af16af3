package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"mytask/internal/domain/errors"
	"mytask/internal/domain/models"

	"github.com/google/uuid"
)

// Storage keeps users and tasks in process memory. It satisfies the same
// store interfaces as the PostgreSQL backend.
type Storage struct {
	mu    sync.RWMutex
	users map[string]models.User
	tasks map[string]models.Task
	now   func() time.Time
}

func NewStorage() *Storage {
	return &Storage{
		users: make(map[string]models.User),
		tasks: make(map[string]models.Task),
		now:   time.Now,
	}
}

func (s *Storage) CreateUser(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.users {
		if strings.EqualFold(existing.Email, user.Email) {
			return errors.ErrUserAlreadyExists
		}
	}
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	now := s.now()
	user.CreatedAt = now
	user.UpdatedAt = now
	s.users[user.ID] = *user
	return nil
}

func (s *Storage) GetUserByID(_ context.Context, id string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, exists := s.users[id]
	if !exists {
		return nil, errors.ErrUserNotFound
	}
	return &user, nil
}

func (s *Storage) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, user := range s.users {
		if strings.EqualFold(user.Email, email) {
			return &user, nil
		}
	}
	return nil, errors.ErrUserNotFound
}

func (s *Storage) FindByOwner(_ context.Context, ownerID string) ([]models.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tasks := []models.Task{}
	for _, t := range s.tasks {
		if t.Owner == ownerID {
			tasks = append(tasks, t)
		}
	}
	sort.SliceStable(tasks, func(i, j int) bool {
		if tasks[i].DueDate.Equal(tasks[j].DueDate) {
			return tasks[i].CreatedAt.Before(tasks[j].CreatedAt)
		}
		return tasks[i].DueDate.Before(tasks[j].DueDate)
	})
	return tasks, nil
}

func (s *Storage) FindOne(_ context.Context, id, ownerID string) (*models.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	task, exists := s.tasks[id]
	if !exists || task.Owner != ownerID {
		return nil, errors.ErrNotFound
	}
	return &task, nil
}

func (s *Storage) Insert(_ context.Context, task *models.Task) (*models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *task
	stored.ID = uuid.New().String()
	now := s.now()
	stored.CreatedAt = now
	stored.UpdatedAt = now
	s.tasks[stored.ID] = stored
	return &stored, nil
}

// Save overwrites the record identified by (task.ID, task.Owner). Owner and
// creation time are taken from the stored record, never from the argument.
func (s *Storage) Save(_ context.Context, task *models.Task) (*models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.tasks[task.ID]
	if !exists || existing.Owner != task.Owner {
		return nil, errors.ErrNotFound
	}
	stored := *task
	stored.Owner = existing.Owner
	stored.CreatedAt = existing.CreatedAt
	stored.UpdatedAt = s.now()
	s.tasks[stored.ID] = stored
	return &stored, nil
}

func (s *Storage) Remove(_ context.Context, id, ownerID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, exists := s.tasks[id]
	if !exists || task.Owner != ownerID {
		return false, nil
	}
	delete(s.tasks, id)
	return true, nil
}
