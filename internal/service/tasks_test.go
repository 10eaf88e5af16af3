package service

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"mytask/internal/domain/errors"
	"mytask/internal/domain/models"
	"mytask/internal/logger"
	storage "mytask/repository/inmemory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockTaskStore struct {
	mock.Mock
}

func (m *MockTaskStore) FindByOwner(ctx context.Context, ownerID string) ([]models.Task, error) {
	args := m.Called(ctx, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Task), args.Error(1)
}

func (m *MockTaskStore) FindOne(ctx context.Context, id, ownerID string) (*models.Task, error) {
	args := m.Called(ctx, id, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Task), args.Error(1)
}

func (m *MockTaskStore) Insert(ctx context.Context, task *models.Task) (*models.Task, error) {
	args := m.Called(ctx, task)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Task), args.Error(1)
}

func (m *MockTaskStore) Save(ctx context.Context, task *models.Task) (*models.Task, error) {
	args := m.Called(ctx, task)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Task), args.Error(1)
}

func (m *MockTaskStore) Remove(ctx context.Context, id, ownerID string) (bool, error) {
	args := m.Called(ctx, id, ownerID)
	return args.Bool(0), args.Error(1)
}

var (
	alice = models.Identity{UserID: "alice-id", UserName: "Alice"}
	bob   = models.Identity{UserID: "bob-id", UserName: "Bob"}
)

func ptr[T any](v T) *T { return &v }

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 10, 0, 0, 0, time.UTC)
}

func newTestService() *TaskService {
	return NewTaskService(storage.NewStorage(), logger.Discard())
}

func TestTaskServiceCreate(t *testing.T) {
	fixed := day(2024, 5, 1)

	tests := []struct {
		name string
		req  models.CreateTaskRequest
		want struct {
			kind        errors.Kind
			title       string
			description string
			due         time.Time
		}
	}{
		{
			name: "full request",
			req:  models.CreateTaskRequest{Title: "  Write report ", Description: "Q2", DueDate: ptr(day(2024, 6, 1))},
			want: struct {
				kind        errors.Kind
				title       string
				description string
				due         time.Time
			}{title: "Write report", description: "Q2", due: day(2024, 6, 1)},
		},
		{
			name: "due date defaults to now",
			req:  models.CreateTaskRequest{Title: "Call Bob"},
			want: struct {
				kind        errors.Kind
				title       string
				description string
				due         time.Time
			}{title: "Call Bob", due: fixed},
		},
		{
			name: "empty title",
			req:  models.CreateTaskRequest{Title: ""},
			want: struct {
				kind        errors.Kind
				title       string
				description string
				due         time.Time
			}{kind: errors.KindValidation},
		},
		{
			name: "whitespace title",
			req:  models.CreateTaskRequest{Title: " \t\n "},
			want: struct {
				kind        errors.Kind
				title       string
				description string
				due         time.Time
			}{kind: errors.KindValidation},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestService()
			svc.now = func() time.Time { return fixed }
			ctx := context.Background()

			task, err := svc.Create(ctx, alice, tt.req)

			if tt.want.kind != "" {
				require.Error(t, err)
				assert.Equal(t, tt.want.kind, errors.KindOf(err))

				tasks, err := svc.List(ctx, alice)
				require.NoError(t, err)
				assert.Empty(t, tasks, "nothing may be persisted on validation failure")
				return
			}

			require.NoError(t, err)
			assert.NotEmpty(t, task.ID)
			assert.Equal(t, tt.want.title, task.Title)
			assert.Equal(t, tt.want.description, task.Description)
			assert.True(t, tt.want.due.Equal(task.DueDate))
			assert.False(t, task.Completed)
			assert.Equal(t, alice.UserID, task.Owner)
			assert.Equal(t, alice.UserName, task.Author)
		})
	}
}

func TestTaskServiceOwnership(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	task, err := svc.Create(ctx, alice, models.CreateTaskRequest{Title: "Secret"})
	require.NoError(t, err)

	aliceTasks, err := svc.List(ctx, alice)
	require.NoError(t, err)
	require.Len(t, aliceTasks, 1)
	assert.Equal(t, task.ID, aliceTasks[0].ID)

	bobTasks, err := svc.List(ctx, bob)
	require.NoError(t, err)
	assert.NotNil(t, bobTasks)
	assert.Empty(t, bobTasks)

	_, err = svc.Update(ctx, bob, task.ID, models.TaskPatch{Completed: ptr(true)})
	assert.Equal(t, errors.KindNotFound, errors.KindOf(err))

	err = svc.Delete(ctx, bob, task.ID)
	assert.Equal(t, errors.KindNotFound, errors.KindOf(err))

	err = svc.Delete(ctx, bob, "no-such-task")
	assert.Equal(t, errors.KindNotFound, errors.KindOf(err))

	still, err := svc.List(ctx, alice)
	require.NoError(t, err)
	require.Len(t, still, 1)
	assert.False(t, still[0].Completed)
}

func TestTaskServiceUpdate(t *testing.T) {
	due := day(2024, 5, 1)

	tests := []struct {
		name  string
		patch models.TaskPatch
		want  struct {
			kind        errors.Kind
			title       string
			description string
			due         time.Time
			completed   bool
		}
	}{
		{
			name:  "completed only",
			patch: models.TaskPatch{Completed: ptr(true)},
			want: struct {
				kind        errors.Kind
				title       string
				description string
				due         time.Time
				completed   bool
			}{title: "A", description: "details", due: due, completed: true},
		},
		{
			name:  "empty description is a write",
			patch: models.TaskPatch{Description: ptr("")},
			want: struct {
				kind        errors.Kind
				title       string
				description string
				due         time.Time
				completed   bool
			}{title: "A", description: "", due: due},
		},
		{
			name:  "omitted description keeps value",
			patch: models.TaskPatch{Title: ptr("B")},
			want: struct {
				kind        errors.Kind
				title       string
				description string
				due         time.Time
				completed   bool
			}{title: "B", description: "details", due: due},
		},
		{
			name:  "due date moved",
			patch: models.TaskPatch{DueDate: ptr(day(2024, 5, 9))},
			want: struct {
				kind        errors.Kind
				title       string
				description string
				due         time.Time
				completed   bool
			}{title: "A", description: "details", due: day(2024, 5, 9)},
		},
		{
			name:  "empty patch",
			patch: models.TaskPatch{},
			want: struct {
				kind        errors.Kind
				title       string
				description string
				due         time.Time
				completed   bool
			}{title: "A", description: "details", due: due},
		},
		{
			name:  "blank title rejected",
			patch: models.TaskPatch{Title: ptr("   "), Completed: ptr(true)},
			want: struct {
				kind        errors.Kind
				title       string
				description string
				due         time.Time
				completed   bool
			}{kind: errors.KindValidation, title: "A", description: "details", due: due},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestService()
			ctx := context.Background()
			task, err := svc.Create(ctx, alice, models.CreateTaskRequest{Title: "A", Description: "details", DueDate: &due})
			require.NoError(t, err)

			updated, err := svc.Update(ctx, alice, task.ID, tt.patch)
			if tt.want.kind != "" {
				assert.Equal(t, tt.want.kind, errors.KindOf(err))
			} else {
				require.NoError(t, err)
				assert.Equal(t, task.ID, updated.ID)
			}

			stored, err := svc.List(ctx, alice)
			require.NoError(t, err)
			require.Len(t, stored, 1)
			got := stored[0]
			assert.Equal(t, tt.want.title, got.Title)
			assert.Equal(t, tt.want.description, got.Description)
			assert.True(t, tt.want.due.Equal(got.DueDate))
			assert.Equal(t, tt.want.completed, got.Completed)
			assert.Equal(t, alice.UserID, got.Owner)
			assert.Equal(t, "Alice", got.Author)
		})
	}
}

func TestTaskServiceDelete(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	task, err := svc.Create(ctx, alice, models.CreateTaskRequest{Title: "A"})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, alice, task.ID))

	err = svc.Delete(ctx, alice, task.ID)
	assert.Equal(t, errors.KindNotFound, errors.KindOf(err))

	_, err = svc.Update(ctx, alice, task.ID, models.TaskPatch{Completed: ptr(true)})
	assert.Equal(t, errors.KindNotFound, errors.KindOf(err))
}

func TestTaskServiceListOrder(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	_, err := svc.Create(ctx, alice, models.CreateTaskRequest{Title: "B", DueDate: ptr(day(2024, 5, 2))})
	require.NoError(t, err)
	_, err = svc.Create(ctx, alice, models.CreateTaskRequest{Title: "A", DueDate: ptr(day(2024, 5, 1))})
	require.NoError(t, err)

	tasks, err := svc.List(ctx, alice)
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, "A", tasks[0].Title)
	assert.Equal(t, "B", tasks[1].Title)
}

func TestTaskServiceRequiresIdentity(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	_, err := svc.List(ctx, models.Identity{})
	assert.Equal(t, errors.KindUnauthorized, errors.KindOf(err))

	_, err = svc.Create(ctx, models.Identity{}, models.CreateTaskRequest{Title: "A"})
	assert.Equal(t, errors.KindUnauthorized, errors.KindOf(err))

	_, err = svc.Update(ctx, models.Identity{}, "id", models.TaskPatch{})
	assert.Equal(t, errors.KindUnauthorized, errors.KindOf(err))

	err = svc.Delete(ctx, models.Identity{}, "id")
	assert.Equal(t, errors.KindUnauthorized, errors.KindOf(err))
}

func TestTaskServiceStoreErrors(t *testing.T) {
	cause := stderrors.New("connection reset by peer")

	tests := []struct {
		name      string
		mockSetup func(*MockTaskStore)
		call      func(*TaskService) error
	}{
		{
			name: "list",
			mockSetup: func(m *MockTaskStore) {
				m.On("FindByOwner", mock.Anything, alice.UserID).Return(nil, cause)
			},
			call: func(s *TaskService) error {
				_, err := s.List(context.Background(), alice)
				return err
			},
		},
		{
			name: "create",
			mockSetup: func(m *MockTaskStore) {
				m.On("Insert", mock.Anything, mock.AnythingOfType("*models.Task")).Return(nil, cause)
			},
			call: func(s *TaskService) error {
				_, err := s.Create(context.Background(), alice, models.CreateTaskRequest{Title: "A"})
				return err
			},
		},
		{
			name: "update lookup",
			mockSetup: func(m *MockTaskStore) {
				m.On("FindOne", mock.Anything, "t1", alice.UserID).Return(nil, cause)
			},
			call: func(s *TaskService) error {
				_, err := s.Update(context.Background(), alice, "t1", models.TaskPatch{Completed: ptr(true)})
				return err
			},
		},
		{
			name: "update save",
			mockSetup: func(m *MockTaskStore) {
				m.On("FindOne", mock.Anything, "t1", alice.UserID).Return(&models.Task{ID: "t1", Owner: alice.UserID, Title: "A"}, nil)
				m.On("Save", mock.Anything, mock.AnythingOfType("*models.Task")).Return(nil, cause)
			},
			call: func(s *TaskService) error {
				_, err := s.Update(context.Background(), alice, "t1", models.TaskPatch{Completed: ptr(true)})
				return err
			},
		},
		{
			name: "delete",
			mockSetup: func(m *MockTaskStore) {
				m.On("Remove", mock.Anything, "t1", alice.UserID).Return(false, cause)
			},
			call: func(s *TaskService) error {
				return s.Delete(context.Background(), alice, "t1")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &MockTaskStore{}
			tt.mockSetup(store)
			svc := NewTaskService(store, logger.Discard())

			err := tt.call(svc)

			require.Error(t, err)
			assert.Equal(t, errors.KindStore, errors.KindOf(err))
			assert.NotContains(t, errors.MessageOf(err), "connection reset")
			assert.ErrorIs(t, err, cause)
			store.AssertExpectations(t)
		})
	}
}

func TestTaskServiceSaveRaceReportsNotFound(t *testing.T) {
	store := &MockTaskStore{}
	store.On("FindOne", mock.Anything, "t1", alice.UserID).Return(&models.Task{ID: "t1", Owner: alice.UserID, Title: "A"}, nil)
	store.On("Save", mock.Anything, mock.AnythingOfType("*models.Task")).Return(nil, errors.ErrNotFound)
	svc := NewTaskService(store, logger.Discard())

	_, err := svc.Update(context.Background(), alice, "t1", models.TaskPatch{Completed: ptr(true)})

	assert.Equal(t, errors.KindNotFound, errors.KindOf(err))
	store.AssertExpectations(t)
}

func TestTaskServiceEmptyPatchSkipsWrite(t *testing.T) {
	stored := &models.Task{ID: "t1", Owner: alice.UserID, Title: "A"}
	store := &MockTaskStore{}
	store.On("FindOne", mock.Anything, "t1", alice.UserID).Return(stored, nil)
	svc := NewTaskService(store, logger.Discard())

	got, err := svc.Update(context.Background(), alice, "t1", models.TaskPatch{})

	require.NoError(t, err)
	assert.Equal(t, "A", got.Title)
	store.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	store.AssertExpectations(t)
}

func TestTaskPatchEmpty(t *testing.T) {
	tests := []struct {
		name  string
		patch models.TaskPatch
		want  bool
	}{
		{name: "nothing supplied", patch: models.TaskPatch{}, want: true},
		{name: "empty description supplied", patch: models.TaskPatch{Description: ptr("")}, want: false},
		{name: "false completed supplied", patch: models.TaskPatch{Completed: ptr(false)}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.patch.Empty())
		})
	}
}
