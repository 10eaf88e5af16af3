// Package service holds the owner-scoped task operations and the
// registration/login flow. Handlers call it with the identity resolved by
// the access guard; it never sees a raw token.
package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"mytask/internal/domain/errors"
	"mytask/internal/domain/models"
)

type TaskStore interface {
	FindByOwner(ctx context.Context, ownerID string) ([]models.Task, error)
	FindOne(ctx context.Context, id, ownerID string) (*models.Task, error)
	Insert(ctx context.Context, task *models.Task) (*models.Task, error)
	Save(ctx context.Context, task *models.Task) (*models.Task, error)
	Remove(ctx context.Context, id, ownerID string) (bool, error)
}

const (
	msgTitleRequired = "Title is required"
	msgTitleBlank    = "Title cannot be empty"
	msgTaskNotFound  = "Task not found"
	msgNoIdentity    = "Authentication required"
	msgFetchFailed   = "Failed to fetch tasks"
	msgCreateFailed  = "Failed to create task"
	msgUpdateFailed  = "Failed to update task"
	msgDeleteFailed  = "Failed to delete task"
	MsgTaskDeleted   = "Task deleted successfully"
)

type TaskService struct {
	store TaskStore
	log   *slog.Logger
	now   func() time.Time
}

func NewTaskService(store TaskStore, log *slog.Logger) *TaskService {
	return &TaskService{store: store, log: log, now: time.Now}
}

func (s *TaskService) List(ctx context.Context, id models.Identity) ([]models.Task, error) {
	if id.UserID == "" {
		return nil, errors.Unauthorized(msgNoIdentity)
	}

	tasks, err := s.store.FindByOwner(ctx, id.UserID)
	if err != nil {
		return nil, s.storeError(ctx, "list", msgFetchFailed, err, "user_id", id.UserID)
	}
	if tasks == nil {
		tasks = []models.Task{}
	}
	return tasks, nil
}

func (s *TaskService) Create(ctx context.Context, id models.Identity, req models.CreateTaskRequest) (*models.Task, error) {
	if id.UserID == "" {
		return nil, errors.Unauthorized(msgNoIdentity)
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, errors.Validation(msgTitleRequired)
	}

	due := s.now()
	if req.DueDate != nil {
		due = *req.DueDate
	}

	task, err := s.store.Insert(ctx, &models.Task{
		Title:       title,
		Description: req.Description,
		DueDate:     due,
		Owner:       id.UserID,
		Author:      id.UserName,
	})
	if err != nil {
		return nil, s.storeError(ctx, "create", msgCreateFailed, err, "user_id", id.UserID)
	}

	s.log.InfoContext(ctx, "task created", "task_id", task.ID, "user_id", id.UserID)
	return task, nil
}

// Update applies the supplied fields of patch to the caller's task. A task
// owned by someone else is reported exactly like a missing one.
func (s *TaskService) Update(ctx context.Context, id models.Identity, taskID string, patch models.TaskPatch) (*models.Task, error) {
	if id.UserID == "" {
		return nil, errors.Unauthorized(msgNoIdentity)
	}

	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		if title == "" {
			return nil, errors.Validation(msgTitleBlank)
		}
		patch.Title = &title
	}

	task, err := s.store.FindOne(ctx, taskID, id.UserID)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return nil, errors.NotFound(msgTaskNotFound)
		}
		return nil, s.storeError(ctx, "update", msgUpdateFailed, err, "task_id", taskID)
	}

	if patch.Empty() {
		return task, nil
	}
	patch.Apply(task)

	saved, err := s.store.Save(ctx, task)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return nil, errors.NotFound(msgTaskNotFound)
		}
		return nil, s.storeError(ctx, "update", msgUpdateFailed, err, "task_id", taskID)
	}

	s.log.InfoContext(ctx, "task updated", "task_id", taskID, "user_id", id.UserID)
	return saved, nil
}

func (s *TaskService) Delete(ctx context.Context, id models.Identity, taskID string) error {
	if id.UserID == "" {
		return errors.Unauthorized(msgNoIdentity)
	}

	removed, err := s.store.Remove(ctx, taskID, id.UserID)
	if err != nil {
		return s.storeError(ctx, "delete", msgDeleteFailed, err, "task_id", taskID)
	}
	if !removed {
		return errors.NotFound(msgTaskNotFound)
	}

	s.log.InfoContext(ctx, "task deleted", "task_id", taskID, "user_id", id.UserID)
	return nil
}

func (s *TaskService) storeError(ctx context.Context, op, msg string, cause error, attrs ...any) error {
	s.log.ErrorContext(ctx, "task store failure", append([]any{"op", op, "error", cause}, attrs...)...)
	return errors.Store(msg, cause)
}
