package client

import (
	"context"
	"sync"
	"time"

	"mytask/internal/domain/models"
)

type TaskAPI interface {
	GetTasks(ctx context.Context) ([]models.Task, error)
	AddTask(ctx context.Context, req models.CreateTaskRequest) (*models.Task, error)
	UpdateTask(ctx context.Context, id string, patch models.TaskPatch) (*models.Task, error)
	DeleteTask(ctx context.Context, id string) error
}

type State int

const (
	StateLoading State = iota
	StateLoaded
	StateError
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateLoaded:
		return "loaded"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// TaskCache holds the signed-in user's tasks and a view of them narrowed to a
// selected calendar day. Mutations go to the API first; the cache only
// changes once the API has accepted them.
type TaskCache struct {
	mu      sync.RWMutex
	api     TaskAPI
	loc     *time.Location
	state   State
	err     error
	tasks   []models.Task
	filter  *time.Time
	visible []models.Task
}

// NewTaskCache compares due dates in loc, or time.Local when loc is nil.
func NewTaskCache(api TaskAPI, loc *time.Location) *TaskCache {
	if loc == nil {
		loc = time.Local
	}
	return &TaskCache{api: api, loc: loc, state: StateLoading}
}

// Load fetches the full list. On failure the cache is left empty in the
// error state and the error is returned.
func (c *TaskCache) Load(ctx context.Context) error {
	c.mu.Lock()
	c.state = StateLoading
	c.err = nil
	c.mu.Unlock()

	tasks, err := c.api.GetTasks(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.state = StateError
		c.err = err
		c.tasks = nil
		c.refresh()
		return err
	}
	c.state = StateLoaded
	c.tasks = append([]models.Task(nil), tasks...)
	c.refresh()
	return nil
}

func (c *TaskCache) Add(ctx context.Context, req models.CreateTaskRequest) (*models.Task, error) {
	task, err := c.api.AddTask(ctx, req)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.tasks = append(c.tasks, *task)
	c.refresh()
	return task, nil
}

func (c *TaskCache) Update(ctx context.Context, id string, patch models.TaskPatch) (*models.Task, error) {
	task, err := c.api.UpdateTask(ctx, id, patch)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.tasks {
		if c.tasks[i].ID == task.ID {
			c.tasks[i] = *task
			break
		}
	}
	c.refresh()
	return task, nil
}

func (c *TaskCache) Delete(ctx context.Context, id string) error {
	if err := c.api.DeleteTask(ctx, id); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	kept := c.tasks[:0]
	for _, t := range c.tasks {
		if t.ID != id {
			kept = append(kept, t)
		}
	}
	c.tasks = kept
	c.refresh()
	return nil
}

// SetFilter narrows Visible to tasks due on the same calendar day as day.
// A nil day clears the filter.
func (c *TaskCache) SetFilter(day *time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if day == nil {
		c.filter = nil
	} else {
		d := *day
		c.filter = &d
	}
	c.refresh()
}

func (c *TaskCache) ClearFilter() {
	c.SetFilter(nil)
}

func (c *TaskCache) Filter() *time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.filter == nil {
		return nil
	}
	d := *c.filter
	return &d
}

func (c *TaskCache) Visible() []models.Task {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]models.Task{}, c.visible...)
}

func (c *TaskCache) All() []models.Task {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]models.Task{}, c.tasks...)
}

func (c *TaskCache) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

func (c *TaskCache) Err() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.err
}

// refresh recomputes the visible view. Callers hold c.mu.
func (c *TaskCache) refresh() {
	if c.filter == nil {
		c.visible = append([]models.Task{}, c.tasks...)
		return
	}
	visible := make([]models.Task, 0, len(c.tasks))
	for _, t := range c.tasks {
		if sameDay(t.DueDate, *c.filter, c.loc) {
			visible = append(visible, t)
		}
	}
	c.visible = visible
}

func sameDay(a, b time.Time, loc *time.Location) bool {
	ay, am, ad := a.In(loc).Date()
	by, bm, bd := b.In(loc).Date()
	return ay == by && am == bm && ad == bd
}
