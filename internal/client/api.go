// Package client talks to the task API on behalf of a signed-in user and keeps
// a local, filterable copy of that user's tasks.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"mytask/internal/domain/errors"
	"mytask/internal/domain/models"
)

const (
	MsgFetchFailed    = "Unable to fetch tasks. Please try again."
	MsgAddFailed      = "Unable to add task. Please try again."
	MsgUpdateFailed   = "Unable to update task. Please try again."
	MsgDeleteFailed   = "Unable to delete task. Please try again."
	MsgConnectFailed  = "Unable to connect to the server. Please try again later."
	defaultAPITimeout = 15 * time.Second
)

// APIClient is the HTTP client for the task API. The bearer token is read
// from the session store on every call, so logging in or out takes effect
// without rebuilding the client.
type APIClient struct {
	baseURL string
	http    *http.Client
	store   KeyValueStore
}

type Option func(*APIClient)

func WithHTTPClient(c *http.Client) Option {
	return func(a *APIClient) { a.http = c }
}

func NewAPIClient(baseURL string, store KeyValueStore, opts ...Option) *APIClient {
	a := &APIClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: defaultAPITimeout},
		store:   store,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *APIClient) GetTasks(ctx context.Context) ([]models.Task, error) {
	var tasks []models.Task
	if err := a.do(ctx, http.MethodGet, "/tasks", nil, &tasks, MsgFetchFailed); err != nil {
		return nil, err
	}
	if tasks == nil {
		tasks = []models.Task{}
	}
	return tasks, nil
}

func (a *APIClient) AddTask(ctx context.Context, req models.CreateTaskRequest) (*models.Task, error) {
	var task models.Task
	if err := a.do(ctx, http.MethodPost, "/tasks", req, &task, MsgAddFailed); err != nil {
		return nil, err
	}
	return &task, nil
}

func (a *APIClient) UpdateTask(ctx context.Context, id string, patch models.TaskPatch) (*models.Task, error) {
	var task models.Task
	if err := a.do(ctx, http.MethodPut, "/tasks/"+url.PathEscape(id), patch, &task, MsgUpdateFailed); err != nil {
		return nil, err
	}
	return &task, nil
}

func (a *APIClient) DeleteTask(ctx context.Context, id string) error {
	return a.do(ctx, http.MethodDelete, "/tasks/"+url.PathEscape(id), nil, nil, MsgDeleteFailed)
}

func (a *APIClient) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	var resp models.LoginResponse
	if err := a.do(ctx, http.MethodPost, "/auth/login", req, &resp, MsgConnectFailed); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (a *APIClient) Register(ctx context.Context, req models.RegisterRequest) error {
	return a.do(ctx, http.MethodPost, "/auth/register", req, nil, MsgConnectFailed)
}

// do performs one round trip. Failures come back as *errors.Error: the
// server's kind and message when it answered, fallback otherwise.
func (a *APIClient) do(ctx context.Context, method, path string, body, out any, fallback string) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(errors.KindValidation, fallback, err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, reader)
	if err != nil {
		return errors.Wrap(errors.KindStore, fallback, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := storedToken(a.store); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := a.http.Do(req)
	if err != nil {
		return errors.Wrap(errors.KindStore, fallback, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return responseError(resp, fallback)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(errors.KindStore, fallback, err)
	}
	return nil
}

func responseError(resp *http.Response, fallback string) error {
	var body errors.Error
	_ = json.NewDecoder(resp.Body).Decode(&body)

	if body.Kind == "" {
		body.Kind = kindForStatus(resp.StatusCode)
	}
	if body.Message == "" {
		body.Message = fallback
	}
	return &errors.Error{Kind: body.Kind, Message: body.Message}
}

func kindForStatus(status int) errors.Kind {
	switch status {
	case http.StatusUnauthorized:
		return errors.KindUnauthorized
	case http.StatusBadRequest:
		return errors.KindValidation
	case http.StatusNotFound:
		return errors.KindNotFound
	default:
		return errors.KindStore
	}
}
