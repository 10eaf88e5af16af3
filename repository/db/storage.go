package db

import (
	"context"
	stderrors "errors"
	"log/slog"
	"time"

	"mytask/internal/domain/errors"
	"mytask/internal/domain/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	queryTimeout = 15 * time.Second

	uniqueViolation = "23505"
)

const (
	queryCreateUser     = `INSERT INTO users (id, name, email, password, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $5)`
	queryGetUserByID    = `SELECT id, name, email, password, created_at, updated_at FROM users WHERE id = $1`
	queryGetUserByEmail = `SELECT id, name, email, password, created_at, updated_at FROM users WHERE lower(email) = lower($1)`

	taskColumns      = `id, title, description, due_date, completed, user_id, author, created_at, updated_at`
	queryFindByOwner = `SELECT ` + taskColumns + ` FROM tasks WHERE user_id = $1 ORDER BY due_date ASC, created_at ASC`
	queryFindOne     = `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1 AND user_id = $2`
	queryInsertTask  = `INSERT INTO tasks (` + taskColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8) RETURNING ` + taskColumns
	querySaveTask    = `UPDATE tasks SET title = $1, description = $2, due_date = $3, completed = $4, updated_at = now()
		WHERE id = $5 AND user_id = $6 RETURNING ` + taskColumns
	queryRemoveTask = `DELETE FROM tasks WHERE id = $1 AND user_id = $2`
)

// Storage is the PostgreSQL backend. Every task query is keyed by owner.
type Storage struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

func NewStorage(ctx context.Context, connStr string, log *slog.Logger) (*Storage, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		log.Error("failed to create connection pool", "error", err)
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		log.Error("failed to connect to database", "error", err)
		return nil, err
	}

	log.Info("database connection established")
	return &Storage{pool: pool, log: log}, nil
}

func (s *Storage) Close() {
	s.pool.Close()
}

func (s *Storage) CreateUser(ctx context.Context, user *models.User) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if _, err := s.pool.Exec(ctx, queryCreateUser, user.ID, user.Name, user.Email, user.Password, now); err != nil {
		var pgErr *pgconn.PgError
		if stderrors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return errors.ErrUserAlreadyExists
		}
		s.log.Error("failed to create user", "error", err)
		return err
	}
	user.CreatedAt = now
	user.UpdatedAt = now
	s.log.Debug("user created", "user_id", user.ID)
	return nil
}

func (s *Storage) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, errors.ErrUserNotFound
	}
	return s.getUser(ctx, queryGetUserByID, id)
}

func (s *Storage) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.getUser(ctx, queryGetUserByEmail, email)
}

func (s *Storage) getUser(ctx context.Context, query string, arg string) (*models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	user := &models.User{}
	err := s.pool.QueryRow(ctx, query, arg).
		Scan(&user.ID, &user.Name, &user.Email, &user.Password, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if stderrors.Is(err, pgx.ErrNoRows) {
			return nil, errors.ErrUserNotFound
		}
		s.log.Error("failed to get user", "error", err)
		return nil, err
	}
	return user, nil
}

func (s *Storage) FindByOwner(ctx context.Context, ownerID string) ([]models.Task, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := s.pool.Query(ctx, queryFindByOwner, ownerID)
	if err != nil {
		s.log.Error("failed to query tasks", "owner", ownerID, "error", err)
		return nil, err
	}
	defer rows.Close()

	tasks := []models.Task{}
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			s.log.Error("failed to scan task", "owner", ownerID, "error", err)
			return nil, err
		}
		tasks = append(tasks, *task)
	}
	if err := rows.Err(); err != nil {
		s.log.Error("failed to read tasks", "owner", ownerID, "error", err)
		return nil, err
	}
	return tasks, nil
}

func (s *Storage) FindOne(ctx context.Context, id, ownerID string) (*models.Task, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, errors.ErrNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	task, err := scanTask(s.pool.QueryRow(ctx, queryFindOne, id, ownerID))
	if err != nil {
		if stderrors.Is(err, pgx.ErrNoRows) {
			return nil, errors.ErrNotFound
		}
		s.log.Error("failed to get task", "task_id", id, "error", err)
		return nil, err
	}
	return task, nil
}

func (s *Storage) Insert(ctx context.Context, task *models.Task) (*models.Task, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	row := s.pool.QueryRow(ctx, queryInsertTask,
		uuid.New().String(), task.Title, task.Description, task.DueDate, task.Completed,
		task.Owner, task.Author, time.Now().UTC())
	stored, err := scanTask(row)
	if err != nil {
		s.log.Error("failed to insert task", "owner", task.Owner, "error", err)
		return nil, err
	}
	s.log.Debug("task inserted", "task_id", stored.ID)
	return stored, nil
}

func (s *Storage) Save(ctx context.Context, task *models.Task) (*models.Task, error) {
	if _, err := uuid.Parse(task.ID); err != nil {
		return nil, errors.ErrNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	row := s.pool.QueryRow(ctx, querySaveTask,
		task.Title, task.Description, task.DueDate, task.Completed, task.ID, task.Owner)
	stored, err := scanTask(row)
	if err != nil {
		if stderrors.Is(err, pgx.ErrNoRows) {
			return nil, errors.ErrNotFound
		}
		s.log.Error("failed to save task", "task_id", task.ID, "error", err)
		return nil, err
	}
	return stored, nil
}

func (s *Storage) Remove(ctx context.Context, id, ownerID string) (bool, error) {
	if _, err := uuid.Parse(id); err != nil {
		return false, nil
	}

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	ct, err := s.pool.Exec(ctx, queryRemoveTask, id, ownerID)
	if err != nil {
		s.log.Error("failed to delete task", "task_id", id, "error", err)
		return false, err
	}
	return ct.RowsAffected() > 0, nil
}

func scanTask(row pgx.Row) (*models.Task, error) {
	t := &models.Task{}
	err := row.Scan(&t.ID, &t.Title, &t.Description, &t.DueDate, &t.Completed,
		&t.Owner, &t.Author, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return t, nil
}
