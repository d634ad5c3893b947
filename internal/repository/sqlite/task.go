package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/smartwork/internal/apperror"
	"github.com/sakif/smartwork/internal/model"
	"github.com/sakif/smartwork/internal/repository"
)

var _ repository.TaskRepository = (*DB)(nil)

const taskColumns = `id, title, description, deadline, assigned_to, created_by, file_url,
	status, website_url, github_url, created_at, updated_at`

// CreateTask assigns the id and timestamps and inserts t.
func (db *DB) CreateTask(ctx context.Context, t *model.Task) error {
	t.ID = xid.New().String()
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO tasks (`+taskColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Title, t.Description, t.Deadline, t.AssignedTo, t.CreatedBy, t.FileURL,
		string(t.Status), t.WebsiteURL, t.GitHubURL, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating task: %w", err)
	}
	return nil
}

// GetTask returns apperror.ErrNotFound if no task has that id.
func (db *DB) GetTask(ctx context.Context, id string) (*model.Task, error) {
	row := db.conn.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)

	t, err := scanTask(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("task", id)
		}
		return nil, fmt.Errorf("sqlite: getting task %s: %w", id, err)
	}
	return t, nil
}

// ListTasks returns tasks matching f, newest first.
func (db *DB) ListTasks(ctx context.Context, f repository.TaskFilter) ([]model.Task, error) {
	var (
		where []string
		args  []any
	)
	if f.AssignedTo != "" {
		where = append(where, "assigned_to = ?")
		args = append(args, f.AssignedTo)
	}
	if f.CreatedBy != "" {
		where = append(where, "created_by = ?")
		args = append(args, f.CreatedBy)
	}

	query := `SELECT ` + taskColumns + ` FROM tasks`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing tasks: %w", err)
	}
	defer rows.Close()

	tasks := []model.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning task row: %w", err)
		}
		tasks = append(tasks, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating tasks: %w", err)
	}
	return tasks, nil
}

// PatchTask is one UPDATE statement; COALESCE keeps the stored links when
// the patch leaves them nil.
func (db *DB) PatchTask(ctx context.Context, id string, p model.TaskPatch) error {
	result, err := db.conn.ExecContext(ctx,
		`UPDATE tasks
		 SET status = ?,
		     website_url = COALESCE(?, website_url),
		     github_url = COALESCE(?, github_url),
		     updated_at = ?
		 WHERE id = ?`,
		string(p.Status), nullable(p.WebsiteURL), nullable(p.GitHubURL), time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("sqlite: patching task %s: %w", id, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if n == 0 {
		return apperror.NotFound("task", id)
	}
	return nil
}

func scanTask(s scanner) (*model.Task, error) {
	var (
		t      model.Task
		status string
	)
	err := s.Scan(
		&t.ID, &t.Title, &t.Description, &t.Deadline, &t.AssignedTo, &t.CreatedBy, &t.FileURL,
		&status, &t.WebsiteURL, &t.GitHubURL, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	t.Status = model.Status(status)
	return &t, nil
}

func nullable(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
