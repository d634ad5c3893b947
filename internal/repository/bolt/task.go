package bolt

import (
	"context"
	"sort"
	"time"

	"github.com/rs/xid"
	"go.etcd.io/bbolt"

	"github.com/sakif/smartwork/internal/apperror"
	"github.com/sakif/smartwork/internal/model"
	"github.com/sakif/smartwork/internal/repository"
)

func (d *DB) CreateTask(ctx context.Context, t *model.Task) error {
	t.ID = xid.New().String()
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now

	err := d.update(ctx, func(tx *bbolt.Tx) error {
		return put(tx, tasksBucket, t.ID, t)
	})
	if err != nil {
		return wrap("creating task", err)
	}
	return nil
}

func (d *DB) GetTask(ctx context.Context, id string) (*model.Task, error) {
	var t *model.Task
	err := d.view(ctx, func(tx *bbolt.Tx) error {
		var err error
		t, err = get[model.Task](tx, tasksBucket, id)
		return err
	})
	if err != nil {
		return nil, wrap("getting task "+id, err)
	}
	if t == nil {
		return nil, apperror.NotFound("task", id)
	}
	return t, nil
}

// ListTasks returns tasks matching f, newest first.
func (d *DB) ListTasks(ctx context.Context, f repository.TaskFilter) ([]model.Task, error) {
	tasks := []model.Task{}
	err := d.view(ctx, func(tx *bbolt.Tx) error {
		return each(tx, tasksBucket, func(t model.Task) {
			if f.Matches(t) {
				tasks = append(tasks, t)
			}
		})
	})
	if err != nil {
		return nil, wrap("listing tasks", err)
	}

	sort.Slice(tasks, func(i, j int) bool {
		if !tasks[i].CreatedAt.Equal(tasks[j].CreatedAt) {
			return tasks[i].CreatedAt.After(tasks[j].CreatedAt)
		}
		return tasks[i].ID > tasks[j].ID
	})
	return tasks, nil
}

// PatchTask applies p inside one write transaction.
func (d *DB) PatchTask(ctx context.Context, id string, p model.TaskPatch) error {
	err := d.update(ctx, func(tx *bbolt.Tx) error {
		t, err := get[model.Task](tx, tasksBucket, id)
		if err != nil {
			return err
		}
		if t == nil {
			return apperror.NotFound("task", id)
		}
		patched := p.Apply(*t)
		patched.UpdatedAt = time.Now().UTC()
		return put(tx, tasksBucket, id, patched)
	})
	if err != nil {
		return wrap("patching task "+id, err)
	}
	return nil
}
