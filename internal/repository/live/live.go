// Package live decorates repositories so that every accepted write is
// published to a watch.Hub, and offers list queries that stay current.
//
// After a write succeeds the decorator re-reads the record and publishes the
// stored version, so subscribers always see what a fresh read would return.
package live

import (
	"context"
	"log/slog"
	"sync"

	"github.com/sakif/smartwork/internal/model"
	"github.com/sakif/smartwork/internal/repository"
	"github.com/sakif/smartwork/internal/watch"
)

// Profiles wraps a ProfileRepository. Reads pass straight through.
type Profiles struct {
	repository.ProfileRepository
	hub    *watch.Hub[model.Profile]
	logger *slog.Logger
}

func NewProfiles(repo repository.ProfileRepository, logger *slog.Logger) *Profiles {
	return &Profiles{
		ProfileRepository: repo,
		hub:               watch.NewHub[model.Profile](),
		logger:            logger,
	}
}

func (p *Profiles) CreateProfile(ctx context.Context, profile *model.Profile) error {
	if err := p.ProfileRepository.CreateProfile(ctx, profile); err != nil {
		return err
	}
	p.publish(ctx, profile.ID)
	return nil
}

func (p *Profiles) SetTeamLead(ctx context.Context, internID, leadID string) error {
	if err := p.ProfileRepository.SetTeamLead(ctx, internID, leadID); err != nil {
		return err
	}
	p.publish(ctx, internID)
	return nil
}

func (p *Profiles) publish(ctx context.Context, id string) {
	stored, err := p.ProfileRepository.GetProfile(context.WithoutCancel(ctx), id)
	if err != nil {
		p.logger.Warn("re-reading profile for fan-out", "profile_id", id, "error", err)
		return
	}
	p.hub.Publish(*stored)
}

// Watch subscribes fn to every stored profile accepted by match.
func (p *Profiles) Watch(match func(model.Profile) bool, fn func(model.Profile)) *watch.Subscription {
	return p.hub.Subscribe(match, fn)
}

// WatchList delivers the profiles matching f now and again after every
// change that could alter the result, including a profile leaving the set.
func (p *Profiles) WatchList(ctx context.Context, f repository.ProfileFilter, fn func([]model.Profile)) (*watch.Subscription, error) {
	var (
		mu      sync.Mutex
		members map[string]bool
	)
	remember := func(list []model.Profile) {
		ids := make(map[string]bool, len(list))
		for _, pr := range list {
			ids[pr.ID] = true
		}
		mu.Lock()
		members = ids
		mu.Unlock()
	}
	match := func(pr model.Profile) bool {
		if f.Matches(pr) {
			return true
		}
		mu.Lock()
		defer mu.Unlock()
		return members[pr.ID]
	}

	// Subscribe before the first read so no write can fall in between. Each
	// read takes a ticket first; a read overtaken by a newer delivery is
	// dropped, so a refresh racing the first read cannot be undone by it.
	var seq watch.Sequence
	refresh := func(ctx context.Context) error {
		ticket := seq.Next()
		list, err := p.ProfileRepository.ListProfiles(ctx, f)
		if err != nil {
			return err
		}
		seq.Deliver(ticket, func() {
			remember(list)
			fn(list)
		})
		return nil
	}

	sub := p.hub.Subscribe(match, func(model.Profile) {
		if err := refresh(ctx); err != nil {
			p.logger.Warn("refreshing profile list", "error", err)
		}
	})

	if err := refresh(ctx); err != nil {
		sub.Close()
		return nil, err
	}
	return sub, nil
}

// Tasks wraps a TaskRepository. Reads pass straight through.
type Tasks struct {
	repository.TaskRepository
	hub    *watch.Hub[model.Task]
	logger *slog.Logger
}

func NewTasks(repo repository.TaskRepository, logger *slog.Logger) *Tasks {
	return &Tasks{
		TaskRepository: repo,
		hub:            watch.NewHub[model.Task](),
		logger:         logger,
	}
}

func (t *Tasks) CreateTask(ctx context.Context, task *model.Task) error {
	if err := t.TaskRepository.CreateTask(ctx, task); err != nil {
		return err
	}
	t.publish(ctx, task.ID)
	return nil
}

func (t *Tasks) PatchTask(ctx context.Context, id string, patch model.TaskPatch) error {
	if err := t.TaskRepository.PatchTask(ctx, id, patch); err != nil {
		return err
	}
	t.publish(ctx, id)
	return nil
}

func (t *Tasks) publish(ctx context.Context, id string) {
	stored, err := t.TaskRepository.GetTask(context.WithoutCancel(ctx), id)
	if err != nil {
		t.logger.Warn("re-reading task for fan-out", "task_id", id, "error", err)
		return
	}
	t.hub.Publish(*stored)
}

// Watch subscribes fn to every stored task accepted by match.
func (t *Tasks) Watch(match func(model.Task) bool, fn func(model.Task)) *watch.Subscription {
	return t.hub.Subscribe(match, fn)
}

// WatchList delivers the tasks matching f now and after every matching
// write. The filter fields are immutable on a task, so a task never leaves
// the set once in it.
func (t *Tasks) WatchList(ctx context.Context, f repository.TaskFilter, fn func([]model.Task)) (*watch.Subscription, error) {
	var seq watch.Sequence
	refresh := func(ctx context.Context) error {
		ticket := seq.Next()
		list, err := t.TaskRepository.ListTasks(ctx, f)
		if err != nil {
			return err
		}
		seq.Deliver(ticket, func() { fn(list) })
		return nil
	}

	sub := t.hub.Subscribe(f.Matches, func(model.Task) {
		if err := refresh(ctx); err != nil {
			t.logger.Warn("refreshing task list", "error", err)
		}
	})

	if err := refresh(ctx); err != nil {
		sub.Close()
		return nil, err
	}
	return sub, nil
}
