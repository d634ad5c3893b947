// Package repository declares the storage contracts the services depend on.
//
// Implementations live in sub-packages (sqlite, mongo). The live
// sub-package decorates any implementation so that every accepted write is
// fanned out to subscribers.
package repository

import (
	"context"

	"github.com/sakif/smartwork/internal/model"
)

// ProfileFilter selects profiles by equality. Empty fields are ignored;
// a non-nil TeamLeadID matches exactly, including the empty string.
type ProfileFilter struct {
	Role       model.Role
	TeamLeadID *string
}

// Matches reports whether p satisfies the filter. Backends that cannot push
// a filter down and the live decorators share this definition.
func (f ProfileFilter) Matches(p model.Profile) bool {
	if f.Role != "" && p.Role != f.Role {
		return false
	}
	if f.TeamLeadID != nil && p.TeamLeadID != *f.TeamLeadID {
		return false
	}
	return true
}

// TaskFilter selects tasks by equality. Empty fields are ignored.
type TaskFilter struct {
	AssignedTo string
	CreatedBy  string
}

func (f TaskFilter) Matches(t model.Task) bool {
	if f.AssignedTo != "" && t.AssignedTo != f.AssignedTo {
		return false
	}
	if f.CreatedBy != "" && t.CreatedBy != f.CreatedBy {
		return false
	}
	return true
}

type ProfileRepository interface {
	CreateProfile(ctx context.Context, p *model.Profile) error
	GetProfile(ctx context.Context, id string) (*model.Profile, error)
	ListProfiles(ctx context.Context, f ProfileFilter) ([]model.Profile, error)
	SetTeamLead(ctx context.Context, internID, leadID string) error
}

type TaskRepository interface {
	CreateTask(ctx context.Context, t *model.Task) error
	GetTask(ctx context.Context, id string) (*model.Task, error)
	ListTasks(ctx context.Context, f TaskFilter) ([]model.Task, error)
	// PatchTask writes status and, when set, the two link fields in a single
	// update. No other field is touched.
	PatchTask(ctx context.Context, id string, p model.TaskPatch) error
}

type IdentityRepository interface {
	CreateIdentity(ctx context.Context, id *model.Identity) error
	GetIdentityByEmail(ctx context.Context, email string) (*model.Identity, error)
	GetIdentityByGoogleSub(ctx context.Context, sub string) (*model.Identity, error)
	LinkGoogle(ctx context.Context, subjectID, sub string) error
	SetPasswordHash(ctx context.Context, subjectID, hash string) error
}

// Store is everything a backend provides. Both sqlite.DB and mongo.DB
// satisfy it.
type Store interface {
	ProfileRepository
	TaskRepository
	IdentityRepository
	Close() error
}
