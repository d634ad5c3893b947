package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"

	"github.com/sakif/smartwork/internal/apperror"
	"github.com/sakif/smartwork/internal/auth"
	"github.com/sakif/smartwork/internal/model"
	"github.com/sakif/smartwork/internal/repository"
	"github.com/sakif/smartwork/internal/sanitize"
	"github.com/sakif/smartwork/internal/watch"
)

const MaxNameLength = 100

// Directory owns the lead, intern and task associations that scope every
// query. A lead's interns are the intern profiles whose TeamLeadID points at
// the lead.
type Directory struct {
	profiles   ProfileStore
	tasks      TaskStore
	identities repository.IdentityRepository
	passwords  *auth.PasswordService
	logger     *slog.Logger
}

func NewDirectory(
	profiles ProfileStore,
	tasks TaskStore,
	identities repository.IdentityRepository,
	passwords *auth.PasswordService,
	logger *slog.Logger,
) *Directory {
	return &Directory{
		profiles:   profiles,
		tasks:      tasks,
		identities: identities,
		passwords:  passwords,
		logger:     logger,
	}
}

func internsOf(leadID string) repository.ProfileFilter {
	return repository.ProfileFilter{Role: model.RoleIntern, TeamLeadID: &leadID}
}

// ListInternsOf returns the interns assigned to leadID.
func (d *Directory) ListInternsOf(ctx context.Context, leadID string) ([]model.Profile, error) {
	interns, err := d.profiles.ListProfiles(ctx, internsOf(leadID))
	if err != nil {
		return nil, storeErr(d.logger, "listing interns", err)
	}
	return interns, nil
}

// ListTasksOf returns the tasks assigned to internID, newest first.
func (d *Directory) ListTasksOf(ctx context.Context, internID string) ([]model.Task, error) {
	if err := requireID("internId", internID); err != nil {
		return nil, err
	}
	tasks, err := d.tasks.ListTasks(ctx, repository.TaskFilter{AssignedTo: internID})
	if err != nil {
		return nil, storeErr(d.logger, "listing intern tasks", err)
	}
	return tasks, nil
}

// ListTasksCreatedBy returns the tasks leadID created, newest first.
func (d *Directory) ListTasksCreatedBy(ctx context.Context, leadID string) ([]model.Task, error) {
	if err := requireID("teamLeadId", leadID); err != nil {
		return nil, err
	}
	tasks, err := d.tasks.ListTasks(ctx, repository.TaskFilter{CreatedBy: leadID})
	if err != nil {
		return nil, storeErr(d.logger, "listing lead tasks", err)
	}
	return tasks, nil
}

// ListProfiles returns every profile, or those with role when it is set.
func (d *Directory) ListProfiles(ctx context.Context, role model.Role) ([]model.Profile, error) {
	if role != "" && !role.Valid() {
		return nil, apperror.ValidationFailed("role", fmt.Sprintf("unknown role %q", role))
	}
	profiles, err := d.profiles.ListProfiles(ctx, repository.ProfileFilter{Role: role})
	if err != nil {
		return nil, storeErr(d.logger, "listing profiles", err)
	}
	return profiles, nil
}

// LeadOf returns the team lead intern is assigned to, or nil when the
// intern is unassigned or the lead's profile is gone.
func (d *Directory) LeadOf(ctx context.Context, intern *model.Profile) (*model.Profile, error) {
	if intern == nil || intern.TeamLeadID == "" {
		return nil, nil
	}
	lead, err := d.profiles.GetProfile(ctx, intern.TeamLeadID)
	if errors.Is(err, apperror.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr(d.logger, "loading team lead", err)
	}
	return lead, nil
}

// AssignInternToLead points internID at leadID. Repeating the call with the
// same arguments writes again and leaves the same result.
func (d *Directory) AssignInternToLead(ctx context.Context, internID, leadID string) error {
	if _, err := d.requireRole(ctx, "internId", internID, model.RoleIntern); err != nil {
		return err
	}
	if _, err := d.requireRole(ctx, "teamLeadId", leadID, model.RoleTeamLead); err != nil {
		return err
	}

	if err := d.profiles.SetTeamLead(ctx, internID, leadID); err != nil {
		return storeErr(d.logger, "assigning intern", err)
	}

	d.logger.Info("intern assigned",
		slog.String("intern_id", internID),
		slog.String("lead_id", leadID),
	)
	return nil
}

// requireRole loads id and checks its role. A missing profile is reported
// against field as a validation error.
func (d *Directory) requireRole(ctx context.Context, field, id string, role model.Role) (*model.Profile, error) {
	if err := requireID(field, id); err != nil {
		return nil, err
	}
	p, err := d.profiles.GetProfile(ctx, id)
	if errors.Is(err, apperror.ErrNotFound) {
		return nil, apperror.ValidationFailed(field, fmt.Sprintf("no %s with id %s", role, id))
	}
	if err != nil {
		return nil, storeErr(d.logger, "loading profile", err)
	}
	if p.Role != role {
		return nil, apperror.ValidationFailed(field, fmt.Sprintf("%s is a %s, not a %s", id, p.Role, role))
	}
	return p, nil
}

// Registration is the first-time profile for an authenticated subject.
//
// TeamLeadID must be non-nil for interns; an empty string means unassigned.
type Registration struct {
	SubjectID  string
	Name       string
	Email      string
	Role       model.Role
	TeamName   string
	TeamLeadID *string
}

// RegisterProfile creates the profile for a new subject.
func (d *Directory) RegisterProfile(ctx context.Context, reg Registration) (*model.Profile, error) {
	if strings.TrimSpace(reg.SubjectID) == "" {
		return nil, apperror.ValidationFailed("subjectId", "subject id is required")
	}
	p, err := d.validateRegistration(ctx, reg)
	if err != nil {
		return nil, err
	}
	p.ID = reg.SubjectID

	if err := d.profiles.CreateProfile(ctx, p); err != nil {
		return nil, storeErr(d.logger, "registering profile", err)
	}

	d.logger.Info("profile registered",
		slog.String("profile_id", p.ID),
		slog.String("role", string(p.Role)),
	)
	return p, nil
}

func (d *Directory) validateRegistration(ctx context.Context, reg Registration) (*model.Profile, error) {
	name := sanitize.Text(reg.Name)
	if name == "" {
		return nil, apperror.ValidationFailed("name", "name is required")
	}
	if len(name) > MaxNameLength {
		return nil, apperror.ValidationFailed("name", fmt.Sprintf("name must be %d characters or less", MaxNameLength))
	}
	if !reg.Role.Valid() {
		return nil, apperror.ValidationFailed("role", fmt.Sprintf("unknown role %q", reg.Role))
	}

	p := &model.Profile{
		Name:     name,
		Email:    strings.ToLower(strings.TrimSpace(reg.Email)),
		Role:     reg.Role,
		TeamName: sanitize.Text(reg.TeamName),
	}

	switch {
	case reg.Role == model.RoleIntern:
		if reg.TeamLeadID == nil {
			return nil, apperror.ValidationFailed("teamLeadId", "interns need a team lead id, empty for unassigned")
		}
		if *reg.TeamLeadID != "" {
			if _, err := d.requireRole(ctx, "teamLeadId", *reg.TeamLeadID, model.RoleTeamLead); err != nil {
				return nil, err
			}
		}
		p.TeamLeadID = *reg.TeamLeadID
	case reg.TeamLeadID != nil && *reg.TeamLeadID != "":
		return nil, apperror.ValidationFailed("teamLeadId", "only interns have a team lead")
	}
	return p, nil
}

// Account is what an admin fills in to add a lead, intern or admin.
type Account struct {
	Name       string
	Email      string
	Password   string
	Role       model.Role
	TeamName   string
	TeamLeadID *string
}

// ProvisionAccount creates the sign-in identity and the profile together.
// The email must not be registered already.
func (d *Directory) ProvisionAccount(ctx context.Context, a Account) (*model.Profile, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(a.Email))
	if err != nil || addr.Address != strings.TrimSpace(a.Email) {
		return nil, apperror.ValidationFailed("email", "a valid email address is required")
	}
	if err := checkPassword(a.Password); err != nil {
		return nil, err
	}

	reg := Registration{
		Name:       a.Name,
		Email:      addr.Address,
		Role:       a.Role,
		TeamName:   a.TeamName,
		TeamLeadID: a.TeamLeadID,
	}
	if a.Role == model.RoleIntern && reg.TeamLeadID == nil {
		unassigned := ""
		reg.TeamLeadID = &unassigned
	}
	if _, err := d.validateRegistration(ctx, reg); err != nil {
		return nil, err
	}

	hash, err := d.passwords.Hash(a.Password)
	if err != nil {
		return nil, fmt.Errorf("provisioning account: %w", err)
	}

	identity := &model.Identity{Email: addr.Address, PasswordHash: hash}
	if err := d.identities.CreateIdentity(ctx, identity); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			return nil, &apperror.AppError{
				Err:     apperror.ErrConflict,
				Message: "an account with this email already exists",
				Field:   "email",
			}
		}
		return nil, storeErr(d.logger, "creating identity", err)
	}

	reg.SubjectID = identity.SubjectID
	return d.RegisterProfile(ctx, reg)
}

// BootstrapAdmin provisions an admin account for email unless an identity
// with that email already exists.
func (d *Directory) BootstrapAdmin(ctx context.Context, email, password, name string) error {
	_, err := d.identities.GetIdentityByEmail(ctx, email)
	if err == nil {
		return nil
	}
	if !errors.Is(err, apperror.ErrNotFound) {
		return storeErr(d.logger, "checking bootstrap admin", err)
	}

	p, err := d.ProvisionAccount(ctx, Account{
		Name:     name,
		Email:    email,
		Password: password,
		Role:     model.RoleAdmin,
	})
	if err != nil {
		return err
	}
	d.logger.Info("bootstrap admin created", slog.String("profile_id", p.ID))
	return nil
}

// WatchInternsOf calls fn with leadID's interns now and after every change
// to that set, until the subscription is closed.
func (d *Directory) WatchInternsOf(ctx context.Context, leadID string, fn func([]model.Profile)) (*watch.Subscription, error) {
	sub, err := d.profiles.WatchList(ctx, internsOf(leadID), fn)
	if err != nil {
		return nil, storeErr(d.logger, "watching interns", err)
	}
	return sub, nil
}

// WatchProfiles is the live form of ListProfiles.
func (d *Directory) WatchProfiles(ctx context.Context, role model.Role, fn func([]model.Profile)) (*watch.Subscription, error) {
	sub, err := d.profiles.WatchList(ctx, repository.ProfileFilter{Role: role}, fn)
	if err != nil {
		return nil, storeErr(d.logger, "watching profiles", err)
	}
	return sub, nil
}

// WatchTasksOf is the live form of ListTasksOf. Creation of a new task for
// the intern is delivered like any other change.
func (d *Directory) WatchTasksOf(ctx context.Context, internID string, fn func([]model.Task)) (*watch.Subscription, error) {
	if err := requireID("internId", internID); err != nil {
		return nil, err
	}
	sub, err := d.tasks.WatchList(ctx, repository.TaskFilter{AssignedTo: internID}, fn)
	if err != nil {
		return nil, storeErr(d.logger, "watching intern tasks", err)
	}
	return sub, nil
}

// WatchTasksCreatedBy is the live form of ListTasksCreatedBy.
func (d *Directory) WatchTasksCreatedBy(ctx context.Context, leadID string, fn func([]model.Task)) (*watch.Subscription, error) {
	if err := requireID("teamLeadId", leadID); err != nil {
		return nil, err
	}
	sub, err := d.tasks.WatchList(ctx, repository.TaskFilter{CreatedBy: leadID}, fn)
	if err != nil {
		return nil, storeErr(d.logger, "watching lead tasks", err)
	}
	return sub, nil
}

// requireID refuses a blank id. An empty task filter matches every task, so
// a blank id must never reach the store as a scope.
func requireID(field, id string) error {
	if strings.TrimSpace(id) == "" {
		return apperror.ValidationFailed(field, field+" is required")
	}
	return nil
}

func checkPassword(pw string) error {
	if len(pw) < auth.MinPasswordLen || len(pw) > auth.MaxPasswordLen {
		return apperror.ValidationFailed("password",
			fmt.Sprintf("password must be between %d and %d bytes", auth.MinPasswordLen, auth.MaxPasswordLen))
	}
	return nil
}
