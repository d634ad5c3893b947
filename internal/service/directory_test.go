package service

import (
	"context"
	"errors"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/smartwork/internal/apperror"
	"github.com/sakif/smartwork/internal/model"
)

func ids(ps []model.Profile) []string {
	out := make([]string, 0, len(ps))
	for _, p := range ps {
		out = append(out, p.ID)
	}
	sort.Strings(out)
	return out
}

func strPtr(s string) *string { return &s }

func TestListInternsOf(t *testing.T) {
	fx := newFixture(t)
	fx.seedTeam()

	interns, err := fx.directory.ListInternsOf(context.Background(), "L")
	require.NoError(t, err)
	assert.Equal(t, []string{"I"}, ids(interns))

	interns, err = fx.directory.ListInternsOf(context.Background(), "L2")
	require.NoError(t, err)
	assert.Empty(t, interns)
}

// Admin assigns the unassigned intern I2 to L2.
func TestAssignInternToLead_Scenario(t *testing.T) {
	fx := newFixture(t)
	fx.seedTeam()
	ctx := context.Background()

	unassignedBefore, err := fx.directory.ListInternsOf(ctx, "")
	require.NoError(t, err)

	require.NoError(t, fx.directory.AssignInternToLead(ctx, "I2", "L2"))

	interns, err := fx.directory.ListInternsOf(ctx, "L2")
	require.NoError(t, err)
	assert.Equal(t, []string{"I2"}, ids(interns))

	others, err := fx.directory.ListInternsOf(ctx, "L")
	require.NoError(t, err)
	assert.Equal(t, []string{"I"}, ids(others))

	unassignedAfter, err := fx.directory.ListInternsOf(ctx, "")
	require.NoError(t, err)
	assert.Len(t, unassignedAfter, len(unassignedBefore)-1)
}

func TestAssignInternToLead_Idempotent(t *testing.T) {
	fx := newFixture(t)
	fx.seedTeam()
	ctx := context.Background()

	require.NoError(t, fx.directory.AssignInternToLead(ctx, "I2", "L2"))
	require.NoError(t, fx.directory.AssignInternToLead(ctx, "I2", "L2"))

	p, err := fx.store.GetProfile(ctx, "I2")
	require.NoError(t, err)
	assert.Equal(t, "L2", p.TeamLeadID)
}

func TestAssignInternToLead_Validation(t *testing.T) {
	tests := []struct {
		name      string
		intern    string
		lead      string
		wantField string
	}{
		{"unknown intern", "nobody", "L", "internId"},
		{"intern is a lead", "L2", "L", "internId"},
		{"unknown lead", "I2", "nobody", "teamLeadId"},
		{"lead is an intern", "I2", "I", "teamLeadId"},
		{"lead is admin", "I2", "A", "teamLeadId"},
		{"empty lead", "I2", "", "teamLeadId"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newFixture(t)
			fx.seedTeam()

			err := fx.directory.AssignInternToLead(context.Background(), tt.intern, tt.lead)
			require.ErrorIs(t, err, apperror.ErrValidation)

			var appErr *apperror.AppError
			require.True(t, errors.As(err, &appErr))
			assert.Equal(t, tt.wantField, appErr.Field)
		})
	}
}

func TestRegisterProfile(t *testing.T) {
	tests := []struct {
		name    string
		reg     Registration
		wantErr error
		field   string
	}{
		{"admin", Registration{SubjectID: "s1", Name: "Ada", Role: model.RoleAdmin}, nil, ""},
		{"lead", Registration{SubjectID: "s1", Name: "Lena", Role: model.RoleTeamLead, TeamName: "Web"}, nil, ""},
		{"unassigned intern", Registration{SubjectID: "s1", Name: "Ira", Role: model.RoleIntern, TeamLeadID: strPtr("")}, nil, ""},
		{"assigned intern", Registration{SubjectID: "s1", Name: "Ira", Role: model.RoleIntern, TeamLeadID: strPtr("L")}, nil, ""},
		{"unknown role", Registration{SubjectID: "s1", Name: "X", Role: "manager"}, apperror.ErrValidation, "role"},
		{"intern without lead field", Registration{SubjectID: "s1", Name: "Ira", Role: model.RoleIntern}, apperror.ErrValidation, "teamLeadId"},
		{"intern with bad lead", Registration{SubjectID: "s1", Name: "Ira", Role: model.RoleIntern, TeamLeadID: strPtr("I")}, apperror.ErrValidation, "teamLeadId"},
		{"lead with lead", Registration{SubjectID: "s1", Name: "Lena", Role: model.RoleTeamLead, TeamLeadID: strPtr("L")}, apperror.ErrValidation, "teamLeadId"},
		{"no name", Registration{SubjectID: "s1", Role: model.RoleAdmin}, apperror.ErrValidation, "name"},
		{"no subject", Registration{Name: "Ada", Role: model.RoleAdmin}, apperror.ErrValidation, "subjectId"},
		{"existing subject", Registration{SubjectID: "A", Name: "Ada", Role: model.RoleAdmin}, apperror.ErrConflict, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newFixture(t)
			fx.seedTeam()

			p, err := fx.directory.RegisterProfile(context.Background(), tt.reg)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				var appErr *apperror.AppError
				require.True(t, errors.As(err, &appErr))
				assert.Equal(t, tt.field, appErr.Field)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.reg.SubjectID, p.ID)
			assert.Equal(t, tt.reg.Role, p.Role)
		})
	}
}

func TestListProfiles(t *testing.T) {
	fx := newFixture(t)
	fx.seedTeam()
	ctx := context.Background()

	all, err := fx.directory.ListProfiles(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 5)

	leads, err := fx.directory.ListProfiles(ctx, model.RoleTeamLead)
	require.NoError(t, err)
	assert.Equal(t, []string{"L", "L2"}, ids(leads))

	_, err = fx.directory.ListProfiles(ctx, "boss")
	assert.ErrorIs(t, err, apperror.ErrValidation)
}

func TestProvisionAccount(t *testing.T) {
	fx := newFixture(t)
	fx.seedTeam()
	ctx := context.Background()

	p, err := fx.directory.ProvisionAccount(ctx, Account{
		Name:       "Nia",
		Email:      "Nia@Example.com",
		Password:   "long-enough",
		Role:       model.RoleIntern,
		TeamLeadID: strPtr("L"),
	})
	require.NoError(t, err)
	assert.Equal(t, "nia@example.com", p.Email)
	assert.Equal(t, "L", p.TeamLeadID)

	identity, err := fx.store.GetIdentityByEmail(ctx, "nia@example.com")
	require.NoError(t, err)
	assert.Equal(t, p.ID, identity.SubjectID)
	assert.NoError(t, fx.passwords.Verify(identity.PasswordHash, "long-enough"))

	_, err = fx.directory.ProvisionAccount(ctx, Account{
		Name: "Nia again", Email: "nia@example.com", Password: "long-enough", Role: model.RoleAdmin,
	})
	assert.ErrorIs(t, err, apperror.ErrConflict)
}

func TestProvisionAccount_InternDefaultsToUnassigned(t *testing.T) {
	fx := newFixture(t)

	p, err := fx.directory.ProvisionAccount(context.Background(), Account{
		Name: "Ira", Email: "ira@example.com", Password: "long-enough", Role: model.RoleIntern,
	})
	require.NoError(t, err)
	assert.Equal(t, "", p.TeamLeadID)
}

func TestProvisionAccount_ValidatesBeforeWriting(t *testing.T) {
	tests := []struct {
		name  string
		acct  Account
		field string
	}{
		{"bad email", Account{Name: "X", Email: "not-an-email", Password: "long-enough", Role: model.RoleAdmin}, "email"},
		{"display-name email", Account{Name: "X", Email: "X <x@example.com>", Password: "long-enough", Role: model.RoleAdmin}, "email"},
		{"short password", Account{Name: "X", Email: "x@example.com", Password: "short", Role: model.RoleAdmin}, "password"},
		{"bad role", Account{Name: "X", Email: "x@example.com", Password: "long-enough", Role: "owner"}, "role"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newFixture(t)

			_, err := fx.directory.ProvisionAccount(context.Background(), tt.acct)
			require.ErrorIs(t, err, apperror.ErrValidation)
			var appErr *apperror.AppError
			require.True(t, errors.As(err, &appErr))
			assert.Equal(t, tt.field, appErr.Field)
			assert.Empty(t, fx.store.identities)
		})
	}
}

func TestBootstrapAdmin(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	require.NoError(t, fx.directory.BootstrapAdmin(ctx, "root@example.com", "long-enough", "Root"))
	require.NoError(t, fx.directory.BootstrapAdmin(ctx, "root@example.com", "long-enough", "Root"))

	admins, err := fx.directory.ListProfiles(ctx, model.RoleAdmin)
	require.NoError(t, err)
	assert.Len(t, admins, 1)
}

func TestWatchInternsOf_FollowsAssignment(t *testing.T) {
	fx := newFixture(t)
	fx.seedTeam()
	ctx := context.Background()

	var latest []string
	sub, err := fx.directory.WatchInternsOf(ctx, "L2", func(ps []model.Profile) { latest = ids(ps) })
	require.NoError(t, err)
	defer sub.Close()
	assert.Empty(t, latest)

	require.NoError(t, fx.directory.AssignInternToLead(ctx, "I2", "L2"))
	assert.Equal(t, []string{"I2"}, latest)

	require.NoError(t, fx.directory.AssignInternToLead(ctx, "I2", "L"))
	assert.Empty(t, latest)
}

func TestWatch_StoreFailure(t *testing.T) {
	fx := newFixture(t)
	fx.store.fail(errors.New("offline"))

	_, err := fx.directory.WatchTasksCreatedBy(context.Background(), "L", func([]model.Task) {})
	assert.ErrorIs(t, err, apperror.ErrStore)
}

func TestLeadOf(t *testing.T) {
	fx := newFixture(t)
	fx.seedTeam()
	ctx := context.Background()

	ira, err := fx.store.GetProfile(ctx, "I")
	require.NoError(t, err)
	lead, err := fx.directory.LeadOf(ctx, ira)
	require.NoError(t, err)
	require.NotNil(t, lead)
	assert.Equal(t, "Web", lead.TeamName)

	ivo, err := fx.store.GetProfile(ctx, "I2")
	require.NoError(t, err)
	lead, err = fx.directory.LeadOf(ctx, ivo)
	require.NoError(t, err)
	assert.Nil(t, lead)

	orphan := &model.Profile{ID: "I3", Role: model.RoleIntern, TeamLeadID: "gone"}
	lead, err = fx.directory.LeadOf(ctx, orphan)
	require.NoError(t, err)
	assert.Nil(t, lead)

	fx.store.fail(errors.New("connection reset"))
	_, err = fx.directory.LeadOf(ctx, ira)
	assert.ErrorIs(t, err, apperror.ErrStore)
}

func TestTaskScopes_RefuseBlankIDs(t *testing.T) {
	fx := newFixture(t)
	fx.seedTeam()
	fx.store.putTask(model.Task{ID: "T", AssignedTo: "I", CreatedBy: "L", Status: model.StatusAssigned})
	ctx := context.Background()
	noop := func([]model.Task) {}

	tests := []struct {
		name  string
		call  func(id string) error
		field string
	}{
		{"list of intern", func(id string) error { _, err := fx.directory.ListTasksOf(ctx, id); return err }, "internId"},
		{"list created by", func(id string) error { _, err := fx.directory.ListTasksCreatedBy(ctx, id); return err }, "teamLeadId"},
		{"watch of intern", func(id string) error { _, err := fx.directory.WatchTasksOf(ctx, id, noop); return err }, "internId"},
		{"watch created by", func(id string) error { _, err := fx.directory.WatchTasksCreatedBy(ctx, id, noop); return err }, "teamLeadId"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, id := range []string{"", "   "} {
				err := tt.call(id)
				require.ErrorIs(t, err, apperror.ErrValidation)
				var appErr *apperror.AppError
				require.True(t, errors.As(err, &appErr))
				assert.Equal(t, tt.field, appErr.Field)
			}
		})
	}

	mine, err := fx.directory.ListTasksOf(ctx, "I")
	require.NoError(t, err)
	assert.Len(t, mine, 1)
}
