package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/smartwork/internal/apperror"
	"github.com/sakif/smartwork/internal/model"
	"github.com/sakif/smartwork/internal/repository"
)

func TestCreateProfile_AssignsIDAndTimestamps(t *testing.T) {
	db := newTestDB(t)

	p := &model.Profile{Name: "Ada", Email: "ada@example.com", Role: model.RoleTeamLead, TeamName: "Web"}
	require.NoError(t, db.CreateProfile(context.Background(), p))

	assert.NotEmpty(t, p.ID)
	assert.False(t, p.CreatedAt.IsZero())
	assert.False(t, p.UpdatedAt.IsZero())
}

func TestCreateProfile_KeepsGivenID(t *testing.T) {
	db := newTestDB(t)

	p := &model.Profile{ID: "subject-1", Name: "Ada", Role: model.RoleAdmin}
	require.NoError(t, db.CreateProfile(context.Background(), p))
	assert.Equal(t, "subject-1", p.ID)

	dup := &model.Profile{ID: "subject-1", Name: "Other", Role: model.RoleIntern}
	err := db.CreateProfile(context.Background(), dup)
	assert.ErrorIs(t, err, apperror.ErrConflict)
}

func TestGetProfile(t *testing.T) {
	db := newTestDB(t)
	created := createTestProfile(t, db, "lead", model.RoleTeamLead, "")

	found, err := db.GetProfile(context.Background(), created.ID)
	require.NoError(t, err)

	assert.Equal(t, created.ID, found.ID)
	assert.Equal(t, "lead", found.Name)
	assert.Equal(t, model.RoleTeamLead, found.Role)
	assert.Equal(t, "", found.TeamLeadID)
}

func TestGetProfile_NotFound(t *testing.T) {
	db := newTestDB(t)

	_, err := db.GetProfile(context.Background(), "nonexistent-id")
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestListProfiles_Filters(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	lead := createTestProfile(t, db, "lead", model.RoleTeamLead, "")
	other := createTestProfile(t, db, "other", model.RoleTeamLead, "")
	i1 := createTestProfile(t, db, "i1", model.RoleIntern, lead.ID)
	i2 := createTestProfile(t, db, "i2", model.RoleIntern, lead.ID)
	createTestProfile(t, db, "i3", model.RoleIntern, other.ID)
	unassigned := createTestProfile(t, db, "i4", model.RoleIntern, "")
	createTestProfile(t, db, "admin", model.RoleAdmin, "")

	all, err := db.ListProfiles(ctx, repository.ProfileFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 7)

	interns, err := db.ListProfiles(ctx, repository.ProfileFilter{Role: model.RoleIntern})
	require.NoError(t, err)
	assert.Len(t, interns, 4)

	ofLead, err := db.ListProfiles(ctx, repository.ProfileFilter{Role: model.RoleIntern, TeamLeadID: &lead.ID})
	require.NoError(t, err)
	assert.Equal(t, []string{i1.ID, i2.ID}, profileIDs(ofLead))

	empty := ""
	none, err := db.ListProfiles(ctx, repository.ProfileFilter{Role: model.RoleIntern, TeamLeadID: &empty})
	require.NoError(t, err)
	assert.Equal(t, []string{unassigned.ID}, profileIDs(none))
}

func TestListProfiles_EmptyIsNotNil(t *testing.T) {
	db := newTestDB(t)

	got, err := db.ListProfiles(context.Background(), repository.ProfileFilter{Role: model.RoleAdmin})
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestSetTeamLead(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	lead := createTestProfile(t, db, "lead", model.RoleTeamLead, "")
	intern := createTestProfile(t, db, "intern", model.RoleIntern, "")

	require.NoError(t, db.SetTeamLead(ctx, intern.ID, lead.ID))
	require.NoError(t, db.SetTeamLead(ctx, intern.ID, lead.ID))

	got, err := db.GetProfile(ctx, intern.ID)
	require.NoError(t, err)
	assert.Equal(t, lead.ID, got.TeamLeadID)
}

func TestSetTeamLead_NotFound(t *testing.T) {
	db := newTestDB(t)

	err := db.SetTeamLead(context.Background(), "missing", "lead")
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func profileIDs(ps []model.Profile) []string {
	ids := make([]string, len(ps))
	for i, p := range ps {
		ids[i] = p.ID
	}
	return ids
}
