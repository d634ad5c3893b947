package mongo

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/rs/xid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/smartwork/internal/apperror"
	"github.com/sakif/smartwork/internal/model"
	"github.com/sakif/smartwork/internal/repository"
)

// newTestDB connects to MONGO_TEST_URI using a throwaway database, or skips.
func newTestDB(t *testing.T) *DB {
	t.Helper()
	uri := os.Getenv("MONGO_TEST_URI")
	if uri == "" {
		t.Skip("MONGO_TEST_URI not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	name := "smartwork_test_" + xid.New().String()
	db, err := New(ctx, uri, name)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.client.Database(name).Drop(context.Background())
		db.Close()
	})
	return db
}

func TestProfiles(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	lead := &model.Profile{Name: "lead", Role: model.RoleTeamLead}
	require.NoError(t, db.CreateProfile(ctx, lead))
	intern := &model.Profile{Name: "intern", Role: model.RoleIntern}
	require.NoError(t, db.CreateProfile(ctx, intern))

	require.NoError(t, db.SetTeamLead(ctx, intern.ID, lead.ID))

	got, err := db.ListProfiles(ctx, repository.ProfileFilter{Role: model.RoleIntern, TeamLeadID: &lead.ID})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, intern.ID, got[0].ID)

	_, err = db.GetProfile(ctx, "missing")
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestTasks(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	task := &model.Task{Title: "t", Deadline: "2026-11-01", AssignedTo: "i", CreatedBy: "l", Status: model.StatusAssigned}
	require.NoError(t, db.CreateTask(ctx, task))

	site, repo := "https://x", "https://github.com/x/y"
	require.NoError(t, db.PatchTask(ctx, task.ID, model.TaskPatch{Status: model.StatusPending, WebsiteURL: &site, GitHubURL: &repo}))
	require.NoError(t, db.PatchTask(ctx, task.ID, model.TaskPatch{Status: model.StatusRejected}))

	got, err := db.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusRejected, got.Status)
	assert.Equal(t, site, got.WebsiteURL)
	assert.Equal(t, "t", got.Title)

	list, err := db.ListTasks(ctx, repository.TaskFilter{AssignedTo: "i"})
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestIdentities(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.CreateIdentity(ctx, &model.Identity{Email: "A@example.com"}))
	require.NoError(t, db.CreateIdentity(ctx, &model.Identity{Email: "b@example.com"}))

	err := db.CreateIdentity(ctx, &model.Identity{Email: "a@example.com"})
	assert.ErrorIs(t, err, apperror.ErrConflict)

	id, err := db.GetIdentityByEmail(ctx, "a@EXAMPLE.com")
	require.NoError(t, err)
	require.NoError(t, db.LinkGoogle(ctx, id.SubjectID, "g-1"))

	linked, err := db.GetIdentityByGoogleSub(ctx, "g-1")
	require.NoError(t, err)
	assert.Equal(t, id.SubjectID, linked.SubjectID)
}
