package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sakif/smartwork/internal/model"
)

// newTestDB returns a fresh in-memory database closed at test end.
func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(":memory:")
	require.NoError(t, err, "New(:memory:)")
	t.Cleanup(func() { db.Close() })
	return db
}

func createTestProfile(t *testing.T, db *DB, name string, role model.Role, leadID string) *model.Profile {
	t.Helper()
	p := &model.Profile{
		Name:       name,
		Email:      name + "@example.com",
		Role:       role,
		TeamLeadID: leadID,
	}
	require.NoError(t, db.CreateProfile(context.Background(), p))
	return p
}

func createTestTask(t *testing.T, db *DB, lead, intern string) *model.Task {
	t.Helper()
	task := &model.Task{
		Title:       "Landing page",
		Description: "Build the landing page",
		Deadline:    "2026-11-01",
		AssignedTo:  intern,
		CreatedBy:   lead,
		Status:      model.StatusAssigned,
	}
	require.NoError(t, db.CreateTask(context.Background(), task))
	return task
}

func TestNew_MigrationsAreIdempotent(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.migrate())
	require.NoError(t, db.migrate())
}
