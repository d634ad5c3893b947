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

var _ repository.ProfileRepository = (*DB)(nil)

const profileColumns = `id, name, email, role, team_name, team_lead_id, created_at, updated_at`

// CreateProfile inserts p. If p.ID is empty a new xid is assigned; callers
// provisioning an identity pass the identity's subject id instead.
func (db *DB) CreateProfile(ctx context.Context, p *model.Profile) error {
	if p.ID == "" {
		p.ID = xid.New().String()
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO profiles (`+profileColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.Email, string(p.Role), p.TeamName, p.TeamLeadID, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("profile", p.ID)
		}
		return fmt.Errorf("sqlite: creating profile: %w", err)
	}
	return nil
}

// GetProfile returns apperror.ErrNotFound if no profile has that id.
func (db *DB) GetProfile(ctx context.Context, id string) (*model.Profile, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE id = ?`, id)

	p, err := scanProfile(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("profile", id)
		}
		return nil, fmt.Errorf("sqlite: getting profile %s: %w", id, err)
	}
	return p, nil
}

// ListProfiles returns profiles matching f, oldest first so the order is
// stable between calls.
func (db *DB) ListProfiles(ctx context.Context, f repository.ProfileFilter) ([]model.Profile, error) {
	var (
		where []string
		args  []any
	)
	if f.Role != "" {
		where = append(where, "role = ?")
		args = append(args, string(f.Role))
	}
	if f.TeamLeadID != nil {
		where = append(where, "team_lead_id = ?")
		args = append(args, *f.TeamLeadID)
	}

	query := `SELECT ` + profileColumns + ` FROM profiles`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at, id`

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing profiles: %w", err)
	}
	defer rows.Close()

	profiles := []model.Profile{}
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning profile row: %w", err)
		}
		profiles = append(profiles, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating profiles: %w", err)
	}
	return profiles, nil
}

// SetTeamLead writes the intern's lead link. The write is issued even when
// the value is unchanged.
func (db *DB) SetTeamLead(ctx context.Context, internID, leadID string) error {
	result, err := db.conn.ExecContext(ctx,
		`UPDATE profiles SET team_lead_id = ?, updated_at = ? WHERE id = ?`,
		leadID, time.Now().UTC(), internID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: setting team lead of %s: %w", internID, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if n == 0 {
		return apperror.NotFound("profile", internID)
	}
	return nil
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanProfile(s scanner) (*model.Profile, error) {
	var (
		p    model.Profile
		role string
	)
	if err := s.Scan(&p.ID, &p.Name, &p.Email, &role, &p.TeamName, &p.TeamLeadID, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.Role = model.Role(role)
	return &p, nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
