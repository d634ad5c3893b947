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

var _ repository.IdentityRepository = (*DB)(nil)

const identityColumns = `subject_id, email, password_hash, google_sub, created_at, updated_at`

// CreateIdentity inserts a credential record. Email is stored lower-cased;
// a duplicate email yields apperror.ErrConflict.
func (db *DB) CreateIdentity(ctx context.Context, id *model.Identity) error {
	if id.SubjectID == "" {
		id.SubjectID = xid.New().String()
	}
	id.Email = strings.ToLower(strings.TrimSpace(id.Email))
	now := time.Now().UTC()
	id.CreatedAt = now
	id.UpdatedAt = now

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO identities (`+identityColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		id.SubjectID, id.Email, id.PasswordHash, nullableString(id.GoogleSub), id.CreatedAt, id.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("identity", id.Email)
		}
		return fmt.Errorf("sqlite: creating identity: %w", err)
	}
	return nil
}

func (db *DB) GetIdentityByEmail(ctx context.Context, email string) (*model.Identity, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+identityColumns+` FROM identities WHERE email = ?`, email)

	id, err := scanIdentity(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("identity", email)
		}
		return nil, fmt.Errorf("sqlite: getting identity %s: %w", email, err)
	}
	return id, nil
}

func (db *DB) GetIdentityByGoogleSub(ctx context.Context, sub string) (*model.Identity, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+identityColumns+` FROM identities WHERE google_sub = ?`, sub)

	id, err := scanIdentity(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("identity", sub)
		}
		return nil, fmt.Errorf("sqlite: getting identity by google sub: %w", err)
	}
	return id, nil
}

// LinkGoogle records the Google subject on an existing identity.
func (db *DB) LinkGoogle(ctx context.Context, subjectID, sub string) error {
	return db.updateIdentity(ctx, subjectID, `google_sub = ?`, sub)
}

func (db *DB) SetPasswordHash(ctx context.Context, subjectID, hash string) error {
	return db.updateIdentity(ctx, subjectID, `password_hash = ?`, hash)
}

func (db *DB) updateIdentity(ctx context.Context, subjectID, set string, value any) error {
	result, err := db.conn.ExecContext(ctx,
		`UPDATE identities SET `+set+`, updated_at = ? WHERE subject_id = ?`,
		value, time.Now().UTC(), subjectID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("identity", subjectID)
		}
		return fmt.Errorf("sqlite: updating identity %s: %w", subjectID, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if n == 0 {
		return apperror.NotFound("identity", subjectID)
	}
	return nil
}

func scanIdentity(s scanner) (*model.Identity, error) {
	var (
		id  model.Identity
		sub sql.NullString
	)
	if err := s.Scan(&id.SubjectID, &id.Email, &id.PasswordHash, &sub, &id.CreatedAt, &id.UpdatedAt); err != nil {
		return nil, err
	}
	id.GoogleSub = sub.String
	return &id, nil
}

func nullableString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
