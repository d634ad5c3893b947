package bolt

import (
	"context"
	"strings"
	"time"

	"github.com/rs/xid"
	"go.etcd.io/bbolt"

	"github.com/sakif/smartwork/internal/apperror"
	"github.com/sakif/smartwork/internal/model"
)

// identityRecord is the stored form. model.Identity keeps its secrets out
// of JSON, so it cannot be stored directly.
type identityRecord struct {
	SubjectID    string    `json:"subjectId"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"passwordHash,omitempty"`
	GoogleSub    string    `json:"googleSub,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

func (r *identityRecord) identity() *model.Identity {
	return &model.Identity{
		SubjectID:    r.SubjectID,
		Email:        r.Email,
		PasswordHash: r.PasswordHash,
		GoogleSub:    r.GoogleSub,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

// CreateIdentity stores a credential record and its index entries. Email
// is stored lower-cased; a duplicate email yields apperror.ErrConflict.
func (d *DB) CreateIdentity(ctx context.Context, id *model.Identity) error {
	if id.SubjectID == "" {
		id.SubjectID = xid.New().String()
	}
	id.Email = strings.ToLower(strings.TrimSpace(id.Email))
	now := time.Now().UTC()
	id.CreatedAt = now
	id.UpdatedAt = now

	err := d.update(ctx, func(tx *bbolt.Tx) error {
		emails := tx.Bucket(emailIndex)
		if emails.Get([]byte(id.Email)) != nil {
			return apperror.Conflict("identity", id.Email)
		}
		if tx.Bucket(identitiesBucket).Get([]byte(id.SubjectID)) != nil {
			return apperror.Conflict("identity", id.SubjectID)
		}
		if id.GoogleSub != "" {
			if tx.Bucket(googleIndex).Get([]byte(id.GoogleSub)) != nil {
				return apperror.Conflict("identity", id.Email)
			}
			if err := tx.Bucket(googleIndex).Put([]byte(id.GoogleSub), []byte(id.SubjectID)); err != nil {
				return err
			}
		}
		if err := emails.Put([]byte(id.Email), []byte(id.SubjectID)); err != nil {
			return err
		}
		return put(tx, identitiesBucket, id.SubjectID, identityRecord{
			SubjectID:    id.SubjectID,
			Email:        id.Email,
			PasswordHash: id.PasswordHash,
			GoogleSub:    id.GoogleSub,
			CreatedAt:    id.CreatedAt,
			UpdatedAt:    id.UpdatedAt,
		})
	})
	if err != nil {
		return wrap("creating identity", err)
	}
	return nil
}

func (d *DB) GetIdentityByEmail(ctx context.Context, email string) (*model.Identity, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return d.identityBy(ctx, emailIndex, email)
}

func (d *DB) GetIdentityByGoogleSub(ctx context.Context, sub string) (*model.Identity, error) {
	return d.identityBy(ctx, googleIndex, sub)
}

func (d *DB) identityBy(ctx context.Context, index []byte, key string) (*model.Identity, error) {
	var rec *identityRecord
	err := d.view(ctx, func(tx *bbolt.Tx) error {
		if key == "" {
			return nil
		}
		subjectID := tx.Bucket(index).Get([]byte(key))
		if subjectID == nil {
			return nil
		}
		var err error
		rec, err = get[identityRecord](tx, identitiesBucket, string(subjectID))
		return err
	})
	if err != nil {
		return nil, wrap("getting identity", err)
	}
	if rec == nil {
		return nil, apperror.NotFound("identity", key)
	}
	return rec.identity(), nil
}

// LinkGoogle records the Google subject on an existing identity. A subject
// already linked to another identity yields apperror.ErrConflict.
func (d *DB) LinkGoogle(ctx context.Context, subjectID, sub string) error {
	return d.updateIdentity(ctx, subjectID, func(tx *bbolt.Tx, rec *identityRecord) error {
		idx := tx.Bucket(googleIndex)
		if owner := idx.Get([]byte(sub)); owner != nil && string(owner) != subjectID {
			return apperror.Conflict("identity", subjectID)
		}
		if rec.GoogleSub != "" && rec.GoogleSub != sub {
			if err := idx.Delete([]byte(rec.GoogleSub)); err != nil {
				return err
			}
		}
		rec.GoogleSub = sub
		return idx.Put([]byte(sub), []byte(subjectID))
	})
}

func (d *DB) SetPasswordHash(ctx context.Context, subjectID, hash string) error {
	return d.updateIdentity(ctx, subjectID, func(_ *bbolt.Tx, rec *identityRecord) error {
		rec.PasswordHash = hash
		return nil
	})
}

func (d *DB) updateIdentity(ctx context.Context, subjectID string, fn func(*bbolt.Tx, *identityRecord) error) error {
	err := d.update(ctx, func(tx *bbolt.Tx) error {
		rec, err := get[identityRecord](tx, identitiesBucket, subjectID)
		if err != nil {
			return err
		}
		if rec == nil {
			return apperror.NotFound("identity", subjectID)
		}
		if err := fn(tx, rec); err != nil {
			return err
		}
		rec.UpdatedAt = time.Now().UTC()
		return put(tx, identitiesBucket, subjectID, rec)
	})
	if err != nil {
		return wrap("updating identity "+subjectID, err)
	}
	return nil
}
