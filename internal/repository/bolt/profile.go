package bolt

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/xid"
	"go.etcd.io/bbolt"

	"github.com/sakif/smartwork/internal/apperror"
	"github.com/sakif/smartwork/internal/model"
	"github.com/sakif/smartwork/internal/repository"
)

// CreateProfile stores p under p.ID, assigning an xid when it is empty.
func (d *DB) CreateProfile(ctx context.Context, p *model.Profile) error {
	if p.ID == "" {
		p.ID = xid.New().String()
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	err := d.update(ctx, func(tx *bbolt.Tx) error {
		if tx.Bucket(profilesBucket).Get([]byte(p.ID)) != nil {
			return apperror.Conflict("profile", p.ID)
		}
		return put(tx, profilesBucket, p.ID, p)
	})
	if err != nil {
		return wrap("creating profile", err)
	}
	return nil
}

func (d *DB) GetProfile(ctx context.Context, id string) (*model.Profile, error) {
	var p *model.Profile
	err := d.view(ctx, func(tx *bbolt.Tx) error {
		var err error
		p, err = get[model.Profile](tx, profilesBucket, id)
		return err
	})
	if err != nil {
		return nil, wrap("getting profile "+id, err)
	}
	if p == nil {
		return nil, apperror.NotFound("profile", id)
	}
	return p, nil
}

// ListProfiles scans the bucket and keeps what f matches, oldest first.
func (d *DB) ListProfiles(ctx context.Context, f repository.ProfileFilter) ([]model.Profile, error) {
	profiles := []model.Profile{}
	err := d.view(ctx, func(tx *bbolt.Tx) error {
		return each(tx, profilesBucket, func(p model.Profile) {
			if f.Matches(p) {
				profiles = append(profiles, p)
			}
		})
	})
	if err != nil {
		return nil, wrap("listing profiles", err)
	}

	sort.Slice(profiles, func(i, j int) bool {
		if !profiles[i].CreatedAt.Equal(profiles[j].CreatedAt) {
			return profiles[i].CreatedAt.Before(profiles[j].CreatedAt)
		}
		return profiles[i].ID < profiles[j].ID
	})
	return profiles, nil
}

func (d *DB) SetTeamLead(ctx context.Context, internID, leadID string) error {
	err := d.update(ctx, func(tx *bbolt.Tx) error {
		p, err := get[model.Profile](tx, profilesBucket, internID)
		if err != nil {
			return err
		}
		if p == nil {
			return apperror.NotFound("profile", internID)
		}
		p.TeamLeadID = leadID
		p.UpdatedAt = time.Now().UTC()
		return put(tx, profilesBucket, p.ID, p)
	})
	if err != nil {
		return wrap("setting team lead of "+internID, err)
	}
	return nil
}

// wrap passes domain errors through and prefixes everything else.
func wrap(op string, err error) error {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return fmt.Errorf("bolt: %s: %w", op, err)
}
