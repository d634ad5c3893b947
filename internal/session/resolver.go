package session

import (
	"context"
	"errors"
	"log/slog"

	"github.com/sakif/smartwork/internal/apperror"
	"github.com/sakif/smartwork/internal/model"
	"github.com/sakif/smartwork/internal/watch"
)

// ProfileSource is the read side of the live profile repository.
type ProfileSource interface {
	GetProfile(ctx context.Context, id string) (*model.Profile, error)
	Watch(match func(model.Profile) bool, fn func(model.Profile)) *watch.Subscription
}

// ProfileResolver keeps a subject's profile current.
type ProfileResolver struct {
	profiles ProfileSource
	logger   *slog.Logger
}

func NewProfileResolver(profiles ProfileSource, logger *slog.Logger) *ProfileResolver {
	return &ProfileResolver{profiles: profiles, logger: logger}
}

// Resolve delivers the profile of subjectID, or nil if none exists yet, and
// then every stored version of it. A failed first read is returned and
// nothing stays subscribed.
//
// The watch is opened before the first read. A version published while that
// read is in flight wins over the read's result, which may predate it.
func (r *ProfileResolver) Resolve(ctx context.Context, subjectID string, fn func(*model.Profile)) (*watch.Subscription, error) {
	var seq watch.Sequence
	sub := r.profiles.Watch(
		func(p model.Profile) bool { return p.ID == subjectID },
		func(p model.Profile) {
			seq.Deliver(seq.Next(), func() { fn(&p) })
		},
	)

	ticket := seq.Next()
	p, err := r.profiles.GetProfile(ctx, subjectID)
	switch {
	case errors.Is(err, apperror.ErrNotFound):
		r.logger.Debug("no profile for subject", "subject_id", subjectID)
		p = nil
	case err != nil:
		sub.Close()
		return nil, apperror.StoreFailed("resolving profile", err)
	}
	if !seq.Deliver(ticket, func() { fn(p) }) {
		r.logger.Debug("first profile read overtaken by a newer version", "subject_id", subjectID)
	}
	return sub, nil
}
