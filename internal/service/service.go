// Package service holds the business rules of the portal.
//
// Handlers call services with plain values; services call repositories
// through interfaces and return *apperror.AppError values the HTTP layer can
// map. Services never touch HTTP.
package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/sakif/smartwork/internal/apperror"
	"github.com/sakif/smartwork/internal/model"
	"github.com/sakif/smartwork/internal/repository"
	"github.com/sakif/smartwork/internal/watch"
)

// ProfileStore is a profile repository that can also keep a query current.
// live.Profiles satisfies it.
type ProfileStore interface {
	repository.ProfileRepository
	WatchList(ctx context.Context, f repository.ProfileFilter, fn func([]model.Profile)) (*watch.Subscription, error)
}

// TaskStore is the task counterpart of ProfileStore. live.Tasks satisfies it.
type TaskStore interface {
	repository.TaskRepository
	WatchList(ctx context.Context, f repository.TaskFilter, fn func([]model.Task)) (*watch.Subscription, error)
}

// storeErr passes taxonomy errors through and turns anything else into a
// retryable store failure, logging it once here.
func storeErr(logger *slog.Logger, op string, err error) error {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return err
	}
	logger.Error(op+" failed", slog.String("error", err.Error()))
	return apperror.StoreFailed(op, err)
}
