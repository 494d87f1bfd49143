package services

import (
	"context"
	"errors"
	"time"

	"github.com/baharkarakas/securebank/internal/apperrors"
	"github.com/baharkarakas/securebank/internal/repository"
)

const DefaultStorageTimeout = 5 * time.Second

// Notifier publishes domain events without blocking the caller.
type Notifier interface {
	Notify(topic, key string, payload any)
}

// storageCtx detaches ctx from the request so a started unit of work is
// never cancelled halfway, and bounds it by timeout.
func storageCtx(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		timeout = DefaultStorageTimeout
	}
	return context.WithTimeout(context.WithoutCancel(ctx), timeout)
}

// storageErr classifies an error coming out of a repository call. Errors
// that already carry a Kind pass through.
func storageErr(err error, notFound apperrors.Kind, msg string) error {
	var ae *apperrors.Error
	switch {
	case err == nil:
		return nil
	case errors.As(err, &ae):
		return err
	case errors.Is(err, repository.ErrNotFound):
		return apperrors.E(notFound, msg, err)
	default:
		return apperrors.E(apperrors.EngineUnavailable, "storage unavailable", err)
	}
}
