package services

import (
	"errors"

	"github.com/SAP-F-2025/learner-service/internal/repositories"
)

// Error kinds surfaced by the services. They are the repository kinds so a
// store error classifies the same way at every layer.
var (
	ErrNotFound         = repositories.ErrNotFound
	ErrForbidden        = repositories.ErrForbidden
	ErrInvalidState     = repositories.ErrInvalidState
	ErrStoreUnavailable = repositories.ErrStoreUnavailable
	ErrDuplicate        = repositories.ErrDuplicate
)

type ForbiddenError = repositories.ForbiddenError

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsForbidden(err error) bool {
	return errors.Is(err, ErrForbidden)
}
