package repositories

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// Error kinds shared by both stores. Callers classify with errors.Is.
var (
	ErrNotFound         = errors.New("not found")
	ErrForbidden        = errors.New("forbidden")
	ErrInvalidState     = errors.New("invalid state")
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrDuplicate        = errors.New("duplicate")
)

// ForbiddenError carries the user-facing denial message.
type ForbiddenError struct {
	UserID  string
	Message string
}

func (e *ForbiddenError) Error() string {
	return e.Message
}

func (e *ForbiddenError) Unwrap() error {
	return ErrForbidden
}

func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsStoreUnavailable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable)
}

// HandleDBError maps gorm errors onto the shared kinds. Anything that is not a
// missing row or a unique violation is treated as the store being unavailable.
func HandleDBError(err error, operation string) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%s failed: %w", operation, ErrNotFound)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%s failed: %w", operation, ErrDuplicate)
	}

	return fmt.Errorf("%s failed: %w: %v", operation, ErrStoreUnavailable, err)
}
