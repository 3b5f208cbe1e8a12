package bookmarks

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
)

var (
	// ErrNotFound indicates the addressed entity does not exist.
	ErrNotFound = errors.New("bookmarks: not found")
	// ErrForbidden indicates the entity exists but belongs to another user.
	ErrForbidden = errors.New("bookmarks: forbidden")
	// ErrInvalidArgument indicates caller input that can be corrected and retried.
	ErrInvalidArgument = errors.New("bookmarks: invalid argument")
	// ErrConflict indicates a uniqueness violation such as a duplicate url or tag name.
	ErrConflict = errors.New("bookmarks: conflict")
)

// ServiceError carries a dotted operation code alongside the underlying cause.
type ServiceError struct {
	code string
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

// Code returns the machine-readable operation code.
func (e *ServiceError) Code() string {
	return e.code
}

func newServiceError(operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &ServiceError{code: code, err: cause}
}

// isUniqueViolation reports whether the store rejected a write because of a
// unique constraint. The glebarez driver surfaces sqlite constraint errors as
// plain strings, so the message check stays as a fallback.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
