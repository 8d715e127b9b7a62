package domain

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrValidation        = errors.New("validation failed")
	ErrDuplicateRequest  = errors.New("duplicate request")
	ErrInternal          = errors.New("internal error")

	// ErrConflict is returned by stores when a version-guarded update finds
	// the row changed underneath it. It always travels wrapped in ErrInternal.
	ErrConflict = errors.New("concurrent modification")
)

type Kind string

const (
	KindNotFound          Kind = "not_found"
	KindInsufficientStock Kind = "insufficient_stock"
	KindValidation        Kind = "validation_error"
	KindDuplicateRequest  Kind = "duplicate_request"
	KindInternal          Kind = "internal_error"
)

// KindOf classifies err. Anything not carrying one of the sentinel errors is
// treated as internal.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrInsufficientStock):
		return KindInsufficientStock
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrDuplicateRequest):
		return KindDuplicateRequest
	default:
		return KindInternal
	}
}

// Retryable reports whether the whole operation may be repeated unchanged.
// Only infrastructure failures qualify.
func Retryable(err error) bool {
	return err != nil && KindOf(err) == KindInternal
}
