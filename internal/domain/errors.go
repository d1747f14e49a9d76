package domain

import (
	"errors"
	"fmt"
)

// TransientError is a retryable source failure (network, rate limit,
// upstream 5xx). Callers retry with exponential backoff up to a bounded
// attempt count.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient error in %s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// PermanentError means the asset is unavailable at the source (delisted,
// unknown id). It must never be retried within a run; retrying wastes the
// request budget and risks a ban.
type PermanentError struct {
	Op     string
	Reason string
}

func (e *PermanentError) Error() string {
	return fmt.Sprintf("permanent error in %s: %s", e.Op, e.Reason)
}

// DataIntegrityError marks a rejected series update (non-monotonic dates,
// negative prices). The prior stored series stays untouched.
type DataIntegrityError struct {
	CanonicalID string
	Reason      string
}

func (e *DataIntegrityError) Error() string {
	return fmt.Sprintf("data integrity error for %s: %s", e.CanonicalID, e.Reason)
}

// StorageError is a local write failure; the asset's update is aborted
// and the prior file left intact.
type StorageError struct {
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error for %s: %v", e.Path, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// PublishError is surfaced after local artifacts are finalized and never
// rolls back local state.
type PublishError struct {
	Target string
	Err    error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("publish error for %s: %v", e.Target, e.Err)
}

func (e *PublishError) Unwrap() error { return e.Err }

// IsTransient reports whether err is (or wraps) a TransientError.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// IsPermanent reports whether err is (or wraps) a PermanentError.
func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}
