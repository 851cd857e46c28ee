package domain

import (
	"errors"
	"fmt"
	"time"
)

// ErrNotFound reports a missing registry symbol or backup snapshot.
var ErrNotFound = errors.New("not found")

// ValidationError rejects malformed input (symbol format, unknown sector,
// duplicate symbol). It is always surfaced to the caller with the reason.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// QuotaScope names which ceiling a QuotaError breached.
type QuotaScope string

const (
	// QuotaRate is the sliding-window request limit.
	QuotaRate QuotaScope = "rate"
	// QuotaGlobal is the system-wide ticker ceiling.
	QuotaGlobal QuotaScope = "global"
	// QuotaCaller is the per-caller ticker ceiling.
	QuotaCaller QuotaScope = "caller"
)

// QuotaError rejects a request that exceeded a rate or capacity limit.
// RetryAfter is set only for rate throttling; Limit only for capacity.
type QuotaError struct {
	Scope      QuotaScope
	RetryAfter time.Duration
	Limit      int
}

func (e *QuotaError) Error() string {
	switch e.Scope {
	case QuotaRate:
		return fmt.Sprintf("request limit exceeded, retry in %ds", int(e.RetryAfter.Seconds()))
	case QuotaGlobal:
		return fmt.Sprintf("total ticker limit exceeded (max %d)", e.Limit)
	case QuotaCaller:
		return fmt.Sprintf("per-user ticker limit exceeded (max %d)", e.Limit)
	default:
		return "quota exceeded"
	}
}

// IsQuota reports whether err is (or wraps) a QuotaError.
func IsQuota(err error) bool {
	var qe *QuotaError
	return errors.As(err, &qe)
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
