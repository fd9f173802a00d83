package usage

import "errors"

var (
	// ErrNotFound means the user has no ledger row yet. Not a fault: new
	// users get an in-memory default record until their first spend.
	ErrNotFound = errors.New("usage record not found")

	// ErrSchemaMissing means the usage_records table itself is absent, a
	// provisioning gap. Reported at Warn level and otherwise tolerated.
	ErrSchemaMissing = errors.New("usage table missing")

	// ErrStoreUnavailable wraps transport-level failures talking to the
	// store. Distinct from ErrNotFound so callers never mistake an outage
	// for a fresh account.
	ErrStoreUnavailable = errors.New("usage store unavailable")

	// ErrRolloverFailed means an expired cycle was detected but the
	// rolled-over record could not be persisted. The caller gets the
	// pre-rollover record alongside this error rather than a zeroed
	// counter that exists only client-side.
	ErrRolloverFailed = errors.New("billing cycle rollover failed")

	// ErrLimitExceeded and ErrSuspended are the caller-facing denial
	// outcomes of CheckLimit, shared by every metered feature.
	ErrLimitExceeded = errors.New("monthly credit limit exceeded")
	ErrSuspended     = errors.New("account suspended")
)

// Denied maps a deny reason to its sentinel error, nil when allowed.
func (r DenyReason) Denied() error {
	switch r {
	case ReasonLimitExceeded:
		return ErrLimitExceeded
	case ReasonSuspended:
		return ErrSuspended
	default:
		return nil
	}
}
