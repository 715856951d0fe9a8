package provider

import "errors"

// Sentinel kinds for provider failures. Analyze returns errors wrapping
// exactly one of these so callers can classify without string matching.
var (
	ErrNotFound    = errors.New("track not found")
	ErrRateLimited = errors.New("provider rate limited")
	ErrTransient   = errors.New("transient provider failure")
	ErrAuth        = errors.New("provider authentication failed")
)

// Failure kind names as recorded in outcomes and metrics labels.
const (
	KindNotFound    = "not_found"
	KindRateLimited = "rate_limited"
	KindTransient   = "transient"
	KindAuth        = "auth"
	KindUnknown     = "unknown"
)

// Kind maps a provider error to its recorded failure kind.
func Kind(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrRateLimited):
		return KindRateLimited
	case errors.Is(err, ErrTransient):
		return KindTransient
	case errors.Is(err, ErrAuth):
		return KindAuth
	default:
		return KindUnknown
	}
}

// Terminal reports whether the failure is final for this item. Rate limits
// and transient failures are retryable by a future run; not-found and auth
// failures are not.
func Terminal(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrAuth)
}
