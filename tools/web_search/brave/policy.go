package brave

import "net/http"

// RetryStrategy says how a failed first attempt is retried.
type RetryStrategy int

const (
	// RetryNone surfaces the status as a failure.
	RetryNone RetryStrategy = iota
	// RetryStripOptional retries once with freshness, safesearch and any other
	// optional parameter removed.
	RetryStripOptional
)

func (s RetryStrategy) String() string {
	switch s {
	case RetryStripOptional:
		return "strip_optional"
	default:
		return "none"
	}
}

// RetryPolicy maps a first-attempt status code to its retry strategy. Brave
// rejects some freshness/safesearch combinations with these client errors.
var RetryPolicy = map[int]RetryStrategy{
	http.StatusBadRequest:          RetryStripOptional,
	http.StatusUnauthorized:        RetryStripOptional,
	http.StatusForbidden:           RetryStripOptional,
	http.StatusUnprocessableEntity: RetryStripOptional,
}

// strategyFor returns the strategy for status, RetryNone when unlisted.
func strategyFor(policy map[int]RetryStrategy, status int) RetryStrategy {
	if s, ok := policy[status]; ok {
		return s
	}
	return RetryNone
}
