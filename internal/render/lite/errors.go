package lite

import "errors"

// Fetch errors - returned by the raw HTML fetch path
var (
	ErrFetchStatus  = errors.New("unexpected response status")
	ErrFetchFailure = errors.New("fetch failed")
)
