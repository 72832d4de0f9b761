package cache

import "errors"

var (
	// ErrCacheIO is returned when the backing store fails. Callers treat it
	// as non-fatal and bypass the cache for the current call.
	ErrCacheIO = errors.New("cache storage failure")

	// ErrDecompression is returned when a stored blob cannot be decoded.
	ErrDecompression = errors.New("decompression failed")
)
