package browser

import "errors"

var (
	// ErrUnavailable means the headless browser could not be launched.
	ErrUnavailable = errors.New("browser unavailable")

	// ErrNavigateFailed indicates the driver failed during navigation.
	ErrNavigateFailed = errors.New("navigation failed")

	// ErrExtractFailed indicates the in-page extraction did not produce a
	// usable page record.
	ErrExtractFailed = errors.New("page extraction failed")

	// ErrWaitTimeout is the soft timeout while waiting for a lifecycle event
	// or for visible text. It never fails a render on its own.
	ErrWaitTimeout = errors.New("wait timeout")
)
