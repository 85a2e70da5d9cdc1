package ratings

import "errors"

var (
	// ErrNotFound means a search produced no candidate show.
	ErrNotFound = errors.New("not found")
	// ErrParse means the scraped markup did not have the expected shape.
	ErrParse = errors.New("parse error")
	// ErrTransport is a network or HTTP level failure, it may be transient.
	ErrTransport = errors.New("transport error")
	// ErrTimeout means a request or season task ran past its deadline.
	ErrTimeout = errors.New("timeout")
)

// Retryable reports whether err is worth another attempt.
func Retryable(err error) bool {
	return errors.Is(err, ErrTransport) || errors.Is(err, ErrTimeout)
}
