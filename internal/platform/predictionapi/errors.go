package predictionapi

import (
	"errors"
	"fmt"
)

// ErrInvalidArgument is returned before any request is sent when the caller
// passes an unusable identifier or status.
var ErrInvalidArgument = errors.New("invalid argument")

// FetchError reports a non-2xx response from the prediction API.
type FetchError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *FetchError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: unexpected status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s: unexpected status %d: %s", e.Op, e.StatusCode, e.Body)
}

// ParseError reports a 2xx response whose body could not be decoded.
type ParseError struct {
	Op   string
	Body string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: decode response: %v", e.Op, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// IsNotFound reports whether err is a FetchError with status 404.
func IsNotFound(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe) && fe.StatusCode == 404
}

// IsConflict reports whether err is a FetchError with status 409.
func IsConflict(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe) && fe.StatusCode == 409
}

// Error kinds reported to clients.
const (
	KindFetch     = "fetch"
	KindParse     = "parse"
	KindTransport = "transport"
	KindInvalid   = "invalid"
)

// Kind classifies an error returned by the client.
func Kind(err error) string {
	var fe *FetchError
	var pe *ParseError
	switch {
	case errors.As(err, &fe):
		return KindFetch
	case errors.As(err, &pe):
		return KindParse
	case errors.Is(err, ErrInvalidArgument):
		return KindInvalid
	default:
		return KindTransport
	}
}
