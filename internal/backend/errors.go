package backend

import "fmt"

// Failure classification for one backend call. The pipeline retries all of
// these across the host pool; the report layer only distinguishes them for
// display.
var (
	// ErrEmptyResponse means the call succeeded but neither the strict nor
	// the loose parse produced non-empty text.
	ErrEmptyResponse = fmt.Errorf("empty response from backend")
	// ErrRequestTimeout means the padded wait ceiling elapsed before the
	// backend answered.
	ErrRequestTimeout = fmt.Errorf("backend request timed out")
)

// HTTPError is a non-success status from the backend. Transport-level
// failures (connection refused, DNS) are reported with Status 0.
type HTTPError struct {
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("backend unreachable: %s", e.Body)
	}
	return fmt.Sprintf("backend returned HTTP %d: %s", e.Status, e.Body)
}

// ParseError means the response body was not the expected shape and the
// loose fallback walk found no usable text either.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("unparseable backend response: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
