package source

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrRateLimited = errors.New("source: remote rate limit exceeded")
	ErrUnknown     = errors.New("source: unknown source")
	ErrElementType = errors.New("source: element type mismatch")
	ErrDuplicate   = errors.New("source: already registered")
)

// TransportError is a failed remote request: the endpoint was unreachable,
// timed out or answered with a non-success status.
type TransportError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.StatusCode)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// CheckStatus closes the body and returns a TransportError for non-2xx responses.
func CheckStatus(resp *http.Response, url string) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	resp.Body.Close()
	return &TransportError{URL: url, StatusCode: resp.StatusCode}
}

// DecodeError means the payload was read but is structurally invalid,
// usually because of a truncated or corrupted cache entry.
type DecodeError struct {
	Name string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Name, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
