package api

import (
	"fmt"
	"io"
	"net/http"
	"strings"
)

// APIError is returned when the backend answers with a non-success status.
// It supports errors.Is matching by status code and errors.As extraction.
type APIError struct {
	StatusCode int
	StatusText string
	Body       string
}

// Error returns the formatted error string.
func (e *APIError) Error() string {
	return fmt.Sprintf("api: HTTP %d %s: %s", e.StatusCode, e.StatusText, Truncate(e.Body, maxDisplayBody))
}

// Is supports errors.Is matching by status code.
// ErrServer (500) matches any 5xx status code.
// All other sentinels require an exact status code match.
func (e *APIError) Is(target error) bool {
	t, ok := target.(*APIError)
	if !ok {
		return false
	}
	if t.StatusCode == 500 && e.StatusCode >= 500 && e.StatusCode < 600 {
		return true
	}
	return e.StatusCode == t.StatusCode
}

// Sentinel errors for common HTTP error status codes.
var (
	ErrBadRequest   = &APIError{StatusCode: 400, StatusText: "Bad Request"}
	ErrUnauthorized = &APIError{StatusCode: 401, StatusText: "Unauthorized"}
	ErrForbidden    = &APIError{StatusCode: 403, StatusText: "Forbidden"}
	ErrNotFound     = &APIError{StatusCode: 404, StatusText: "Not Found"}
	ErrServer       = &APIError{StatusCode: 500, StatusText: "Internal Server Error"}
)

// NetworkError is returned when no HTTP response was received at all.
type NetworkError struct {
	Method string
	URL    string
	Err    error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("api: network error: %s %s: %v", e.Method, e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// RedirectResolutionError is returned when a profile redirect was hidden from
// the client and following it did not reveal a different URL.
type RedirectResolutionError struct {
	URL string
}

func (e *RedirectResolutionError) Error() string {
	return fmt.Sprintf("api: could not get redirect URL for %s", e.URL)
}

const (
	// maxErrorBody is the maximum number of bytes read from an error response body.
	maxErrorBody = 4096

	// maxDisplayBody bounds the body excerpt included in error strings.
	maxDisplayBody = 200
)

// errorFromResponse creates an *APIError from an HTTP response.
// It reads up to 4KB of the response body.
func errorFromResponse(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &APIError{
		StatusCode: resp.StatusCode,
		StatusText: http.StatusText(resp.StatusCode),
		Body:       string(body),
	}
}

// Truncate shortens s to at most n runes, marking the cut with "...".
func Truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
