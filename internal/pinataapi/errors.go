package pinataapi

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/GraphPe/pinata-cli/internal/httpx"
)

var (
	// ErrNotFound is returned when Pinata answers 404.
	ErrNotFound = errors.New("not found")
	// ErrUnauthorized is returned when the JWT is missing, invalid or lacks scopes.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrRateLimited is returned when retries are exhausted on a 429.
	ErrRateLimited = errors.New("rate limited")
)

// WrapError prefixes err with the package and operation name and attaches a
// sentinel for the well-known HTTP statuses so callers can use errors.Is.
func WrapError(pkg, op string, err error) error {
	if err == nil {
		return nil
	}
	var httpErr *httpx.HTTPError
	if errors.As(err, &httpErr) {
		switch httpErr.StatusCode {
		case http.StatusNotFound:
			return fmt.Errorf("%s: %s: %w: %w", pkg, op, ErrNotFound, err)
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("%s: %s: %w: %w", pkg, op, ErrUnauthorized, err)
		case http.StatusTooManyRequests:
			return fmt.Errorf("%s: %s: %w: %w", pkg, op, ErrRateLimited, err)
		}
	}
	return fmt.Errorf("%s: %s: %w", pkg, op, err)
}
