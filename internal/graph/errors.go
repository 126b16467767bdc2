package graph

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

var (
	// ErrUnauthorized means the bearer token was rejected. Re-authenticate.
	ErrUnauthorized = errors.New("Graph API authentication failed - please sign in again")
	// ErrForbidden means the token lacks a required permission scope.
	ErrForbidden = errors.New("Graph API access denied - check the app's permission scopes")
	// ErrNotFound means the item does not exist (or is not visible).
	ErrNotFound = errors.New("Graph API item not found")
)

// TransientError is a throttling or service-side failure that may succeed on retry.
type TransientError struct {
	StatusCode int
	After      time.Duration
	Err        error
}

func (e *TransientError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("Graph API unreachable: %v", e.Err)
	}
	if e.StatusCode == http.StatusTooManyRequests {
		return "Graph API rate limit exceeded - please try again later"
	}
	return fmt.Sprintf("Graph API temporarily unavailable (status %d)", e.StatusCode)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// RetryAfter is the server-requested delay, zero when none was sent.
func (e *TransientError) RetryAfter() time.Duration {
	return e.After
}

// APIError is any other non-success response.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("Graph API error (status %d, %s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("Graph API error (status %d)", e.StatusCode)
}

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

func (c *Client) handleAPIError(resp *http.Response, body []byte) error {
	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusForbidden:
		return ErrForbidden
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusTooManyRequests, http.StatusServiceUnavailable,
		http.StatusInternalServerError, http.StatusBadGateway, http.StatusGatewayTimeout:
		return &TransientError{StatusCode: resp.StatusCode, After: parseRetryAfter(resp.Header.Get("Retry-After"))}
	default:
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var envelope errorEnvelope
		if jsonErr := decodeJSON(body, &envelope); jsonErr == nil {
			apiErr.Code = envelope.Error.Code
			apiErr.Message = envelope.Error.Message
		}
		return apiErr
	}
}

// parseRetryAfter accepts delta-seconds only; Graph does not send HTTP dates.
func parseRetryAfter(v string) time.Duration {
	secs, err := strconv.Atoi(v)
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

type errorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}
