package youtube

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors. Every API failure is an *APIError wrapping one of the
// status sentinels, so callers can branch with errors.Is.
var (
	ErrMissingAPIKey      = errors.New("YouTube API key is not set - run 'subfeed config set api-key <key>'")
	ErrChannelNotFound    = errors.New("YouTube channel not found")
	ErrInvalidChannelLink = errors.New("invalid YouTube channel link")

	ErrUnauthorized     = errors.New("YouTube API authentication failed - check your API key")
	ErrForbidden        = errors.New("YouTube API access denied - check your API key permissions")
	ErrQuotaExceeded    = errors.New("YouTube API quota exceeded - please try again tomorrow")
	ErrRateLimited      = errors.New("YouTube API rate limit exceeded - please try again later")
	ErrUnavailable      = errors.New("YouTube API temporarily unavailable - please try again in a few minutes")
	ErrServer           = errors.New("YouTube API server error - please try again later")
	ErrUnexpectedStatus = errors.New("YouTube API error")
)

// APIError describes a non-200 response from the Data API.
type APIError struct {
	StatusCode int
	Reason     string // errors[0].reason from the response body, when present
	Err        error
}

func (e *APIError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%v (status %d, %s)", e.Err, e.StatusCode, e.Reason)
	}
	return fmt.Sprintf("%v (status %d)", e.Err, e.StatusCode)
}

func (e *APIError) Unwrap() error { return e.Err }

type apiErrorBody struct {
	Error struct {
		Errors []struct {
			Reason string `json:"reason"`
		} `json:"errors"`
	} `json:"error"`
}

func (c *Client) handleAPIError(statusCode int, body []byte) error {
	var parsed apiErrorBody
	_ = json.Unmarshal(body, &parsed)
	reason := ""
	if len(parsed.Error.Errors) > 0 {
		reason = parsed.Error.Errors[0].Reason
	}

	var sentinel error
	switch {
	case reason == "quotaExceeded" || reason == "dailyLimitExceeded":
		sentinel = ErrQuotaExceeded
	case reason == "keyInvalid" || reason == "keyExpired":
		sentinel = ErrUnauthorized
	case statusCode == http.StatusUnauthorized:
		sentinel = ErrUnauthorized
	case statusCode == http.StatusForbidden:
		sentinel = ErrForbidden
	case statusCode == http.StatusTooManyRequests:
		sentinel = ErrRateLimited
	case statusCode == http.StatusServiceUnavailable:
		sentinel = ErrUnavailable
	case statusCode == http.StatusInternalServerError, statusCode == http.StatusBadGateway, statusCode == http.StatusGatewayTimeout:
		sentinel = ErrServer
	default:
		sentinel = ErrUnexpectedStatus
	}

	return &APIError{StatusCode: statusCode, Reason: reason, Err: sentinel}
}
