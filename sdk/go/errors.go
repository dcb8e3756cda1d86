package ifimgone

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Sentinel errors returned by the SDK.
var (
	// ErrNoToken is returned when Access is called without a token.
	ErrNoToken = fmt.Errorf("ifimgone: no sharing token provided")

	// ErrNotAuthorized is returned when a verification or token
	// submission is refused (wrong code, expired window, resolved
	// request, or an invalid/exhausted/revoked sharing token).
	ErrNotAuthorized = fmt.Errorf("ifimgone: not authorized")
)

// APIError represents a non-2xx error envelope from the API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("ifimgone: API error %d: %s", e.StatusCode, e.Message)
}

// apiErrorWrapper matches the API failure envelope.
type apiErrorWrapper struct {
	Success bool   `json:"success"`
	Message string `json:"error"`
}

func parseAPIError(statusCode int, body []byte) error {
	var wrapper apiErrorWrapper
	if err := json.Unmarshal(body, &wrapper); err == nil && wrapper.Message != "" {
		return &APIError{StatusCode: statusCode, Message: wrapper.Message}
	}
	return &APIError{StatusCode: statusCode, Message: string(body)}
}

// IsAPIError checks whether err is an APIError and returns it.
func IsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}
