package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// APIError is the decoded error envelope of a non-2xx response.
type APIError struct {
	Status  int
	Code    string
	Domain  string
	Message string
	Details map[string]any
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}
	if e.Code != "" && e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("api error: %d", e.Status)
}

// IsStateConflict reports a 409: the entity moved on and the caller should
// refresh rather than retry.
func (e *APIError) IsStateConflict() bool {
	return e != nil && e.Status == http.StatusConflict
}

func (e *APIError) IsRetryable() bool {
	if e == nil {
		return false
	}
	if retry, ok := e.Details["retryable"].(bool); ok {
		return retry
	}
	return e.Status >= http.StatusInternalServerError
}

// CurrentStatus returns details.current_status of an INVALID_STATUS error.
func (e *APIError) CurrentStatus() string {
	if e == nil {
		return ""
	}
	s, _ := e.Details["current_status"].(string)
	return s
}

// IsRetryable reports whether err is worth retrying: transport failures and
// server-side errors. Cancellation by the caller is not.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.IsRetryable()
	}
	return true
}

// IsStateConflict reports whether err is a 409 from the API.
func IsStateConflict(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.IsStateConflict()
}

type errorEnvelope struct {
	Error struct {
		Code    string         `json:"code"`
		Domain  string         `json:"domain"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	var env errorEnvelope
	if err := json.Unmarshal(body, &env); err == nil && env.Error.Code != "" {
		apiErr.Code = env.Error.Code
		apiErr.Domain = env.Error.Domain
		apiErr.Message = env.Error.Message
		apiErr.Details = env.Error.Details
		return apiErr
	}
	apiErr.Message = "api error: " + resp.Status
	return apiErr
}
