package common

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

type googleErrorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
		Errors  []struct {
			Reason string `json:"reason"`
		} `json:"errors"`
	} `json:"error"`
}

type GCPAPIError struct {
	StatusCode int
	Status     string
	Reason     string
	Message    string
}

func (e *GCPAPIError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("GCP request failed (%d %s): %s", e.StatusCode, e.Reason, e.Message)
	}
	return fmt.Sprintf("GCP request failed (%d): %s", e.StatusCode, e.Message)
}

// ParseGCPError reads Google's {"error": {...}} envelope, falling back to the
// raw body when it is absent.
func ParseGCPError(statusCode int, body []byte) error {
	apiErr := &GCPAPIError{StatusCode: statusCode, Message: strings.TrimSpace(string(body))}

	var envelope googleErrorResponse
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
		apiErr.Message = envelope.Error.Message
		apiErr.Status = envelope.Error.Status
		if len(envelope.Error.Errors) > 0 {
			apiErr.Reason = envelope.Error.Errors[0].Reason
		}
	}
	return apiErr
}

func statusIs(err error, code int) bool {
	var apiErr *GCPAPIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == code
	}
	return false
}

func IsNotFoundError(err error) bool {
	return statusIs(err, http.StatusNotFound)
}

func IsAlreadyExistsError(err error) bool {
	return statusIs(err, http.StatusConflict)
}

func IsUnauthorizedError(err error) bool {
	return statusIs(err, http.StatusUnauthorized) || statusIs(err, http.StatusForbidden)
}
