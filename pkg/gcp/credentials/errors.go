package credentials

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

type Kind string

const (
	KindFailedToLoad       Kind = "failed_to_load"
	KindInvalidCredentials Kind = "invalid_credentials"
	KindProfileNotFound    Kind = "profile_not_found"
	KindKeyDecode          Kind = "key_decode"
	KindSchemeUnavailable  Kind = "scheme_unavailable"
	KindHTTP               Kind = "http"
)

// Error is returned by every loader and token operation in this package.
// Source names the file, variable or endpoint involved, when there is one.
type Error struct {
	Kind    Kind
	Source  string
	Message string
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Message)
	if e.Source != "" {
		fmt.Fprintf(&b, " (%s)", e.Source)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, source, message string, err error) *Error {
	return &Error{Kind: kind, Source: source, Message: message, Err: err}
}

func FailedToLoad(source string, err error) error {
	return newError(KindFailedToLoad, source, "failed to load credentials", err)
}

func InvalidCredentials(source, message string) error {
	return newError(KindInvalidCredentials, source, "invalid credentials: "+message, nil)
}

func ProfileNotFound(source string) error {
	return newError(KindProfileNotFound, source, "no gcloud [core] profile with account and project", nil)
}

// IsKind reports whether any error in err's chain is an *Error of the given kind.
// An *HTTPError counts as KindHTTP.
func IsKind(err error, kind Kind) bool {
	var credErr *Error
	if errors.As(err, &credErr) && credErr.Kind == kind {
		return true
	}
	if kind == KindHTTP {
		var httpErr *HTTPError
		return errors.As(err, &httpErr)
	}
	return false
}

// HTTPError is a non-2xx reply from the token endpoint. Body is kept verbatim.
type HTTPError struct {
	StatusCode int
	Status     string
	URL        string
	Body       string
}

func (e *HTTPError) Error() string {
	status := e.Status
	if status == "" {
		status = fmt.Sprintf("%d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("token request to %s failed with %s: %s", e.URL, status, e.Body)
}
