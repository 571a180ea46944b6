package apiclient

import (
	"errors"
	"fmt"
	"net/http"
)

const (
	transientNetworkErrorTemplateConstant = "%s failed after %d attempt(s): %v"
	authorizationErrorTemplateConstant    = "%s denied with status %d"
	notFoundErrorTemplateConstant         = "%s returned status %d"
	unexpectedStatusErrorTemplateConstant = "%s returned unexpected status %d: %s"
	retryableStatusErrorTemplateConstant  = "retryable status %d"
	maximumErrorBodyLengthConstant        = 256
)

// TransientNetworkError reports an operation that kept failing with retryable conditions until the attempt ceiling.
type TransientNetworkError struct {
	Operation string
	Attempts  int
	Cause     error
}

// Error describes the exhausted operation.
func (transientError TransientNetworkError) Error() string {
	return fmt.Sprintf(transientNetworkErrorTemplateConstant, transientError.Operation, transientError.Attempts, transientError.Cause)
}

// Unwrap exposes the last attempt failure.
func (transientError TransientNetworkError) Unwrap() error {
	return transientError.Cause
}

// AuthorizationError reports a 401 or 403 response.
type AuthorizationError struct {
	Operation  string
	StatusCode int
}

// Error describes the denied operation.
func (authorizationError AuthorizationError) Error() string {
	return fmt.Sprintf(authorizationErrorTemplateConstant, authorizationError.Operation, authorizationError.StatusCode)
}

// NotFoundError reports a 404 response.
type NotFoundError struct {
	Operation string
}

// Error describes the missing resource.
func (notFoundError NotFoundError) Error() string {
	return fmt.Sprintf(notFoundErrorTemplateConstant, notFoundError.Operation, http.StatusNotFound)
}

// UnexpectedStatusError reports a non-retryable status outside the success range.
type UnexpectedStatusError struct {
	Operation  string
	StatusCode int
	Body       string
}

// Error describes the unexpected status.
func (statusError UnexpectedStatusError) Error() string {
	return fmt.Sprintf(unexpectedStatusErrorTemplateConstant, statusError.Operation, statusError.StatusCode, statusError.Body)
}

type retryableStatusError struct {
	statusCode int
}

func (statusError retryableStatusError) Error() string {
	return fmt.Sprintf(retryableStatusErrorTemplateConstant, statusError.statusCode)
}

// IsNotFound reports whether err carries a NotFoundError.
func IsNotFound(err error) bool {
	var notFoundError NotFoundError
	return errors.As(err, &notFoundError)
}

// IsAccessDenied reports whether err means the resource is not reachable with the current credentials.
// Hosts answer 404 for resources the caller may not see, so NotFoundError counts as denial.
func IsAccessDenied(err error) bool {
	var authorizationError AuthorizationError
	if errors.As(err, &authorizationError) {
		return true
	}
	return IsNotFound(err)
}

// IsTransient reports whether err carries a TransientNetworkError.
func IsTransient(err error) bool {
	var transientError TransientNetworkError
	return errors.As(err, &transientError)
}

func truncateBody(body []byte) string {
	if len(body) <= maximumErrorBodyLengthConstant {
		return string(body)
	}
	return string(body[:maximumErrorBodyLengthConstant])
}
