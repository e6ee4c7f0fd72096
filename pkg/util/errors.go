package util

import (
	"errors"
	"strings"
)

// Error codes shared by the client and the wallet API.
const (
	CodeBadRequest = "400"
	CodeNetwork    = "NETWORK"
)

// CodedError is the {message, code} error shape the wallet API returns and the
// client reuses for its own validation failures.
type CodedError struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

func (e *CodedError) Error() string {
	if e.Code == "" {
		return e.Message
	}
	return e.Message + " (" + e.Code + ")"
}

// MissingParameter is the validation error returned before any side effect
// when a required argument is empty.
func MissingParameter() *CodedError {
	return NewCodedError(CodeBadRequest, "One of required parameters is missing")
}

// NewCodedError returns a *CodedError.
func NewCodedError(code, message string) *CodedError {
	return &CodedError{Message: message, Code: code}
}

// ErrorCode returns the code of the first CodedError in err's chain, or "".
func ErrorCode(err error) string {
	var ce *CodedError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ""
}

// IsUnauthorized reports whether err carries a 401-family code. The API
// suffixes the status with a reason, such as 401TOKEN_EXPIRED.
func IsUnauthorized(err error) bool {
	return strings.HasPrefix(ErrorCode(err), "401")
}

// CleanedUpAPIError strips wrapping noise so that only the API message reaches
// the terminal.
type CleanedUpAPIError struct {
	Err error
}

func (e CleanedUpAPIError) Error() string {
	var ce *CodedError
	if errors.As(e.Err, &ce) {
		if ce.Message == "" {
			return "request failed with code " + ce.Code
		}
		return ce.Message
	}
	return e.Err.Error()
}

func (e CleanedUpAPIError) Unwrap() error {
	return e.Err
}
