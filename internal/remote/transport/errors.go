package transport

import (
	"errors"
	"fmt"
)

// Kind classifies a failed call.
type Kind int

const (
	// KindNetworkUnreachable means the robot could not be reached at all.
	KindNetworkUnreachable Kind = iota + 1
	// KindTimeout means the call did not complete within its deadline.
	KindTimeout
	// KindHTTPStatus means the robot answered with a non-2xx status.
	KindHTTPStatus
	// KindMalformedResponse means a 2xx body could not be decoded.
	KindMalformedResponse
	// KindApplicationError means a well-formed body reported a failure.
	KindApplicationError
)

func (k Kind) String() string {
	switch k {
	case KindNetworkUnreachable:
		return "NetworkUnreachable"
	case KindTimeout:
		return "Timeout"
	case KindHTTPStatus:
		return "HTTPStatus"
	case KindMalformedResponse:
		return "MalformedResponse"
	case KindApplicationError:
		return "ApplicationError"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Error is the only error type returned by Client.Call.
type Error struct {
	Kind Kind

	Method string
	Path   string

	// StatusCode is set for KindHTTPStatus.
	StatusCode int

	// Message is the robot's own description of the failure, taken from the
	// "error" or "detail" field of the response body. It may be empty.
	Message string

	// Err is the underlying cause, if any.
	Err error
}

func (e *Error) Error() string {
	prefix := fmt.Sprintf("%s %s", e.Method, e.Path)
	switch {
	case e.Kind == KindHTTPStatus && e.Message != "":
		return fmt.Sprintf("%s: status %d: %s", prefix, e.StatusCode, e.Message)
	case e.Kind == KindHTTPStatus:
		return fmt.Sprintf("%s: status %d", prefix, e.StatusCode)
	case e.Message != "":
		return fmt.Sprintf("%s: %s: %s", prefix, e.Kind, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", prefix, e.Kind, e.Err)
	default:
		return fmt.Sprintf("%s: %s", prefix, e.Kind)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// AsError returns the *Error in err's chain, if any.
func AsError(err error) (*Error, bool) {
	var te *Error
	if errors.As(err, &te) {
		return te, true
	}
	return nil, false
}

// IsKind reports whether err is an *Error of kind k.
func IsKind(err error, k Kind) bool {
	te, ok := AsError(err)
	return ok && te.Kind == k
}

// ServerMessage returns the robot-provided message carried by err, or "".
func ServerMessage(err error) string {
	if te, ok := AsError(err); ok {
		return te.Message
	}
	return ""
}

// ApplicationError builds a KindApplicationError for a decoded response that
// reported failure in its payload.
func ApplicationError(method, path, message string) *Error {
	return &Error{Kind: KindApplicationError, Method: method, Path: path, Message: message}
}
