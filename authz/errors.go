package authz

import (
	"fmt"

	"github.com/pkg/errors"

	authzwire "github.com/outofforest/walletgate/authz/wire"
)

// Error is the expected failure of the request, reported to the client.
type Error struct {
	Code    authzwire.ErrorCode
	Message string
}

// NewError creates new error.
func NewError(code authzwire.ErrorCode, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is reports errors carrying the same code as equal.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// Code returns the error code of the error. Unknown errors are reported as Failure.
func Code(err error) authzwire.ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return authzwire.Failure
}

// ToFailure converts error to the failure response.
func ToFailure(err error) *authzwire.AuthorizeTransactionsFailure {
	var e *Error
	if errors.As(err, &e) {
		return &authzwire.AuthorizeTransactionsFailure{
			Code:    e.Code,
			Message: e.Message,
		}
	}
	return &authzwire.AuthorizeTransactionsFailure{
		Code:    authzwire.Failure,
		Message: "server error: " + err.Error(),
	}
}
