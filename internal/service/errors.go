package service

import "github.com/pkg/errors"

type ErrorCode string

const (
	ErrorCodeNotFound      ErrorCode = "NOT_FOUND"
	ErrorCodeUnspecified   ErrorCode = "UNSPECIFIED"
	ErrorCodeInvalidBody   ErrorCode = "INVALID_BODY"
	ErrorCodeUnauthorized  ErrorCode = "UNAUTHORIZED"
	ErrorCodeForbidden     ErrorCode = "FORBIDDEN"
	ErrorCodeAlreadyExists ErrorCode = "ALREADY_EXISTS"
	ErrorCodeLastOwner     ErrorCode = "LAST_OWNER"
	ErrorCodeNoTeam        ErrorCode = "NO_TEAM"
)

type Error struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

func NewError(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

func (e *Error) Error() string {
	return e.Message
}

// asError extracts the *Error a transaction callback returned, if any.
// Any other error is reported as UNSPECIFIED with the given message.
func asError(err error, fallback string) *Error {
	if err == nil {
		return nil
	}
	var res *Error
	if errors.As(err, &res) {
		return res
	}
	return NewError(ErrorCodeUnspecified, fallback)
}
