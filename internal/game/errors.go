package game

import "fmt"

// ErrorCode is the closed set of wire-visible rejection codes.
type ErrorCode string

const (
	CodeConnection       ErrorCode = "connection_error"
	CodeAuth             ErrorCode = "auth_error"
	CodeValidation       ErrorCode = "validation_error"
	CodeState            ErrorCode = "state_error"
	CodeCapacity         ErrorCode = "capacity_error"
	CodeInvalidTarget    ErrorCode = "invalid_target"
	CodeItemNotAvailable ErrorCode = "item_not_available"
	CodeNotFound         ErrorCode = "not_found"
)

// Error is a typed rejection: an expected domain failure that is reported
// back to the acting connection and never crashes the coordinator.
type Error struct {
	Code    ErrorCode
	Message string
}

func (e *Error) Error() string {
	return string(e.Code) + ": " + e.Message
}

// Errorf builds a typed rejection with a formatted message.
func Errorf(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}
