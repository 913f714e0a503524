// Package errcode holds the numeric reply codes the gateway echoes into
// error documents, matching the subset of the document-database error
// taxonomy this gateway needs to stay compatible with client drivers.
package errcode

import "fmt"

// Code is the integer value carried in an error reply's "code" field.
type Code int32

const (
	InternalError      Code = 1
	FailedToParse      Code = 9
	CommandNotFound    Code = 59
	BackendFailed      Code = 2
	BackendUnavailable Code = 189
	TypeMismatch       Code = 14
	Unsupported        Code = 115
)

// Error pairs a Code with the message text that goes into "errmsg".
type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string { return e.Message }

// New builds an *Error for the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}
