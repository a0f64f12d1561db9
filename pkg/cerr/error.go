package cerr

import (
	"errors"
	"fmt"
	"runtime"
)

type Error struct {
	Code  Code
	Msg   string // message returned to the user together with the code
	Err   error  // underlying error kept for the log
	Stack string // stack trace, captured for severe codes only
	Hint  string // remediation hint shown to the user
}

func NewError(code Code, msg string, underlying error) *Error {
	err := &Error{
		Code: code,
		Msg:  msg,
		Err:  underlying,
	}
	if code.severe() {
		stackTrace := make([]byte, 2048)
		n := runtime.Stack(stackTrace, false)
		err.Stack = string(stackTrace[0:n])
	}
	return err
}

// NewErrorWithHint attaches a remediation hint shown alongside the message.
func NewErrorWithHint(code Code, msg string, underlying error, hint string) *Error {
	err := NewError(code, msg, underlying)
	err.Hint = hint
	return err
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("[%s] %s", e.Code.String(), e.Msg)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code.String(), e.Msg, e.Err.Error())
}

func (e *Error) Unwrap() error {
	return e.Err
}

func IsCode(err error, code Code) bool {
	var cerr *Error
	if errors.As(err, &cerr) {
		return cerr.Code == code
	}
	return false
}

// CodeOf returns the code carried by err, or Unknown for foreign errors.
func CodeOf(err error) Code {
	if err == nil {
		return OK
	}
	var cerr *Error
	if errors.As(err, &cerr) {
		return cerr.Code
	}
	return Unknown
}

// HintOf returns the remediation hint carried by err, if any.
func HintOf(err error) string {
	var cerr *Error
	if errors.As(err, &cerr) {
		return cerr.Hint
	}
	return ""
}
