package errs

import (
	"bytes"
	"errors"
	"fmt"
)

type Error interface {
	Is(err error) bool
	Wrap() error
	WrapMsg(msg string, kv ...any) error
	error
}

func New(s string, kv ...any) Error {
	return &errorString{s: toString(s, kv)}
}

type errorString struct {
	s string
}

func (e *errorString) Is(err error) bool {
	if err == nil {
		return false
	}
	var t *errorString
	if !errors.As(err, &t) {
		return false
	}
	return e.s == t.s
}

func (e *errorString) Error() string { return e.s }

func (e *errorString) Wrap() error { return Wrap(e) }

func (e *errorString) WrapMsg(msg string, kv ...any) error {
	return WrapMsg(e, msg, kv...)
}

type ErrWrapper interface {
	Unwrap() error
	error
}

func NewErrorWrapper(err error, s string) ErrWrapper {
	return &errorWrapper{err: err, s: s}
}

type errorWrapper struct {
	err error
	s   string
}

func (e *errorWrapper) Unwrap() error { return e.err }

func (e *errorWrapper) Error() string {
	if e.s == "" {
		return e.err.Error()
	}
	return e.s + ": " + e.err.Error()
}

// toString 拼接 msg 与 key=value 对
func toString(s string, kv []any) string {
	var buf bytes.Buffer
	buf.WriteString(s)
	for i := 0; i < len(kv); i += 2 {
		if buf.Len() > 0 {
			buf.WriteString(", ")
		}
		fmt.Fprint(&buf, kv[i])
		buf.WriteString("=")
		if i+1 < len(kv) {
			fmt.Fprint(&buf, kv[i+1])
		} else {
			buf.WriteString("<nil>")
		}
	}
	return buf.String()
}
