package stack

import (
	"fmt"
	"runtime"
	"strings"
)

const maxDepth = 16

// Error 附带调用栈的错误包装
type Error struct {
	err   error
	trace string
}

// New 包装 err 并采集调用栈，skip 为跳过的帧数
func New(err error, skip int) error {
	if err == nil {
		return nil
	}
	return &Error{err: err, trace: callers(skip)}
}

func (e *Error) Error() string {
	if e.trace == "" {
		return e.err.Error()
	}
	return e.err.Error() + " | trace: " + e.trace
}

func (e *Error) Unwrap() error { return e.err }

func callers(skip int) string {
	pcs := make([]uintptr, maxDepth)
	n := runtime.Callers(skip, pcs)
	if n == 0 {
		return ""
	}
	frames := runtime.CallersFrames(pcs[:n])
	var sb strings.Builder
	for {
		frame, more := frames.Next()
		if frame.Function == "" || strings.HasPrefix(frame.Function, "runtime.") {
			break
		}
		if sb.Len() > 0 {
			sb.WriteString(" -> ")
		}
		sb.WriteString(fmt.Sprintf("%s:%d", shortFile(frame.File), frame.Line))
		if !more {
			break
		}
	}
	return sb.String()
}

func shortFile(file string) string {
	if i := strings.LastIndexByte(file, '/'); i >= 0 {
		if j := strings.LastIndexByte(file[:i], '/'); j >= 0 {
			return file[j+1:]
		}
	}
	return file
}
