package clog

import (
	"connectrpc.com/connect"
)

// Level is the severity a response outcome should be logged at. It is
// deliberately smaller than slog's scale: outcomes are either routine,
// suspicious, or broken.
type Level int

const (
	LevelDebug Level = iota + 1
	LevelInfo
	LevelWarn
	LevelError
)

// HTTPStatusToLevel maps a response status to a log level. Client aborts
// (499) are routine, client errors are warnings, server errors are errors.
func HTTPStatusToLevel(status int) Level {
	switch {
	case status >= 100 && status < 400, status == 499:
		return LevelInfo
	case status >= 400 && status < 500:
		return LevelWarn
	default:
		return LevelError
	}
}

// ConnectCodeToLevel maps an RPC-style error code to a log level. Codes
// that signal a caller mistake or an expected outcome log at info; only
// codes that mean the service itself misbehaved log at error. Stack
// capture keys off this mapping too.
func ConnectCodeToLevel(code connect.Code) Level {
	switch code {
	case connect.CodeCanceled,
		connect.CodeInvalidArgument,
		connect.CodeDeadlineExceeded,
		connect.CodeNotFound,
		connect.CodeAlreadyExists,
		connect.CodePermissionDenied,
		connect.CodeFailedPrecondition,
		connect.CodeAborted,
		connect.CodeOutOfRange,
		connect.CodeUnauthenticated:
		return LevelInfo
	case connect.CodeUnknown,
		connect.CodeResourceExhausted,
		connect.CodeUnimplemented,
		connect.CodeInternal,
		connect.CodeUnavailable,
		connect.CodeDataLoss:
		return LevelError
	}
	return LevelError
}
