package cerr

import (
	"net/http"

	"connectrpc.com/connect"
)

//go:generate go tool stringer -type=Code -output=code_string.go code.go
type Code int

const (
	OK                 = Code(0)
	Canceled           = Code(1)
	Unknown            = Code(2)
	InvalidArgument    = Code(3)
	DeadlineExceeded   = Code(4)
	NotFound           = Code(5)
	AlreadyExists      = Code(6)
	PermissionDenied   = Code(7)
	ResourceExhausted  = Code(8)
	FailedPrecondition = Code(9)
	Aborted            = Code(10)
	OutOfRange         = Code(11)
	Unimplemented      = Code(12)
	Internal           = Code(13)
	Unavailable        = Code(14)
	DataLoss           = Code(15)
	Unauthenticated    = Code(16)
)

var codeToConnectCodeMap = map[Code]connect.Code{
	Canceled:           connect.CodeCanceled,
	Unknown:            connect.CodeUnknown,
	InvalidArgument:    connect.CodeInvalidArgument,
	DeadlineExceeded:   connect.CodeDeadlineExceeded,
	NotFound:           connect.CodeNotFound,
	AlreadyExists:      connect.CodeAlreadyExists,
	PermissionDenied:   connect.CodePermissionDenied,
	ResourceExhausted:  connect.CodeResourceExhausted,
	FailedPrecondition: connect.CodeFailedPrecondition,
	Aborted:            connect.CodeAborted,
	OutOfRange:         connect.CodeOutOfRange,
	Unimplemented:      connect.CodeUnimplemented,
	Internal:           connect.CodeInternal,
	Unavailable:        connect.CodeUnavailable,
	DataLoss:           connect.CodeDataLoss,
	Unauthenticated:    connect.CodeUnauthenticated,
}

var codeToHTTPCodeMap = map[Code]int{
	OK:                 http.StatusOK,
	Canceled:           499,
	Unknown:            http.StatusInternalServerError,
	InvalidArgument:    http.StatusBadRequest,
	DeadlineExceeded:   http.StatusGatewayTimeout,
	NotFound:           http.StatusNotFound,
	AlreadyExists:      http.StatusConflict,
	PermissionDenied:   http.StatusForbidden,
	ResourceExhausted:  http.StatusTooManyRequests,
	FailedPrecondition: http.StatusBadRequest,
	Aborted:            http.StatusConflict,
	OutOfRange:         http.StatusBadRequest,
	Unimplemented:      http.StatusNotImplemented,
	Internal:           http.StatusInternalServerError,
	Unavailable:        http.StatusServiceUnavailable,
	DataLoss:           http.StatusInternalServerError,
	Unauthenticated:    http.StatusUnauthorized,
}

func (c Code) ConnectCode() connect.Code {
	if c == OK {
		return 0
	}
	cc, ok := codeToConnectCodeMap[c]
	if !ok {
		return connect.CodeUnknown
	}
	return cc
}

func (c Code) HTTPCode() int {
	hc, ok := codeToHTTPCodeMap[c]
	if !ok {
		return http.StatusInternalServerError
	}
	return hc
}

// ParseCode maps a backend error-code string (e.g. "NOT_FOUND",
// "FailedPrecondition") back to a Code. Unrecognized strings map to Unknown.
func ParseCode(s string) Code {
	if c, ok := nameToCodeMap[canonicalName(s)]; ok {
		return c
	}
	return Unknown
}

var nameToCodeMap = func() map[string]Code {
	m := make(map[string]Code, len(codeToConnectCodeMap)+1)
	for c := OK; c <= Unauthenticated; c++ {
		m[canonicalName(c.String())] = c
	}
	return m
}()

func canonicalName(s string) string {
	b := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch {
		case ch >= 'A' && ch <= 'Z':
			b = append(b, ch+'a'-'A')
		case ch == '_' || ch == '-' || ch == ' ':
			// skip separators so NOT_FOUND == NotFound
		default:
			b = append(b, ch)
		}
	}
	return string(b)
}
