package realtime

import "fmt"

// Transport error codes. The numbering follows the codes the hosted video
// platform reports, so relay and client agree on them.
const (
	CodeInvalidToken    = 1004
	CodeConnectFailed   = 1006
	CodeNotConnected    = 1010
	CodePublisherFailed = 1013
	CodeSignalFailed    = 1500
	CodeSubscribeFailed = 1600
	CodeStreamNotFound  = 1601
)

// Error is a tagged transport failure.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("realtime error %d: %s", e.Code, e.Message)
}

// Errorf builds an *Error with a formatted message.
func Errorf(code int, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}
