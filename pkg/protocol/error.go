package protocol

// ErrorCode classifies a server-reported failure.
type ErrorCode string

const (
	CodeHandlerNotFound ErrorCode = "handler-not-found" // no handler bound for ref+event
	CodeHandlerPanic    ErrorCode = "handler-panic"     // handler panicked; session still alive
	CodeRateLimited     ErrorCode = "rate-limited"      // client sending events too fast
	CodeBadMessage      ErrorCode = "bad-message"       // message failed to decode or validate
	CodeResumeExpired   ErrorCode = "resume-expired"    // resume token unknown or too old
)

// ErrorMsg reports a failure to the client. Fatal means the server
// closes the connection after sending it.
type ErrorMsg struct {
	Type    MsgType   `json:"type"`
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Fatal   bool      `json:"fatal,omitempty"`
}

// NewError builds a non-fatal error message.
func NewError(code ErrorCode, message string) *ErrorMsg {
	return &ErrorMsg{Type: MsgError, Code: code, Message: message}
}

// NewFatalError builds an error message after which the connection
// closes.
func NewFatalError(code ErrorCode, message string) *ErrorMsg {
	return &ErrorMsg{Type: MsgError, Code: code, Message: message, Fatal: true}
}

// Error implements the error interface so an ErrorMsg can travel
// through error returns on the client side.
func (m *ErrorMsg) Error() string {
	if m.Fatal {
		return "fatal: " + string(m.Code) + ": " + m.Message
	}
	return string(m.Code) + ": " + m.Message
}
