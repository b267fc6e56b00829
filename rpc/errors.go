package rpc

import "fmt"

// ErrorCode is a JSON-RPC 2.0 error code. The standard codes below are part
// of the wire contract and must not change.
type ErrorCode int

const (
	// CodeParseError means the server received invalid JSON.
	CodeParseError ErrorCode = -32700
	// CodeInvalidRequest means the JSON was not a valid request object.
	CodeInvalidRequest ErrorCode = -32600
	// CodeMethodNotFound means the method does not exist or is unavailable.
	CodeMethodNotFound ErrorCode = -32601
	// CodeInvalidParams means the method parameters were invalid.
	CodeInvalidParams ErrorCode = -32602
	// CodeInternalError means the server hit an internal JSON-RPC error.
	CodeInternalError ErrorCode = -32603
	// CodeServerError heads the reserved implementation-defined band
	// (-32000 to -32099) used for application-level failures.
	CodeServerError ErrorCode = -32000
)

// Error is a JSON-RPC 2.0 error object.
type Error struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("jsonrpc error %d: %s", e.Code, e.Message)
}

// NewError builds an Error with the given code.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Errorf builds an Error with a formatted message.
func Errorf(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// ServerError builds an Error in the implementation-defined band.
func ServerError(message string) *Error {
	return &Error{Code: CodeServerError, Message: message}
}
