package rpc

import (
	"encoding/json"
	"fmt"
)

// Version is the JSON-RPC protocol version. Every message carries it and
// decoding rejects anything else.
const Version = "2.0"

// Request is a JSON-RPC 2.0 request or notification. A nil ID marks a
// notification: the peer must not reply to it.
type Request struct {
	Method string
	Params *Value
	ID     *Value
}

// IsNotification reports whether the request carries no id and therefore
// expects no response.
func (r *Request) IsNotification() bool { return r.ID == nil }

// Response is a JSON-RPC 2.0 response. Exactly one of Result/Error is set.
type Response struct {
	Result *Value
	Error  *Error
	ID     *Value
}

// NewResultResponse builds a success response for the given request id.
func NewResultResponse(id *Value, result Value) *Response {
	return &Response{Result: &result, ID: id}
}

// NewErrorResponse builds an error response for the given request id. The
// id may be nil when the request id could not be determined (it encodes as
// null, as the protocol requires for parse failures).
func NewErrorResponse(id *Value, rpcErr *Error) *Response {
	return &Response{Error: rpcErr, ID: id}
}

type wireRequest struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  *Value `json:"params,omitempty"`
	ID      *Value `json:"id,omitempty"`
}

type wireResponse struct {
	JSONRPC string `json:"jsonrpc"`
	Result  *Value `json:"result,omitempty"`
	Error   *Error `json:"error,omitempty"`
	ID      *Value `json:"id"`
}

// DecodeRequest parses a request body. Failures — invalid JSON, a missing
// or foreign protocol version — are reported as a ParseError-coded *Error
// so callers can return them on the wire directly.
func DecodeRequest(data []byte) (*Request, error) {
	var w wireRequest
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, Errorf(CodeParseError, "invalid JSON: %v", err)
	}
	if w.JSONRPC != Version {
		return nil, Errorf(CodeParseError, "unsupported protocol version %q", w.JSONRPC)
	}
	return &Request{Method: w.Method, Params: w.Params, ID: w.ID}, nil
}

// EncodeRequest serializes a request, stamping the protocol version.
func EncodeRequest(r *Request) ([]byte, error) {
	w := wireRequest{JSONRPC: Version, Method: r.Method, Params: r.Params, ID: r.ID}
	data, err := json.Marshal(w)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	return data, nil
}

// DecodeResponse parses a response body, enforcing the protocol version and
// that exactly one of result/error is present.
func DecodeResponse(data []byte) (*Response, error) {
	var w wireResponse
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, Errorf(CodeParseError, "invalid JSON: %v", err)
	}
	if w.JSONRPC != Version {
		return nil, Errorf(CodeParseError, "unsupported protocol version %q", w.JSONRPC)
	}
	if (w.Result == nil) == (w.Error == nil) {
		return nil, Errorf(CodeParseError, "response must carry exactly one of result or error")
	}
	return &Response{Result: w.Result, Error: w.Error, ID: w.ID}, nil
}

// EncodeResponse serializes a response, stamping the protocol version. A
// response with both or neither of result/error set is a programming error
// and refuses to encode.
func EncodeResponse(r *Response) ([]byte, error) {
	if (r.Result == nil) == (r.Error == nil) {
		return nil, fmt.Errorf("encode response: exactly one of result or error must be set")
	}
	w := wireResponse{JSONRPC: Version, Result: r.Result, Error: r.Error, ID: r.ID}
	data, err := json.Marshal(w)
	if err != nil {
		return nil, fmt.Errorf("encode response: %w", err)
	}
	return data, nil
}
