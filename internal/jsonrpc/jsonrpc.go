// Package jsonrpc implements JSON-RPC 2.0 framing over a line-delimited
// byte pipe (spec.md §4.1/§6.2): one UTF-8 JSON object per '\n'-terminated
// line, in either direction.
package jsonrpc

import (
	"bufio"
	"encoding/json"
	"fmt"
)

// Request is an outbound JSON-RPC 2.0 request. Omitting ID makes it a
// notification.
type Request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id,omitempty"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// Response is an inbound JSON-RPC 2.0 response (success or error).
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// Error is a JSON-RPC 2.0 error object.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("jsonrpc error %d: %s", e.Code, e.Message)
}

// NewRequest builds a Request with the 2.0 envelope filled in.
func NewRequest(id int64, method string, params any) Request {
	return Request{JSONRPC: "2.0", ID: id, Method: method, Params: params}
}

// Encode marshals v and appends a single trailing newline, ready to be
// written to the peer's stdin.
func Encode(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// WriteLine marshals v and writes it as one '\n'-terminated line, flushing
// the writer so the peer sees it immediately.
func WriteLine(w *bufio.Writer, v any) error {
	line, err := Encode(v)
	if err != nil {
		return err
	}
	if _, err := w.Write(line); err != nil {
		return err
	}
	return w.Flush()
}

// ReadLine reads one '\n'-terminated line and attempts to decode it as a
// Response. ok is false when the line is empty or does not decode into a
// Response (the caller should treat it as stray output and move on per
// spec.md §4.2); a JSON object without an id still yields ok, rather than
// treating it as a hard error — only I/O errors from the reader itself are
// returned as err.
func ReadLine(r *bufio.Reader) (resp Response, raw []byte, ok bool, err error) {
	line, err := r.ReadBytes('\n')
	if err != nil && len(line) == 0 {
		return Response{}, nil, false, err
	}
	// A trailing read without a newline (EOF) still carries a final line.
	trimmed := trimNewline(line)
	if len(trimmed) == 0 {
		return Response{}, trimmed, false, nil
	}
	if jsonErr := json.Unmarshal(trimmed, &resp); jsonErr != nil {
		return Response{}, trimmed, false, nil
	}
	return resp, trimmed, true, nil
}

func trimNewline(line []byte) []byte {
	n := len(line)
	for n > 0 && (line[n-1] == '\n' || line[n-1] == '\r') {
		n--
	}
	return line[:n]
}
