package wire

import (
	"encoding/json"
	"fmt"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Response is the body produced exactly once per completed command. On
// success Result carries the handler output; on error Message carries the
// handler failure text. ID always echoes the originating correlation id.
type Response struct {
	Status  string          `json:"status"`
	Result  json.RawMessage `json:"result,omitempty"`
	Message string          `json:"message,omitempty"`
	ID      string          `json:"id"`
}

// SuccessResponse builds a success body around an arbitrary result value.
func SuccessResponse(id string, result any) (Response, error) {
	raw, err := json.Marshal(result)
	if err != nil {
		return Response{}, fmt.Errorf("%w: %v", ErrBadResponse, err)
	}
	return Response{Status: StatusSuccess, Result: raw, ID: id}, nil
}

// ErrorResponse builds an error body preserving the correlation id.
func ErrorResponse(id, message string) Response {
	return Response{Status: StatusError, Message: message, ID: id}
}

// MarshalResponse serializes a response body to its raw JSON form.
func MarshalResponse(r Response) ([]byte, error) {
	raw, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadResponse, err)
	}
	return raw, nil
}

// UnmarshalResponse parses a raw response body and checks its contract.
func UnmarshalResponse(raw []byte) (Response, error) {
	var r Response
	if err := json.Unmarshal(raw, &r); err != nil {
		return Response{}, fmt.Errorf("%w: %v", ErrBadResponse, err)
	}
	if r.Status != StatusSuccess && r.Status != StatusError {
		return Response{}, fmt.Errorf("%w: unknown status %q", ErrBadResponse, r.Status)
	}
	return r, nil
}
