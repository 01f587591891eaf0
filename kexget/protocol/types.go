package protocol

import "bytes"

// RequestType is the TYPE token of a request.
type RequestType string

const (
	RequestTypeGet RequestType = "GET"
)

// Separator splits TYPE from PARAMS, and the fields of a success response.
const Separator = ':'

var (
	okToken = []byte("OK")

	// ErrorResponse is the complete body of a failure response.
	ErrorResponse = []byte("ERROR")
)

// Request is a parsed TYPE:PARAMS message.
type Request struct {
	Type   RequestType
	Params []byte
}

// Response is a decoded response. Path and Data are only set when OK is true.
type Response struct {
	OK   bool
	Path []byte
	Data []byte
}

// Known reports whether the request type has a handler.
func (t RequestType) Known() bool {
	return t == RequestTypeGet
}

func (t RequestType) String() string {
	if t.Known() {
		return string(t)
	}
	return "UNKNOWN"
}

// IsError reports whether raw is the failure response.
func IsError(raw []byte) bool {
	return bytes.Equal(raw, ErrorResponse)
}
