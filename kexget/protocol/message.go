package protocol

import (
	"bytes"
	"errors"
	"fmt"
)

var (
	ErrUnrecognizedRequestType = errors.New("protocol unrecognized request type")
	ErrMalformedResponse       = errors.New("protocol malformed response")
)

// Resolver maps a requested path to resource bytes. It is total: a resolver
// always returns something, there is no not-found signal in the grammar.
type Resolver interface {
	Resolve(path []byte) []byte
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(path []byte) []byte

func (f ResolverFunc) Resolve(path []byte) []byte { return f(path) }

// ParseRequest splits data on the first ':' into TYPE and PARAMS. PARAMS may
// itself contain ':'. Without any ':' the whole input is TYPE and PARAMS is empty.
func ParseRequest(data []byte) Request {
	typ, params, found := bytes.Cut(data, []byte{Separator})
	if !found {
		return Request{Type: RequestType(data), Params: []byte{}}
	}
	return Request{Type: RequestType(typ), Params: params}
}

// EncodeRequest builds TYPE:PARAMS.
func EncodeRequest(typ RequestType, params []byte) []byte {
	out := make([]byte, 0, len(typ)+1+len(params))
	out = append(out, typ...)
	out = append(out, Separator)
	return append(out, params...)
}

// EncodeResponse builds OK:PATH:DATA. Neither PATH nor DATA is escaped.
func EncodeResponse(path, data []byte) []byte {
	out := make([]byte, 0, len(okToken)+len(path)+len(data)+2)
	out = append(out, okToken...)
	out = append(out, Separator)
	out = append(out, path...)
	out = append(out, Separator)
	return append(out, data...)
}

// Respond produces the response for one raw request. For an unrecognized
// TYPE it returns ErrorResponse together with ErrUnrecognizedRequestType;
// the caller still sends the response and keeps the connection open.
func Respond(data []byte, r Resolver) ([]byte, error) {
	req := ParseRequest(data)
	switch req.Type {
	case RequestTypeGet:
		return EncodeResponse(req.Params, r.Resolve(req.Params)), nil
	default:
		return ErrorResponse, fmt.Errorf("%w: %q", ErrUnrecognizedRequestType, string(req.Type))
	}
}

// ParseResponse decodes a response to a request for path. Since PATH and DATA
// are unescaped, the known request path is used to find where DATA starts.
func ParseResponse(path, raw []byte) (Response, error) {
	if IsError(raw) {
		return Response{}, nil
	}
	prefix := EncodeResponse(path, nil)
	if !bytes.HasPrefix(raw, prefix) {
		return Response{}, ErrMalformedResponse
	}
	return Response{OK: true, Path: raw[len(okToken)+1 : len(prefix)-1], Data: raw[len(prefix):]}, nil
}
