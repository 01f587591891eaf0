package protocol

import (
	"bytes"
	"errors"
	"io"
	"testing"
)

const secret = "Some secret something that probably shouldn't be sent in plaintext."

func staticResolver() Resolver {
	return ResolverFunc(func([]byte) []byte { return []byte(secret) })
}

func TestParseRequest(t *testing.T) {
	cases := []struct {
		in     string
		typ    RequestType
		params string
	}{
		{"GET:/some/secret/resource", RequestTypeGet, "/some/secret/resource"},
		{"GET:a:b:c", RequestTypeGet, "a:b:c"},
		{"GET:", RequestTypeGet, ""},
		{":/x", "", "/x"},
		{"GET", "GET", ""},
		{"", "", ""},
		{"POST:/x", "POST", "/x"},
	}
	for _, c := range cases {
		req := ParseRequest([]byte(c.in))
		if req.Type != c.typ || string(req.Params) != c.params {
			t.Fatalf("ParseRequest(%q) = (%q, %q), want (%q, %q)", c.in, req.Type, req.Params, c.typ, c.params)
		}
	}
}

func TestRequestRoundTrip(t *testing.T) {
	for _, path := range []string{"", "/a", "/a:b", "::", "/some/secret/resource", "\x00\xff"} {
		req := ParseRequest(EncodeRequest(RequestTypeGet, []byte(path)))
		if req.Type != RequestTypeGet || string(req.Params) != path {
			t.Fatalf("round trip of %q gave (%q, %q)", path, req.Type, req.Params)
		}
	}
}

func TestRespondGet(t *testing.T) {
	resp, err := Respond([]byte("GET:/some/secret/resource"), staticResolver())
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	want := "OK:/some/secret/resource:" + secret
	if string(resp) != want {
		t.Fatalf("got %q, want %q", resp, want)
	}
}

func TestRespondPassesParamsVerbatim(t *testing.T) {
	var seen []byte
	r := ResolverFunc(func(p []byte) []byte { seen = append([]byte(nil), p...); return []byte("d:a:t:a") })
	resp, err := Respond([]byte("GET:/x:y"), r)
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if string(seen) != "/x:y" {
		t.Fatalf("resolver saw %q", seen)
	}
	if string(resp) != "OK:/x:y:d:a:t:a" {
		t.Fatalf("unexpected response %q", resp)
	}
}

func TestRespondUnrecognized(t *testing.T) {
	for _, in := range []string{"POST:/x", "get:/x", "POST", ""} {
		resp, err := Respond([]byte(in), staticResolver())
		if !errors.Is(err, ErrUnrecognizedRequestType) {
			t.Fatalf("%q: expected ErrUnrecognizedRequestType, got %v", in, err)
		}
		if !bytes.Equal(resp, []byte("ERROR")) {
			t.Fatalf("%q: expected ERROR, got %q", in, resp)
		}
	}
}

func TestRespondBareType(t *testing.T) {
	resp, err := Respond([]byte("GET"), staticResolver())
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if string(resp) != "OK::"+secret {
		t.Fatalf("unexpected response %q", resp)
	}
}

func TestParseResponse(t *testing.T) {
	path := []byte("/a:b")
	resp, err := ParseResponse(path, EncodeResponse(path, []byte("x:y")))
	if err != nil {
		t.Fatalf("ParseResponse: %v", err)
	}
	if !resp.OK || string(resp.Path) != "/a:b" || string(resp.Data) != "x:y" {
		t.Fatalf("unexpected response %+v", resp)
	}

	resp, err = ParseResponse(path, []byte("ERROR"))
	if err != nil || resp.OK {
		t.Fatalf("ERROR: got %+v, %v", resp, err)
	}

	if _, err := ParseResponse(path, []byte("OK:/other:data")); !errors.Is(err, ErrMalformedResponse) {
		t.Fatalf("expected ErrMalformedResponse, got %v", err)
	}
}

func TestRequestTypeString(t *testing.T) {
	if RequestTypeGet.String() != "GET" || RequestType("POST").String() != "UNKNOWN" {
		t.Fatalf("unexpected String output")
	}
}

func TestFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	msgs := [][]byte{[]byte("GET:/a"), {}, bytes.Repeat([]byte("z"), 4096)}
	for _, m := range msgs {
		if err := WriteFrame(&buf, m); err != nil {
			t.Fatalf("WriteFrame: %v", err)
		}
	}
	for _, m := range msgs {
		out, err := ReadFrame(&buf)
		if err != nil {
			t.Fatalf("ReadFrame: %v", err)
		}
		if !bytes.Equal(out, m) {
			t.Fatalf("payload mismatch")
		}
	}
	if _, err := ReadFrame(&buf); err != io.EOF {
		t.Fatalf("expected io.EOF, got %v", err)
	}
}

func TestFrameErrors(t *testing.T) {
	if err := WriteFrame(io.Discard, make([]byte, MaxFramePayload+1)); !errors.Is(err, ErrFrameTooLarge) {
		t.Fatalf("expected ErrFrameTooLarge, got %v", err)
	}
	if _, err := ReadFrame(bytes.NewReader([]byte{0xff, 0xff, 0xff, 0xff})); !errors.Is(err, ErrFrameTooLarge) {
		t.Fatalf("expected ErrFrameTooLarge, got %v", err)
	}
	if _, err := ReadFrame(bytes.NewReader([]byte{0, 0, 0, 5, 'a'})); err != io.ErrUnexpectedEOF {
		t.Fatalf("expected io.ErrUnexpectedEOF, got %v", err)
	}
}
