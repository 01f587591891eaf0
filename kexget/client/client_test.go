package client

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/TheusHen/kexget/kexget/crypto"
	"github.com/TheusHen/kexget/kexget/transport/tcp"
)

// fakeServer accepts one connection, reads one message and hands it to
// reply. A nil reply result closes the connection without answering.
func fakeServer(t *testing.T, reply func([]byte) []byte) (string, <-chan []byte) {
	t.Helper()
	ln, err := tcp.Listen("127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	got := make(chan []byte, 1)
	go func() {
		c, err := ln.Accept(context.Background())
		if err != nil {
			return
		}
		defer c.Close()
		conn := tcp.NewConn(c, tcp.FramingChunk, 5*time.Second)
		msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		got <- msg
		if resp := reply(msg); resp != nil {
			_ = conn.WriteMessage(resp)
		}
	}()
	return ln.AddrString(), got
}

func testChannel(t *testing.T) *crypto.SecureChannel {
	t.Helper()
	key, err := crypto.EncodeForCipher(make([]byte, crypto.DerivedKeySize))
	if err != nil {
		t.Fatalf("EncodeForCipher: %v", err)
	}
	ch, err := crypto.NewSecureChannel(crypto.SuiteFernet, key)
	if err != nil {
		t.Fatalf("NewSecureChannel: %v", err)
	}
	return ch
}

func TestGetPlaintext(t *testing.T) {
	addr, got := fakeServer(t, func([]byte) []byte { return []byte("OK:/a:b:c") })
	c := New(Config{Address: addr, Timeout: 5 * time.Second})

	data, err := c.Get(context.Background(), "/a")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(data) != "b:c" {
		t.Fatalf("unexpected data %q", data)
	}
	if req := <-got; string(req) != "GET:/a" {
		t.Fatalf("server saw %q", req)
	}
}

func TestGetRemoteError(t *testing.T) {
	addr, _ := fakeServer(t, func([]byte) []byte { return []byte("ERROR") })
	c := New(Config{Address: addr, Timeout: 5 * time.Second})
	if _, err := c.Get(context.Background(), "/a"); !errors.Is(err, ErrRemoteError) {
		t.Fatalf("expected ErrRemoteError, got %v", err)
	}
}

func TestDoSecure(t *testing.T) {
	ch := testChannel(t)
	addr, got := fakeServer(t, func(msg []byte) []byte {
		plain, err := ch.Decrypt(msg)
		if err != nil {
			return nil
		}
		resp, _ := ch.Encrypt(append([]byte("echo "), plain...))
		return resp
	})
	c := New(Config{Address: addr, Channel: ch, Timeout: 5 * time.Second})

	resp, err := c.Do(context.Background(), []byte("GET:/x"))
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if string(resp) != "echo GET:/x" {
		t.Fatalf("unexpected response %q", resp)
	}
	if wire := <-got; string(wire) == "GET:/x" {
		t.Fatalf("request was sent in plaintext")
	}
}

func TestDoUndecryptableResponse(t *testing.T) {
	addr, _ := fakeServer(t, func([]byte) []byte { return []byte("OK:/x:plain") })
	c := New(Config{Address: addr, Channel: testChannel(t), Timeout: 5 * time.Second})
	if _, err := c.Do(context.Background(), []byte("GET:/x")); !errors.Is(err, crypto.ErrAuthenticationFailure) {
		t.Fatalf("expected ErrAuthenticationFailure, got %v", err)
	}
}

func TestDoNoResponse(t *testing.T) {
	addr, _ := fakeServer(t, func([]byte) []byte { return nil })
	c := New(Config{Address: addr, Timeout: 5 * time.Second})
	if _, err := c.Do(context.Background(), []byte("GET:/x")); !errors.Is(err, ErrNoResponse) {
		t.Fatalf("expected ErrNoResponse, got %v", err)
	}
}

func TestDoContextCancel(t *testing.T) {
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer ln.Close()
	// Accept but never answer.
	go func() {
		c, err := ln.Accept()
		if err != nil {
			return
		}
		defer c.Close()
		time.Sleep(5 * time.Second)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	c := New(Config{Address: ln.Addr().String()})
	if _, err := c.Do(ctx, []byte("GET:/x")); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected DeadlineExceeded, got %v", err)
	}
}

func TestDoConnectionRefused(t *testing.T) {
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()

	c := New(Config{Address: addr})
	if _, err := c.Do(context.Background(), []byte("GET:/x")); err == nil {
		t.Fatalf("expected dial error")
	}
}
