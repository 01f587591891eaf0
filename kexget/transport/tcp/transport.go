// Package tcp adapts IPv4 TCP streams to the message units the connection
// loop works with.
package tcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/TheusHen/kexget/kexget/protocol"
)

// ReadChunkSize is the capacity of a single message read in chunk framing.
// Messages, including any encryption overhead, must fit within it.
const ReadChunkSize = 1024

var (
	ErrMessageTooLarge = errors.New("tcp: message exceeds read chunk size")
	ErrUnknownFraming  = errors.New("tcp: unknown framing")
)

// Framing selects how message units are delimited on the stream.
type Framing int

const (
	// FramingChunk treats one read of up to ReadChunkSize bytes as one message.
	// It relies on the peer writing each message in one piece and is not a real
	// framing protocol.
	FramingChunk Framing = iota
	// FramingLength prefixes every message with its 4-byte length.
	FramingLength
)

// ParseFraming maps "chunk" (or "") and "length" to a Framing.
func ParseFraming(s string) (Framing, error) {
	switch s {
	case "", "chunk":
		return FramingChunk, nil
	case "length":
		return FramingLength, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownFraming, s)
	}
}

func (f Framing) String() string {
	switch f {
	case FramingChunk:
		return "chunk"
	case FramingLength:
		return "length"
	default:
		return "unknown"
	}
}

type Listener struct {
	inner net.Listener
}

// Listen binds an IPv4 TCP listener. Go sets SO_REUSEADDR on listening
// sockets, so a restarted server can rebind immediately.
func Listen(addr string) (*Listener, error) {
	ln, err := net.Listen("tcp4", addr)
	if err != nil {
		return nil, err
	}
	return &Listener{inner: ln}, nil
}

// Accept blocks until a connection arrives. It returns ctx.Err() when the
// listener was closed because ctx ended.
func (l *Listener) Accept(ctx context.Context) (net.Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c, err := l.inner.Accept()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, err
	}
	return c, nil
}

func (l *Listener) Addr() net.Addr { return l.inner.Addr() }

func (l *Listener) AddrString() string {
	if l.inner == nil {
		return ""
	}
	return l.inner.Addr().String()
}

func (l *Listener) Close() error { return l.inner.Close() }

// Dial connects to an IPv4 TCP address.
func Dial(ctx context.Context, addr string) (net.Conn, error) {
	var d net.Dialer
	return d.DialContext(ctx, "tcp4", addr)
}

// Conn reads and writes whole message units.
type Conn struct {
	net.Conn
	framing     Framing
	idleTimeout time.Duration
}

// NewConn wraps c. A positive idleTimeout bounds the wait for each message.
func NewConn(c net.Conn, framing Framing, idleTimeout time.Duration) *Conn {
	return &Conn{Conn: c, framing: framing, idleTimeout: idleTimeout}
}

// ReadMessage returns the next message unit, or io.EOF once the peer has
// closed its side of the stream.
func (c *Conn) ReadMessage() ([]byte, error) {
	if c.idleTimeout > 0 {
		if err := c.SetReadDeadline(time.Now().Add(c.idleTimeout)); err != nil {
			return nil, err
		}
	}
	if c.framing == FramingLength {
		return protocol.ReadFrame(c.Conn)
	}

	buf := make([]byte, ReadChunkSize)
	for {
		n, err := c.Conn.Read(buf)
		if n > 0 {
			return buf[:n], nil
		}
		if err != nil {
			return nil, err
		}
	}
}

// WriteMessage writes one message unit in full.
func (c *Conn) WriteMessage(p []byte) error {
	if c.framing == FramingLength {
		return protocol.WriteFrame(c.Conn, p)
	}
	if len(p) > ReadChunkSize {
		return fmt.Errorf("%w: %d bytes", ErrMessageTooLarge, len(p))
	}
	_, err := c.Conn.Write(p)
	return err
}

// IsDisconnect reports whether err means the peer went away between messages.
func IsDisconnect(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed)
}
