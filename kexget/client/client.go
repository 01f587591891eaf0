// Package client implements the connecting side of the kexget connection
// loop: one connection, one request, one response.
package client

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/TheusHen/kexget/kexget/crypto"
	"github.com/TheusHen/kexget/kexget/logging"
	"github.com/TheusHen/kexget/kexget/protocol"
	"github.com/TheusHen/kexget/kexget/transport/tcp"
)

var (
	ErrNoResponse  = errors.New("client: connection closed before a response arrived")
	ErrRemoteError = errors.New("client: server answered ERROR")
)

type Config struct {
	Address string
	// Channel enables secure mode. Nil means plaintext.
	Channel *crypto.SecureChannel
	Framing tcp.Framing
	// Timeout bounds the wait for the response; zero waits forever.
	Timeout time.Duration
	Logger  *slog.Logger
}

type Client struct {
	cfg Config
	log *slog.Logger
}

func New(cfg Config) *Client {
	return &Client{cfg: cfg, log: logging.OrDiscard(cfg.Logger)}
}

// Do sends one raw request and returns the raw (decrypted) response. The
// connection is closed before Do returns, whatever the outcome.
func (c *Client) Do(ctx context.Context, request []byte) ([]byte, error) {
	nc, err := tcp.Dial(ctx, c.cfg.Address)
	if err != nil {
		return nil, err
	}
	defer nc.Close()
	stop := context.AfterFunc(ctx, func() { _ = nc.Close() })
	defer stop()

	log := c.log.With("remote", c.cfg.Address)
	conn := tcp.NewConn(nc, c.cfg.Framing, c.cfg.Timeout)

	out := request
	if c.cfg.Channel != nil {
		if out, err = c.cfg.Channel.Encrypt(request); err != nil {
			return nil, err
		}
	}
	if err := conn.WriteMessage(out); err != nil {
		return nil, err
	}
	log.Debug("sent", "request", request)

	raw, err := conn.ReadMessage()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if tcp.IsDisconnect(err) {
			return nil, ErrNoResponse
		}
		return nil, err
	}

	resp := raw
	if c.cfg.Channel != nil {
		if resp, err = c.cfg.Channel.Decrypt(raw); err != nil {
			log.Warn("response failed to decrypt", "err", err)
			return nil, err
		}
	}
	log.Debug("received", "response", resp)
	return resp, nil
}

// Get requests path and returns the resource data.
func (c *Client) Get(ctx context.Context, path string) ([]byte, error) {
	raw, err := c.Do(ctx, protocol.EncodeRequest(protocol.RequestTypeGet, []byte(path)))
	if err != nil {
		return nil, err
	}
	resp, err := protocol.ParseResponse([]byte(path), raw)
	if err != nil {
		return nil, err
	}
	if !resp.OK {
		return nil, ErrRemoteError
	}
	return resp.Data, nil
}
