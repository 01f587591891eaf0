// Package server implements the accepting side of the kexget connection loop.
//
// Connections are served one at a time by default: while one client is
// connected, the next one waits in the listen backlog. Each connection runs
// read → (decrypt) → respond → (encrypt) → write until the peer closes it.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/TheusHen/kexget/kexget/crypto"
	"github.com/TheusHen/kexget/kexget/logging"
	"github.com/TheusHen/kexget/kexget/protocol"
	"github.com/TheusHen/kexget/kexget/transport/tcp"
)

var ErrNoResolver = errors.New("server: resolver is required")

type Config struct {
	// Resolver answers GET requests.
	Resolver protocol.Resolver
	// Channel enables secure mode. Nil means plaintext.
	Channel *crypto.SecureChannel
	Framing tcp.Framing
	// IdleTimeout bounds the wait for each message; zero waits forever.
	IdleTimeout time.Duration
	// Concurrent serves each connection on its own goroutine.
	Concurrent bool
	Limiter    *Limiter
	Metrics    *Metrics
	Logger     *slog.Logger
}

type Server struct {
	cfg Config
	log *slog.Logger
	wg  sync.WaitGroup
}

func New(cfg Config) (*Server, error) {
	if cfg.Resolver == nil {
		return nil, ErrNoResolver
	}
	return &Server{cfg: cfg, log: logging.OrDiscard(cfg.Logger)}, nil
}

// Secure reports whether messages are encrypted.
func (s *Server) Secure() bool { return s.cfg.Channel != nil }

// Serve accepts connections on ln until ctx ends or Accept fails. Cancelling
// ctx closes the listener and any open connection; Serve then returns nil.
func (s *Server) Serve(ctx context.Context, ln *tcp.Listener) error {
	stop := context.AfterFunc(ctx, func() { _ = ln.Close() })
	defer stop()
	defer s.wg.Wait()

	s.log.Info("serving", "addr", ln.AddrString(), "secure", s.Secure(), "framing", s.cfg.Framing.String())
	for {
		s.log.Debug("awaiting connection")
		c, err := ln.Accept(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		if !s.cfg.Limiter.Allow(c.RemoteAddr(), time.Now()) {
			s.cfg.Metrics.rejected()
			s.log.Warn("connection rejected by limiter", "remote", c.RemoteAddr().String())
			_ = c.Close()
			continue
		}
		s.cfg.Metrics.connection()

		if s.cfg.Concurrent {
			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				_ = s.ServeConn(ctx, c)
			}()
			continue
		}
		_ = s.ServeConn(ctx, c)
	}
}

// ServeConn runs the message loop for one connection and closes it on every
// exit path. It returns nil when the peer disconnects, or the error that
// ended the connection (read/write failure, decrypt failure).
func (s *Server) ServeConn(ctx context.Context, c net.Conn) error {
	defer c.Close()
	stop := context.AfterFunc(ctx, func() { _ = c.Close() })
	defer stop()

	log := s.log.With("remote", c.RemoteAddr().String())
	log.Info("connected")

	conn := tcp.NewConn(c, s.cfg.Framing, s.cfg.IdleTimeout)
	for {
		raw, err := conn.ReadMessage()
		if err != nil {
			if tcp.IsDisconnect(err) {
				log.Info("disconnected")
				return nil
			}
			log.Warn("read failed", "err", err)
			return err
		}
		log.Debug("received", "data", raw)

		resp, err := s.process(raw)
		if err != nil {
			log.Warn("closing connection", "err", err)
			return err
		}

		if err := conn.WriteMessage(resp); err != nil {
			log.Warn("write failed", "err", err)
			return err
		}
		log.Debug("sent", "data", resp)
	}
}

// process turns one inbound message unit into the outbound one. Only channel
// errors are returned; an unrecognized request type is answered with ERROR.
func (s *Server) process(raw []byte) ([]byte, error) {
	plain := raw
	if s.cfg.Channel != nil {
		var err error
		plain, err = s.cfg.Channel.Decrypt(raw)
		if err != nil {
			s.cfg.Metrics.channelFailure(failureReason(err))
			return nil, err
		}
	}

	s.cfg.Metrics.request(protocol.ParseRequest(plain).Type.String())
	resp, err := protocol.Respond(plain, s.cfg.Resolver)
	if err != nil {
		s.log.Debug("request rejected", "err", err)
		s.cfg.Metrics.response("error")
	} else {
		s.cfg.Metrics.response("ok")
	}

	if s.cfg.Channel != nil {
		return s.cfg.Channel.Encrypt(resp)
	}
	return resp, nil
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, crypto.ErrTokenExpired):
		return "expired"
	case errors.Is(err, crypto.ErrAuthenticationFailure):
		return "authentication"
	default:
		return "other"
	}
}
