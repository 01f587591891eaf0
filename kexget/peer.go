package kexget

import (
	"context"
	"errors"
	"log/slog"

	"github.com/TheusHen/kexget/kexget/client"
	"github.com/TheusHen/kexget/kexget/crypto"
	"github.com/TheusHen/kexget/kexget/exchange"
	"github.com/TheusHen/kexget/kexget/protocol"
	"github.com/TheusHen/kexget/kexget/server"
	"github.com/TheusHen/kexget/kexget/session"
	"github.com/TheusHen/kexget/kexget/transport/tcp"
)

var ErrNotListening = errors.New("peer is not listening")

// Peer combines a keypair, an optional salt and the derivation parameters.
// The peer that generates the salt publishes it with its public key.
type Peer struct {
	Name    string
	KeyPair crypto.KeyPair
	Salt    []byte
	Params  session.Params
	Logger  *slog.Logger

	listener *tcp.Listener
}

// NewPeer generates a fresh keypair. With withSalt the peer also generates
// the salt and becomes the one publishing it.
func NewPeer(name string, withSalt bool, params session.Params) (*Peer, error) {
	kp, err := crypto.GenerateKeyPair()
	if err != nil {
		return nil, err
	}
	p := &Peer{Name: name, KeyPair: kp, Params: params}
	if withSalt {
		if p.Salt, err = session.NewSalt(); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// Material is what this peer publishes.
func (p *Peer) Material() exchange.Material {
	return exchange.Material{Name: p.Name, PublicKey: p.KeyPair.PublicKey, Salt: p.Salt}.Clone()
}

// Publish writes this peer's material to ex.
func (p *Peer) Publish(ex exchange.Exchanger) error {
	return ex.Publish(p.Material())
}

// Establish looks up remoteName in ex and derives the shared channel. It
// does not publish; call Publish first so the remote side can do the same.
func (p *Peer) Establish(ex exchange.Exchanger, remoteName string) (*crypto.SecureChannel, error) {
	remote, err := ex.Lookup(remoteName)
	if err != nil {
		return nil, err
	}
	return p.EstablishWith(remote)
}

// EstablishWith derives the shared channel from already fetched material.
func (p *Peer) EstablishWith(remote exchange.Material) (*crypto.SecureChannel, error) {
	salt, err := session.PickSalt(p.Salt, remote.Salt)
	if err != nil {
		return nil, err
	}
	return session.Establish(p.KeyPair, remote.PublicKey, salt, p.Params)
}

func (p *Peer) Listen(addr string) error {
	ln, err := tcp.Listen(addr)
	if err != nil {
		return err
	}
	p.listener = ln
	return nil
}

func (p *Peer) Close() error {
	if p.listener == nil {
		return nil
	}
	return p.listener.Close()
}

func (p *Peer) ListenAddr() string {
	if p.listener == nil {
		return ""
	}
	return p.listener.AddrString()
}

// Serve answers requests on the listener until ctx ends. A nil channel
// serves plaintext.
func (p *Peer) Serve(ctx context.Context, r protocol.Resolver, ch *crypto.SecureChannel) error {
	if p.listener == nil {
		return ErrNotListening
	}
	srv, err := server.New(server.Config{Resolver: r, Channel: ch, Logger: p.Logger})
	if err != nil {
		return err
	}
	return srv.Serve(ctx, p.listener)
}

// Get fetches path from the server at addr.
func (p *Peer) Get(ctx context.Context, addr, path string, ch *crypto.SecureChannel) ([]byte, error) {
	return client.New(client.Config{Address: addr, Channel: ch, Logger: p.Logger}).Get(ctx, path)
}
