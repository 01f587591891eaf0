// Package exchange carries public key material between peers outside the
// TCP connection. Nothing here authenticates the material: whoever can write
// to the store can impersonate a peer.
package exchange

import (
	"errors"
	"fmt"

	"github.com/TheusHen/kexget/kexget/crypto"
)

var (
	ErrNotFound    = errors.New("exchange: peer material not found")
	ErrInvalidName = errors.New("exchange: invalid peer name")
)

// Material is what one peer publishes for the other: its raw X25519 public
// key and, for the peer that generates it, the derivation salt.
type Material struct {
	Name      string
	PublicKey crypto.PublicKey
	Salt      []byte
}

// Exchanger is a side channel for Material.
// Implementations can be backed by a shared directory, an in-memory map, etc.
type Exchanger interface {
	Publish(m Material) error
	Lookup(name string) (Material, error)
}

// Exchange publishes the local material and returns the remote peer's.
func Exchange(ex Exchanger, local Material, remoteName string) (Material, error) {
	if err := ex.Publish(local); err != nil {
		return Material{}, fmt.Errorf("exchange: publish %q: %w", local.Name, err)
	}
	remote, err := ex.Lookup(remoteName)
	if err != nil {
		return Material{}, fmt.Errorf("exchange: lookup %q: %w", remoteName, err)
	}
	return remote, nil
}

// Clone returns a deep copy of m.
func (m Material) Clone() Material {
	if m.Salt != nil {
		m.Salt = append([]byte(nil), m.Salt...)
	}
	return m
}
