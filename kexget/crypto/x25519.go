package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"

	"golang.org/x/crypto/curve25519"
)

// KeySize is the size of X25519 scalars, points and shared secrets.
const KeySize = curve25519.ScalarSize

// PublicKey is a raw-encoded X25519 point.
type PublicKey [KeySize]byte

// KeyPair is an X25519 keypair held for the duration of one session.
type KeyPair struct {
	PublicKey  PublicKey
	PrivateKey [KeySize]byte
}

// GenerateKeyPair generates a new X25519 keypair.
func GenerateKeyPair() (KeyPair, error) {
	var kp KeyPair
	if _, err := io.ReadFull(rand.Reader, kp.PrivateKey[:]); err != nil {
		return KeyPair{}, err
	}
	// Clamp private key per RFC 7748
	kp.PrivateKey[0] &= 248
	kp.PrivateKey[31] &= 127
	kp.PrivateKey[31] |= 64

	pub, err := curve25519.X25519(kp.PrivateKey[:], curve25519.Basepoint)
	if err != nil {
		return KeyPair{}, err
	}
	copy(kp.PublicKey[:], pub)
	return kp, nil
}

// KeyPairFromPrivate rebuilds a keypair from a stored private scalar.
func KeyPairFromPrivate(private []byte) (KeyPair, error) {
	if len(private) != KeySize {
		return KeyPair{}, fmt.Errorf("%w: private key is %d bytes", ErrInvalidKeyFormat, len(private))
	}
	var kp KeyPair
	copy(kp.PrivateKey[:], private)
	pub, err := curve25519.X25519(kp.PrivateKey[:], curve25519.Basepoint)
	if err != nil {
		return KeyPair{}, fmt.Errorf("%w: %v", ErrInvalidKeyFormat, err)
	}
	copy(kp.PublicKey[:], pub)
	return kp, nil
}

// ExportPublic returns the raw 32-byte public key, ready for transmission.
func ExportPublic(kp KeyPair) []byte {
	out := make([]byte, KeySize)
	copy(out, kp.PublicKey[:])
	return out
}

// ImportPublic decodes a raw public key received from a peer.
func ImportPublic(b []byte) (PublicKey, error) {
	var pk PublicKey
	if len(b) != KeySize {
		return pk, fmt.Errorf("%w: public key is %d bytes", ErrInvalidKeyFormat, len(b))
	}
	copy(pk[:], b)
	return pk, nil
}

// Agree computes the X25519 shared secret between a local private key and a
// peer public key. Low-order peer points are rejected.
func Agree(privateKey [KeySize]byte, peer PublicKey) ([]byte, error) {
	var zero PublicKey
	if peer == zero {
		return nil, fmt.Errorf("%w: zero public key", ErrInvalidKeyFormat)
	}
	// X25519 fails when the result is the all-zero value, which is what every
	// low-order point produces.
	shared, err := curve25519.X25519(privateKey[:], peer[:])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKeyFormat, err)
	}
	return shared, nil
}

// KeyID returns a short fingerprint of a public key, suitable for logs.
func KeyID(pk PublicKey) string {
	sum := sha256.Sum256(pk[:])
	return hex.EncodeToString(sum[:8])
}
