package crypto

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"io"
	"time"

	"golang.org/x/crypto/chacha20poly1305"
)

const (
	aeadVersion    = 0x81
	aeadHeaderSize = 1 + 8
)

// AEAD seals timestamped XChaCha20-Poly1305 envelopes.
// The 24-byte nonce is random per message, which is safe for a key shared by
// both directions and reused across connections.
type AEAD struct {
	aead cipher.AEAD
}

// NewAEAD creates a new AEAD cipher from a 32-byte key.
func NewAEAD(key []byte) (*AEAD, error) {
	if len(key) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("%w: invalid key size for XChaCha20-Poly1305", ErrInvalidKeyFormat)
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	return &AEAD{aead: aead}, nil
}

// Seal encrypts and authenticates plaintext.
// Returns: version (1) || timestamp (8) || nonce (24) || ciphertext || tag (16)
// The version and timestamp are authenticated as additional data.
func (a *AEAD) Seal(plaintext []byte, now time.Time) ([]byte, error) {
	nonceSize := a.aead.NonceSize()
	out := make([]byte, aeadHeaderSize+nonceSize, aeadHeaderSize+nonceSize+len(plaintext)+a.aead.Overhead())
	out[0] = aeadVersion
	binary.BigEndian.PutUint64(out[1:aeadHeaderSize], uint64(now.Unix()))
	nonce := out[aeadHeaderSize:]
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return a.aead.Seal(out, nonce, plaintext, out[:aeadHeaderSize]), nil
}

// Open decrypts and verifies an envelope produced by Seal.
func (a *AEAD) Open(envelope []byte, now time.Time, maxAge time.Duration) ([]byte, error) {
	nonceSize := a.aead.NonceSize()
	if len(envelope) < aeadHeaderSize+nonceSize+a.aead.Overhead() || envelope[0] != aeadVersion {
		return nil, fmt.Errorf("%w: malformed envelope", ErrAuthenticationFailure)
	}
	header := envelope[:aeadHeaderSize]
	nonce := envelope[aeadHeaderSize : aeadHeaderSize+nonceSize]
	plaintext, err := a.aead.Open(nil, nonce, envelope[aeadHeaderSize+nonceSize:], header)
	if err != nil {
		return nil, ErrAuthenticationFailure
	}
	ts := int64(binary.BigEndian.Uint64(header[1:]))
	if err := checkTimestamp(ts, now, maxAge); err != nil {
		return nil, err
	}
	return plaintext, nil
}

// Overhead returns the number of bytes Seal adds to a plaintext.
func (a *AEAD) Overhead() int { return aeadHeaderSize + a.aead.NonceSize() + a.aead.Overhead() }
