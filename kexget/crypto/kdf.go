package crypto

import (
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/pbkdf2"
)

const (
	// DerivedKeySize is the length of keys fed to the channel ciphers.
	DerivedKeySize = 32
	// DefaultIterations is the PBKDF2 iteration count both peers must share.
	DefaultIterations = 100000
)

var ErrInvalidKDFParams = errors.New("crypto: invalid key derivation parameters")

// DeriveKey stretches a shared secret into a key of the given length using
// PBKDF2-HMAC-SHA256. Identical inputs always produce identical output.
func DeriveKey(secret, salt []byte, iterations, length int) ([]byte, error) {
	if len(secret) == 0 || iterations <= 0 || length <= 0 {
		return nil, ErrInvalidKDFParams
	}
	return pbkdf2.Key(secret, salt, iterations, length, sha256.New), nil
}

// Argon2Params configures DeriveKeyArgon2.
type Argon2Params struct {
	Time     uint32
	MemoryKB uint32
	Threads  uint8
}

// DefaultArgon2Params matches the cost used for at-rest envelopes.
var DefaultArgon2Params = Argon2Params{Time: 2, MemoryKB: 64 * 1024, Threads: 1}

// DeriveKeyArgon2 is the argon2id alternative to DeriveKey.
func DeriveKeyArgon2(secret, salt []byte, p Argon2Params, length int) ([]byte, error) {
	if len(secret) == 0 || length <= 0 || p.Time == 0 || p.MemoryKB == 0 || p.Threads == 0 {
		return nil, ErrInvalidKDFParams
	}
	return argon2.IDKey(secret, salt, p.Time, p.MemoryKB, p.Threads, uint32(length)), nil
}

// CipherKey is a derived key in the URL-safe base64 form the channel ciphers accept.
type CipherKey string

// EncodeForCipher encodes 32 derived bytes as a CipherKey.
func EncodeForCipher(b []byte) (CipherKey, error) {
	if len(b) != DerivedKeySize {
		return "", fmt.Errorf("%w: derived key is %d bytes", ErrInvalidKeyFormat, len(b))
	}
	return CipherKey(base64.URLEncoding.EncodeToString(b)), nil
}

// Decode returns the raw key bytes.
func (k CipherKey) Decode() ([]byte, error) {
	raw, err := base64.URLEncoding.DecodeString(string(k))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKeyFormat, err)
	}
	if len(raw) != DerivedKeySize {
		return nil, fmt.Errorf("%w: cipher key is %d bytes", ErrInvalidKeyFormat, len(raw))
	}
	return raw, nil
}

// String hides the key material from accidental formatting.
func (k CipherKey) String() string { return "CipherKey(redacted)" }
