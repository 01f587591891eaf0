// Package session turns an X25519 keypair, a peer public key and a shared salt
// into the symmetric key both ends of a connection use.
package session

import (
	"bytes"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/TheusHen/kexget/kexget/crypto"
)

var (
	ErrSaltMismatch = errors.New("session: local and remote salts differ")
	ErrMissingSalt  = errors.New("session: no salt available")
	ErrUnknownKDF   = errors.New("session: unknown key derivation function")
)

// SaltSize is the size of salts produced by NewSalt.
const SaltSize = 16

// KDF names a key derivation function.
type KDF string

const (
	KDFPBKDF2   KDF = "pbkdf2"
	KDFArgon2id KDF = "argon2id"
)

// Params are the public derivation parameters. Both peers must use the same
// values; there is no negotiation.
type Params struct {
	KDF        KDF
	Iterations int
	Argon2     crypto.Argon2Params
	Suite      crypto.Suite
	MaxAge     time.Duration
}

// DefaultParams returns PBKDF2-HMAC-SHA256 with 100000 iterations and Fernet.
func DefaultParams() Params {
	return Params{
		KDF:        KDFPBKDF2,
		Iterations: crypto.DefaultIterations,
		Argon2:     crypto.DefaultArgon2Params,
		Suite:      crypto.SuiteFernet,
	}
}

// NewSalt returns SaltSize random bytes.
func NewSalt() ([]byte, error) {
	salt := make([]byte, SaltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, err
	}
	return salt, nil
}

// PickSalt chooses the salt for a derivation. Exactly one side normally
// generates it; when both sides carry one they must agree.
func PickSalt(local, remote []byte) ([]byte, error) {
	switch {
	case len(local) > 0 && len(remote) > 0:
		if !bytes.Equal(local, remote) {
			return nil, ErrSaltMismatch
		}
		return local, nil
	case len(local) > 0:
		return local, nil
	case len(remote) > 0:
		return remote, nil
	default:
		return nil, ErrMissingSalt
	}
}

// DeriveCipherKey performs Agree, DeriveKey and EncodeForCipher.
func DeriveCipherKey(kp crypto.KeyPair, peer crypto.PublicKey, salt []byte, p Params) (crypto.CipherKey, error) {
	shared, err := crypto.Agree(kp.PrivateKey, peer)
	if err != nil {
		return "", err
	}
	defer zero(shared)

	var derived []byte
	switch p.KDF {
	case "", KDFPBKDF2:
		derived, err = crypto.DeriveKey(shared, salt, p.Iterations, crypto.DerivedKeySize)
	case KDFArgon2id:
		derived, err = crypto.DeriveKeyArgon2(shared, salt, p.Argon2, crypto.DerivedKeySize)
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownKDF, p.KDF)
	}
	if err != nil {
		return "", err
	}
	defer zero(derived)
	return crypto.EncodeForCipher(derived)
}

// Establish derives the cipher key and wraps it in a SecureChannel configured
// from p.
func Establish(kp crypto.KeyPair, peer crypto.PublicKey, salt []byte, p Params) (*crypto.SecureChannel, error) {
	key, err := DeriveCipherKey(kp, peer, salt, p)
	if err != nil {
		return nil, err
	}
	var opts []crypto.ChannelOption
	if p.MaxAge > 0 {
		opts = append(opts, crypto.WithMaxAge(p.MaxAge))
	}
	suite := p.Suite
	if suite == "" {
		suite = crypto.SuiteFernet
	}
	return crypto.NewSecureChannel(suite, key, opts...)
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
