package crypto

import (
	"errors"
	"fmt"
	"time"
)

var ErrUnknownSuite = errors.New("crypto: unknown cipher suite")

// Suite names a channel cipher.
type Suite string

const (
	SuiteFernet            Suite = "fernet"
	SuiteXChaCha20Poly1305 Suite = "xchacha20poly1305"
)

// ParseSuite maps a configuration string to a Suite. The empty string selects Fernet.
func ParseSuite(s string) (Suite, error) {
	switch Suite(s) {
	case "", SuiteFernet:
		return SuiteFernet, nil
	case SuiteXChaCha20Poly1305:
		return SuiteXChaCha20Poly1305, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownSuite, s)
	}
}

// SecureChannel encrypts outbound and decrypts inbound message units under a
// derived key. It holds no per-message state and is safe for concurrent use.
type SecureChannel struct {
	suite  Suite
	key    []byte
	aead   *AEAD
	maxAge time.Duration
	now    func() time.Time
}

// ChannelOption configures a SecureChannel.
type ChannelOption func(*SecureChannel)

// WithMaxAge rejects envelopes older than d with ErrTokenExpired. Zero disables expiry.
func WithMaxAge(d time.Duration) ChannelOption {
	return func(sc *SecureChannel) { sc.maxAge = d }
}

// WithClock overrides the time source used for timestamps and expiry.
func WithClock(now func() time.Time) ChannelOption {
	return func(sc *SecureChannel) { sc.now = now }
}

// NewSecureChannel creates a channel for the given suite and key.
func NewSecureChannel(suite Suite, key CipherKey, opts ...ChannelOption) (*SecureChannel, error) {
	raw, err := key.Decode()
	if err != nil {
		return nil, err
	}
	sc := &SecureChannel{suite: suite, key: raw, now: time.Now}
	switch suite {
	case SuiteFernet:
	case SuiteXChaCha20Poly1305:
		if sc.aead, err = NewAEAD(raw); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownSuite, suite)
	}
	for _, opt := range opts {
		opt(sc)
	}
	return sc, nil
}

// Suite returns the channel's cipher suite.
func (sc *SecureChannel) Suite() Suite { return sc.suite }

// Encrypt wraps plaintext in an authenticated, timestamped envelope.
func (sc *SecureChannel) Encrypt(plaintext []byte) ([]byte, error) {
	if sc.aead != nil {
		return sc.aead.Seal(plaintext, sc.now())
	}
	return sealFernet(sc.key, plaintext, sc.now())
}

// Decrypt verifies and opens an envelope. It fails with ErrAuthenticationFailure
// or ErrTokenExpired; no partial plaintext is ever returned.
func (sc *SecureChannel) Decrypt(envelope []byte) ([]byte, error) {
	if sc.aead != nil {
		return sc.aead.Open(envelope, sc.now(), sc.maxAge)
	}
	return openFernet(sc.key, envelope, sc.now(), sc.maxAge)
}
