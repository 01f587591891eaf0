// Package kexget provides a minimal request/response protocol over TCP whose
// messages can be protected by a symmetric key that two peers establish with
// an X25519 key agreement and PBKDF2.
//
// The key exchange is unauthenticated: public keys travel over a side channel
// (see package exchange) and nothing binds them to an identity. The secure
// mode therefore resists passive eavesdroppers only.
package kexget
