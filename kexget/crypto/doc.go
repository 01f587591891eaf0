// Package crypto provides the key agreement and secure channel primitives for kexget.
//
// Design goals:
//   - X25519 key agreement (RFC 7748) with weak-point rejection
//   - Key derivation via PBKDF2-HMAC-SHA256 (argon2id optional)
//   - Fernet tokens (AES-128-CBC + HMAC-SHA256) interoperable with other Fernet implementations
//   - XChaCha20-Poly1305 envelopes as a faster alternative suite
//
// The key exchange is unauthenticated Diffie-Hellman: nothing here binds a
// public key to a peer identity, so an active attacker on the side channel
// can substitute keys.
package crypto
