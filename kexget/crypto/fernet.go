package crypto

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"io"
	"time"
)

const (
	fernetVersion  = 0x80
	fernetIVSize   = aes.BlockSize
	fernetMACSize  = sha256.Size
	fernetOverhead = 1 + 8 + fernetIVSize + fernetMACSize

	// MaxClockSkew is how far in the future a token timestamp may lie.
	MaxClockSkew = 60 * time.Second
)

// Encrypt seals plaintext into a Fernet token under key.
// Format (before base64url):
//
//	1 byte:   version (0x80)
//	8 bytes:  timestamp, unix seconds (big endian)
//	16 bytes: IV
//	N bytes:  AES-128-CBC ciphertext, PKCS#7 padded
//	32 bytes: HMAC-SHA256 over everything above
func Encrypt(key CipherKey, plaintext []byte) ([]byte, error) {
	raw, err := key.Decode()
	if err != nil {
		return nil, err
	}
	return sealFernet(raw, plaintext, time.Now())
}

// Decrypt opens a Fernet token under key. No maximum age is enforced.
func Decrypt(key CipherKey, token []byte) ([]byte, error) {
	raw, err := key.Decode()
	if err != nil {
		return nil, err
	}
	return openFernet(raw, token, time.Now(), 0)
}

func sealFernet(key, plaintext []byte, now time.Time) ([]byte, error) {
	signingKey, encryptionKey := key[:16], key[16:]
	block, err := aes.NewCipher(encryptionKey)
	if err != nil {
		return nil, err
	}

	padLen := aes.BlockSize - len(plaintext)%aes.BlockSize
	bodyLen := len(plaintext) + padLen
	out := make([]byte, 1+8+fernetIVSize+bodyLen, 1+8+fernetIVSize+bodyLen+fernetMACSize)
	out[0] = fernetVersion
	binary.BigEndian.PutUint64(out[1:9], uint64(now.Unix()))
	iv := out[9 : 9+fernetIVSize]
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return nil, err
	}

	body := out[9+fernetIVSize:]
	copy(body, plaintext)
	copy(body[len(plaintext):], bytes.Repeat([]byte{byte(padLen)}, padLen))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(body, body)

	mac := hmac.New(sha256.New, signingKey)
	mac.Write(out)
	out = mac.Sum(out)

	enc := make([]byte, base64.URLEncoding.EncodedLen(len(out)))
	base64.URLEncoding.Encode(enc, out)
	return enc, nil
}

func openFernet(key, token []byte, now time.Time, maxAge time.Duration) ([]byte, error) {
	signingKey, encryptionKey := key[:16], key[16:]

	data := make([]byte, base64.URLEncoding.DecodedLen(len(token)))
	n, err := base64.URLEncoding.Strict().Decode(data, token)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed token encoding", ErrAuthenticationFailure)
	}
	data = data[:n]
	if len(data) < fernetOverhead+aes.BlockSize || data[0] != fernetVersion {
		return nil, fmt.Errorf("%w: malformed token", ErrAuthenticationFailure)
	}

	signed, tag := data[:len(data)-fernetMACSize], data[len(data)-fernetMACSize:]
	mac := hmac.New(sha256.New, signingKey)
	mac.Write(signed)
	if !hmac.Equal(mac.Sum(nil), tag) {
		return nil, ErrAuthenticationFailure
	}

	ts := int64(binary.BigEndian.Uint64(signed[1:9]))
	if err := checkTimestamp(ts, now, maxAge); err != nil {
		return nil, err
	}

	iv := signed[9 : 9+fernetIVSize]
	body := signed[9+fernetIVSize:]
	if len(body)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("%w: ciphertext not block aligned", ErrAuthenticationFailure)
	}
	block, err := aes.NewCipher(encryptionKey)
	if err != nil {
		return nil, err
	}
	plain := make([]byte, len(body))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plain, body)
	return unpad(plain)
}

func unpad(b []byte) ([]byte, error) {
	padLen := int(b[len(b)-1])
	if padLen == 0 || padLen > aes.BlockSize {
		return nil, fmt.Errorf("%w: bad padding", ErrAuthenticationFailure)
	}
	pad := b[len(b)-padLen:]
	if subtle.ConstantTimeCompare(pad, bytes.Repeat([]byte{byte(padLen)}, padLen)) != 1 {
		return nil, fmt.Errorf("%w: bad padding", ErrAuthenticationFailure)
	}
	return b[:len(b)-padLen], nil
}

// checkTimestamp applies the skew and (optional) max age rules shared by all suites.
func checkTimestamp(ts int64, now time.Time, maxAge time.Duration) error {
	issued := time.Unix(ts, 0)
	if issued.After(now.Add(MaxClockSkew)) {
		return fmt.Errorf("%w: timestamp in the future", ErrAuthenticationFailure)
	}
	if maxAge > 0 && issued.Add(maxAge).Before(now) {
		return ErrTokenExpired
	}
	return nil
}
