package crypto

import "errors"

var (
	ErrInvalidKeyFormat      = errors.New("crypto: invalid key format")
	ErrAuthenticationFailure = errors.New("crypto: authentication failure")
	ErrTokenExpired          = errors.New("crypto: token expired")
)
