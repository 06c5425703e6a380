// Package kdf derives the Cohost client hash from a password and salt.
package kdf

import (
	"crypto/sha512"
	"errors"
	"fmt"

	"golang.org/x/crypto/pbkdf2"

	"github.com/joss/chost/internal/b64"
)

// Parameters fixed by the server's login protocol.
const (
	Iterations = 200000
	KeyLength  = 48
)

var (
	// ErrEmptyPassword is returned when no password is supplied.
	ErrEmptyPassword = errors.New("kdf: empty password")

	// ErrEmptySalt is returned when no salt is supplied.
	ErrEmptySalt = errors.New("kdf: empty salt")
)

// DeriveKey runs PBKDF2-HMAC-SHA384 over password and salt.
func DeriveKey(password, salt []byte) ([]byte, error) {
	if len(password) == 0 {
		return nil, ErrEmptyPassword
	}
	if len(salt) == 0 {
		return nil, ErrEmptySalt
	}

	key := pbkdf2.Key(password, salt, Iterations, KeyLength, sha512.New384)
	if len(key) != KeyLength {
		return nil, fmt.Errorf("kdf: derived %d bytes, want %d", len(key), KeyLength)
	}
	return key, nil
}

// EncodeKey base64-encodes a derived key into the client hash sent to the server.
func EncodeKey(key []byte) (string, error) {
	hash, err := b64.Encode(key)
	if err != nil {
		return "", fmt.Errorf("kdf: encode key: %w", err)
	}
	return hash, nil
}

// ClientHash derives the key and encodes it in one step.
func ClientHash(password, salt []byte) (string, error) {
	key, err := DeriveKey(password, salt)
	if err != nil {
		return "", err
	}
	return EncodeKey(key)
}
