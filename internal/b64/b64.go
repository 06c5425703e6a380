// Package b64 implements the strict standard-alphabet base64 codec used by
// the Cohost login handshake.
//
// It differs from encoding/base64 in two places: encoding an empty buffer is
// an error (an empty salt or key upstream is a caller bug), and the whole
// input is validated before a single byte is decoded.
package b64

import (
	"encoding/base64"
	"errors"
	"fmt"
)

// Alphabet is the RFC 4648 standard alphabet.
const Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/"

// Pad is the padding character.
const Pad = '='

var (
	// ErrEmptyInput is returned when encoding a zero-length buffer.
	ErrEmptyInput = errors.New("b64: empty input")

	// ErrInvalidLength is returned when the encoded length is not a multiple of 4.
	ErrInvalidLength = errors.New("b64: length is not a multiple of 4")

	// ErrInvalidChar is returned when the input holds a byte outside the alphabet.
	ErrInvalidChar = errors.New("b64: invalid character")
)

// EncodedSize returns the encoded length of n input bytes, padding included.
func EncodedSize(n int) int {
	if n%3 != 0 {
		n += 3 - n%3
	}
	return n / 3 * 4
}

// DecodedSize returns the number of bytes Decode produces for s.
// It only looks at the length and the trailing padding.
func DecodedSize(s string) int {
	size := len(s) / 4 * 3
	for i := len(s) - 1; i >= 0 && s[i] == Pad; i-- {
		size--
	}
	if size < 0 {
		return 0
	}
	return size
}

// Encode encodes src with the standard alphabet and '=' padding.
func Encode(src []byte) (string, error) {
	if len(src) == 0 {
		return "", ErrEmptyInput
	}
	out := make([]byte, EncodedSize(len(src)))
	base64.StdEncoding.Encode(out, src)
	return string(out), nil
}

// Decode decodes s. Nothing is decoded unless s has a valid length and only
// alphabet or padding characters.
func Decode(s string) ([]byte, error) {
	if err := Validate(s); err != nil {
		return nil, err
	}

	out := make([]byte, DecodedSize(s))
	n, err := base64.StdEncoding.Decode(out, []byte(s))
	if err != nil {
		return nil, fmt.Errorf("b64: decode: %w", err)
	}
	if n != len(out) {
		return nil, fmt.Errorf("b64: decoded %d bytes, expected %d", n, len(out))
	}
	return out, nil
}

// Validate checks the length and alphabet of an encoded string.
func Validate(s string) error {
	if len(s)%4 != 0 {
		return fmt.Errorf("%w (got %d)", ErrInvalidLength, len(s))
	}
	for i := 0; i < len(s); i++ {
		if !IsValidChar(s[i]) {
			return fmt.Errorf("%w %q at offset %d", ErrInvalidChar, s[i], i)
		}
	}
	return nil
}

// IsValidChar reports whether c belongs to the alphabet or is the pad.
func IsValidChar(c byte) bool {
	switch {
	case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9':
		return true
	case c == '+', c == '/', c == Pad:
		return true
	}
	return false
}
