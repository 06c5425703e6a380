package b64

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"f", "Zg=="},
		{"fo", "Zm8="},
		{"foo", "Zm9v"},
		{"foob", "Zm9vYg=="},
		{"fooba", "Zm9vYmE="},
		{"foobar", "Zm9vYmFy"},
		{"salt", "c2FsdA=="},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Encode([]byte(tt.in))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Len(t, got, EncodedSize(len(tt.in)))
		})
	}
}

func TestEncodeEmpty(t *testing.T) {
	_, err := Encode(nil)
	assert.ErrorIs(t, err, ErrEmptyInput)

	_, err = Encode([]byte{})
	assert.ErrorIs(t, err, ErrEmptyInput)
}

func TestDecode(t *testing.T) {
	got, err := Decode("c2FsdA==")
	require.NoError(t, err)
	assert.Equal(t, []byte("salt"), got)

	got, err = Decode("Zm9vYmFy")
	require.NoError(t, err)
	assert.Equal(t, []byte("foobar"), got)
}

func TestDecodeRejectsMalformed(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want error
	}{
		{"short", "abc", ErrInvalidLength},
		{"five", "Zm9vY", ErrInvalidLength},
		{"url-safe dash", "ab-d", ErrInvalidChar},
		{"url-safe underscore", "ab_d", ErrInvalidChar},
		{"space", "Zm9 ", ErrInvalidChar},
		{"newline", "Zm9\n", ErrInvalidChar},
		{"non-ascii", "Zm\xc3\xa9", ErrInvalidChar},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := Decode(tt.in)
			assert.ErrorIs(t, err, tt.want)
			assert.Nil(t, out)
		})
	}
}

func TestDecodeMisplacedPadding(t *testing.T) {
	out, err := Decode("Zg==Zg==")
	assert.Error(t, err)
	assert.Nil(t, out)

	out, err = Decode("====")
	assert.Error(t, err)
	assert.Nil(t, out)
}

func TestDecodedSize(t *testing.T) {
	assert.Equal(t, 0, DecodedSize(""))
	assert.Equal(t, 1, DecodedSize("Zg=="))
	assert.Equal(t, 2, DecodedSize("Zm8="))
	assert.Equal(t, 3, DecodedSize("Zm9v"))
	assert.Equal(t, 6, DecodedSize("Zm9vYmFy"))
}

func TestRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	for n := 1; n <= 200; n++ {
		src := make([]byte, n)
		rng.Read(src)

		enc, err := Encode(src)
		require.NoError(t, err)

		dec, err := Decode(enc)
		require.NoError(t, err)

		if !bytes.Equal(src, dec) {
			t.Fatalf("round trip of %d bytes: got %x, want %x", n, dec, src)
		}
		if got := DecodedSize(enc); got != len(dec) {
			t.Fatalf("DecodedSize(%q) = %d, decoded %d bytes", enc, got, len(dec))
		}
	}
}

func TestIsValidChar(t *testing.T) {
	for i := 0; i < len(Alphabet); i++ {
		assert.True(t, IsValidChar(Alphabet[i]), "char %q", Alphabet[i])
	}
	assert.True(t, IsValidChar('='))

	for _, c := range []byte("-_ .!\x00\xff") {
		assert.False(t, IsValidChar(c), "char %q", c)
	}
}
