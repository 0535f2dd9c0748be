package fieldcrypt

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	c, err := New("unit-test-secret")
	require.NoError(t, err)

	for _, in := range []string{"", "S1234567A", "+6591234567", "陈大文 ✓", strings.Repeat("x", 4096)} {
		ct, err := c.Encrypt(in)
		require.NoError(t, err)
		assert.NotEqual(t, in, ct)
		assert.True(t, strings.HasPrefix(ct, "v1."))

		out, err := c.Decrypt(ct)
		require.NoError(t, err)
		assert.Equal(t, in, out)
	}
}

func TestEncryptUsesFreshNonce(t *testing.T) {
	c, err := New("unit-test-secret")
	require.NoError(t, err)
	a, _ := c.Encrypt("S1234567A")
	b, _ := c.Encrypt("S1234567A")
	assert.NotEqual(t, a, b)
}

func TestDecryptFailsLoudly(t *testing.T) {
	c, err := New("unit-test-secret")
	require.NoError(t, err)
	ct, err := c.Encrypt("S1234567A")
	require.NoError(t, err)

	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimPrefix(ct, "v1."))
	require.NoError(t, err)
	raw[len(raw)-1] ^= 0xff
	tampered := "v1." + base64.RawURLEncoding.EncodeToString(raw)
	cases := map[string]string{
		"plaintext":   "S1234567A",
		"bad base64":  "v1.***",
		"too short":   "v1.AAAA",
		"tampered":    tampered,
		"empty input": "",
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := c.Decrypt(in)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrDecrypt))
		})
	}

	other, err := New("another-secret")
	require.NoError(t, err)
	_, err = other.Decrypt(ct)
	assert.ErrorIs(t, err, ErrDecrypt)
}

func TestKeyRotation(t *testing.T) {
	old, err := New("old-secret")
	require.NoError(t, err)
	ct, err := old.Encrypt("+6597654321")
	require.NoError(t, err)

	rotated, err := New("new-secret", "", "old-secret")
	require.NoError(t, err)
	out, err := rotated.Decrypt(ct)
	require.NoError(t, err)
	assert.Equal(t, "+6597654321", out)

	fresh, err := rotated.Encrypt("+6597654321")
	require.NoError(t, err)
	_, err = old.Decrypt(fresh)
	assert.ErrorIs(t, err, ErrDecrypt)
}

func TestNewRequiresKey(t *testing.T) {
	_, err := New("")
	assert.ErrorIs(t, err, ErrNoKey)
}

func TestMask(t *testing.T) {
	assert.Equal(t, "", Mask(""))
	assert.Equal(t, "*", Mask("a"))
	assert.Equal(t, "****", Mask("1234"))
	assert.Equal(t, "*2345", Mask("12345"))
	assert.Equal(t, "*****567A", Mask("S1234567A"))
	assert.Equal(t, "*******4567", Mask("+6591234567"))
	assert.Equal(t, "**大文 ✓", Mask("陈先大文 ✓"))
}

func TestMaskNeverRevealsMoreThanFour(t *testing.T) {
	for _, in := range []string{"a", "ab", "abcd", "abcde", "S1234567A", "日本語のテキスト"} {
		m := Mask(in)
		assert.Equal(t, utf8.RuneCountInString(in), utf8.RuneCountInString(m))
		shown := 0
		for _, r := range m {
			if r != '*' {
				shown++
			}
		}
		assert.LessOrEqual(t, shown, 4, in)
	}
}
