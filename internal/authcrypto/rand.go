// Package authcrypto implements the cryptographic primitives the server
// relies on: random identifier generation, HMAC signing, AEAD
// encryption, argon2id password hashing, PKCE, and JWT signing.
package authcrypto

import (
	"crypto/rand"
	"encoding/base32"
	"errors"
	"io"
	"math/big"
	"strings"
)

// idEncoding avoids characters that are awkward in URLs, cookies, and
// case-insensitive storage backends.
var idEncoding = base32.NewEncoding("abcdefghijklmnopqrstuvwxyz234567")

// deviceCharset is used for RFC 8628 user codes: uppercase letters and
// digits with ambiguous glyphs (0/O, 1/I/L, etc.) removed.
const deviceCharset = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// alnumCharset backs opaque tokens (session tokens, auth codes, device
// codes) where case sensitivity and full entropy matter more than
// being easy to read aloud.
const alnumCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// digitCharset backs email OTPs and backup codes that must be entered
// from a phone keypad or read aloud.
const digitCharset = "0123456789"

// RandBytes returns n cryptographically secure random bytes.
func RandBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return nil, err
	}
	return b, nil
}

// NewID returns a random identifier safe for use as a primary key
// across storage backends with restrictive character sets.
func NewID() string {
	return newSecureID(16)
}

func newSecureID(n int) string {
	buf := make([]byte, n)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		panic(err)
	}
	// avoid leading digits, trim padding
	return string(buf[0]%26+'a') + strings.TrimRight(idEncoding.EncodeToString(buf[1:]), "=")
}

// NewToken returns a 32 character alphanumeric opaque token, used for
// session tokens, authorization codes, and device codes per §3.
func NewToken() string {
	return randomString(32, alnumCharset)
}

// NewUserCode returns an ambiguity-free 8 character user code for the
// device authorization flow (RFC 8628), rendered as XXXX-XXXX.
func NewUserCode() string {
	code := randomString(8, deviceCharset)
	return code[:4] + "-" + code[4:]
}

// NewDigitCode returns an n-digit numeric code, used for email OTPs.
func NewDigitCode(n int) string {
	return randomString(n, digitCharset)
}

func randomString(n int, charset string) string {
	v := big.NewInt(int64(len(charset)))
	out := make([]byte, n)
	for i := 0; i < n; i++ {
		c, err := rand.Int(rand.Reader, v)
		if err != nil {
			panic(err)
		}
		out[i] = charset[c.Int64()]
	}
	return string(out)
}

// ErrInsufficientEntropy is returned by callers that need an explicit
// error rather than a panic when random generation fails.
var ErrInsufficientEntropy = errors.New("authcrypto: unable to read enough random data")
