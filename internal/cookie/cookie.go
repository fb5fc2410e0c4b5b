// Package cookie implements the signed and encrypted cookie layer
// described in §4.B: name prefixing, Set-Cookie attributes, and
// tamper-evident value encoding.
package cookie

import (
	"net/http"
	"strings"
	"time"

	"github.com/ncrq/authguard/internal/authcrypto"
)

// SameSite mirrors http.SameSite but keeps cookie package callers from
// needing to import net/http for one constant set.
type SameSite = http.SameSite

// Level controls how strict the cookie's Secure/SameSite/prefix
// attributes are, selected from server configuration.
type Level int

const (
	// LevelDefault issues HttpOnly, SameSite=Lax cookies, Secure when
	// the request arrived over HTTPS.
	LevelDefault Level = iota
	// LevelCrossSubdomain additionally sets Domain to the registrable
	// suffix so the cookie is shared across subdomains.
	LevelCrossSubdomain
)

// Factory mints cookies with the project's naming and attribute
// conventions. One Factory is constructed at startup from
// authctx.Context and handed to every package that needs to read or
// write cookies.
type Factory struct {
	Prefix     string // e.g. "better-auth"; cookie names become "<prefix>.<name>"
	Secrets    authcrypto.SecretRing
	Secure     bool // true when baseURL is https
	Level      Level
	Domain     string        // registrable suffix, used only at LevelCrossSubdomain
	DefaultAge time.Duration // Max-Age when callers don't override it
}

// Name computes the fully prefixed cookie name, applying the
// "__Secure-" browser prefix whenever the cookie will be sent over
// HTTPS, per §4.B and the cookie name table in §6.
func (f *Factory) Name(name string) string {
	full := f.Prefix + "." + name
	if f.Secure {
		full = "__Secure-" + full
	}
	return full
}

// New builds a plain (unsigned) cookie with the factory's standard
// attributes. value is used as-is; callers that need tamper evidence
// should use Sign or Seal first.
func (f *Factory) New(name, value string, maxAge time.Duration) *http.Cookie {
	if maxAge == 0 {
		maxAge = f.DefaultAge
	}
	c := &http.Cookie{
		Name:     f.Name(name),
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   f.Secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(maxAge.Seconds()),
	}
	if f.Level == LevelCrossSubdomain && f.Domain != "" {
		c.Domain = f.Domain
	}
	return c
}

// Expired returns a cookie that instructs the browser to delete name
// immediately (Max-Age: 0), the only way a hook may clear a cookie
// rather than append a new one, per §4.E/§5.
func (f *Factory) Expired(name string) *http.Cookie {
	c := f.New(name, "", 0)
	c.MaxAge = -1
	return c
}

// Sign produces a signed cookie value "value!signature" as described
// in §3: the MAC covers the value only, keyed by the active secret.
func (f *Factory) Sign(value string) string {
	sig := authcrypto.HMACSign(f.Secrets.Active().Value, []byte(value))
	return value + "!" + sig
}

// Unsign verifies and strips the signature appended by Sign, trying
// every secret in the ring newest-first to support rotation.
func (f *Factory) Unsign(signed string) (value string, ok bool) {
	idx := strings.LastIndex(signed, "!")
	if idx < 0 {
		return "", false
	}
	value, sig := signed[:idx], signed[idx+1:]
	if _, ok := f.Secrets.Verify([]byte(value), sig); !ok {
		return "", false
	}
	return value, true
}

// Seal produces an encrypted cookie value using the active secret as
// the AEAD key, for values that must not be readable client-side even
// in opaque form.
func (f *Factory) Seal(value string) (string, error) {
	return authcrypto.Encrypt(f.Secrets.Active().Value[:32], []byte(value))
}

// Open decrypts a value produced by Seal.
func (f *Factory) Open(sealed string) (string, error) {
	for _, s := range f.Secrets {
		if len(s.Value) < 32 {
			continue
		}
		if pt, err := authcrypto.Decrypt(s.Value[:32], sealed); err == nil {
			return string(pt), nil
		}
	}
	return "", authcrypto.ErrInvalidCiphertext
}

// SignedSet writes a signed cookie named name to w.
func (f *Factory) SignedSet(w http.ResponseWriter, name, value string, maxAge time.Duration) {
	c := f.New(name, f.Sign(value), maxAge)
	http.SetCookie(w, c)
}

// SignedGet reads and verifies a signed cookie from r, returning the
// unsigned value.
func (f *Factory) SignedGet(r *http.Request, name string) (string, bool) {
	c, err := r.Cookie(f.Name(name))
	if err != nil {
		return "", false
	}
	return f.Unsign(c.Value)
}

// Clear appends a Max-Age: 0 cookie that deletes name.
func (f *Factory) Clear(w http.ResponseWriter, name string) {
	http.SetCookie(w, f.Expired(name))
}
