package cookie

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ncrq/authguard/internal/authcrypto"
)

func newTestFactory() *Factory {
	return &Factory{
		Prefix:     "better-auth",
		Secrets:    authcrypto.SecretRing{{Version: 1, Value: []byte("0123456789abcdef0123456789abcdef")}},
		DefaultAge: time.Hour,
	}
}

func TestSignedCookieRoundTrip(t *testing.T) {
	f := newTestFactory()
	signed := f.Sign("session-token-value")

	value, ok := f.Unsign(signed)
	require.True(t, ok)
	require.Equal(t, "session-token-value", value)
}

func TestSignedCookieTamperFails(t *testing.T) {
	f := newTestFactory()
	signed := f.Sign("session-token-value")
	tampered := signed[:len(signed)-1] + "x"

	_, ok := f.Unsign(tampered)
	require.False(t, ok)
}

func TestSignedCookieRotation(t *testing.T) {
	f := newTestFactory()
	signed := f.Sign("value")

	// rotate in a new active secret; old signatures still verify
	f.Secrets = append(f.Secrets, authcrypto.Secret{Version: 2, Value: []byte("fedcba9876543210fedcba9876543210")})

	value, ok := f.Unsign(signed)
	require.True(t, ok)
	require.Equal(t, "value", value)
}

func TestSealOpenRoundTrip(t *testing.T) {
	f := newTestFactory()
	sealed, err := f.Seal("admin-session-id")
	require.NoError(t, err)
	require.NotContains(t, sealed, "admin-session-id")

	opened, err := f.Open(sealed)
	require.NoError(t, err)
	require.Equal(t, "admin-session-id", opened)
}

func TestNamePrefixing(t *testing.T) {
	f := newTestFactory()
	require.Equal(t, "better-auth.session_token", f.Name("session_token"))

	f.Secure = true
	require.Equal(t, "__Secure-better-auth.session_token", f.Name("session_token"))
}

func TestSignedSetGetRoundTrip(t *testing.T) {
	f := newTestFactory()
	w := httptest.NewRecorder()
	f.SignedSet(w, "session_token", "tok123", 0)

	r := httptest.NewRequest("GET", "/", nil)
	for _, c := range w.Result().Cookies() {
		r.AddCookie(c)
	}

	value, ok := f.SignedGet(r, "session_token")
	require.True(t, ok)
	require.Equal(t, "tok123", value)
}

func TestSplitSetCookieHandlesExpiresCommas(t *testing.T) {
	header := "a=1; Expires=Wed, 09 Jun 2021 10:18:14 GMT, b=2; Path=/"
	parts := SplitSetCookie(header)
	require.Len(t, parts, 2)
	require.Contains(t, parts[0], "a=1")
	require.Contains(t, parts[1], "b=2")
}

func TestParseSetCookie(t *testing.T) {
	name, value, attrs := ParseSetCookie("session=abc123; Path=/; HttpOnly; SameSite=Lax")
	require.Equal(t, "session", name)
	require.Equal(t, "abc123", value)
	require.Contains(t, attrs, Attr{Key: "path", Value: "/"})
	require.Contains(t, attrs, Attr{Key: "httponly", Value: ""})
}
