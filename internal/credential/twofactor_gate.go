package credential

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/ncrq/authguard/internal/authcrypto"
	"github.com/ncrq/authguard/internal/authctx"
	"github.com/ncrq/authguard/internal/session"
	"github.com/ncrq/authguard/internal/storage"
)

const cookieTwoFactor = "two_factor"

var defaultTwoFactorCookieAge = 10 * time.Minute

// TwoFactorCookie mints the short-lived signed two_factor cookie
// carrying userId, written in place of a real session cookie when a
// primary sign-in needs a second factor (§4.G's 2FA gate).
func TwoFactorCookie(ctx *authctx.Context, userID string) *http.Cookie {
	return ctx.Cookies.New(cookieTwoFactor, ctx.Cookies.Sign(userID), defaultTwoFactorCookieAge)
}

// ReadTwoFactorCookie verifies and extracts the userId a two_factor
// cookie carries.
func ReadTwoFactorCookie(ctx *authctx.Context, cookieValue string) (string, bool) {
	return ctx.Cookies.Unsign(cookieValue)
}

// --- trusted device: in-cookie strategy ---

// TrustedDeviceCookieInline mints the in-cookie trusted-device cookie
// carrying `hmac(secret, userId!sessionToken)!sessionToken`, the first
// of §4.G's two strategies: stateless, validated by recomputation.
func TrustedDeviceCookieInline(ctx *authctx.Context, userID, sessionToken string, ttl time.Duration) *http.Cookie {
	sig := authcrypto.HMACSign(ctx.Secrets.Active().Value, []byte(userID+"!"+sessionToken))
	return ctx.Cookies.New(cookieTrustDeviceInline, sig+"!"+sessionToken, ttl)
}

// ValidateTrustedDeviceInline recomputes the HMAC and reports whether
// the cookie proves userID already passed MFA on this device.
func ValidateTrustedDeviceInline(ctx *authctx.Context, userID, cookieValue string) bool {
	idx := strings.LastIndex(cookieValue, "!")
	if idx < 0 {
		return false
	}
	sig, token := cookieValue[:idx], cookieValue[idx+1:]
	return authcrypto.HMACVerify(ctx.Secrets.Active().Value, []byte(userID+"!"+token), sig)
}

const cookieTrustDeviceInline = "trust_device"

// --- trusted device: in-db strategy ---

const defaultTrustedDeviceTTL = 30 * 24 * time.Hour

// TrustDeviceInDB persists a TrustedDevice row and returns the signed
// cookie carrying its deviceId, valid 30 days.
func TrustDeviceInDB(ctx *authctx.Context, rc context.Context, userID, userAgent string) (*http.Cookie, error) {
	deviceID := authcrypto.NewID()
	now := ctx.Now()
	if _, err := ctx.Storage.CreateTrustedDevice(rc, storage.TrustedDevice{
		DeviceID:  deviceID,
		UserID:    userID,
		UserAgent: userAgent,
		ExpiresAt: now.Add(defaultTrustedDeviceTTL),
	}); err != nil {
		return nil, err
	}
	return session.TrustDeviceCookie(ctx, deviceID, defaultTrustedDeviceTTL), nil
}

// ValidateTrustedDeviceInDB looks the device row up, rejects it if
// expired or owned by a different user, and otherwise slides its
// expiry forward another 30 days.
func ValidateTrustedDeviceInDB(ctx *authctx.Context, rc context.Context, userID, cookieValue string) bool {
	deviceID, ok := session.TrustedDeviceID(ctx, cookieValue)
	if !ok {
		return false
	}
	d, err := ctx.Storage.FindTrustedDevice(rc, deviceID)
	if err != nil || d.UserID != userID {
		return false
	}
	now := ctx.Now()
	if now.After(d.ExpiresAt) {
		_ = ctx.Storage.DeleteTrustedDevice(rc, deviceID)
		return false
	}
	_, _ = ctx.Storage.UpdateTrustedDevice(rc, deviceID, storage.Record{"expires_at": now.Add(defaultTrustedDeviceTTL)})
	return true
}
