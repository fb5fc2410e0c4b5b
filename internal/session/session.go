// Package session implements §4.F: opaque-token session creation,
// rolling-expiry refresh, lookup/hydration, and admin impersonation.
// Grounded on session/manager.go's SessionManager — same "injectable
// clock, injectable code generator" shape — generalized with the
// expiresAt/updateAge rolling-refresh math and the impersonation/
// trusted-device fields the teacher's OIDC-relay session doesn't need.
package session

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/ncrq/authguard/internal/authcrypto"
	"github.com/ncrq/authguard/internal/authctx"
	"github.com/ncrq/authguard/internal/storage"
)

const (
	cookieSessionToken = "session_token"
	cookieAdminSession = "admin_session"
	cookieTrustDevice  = "trust_device"
)

var (
	ErrInvalidSession = errors.New("session: invalid or unsigned cookie")
	ErrNotFound       = errors.New("session: not found")
	ErrExpired        = errors.New("session: expired")
	ErrBanned         = errors.New("session: user is banned")
)

// RequestInfo carries the per-request metadata a Session row records.
type RequestInfo struct {
	UserAgent string
	IPAddress string
}

// CreateSession implements createSession(userId, ctx, fresh, overrides)
// for an ordinary (non-impersonated) sign-in.
func CreateSession(ctx *authctx.Context, rc context.Context, userID string, info RequestInfo) (storage.Session, *http.Cookie, error) {
	return newSession(ctx, rc, userID, info, "")
}

func newSession(ctx *authctx.Context, rc context.Context, userID string, info RequestInfo, impersonatedBy string) (storage.Session, *http.Cookie, error) {
	now := ctx.Now()
	s := storage.Session{
		ID:             authcrypto.NewID(),
		Token:          authcrypto.NewToken(),
		UserID:         userID,
		ExpiresAt:      now.Add(ctx.Options.Session.ExpiresIn),
		CreatedAt:      now,
		UpdatedAt:      now,
		UserAgent:      info.UserAgent,
		IPAddress:      info.IPAddress,
		ImpersonatedBy: impersonatedBy,
	}
	created, err := ctx.Storage.CreateSession(rc, s)
	if err != nil {
		return storage.Session{}, nil, err
	}
	return created, sessionCookie(ctx, created), nil
}

func sessionCookie(ctx *authctx.Context, s storage.Session) *http.Cookie {
	maxAge := time.Until(s.ExpiresAt)
	return ctx.Cookies.New(cookieSessionToken, ctx.Cookies.Sign(s.Token), maxAge)
}

// Touch implements updateSession: the session middleware calls this on
// every authenticated request, and when the rolling-refresh threshold
// has passed a new expiresAt is persisted and a refreshed cookie is
// returned. Returns a nil cookie when no refresh was needed.
//
// The threshold is `expiresAt - expiresIn + updateAge <= now`, applied
// exactly as written. §9 notes updateAge=0 is documented elsewhere as
// "disables rolling" but the formula as given computes to `now >=
// expiresAt - expiresIn`, which is true almost immediately after
// creation — so with updateAge=0 this still rolls on the next touch.
// That surprise is preserved rather than papered over.
func Touch(ctx *authctx.Context, rc context.Context, s storage.Session) (storage.Session, *http.Cookie, error) {
	now := ctx.Now()
	threshold := s.ExpiresAt.Add(-ctx.Options.Session.ExpiresIn).Add(ctx.Options.Session.UpdateAge)
	if now.Before(threshold) {
		return s, nil, nil
	}

	newExpiry := now.Add(ctx.Options.Session.ExpiresIn)
	updated, err := ctx.Storage.UpdateSession(rc, s.ID, storage.Record{
		"expires_at": newExpiry,
		"updated_at": now,
	})
	if err != nil {
		return s, nil, err
	}
	return updated, sessionCookie(ctx, updated), nil
}

// FindSession implements findSession(token): verify the cookie
// signature, look the session up, reject if expired, hydrate the
// user, and refuse banned users. The returned cookie is non-nil only
// when the caller should clear it client-side (expired, not found, or
// banned).
func FindSession(ctx *authctx.Context, rc context.Context, cookieValue string) (storage.Session, storage.User, *http.Cookie, error) {
	token, ok := ctx.Cookies.Unsign(cookieValue)
	if !ok {
		return storage.Session{}, storage.User{}, nil, ErrInvalidSession
	}

	s, err := ctx.Storage.FindSessionByToken(rc, token)
	if err != nil {
		return storage.Session{}, storage.User{}, ctx.Cookies.Expired(cookieSessionToken), ErrNotFound
	}

	if ctx.Now().After(s.ExpiresAt) {
		_ = ctx.Storage.DeleteSession(rc, s.ID)
		return storage.Session{}, storage.User{}, ctx.Cookies.Expired(cookieSessionToken), ErrExpired
	}

	user, err := ctx.Storage.FindUserByID(rc, s.UserID)
	if err != nil {
		_ = ctx.Storage.DeleteSession(rc, s.ID)
		return storage.Session{}, storage.User{}, ctx.Cookies.Expired(cookieSessionToken), ErrNotFound
	}

	if user.Banned && (user.BanExpires == nil || ctx.Now().Before(*user.BanExpires)) {
		_ = ctx.Storage.DeleteSession(rc, s.ID)
		return storage.Session{}, storage.User{}, ctx.Cookies.Expired(cookieSessionToken), ErrBanned
	}

	return s, user, nil, nil
}

// Delete implements sign-out: remove the row and return a cookie that
// clears it client-side.
func Delete(ctx *authctx.Context, rc context.Context, sessionID string) (*http.Cookie, error) {
	if err := ctx.Storage.DeleteSession(rc, sessionID); err != nil {
		return nil, err
	}
	return ctx.Cookies.Expired(cookieSessionToken), nil
}

// RevokeAllForUser deletes every session belonging to userID and
// returns how many were removed.
func RevokeAllForUser(ctx *authctx.Context, rc context.Context, userID string) (int64, error) {
	return ctx.Storage.DeleteSessionsForUser(rc, userID)
}

// Impersonate creates a child session for targetUserID with
// impersonatedBy set to the admin's user id, stashes the admin's
// original session id in a signed admin_session cookie, and returns
// both cookies to set (the new active session cookie, then the
// admin_session cookie) in that order.
func Impersonate(ctx *authctx.Context, rc context.Context, adminSession storage.Session, targetUserID string, info RequestInfo) (storage.Session, []*http.Cookie, error) {
	child, sessionCk, err := newSession(ctx, rc, targetUserID, info, adminSession.UserID)
	if err != nil {
		return storage.Session{}, nil, err
	}
	adminCk := ctx.Cookies.New(cookieAdminSession, ctx.Cookies.Sign(adminSession.ID), ctx.Options.Session.ExpiresIn)
	return child, []*http.Cookie{sessionCk, adminCk}, nil
}

// StopImpersonating reads the admin_session cookie, restores the
// parent session as active, deletes the impersonated child session,
// and clears the admin_session cookie.
func StopImpersonating(ctx *authctx.Context, rc context.Context, child storage.Session, adminSessionCookieValue string) (storage.Session, []*http.Cookie, error) {
	adminSessionID, ok := ctx.Cookies.Unsign(adminSessionCookieValue)
	if !ok {
		return storage.Session{}, nil, ErrInvalidSession
	}
	parent, err := ctx.Storage.FindSessionByID(rc, adminSessionID)
	if err != nil {
		return storage.Session{}, nil, err
	}
	if err := ctx.Storage.DeleteSession(rc, child.ID); err != nil {
		return storage.Session{}, nil, err
	}
	return parent, []*http.Cookie{sessionCookie(ctx, parent), ctx.Cookies.Expired(cookieAdminSession)}, nil
}

// TrustDeviceCookie mints the signed trust_device cookie set after a
// successful MFA challenge, so a subsequent sign-in from the same
// browser can skip the second factor. The cookie carries the deviceId of
// a TrustedDevice row, for the in-db trusted-device strategy.
func TrustDeviceCookie(ctx *authctx.Context, deviceID string, ttl time.Duration) *http.Cookie {
	return ctx.Cookies.New(cookieTrustDevice, ctx.Cookies.Sign(deviceID), ttl)
}

// TrustedDeviceID verifies and returns the device id carried by a
// trust_device cookie value, if any.
func TrustedDeviceID(ctx *authctx.Context, cookieValue string) (string, bool) {
	return ctx.Cookies.Unsign(cookieValue)
}
