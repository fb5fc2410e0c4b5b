package oauth

import (
	"context"
	"net/http"

	"github.com/ncrq/authguard/internal/authctx"
	"github.com/ncrq/authguard/internal/session"
	"github.com/ncrq/authguard/internal/storage"
)

const sessionCookieName = "session_token"

// currentSession reads and verifies the session_token cookie, if any.
// ok is false when no cookie is present or it fails verification —
// callers treat that as "no session" rather than an error.
func currentSession(ctx *authctx.Context, rc context.Context, r *http.Request) (storage.Session, storage.User, bool) {
	c, err := r.Cookie(ctx.Cookies.Name(sessionCookieName))
	if err != nil {
		return storage.Session{}, storage.User{}, false
	}
	s, user, _, err := session.FindSession(ctx, rc, c.Value)
	if err != nil {
		return storage.Session{}, storage.User{}, false
	}
	return s, user, true
}
