package session_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ncrq/authguard/internal/authctx"
	"github.com/ncrq/authguard/internal/session"
	"github.com/ncrq/authguard/internal/storage"
	"github.com/ncrq/authguard/internal/storage/memory"
)

func newTestContext(t *testing.T, updateAge time.Duration) *authctx.Context {
	t.Helper()
	ctx, err := authctx.New(authctx.Options{
		BaseURL: "https://auth.example.com",
		Secrets: []authctx.SecretSpec{{Version: 1, Value: []byte("0123456789abcdef0123456789abcdef")}},
		Session: authctx.SessionOptions{ExpiresIn: 7 * 24 * time.Hour, UpdateAge: updateAge},
	}, memory.New(), nil, nil)
	require.NoError(t, err)
	return ctx
}

func mustUser(t *testing.T, ctx *authctx.Context) storage.User {
	t.Helper()
	u, err := ctx.Storage.CreateUser(context.Background(), storage.User{
		ID:    "user-1",
		Email: "a@b.c",
	})
	require.NoError(t, err)
	return u
}

func TestCreateAndFindSession(t *testing.T) {
	ctx := newTestContext(t, time.Hour)
	user := mustUser(t, ctx)
	rc := context.Background()

	s, cookie, err := session.CreateSession(ctx, rc, user.ID, session.RequestInfo{UserAgent: "ua", IPAddress: "1.2.3.4"})
	require.NoError(t, err)
	require.NotNil(t, cookie)
	require.NotEmpty(t, s.Token)

	found, foundUser, clearCookie, err := session.FindSession(ctx, rc, cookie.Value)
	require.NoError(t, err)
	require.Nil(t, clearCookie)
	require.Equal(t, s.ID, found.ID)
	require.Equal(t, user.Email, foundUser.Email)
}

func TestFindSessionRejectsTamperedCookie(t *testing.T) {
	ctx := newTestContext(t, time.Hour)
	_, _, clearCookie, err := session.FindSession(ctx, context.Background(), "not-a-real-cookie-value")
	require.ErrorIs(t, err, session.ErrInvalidSession)
	require.Nil(t, clearCookie)
}

func TestFindSessionDeletesExpired(t *testing.T) {
	ctx := newTestContext(t, time.Hour)
	user := mustUser(t, ctx)
	rc := context.Background()

	s, cookie, err := session.CreateSession(ctx, rc, user.ID, session.RequestInfo{})
	require.NoError(t, err)

	_, err = ctx.Storage.UpdateSession(rc, s.ID, storage.Record{"expires_at": ctx.Now().Add(-time.Minute)})
	require.NoError(t, err)

	_, _, clearCookie, err := session.FindSession(ctx, rc, cookie.Value)
	require.ErrorIs(t, err, session.ErrExpired)
	require.NotNil(t, clearCookie)

	_, err = ctx.Storage.FindSessionByID(rc, s.ID)
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestFindSessionRejectsBannedUser(t *testing.T) {
	ctx := newTestContext(t, time.Hour)
	user := mustUser(t, ctx)
	rc := context.Background()

	s, cookie, err := session.CreateSession(ctx, rc, user.ID, session.RequestInfo{})
	require.NoError(t, err)

	_, err = ctx.Storage.UpdateUser(rc, user.ID, storage.Record{"banned": true})
	require.NoError(t, err)

	_, _, clearCookie, err := session.FindSession(ctx, rc, cookie.Value)
	require.ErrorIs(t, err, session.ErrBanned)
	require.NotNil(t, clearCookie)

	_, err = ctx.Storage.FindSessionByID(rc, s.ID)
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestTouchRollsExpiryPastThreshold(t *testing.T) {
	ctx := newTestContext(t, time.Hour)
	user := mustUser(t, ctx)
	rc := context.Background()

	s, _, err := session.CreateSession(ctx, rc, user.ID, session.RequestInfo{})
	require.NoError(t, err)

	// Not yet past the threshold: expiresAt - expiresIn + updateAge is
	// far in the future relative to now, so no roll happens.
	rolled, cookie, err := session.Touch(ctx, rc, s)
	require.NoError(t, err)
	require.Nil(t, cookie)
	require.Equal(t, s.ExpiresAt, rolled.ExpiresAt)

	// Push expiresAt close enough that the threshold has passed.
	near := ctx.Now().Add(30 * time.Minute)
	s.ExpiresAt = near
	_, err = ctx.Storage.UpdateSession(rc, s.ID, storage.Record{"expires_at": near})
	require.NoError(t, err)

	rolled, cookie, err = session.Touch(ctx, rc, s)
	require.NoError(t, err)
	require.NotNil(t, cookie)
	require.True(t, rolled.ExpiresAt.After(near))
}

func TestImpersonateAndStop(t *testing.T) {
	ctx := newTestContext(t, time.Hour)
	admin := mustUser(t, ctx)
	rc := context.Background()
	target, err := ctx.Storage.CreateUser(rc, storage.User{ID: "user-2", Email: "target@b.c"})
	require.NoError(t, err)

	adminSession, _, err := session.CreateSession(ctx, rc, admin.ID, session.RequestInfo{})
	require.NoError(t, err)

	child, cookies, err := session.Impersonate(ctx, rc, adminSession, target.ID, session.RequestInfo{})
	require.NoError(t, err)
	require.Equal(t, admin.ID, child.ImpersonatedBy)
	require.Len(t, cookies, 2)

	adminCookieValue, ok := ctx.Cookies.Unsign(cookies[1].Value)
	require.True(t, ok)
	require.Equal(t, adminSession.ID, adminCookieValue)

	parent, stopCookies, err := session.StopImpersonating(ctx, rc, child, cookies[1].Value)
	require.NoError(t, err)
	require.Equal(t, adminSession.ID, parent.ID)
	require.Len(t, stopCookies, 2)

	_, err = ctx.Storage.FindSessionByID(rc, child.ID)
	require.ErrorIs(t, err, storage.ErrNotFound)
}
