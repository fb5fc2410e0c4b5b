package credential_test

import (
	"context"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/require"

	"github.com/ncrq/authguard/internal/authctx"
	"github.com/ncrq/authguard/internal/credential"
	"github.com/ncrq/authguard/internal/session"
	"github.com/ncrq/authguard/internal/storage/memory"
)

func newTestContext(t *testing.T) *authctx.Context {
	t.Helper()
	ctx, err := authctx.New(authctx.Options{
		BaseURL: "https://auth.example.com",
		Secrets: []authctx.SecretSpec{{Version: 1, Value: []byte("0123456789abcdef0123456789abcdef")}},
		Session: authctx.SessionOptions{ExpiresIn: 7 * 24 * time.Hour},
	}, memory.New(), nil, nil)
	require.NoError(t, err)
	return ctx
}

func TestSignUpThenSignIn(t *testing.T) {
	ctx := newTestContext(t)
	rc := context.Background()

	user, s, cookie, err := credential.SignUp(ctx, rc, "a@b.c", "Passw0rd!", "A", session.RequestInfo{})
	require.NoError(t, err)
	require.NotEmpty(t, s.Token)
	require.NotNil(t, cookie)

	_, _, _, err = credential.SignUp(ctx, rc, "a@b.c", "Passw0rd!", "A", session.RequestInfo{})
	require.ErrorIs(t, err, credential.ErrEmailTaken)

	signedIn, err := credential.SignIn(ctx, rc, "a@b.c", "Passw0rd!")
	require.NoError(t, err)
	require.Equal(t, user.ID, signedIn.ID)

	_, err = credential.SignIn(ctx, rc, "a@b.c", "wrong-password")
	require.ErrorIs(t, err, credential.ErrInvalidCredentials)

	_, err = credential.SignIn(ctx, rc, "nobody@b.c", "Passw0rd!")
	require.ErrorIs(t, err, credential.ErrInvalidCredentials)
}

func TestChangePasswordRevokesOtherSessions(t *testing.T) {
	ctx := newTestContext(t)
	rc := context.Background()

	user, s1, _, err := credential.SignUp(ctx, rc, "a@b.c", "Passw0rd!", "A", session.RequestInfo{})
	require.NoError(t, err)
	s2, _, err := session.CreateSession(ctx, rc, user.ID, session.RequestInfo{})
	require.NoError(t, err)

	err = credential.ChangePassword(ctx, rc, user.ID, "Passw0rd!", "NewPassw0rd!", true, s1.ID)
	require.NoError(t, err)

	_, _, _, err = session.FindSession(ctx, rc, ctx.Cookies.Sign(s1.Token))
	require.NoError(t, err)
	_, _, _, err = session.FindSession(ctx, rc, ctx.Cookies.Sign(s2.Token))
	require.Error(t, err)

	_, err = credential.SignIn(ctx, rc, "a@b.c", "Passw0rd!")
	require.ErrorIs(t, err, credential.ErrInvalidCredentials)
	_, err = credential.SignIn(ctx, rc, "a@b.c", "NewPassw0rd!")
	require.NoError(t, err)
}

func TestTOTPEnableAndVerify(t *testing.T) {
	ctx := newTestContext(t)
	rc := context.Background()
	user, _, _, err := credential.SignUp(ctx, rc, "a@b.c", "Passw0rd!", "A", session.RequestInfo{})
	require.NoError(t, err)

	otpauthURL, backupCodes, err := credential.EnableTOTP(ctx, rc, user.ID, "AuthGuard", user.Email)
	require.NoError(t, err)
	require.NotEmpty(t, otpauthURL)
	require.Len(t, backupCodes, 10)

	key, err := totp.NewKeyFromURL(otpauthURL)
	require.NoError(t, err)
	code, err := totp.GenerateCode(key.Secret(), ctx.Now())
	require.NoError(t, err)

	require.NoError(t, credential.VerifyTOTP(ctx, rc, user.ID, code))
	require.ErrorIs(t, credential.VerifyTOTP(ctx, rc, user.ID, "000000"), credential.ErrInvalidCode)

	require.NoError(t, credential.ConsumeBackupCode(ctx, rc, user.ID, backupCodes[0]))
	require.ErrorIs(t, credential.ConsumeBackupCode(ctx, rc, user.ID, backupCodes[0]), credential.ErrInvalidCode)
}

func TestEmailOTPSingleUse(t *testing.T) {
	ctx := newTestContext(t)
	rc := context.Background()

	code, err := credential.GenerateEmailOTP(ctx, rc, "sign-in", "a@b.c")
	require.NoError(t, err)

	require.NoError(t, credential.VerifyEmailOTP(ctx, rc, "sign-in", "a@b.c", code))
	require.ErrorIs(t, credential.VerifyEmailOTP(ctx, rc, "sign-in", "a@b.c", code), credential.ErrInvalidCode)
}

func TestTwoFactorGateCookie(t *testing.T) {
	ctx := newTestContext(t)
	cookie := credential.TwoFactorCookie(ctx, "user-1")
	userID, ok := credential.ReadTwoFactorCookie(ctx, cookie.Value)
	require.True(t, ok)
	require.Equal(t, "user-1", userID)
}

func TestTrustedDeviceInDB(t *testing.T) {
	ctx := newTestContext(t)
	rc := context.Background()

	cookie, err := credential.TrustDeviceInDB(ctx, rc, "user-1", "ua")
	require.NoError(t, err)
	require.True(t, credential.ValidateTrustedDeviceInDB(ctx, rc, "user-1", cookie.Value))
	require.False(t, credential.ValidateTrustedDeviceInDB(ctx, rc, "user-2", cookie.Value))
}

func TestTrustedDeviceInline(t *testing.T) {
	ctx := newTestContext(t)
	cookie := credential.TrustedDeviceCookieInline(ctx, "user-1", "session-token-abc", 24*time.Hour)
	require.True(t, credential.ValidateTrustedDeviceInline(ctx, "user-1", cookie.Value))
	require.False(t, credential.ValidateTrustedDeviceInline(ctx, "user-2", cookie.Value))
}
