// Package credential implements §4.G: password sign-up/sign-in, TOTP
// and backup-code MFA, email OTP, the 2FA gate, and trusted-device
// binding. Grounded on user/password.go's PasswordInfo.Authenticate
// (uniform error on any mismatch, a swappable hasher function) and
// user/email_verification.go's verification-record OTP pattern.
package credential

import (
	"context"
	"errors"
	"net/http"

	"github.com/ncrq/authguard/internal/authcrypto"
	"github.com/ncrq/authguard/internal/authctx"
	"github.com/ncrq/authguard/internal/session"
	"github.com/ncrq/authguard/internal/storage"
)

const providerCredential = "credential"

// ErrInvalidCredentials is returned for any sign-in failure: unknown
// email, wrong password, or a malformed stored hash. The teacher's
// PasswordInfo.Authenticate collapses these the same way so a caller
// can't distinguish "no such account" from "wrong password".
var ErrInvalidCredentials = errors.New("credential: invalid email or password")

// ErrEmailTaken is returned by SignUp when the email already has a
// credential account.
var ErrEmailTaken = errors.New("credential: email already registered")

// SignUp creates a User and its credential Account, then starts a
// session exactly as a first sign-in would.
func SignUp(ctx *authctx.Context, rc context.Context, email, password, displayName string, info session.RequestInfo) (storage.User, storage.Session, *http.Cookie, error) {
	if _, err := ctx.Storage.FindAccount(rc, providerCredential, email); err == nil {
		return storage.User{}, storage.Session{}, nil, ErrEmailTaken
	}

	hash, err := authcrypto.HashPassword(password, ctx.Pepper)
	if err != nil {
		return storage.User{}, storage.Session{}, nil, err
	}

	now := ctx.Now()
	user, err := ctx.Storage.CreateUser(rc, storage.User{
		ID:          authcrypto.NewID(),
		Email:       email,
		DisplayName: displayName,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		return storage.User{}, storage.Session{}, nil, err
	}

	if _, err := ctx.Storage.LinkAccount(rc, storage.Account{
		ID:           authcrypto.NewID(),
		UserID:       user.ID,
		ProviderID:   providerCredential,
		AccountID:    email,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}); err != nil {
		return storage.User{}, storage.Session{}, nil, err
	}

	s, cookie, err := session.CreateSession(ctx, rc, user.ID, info)
	return user, s, cookie, err
}

// SignIn verifies email/password and starts a session. If the user has
// TOTP enabled, the caller (the pipeline handler) is expected to check
// User.TwoFactorEnabled itself and route into the 2FA gate instead of
// calling SignIn directly for the final session — SignIn always
// authenticates the password and returns the User; the handler decides
// whether a full session or a two_factor cookie comes next.
func SignIn(ctx *authctx.Context, rc context.Context, email, password string) (storage.User, error) {
	acc, err := ctx.Storage.FindAccount(rc, providerCredential, email)
	if err != nil {
		return storage.User{}, ErrInvalidCredentials
	}

	ok, err := authcrypto.VerifyPassword(password, ctx.Pepper, acc.PasswordHash)
	if err != nil || !ok {
		return storage.User{}, ErrInvalidCredentials
	}

	user, err := ctx.Storage.FindUserByID(rc, acc.UserID)
	if err != nil {
		return storage.User{}, ErrInvalidCredentials
	}
	return user, nil
}

// ChangePassword validates the current password before writing the
// new one, and optionally revokes every other session for the user
// (the active one is left untouched since keepSessionID names it).
func ChangePassword(ctx *authctx.Context, rc context.Context, userID, currentPassword, newPassword string, revokeOthers bool, keepSessionID string) error {
	account, err := ctx.Storage.FindAccountByUserAndProvider(rc, userID, providerCredential)
	if err != nil {
		return ErrInvalidCredentials
	}

	ok, err := authcrypto.VerifyPassword(currentPassword, ctx.Pepper, account.PasswordHash)
	if err != nil || !ok {
		return ErrInvalidCredentials
	}

	newHash, err := authcrypto.HashPassword(newPassword, ctx.Pepper)
	if err != nil {
		return err
	}
	if _, err := ctx.Storage.UpdateAccount(rc, account.ID, storage.Record{
		"password_hash": newHash,
		"updated_at":    ctx.Now(),
	}); err != nil {
		return err
	}

	if !revokeOthers {
		return nil
	}
	_, err = ctx.Storage.Raw.DeleteMany(rc, storage.ModelSession, []storage.Where{
		storage.Eq("user_id", userID),
		{Field: "id", Operator: storage.OpNe, Value: keepSessionID},
	})
	return err
}
