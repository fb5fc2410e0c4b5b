package credential

import (
	"context"
	"fmt"
	"time"

	"github.com/ncrq/authguard/internal/authcrypto"
	"github.com/ncrq/authguard/internal/authctx"
	"github.com/ncrq/authguard/internal/storage"
)

const defaultEmailOTPExpiry = 5 * time.Minute

func emailOTPIdentifier(purpose, email string) string {
	return fmt.Sprintf("%s-otp-%s", purpose, email)
}

// GenerateEmailOTP mints a digits-only OTP for purpose (e.g.
// "sign-in", "email-verification") and persists it as a single-use
// Verification with the default 5 minute expiry.
func GenerateEmailOTP(ctx *authctx.Context, rc context.Context, purpose, email string) (string, error) {
	code := authcrypto.NewDigitCode(6)
	now := ctx.Now()
	_, err := ctx.Storage.CreateVerification(rc, storage.Verification{
		ID:         authcrypto.NewID(),
		Identifier: emailOTPIdentifier(purpose, email),
		Value:      code,
		ExpiresAt:  now.Add(defaultEmailOTPExpiry),
		CreatedAt:  now,
	})
	return code, err
}

// VerifyEmailOTP consumes the stored verification (single-use) and
// reports whether code matched.
func VerifyEmailOTP(ctx *authctx.Context, rc context.Context, purpose, email, code string) error {
	v, err := ctx.Storage.ConsumeVerification(rc, emailOTPIdentifier(purpose, email), ctx.Now())
	if err != nil {
		return ErrInvalidCode
	}
	if v.Value != code {
		return ErrInvalidCode
	}
	return nil
}
