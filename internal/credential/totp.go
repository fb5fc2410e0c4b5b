package credential

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"

	"github.com/ncrq/authguard/internal/authcrypto"
	"github.com/ncrq/authguard/internal/authctx"
	"github.com/ncrq/authguard/internal/storage"
)

const (
	defaultPeriod     = 30
	defaultDigits     = 6
	defaultBackupSize = 10
)

var ErrInvalidCode = errors.New("credential: invalid verification code")

// EnableTOTP generates a new TOTP secret for userID, persists it
// encrypted alongside a freshly generated batch of encrypted backup
// codes, and returns the otpauth:// URL for the authenticator app plus
// the plaintext backup codes (shown to the user exactly once).
func EnableTOTP(ctx *authctx.Context, rc context.Context, userID, issuer, accountName string) (otpauthURL string, backupCodes []string, err error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      issuer,
		AccountName: accountName,
		Period:      defaultPeriod,
		Digits:      otp.DigitsSix,
	})
	if err != nil {
		return "", nil, err
	}

	secretEnc, err := authcrypto.Encrypt(ctx.Secrets.Active().Value[:32], []byte(key.Secret()))
	if err != nil {
		return "", nil, err
	}

	backupCodes = make([]string, defaultBackupSize)
	for i := range backupCodes {
		backupCodes[i] = authcrypto.NewToken()[:10]
	}
	backupJSON, err := json.Marshal(backupCodes)
	if err != nil {
		return "", nil, err
	}
	backupEnc, err := authcrypto.Encrypt(ctx.Secrets.Active().Value[:32], backupJSON)
	if err != nil {
		return "", nil, err
	}

	if _, err := ctx.Storage.FindTwoFactor(rc, userID); err == nil {
		if _, err := ctx.Storage.UpdateTwoFactor(rc, userID, storage.Record{
			"secret_encrypted":       secretEnc,
			"backup_codes_encrypted": backupEnc,
			"period":                 defaultPeriod,
			"digits":                 defaultDigits,
		}); err != nil {
			return "", nil, err
		}
	} else if _, err := ctx.Storage.CreateTwoFactor(rc, storage.TwoFactor{
		UserID:               userID,
		SecretEncrypted:      secretEnc,
		BackupCodesEncrypted: backupEnc,
		Period:               defaultPeriod,
		Digits:               defaultDigits,
	}); err != nil {
		return "", nil, err
	}

	if _, err := ctx.Storage.UpdateUser(rc, userID, storage.Record{"two_factor_enabled": true}); err != nil {
		return "", nil, err
	}

	return key.URL(), backupCodes, nil
}

// VerifyTOTP decrypts the stored secret and validates code within a
// ±1 step window (per §4.G).
func VerifyTOTP(ctx *authctx.Context, rc context.Context, userID, code string) error {
	tf, err := ctx.Storage.FindTwoFactor(rc, userID)
	if err != nil {
		return ErrInvalidCode
	}
	secretBytes, err := authcrypto.Decrypt(ctx.Secrets.Active().Value[:32], tf.SecretEncrypted)
	if err != nil {
		return ErrInvalidCode
	}
	ok, err := totp.ValidateCustom(code, string(secretBytes), ctx.Now(), totp.ValidateOpts{
		Period:    uint(periodOr(tf.Period, defaultPeriod)),
		Skew:      1,
		Digits:    otp.Digits(digitsOr(tf.Digits, defaultDigits)),
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil || !ok {
		return ErrInvalidCode
	}
	return nil
}

// ConsumeBackupCode validates code against the stored encrypted backup
// list, removes it on success, and re-persists the shortened list so
// each code is single-use.
func ConsumeBackupCode(ctx *authctx.Context, rc context.Context, userID, code string) error {
	tf, err := ctx.Storage.FindTwoFactor(rc, userID)
	if err != nil {
		return ErrInvalidCode
	}
	raw, err := authcrypto.Decrypt(ctx.Secrets.Active().Value[:32], tf.BackupCodesEncrypted)
	if err != nil {
		return ErrInvalidCode
	}
	var codes []string
	if err := json.Unmarshal(raw, &codes); err != nil {
		return ErrInvalidCode
	}

	idx := -1
	for i, c := range codes {
		if c == code {
			idx = i
			break
		}
	}
	if idx < 0 {
		return ErrInvalidCode
	}
	codes = append(codes[:idx], codes[idx+1:]...)

	newJSON, err := json.Marshal(codes)
	if err != nil {
		return err
	}
	newEnc, err := authcrypto.Encrypt(ctx.Secrets.Active().Value[:32], newJSON)
	if err != nil {
		return err
	}
	_, err = ctx.Storage.UpdateTwoFactor(rc, userID, storage.Record{"backup_codes_encrypted": newEnc})
	return err
}

func periodOr(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}

func digitsOr(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}
