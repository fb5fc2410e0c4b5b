package oauth

import (
	"context"
	"time"

	"github.com/ncrq/authguard/internal/authcrypto"
	"github.com/ncrq/authguard/internal/authctx"
	"github.com/ncrq/authguard/internal/storage"
)

// issuedAccessToken is what every grant branch produces before
// rendering the token response JSON.
type issuedAccessToken struct {
	Token     string
	ExpiresIn int
	IsJWT     bool
}

// issueAccessToken mints either an opaque token (persisted for lookup/
// introspection/revocation) or a JWT (self-contained, verified via
// JWKS) depending on whether resource is non-empty. Any non-empty
// resource becomes the JWT's aud claim as given; it is not checked
// against a list of known audiences.
func (p *Provider) issueAccessToken(ctx *authctx.Context, rc context.Context, c storage.OAuthClient, userID, sessionID, refreshID string, scopes []string, resource string) (issuedAccessToken, error) {
	if resource != "" {
		now := time.Now()
		claims := map[string]interface{}{
			"iss":       p.Issuer,
			"sub":       userID,
			"aud":       resource,
			"client_id": c.ClientID,
			"scope":     joinScope(scopes),
			"exp":       now.Add(accessTokenExpiry).Unix(),
			"iat":       now.Unix(),
		}
		jwt, err := authcrypto.MakeJWT(claims, p.idTokenKey())
		if err != nil {
			return issuedAccessToken{}, err
		}
		return issuedAccessToken{Token: jwt, ExpiresIn: int(accessTokenExpiry.Seconds()), IsJWT: true}, nil
	}

	token := authcrypto.NewToken()
	now := ctx.Now()
	if _, err := ctx.Storage.CreateOAuthAccessToken(rc, storage.OAuthAccessToken{
		Token:     token,
		ClientID:  c.ClientID,
		UserID:    userID,
		SessionID: sessionID,
		Scopes:    scopes,
		ExpiresAt: now.Add(accessTokenExpiry),
		RefreshID: refreshID,
		CreatedAt: now,
	}); err != nil {
		return issuedAccessToken{}, err
	}
	return issuedAccessToken{Token: token, ExpiresIn: int(accessTokenExpiry.Seconds())}, nil
}

// issueRefreshToken mints a new refresh token. predecessorID/chainID
// are empty for a brand-new grant; rotate passes the prior token's
// chain so descendants stay linked for whole-chain revocation.
func issueRefreshToken(ctx *authctx.Context, rc context.Context, c storage.OAuthClient, userID, sessionID, chainID, predecessorID string, scopes []string) (storage.OAuthRefreshToken, error) {
	if chainID == "" {
		chainID = authcrypto.NewID()
	}
	now := ctx.Now()
	rt := storage.OAuthRefreshToken{
		Token:         authcrypto.NewToken(),
		ChainID:       chainID,
		PredecessorID: predecessorID,
		ClientID:      c.ClientID,
		UserID:        userID,
		SessionID:     sessionID,
		Scopes:        scopes,
		ExpiresAt:     now.Add(refreshTokenExpiry),
		CreatedAt:     now,
	}
	return ctx.Storage.CreateOAuthRefreshToken(rc, rt)
}
