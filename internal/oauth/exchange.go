package oauth

import (
	"context"
	"net/http"

	"github.com/ncrq/authguard/internal/authcrypto"
	"github.com/ncrq/authguard/internal/authctx"
	"github.com/ncrq/authguard/internal/pipeline"
	"github.com/ncrq/authguard/internal/storage"
)

// exchangeSubject is what either an opaque or a JWT subject/actor token
// resolves to, the common shape grantTokenExchange needs regardless of
// which form the caller presented.
type exchangeSubject struct {
	UserID string
	Scopes []string
}

func (p *Provider) resolveExchangeToken(ctx *authctx.Context, rc context.Context, token string) (exchangeSubject, error) {
	if looksLikeJWT(token) {
		var claims map[string]interface{}
		if err := authcrypto.VerifyJWT(token, &p.signingKey.PublicKey, &claims); err != nil {
			return exchangeSubject{}, err
		}
		exp, _ := claims["exp"].(float64)
		if int64(exp) <= ctx.Now().Unix() {
			return exchangeSubject{}, pipeline.NewAPIError(pipeline.KindUnauthorized, "EXPIRED_TOKEN", "token has expired")
		}
		sub, _ := claims["sub"].(string)
		scope, _ := claims["scope"].(string)
		return exchangeSubject{UserID: sub, Scopes: splitScope(scope)}, nil
	}
	at, err := ctx.Storage.FindOAuthAccessToken(rc, token)
	if err != nil || ctx.Now().After(at.ExpiresAt) {
		return exchangeSubject{}, pipeline.NewAPIError(pipeline.KindUnauthorized, "INVALID_TOKEN", "token is invalid or expired")
	}
	return exchangeSubject{UserID: at.UserID, Scopes: at.Scopes}, nil
}

// grantTokenExchange implements RFC 8693: the subject_token names who
// the new token acts for, an optional actor_token is folded into the
// act claim, the granted scope is the requested scope intersected with
// the subject token's scope (the subject's whole scope when none is
// requested, invalid_scope when the intersection is empty), and the
// resulting access token is always a JWT so the act/aud claims can
// travel with it.
func (p *Provider) grantTokenExchange(ctx *authctx.Context, rc context.Context, client storage.OAuthClient, field func(string) string) (*authctx.Response, error) {
	subjectToken := field("subject_token")
	if subjectToken == "" {
		return nil, oauthErr(pipeline.OAuthErrInvalidRequest, "subject_token is required")
	}
	subject, err := p.resolveExchangeToken(ctx, rc, subjectToken)
	if err != nil {
		return nil, oauthErr(pipeline.OAuthErrInvalidGrant, "subject_token is invalid or expired")
	}

	requested := splitScope(field("scope"))
	scopes := subject.Scopes
	if len(requested) > 0 {
		scopes = scopesIntersect(requested, subject.Scopes)
		if len(scopes) == 0 {
			return nil, oauthErr(pipeline.OAuthErrInvalidScope, "requested scope does not overlap the subject token's scope")
		}
	}

	audience := field("audience")
	if audience == "" {
		audience = field("resource")
	}
	if audience == "" {
		audience = client.ClientID
	}

	now := ctx.Now()
	claims := map[string]interface{}{
		"iss":       p.Issuer,
		"sub":       subject.UserID,
		"aud":       audience,
		"client_id": client.ClientID,
		"scope":     joinScope(scopes),
		"exp":       now.Add(accessTokenExpiry).Unix(),
		"iat":       now.Unix(),
	}
	if actorToken := field("actor_token"); actorToken != "" {
		actor, err := p.resolveExchangeToken(ctx, rc, actorToken)
		if err != nil {
			return nil, oauthErr(pipeline.OAuthErrInvalidGrant, "actor_token is invalid or expired")
		}
		claims["act"] = map[string]string{"sub": actor.UserID, "client_id": client.ClientID}
	}

	jwt, err := authcrypto.MakeJWT(claims, p.idTokenKey())
	if err != nil {
		return nil, err
	}

	return &authctx.Response{Status: http.StatusOK, Body: &tokenResponse{
		AccessToken: jwt,
		TokenType:   "Bearer",
		ExpiresIn:   int(accessTokenExpiry.Seconds()),
		Scope:       joinScope(scopes),
	}}, nil
}
