package oauth

import (
	"net/http"
	"strings"

	"github.com/ncrq/authguard/internal/authcrypto"
	"github.com/ncrq/authguard/internal/authctx"
	"github.com/ncrq/authguard/internal/pipeline"
)

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	token, _ := pipeline.Body(r)["access_token"].(string)
	return token
}

// handleUserinfo implements OIDC core's userinfo endpoint: requires a
// valid access token carrying the openid scope, returns claims gated
// by the token's remaining scopes.
func (p *Provider) handleUserinfo(ctx *authctx.Context, r *http.Request) (*authctx.Response, error) {
	rc := r.Context()

	token := bearerToken(r)
	if token == "" {
		return nil, pipeline.NewAPIError(pipeline.KindUnauthorized, "MISSING_ACCESS_TOKEN", "bearer access token is required")
	}

	var userID string
	var scopes []string
	if looksLikeJWT(token) {
		var claims map[string]interface{}
		if err := authcrypto.VerifyJWT(token, &p.signingKey.PublicKey, &claims); err != nil {
			return nil, pipeline.NewAPIError(pipeline.KindUnauthorized, "INVALID_ACCESS_TOKEN", "invalid token")
		}
		userID, _ = claims["sub"].(string)
		if s, ok := claims["scope"].(string); ok {
			scopes = splitScope(s)
		}
	} else {
		at, err := ctx.Storage.FindOAuthAccessToken(rc, token)
		if err != nil || ctx.Now().After(at.ExpiresAt) {
			return nil, pipeline.NewAPIError(pipeline.KindUnauthorized, "INVALID_ACCESS_TOKEN", "invalid or expired token")
		}
		userID, scopes = at.UserID, at.Scopes
	}
	if !contains(scopes, ScopeOpenID) {
		return nil, pipeline.NewAPIError(pipeline.KindForbidden, "INSUFFICIENT_SCOPE", "openid scope is required")
	}
	if userID == "" {
		return nil, pipeline.NewAPIError(pipeline.KindUnauthorized, "INVALID_ACCESS_TOKEN", "token is not bound to a user")
	}

	user, err := ctx.Storage.FindUserByID(rc, userID)
	if err != nil {
		return nil, pipeline.NewAPIError(pipeline.KindNotFound, "USER_NOT_FOUND", "user no longer exists")
	}

	claims := userClaims(user, scopes)
	claims["sub"] = user.ID
	return &authctx.Response{Status: http.StatusOK, Body: claims}, nil
}
