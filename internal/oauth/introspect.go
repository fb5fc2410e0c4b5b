package oauth

import (
	"net/http"
	"strings"

	"github.com/ncrq/authguard/internal/authcrypto"
	"github.com/ncrq/authguard/internal/authctx"
	"github.com/ncrq/authguard/internal/pipeline"
)

// introspectionResponse is RFC 7662's response shape, grounded on the
// teacher's introspection.go Introspection struct.
type introspectionResponse struct {
	Active    bool   `json:"active"`
	Scope     string `json:"scope,omitempty"`
	ClientID  string `json:"client_id,omitempty"`
	Sub       string `json:"sub,omitempty"`
	Aud       string `json:"aud,omitempty"`
	Iss       string `json:"iss,omitempty"`
	TokenType string `json:"token_type,omitempty"`
	Exp       int64  `json:"exp,omitempty"`
	Iat       int64  `json:"iat,omitempty"`
}

func looksLikeJWT(token string) bool {
	return strings.Count(token, ".") == 2
}

func (p *Provider) handleIntrospect(ctx *authctx.Context, r *http.Request) (*authctx.Response, error) {
	rc := r.Context()
	body := pipeline.Body(r)
	token, _ := body["token"].(string)
	if token == "" {
		return nil, pipeline.NewAPIError(pipeline.KindInvalidRequest, "MISSING_TOKEN", "token is required")
	}

	clientID, clientSecret, ok := clientCredentialsFromRequest(r, body)
	if ok {
		client, err := ResolveClient(ctx, rc, clientID)
		if err != nil || !AuthenticateClient(client, clientSecret) {
			return nil, oauthErr(pipeline.OAuthErrInvalidClient, "client authentication failed")
		}
	}

	if looksLikeJWT(token) {
		var claims map[string]interface{}
		if err := authcrypto.VerifyJWT(token, &p.signingKey.PublicKey, &claims); err != nil {
			return &authctx.Response{Status: http.StatusOK, Body: &introspectionResponse{Active: false}}, nil
		}
		exp, _ := claims["exp"].(float64)
		if int64(exp) <= ctx.Now().Unix() {
			return &authctx.Response{Status: http.StatusOK, Body: &introspectionResponse{Active: false}}, nil
		}
		sub, _ := claims["sub"].(string)
		aud, _ := claims["aud"].(string)
		iss, _ := claims["iss"].(string)
		scope, _ := claims["scope"].(string)
		cid, _ := claims["client_id"].(string)
		iat, _ := claims["iat"].(float64)
		return &authctx.Response{Status: http.StatusOK, Body: &introspectionResponse{
			Active: true, Scope: scope, ClientID: cid, Sub: sub, Aud: aud, Iss: iss,
			TokenType: "Bearer", Exp: int64(exp), Iat: int64(iat),
		}}, nil
	}

	at, err := ctx.Storage.FindOAuthAccessToken(rc, token)
	if err != nil || ctx.Now().After(at.ExpiresAt) {
		return &authctx.Response{Status: http.StatusOK, Body: &introspectionResponse{Active: false}}, nil
	}
	return &authctx.Response{Status: http.StatusOK, Body: &introspectionResponse{
		Active: true, Scope: joinScope(at.Scopes), ClientID: at.ClientID, Sub: at.UserID,
		Iss: p.Issuer, TokenType: "Bearer", Exp: at.ExpiresAt.Unix(), Iat: at.CreatedAt.Unix(),
	}}, nil
}
