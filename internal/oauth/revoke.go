package oauth

import (
	"net/http"

	"github.com/ncrq/authguard/internal/authctx"
	"github.com/ncrq/authguard/internal/pipeline"
)

// handleRevoke implements RFC 7009: revoking a refresh token revokes
// its whole rotation chain; revoking an access token just deletes it.
// Unknown tokens are treated as already-revoked per the RFC, so this
// always returns 200.
func (p *Provider) handleRevoke(ctx *authctx.Context, r *http.Request) (*authctx.Response, error) {
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

	hint, _ := body["token_type_hint"].(string)
	if hint != "access_token" {
		if rt, err := ctx.Storage.FindOAuthRefreshToken(rc, token); err == nil {
			_, _ = ctx.Storage.RevokeOAuthRefreshChain(rc, rt.ChainID, ctx.Now())
			return &authctx.Response{Status: http.StatusOK}, nil
		}
	}
	_ = ctx.Storage.DeleteOAuthAccessToken(rc, token)
	return &authctx.Response{Status: http.StatusOK}, nil
}
