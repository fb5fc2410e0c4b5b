package oauth

import (
	"net/http"

	"github.com/ncrq/authguard/internal/authctx"
)

// handleJWKS publishes the provider's public signing key set for
// RS256-verifying id_tokens and resource-scoped JWT access tokens.
func (p *Provider) handleJWKS(ctx *authctx.Context, r *http.Request) (*authctx.Response, error) {
	return &authctx.Response{Status: http.StatusOK, Body: p.signingKeySet()}, nil
}
