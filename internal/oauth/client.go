package oauth

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/ncrq/authguard/internal/authctx"
	"github.com/ncrq/authguard/internal/pipeline"
	"github.com/ncrq/authguard/internal/storage"
)

// ResolveClient looks clientID up and rejects disabled clients, the
// check every grant and the authorize endpoint shares.
func ResolveClient(ctx *authctx.Context, rc context.Context, clientID string) (storage.OAuthClient, error) {
	c, err := ctx.Storage.FindOAuthClient(rc, clientID)
	if err != nil {
		return storage.OAuthClient{}, pipeline.NewAPIError(pipeline.KindNotFound, "INVALID_CLIENT_ID", "unknown client")
	}
	if c.Disabled {
		return storage.OAuthClient{}, &pipeline.OAuthError{ErrorCode: pipeline.OAuthErrUnauthorizedClient, ErrorDescription: "client is disabled"}
	}
	return c, nil
}

// clientCredentialsFromRequest extracts client_id/client_secret from
// the Basic auth header, falling back to the form body, per §4.H.
func clientCredentialsFromRequest(r *http.Request, body map[string]interface{}) (clientID, clientSecret string, ok bool) {
	if id, secret, basicOK := r.BasicAuth(); basicOK {
		return id, secret, true
	}
	id, _ := body["client_id"].(string)
	secret, _ := body["client_secret"].(string)
	if id == "" {
		return "", "", false
	}
	return id, secret, true
}

// AuthenticateClient verifies clientSecret in constant time against a
// confidential client's stored secret. Public clients (empty secret)
// authenticate by client_id alone.
func AuthenticateClient(c storage.OAuthClient, clientSecret string) bool {
	if c.Public {
		return true
	}
	return subtle.ConstantTimeCompare([]byte(c.ClientSecret), []byte(clientSecret)) == 1
}

// ValidateRedirectURI requires an exact string match against the
// client's registered set — no prefix or wildcard matching per §4.H.
func ValidateRedirectURI(c storage.OAuthClient, redirectURI string) bool {
	return contains(c.RedirectURIs, redirectURI)
}

// ValidateScopes requires every requested scope to be a member of
// options.scopes ∪ client.scopes.
func ValidateScopes(ctx *authctx.Context, c storage.OAuthClient, requested []string) bool {
	allowed := make(map[string]bool, len(ctx.Options.Scopes)+len(c.Scopes))
	for _, s := range ctx.Options.Scopes {
		allowed[s] = true
	}
	for _, s := range c.Scopes {
		allowed[s] = true
	}
	for _, s := range requested {
		if !allowed[s] {
			return false
		}
	}
	return true
}

func splitScope(scope string) []string {
	if scope == "" {
		return nil
	}
	return strings.Fields(scope)
}

func joinScope(scopes []string) string {
	return strings.Join(scopes, " ")
}
