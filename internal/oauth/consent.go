package oauth

import (
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/ncrq/authguard/internal/authctx"
	"github.com/ncrq/authguard/internal/pipeline"
	"github.com/ncrq/authguard/internal/storage"
)

// handleConsent implements §4.H's consent step: the consent page posts
// back a decision against the consent_code minted at authorize time (the
// code's Verification record is peeked, not consumed — the token
// endpoint still consumes it once on exchange). Granting records an
// OAuthConsent row and redirects back to the client with the code;
// denying redirects with access_denied.
func (p *Provider) handleConsent(ctx *authctx.Context, r *http.Request) (*authctx.Response, error) {
	rc := r.Context()
	body := pipeline.Body(r)
	code, _ := body["consentCode"].(string)
	granted, _ := body["granted"].(bool)
	if code == "" {
		return nil, pipeline.NewAPIError(pipeline.KindInvalidRequest, "MISSING_CONSENT_CODE", "consentCode is required")
	}

	_, _, hasSession := currentSession(ctx, rc, r)
	if !hasSession {
		return nil, pipeline.NewAPIError(pipeline.KindUnauthorized, "NO_SESSION", "a session is required to grant consent")
	}

	v, err := ctx.Storage.FindVerification(rc, code)
	if err != nil {
		return nil, pipeline.NewAPIError(pipeline.KindNotFound, "UNKNOWN_CONSENT_CODE", "consent code is invalid or expired")
	}
	var ac authCodeValue
	if err := json.Unmarshal([]byte(v.Value), &ac); err != nil {
		return nil, err
	}

	if !granted {
		out := url.Values{"error": {"access_denied"}}
		if ac.State != "" {
			out.Set("state", ac.State)
		}
		return redirectTo(ac.RedirectURI, out), nil
	}

	now := ctx.Now()
	if _, err := ctx.Storage.UpsertOAuthConsent(rc, storage.OAuthConsent{
		ClientID:     ac.ClientID,
		UserID:       ac.UserID,
		Scopes:       ac.Scope,
		ConsentGiven: true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}); err != nil {
		return nil, err
	}

	out := url.Values{"code": {code}}
	if ac.State != "" {
		out.Set("state", ac.State)
	}
	return redirectTo(ac.RedirectURI, out), nil
}
