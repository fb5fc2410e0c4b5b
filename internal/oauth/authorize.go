package oauth

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/ncrq/authguard/internal/authcrypto"
	"github.com/ncrq/authguard/internal/authctx"
	"github.com/ncrq/authguard/internal/pipeline"
	"github.com/ncrq/authguard/internal/storage"
)

// authCodeValue is the JSON stored as a Verification's value, keyed by
// the code itself, exactly the shape §4.H names.
type authCodeValue struct {
	ClientID            string   `json:"clientId"`
	RedirectURI         string   `json:"redirectURI"`
	Scope               []string `json:"scope"`
	UserID              string   `json:"userId"`
	AuthTime            int64    `json:"authTime"`
	CodeChallenge       string   `json:"codeChallenge,omitempty"`
	CodeChallengeMethod string   `json:"codeChallengeMethod,omitempty"`
	Nonce               string   `json:"nonce,omitempty"`
	RequireConsent      bool     `json:"requireConsent"`
	State               string   `json:"state,omitempty"`
}

func authorizeParams(r *http.Request) url.Values {
	if r.Method == http.MethodGet {
		return r.URL.Query()
	}
	q := url.Values{}
	for k, v := range pipeline.Body(r) {
		if s, ok := v.(string); ok {
			q.Set(k, s)
		}
	}
	return q
}

func redirectTo(target string, q url.Values) *authctx.Response {
	u, err := url.Parse(target)
	if err != nil {
		return &authctx.Response{Status: http.StatusInternalServerError}
	}
	u.RawQuery = q.Encode()
	return &authctx.Response{Status: http.StatusFound, Headers: http.Header{"Location": []string{u.String()}}}
}

func (p *Provider) errorRedirect(errorURL string, code, description, state string) *authctx.Response {
	q := url.Values{"error": {code}}
	if description != "" {
		q.Set("error_description", description)
	}
	if state != "" {
		q.Set("state", state)
	}
	return redirectTo(errorURL, q)
}

func (p *Provider) handleAuthorize(ctx *authctx.Context, r *http.Request) (*authctx.Response, error) {
	rc := r.Context()
	q := authorizeParams(r)

	responseType := q.Get("response_type")
	clientID := q.Get("client_id")
	redirectURI := q.Get("redirect_uri")
	state := q.Get("state")
	scopes := splitScope(q.Get("scope"))
	codeChallenge := q.Get("code_challenge")
	codeChallengeMethod := q.Get("code_challenge_method")
	nonce := q.Get("nonce")
	prompt := q.Get("prompt")

	client, err := ResolveClient(ctx, rc, clientID)
	if err != nil {
		// client_id itself didn't resolve: redirect_uri can't be trusted either.
		return p.errorRedirect(ctx.Options.ErrorURL, "invalid_request", "unknown or disabled client", state), nil
	}

	if !ValidateRedirectURI(client, redirectURI) {
		return p.errorRedirect(ctx.Options.ErrorURL, "invalid_request", "redirect_uri is not registered for this client", state), nil
	}

	// From here on redirect_uri is trusted: errors go back to the client.
	if responseType != ResponseTypeCode {
		return p.errorRedirect(redirectURI, "unsupported_response_type", "only response_type=code is supported", state), nil
	}
	if !ValidateScopes(ctx, client, scopes) {
		return p.errorRedirect(redirectURI, "invalid_scope", "requested scope exceeds client/server grant", state), nil
	}

	requiresPKCE := ctx.Options.RequirePKCE || client.Public || contains(scopes, ScopeOfflineAccess)
	if requiresPKCE && codeChallenge == "" {
		return p.errorRedirect(redirectURI, "invalid_request", "PKCE code_challenge is required", state), nil
	}
	if codeChallenge != "" {
		if codeChallengeMethod == "" {
			codeChallengeMethod = "S256"
		}
		if codeChallengeMethod != "S256" && !(codeChallengeMethod == "plain" && ctx.Options.AllowPlainCodeChallengeMethod) {
			return p.errorRedirect(redirectURI, "invalid_request", "unsupported code_challenge_method", state), nil
		}
	}

	sess, user, hasSession := currentSession(ctx, rc, r)
	if !hasSession {
		return p.redirectToLogin(ctx, q, redirectURI, state)
	}

	consent, consentErr := ctx.Storage.FindOAuthConsent(rc, client.ClientID, user.ID)
	hasConsent := consentErr == nil && consent.ConsentGiven && scopesSubset(scopes, consent.Scopes)
	requireConsent := !client.SkipConsent && !hasConsent || prompt == "consent"
	if prompt == "none" && requireConsent {
		return p.errorRedirect(redirectURI, "consent_required", "consent is required but prompt=none was requested", state), nil
	}

	code := authcrypto.NewToken()
	now := ctx.Now()
	value := authCodeValue{
		ClientID:            client.ClientID,
		RedirectURI:         redirectURI,
		Scope:               scopes,
		UserID:              user.ID,
		AuthTime:            sess.CreatedAt.Unix(),
		CodeChallenge:       codeChallenge,
		CodeChallengeMethod: codeChallengeMethod,
		Nonce:               nonce,
		RequireConsent:      requireConsent,
		State:               state,
	}
	valueJSON, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	if _, err := ctx.Storage.CreateVerification(rc, storage.Verification{
		ID:         code,
		Identifier: code,
		Value:      string(valueJSON),
		ExpiresAt:  now.Add(authCodeExpiry),
		CreatedAt:  now,
	}); err != nil {
		return nil, err
	}

	if !requireConsent {
		out := url.Values{"code": {code}}
		if state != "" {
			out.Set("state", state)
		}
		return redirectTo(redirectURI, out), nil
	}

	loginQuery := q.Encode()
	consentCookie := ctx.Cookies.New("oidc_consent_prompt", ctx.Cookies.Sign(loginQuery), authCodeExpiry)
	resp := redirectTo(ctx.Options.ConsentPageURL, url.Values{"consent_code": {code}})
	resp.Cookies = append(resp.Cookies, consentCookie)
	return resp, nil
}

func (p *Provider) redirectToLogin(ctx *authctx.Context, q url.Values, redirectURI, state string) (*authctx.Response, error) {
	loginCookie := ctx.Cookies.New("oidc_login_prompt", ctx.Cookies.Sign(q.Encode()), authCodeExpiry)
	resp := redirectTo(ctx.Options.LoginPageURL, url.Values{})
	resp.Cookies = append(resp.Cookies, loginCookie)
	return resp, nil
}

// ResumeAfterLogin re-enters authorization after a login/consent page
// posts back, restoring the original query string from whichever
// prompt cookie carried it. Exported for the credential handlers (not
// built in this package) to call once a primary sign-in completes.
func ResumeAfterLogin(ctx *authctx.Context, cookieName, cookieValue string) (url.Values, error) {
	encoded, ok := ctx.Cookies.Unsign(cookieValue)
	if !ok {
		return nil, fmt.Errorf("oauth: invalid %s cookie", cookieName)
	}
	return url.ParseQuery(encoded)
}
