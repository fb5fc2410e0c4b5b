package oauth

import (
	"net/http"
	"net/url"

	"github.com/ncrq/authguard/internal/authcrypto"
	"github.com/ncrq/authguard/internal/authctx"
	"github.com/ncrq/authguard/internal/pipeline"
	"github.com/ncrq/authguard/internal/storage"
)

type registerRequest struct {
	RedirectURIs            []string `json:"redirect_uris"`
	ClientName              string   `json:"client_name"`
	TokenEndpointAuthMethod string   `json:"token_endpoint_auth_method"`
	GrantTypes              []string `json:"grant_types"`
	ResponseTypes           []string `json:"response_types"`
}

type registerResponse struct {
	ClientID                string   `json:"client_id"`
	ClientSecret            string   `json:"client_secret,omitempty"`
	RedirectURIs            []string `json:"redirect_uris"`
	TokenEndpointAuthMethod string   `json:"token_endpoint_auth_method"`
	GrantTypes              []string `json:"grant_types"`
	ResponseTypes           []string `json:"response_types"`
}

func validRegistrationRedirectURI(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return false
	}
	if u.Scheme == "https" {
		return true
	}
	host := u.Hostname()
	return host == "localhost" || host == "127.0.0.1" || host == "::1"
}

// handleRegister implements RFC 7591 dynamic client registration: every
// redirect_uri must be an exact, parseable URI, HTTPS unless it targets
// loopback, per §4.H.
func (p *Provider) handleRegister(ctx *authctx.Context, r *http.Request) (*authctx.Response, error) {
	if !ctx.Options.EnableClientRegistration {
		return nil, pipeline.NewAPIError(pipeline.KindForbidden, "REGISTRATION_DISABLED", "dynamic client registration is disabled")
	}
	rc := r.Context()
	body := pipeline.Body(r)

	var redirectURIs []string
	if raw, ok := body["redirect_uris"].([]interface{}); ok {
		for _, v := range raw {
			if s, ok := v.(string); ok {
				redirectURIs = append(redirectURIs, s)
			}
		}
	}
	if len(redirectURIs) == 0 {
		return nil, pipeline.NewAPIError(pipeline.KindInvalidRequest, "INVALID_REDIRECT_URIS", "at least one redirect_uri is required")
	}
	for _, u := range redirectURIs {
		if !validRegistrationRedirectURI(u) {
			return nil, pipeline.NewAPIError(pipeline.KindInvalidRequest, "INVALID_REDIRECT_URIS", "redirect_uri must be https, or loopback for development")
		}
	}

	authMethod, _ := body["token_endpoint_auth_method"].(string)
	if authMethod == "" {
		authMethod = "client_secret_basic"
	}
	public := authMethod == "none"

	grantTypes := stringSlice(body["grant_types"])
	if len(grantTypes) == 0 {
		grantTypes = []string{GrantAuthorizationCode}
	}
	responseTypes := stringSlice(body["response_types"])
	if len(responseTypes) == 0 {
		responseTypes = []string{ResponseTypeCode}
	}

	client := storage.OAuthClient{
		ClientID:                authcrypto.NewID(),
		RedirectURIs:            redirectURIs,
		Scopes:                  ctx.Options.Scopes,
		Public:                  public,
		TokenEndpointAuthMethod: authMethod,
		GrantTypes:              grantTypes,
		ResponseTypes:           responseTypes,
		CreatedAt:               ctx.Now(),
	}
	if !public {
		client.ClientSecret = authcrypto.NewToken()
	}

	created, err := ctx.Storage.CreateOAuthClient(rc, client)
	if err != nil {
		return nil, err
	}

	return &authctx.Response{Status: http.StatusCreated, Body: &registerResponse{
		ClientID:                created.ClientID,
		ClientSecret:            created.ClientSecret,
		RedirectURIs:            created.RedirectURIs,
		TokenEndpointAuthMethod: created.TokenEndpointAuthMethod,
		GrantTypes:              created.GrantTypes,
		ResponseTypes:           created.ResponseTypes,
	}}, nil
}

func stringSlice(v interface{}) []string {
	raw, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
