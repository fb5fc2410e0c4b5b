package oauth

import (
	"net/http"

	"github.com/ncrq/authguard/internal/authctx"
)

type discoveryDocument struct {
	Issuer                            string   `json:"issuer"`
	AuthorizationEndpoint             string   `json:"authorization_endpoint"`
	TokenEndpoint                     string   `json:"token_endpoint"`
	UserinfoEndpoint                  string   `json:"userinfo_endpoint"`
	JWKSURI                           string   `json:"jwks_uri"`
	RegistrationEndpoint              string   `json:"registration_endpoint,omitempty"`
	IntrospectionEndpoint             string   `json:"introspection_endpoint"`
	RevocationEndpoint                string   `json:"revocation_endpoint"`
	DeviceAuthorizationEndpoint       string   `json:"device_authorization_endpoint"`
	BackchannelAuthenticationEndpoint string   `json:"backchannel_authentication_endpoint"`
	ResponseTypesSupported            []string `json:"response_types_supported"`
	GrantTypesSupported               []string `json:"grant_types_supported"`
	SubjectTypesSupported             []string `json:"subject_types_supported"`
	IDTokenSigningAlgValuesSupported  []string `json:"id_token_signing_alg_values_supported"`
	ScopesSupported                   []string `json:"scopes_supported"`
	TokenEndpointAuthMethodsSupported []string `json:"token_endpoint_auth_methods_supported"`
	CodeChallengeMethodsSupported     []string `json:"code_challenge_methods_supported"`
	ClaimsSupported                   []string `json:"claims_supported"`
}

// handleDiscovery publishes /.well-known/openid-configuration per §6.
func (p *Provider) handleDiscovery(ctx *authctx.Context, r *http.Request) (*authctx.Response, error) {
	base := ctx.Options.BaseURL
	doc := &discoveryDocument{
		Issuer:                            p.Issuer,
		AuthorizationEndpoint:             base + "/oauth2/authorize",
		TokenEndpoint:                     base + "/oauth2/token",
		UserinfoEndpoint:                  base + "/oauth2/userinfo",
		JWKSURI:                           base + "/jwks",
		RegistrationEndpoint:              base + "/oauth2/register",
		IntrospectionEndpoint:             base + "/oauth2/introspect",
		RevocationEndpoint:                base + "/oauth2/revoke",
		DeviceAuthorizationEndpoint:       base + "/oauth2/device_authorization",
		BackchannelAuthenticationEndpoint: base + "/bc-authorize",
		ResponseTypesSupported:            []string{ResponseTypeCode},
		GrantTypesSupported: []string{
			GrantAuthorizationCode, GrantRefreshToken, GrantClientCredentials,
			GrantDeviceCode, GrantCIBA, GrantTokenExchange,
		},
		SubjectTypesSupported:             []string{"public"},
		IDTokenSigningAlgValuesSupported:  []string{"RS256"},
		ScopesSupported:                   ctx.Options.Scopes,
		TokenEndpointAuthMethodsSupported: []string{"client_secret_basic", "client_secret_post", "none"},
		CodeChallengeMethodsSupported:     []string{"S256", "plain"},
		ClaimsSupported:                   []string{"sub", "name", "email", "email_verified", "picture"},
	}
	return &authctx.Response{Status: http.StatusOK, Body: doc}, nil
}
