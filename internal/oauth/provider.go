package oauth

import (
	"crypto/rand"
	"crypto/rsa"
	"net/http"

	jose "github.com/go-jose/go-jose/v4"

	"github.com/ncrq/authguard/internal/authcrypto"
	"github.com/ncrq/authguard/internal/authctx"
)

// Provider is the authctx.Plugin implementation binding every §4.H/§4.I
// endpoint onto a Context. It owns the RSA signing key used for
// JWKS-published id_tokens/JWT access tokens — a resource no other
// component needs, so it lives here rather than on authctx.Context.
type Provider struct {
	Issuer string

	signingKey *rsa.PrivateKey
	keyID      string
}

func New(issuer string) *Provider {
	return &Provider{Issuer: issuer}
}

func (p *Provider) ID() string { return "oauth" }

func (p *Provider) Init(ctx *authctx.Context) (authctx.OptionsDelta, error) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return authctx.OptionsDelta{}, err
	}
	p.signingKey = key
	p.keyID = authcrypto.NewID()
	return authctx.OptionsDelta{
		AdditionalScopes: []string{ScopeOpenID, ScopeProfile, ScopeEmail, ScopeOfflineAccess},
	}, nil
}

func (p *Provider) Hooks() authctx.Hooks { return authctx.Hooks{} }

func (p *Provider) signingKeySet() jose.JSONWebKeySet {
	return authcrypto.PublicJWKS([]jose.JSONWebKey{{
		Key:       &p.signingKey.PublicKey,
		KeyID:     p.keyID,
		Algorithm: string(jose.RS256),
		Use:       "sig",
	}})
}

func (p *Provider) idTokenKey() authcrypto.SigningKey {
	return authcrypto.SigningKey{KeyID: p.keyID, Alg: jose.RS256, Key: p.signingKey}
}

func (p *Provider) Endpoints() []authctx.EndpointSpec {
	return []authctx.EndpointSpec{
		{Path: "/oauth2/authorize", Methods: []string{http.MethodGet, http.MethodPost}, Handler: p.handleAuthorize},
		{Path: "/oauth2/token", Methods: []string{http.MethodPost}, Handler: p.handleToken},
		{Path: "/oauth2/introspect", Methods: []string{http.MethodPost}, Handler: p.handleIntrospect},
		{Path: "/oauth2/revoke", Methods: []string{http.MethodPost}, Handler: p.handleRevoke},
		{Path: "/oauth2/userinfo", Methods: []string{http.MethodGet, http.MethodPost}, Handler: p.handleUserinfo},
		{Path: "/oauth2/register", Methods: []string{http.MethodPost}, Handler: p.handleRegister},
		{Path: "/oauth2/consent", Methods: []string{http.MethodPost}, Handler: p.handleConsent},
		{Path: "/oauth2/device_authorization", Methods: []string{http.MethodPost}, Handler: p.handleDeviceAuthorize},
		{Path: "/device/verify", Methods: []string{http.MethodPost}, Handler: p.handleDeviceVerify},
		{Path: "/bc-authorize", Methods: []string{http.MethodPost}, Handler: p.handleBackchannelAuthorize},
		{Path: "/ciba/verify", Methods: []string{http.MethodPost}, Handler: p.handleCibaVerify},
		{Path: "/.well-known/openid-configuration", Methods: []string{http.MethodGet}, Handler: p.handleDiscovery},
		{Path: "/jwks", Methods: []string{http.MethodGet}, Handler: p.handleJWKS},
	}
}

var _ authctx.Plugin = (*Provider)(nil)
