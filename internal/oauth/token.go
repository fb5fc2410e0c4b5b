package oauth

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/ncrq/authguard/internal/authcrypto"
	"github.com/ncrq/authguard/internal/authctx"
	"github.com/ncrq/authguard/internal/pipeline"
	"github.com/ncrq/authguard/internal/storage"
)

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	RefreshToken string `json:"refresh_token,omitempty"`
	IDToken      string `json:"id_token,omitempty"`
	Scope        string `json:"scope,omitempty"`
}

func oauthErr(code, description string) error {
	return &pipeline.OAuthError{ErrorCode: code, ErrorDescription: description}
}

func (p *Provider) handleToken(ctx *authctx.Context, r *http.Request) (*authctx.Response, error) {
	rc := r.Context()
	body := pipeline.Body(r)
	field := func(k string) string {
		s, _ := body[k].(string)
		return s
	}

	grantType := field("grant_type")
	clientID, clientSecret, ok := clientCredentialsFromRequest(r, body)
	if !ok {
		return nil, oauthErr(pipeline.OAuthErrInvalidClient, "client authentication is required")
	}
	client, err := ResolveClient(ctx, rc, clientID)
	if err != nil {
		return nil, oauthErr(pipeline.OAuthErrInvalidClient, "unknown or disabled client")
	}
	if !AuthenticateClient(client, clientSecret) {
		return nil, oauthErr(pipeline.OAuthErrInvalidClient, "client secret mismatch")
	}

	switch grantType {
	case GrantAuthorizationCode:
		return p.grantAuthorizationCode(ctx, rc, client, field)
	case GrantRefreshToken:
		return p.grantRefreshToken(ctx, rc, client, field)
	case GrantClientCredentials:
		return p.grantClientCredentials(ctx, rc, client, field)
	case GrantDeviceCode:
		return p.grantDeviceCode(ctx, rc, client, field)
	case GrantCIBA:
		return p.grantCIBA(ctx, rc, client, field)
	case GrantTokenExchange:
		return p.grantTokenExchange(ctx, rc, client, field)
	default:
		return nil, oauthErr(pipeline.OAuthErrUnsupportedGrantType, "unknown grant_type")
	}
}

// grantAuthorizationCode implements §4.H's authorization_code branch:
// consume the single-use code, verify PKCE, and issue access/refresh/
// id tokens bound to the session that created the code.
func (p *Provider) grantAuthorizationCode(ctx *authctx.Context, rc context.Context, client storage.OAuthClient, field func(string) string) (*authctx.Response, error) {
	code := field("code")
	if code == "" {
		return nil, oauthErr(pipeline.OAuthErrInvalidRequest, "code is required")
	}
	v, err := ctx.Storage.ConsumeVerification(rc, code, ctx.Now())
	if err != nil {
		return nil, oauthErr(pipeline.OAuthErrInvalidGrant, "authorization code is invalid, expired, or already used")
	}
	var ac authCodeValue
	if err := json.Unmarshal([]byte(v.Value), &ac); err != nil {
		return nil, err
	}
	if ac.ClientID != client.ClientID {
		return nil, oauthErr(pipeline.OAuthErrInvalidGrant, "code was not issued to this client")
	}
	if ac.RequireConsent {
		return nil, oauthErr(pipeline.OAuthErrAccessDenied, "consent was not completed before exchange")
	}
	if redirectURI := field("redirect_uri"); redirectURI != "" && redirectURI != ac.RedirectURI {
		return nil, oauthErr(pipeline.OAuthErrInvalidGrant, "redirect_uri does not match the authorization request")
	}
	if ac.CodeChallenge != "" {
		verifier := field("code_verifier")
		if verifier == "" || !authcrypto.PKCEVerify(verifier, ac.CodeChallengeMethod, ac.CodeChallenge) {
			return nil, oauthErr(pipeline.OAuthErrInvalidGrant, "PKCE verification failed")
		}
	}

	user, err := ctx.Storage.FindUserByID(rc, ac.UserID)
	if err != nil {
		return nil, oauthErr(pipeline.OAuthErrInvalidGrant, "the user bound to this code no longer exists")
	}

	resource := field("resource")
	at, err := p.issueAccessToken(ctx, rc, client, ac.UserID, "", "", ac.Scope, resource)
	if err != nil {
		return nil, err
	}

	resp := &tokenResponse{
		AccessToken: at.Token,
		TokenType:   "Bearer",
		ExpiresIn:   at.ExpiresIn,
		Scope:       joinScope(ac.Scope),
	}

	if contains(ac.Scope, ScopeOfflineAccess) {
		rt, err := issueRefreshToken(ctx, rc, client, ac.UserID, "", "", "", ac.Scope)
		if err != nil {
			return nil, err
		}
		resp.RefreshToken = rt.Token
	}

	if contains(ac.Scope, ScopeOpenID) {
		authTime := time.Unix(ac.AuthTime, 0)
		idToken, err := p.issueIDToken(client, ac.UserID, at.Token, ac.Nonce, authTime, ac.Scope, user)
		if err != nil {
			return nil, err
		}
		resp.IDToken = idToken
	}

	return &authctx.Response{Status: http.StatusOK, Body: resp}, nil
}

// grantRefreshToken implements §4.H's refresh_token branch: reject
// revoked/expired/mismatched tokens, revoke the whole chain on replay
// (the token was already rotated once and is being reused), otherwise
// rotate to a new token linked to the same chain.
func (p *Provider) grantRefreshToken(ctx *authctx.Context, rc context.Context, client storage.OAuthClient, field func(string) string) (*authctx.Response, error) {
	token := field("refresh_token")
	if token == "" {
		return nil, oauthErr(pipeline.OAuthErrInvalidRequest, "refresh_token is required")
	}
	rt, err := ctx.Storage.FindOAuthRefreshToken(rc, token)
	if err != nil {
		return nil, oauthErr(pipeline.OAuthErrInvalidGrant, "refresh token is unknown")
	}
	if rt.ClientID != client.ClientID {
		return nil, oauthErr(pipeline.OAuthErrInvalidGrant, "refresh token was not issued to this client")
	}
	if rt.RevokedAt != nil {
		// Replay of an already-rotated or already-revoked token: burn the
		// whole chain, per §5's rotation-replay defense.
		_, _ = ctx.Storage.RevokeOAuthRefreshChain(rc, rt.ChainID, ctx.Now())
		return nil, oauthErr(pipeline.OAuthErrInvalidGrant, "refresh token has already been used")
	}
	if ctx.Now().After(rt.ExpiresAt) {
		return nil, oauthErr(pipeline.OAuthErrInvalidGrant, "refresh token expired")
	}

	requestedScope := splitScope(field("scope"))
	scopes := rt.Scopes
	if len(requestedScope) > 0 {
		if !scopesSubset(requestedScope, rt.Scopes) {
			return nil, oauthErr(pipeline.OAuthErrInvalidScope, "requested scope exceeds the original grant")
		}
		scopes = requestedScope
	}

	now := ctx.Now()
	if _, err := ctx.Storage.Raw.Update(rc, storage.ModelOAuthRefresh, []storage.Where{storage.Eq("token", rt.Token)}, storage.Record{"revoked_at": now}); err != nil {
		return nil, err
	}

	newRT, err := issueRefreshToken(ctx, rc, client, rt.UserID, rt.SessionID, rt.ChainID, rt.Token, scopes)
	if err != nil {
		return nil, err
	}

	resource := field("resource")
	at, err := p.issueAccessToken(ctx, rc, client, rt.UserID, rt.SessionID, newRT.Token, scopes, resource)
	if err != nil {
		return nil, err
	}

	resp := &tokenResponse{
		AccessToken:  at.Token,
		TokenType:    "Bearer",
		ExpiresIn:    at.ExpiresIn,
		RefreshToken: newRT.Token,
		Scope:        joinScope(scopes),
	}

	if contains(scopes, ScopeOpenID) {
		user, err := ctx.Storage.FindUserByID(rc, rt.UserID)
		if err == nil {
			idToken, err := p.issueIDToken(client, rt.UserID, at.Token, "", now, scopes, user)
			if err == nil {
				resp.IDToken = idToken
			}
		}
	}

	return &authctx.Response{Status: http.StatusOK, Body: resp}, nil
}

// grantClientCredentials implements §4.H's client_credentials branch:
// confidential clients only, no user to bind OIDC claims to.
func (p *Provider) grantClientCredentials(ctx *authctx.Context, rc context.Context, client storage.OAuthClient, field func(string) string) (*authctx.Response, error) {
	if client.Public {
		return nil, oauthErr(pipeline.OAuthErrUnauthorizedClient, "public clients cannot use client_credentials")
	}
	requested := splitScope(field("scope"))
	for _, s := range requested {
		if oidcUserScopes[s] {
			return nil, oauthErr(pipeline.OAuthErrInvalidScope, "OIDC user scopes are not valid for client_credentials")
		}
	}
	if !ValidateScopes(ctx, client, requested) {
		return nil, oauthErr(pipeline.OAuthErrInvalidScope, "requested scope exceeds client/server grant")
	}

	resource := field("resource")
	at, err := p.issueAccessToken(ctx, rc, client, "", "", "", requested, resource)
	if err != nil {
		return nil, err
	}
	return &authctx.Response{Status: http.StatusOK, Body: &tokenResponse{
		AccessToken: at.Token,
		TokenType:   "Bearer",
		ExpiresIn:   at.ExpiresIn,
		Scope:       joinScope(requested),
	}}, nil
}
