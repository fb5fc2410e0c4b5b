package oauth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ncrq/authguard/internal/authcrypto"
	"github.com/ncrq/authguard/internal/authctx"
	"github.com/ncrq/authguard/internal/pipeline"
	"github.com/ncrq/authguard/internal/session"
	"github.com/ncrq/authguard/internal/storage"
	"github.com/ncrq/authguard/internal/storage/memory"
)

func newTestSetup(t *testing.T) (*authctx.Context, *Provider) {
	t.Helper()
	provider := New("https://auth.example.com")
	ctx, err := authctx.New(authctx.Options{
		BaseURL:                  "https://auth.example.com",
		Secrets:                  []authctx.SecretSpec{{Version: 1, Value: []byte("0123456789abcdef0123456789abcdef")}},
		Session:                  authctx.SessionOptions{ExpiresIn: 7 * 24 * time.Hour, UpdateAge: time.Hour},
		EnableClientRegistration: true,
	}, memory.New(), nil, []authctx.Plugin{provider})
	require.NoError(t, err)
	return ctx, provider
}

func mustUser(t *testing.T, ctx *authctx.Context) storage.User {
	t.Helper()
	u, err := ctx.Storage.CreateUser(context.Background(), storage.User{ID: "user-1", Email: "a@b.c", DisplayName: "A"})
	require.NoError(t, err)
	return u
}

func mustClient(t *testing.T, ctx *authctx.Context, public bool) storage.OAuthClient {
	t.Helper()
	c := storage.OAuthClient{
		ClientID:     "client-1",
		ClientSecret: "s3cr3t",
		RedirectURIs: []string{"https://client.example.com/callback"},
		Scopes:       []string{ScopeOpenID, ScopeProfile, ScopeEmail, ScopeOfflineAccess},
		Public:       public,
		SkipConsent:  true,
	}
	created, err := ctx.Storage.CreateOAuthClient(context.Background(), c)
	require.NoError(t, err)
	return created
}

func withSessionCookie(r *http.Request, ctx *authctx.Context, s storage.Session) *http.Request {
	r.AddCookie(&http.Cookie{Name: ctx.Cookies.Name(sessionCookieName), Value: ctx.Cookies.Sign(s.Token)})
	return r
}

func locationQuery(t *testing.T, resp *authctx.Response) url.Values {
	t.Helper()
	require.Equal(t, http.StatusFound, resp.Status)
	u, err := url.Parse(resp.Headers.Get("Location"))
	require.NoError(t, err)
	return u.Query()
}

func formPost(t *testing.T, path string, fields map[string]string, basicUser, basicPass string) *http.Request {
	t.Helper()
	form := url.Values{}
	for k, v := range fields {
		form.Set(k, v)
	}
	r := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if basicUser != "" {
		r.SetBasicAuth(basicUser, basicPass)
	}
	r, err := pipeline.ParseBody(r)
	require.NoError(t, err)
	return r
}

func TestAuthorizeCodeFlowWithPKCE(t *testing.T) {
	ctx, provider := newTestSetup(t)
	user := mustUser(t, ctx)
	client := mustClient(t, ctx, false)
	rc := context.Background()

	s, _, err := session.CreateSession(ctx, rc, user.ID, session.RequestInfo{})
	require.NoError(t, err)

	verifier := "a-sufficiently-long-code-verifier-string-1234567890"
	challenge := authcrypto.PKCEChallenge(verifier, "S256")

	q := url.Values{
		"response_type":         {"code"},
		"client_id":             {client.ClientID},
		"redirect_uri":          {"https://client.example.com/callback"},
		"scope":                 {"openid profile email offline_access"},
		"state":                 {"xyz"},
		"code_challenge":        {challenge},
		"code_challenge_method": {"S256"},
	}
	req := httptest.NewRequest(http.MethodGet, "/oauth2/authorize?"+q.Encode(), nil)
	req = withSessionCookie(req, ctx, s)

	resp, err := provider.handleAuthorize(ctx, req)
	require.NoError(t, err)
	out := locationQuery(t, resp)
	require.Equal(t, "xyz", out.Get("state"))
	code := out.Get("code")
	require.NotEmpty(t, code)

	tokenReq := formPost(t, "/oauth2/token", map[string]string{
		"grant_type":    GrantAuthorizationCode,
		"code":          code,
		"redirect_uri":  "https://client.example.com/callback",
		"code_verifier": verifier,
	}, client.ClientID, "s3cr3t")
	tokenResp, err := provider.handleToken(ctx, tokenReq)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, tokenResp.Status)
	tr, ok := tokenResp.Body.(*tokenResponse)
	require.True(t, ok)
	require.NotEmpty(t, tr.AccessToken)
	require.NotEmpty(t, tr.RefreshToken)
	require.NotEmpty(t, tr.IDToken)

	// Re-using the same code must now fail: it is single-use.
	tokenReq2 := formPost(t, "/oauth2/token", map[string]string{
		"grant_type":    GrantAuthorizationCode,
		"code":          code,
		"redirect_uri":  "https://client.example.com/callback",
		"code_verifier": verifier,
	}, client.ClientID, "s3cr3t")
	_, err = provider.handleToken(ctx, tokenReq2)
	require.Error(t, err)
	oerr, ok := err.(*pipeline.OAuthError)
	require.True(t, ok)
	require.Equal(t, pipeline.OAuthErrInvalidGrant, oerr.ErrorCode)
}

func TestAuthorizeRejectsMissingPKCEForPublicClient(t *testing.T) {
	ctx, provider := newTestSetup(t)
	user := mustUser(t, ctx)
	client := mustClient(t, ctx, true)
	rc := context.Background()

	s, _, err := session.CreateSession(ctx, rc, user.ID, session.RequestInfo{})
	require.NoError(t, err)

	q := url.Values{
		"response_type": {"code"},
		"client_id":     {client.ClientID},
		"redirect_uri":  {"https://client.example.com/callback"},
		"scope":         {"openid"},
		"state":         {"s1"},
	}
	req := httptest.NewRequest(http.MethodGet, "/oauth2/authorize?"+q.Encode(), nil)
	req = withSessionCookie(req, ctx, s)

	resp, err := provider.handleAuthorize(ctx, req)
	require.NoError(t, err)
	out := locationQuery(t, resp)
	require.Equal(t, "invalid_request", out.Get("error"))
}

func TestRefreshTokenRotationAndReplayRevokesChain(t *testing.T) {
	ctx, provider := newTestSetup(t)
	user := mustUser(t, ctx)
	client := mustClient(t, ctx, false)
	rc := context.Background()

	rt, err := issueRefreshToken(ctx, rc, client, user.ID, "", "", "", []string{ScopeOpenID, ScopeOfflineAccess})
	require.NoError(t, err)

	refreshReq := formPost(t, "/oauth2/token", map[string]string{
		"grant_type":    GrantRefreshToken,
		"refresh_token": rt.Token,
	}, client.ClientID, "s3cr3t")
	resp, err := provider.handleToken(ctx, refreshReq)
	require.NoError(t, err)
	tr := resp.Body.(*tokenResponse)
	require.NotEmpty(t, tr.RefreshToken)
	require.NotEqual(t, rt.Token, tr.RefreshToken)

	// Replaying the now-rotated-away token must burn the whole chain.
	replayReq := formPost(t, "/oauth2/token", map[string]string{
		"grant_type":    GrantRefreshToken,
		"refresh_token": rt.Token,
	}, client.ClientID, "s3cr3t")
	_, err = provider.handleToken(ctx, replayReq)
	require.Error(t, err)

	newRT, err := ctx.Storage.FindOAuthRefreshToken(rc, tr.RefreshToken)
	require.NoError(t, err)
	require.NotNil(t, newRT.RevokedAt)
}

func TestClientCredentialsRejectsOIDCScopes(t *testing.T) {
	ctx, provider := newTestSetup(t)
	client := mustClient(t, ctx, false)

	req := formPost(t, "/oauth2/token", map[string]string{
		"grant_type": GrantClientCredentials,
		"scope":      "openid",
	}, client.ClientID, "s3cr3t")
	_, err := provider.handleToken(ctx, req)
	require.Error(t, err)
	oerr, ok := err.(*pipeline.OAuthError)
	require.True(t, ok)
	require.Equal(t, pipeline.OAuthErrInvalidScope, oerr.ErrorCode)
}

func TestIntrospectOpaqueAndJWTTokens(t *testing.T) {
	ctx, provider := newTestSetup(t)
	user := mustUser(t, ctx)
	client := mustClient(t, ctx, false)
	rc := context.Background()

	opaque, err := provider.issueAccessToken(ctx, rc, client, user.ID, "", "", []string{ScopeOpenID}, "")
	require.NoError(t, err)
	introReq := formPost(t, "/oauth2/introspect", map[string]string{"token": opaque.Token}, client.ClientID, "s3cr3t")
	resp, err := provider.handleIntrospect(ctx, introReq)
	require.NoError(t, err)
	ir := resp.Body.(*introspectionResponse)
	require.True(t, ir.Active)

	jwtTok, err := provider.issueAccessToken(ctx, rc, client, user.ID, "", "", []string{ScopeOpenID}, "https://api.example.com")
	require.NoError(t, err)
	require.True(t, jwtTok.IsJWT)
	introReq2 := formPost(t, "/oauth2/introspect", map[string]string{"token": jwtTok.Token}, client.ClientID, "s3cr3t")
	resp2, err := provider.handleIntrospect(ctx, introReq2)
	require.NoError(t, err)
	ir2 := resp2.Body.(*introspectionResponse)
	require.True(t, ir2.Active)
}
