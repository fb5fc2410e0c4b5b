package oauth

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ncrq/authguard/internal/authcrypto"
	"github.com/ncrq/authguard/internal/pipeline"
	"github.com/ncrq/authguard/internal/session"
	"github.com/ncrq/authguard/internal/storage"
)

func jsonPost(t *testing.T, path string, fields map[string]interface{}) *http.Request {
	t.Helper()
	raw, err := json.Marshal(fields)
	require.NoError(t, err)
	r := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	r.Header.Set("Content-Type", "application/json")
	r, err = pipeline.ParseBody(r)
	require.NoError(t, err)
	return r
}

func TestDeviceFlowPollingPendingThenApproved(t *testing.T) {
	ctx, provider := newTestSetup(t)
	user := mustUser(t, ctx)
	client := mustClient(t, ctx, true)
	rc := context.Background()

	authzReq := formPost(t, "/oauth2/device_authorization", map[string]string{
		"client_id": client.ClientID,
		"scope":     "openid offline_access",
	}, "", "")
	authzResp, err := provider.handleDeviceAuthorize(ctx, authzReq)
	require.NoError(t, err)
	dar, ok := authzResp.Body.(*deviceAuthorizationResponse)
	require.True(t, ok)
	require.NotEmpty(t, dar.DeviceCode)
	require.NotEmpty(t, dar.UserCode)

	// Poll once the minimum interval has elapsed; an earlier poll would
	// get slow_down instead of authorization_pending.
	ctx.Clock = func() time.Time { return time.Now().Add(deviceMinPollInterval + time.Second) }
	pollReq := formPost(t, "/oauth2/token", map[string]string{
		"grant_type":  GrantDeviceCode,
		"device_code": dar.DeviceCode,
	}, client.ClientID, "s3cr3t")
	_, err = provider.handleToken(ctx, pollReq)
	require.Error(t, err)
	oerr, ok := err.(*pipeline.OAuthError)
	require.True(t, ok)
	require.Equal(t, pipeline.OAuthErrAuthorizationPending, oerr.ErrorCode)

	s, _, err := session.CreateSession(ctx, rc, user.ID, session.RequestInfo{})
	require.NoError(t, err)
	verifyReq := jsonPost(t, "/device/verify", map[string]interface{}{
		"user_code": dar.UserCode,
		"approve":   true,
	})
	verifyReq = withSessionCookie(verifyReq, ctx, s)
	_, err = provider.handleDeviceVerify(ctx, verifyReq)
	require.NoError(t, err)

	pollReq2 := formPost(t, "/oauth2/token", map[string]string{
		"grant_type":  GrantDeviceCode,
		"device_code": dar.DeviceCode,
	}, client.ClientID, "s3cr3t")
	resp2, err := provider.handleToken(ctx, pollReq2)
	require.NoError(t, err)
	tr := resp2.Body.(*tokenResponse)
	require.NotEmpty(t, tr.AccessToken)
	require.NotEmpty(t, tr.RefreshToken)

	_, err = ctx.Storage.FindDeviceCodeByDeviceCode(rc, dar.DeviceCode)
	require.Error(t, err)
}

func TestCibaPollingDeniedBurnsRequest(t *testing.T) {
	ctx, provider := newTestSetup(t)
	user := mustUser(t, ctx)
	client := mustClient(t, ctx, false)
	rc := context.Background()

	bcReq := formPost(t, "/bc-authorize", map[string]string{
		"login_hint": user.Email,
		"scope":      "openid",
	}, client.ClientID, "s3cr3t")
	bcResp, err := provider.handleBackchannelAuthorize(ctx, bcReq)
	require.NoError(t, err)
	car, ok := bcResp.Body.(*cibaAuthorizeResponse)
	require.True(t, ok)
	require.NotEmpty(t, car.AuthReqID)

	s, _, err := session.CreateSession(ctx, rc, user.ID, session.RequestInfo{})
	require.NoError(t, err)
	denyReq := jsonPost(t, "/ciba/verify", map[string]interface{}{
		"auth_req_id": car.AuthReqID,
		"approve":     false,
	})
	denyReq = withSessionCookie(denyReq, ctx, s)
	_, err = provider.handleCibaVerify(ctx, denyReq)
	require.NoError(t, err)

	pollReq := formPost(t, "/oauth2/token", map[string]string{
		"grant_type":  GrantCIBA,
		"auth_req_id": car.AuthReqID,
	}, client.ClientID, "s3cr3t")
	_, err = provider.handleToken(ctx, pollReq)
	require.Error(t, err)
	oerr, ok := err.(*pipeline.OAuthError)
	require.True(t, ok)
	require.Equal(t, pipeline.OAuthErrAccessDenied, oerr.ErrorCode)

	_, err = ctx.Storage.FindCibaRequest(rc, car.AuthReqID)
	require.Error(t, err)
}

func TestTokenExchangeDownscopesAndAttachesActClaim(t *testing.T) {
	ctx, provider := newTestSetup(t)
	user := mustUser(t, ctx)
	actor, err := ctx.Storage.CreateUser(context.Background(), storage.User{ID: "actor-1", Email: "svc@b.c"})
	require.NoError(t, err)
	client := mustClient(t, ctx, false)
	rc := context.Background()

	subjectAT, err := provider.issueAccessToken(ctx, rc, client, user.ID, "", "", []string{ScopeOpenID, ScopeProfile}, "")
	require.NoError(t, err)
	actorAT, err := provider.issueAccessToken(ctx, rc, client, actor.ID, "", "", []string{ScopeOpenID}, "")
	require.NoError(t, err)

	req := formPost(t, "/oauth2/token", map[string]string{
		"grant_type":    GrantTokenExchange,
		"subject_token": subjectAT.Token,
		"actor_token":   actorAT.Token,
		"scope":         "openid",
		"audience":      "https://downstream.example.com",
	}, client.ClientID, "s3cr3t")
	resp, err := provider.handleToken(ctx, req)
	require.NoError(t, err)
	tr := resp.Body.(*tokenResponse)
	require.NotEmpty(t, tr.AccessToken)
	require.Equal(t, "openid", tr.Scope)

	var claims map[string]interface{}
	require.NoError(t, authcrypto.VerifyJWT(tr.AccessToken, &provider.signingKey.PublicKey, &claims))
	require.Equal(t, "https://downstream.example.com", claims["aud"])
	act, ok := claims["act"].(map[string]interface{})
	require.True(t, ok)
	require.Equal(t, actor.ID, act["sub"])
}
