package oauth

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ncrq/authguard/internal/authcrypto"
	"github.com/ncrq/authguard/internal/authctx"
	"github.com/ncrq/authguard/internal/pipeline"
	"github.com/ncrq/authguard/internal/storage"
)

// Device flow timing, grounded on deviceflowhandlers.go's expireTime/
// poll interval constants.
const (
	deviceCodeExpiry      = 10 * time.Minute
	deviceMinPollInterval = 5 * time.Second
	deviceBackoffStep     = 5 * time.Second
)

type deviceAuthorizationResponse struct {
	DeviceCode              string `json:"device_code"`
	UserCode                string `json:"user_code"`
	VerificationURI         string `json:"verification_uri"`
	VerificationURIComplete string `json:"verification_uri_complete"`
	ExpiresIn               int    `json:"expires_in"`
	Interval                int    `json:"interval"`
}

// handleDeviceAuthorize implements RFC 8628 §3.1: mint a device_code/
// user_code pair for a device with no browser of its own.
func (p *Provider) handleDeviceAuthorize(ctx *authctx.Context, r *http.Request) (*authctx.Response, error) {
	rc := r.Context()
	body := pipeline.Body(r)
	clientID, _ := body["client_id"].(string)
	if clientID == "" {
		if id, _, ok := r.BasicAuth(); ok {
			clientID = id
		}
	}
	client, err := ResolveClient(ctx, rc, clientID)
	if err != nil {
		return nil, oauthErr(pipeline.OAuthErrInvalidClient, "unknown or disabled client")
	}
	if !client.Public {
		if _, secret, ok := clientCredentialsFromRequest(r, body); !ok || !AuthenticateClient(client, secret) {
			return nil, oauthErr(pipeline.OAuthErrInvalidClient, "client authentication failed")
		}
	}

	scope, _ := body["scope"].(string)
	scopes := splitScope(scope)
	if !ValidateScopes(ctx, client, scopes) {
		return nil, oauthErr(pipeline.OAuthErrInvalidScope, "requested scope exceeds client/server grant")
	}

	now := ctx.Now()
	deviceCode := authcrypto.NewToken()
	userCode := authcrypto.NewUserCode()
	if _, err := ctx.Storage.CreateDeviceCode(rc, storage.DeviceCode{
		DeviceCode:      deviceCode,
		UserCode:        userCode,
		ClientID:        client.ClientID,
		Scopes:          scopes,
		Status:          storage.StatusPending,
		ExpiresAt:       now.Add(deviceCodeExpiry),
		LastPolledAt:    now,
		PollingInterval: int(deviceMinPollInterval.Seconds()),
	}); err != nil {
		return nil, err
	}

	verificationURI := ctx.Options.DeviceVerificationURL
	complete := verificationURI + "?" + url.Values{"user_code": {userCode}}.Encode()

	return &authctx.Response{Status: http.StatusOK, Headers: http.Header{"Cache-Control": []string{"no-store"}}, Body: &deviceAuthorizationResponse{
		DeviceCode:              deviceCode,
		UserCode:                userCode,
		VerificationURI:         verificationURI,
		VerificationURIComplete: complete,
		ExpiresIn:               int(deviceCodeExpiry.Seconds()),
		Interval:                int(deviceMinPollInterval.Seconds()),
	}}, nil
}

// handleDeviceVerify implements the browser-facing half: a signed-in
// user submits the code their device displayed (normalized the way
// the device flow charset requires) and approves or denies it.
func (p *Provider) handleDeviceVerify(ctx *authctx.Context, r *http.Request) (*authctx.Response, error) {
	rc := r.Context()
	body := pipeline.Body(r)
	userCode := strings.ToUpper(strings.TrimSpace(stringField(body, "user_code")))
	if userCode == "" {
		return nil, pipeline.NewAPIError(pipeline.KindInvalidRequest, "MISSING_USER_CODE", "user_code is required")
	}
	approve, _ := body["approve"].(bool)

	_, user, hasSession := currentSession(ctx, rc, r)
	if !hasSession {
		return nil, pipeline.NewAPIError(pipeline.KindUnauthorized, "NO_SESSION", "sign in before verifying a device code")
	}

	dc, err := ctx.Storage.FindDeviceCodeByUserCode(rc, userCode)
	if err != nil {
		return nil, pipeline.NewAPIError(pipeline.KindNotFound, "UNKNOWN_USER_CODE", "user code is invalid or expired")
	}
	if ctx.Now().After(dc.ExpiresAt) {
		return nil, pipeline.NewAPIError(pipeline.KindNotFound, "EXPIRED_USER_CODE", "user code has expired")
	}
	if dc.Status != storage.StatusPending {
		return nil, pipeline.NewAPIError(pipeline.KindConflict, "ALREADY_RESOLVED", "this device code was already resolved")
	}

	status := storage.StatusDenied
	if approve {
		status = storage.StatusApproved
	}
	if _, err := ctx.Storage.UpdateDeviceCode(rc, dc.DeviceCode, storage.Record{
		"status":  status,
		"user_id": user.ID,
	}); err != nil {
		return nil, err
	}
	return &authctx.Response{Status: http.StatusOK, Body: map[string]bool{"approved": approve}}, nil
}

// grantDeviceCode implements the polling half of RFC 8628 §3.4,
// dispatched from handleToken. Each call either advances the pending
// device code's backoff, reports the user's decision, or — once
// approved — issues tokens and deletes the single-use row.
func (p *Provider) grantDeviceCode(ctx *authctx.Context, rc context.Context, client storage.OAuthClient, field func(string) string) (*authctx.Response, error) {
	deviceCode := field("device_code")
	if deviceCode == "" {
		return nil, oauthErr(pipeline.OAuthErrInvalidRequest, "device_code is required")
	}
	dc, err := ctx.Storage.FindDeviceCodeByDeviceCode(rc, deviceCode)
	if err != nil {
		return nil, oauthErr(pipeline.OAuthErrInvalidGrant, "device_code is unknown")
	}
	if dc.ClientID != client.ClientID {
		return nil, oauthErr(pipeline.OAuthErrInvalidGrant, "device_code was not issued to this client")
	}

	now := ctx.Now()
	if now.After(dc.ExpiresAt) {
		_ = ctx.Storage.DeleteDeviceCode(rc, dc.DeviceCode)
		return nil, oauthErr(pipeline.OAuthErrExpiredToken, "device code has expired")
	}

	switch dc.Status {
	case storage.StatusDenied:
		_ = ctx.Storage.DeleteDeviceCode(rc, dc.DeviceCode)
		return nil, oauthErr(pipeline.OAuthErrAccessDenied, "the user denied this request")
	case storage.StatusPending:
		interval := time.Duration(dc.PollingInterval) * time.Second
		if now.Before(dc.LastPolledAt.Add(interval)) {
			if _, err := ctx.Storage.UpdateDeviceCode(rc, dc.DeviceCode, storage.Record{
				"last_polled_at":   now,
				"polling_interval": dc.PollingInterval + int(deviceBackoffStep.Seconds()),
			}); err != nil {
				return nil, err
			}
			return nil, oauthErr(pipeline.OAuthErrSlowDown, "polling too frequently")
		}
		if _, err := ctx.Storage.UpdateDeviceCode(rc, dc.DeviceCode, storage.Record{"last_polled_at": now}); err != nil {
			return nil, err
		}
		return nil, oauthErr(pipeline.OAuthErrAuthorizationPending, "the user has not yet approved this request")
	}

	user, err := ctx.Storage.FindUserByID(rc, dc.UserID)
	if err != nil {
		return nil, oauthErr(pipeline.OAuthErrInvalidGrant, "the user bound to this device code no longer exists")
	}

	at, err := p.issueAccessToken(ctx, rc, client, dc.UserID, "", "", dc.Scopes, "")
	if err != nil {
		return nil, err
	}
	resp := &tokenResponse{
		AccessToken: at.Token,
		TokenType:   "Bearer",
		ExpiresIn:   at.ExpiresIn,
		Scope:       joinScope(dc.Scopes),
	}
	if contains(dc.Scopes, ScopeOfflineAccess) {
		rt, err := issueRefreshToken(ctx, rc, client, dc.UserID, "", "", "", dc.Scopes)
		if err != nil {
			return nil, err
		}
		resp.RefreshToken = rt.Token
	}
	if contains(dc.Scopes, ScopeOpenID) {
		idToken, err := p.issueIDToken(client, dc.UserID, at.Token, "", now, dc.Scopes, user)
		if err != nil {
			return nil, err
		}
		resp.IDToken = idToken
	}

	_ = ctx.Storage.DeleteDeviceCode(rc, dc.DeviceCode)
	return &authctx.Response{Status: http.StatusOK, Body: resp}, nil
}

func stringField(body map[string]interface{}, key string) string {
	s, _ := body[key].(string)
	return s
}
