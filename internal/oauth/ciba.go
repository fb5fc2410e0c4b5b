package oauth

import (
	"context"
	"net/http"
	"time"

	"github.com/ncrq/authguard/internal/authcrypto"
	"github.com/ncrq/authguard/internal/authctx"
	"github.com/ncrq/authguard/internal/pipeline"
	"github.com/ncrq/authguard/internal/storage"
)

const cibaRequestExpiry = 10 * time.Minute

type cibaAuthorizeResponse struct {
	AuthReqID string `json:"auth_req_id"`
	ExpiresIn int    `json:"expires_in"`
	Interval  int    `json:"interval"`
}

// resolveLoginHint finds the user a bc-authorize request names, trying
// email, then phone, then username, per §4.I's resolution order.
func resolveLoginHint(ctx *authctx.Context, rc context.Context, hint string) (storage.User, error) {
	if u, err := ctx.Storage.FindUserByEmail(rc, hint); err == nil {
		return u, nil
	}
	if u, err := ctx.Storage.FindUserByPhone(rc, hint); err == nil {
		return u, nil
	}
	return ctx.Storage.FindUserByUsername(rc, hint)
}

// sendNotification pushes a backchannel prompt to the resolved user's
// device. No transport is wired into this library (push/SMS delivery
// is the embedding application's concern per spec.md's Non-goals); the
// hook is invoked fire-and-forget so a slow or absent notifier never
// blocks bc-authorize's response.
func (p *Provider) sendNotification(ctx *authctx.Context, user storage.User, authReqID, bindingMessage string) {
	if ctx.Options.CibaNotify == nil {
		return
	}
	go ctx.Options.CibaNotify(user, authReqID, bindingMessage)
}

// handleBackchannelAuthorize implements CIBA's bc-authorize: resolve
// login_hint, persist a pending CibaRequest, and notify the user out
// of band.
func (p *Provider) handleBackchannelAuthorize(ctx *authctx.Context, r *http.Request) (*authctx.Response, error) {
	rc := r.Context()
	body := pipeline.Body(r)
	clientID, clientSecret, ok := clientCredentialsFromRequest(r, body)
	if !ok {
		return nil, oauthErr(pipeline.OAuthErrInvalidClient, "client authentication is required")
	}
	client, err := ResolveClient(ctx, rc, clientID)
	if err != nil || !AuthenticateClient(client, clientSecret) {
		return nil, oauthErr(pipeline.OAuthErrInvalidClient, "client authentication failed")
	}

	loginHint := stringField(body, "login_hint")
	if loginHint == "" {
		return nil, oauthErr(pipeline.OAuthErrInvalidRequest, "login_hint is required")
	}
	user, err := resolveLoginHint(ctx, rc, loginHint)
	if err != nil {
		return nil, oauthErr(pipeline.OAuthErrInvalidRequest, "login_hint did not resolve to a known user")
	}

	scopes := splitScope(stringField(body, "scope"))
	if !ValidateScopes(ctx, client, scopes) {
		return nil, oauthErr(pipeline.OAuthErrInvalidScope, "requested scope exceeds client/server grant")
	}

	now := ctx.Now()
	authReqID := authcrypto.NewToken()
	bindingMessage := stringField(body, "binding_message")
	created, err := ctx.Storage.CreateCibaRequest(rc, storage.CibaRequest{
		AuthReqID:       authReqID,
		ClientID:        client.ClientID,
		UserID:          user.ID,
		LoginHint:       loginHint,
		Scopes:          scopes,
		Status:          storage.StatusPending,
		ExpiresAt:       now.Add(cibaRequestExpiry),
		LastPolledAt:    now,
		PollingInterval: int(deviceMinPollInterval.Seconds()),
		BindingMessage:  bindingMessage,
	})
	if err != nil {
		return nil, err
	}

	p.sendNotification(ctx, user, created.AuthReqID, bindingMessage)

	return &authctx.Response{Status: http.StatusOK, Body: &cibaAuthorizeResponse{
		AuthReqID: created.AuthReqID,
		ExpiresIn: int(cibaRequestExpiry.Seconds()),
		Interval:  int(deviceMinPollInterval.Seconds()),
	}}, nil
}

// handleCibaVerify lets the signed-in user named by a pending request
// approve or reject it; §4.I requires the live session's user to match
// the request's resolved userId.
func (p *Provider) handleCibaVerify(ctx *authctx.Context, r *http.Request) (*authctx.Response, error) {
	rc := r.Context()
	body := pipeline.Body(r)
	authReqID := stringField(body, "auth_req_id")
	if authReqID == "" {
		return nil, pipeline.NewAPIError(pipeline.KindInvalidRequest, "MISSING_AUTH_REQ_ID", "auth_req_id is required")
	}
	approve, _ := body["approve"].(bool)

	_, user, hasSession := currentSession(ctx, rc, r)
	if !hasSession {
		return nil, pipeline.NewAPIError(pipeline.KindUnauthorized, "NO_SESSION", "sign in before resolving a backchannel request")
	}

	creq, err := ctx.Storage.FindCibaRequest(rc, authReqID)
	if err != nil {
		return nil, pipeline.NewAPIError(pipeline.KindNotFound, "UNKNOWN_AUTH_REQ_ID", "auth_req_id is invalid or expired")
	}
	if creq.UserID != user.ID {
		return nil, pipeline.NewAPIError(pipeline.KindForbidden, "USER_MISMATCH", "this request was not issued to the signed-in user")
	}
	if creq.Status != storage.StatusPending {
		return nil, pipeline.NewAPIError(pipeline.KindConflict, "ALREADY_RESOLVED", "this request was already resolved")
	}

	status := storage.StatusDenied
	if approve {
		status = storage.StatusApproved
	}
	if _, err := ctx.Storage.UpdateCibaRequest(rc, authReqID, storage.Record{"status": status}); err != nil {
		return nil, err
	}
	return &authctx.Response{Status: http.StatusOK, Body: map[string]bool{"approved": approve}}, nil
}

// grantCIBA implements the polling half of §4.I's ciba grant: look up
// by auth_req_id, apply the same pending/slow_down/expired dispatch as
// the device flow, and on approval issue tokens and delete the request.
func (p *Provider) grantCIBA(ctx *authctx.Context, rc context.Context, client storage.OAuthClient, field func(string) string) (*authctx.Response, error) {
	authReqID := field("auth_req_id")
	if authReqID == "" {
		return nil, oauthErr(pipeline.OAuthErrInvalidRequest, "auth_req_id is required")
	}
	creq, err := ctx.Storage.FindCibaRequest(rc, authReqID)
	if err != nil {
		return nil, oauthErr(pipeline.OAuthErrInvalidGrant, "auth_req_id is unknown")
	}
	if creq.ClientID != client.ClientID {
		return nil, oauthErr(pipeline.OAuthErrInvalidGrant, "auth_req_id was not issued to this client")
	}

	now := ctx.Now()
	if now.After(creq.ExpiresAt) {
		_ = ctx.Storage.DeleteCibaRequest(rc, creq.AuthReqID)
		return nil, oauthErr(pipeline.OAuthErrExpiredToken, "backchannel request has expired")
	}

	switch creq.Status {
	case storage.StatusDenied:
		_ = ctx.Storage.DeleteCibaRequest(rc, creq.AuthReqID)
		return nil, oauthErr(pipeline.OAuthErrAccessDenied, "the user denied this request")
	case storage.StatusPending:
		interval := time.Duration(creq.PollingInterval) * time.Second
		if now.Before(creq.LastPolledAt.Add(interval)) {
			if _, err := ctx.Storage.UpdateCibaRequest(rc, creq.AuthReqID, storage.Record{
				"last_polled_at":   now,
				"polling_interval": creq.PollingInterval + int(deviceBackoffStep.Seconds()),
			}); err != nil {
				return nil, err
			}
			return nil, oauthErr(pipeline.OAuthErrSlowDown, "polling too frequently")
		}
		if _, err := ctx.Storage.UpdateCibaRequest(rc, creq.AuthReqID, storage.Record{"last_polled_at": now}); err != nil {
			return nil, err
		}
		return nil, oauthErr(pipeline.OAuthErrAuthorizationPending, "the user has not yet approved this request")
	}

	user, err := ctx.Storage.FindUserByID(rc, creq.UserID)
	if err != nil {
		return nil, oauthErr(pipeline.OAuthErrInvalidGrant, "the user bound to this request no longer exists")
	}

	at, err := p.issueAccessToken(ctx, rc, client, creq.UserID, "", "", creq.Scopes, "")
	if err != nil {
		return nil, err
	}
	resp := &tokenResponse{
		AccessToken: at.Token,
		TokenType:   "Bearer",
		ExpiresIn:   at.ExpiresIn,
		Scope:       joinScope(creq.Scopes),
	}
	if contains(creq.Scopes, ScopeOfflineAccess) {
		rt, err := issueRefreshToken(ctx, rc, client, creq.UserID, "", "", "", creq.Scopes)
		if err != nil {
			return nil, err
		}
		resp.RefreshToken = rt.Token
	}
	if contains(creq.Scopes, ScopeOpenID) {
		idToken, err := p.issueIDToken(client, creq.UserID, at.Token, "", now, creq.Scopes, user)
		if err != nil {
			return nil, err
		}
		resp.IDToken = idToken
	}

	_ = ctx.Storage.DeleteCibaRequest(rc, creq.AuthReqID)
	return &authctx.Response{Status: http.StatusOK, Body: resp}, nil
}
