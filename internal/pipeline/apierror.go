package pipeline

import "net/http"

// Error kinds per §7. These map 1:1 onto HTTP statuses; the stable
// Code distinguishes cases sharing a status (INVALID_PASSWORD vs
// CSRF_TOKEN_REQUIRED both surface as UNAUTHORIZED).
const (
	KindInvalidRequest      = "INVALID_REQUEST"
	KindUnauthorized        = "UNAUTHORIZED"
	KindForbidden           = "FORBIDDEN"
	KindNotFound            = "NOT_FOUND"
	KindConflict            = "CONFLICT"
	KindTooManyRequests     = "TOO_MANY_REQUESTS"
	KindInternalServerError = "INTERNAL_SERVER_ERROR"
)

var statusByKind = map[string]int{
	KindInvalidRequest:      http.StatusBadRequest,
	KindUnauthorized:        http.StatusUnauthorized,
	KindForbidden:           http.StatusForbidden,
	KindNotFound:            http.StatusNotFound,
	KindConflict:            http.StatusConflict,
	KindTooManyRequests:     http.StatusTooManyRequests,
	KindInternalServerError: http.StatusInternalServerError,
}

// APIError is the one typed error every handler returns for an
// expected failure, mirroring the teacher's apiError/writeAPIError
// split in server/error.go generalized with a stable Code per §7.
type APIError struct {
	Kind    string `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string { return e.Code + ": " + e.Message }

func (e *APIError) Status() int {
	if s, ok := statusByKind[e.Kind]; ok {
		return s
	}
	return http.StatusInternalServerError
}

func NewAPIError(kind, code, message string) *APIError {
	return &APIError{Kind: kind, Code: code, Message: message}
}

// OAuthError is the RFC 6749 §5.2 shape OAuth endpoints render instead
// of APIError, mirroring the teacher's oauth2.Error / writeTokenError.
type OAuthError struct {
	ErrorCode        string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
	State            string `json:"state,omitempty"`
}

func (e *OAuthError) Error() string { return e.ErrorCode }

const (
	OAuthErrInvalidRequest       = "invalid_request"
	OAuthErrInvalidClient        = "invalid_client"
	OAuthErrInvalidGrant         = "invalid_grant"
	OAuthErrInvalidScope         = "invalid_scope"
	OAuthErrUnauthorizedClient   = "unauthorized_client"
	OAuthErrUnsupportedGrantType = "unsupported_grant_type"
	OAuthErrAuthorizationPending = "authorization_pending"
	OAuthErrSlowDown             = "slow_down"
	OAuthErrAccessDenied         = "access_denied"
	OAuthErrExpiredToken         = "expired_token"
	OAuthErrServerError          = "server_error"
)

// oauthErrorStatus mirrors the teacher's writeTokenError status switch:
// invalid_client gets 401 (no WWW-Authenticate header is set), everything else 400,
// except authorization_pending/slow_down which also use 400 per §4.I.
func oauthErrorStatus(code string) int {
	if code == OAuthErrInvalidClient {
		return http.StatusUnauthorized
	}
	return http.StatusBadRequest
}
