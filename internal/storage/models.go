package storage

import "time"

// Model names used with the generic Adapter, one per §3 entity.
const (
	ModelUser             = "user"
	ModelAccount          = "account"
	ModelSession          = "session"
	ModelVerification     = "verification"
	ModelTwoFactor        = "two_factor"
	ModelTrustedDevice    = "trusted_device"
	ModelOAuthClient      = "oauth_client"
	ModelOAuthAccessToken = "oauth_access_token"
	ModelOAuthRefresh     = "oauth_refresh_token"
	ModelOAuthConsent     = "oauth_consent"
	ModelDeviceCode       = "device_code"
	ModelCibaRequest      = "ciba_request"
)

// User is a first-party account record. Extension fields the spec
// names (role, banned, phoneNumber, username, twoFactorEnabled) are
// kept as typed fields rather than an untyped map: §9's "dynamic
// schema extensions" note applies to plugin-contributed fields beyond
// what this core spec already enumerates, not to these.
type User struct {
	ID               string     `json:"id" db:"id"`
	Email            string     `json:"email" db:"email"`
	DisplayName      string     `json:"display_name" db:"display_name"`
	ImageURL         string     `json:"image_url" db:"image_url"`
	EmailVerified    bool       `json:"email_verified" db:"email_verified"`
	Role             string     `json:"role" db:"role"`
	Banned           bool       `json:"banned" db:"banned"`
	BanExpires       *time.Time `json:"ban_expires" db:"ban_expires"`
	PhoneNumber      string     `json:"phone_number" db:"phone_number"`
	Username         string     `json:"username" db:"username"`
	TwoFactorEnabled bool       `json:"two_factor_enabled" db:"two_factor_enabled"`
	CreatedAt        time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at" db:"updated_at"`
}

// Account links a User to a credential source. ProviderID is
// "credential" for password auth or a connector/social provider ID.
type Account struct {
	ID           string    `json:"id" db:"id"`
	UserID       string    `json:"user_id" db:"user_id"`
	ProviderID   string    `json:"provider_id" db:"provider_id"`
	AccountID    string    `json:"account_id" db:"account_id"`
	PasswordHash string    `json:"password_hash" db:"password_hash"`
	AccessToken  string    `json:"access_token" db:"access_token"`
	RefreshToken string    `json:"refresh_token" db:"refresh_token"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// Session is a user's authenticated browser/client session.
type Session struct {
	ID                   string    `json:"id" db:"id"`
	Token                string    `json:"token" db:"token"`
	UserID               string    `json:"user_id" db:"user_id"`
	ExpiresAt            time.Time `json:"expires_at" db:"expires_at"`
	CreatedAt            time.Time `json:"created_at" db:"created_at"`
	UpdatedAt            time.Time `json:"updated_at" db:"updated_at"`
	UserAgent            string    `json:"user_agent" db:"user_agent"`
	IPAddress            string    `json:"ip_address" db:"ip_address"`
	ImpersonatedBy       string    `json:"impersonated_by" db:"impersonated_by"`
	ActiveOrganizationID string    `json:"active_organization_id" db:"active_organization_id"`
}

// Verification is the generic time-limited record used for email OTPs,
// password reset tokens, OAuth state, authorization codes, and PKCE
// challenges, per §3.
type Verification struct {
	ID         string    `json:"id" db:"id"`
	Identifier string    `json:"identifier" db:"identifier"`
	Value      string    `json:"value" db:"value"`
	ExpiresAt  time.Time `json:"expires_at" db:"expires_at"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// TwoFactor holds a user's encrypted TOTP secret and backup codes.
type TwoFactor struct {
	UserID               string `json:"user_id" db:"user_id"`
	SecretEncrypted      string `json:"secret_encrypted" db:"secret_encrypted"`
	BackupCodesEncrypted string `json:"backup_codes_encrypted" db:"backup_codes_encrypted"` // JSON-encoded []string, then encrypted
	Period               int    `json:"period" db:"period"`
	Digits               int    `json:"digits" db:"digits"`
}

// TrustedDevice records a device that recently passed MFA and may skip
// it for a bounded period (the "in-db" strategy of §4.G).
type TrustedDevice struct {
	DeviceID  string    `json:"device_id" db:"device_id"`
	UserID    string    `json:"user_id" db:"user_id"`
	UserAgent string    `json:"user_agent" db:"user_agent"`
	ExpiresAt time.Time `json:"expires_at" db:"expires_at"`
}

// OAuthClient is a registered OAuth2/OIDC relying party.
type OAuthClient struct {
	ClientID                string    `json:"client_id" db:"client_id"`
	ClientSecret            string    `json:"client_secret" db:"client_secret"`
	RedirectURIs            []string  `json:"redirect_uris" db:"redirect_uris"`
	Scopes                  []string  `json:"scopes" db:"scopes"`
	Public                  bool      `json:"public" db:"public"`
	SkipConsent             bool      `json:"skip_consent" db:"skip_consent"`
	TokenEndpointAuthMethod string    `json:"token_endpoint_auth_method" db:"token_endpoint_auth_method"`
	GrantTypes              []string  `json:"grant_types" db:"grant_types"`
	ResponseTypes           []string  `json:"response_types" db:"response_types"`
	Disabled                bool      `json:"disabled" db:"disabled"`
	Metadata                string    `json:"metadata" db:"metadata"` // JSON
	ReferenceID             string    `json:"reference_id" db:"reference_id"`
	CreatedAt               time.Time `json:"created_at" db:"created_at"`
}

// OAuthAccessToken is an opaque (non-JWT) access token record.
type OAuthAccessToken struct {
	Token     string    `json:"token" db:"token"`
	ClientID  string    `json:"client_id" db:"client_id"`
	UserID    string    `json:"user_id" db:"user_id"`
	SessionID string    `json:"session_id" db:"session_id"`
	Scopes    []string  `json:"scopes" db:"scopes"`
	ExpiresAt time.Time `json:"expires_at" db:"expires_at"`
	RefreshID string    `json:"refresh_id" db:"refresh_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// OAuthRefreshToken is one link in a rotation chain. ChainID is shared
// by every token descended from the same original grant; revoking one
// token revokes every token sharing its ChainID, implementing the
// whole-chain replay defense from §3/§8.
type OAuthRefreshToken struct {
	Token         string     `json:"token" db:"token"`
	ChainID       string     `json:"chain_id" db:"chain_id"`
	PredecessorID string     `json:"predecessor_id" db:"predecessor_id"`
	ClientID      string     `json:"client_id" db:"client_id"`
	UserID        string     `json:"user_id" db:"user_id"`
	SessionID     string     `json:"session_id" db:"session_id"`
	Scopes        []string   `json:"scopes" db:"scopes"`
	ExpiresAt     time.Time  `json:"expires_at" db:"expires_at"`
	RevokedAt     *time.Time `json:"revoked_at" db:"revoked_at"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
}

// OAuthConsent records a user's scope grant to a client.
type OAuthConsent struct {
	ClientID     string    `json:"client_id" db:"client_id"`
	UserID       string    `json:"user_id" db:"user_id"`
	Scopes       []string  `json:"scopes" db:"scopes"`
	ReferenceID  string    `json:"reference_id" db:"reference_id"`
	ConsentGiven bool      `json:"consent_given" db:"consent_given"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// Grant statuses shared by DeviceCode and CibaRequest polling.
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusDenied   = "denied"
)

// DeviceCode is a pending RFC 8628 device authorization grant.
type DeviceCode struct {
	DeviceCode      string    `json:"device_code" db:"device_code"`
	UserCode        string    `json:"user_code" db:"user_code"`
	ClientID        string    `json:"client_id" db:"client_id"`
	Scopes          []string  `json:"scopes" db:"scopes"`
	UserID          string    `json:"user_id" db:"user_id"`
	Status          string    `json:"status" db:"status"`
	ExpiresAt       time.Time `json:"expires_at" db:"expires_at"`
	LastPolledAt    time.Time `json:"last_polled_at" db:"last_polled_at"`
	PollingInterval int       `json:"polling_interval" db:"polling_interval"`
	PKCEChallenge   string    `json:"pkce_challenge" db:"pkce_challenge"`
	PKCEMethod      string    `json:"pkce_method" db:"pkce_method"`
}

// CibaRequest is a pending OpenID backchannel authentication request.
type CibaRequest struct {
	AuthReqID       string    `json:"auth_req_id" db:"auth_req_id"`
	ClientID        string    `json:"client_id" db:"client_id"`
	UserID          string    `json:"user_id" db:"user_id"`
	LoginHint       string    `json:"login_hint" db:"login_hint"`
	Scopes          []string  `json:"scopes" db:"scopes"`
	Status          string    `json:"status" db:"status"`
	ExpiresAt       time.Time `json:"expires_at" db:"expires_at"`
	LastPolledAt    time.Time `json:"last_polled_at" db:"last_polled_at"`
	PollingInterval int       `json:"polling_interval" db:"polling_interval"`
	BindingMessage  string    `json:"binding_message" db:"binding_message"`
}

// Keys holds the active signing key and rotated verification keys,
// mirroring the teacher's storage.Keys. Nothing in the repository reads
// or stores it; /jwks publishes the oauth Provider's own signing key.
type Keys struct {
	SigningKeyID     string
	VerificationKeys []string // key IDs of still-valid rotated keys
	NextRotation     time.Time
}
