package authctx

import (
	"time"

	"github.com/ncrq/authguard/internal/storage"
)

// SessionOptions controls §4.F's rolling-expiry behavior.
type SessionOptions struct {
	ExpiresIn time.Duration // default 7 days
	UpdateAge time.Duration // 0 preserves the source's documented-but-literal "always roll" behavior, see DESIGN.md
}

// RateLimitOptions configures §4.J's sliding-window limiter.
type RateLimitOptions struct {
	Window        time.Duration
	Max           int
	PathOverrides map[string]int
}

// Options is the user-supplied configuration validated and frozen into
// a Context at startup, mirroring the teacher's ServerConfig.
type Options struct {
	BaseURL      string
	BasePath     string // default "/api/auth"
	CookiePrefix string // default "better-auth"
	CookieDomain string // set for cross-subdomain mode
	Secure       bool

	Secrets []SecretSpec // supports BETTER_AUTH_SECRETS-style version:value pairs

	Scopes                        []string
	RequirePKCE                   bool
	AllowPlainCodeChallengeMethod bool
	TrustedOrigins                []string

	Session   SessionOptions
	RateLimit RateLimitOptions

	EnableRegistration       bool
	EnableClientRegistration bool

	// LoginPageURL/ConsentPageURL/ErrorURL are the external, non-HTML
	// front-end routes the authorize endpoint redirects a browser to;
	// rendering those pages is an explicit external collaborator per
	// the spec's Non-goals, this server only redirects to them.
	LoginPageURL   string // default BaseURL + "/login"
	ConsentPageURL string // default BaseURL + "/consent"
	ErrorURL       string // default BaseURL + "/error"

	// DeviceVerificationURL is where a user types in a device flow's
	// user_code, per RFC 8628's verification_uri.
	DeviceVerificationURL string // default BaseURL + "/device"

	// CibaNotify delivers a CIBA bc-authorize prompt to the resolved
	// user out of band (push/SMS). Actual delivery is an embedding
	// application concern; a nil hook means bc-authorize still creates
	// the pending request, it just notifies nobody.
	CibaNotify func(user storage.User, authReqID, bindingMessage string)
}

// SecretSpec is one versioned secret, parsed from BETTER_AUTH_SECRETS
// ("v:value,v:value") or supplied directly by the embedding app.
type SecretSpec struct {
	Version int
	Value   []byte
}

// OptionsDelta is returned by Plugin.Init and deep-merged into Options
// with last-write-wins semantics, per SPEC_FULL §4.D (no generic
// deep-merge library is pulled in for this; see DESIGN.md).
type OptionsDelta struct {
	AdditionalScopes  []string
	AdditionalOrigins []string
	AdditionalSecrets []SecretSpec
}

func (o *Options) applyDelta(d OptionsDelta) {
	o.Scopes = append(o.Scopes, d.AdditionalScopes...)
	o.TrustedOrigins = append(o.TrustedOrigins, d.AdditionalOrigins...)
	o.Secrets = append(o.Secrets, d.AdditionalSecrets...)
}

func (o *Options) setDefaults() {
	if o.BasePath == "" {
		o.BasePath = "/api/auth"
	}
	if o.CookiePrefix == "" {
		o.CookiePrefix = "better-auth"
	}
	if o.Session.ExpiresIn == 0 {
		o.Session.ExpiresIn = 7 * 24 * time.Hour
	}
	if o.RateLimit.Window == 0 {
		o.RateLimit.Window = 10 * time.Second
	}
	if o.RateLimit.Max == 0 {
		o.RateLimit.Max = 100
	}
	if o.LoginPageURL == "" {
		o.LoginPageURL = o.BaseURL + "/login"
	}
	if o.ConsentPageURL == "" {
		o.ConsentPageURL = o.BaseURL + "/consent"
	}
	if o.ErrorURL == "" {
		o.ErrorURL = o.BaseURL + "/error"
	}
	if o.DeviceVerificationURL == "" {
		o.DeviceVerificationURL = o.BaseURL + "/device"
	}
}
