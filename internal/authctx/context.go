// Package authctx assembles the process-scoped Context: options,
// secrets, the storage adapter, the cookie factory, and plugin
// registrations, following the teacher's ServerConfig.Server() staged
// assembly in server/config.go (parse issuer URL → build templates →
// configure state → wire emailer) generalized to this spec's
// component list (§4.D): validate options → parse base URL → build
// cookie factory → resolve secrets → register plugins → merge deltas.
package authctx

import (
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/ncrq/authguard/internal/authcrypto"
	"github.com/ncrq/authguard/internal/cookie"
	"github.com/ncrq/authguard/internal/storage"
)

// Context is the immutable, process-wide value every request handler
// closes over. Nothing on it is mutated after New returns.
type Context struct {
	Options Options

	BaseURL  *url.URL
	BasePath string

	Secrets authcrypto.SecretRing
	Pepper  []byte // derived from the active secret; used by HashPassword/VerifyPassword

	Cookies *cookie.Factory
	Logger  *slog.Logger

	Storage *storage.InternalAdapter
	Raw     storage.Adapter

	Clock func() time.Time // testing seam; defaults to time.Now, replacing the teacher's clockwork.Clock dependency (see DESIGN.md)

	Plugins     map[string]Plugin
	PluginOrder []string
	GlobalHooks Hooks
}

// New validates opts, assembles dependent subsystems in order, runs
// every plugin's Init, deep-merges the returned OptionsDelta values,
// and returns a frozen Context.
func New(opts Options, raw storage.Adapter, logger *slog.Logger, plugins []Plugin) (*Context, error) {
	opts.setDefaults()

	if opts.BaseURL == "" {
		return nil, fmt.Errorf("authctx: BaseURL is required")
	}
	base, err := url.Parse(opts.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("authctx: parse BaseURL: %w", err)
	}
	if len(opts.Secrets) == 0 {
		return nil, fmt.Errorf("authctx: at least one secret is required")
	}

	ring := make(authcrypto.SecretRing, len(opts.Secrets))
	for i, s := range opts.Secrets {
		ring[i] = authcrypto.Secret{Version: s.Version, Value: s.Value}
	}

	if logger == nil {
		logger = slog.Default()
	}

	level := cookie.LevelDefault
	if opts.CookieDomain != "" {
		level = cookie.LevelCrossSubdomain
	}

	ctx := &Context{
		Options:  opts,
		BaseURL:  base,
		BasePath: opts.BasePath,
		Secrets:  ring,
		Pepper:   ring.Active().Value,
		Cookies: &cookie.Factory{
			Prefix:     opts.CookiePrefix,
			Secrets:    ring,
			Secure:     opts.Secure,
			Level:      level,
			Domain:     opts.CookieDomain,
			DefaultAge: opts.Session.ExpiresIn,
		},
		Logger:      logger,
		Raw:         raw,
		Storage:     storage.New(raw),
		Clock:       time.Now,
		Plugins:     make(map[string]Plugin, len(plugins)),
		PluginOrder: make([]string, 0, len(plugins)),
	}

	for _, p := range plugins {
		delta, err := p.Init(ctx)
		if err != nil {
			return nil, fmt.Errorf("authctx: plugin %q init: %w", p.ID(), err)
		}
		ctx.Options.applyDelta(delta)
		ctx.Plugins[p.ID()] = p
		ctx.PluginOrder = append(ctx.PluginOrder, p.ID())

		h := p.Hooks()
		ctx.GlobalHooks.Before = append(ctx.GlobalHooks.Before, h.Before...)
		ctx.GlobalHooks.After = append(ctx.GlobalHooks.After, h.After...)
	}

	return ctx, nil
}

// Endpoints collects every plugin's EndpointSpec list in registration
// order, for internal/pipeline to bind into routes.
func (c *Context) Endpoints() []EndpointSpec {
	var out []EndpointSpec
	for _, id := range c.PluginOrder {
		out = append(out, c.Plugins[id].Endpoints()...)
	}
	return out
}

func (c *Context) Now() time.Time { return c.Clock() }
