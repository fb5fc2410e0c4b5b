package authctx

import "net/http"

// HookResult lets a before-hook short-circuit the pipeline with a
// response, or pass a header delta forward, per §4.E / §9's "explicit
// accumulator instead of shared mutable context" redesign note.
type HookResult struct {
	// ShortCircuit, if non-nil, is written directly and the endpoint
	// handler / remaining hooks are skipped.
	ShortCircuit *Response
	// Headers are appended (never overwritten) onto the accumulated
	// response headers.
	Headers http.Header
}

// Response is the pipeline's explicit sum-type return value in place
// of the source's throw-to-redirect control flow (§9).
type Response struct {
	Status  int
	Headers http.Header
	Body    interface{} // JSON-marshaled, or []byte/string for raw bodies
	Cookies []*http.Cookie
}

// HookFunc is a before/after pipeline hook. Before-hooks run prior to
// endpoint-scoped middlewares; after-hooks observe and may rewrite the
// handler's Response.
type HookFunc func(r *http.Request, resp *Response) (*HookResult, error)

// Hooks groups the before/after lists a Plugin (or the top-level
// Options) contributes, run in registration order per §4.E.
type Hooks struct {
	Before []HookFunc
	After  []HookFunc
}

// EndpointSpec is what a Plugin declares for one route; internal/pipeline
// turns these into mux routes bound to this Context.
type EndpointSpec struct {
	Path        string
	Methods     []string
	Middlewares []HookFunc
	Handler     func(ctx *Context, r *http.Request) (*Response, error)
}

// Plugin is a pluggable unit of endpoints/hooks/options, modeling the
// source's dynamic context augmentation as a static interface per
// SPEC_FULL §9.
type Plugin interface {
	ID() string
	Init(ctx *Context) (OptionsDelta, error)
	Endpoints() []EndpointSpec
	Hooks() Hooks
}
