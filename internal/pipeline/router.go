// Package pipeline is the typed endpoint registry and request
// execution pipeline of §4.E, grounded on the teacher's server.go mux
// wiring (handle/handleFunc closures joining issuerURL.Path with each
// route, handlerWithHeaders tagging the request context) and
// handlers.go's writeResponseWithBody JSON-encoding convention.
package pipeline

import (
	"net/http"
	"path"

	"github.com/gorilla/mux"

	"github.com/ncrq/authguard/internal/authctx"
)

// Router binds a Context's plugin-contributed endpoints onto a
// gorilla/mux router, the same router the teacher's Server.router
// uses.
type Router struct {
	ctx *authctx.Context
	mux *mux.Router
}

func NewRouter(ctx *authctx.Context) *Router {
	r := mux.NewRouter().SkipClean(true).UseEncodedPath()
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeResponse(w, &authctx.Response{Status: http.StatusNotFound, Body: &APIError{Kind: KindNotFound, Code: "NOT_FOUND", Message: "no such endpoint"}})
	})
	return &Router{ctx: ctx, mux: r}
}

// Bind registers every endpoint the Context's plugins contributed,
// joining each path onto ctx.BasePath per §6.
func (p *Router) Bind() {
	for _, ep := range p.ctx.Endpoints() {
		full := path.Join(p.ctx.BasePath, ep.Path)
		p.mux.HandleFunc(full, p.wrap(ep)).Methods(ep.Methods...)
	}
}

func (p *Router) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p.mux.ServeHTTP(w, r)
}

// wrap implements §4.E steps 1–7 around one endpoint's handler.
func (p *Router) wrap(ep authctx.EndpointSpec) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rCtx := withRequestID(r.Context())
		rCtx = withRemoteIP(rCtx, remoteIP(r))
		r = r.WithContext(rCtx)

		r, err := ParseBody(r)
		if err != nil {
			p.renderError(w, err)
			return
		}

		resp := &authctx.Response{Headers: make(http.Header)}

		if sc, err := runHooks(p.ctx.GlobalHooks.Before, r, resp); err != nil {
			p.renderError(w, err)
			return
		} else if sc != nil {
			writeResponse(w, sc)
			return
		}

		if sc, err := runHooks(ep.Middlewares, r, resp); err != nil {
			p.renderError(w, err)
			return
		} else if sc != nil {
			writeResponse(w, sc)
			return
		}

		handlerResp, err := ep.Handler(p.ctx, r)
		if err != nil {
			p.renderError(w, err)
			return
		}
		resp = mergeResponse(resp, handlerResp)

		if _, err := runHooks(p.ctx.GlobalHooks.After, r, resp); err != nil {
			p.renderError(w, err)
			return
		}

		writeResponse(w, resp)
	}
}

// runHooks runs hooks in registration order (§4.E's ordering
// guarantee); a hook may short-circuit with a Response or append
// headers onto resp.
func runHooks(hooks []authctx.HookFunc, r *http.Request, resp *authctx.Response) (*authctx.Response, error) {
	for _, h := range hooks {
		result, err := h(r, resp)
		if err != nil {
			return nil, err
		}
		if result == nil {
			continue
		}
		if result.ShortCircuit != nil {
			return result.ShortCircuit, nil
		}
		for k, vs := range result.Headers {
			for _, v := range vs {
				resp.Headers.Add(k, v)
			}
		}
	}
	return nil, nil
}

// mergeResponse applies the handler's Response over the accumulated
// before-hook Response: headers append (never overwrite), handler
// status/body/cookies win outright.
func mergeResponse(acc, handler *authctx.Response) *authctx.Response {
	if handler == nil {
		return acc
	}
	for k, vs := range handler.Headers {
		for _, v := range vs {
			acc.Headers.Add(k, v)
		}
	}
	acc.Status = handler.Status
	acc.Body = handler.Body
	acc.Cookies = append(acc.Cookies, handler.Cookies...)
	return acc
}

func (p *Router) renderError(w http.ResponseWriter, err error) {
	switch e := err.(type) {
	case *APIError:
		writeResponse(w, &authctx.Response{Status: e.Status(), Body: e})
	case *OAuthError:
		writeResponse(w, &authctx.Response{Status: oauthErrorStatus(e.ErrorCode), Body: e})
	default:
		p.ctx.Logger.Error("unhandled pipeline error", "err", err)
		writeResponse(w, &authctx.Response{
			Status: http.StatusInternalServerError,
			Body:   &APIError{Kind: KindInternalServerError, Code: "INTERNAL_SERVER_ERROR", Message: "internal server error"},
		})
	}
}
