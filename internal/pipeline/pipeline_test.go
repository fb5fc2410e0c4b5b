package pipeline_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ncrq/authguard/internal/authctx"
	"github.com/ncrq/authguard/internal/pipeline"
	"github.com/ncrq/authguard/internal/storage/memory"
)

type echoPlugin struct{}

func (echoPlugin) ID() string { return "echo" }
func (echoPlugin) Init(ctx *authctx.Context) (authctx.OptionsDelta, error) {
	return authctx.OptionsDelta{}, nil
}
func (echoPlugin) Hooks() authctx.Hooks { return authctx.Hooks{} }
func (echoPlugin) Endpoints() []authctx.EndpointSpec {
	return []authctx.EndpointSpec{
		{
			Path:    "/echo",
			Methods: []string{http.MethodPost},
			Handler: func(ctx *authctx.Context, r *http.Request) (*authctx.Response, error) {
				body := pipeline.Body(r)
				return &authctx.Response{Status: http.StatusOK, Body: body}, nil
			},
		},
		{
			Path:    "/boom",
			Methods: []string{http.MethodGet},
			Handler: func(ctx *authctx.Context, r *http.Request) (*authctx.Response, error) {
				return nil, pipeline.NewAPIError(pipeline.KindForbidden, "NOPE", "not allowed")
			},
		},
	}
}

func newTestRouter(t *testing.T) *pipeline.Router {
	ctx, err := authctx.New(authctx.Options{
		BaseURL: "https://auth.example.com",
		Secrets: []authctx.SecretSpec{{Version: 1, Value: []byte("0123456789abcdef0123456789abcdef")}},
	}, memory.New(), nil, []authctx.Plugin{echoPlugin{}})
	require.NoError(t, err)

	router := pipeline.NewRouter(ctx)
	router.Bind()
	return router
}

func TestPipelineEchoEndpoint(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/echo", nil)
	req.Header.Set("Content-Type", "application/json")
	req.Body = http.NoBody

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestPipelineAPIErrorRendersStatus(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/boom", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestPipelineUnknownPathIs404(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/nope", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)
}
