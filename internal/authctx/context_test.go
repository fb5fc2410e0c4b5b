package authctx_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ncrq/authguard/internal/authctx"
	"github.com/ncrq/authguard/internal/storage/memory"
)

type stubPlugin struct{ id string }

func (s stubPlugin) ID() string { return s.id }
func (s stubPlugin) Init(ctx *authctx.Context) (authctx.OptionsDelta, error) {
	return authctx.OptionsDelta{AdditionalScopes: []string{"stub:scope"}}, nil
}
func (s stubPlugin) Endpoints() []authctx.EndpointSpec { return nil }
func (s stubPlugin) Hooks() authctx.Hooks              { return authctx.Hooks{} }

func TestNewAssemblesContext(t *testing.T) {
	opts := authctx.Options{
		BaseURL: "https://auth.example.com",
		Secrets: []authctx.SecretSpec{{Version: 1, Value: []byte("0123456789abcdef0123456789abcdef")}},
	}
	ctx, err := authctx.New(opts, memory.New(), nil, []authctx.Plugin{stubPlugin{id: "stub"}})
	require.NoError(t, err)
	require.Equal(t, "/api/auth", ctx.BasePath)
	require.Contains(t, ctx.Options.Scopes, "stub:scope")
	require.NotNil(t, ctx.Storage)
	require.NotNil(t, ctx.Cookies)
}

func TestNewRequiresBaseURLAndSecret(t *testing.T) {
	_, err := authctx.New(authctx.Options{}, memory.New(), nil, nil)
	require.Error(t, err)

	_, err = authctx.New(authctx.Options{BaseURL: "https://auth.example.com"}, memory.New(), nil, nil)
	require.Error(t, err)
}
