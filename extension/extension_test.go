package extension

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/custody/api"
	"github.com/xraph/custody/fee"
	"github.com/xraph/custody/rbac"
	"github.com/xraph/custody/store/memory"
)

func TestMergeWithDefaults(t *testing.T) {
	cfg := mergeWithDefaults(Config{Principal: "0xvault"})
	assert.Equal(t, "/custody", cfg.BasePath)
	assert.Equal(t, "0xvault", cfg.Principal)
	assert.Equal(t, DriverMemory, cfg.Driver)
	assert.Equal(t, 20, cfg.RateBurst)
	assert.Equal(t, 5*time.Second, cfg.PluginTimeout)
}

func TestMergeConfigurations(t *testing.T) {
	yamlCfg := Config{
		BasePath:  "/vault",
		Operators: []string{"0xop"},
	}
	progCfg := Config{
		BasePath:       "/ignored",
		Owner:          "0xowner",
		DisableMigrate: true,
		RateLimit:      50,
		Fee:            &fee.Schedule{Numerator: 1, Denominator: 100},
		Operators:      []string{"0xignored"},
	}

	cfg := mergeConfigurations(yamlCfg, progCfg)
	assert.Equal(t, "/vault", cfg.BasePath)
	assert.Equal(t, "0xowner", cfg.Owner)
	assert.True(t, cfg.DisableMigrate)
	assert.InDelta(t, 50.0, cfg.RateLimit, 0)
	assert.Equal(t, []string{"0xop"}, cfg.Operators)
	require.NotNil(t, cfg.Fee)
	assert.EqualValues(t, 1, cfg.Fee.Numerator)
	assert.Equal(t, DriverMemory, cfg.Driver)
}

func TestResolveStore(t *testing.T) {
	t.Run("programmatic store wins", func(t *testing.T) {
		s := memory.New()
		e := &Extension{store: s, config: Config{Driver: DriverPostgres}}
		got, err := e.resolveStore()
		require.NoError(t, err)
		assert.Same(t, s, got)
	})

	t.Run("memory by default", func(t *testing.T) {
		e := &Extension{config: DefaultConfig()}
		got, err := e.resolveStore()
		require.NoError(t, err)
		assert.IsType(t, &memory.Store{}, got)
	})

	t.Run("sql driver without database", func(t *testing.T) {
		e := &Extension{config: Config{Driver: DriverPostgres}}
		_, err := e.resolveStore()
		assert.Error(t, err)
	})
}

func TestBuildServesAPI(t *testing.T) {
	e := &Extension{config: mergeWithDefaults(Config{
		Principal: "0xvault",
		Owner:     "0xowner",
		Operators: []string{"0xop"},
	})}
	require.NoError(t, e.build())
	require.NoError(t, e.controller.Start(context.Background()))
	t.Cleanup(func() { _ = e.controller.Stop() })

	assert.Equal(t, "0xowner", e.controller.Owner().String())
	assert.True(t, e.controller.HasRole(rbac.Operator, "0xop"))
	require.NoError(t, e.Health(context.Background()))

	srv := httptest.NewServer(e.Handler())
	t.Cleanup(srv.Close)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/custody/health", nil)
	require.NoError(t, err)
	req.Header.Set(api.DefaultPrincipalHeader, "0xop")
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestBuildWithoutRoutes(t *testing.T) {
	e := &Extension{config: mergeWithDefaults(Config{DisableRoutes: true})}
	require.NoError(t, e.build())
	assert.Nil(t, e.Handler())
	assert.NotNil(t, e.Controller())
}
