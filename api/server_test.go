package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/custody"
	"github.com/xraph/custody/api"
	"github.com/xraph/custody/rbac"
	"github.com/xraph/custody/store/memory"
	"github.com/xraph/custody/token"
	"github.com/xraph/custody/types"
)

const (
	self     types.Principal = "0xcontroller"
	owner    types.Principal = "0xowner"
	operator types.Principal = "0xoperator"
)

var alice = types.UserIDFromName("alice")

func newServer(t *testing.T, opts ...api.Option) (*custody.Controller, *httptest.Server) {
	t.Helper()
	c, err := custody.New(self, token.NewMemory(self), memory.New(),
		custody.WithOwner(owner),
		custody.WithCustodian("0xcustodian"),
		custody.WithRole(rbac.Operator, operator),
	)
	require.NoError(t, err)
	require.NoError(t, c.Start(context.Background()))

	srv := httptest.NewServer(api.New(c, opts...).Handler())
	t.Cleanup(srv.Close)
	return c, srv
}

func call(t *testing.T, srv *httptest.Server, method, path string, p types.Principal, body any) (*http.Response, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, srv.URL+path, &buf)
	require.NoError(t, err)
	if p != "" {
		req.Header.Set(api.DefaultPrincipalHeader, p.String())
	}
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func TestHealth(t *testing.T) {
	_, srv := newServer(t)
	resp, body := call(t, srv, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
}

func TestAccountLifecycle(t *testing.T) {
	c, srv := newServer(t)
	path := "/accounts/" + alice.String()

	resp, body := call(t, srv, http.MethodPost, "/accounts", operator, map[string]string{"user_id": alice.String()})
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)
	assert.Equal(t, "0", body["balance"])

	resp, body = call(t, srv, http.MethodPost, path+"/deposit", operator, map[string]string{"amount": "10.5"})
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Equal(t, "10.5", body["balance"])

	resp, body = call(t, srv, http.MethodPost, path+"/authorizations", operator, map[string]string{"auth_id": "a1", "amount": "2"})
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Equal(t, "8.5", body["available"])
	assert.Equal(t, "2", body["authorized"])

	resp, body = call(t, srv, http.MethodDelete, path+"/authorizations/a1", operator, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Equal(t, "0", body["authorized"])

	resp, body = call(t, srv, http.MethodPost, path+"/settlements", operator, map[string]string{"settlement_id": "s1", "amount": "0.5"})
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Equal(t, "10", body["balance"])
	assert.Equal(t, types.MustParseUnits("0.5"), c.PoolBalance())

	resp, body = call(t, srv, http.MethodGet, "/accounts?limit=10", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 3, body["total"])
}

func TestUUIDPathParameter(t *testing.T) {
	_, srv := newServer(t)
	const id = "6ba7b810-9dad-11d1-80b4-00c04fd430c8"

	resp, body := call(t, srv, http.MethodPost, "/accounts", operator, map[string]string{"user_id": id})
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)

	uid, err := types.UserIDFromUUID(id)
	require.NoError(t, err)
	assert.Equal(t, uid.String(), body["user_id"])

	resp, _ = call(t, srv, http.MethodGet, "/accounts/"+id, "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestErrorStatuses(t *testing.T) {
	_, srv := newServer(t)
	path := "/accounts/" + alice.String()
	call(t, srv, http.MethodPost, "/accounts", operator, map[string]string{"user_id": alice.String()})

	tests := []struct {
		name   string
		method string
		path   string
		p      types.Principal
		body   any
		status int
		code   string
	}{
		{"missing principal", http.MethodPost, path + "/deposit", "", map[string]string{"amount": "1"}, http.StatusForbidden, "authorization"},
		{"wrong role", http.MethodPost, path + "/deposit", "0xstranger", map[string]string{"amount": "1"}, http.StatusForbidden, "authorization"},
		{"bad amount", http.MethodPost, path + "/deposit", operator, map[string]string{"amount": "-1"}, http.StatusBadRequest, "bad_request"},
		{"unknown field", http.MethodPost, path + "/deposit", operator, map[string]string{"amt": "1"}, http.StatusBadRequest, "bad_request"},
		{"zero amount", http.MethodPost, path + "/deposit", operator, map[string]string{"amount": "0"}, http.StatusBadRequest, "validation"},
		{"bad user id", http.MethodGet, "/accounts/nope", "", nil, http.StatusBadRequest, "bad_request"},
		{"unknown user", http.MethodGet, "/accounts/" + types.UserIDFromName("bob").String(), "", nil, http.StatusNotFound, "not_found"},
		{"duplicate", http.MethodPost, "/accounts", operator, map[string]string{"user_id": alice.String()}, http.StatusConflict, "conflict"},
		{"overdraft", http.MethodPost, path + "/withdraw", operator, map[string]string{"amount": "1"}, http.StatusUnprocessableEntity, "insufficient"},
		{"not paused", http.MethodPost, "/admin/unpause", owner, nil, http.StatusConflict, "lifecycle"},
		{"unknown role", http.MethodGet, "/admin/roles/ROOT", "", nil, http.StatusBadRequest, "validation"},
		{"unknown implementation", http.MethodPut, "/admin/implementation", owner, map[string]string{"version": "9.9.9"}, http.StatusNotFound, "not_found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := call(t, srv, tt.method, tt.path, tt.p, tt.body)
			assert.Equal(t, tt.status, resp.StatusCode, body)
			assert.Equal(t, tt.code, body["error"])
		})
	}
}

func TestAdminEndpoints(t *testing.T) {
	c, srv := newServer(t)

	resp, body := call(t, srv, http.MethodPost, "/admin/pause", owner, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Equal(t, true, body["paused"])

	resp, _ = call(t, srv, http.MethodPost, "/accounts/"+alice.String()+"/deposit", operator, map[string]string{"amount": "1"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, body = call(t, srv, http.MethodPost, "/admin/unpause", owner, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Equal(t, false, body["paused"])

	resp, body = call(t, srv, http.MethodPut, "/admin/demurrage", owner, map[string]any{
		"epoch_length": "24h", "free_epochs": 2, "numerator": 1, "denominator": 100,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	p := c.DemurrageParameters()
	assert.EqualValues(t, 2, p.FreeEpochs)
	assert.EqualValues(t, 100, p.Denominator)

	resp, body = call(t, srv, http.MethodPut, "/admin/fee", owner, map[string]any{
		"numerator": 2, "denominator": 100, "quantum": "0.01",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.EqualValues(t, 2, c.RedemptionFee().Numerator)

	resp, body = call(t, srv, http.MethodPut, "/admin/custodian", owner, map[string]string{"address": "0xvault"})
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Equal(t, "0xvault", body["custodian"])

	resp, body = call(t, srv, http.MethodPost, "/admin/reconcile", owner, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
}

func TestRoleEndpoints(t *testing.T) {
	c, srv := newServer(t)

	resp, body := call(t, srv, http.MethodPost, "/admin/roles/OPERATOR/members", owner, map[string]string{"principal": "0xnew"})
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.True(t, c.HasRole(rbac.Operator, "0xnew"))

	resp, body = call(t, srv, http.MethodPost, "/admin/roles/ADMIN/members", operator, map[string]string{"principal": "0xnew"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode, body)

	resp, body = call(t, srv, http.MethodDelete, "/admin/roles/OPERATOR/members/0xnew", owner, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.False(t, c.HasRole(rbac.Operator, "0xnew"))
}

func TestEventsEndpoint(t *testing.T) {
	_, srv := newServer(t)
	call(t, srv, http.MethodPost, "/accounts", operator, map[string]string{"user_id": alice.String()})
	call(t, srv, http.MethodPost, "/accounts/"+alice.String()+"/deposit", operator, map[string]string{"amount": "3"})

	resp, err := srv.Client().Get(srv.URL + "/events?kind=funds.deposited&user_id=" + alice.String())
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var evts []map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&evts))
	require.Len(t, evts, 1)
	assert.Equal(t, "funds.deposited", evts[0]["kind"])
}

func TestRateLimit(t *testing.T) {
	_, srv := newServer(t, api.WithRateLimit(0.001, 1))

	resp, _ := call(t, srv, http.MethodGet, "/health", operator, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := call(t, srv, http.MethodGet, "/health", operator, nil)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "rate_limited", body["error"])

	// Other principals have their own bucket.
	resp, _ = call(t, srv, http.MethodGet, "/health", owner, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRateLimiterEvictsIdleBuckets(t *testing.T) {
	rl := api.NewRateLimiter(0.001, 1)
	h := rl.Handler(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	hit := func() int {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, hit())
	assert.Equal(t, http.StatusTooManyRequests, hit())
	assert.Equal(t, 1, rl.Len())

	assert.Zero(t, rl.Cleanup(time.Hour), "recently used buckets are kept")
	assert.Equal(t, 1, rl.Cleanup(0))
	assert.Zero(t, rl.Len())

	assert.Equal(t, http.StatusOK, hit(), "an evicted caller starts with a fresh bucket")
}

func TestServerStartStopsWithContext(t *testing.T) {
	c, _ := newServer(t)
	s := api.New(c, api.WithRateLimit(10, 1))
	require.NotNil(t, s.RateLimiter())

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	cancel()

	assert.Nil(t, api.New(c).RateLimiter())
	api.New(c).Start(context.Background())
}
