package observability_test

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/custody/event"
	"github.com/xraph/custody/observability"
	"github.com/xraph/custody/plugin"
	"github.com/xraph/custody/types"
)

func TestMetricsExtensionCountsEvents(t *testing.T) {
	f := observability.NewPrometheusFactory(nil)
	m := observability.NewMetricsExtension(f)

	r := plugin.NewRegistry()
	require.NoError(t, r.Register(m))

	r.Emit(context.Background(), []*event.Event{
		{Kind: event.AccountCreated},
		{Kind: event.Deposit, Amount: types.Tokens(100)},
		{Kind: event.Withdrawal, Amount: types.Tokens(10)},
		{Kind: event.RedemptionFee, Amount: types.MustParseUnits("0.15")},
		{Kind: event.Transfer, Amount: types.Tokens(1)},
		{Kind: event.Transfer, Amount: types.MustParseUnits("0.5"), Metadata: map[string]string{"round_up": "true"}},
		{Kind: event.AuthorizationCreated},
		{Kind: event.Paused},
	})

	value := func(c observability.Counter) float64 {
		return testutil.ToFloat64(c.(prometheus.Collector))
	}
	assert.Equal(t, 1.0, value(m.AccountsCreated))
	assert.Equal(t, 1.0, value(m.Deposits))
	assert.Equal(t, 1.0, value(m.Withdrawals))
	assert.Equal(t, 1.0, value(m.FeesCharged), "fee paired with its withdrawal")
	assert.Equal(t, 1.0, value(m.Transfers))
	assert.Equal(t, 1.0, value(m.RoundUps))
	assert.Equal(t, 1.0, value(m.HoldsPlaced))
	assert.Equal(t, 0.0, value(m.HoldsReleased))
	assert.Equal(t, 1.0, value(m.PauseChanges))

	n, err := testutil.GatherAndCount(f.Registry(), "custody_deposit_amount")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestPrometheusFactoryReusesCollectors(t *testing.T) {
	f := observability.NewPrometheusFactory(nil)
	a := f.Counter("custody.x")
	b := f.Counter("custody.x")
	a.Inc()
	b.Inc()
	assert.Equal(t, 2.0, testutil.ToFloat64(a.(prometheus.Collector)))
}
