package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestStakingMetricsRecordOperations(t *testing.T) {
	m := Staking()
	require.Same(t, m, Staking())

	before := testutil.ToFloat64(m.operations.WithLabelValues("stake", "ok"))
	m.ObserveOperation("stake", "", 5*time.Millisecond)
	m.ObserveOperation("stake", "ok", time.Millisecond)
	require.Equal(t, before+2, testutil.ToFloat64(m.operations.WithLabelValues("stake", "ok")))

	rejected := testutil.ToFloat64(m.operations.WithLabelValues("claim", "tier_not_yet_reached"))
	m.ObserveOperation("claim", "tier_not_yet_reached", time.Millisecond)
	require.Equal(t, rejected+1, testutil.ToFloat64(m.operations.WithLabelValues("claim", "tier_not_yet_reached")))
}

func TestStakingMetricsGaugesAndClaims(t *testing.T) {
	m := Staking()
	m.SetPoolTotal(1500)
	require.Equal(t, float64(1500), testutil.ToFloat64(m.poolTotal))
	m.SetParticipants(2)
	require.Equal(t, float64(2), testutil.ToFloat64(m.participants))

	m.InitTiers(3)
	before := testutil.ToFloat64(m.claims.WithLabelValues("3"))
	m.ObserveClaim(3)
	require.Equal(t, before+1, testutil.ToFloat64(m.claims.WithLabelValues("3")))
}

func TestStakingMetricsNilSafe(t *testing.T) {
	var m *StakingMetrics
	m.ObserveOperation("stake", "ok", time.Second)
	m.SetPoolTotal(1)
	m.SetParticipants(1)
	m.ObserveClaim(1)
	m.InitTiers(3)
}
