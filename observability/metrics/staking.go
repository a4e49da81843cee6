package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type StakingMetrics struct {
	operations   *prometheus.CounterVec
	latency      *prometheus.HistogramVec
	poolTotal    prometheus.Gauge
	participants prometheus.Gauge
	claims       *prometheus.CounterVec
}

var (
	stakingOnce     sync.Once
	stakingRegistry *StakingMetrics
)

// Staking returns the lazily-registered staking pool collectors.
func Staking() *StakingMetrics {
	stakingOnce.Do(func() {
		stakingRegistry = &StakingMetrics{
			operations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "stakebadge",
				Subsystem: "pool",
				Name:      "operations_total",
				Help:      "Count of pool operations segmented by operation and outcome.",
			}, []string{"op", "outcome"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "stakebadge",
				Subsystem: "pool",
				Name:      "operation_duration_seconds",
				Help:      "Latency distribution for pool operations including commit.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"op"}),
			poolTotal: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "stakebadge",
				Subsystem: "pool",
				Name:      "total_staked",
				Help:      "Amount currently held by the pool.",
			}),
			participants: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "stakebadge",
				Subsystem: "pool",
				Name:      "participants",
				Help:      "Number of addresses that have ever deposited.",
			}),
			claims: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "stakebadge",
				Subsystem: "badge",
				Name:      "claims_total",
				Help:      "Successful reward claims by the tier reached.",
			}, []string{"tier"}),
		}
		prometheus.MustRegister(
			stakingRegistry.operations,
			stakingRegistry.latency,
			stakingRegistry.poolTotal,
			stakingRegistry.participants,
			stakingRegistry.claims,
		)
	})
	return stakingRegistry
}

func (m *StakingMetrics) ObserveOperation(op, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	if op == "" {
		op = "unknown"
	}
	if outcome == "" {
		outcome = "ok"
	}
	m.operations.WithLabelValues(op, outcome).Inc()
	m.latency.WithLabelValues(op).Observe(elapsed.Seconds())
}

func (m *StakingMetrics) SetPoolTotal(amount float64) {
	if m == nil {
		return
	}
	m.poolTotal.Set(amount)
}

func (m *StakingMetrics) SetParticipants(count int) {
	if m == nil {
		return
	}
	m.participants.Set(float64(count))
}

func (m *StakingMetrics) ObserveClaim(tier uint8) {
	if m == nil {
		return
	}
	m.claims.WithLabelValues(strconv.FormatUint(uint64(tier), 10)).Inc()
}

// InitTiers pre-creates the claim series so dashboards see zeroes before the
// first claim.
func (m *StakingMetrics) InitTiers(maxTier uint8) {
	if m == nil {
		return
	}
	for tier := uint8(1); tier <= maxTier; tier++ {
		m.claims.WithLabelValues(strconv.FormatUint(uint64(tier), 10)).Add(0)
	}
}
