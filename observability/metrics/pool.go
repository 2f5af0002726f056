package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// PoolMetrics aggregates the instrumentation for the staking-pool ledger.
type PoolMetrics struct {
	deposits       *prometheus.CounterVec
	withdrawals    *prometheus.CounterVec
	borrows        *prometheus.CounterVec
	repays         *prometheus.CounterVec
	rewardsPaid    *prometheus.CounterVec
	rejections     *prometheus.CounterVec
	outboxFailures *prometheus.CounterVec
	outboxDropped  prometheus.Counter
	outboxDepth    prometheus.Gauge
}

var (
	poolOnce     sync.Once
	poolRegistry *PoolMetrics
)

// Pool returns the process-wide pool metrics registry.
func Pool() *PoolMetrics {
	poolOnce.Do(func() {
		poolRegistry = &PoolMetrics{
			deposits: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "pool_deposits_total",
				Help: "Count of accepted stake deposits by pool.",
			}, []string{"pool"}),
			withdrawals: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "pool_withdrawals_total",
				Help: "Count of withdrawals by pool and path (normal or emergency).",
			}, []string{"pool", "path"}),
			borrows: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "pool_borrows_total",
				Help: "Count of accepted borrows by pool.",
			}, []string{"pool"}),
			repays: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "pool_repays_total",
				Help: "Count of accepted repayments by pool.",
			}, []string{"pool"}),
			rewardsPaid: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "pool_rewards_paid_total",
				Help: "Count of reward settlements by pool.",
			}, []string{"pool"}),
			rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "pool_rejections_total",
				Help: "Count of rejected operations by method.",
			}, []string{"method"}),
			outboxFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "pool_token_outbox_failures_total",
				Help: "Count of failed fire-and-forget token-ledger requests by op.",
			}, []string{"op"}),
			outboxDropped: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "pool_token_outbox_dropped_total",
				Help: "Count of token-ledger requests dropped before send.",
			}),
			outboxDepth: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "pool_token_outbox_depth",
				Help: "Current depth of the token-ledger request queue.",
			}),
		}
		prometheus.MustRegister(
			poolRegistry.deposits,
			poolRegistry.withdrawals,
			poolRegistry.borrows,
			poolRegistry.repays,
			poolRegistry.rewardsPaid,
			poolRegistry.rejections,
			poolRegistry.outboxFailures,
			poolRegistry.outboxDropped,
			poolRegistry.outboxDepth,
		)
	})
	return poolRegistry
}

func (m *PoolMetrics) Deposit(pool string)            { m.deposits.WithLabelValues(pool).Inc() }
func (m *PoolMetrics) Withdrawal(pool, path string)   { m.withdrawals.WithLabelValues(pool, path).Inc() }
func (m *PoolMetrics) Borrow(pool string)             { m.borrows.WithLabelValues(pool).Inc() }
func (m *PoolMetrics) Repay(pool string)              { m.repays.WithLabelValues(pool).Inc() }
func (m *PoolMetrics) RewardsPaid(pool string)        { m.rewardsPaid.WithLabelValues(pool).Inc() }
func (m *PoolMetrics) Rejected(method string)         { m.rejections.WithLabelValues(method).Inc() }
func (m *PoolMetrics) OutboxFailed(op string)         { m.outboxFailures.WithLabelValues(op).Inc() }
func (m *PoolMetrics) OutboxDropped()                 { m.outboxDropped.Inc() }
func (m *PoolMetrics) OutboxDepth(depth int)          { m.outboxDepth.Set(float64(depth)) }
