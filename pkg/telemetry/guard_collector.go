package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/wraithscan/wraithscan/pkg/guard"
)

// guardCollector turns guard snapshots into metrics at scrape time, so
// the breaker and limiter hot paths never touch a metrics registry.
type guardCollector struct {
	guard *guard.Guard

	breakerState      *prometheus.Desc
	breakerCalls      *prometheus.Desc
	breakerFailures   *prometheus.Desc
	breakerRejections *prometheus.Desc
	breakerOpens      *prometheus.Desc

	limiterAllowed    *prometheus.Desc
	limiterRejected   *prometheus.Desc
	limiterCap        *prometheus.Desc
	limiterWindow     *prometheus.Desc
	limiterTokens     *prometheus.Desc
	limiterMultiplier *prometheus.Desc
	limiterBackoffs   *prometheus.Desc

	retryAttempts   *prometheus.Desc
	retryRetries    *prometheus.Desc
	retryRecoveries *prometheus.Desc
	retryExhausted  *prometheus.Desc
}

func newGuardCollector(g *guard.Guard) *guardCollector {
	service := []string{"service"}
	return &guardCollector{
		guard: g,

		breakerState: prometheus.NewDesc("wraithscan_breaker_state",
			"Circuit state: 0 closed, 1 open, 2 half-open", service, nil),
		breakerCalls: prometheus.NewDesc("wraithscan_breaker_calls_total",
			"Calls admitted by the circuit", service, nil),
		breakerFailures: prometheus.NewDesc("wraithscan_breaker_failures_total",
			"Admitted calls that failed", service, nil),
		breakerRejections: prometheus.NewDesc("wraithscan_breaker_rejections_total",
			"Calls rejected without running", []string{"service", "reason"}, nil),
		breakerOpens: prometheus.NewDesc("wraithscan_breaker_opens_total",
			"Times the circuit tripped open", service, nil),

		limiterAllowed: prometheus.NewDesc("wraithscan_limiter_allowed_total",
			"Requests admitted by the rate limiter", service, nil),
		limiterRejected: prometheus.NewDesc("wraithscan_limiter_rejected_total",
			"Requests rejected by the rate limiter", service, nil),
		limiterCap: prometheus.NewDesc("wraithscan_limiter_effective_cap",
			"Window capacity after adaptive scaling", service, nil),
		limiterWindow: prometheus.NewDesc("wraithscan_limiter_window_requests",
			"Requests currently inside the sliding window", service, nil),
		limiterTokens: prometheus.NewDesc("wraithscan_limiter_tokens",
			"Tokens left in the bucket", service, nil),
		limiterMultiplier: prometheus.NewDesc("wraithscan_limiter_multiplier",
			"Adaptive scale applied to the window cap", service, nil),
		limiterBackoffs: prometheus.NewDesc("wraithscan_limiter_backoffs_total",
			"Backoff periods triggered by failure streaks", service, nil),

		retryAttempts: prometheus.NewDesc("wraithscan_retry_attempts_total",
			"Operation invocations through the retry controller", nil, nil),
		retryRetries: prometheus.NewDesc("wraithscan_retry_retries_total",
			"Attempts that were retried", nil, nil),
		retryRecoveries: prometheus.NewDesc("wraithscan_retry_recoveries_total",
			"Operations that succeeded after at least one retry", nil, nil),
		retryExhausted: prometheus.NewDesc("wraithscan_retry_exhausted_total",
			"Operations that ran out of attempts", nil, nil),
	}
}

func (c *guardCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.breakerState
	ch <- c.breakerCalls
	ch <- c.breakerFailures
	ch <- c.breakerRejections
	ch <- c.breakerOpens
	ch <- c.limiterAllowed
	ch <- c.limiterRejected
	ch <- c.limiterCap
	ch <- c.limiterWindow
	ch <- c.limiterTokens
	ch <- c.limiterMultiplier
	ch <- c.limiterBackoffs
	ch <- c.retryAttempts
	ch <- c.retryRetries
	ch <- c.retryRecoveries
	ch <- c.retryExhausted
}

func (c *guardCollector) Collect(ch chan<- prometheus.Metric) {
	snap := c.guard.Snapshot()

	for _, b := range snap.Breakers {
		ch <- prometheus.MustNewConstMetric(c.breakerState,
			prometheus.GaugeValue, float64(b.State), b.Name)
		ch <- prometheus.MustNewConstMetric(c.breakerCalls,
			prometheus.CounterValue, float64(b.Calls), b.Name)
		ch <- prometheus.MustNewConstMetric(c.breakerFailures,
			prometheus.CounterValue, float64(b.Failed), b.Name)
		ch <- prometheus.MustNewConstMetric(c.breakerRejections,
			prometheus.CounterValue, float64(b.RejectedOpen), b.Name, "open")
		ch <- prometheus.MustNewConstMetric(c.breakerRejections,
			prometheus.CounterValue, float64(b.RejectedThrottled), b.Name, "throttled")
		ch <- prometheus.MustNewConstMetric(c.breakerOpens,
			prometheus.CounterValue, float64(b.TimesOpened), b.Name)
	}

	for _, l := range snap.Limiters {
		ch <- prometheus.MustNewConstMetric(c.limiterAllowed,
			prometheus.CounterValue, float64(l.Allowed), l.Name)
		ch <- prometheus.MustNewConstMetric(c.limiterRejected,
			prometheus.CounterValue, float64(l.Rejected), l.Name)
		ch <- prometheus.MustNewConstMetric(c.limiterCap,
			prometheus.GaugeValue, float64(l.EffectiveCap), l.Name)
		ch <- prometheus.MustNewConstMetric(c.limiterWindow,
			prometheus.GaugeValue, float64(l.WindowCount), l.Name)
		ch <- prometheus.MustNewConstMetric(c.limiterTokens,
			prometheus.GaugeValue, l.Tokens, l.Name)
		ch <- prometheus.MustNewConstMetric(c.limiterMultiplier,
			prometheus.GaugeValue, l.AdaptiveMultiplier, l.Name)
		ch <- prometheus.MustNewConstMetric(c.limiterBackoffs,
			prometheus.CounterValue, float64(l.BackoffsTriggered), l.Name)
	}

	ch <- prometheus.MustNewConstMetric(c.retryAttempts,
		prometheus.CounterValue, float64(snap.Retry.Attempts))
	ch <- prometheus.MustNewConstMetric(c.retryRetries,
		prometheus.CounterValue, float64(snap.Retry.Retries))
	ch <- prometheus.MustNewConstMetric(c.retryRecoveries,
		prometheus.CounterValue, float64(snap.Retry.Recoveries))
	ch <- prometheus.MustNewConstMetric(c.retryExhausted,
		prometheus.CounterValue, float64(snap.Retry.Exhausted))
}
