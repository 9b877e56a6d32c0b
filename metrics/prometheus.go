package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder exports paywall outcome counters and wallet-call
// latencies.
type PrometheusRecorder struct {
	outcomes  *prometheus.CounterVec
	histogram *prometheus.HistogramVec
}

// NewPrometheusRecorder registers the paywall collectors on reg. A nil
// reg uses the default registerer.
func NewPrometheusRecorder(reg prometheus.Registerer) Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	outcomes := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "paywall",
			Name:      "outcomes_total",
			Help:      "Terminal paywall outcomes by error code",
		},
		[]string{"code"},
	)

	histogram := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "paywall",
			Name:      "latency_seconds",
			Help:      "Latency of pricing and wallet calls",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	reg.MustRegister(outcomes, histogram)

	return &PrometheusRecorder{
		outcomes:  outcomes,
		histogram: histogram,
	}
}

func (p *PrometheusRecorder) IncOutcome(code string) {
	p.outcomes.With(prometheus.Labels{
		"code": code,
	}).Inc()
}

func (p *PrometheusRecorder) ObserveLatency(operation string, d time.Duration) {
	p.histogram.With(prometheus.Labels{
		"operation": operation,
	}).Observe(d.Seconds())
}
