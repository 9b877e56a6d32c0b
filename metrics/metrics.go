// Package metrics defines the instrumentation contract for the paywall
// and a Prometheus-backed recorder.
package metrics

import "time"

type Recorder interface {
	IncOutcome(code string)
	ObserveLatency(operation string, duration time.Duration)
}
