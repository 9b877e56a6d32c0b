package metrics

import "time"

// NoopRecorder is the default when no recorder is configured.
type NoopRecorder struct{}

func (NoopRecorder) IncOutcome(string)                    {}
func (NoopRecorder) ObserveLatency(string, time.Duration) {}
