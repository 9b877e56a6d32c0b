package paywall

import (
	"github.com/sighash/paywall/logger"
	"github.com/sighash/paywall/metrics"
)

type Option func(*Paywall)

// WithLogger replaces the no-op logger.
func WithLogger(l logger.Logger) Option {
	return func(p *Paywall) {
		p.log = l
	}
}

// WithMetrics replaces the no-op recorder.
func WithMetrics(r metrics.Recorder) Option {
	return func(p *Paywall) {
		p.rec = r
	}
}

// WithVersion overrides the protocol version advertised in challenge
// responses. Deployments normally keep the default.
func WithVersion(version string) Option {
	return func(p *Paywall) {
		p.version = version
	}
}

// WithDescription overrides the human-readable description written in
// the 402 challenge body.
func WithDescription(description string) Option {
	return func(p *Paywall) {
		p.description = description
	}
}
