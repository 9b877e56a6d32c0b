// Package memory provides an in-process wallet.Service with a
// single-use nonce store. It backs tests, examples, and deployments
// that run a single instance; multi-instance deployments need a wallet
// whose nonce verification works across processes.
package memory

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"sync"
	"time"

	"github.com/sighash/paywall/types"
	"github.com/sighash/paywall/wallet"
)

// DefaultNonceTTL bounds how long an unconsumed nonce stays valid.
// Retention is explicit: entries past the TTL verify as false and are
// dropped.
const DefaultNonceTTL = 10 * time.Minute

const nonceBytes = 32

// Wallet is an in-memory wallet.Service.
type Wallet struct {
	mu     sync.Mutex
	nonces map[string]time.Time

	ttl time.Duration
	now func() time.Time
}

// Option configures a Wallet.
type Option func(*Wallet)

// WithNonceTTL overrides DefaultNonceTTL.
func WithNonceTTL(ttl time.Duration) Option {
	return func(w *Wallet) {
		w.ttl = ttl
	}
}

// WithClock overrides the time source. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(w *Wallet) {
		w.now = now
	}
}

// New creates an empty in-memory wallet.
func New(opts ...Option) *Wallet {
	w := &Wallet{
		nonces: make(map[string]time.Time),
		ttl:    DefaultNonceTTL,
		now:    time.Now,
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// CreateNonce mints a 256-bit random derivation prefix and records it
// as issued.
func (w *Wallet) CreateNonce(ctx context.Context) (string, error) {
	buf := make([]byte, nonceBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	prefix := base64.RawURLEncoding.EncodeToString(buf)

	w.mu.Lock()
	w.nonces[prefix] = w.now().Add(w.ttl)
	w.mu.Unlock()

	return prefix, nil
}

// VerifyNonce consumes prefix on success. Unknown, expired, or already
// consumed prefixes verify as false. Two racing calls for the same
// prefix see at most one true result.
func (w *Wallet) VerifyNonce(ctx context.Context, prefix string) (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	expiry, ok := w.nonces[prefix]
	if !ok {
		return false, nil
	}

	delete(w.nonces, prefix)

	if w.now().After(expiry) {
		return false, nil
	}

	return true, nil
}

// Internalize validates the settlement request and accepts it. The
// in-memory wallet performs no chain interaction.
func (w *Wallet) Internalize(ctx context.Context, args wallet.InternalizeArgs) (*wallet.InternalizeResult, error) {
	if len(args.Tx) == 0 {
		return nil, &wallet.Error{
			Code:    types.ErrCodePaymentFailed,
			Message: "empty transaction",
		}
	}

	if len(args.Outputs) != 1 {
		return nil, &wallet.Error{
			Code:    types.ErrCodePaymentFailed,
			Message: fmt.Sprintf("expected exactly one payment output, got %d", len(args.Outputs)),
		}
	}

	out := args.Outputs[0]
	if out.Remittance.DerivationPrefix == "" || out.Remittance.SenderIdentityKey == "" {
		return nil, &wallet.Error{
			Code:    types.ErrCodePaymentFailed,
			Message: "incomplete payment remittance",
		}
	}

	return &wallet.InternalizeResult{Accepted: true}, nil
}

// Prune drops expired nonces. Long-lived processes can call it
// periodically; verification does not depend on it.
func (w *Wallet) Prune() int {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	dropped := 0

	for prefix, expiry := range w.nonces {
		if now.After(expiry) {
			delete(w.nonces, prefix)
			dropped++
		}
	}

	return dropped
}
