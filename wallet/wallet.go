// Package wallet defines the narrow interface the paywall middleware
// uses to mint payment nonces, verify them, and internalize payment
// transactions. Implementations wrap an actual BSV wallet; the
// in-memory implementation under wallet/memory serves tests and
// single-process deployments.
package wallet

import "context"

// Service is the wallet collaborator consumed by the middleware.
// Implementations must be safe for concurrent use.
type Service interface {
	// CreateNonce mints a fresh single-use derivation prefix. Each call
	// returns a value never handed out before.
	CreateNonce(ctx context.Context) (string, error)

	// VerifyNonce reports whether prefix was minted by this wallet (or an
	// equivalent trusted issuer) and has not been consumed. A true result
	// consumes the nonce: a second verification of the same prefix must
	// fail, even when the two calls race.
	VerifyNonce(ctx context.Context, prefix string) (bool, error)

	// Internalize durably applies the payment output of the submitted
	// transaction. It is a single authoritative attempt; callers must not
	// retry on failure.
	Internalize(ctx context.Context, args InternalizeArgs) (*InternalizeResult, error)
}

// InternalizeArgs names the transaction and the payment output the
// wallet should take ownership of.
type InternalizeArgs struct {
	// Tx is the atomic transaction envelope, opaque to the middleware.
	Tx []byte

	// Outputs lists the outputs to internalize. The paywall always sends
	// exactly one, at index 0.
	Outputs []OutputDescriptor

	// Description is a human-readable label for the wallet's records.
	Description string
}

// OutputDescriptor tags one transaction output as a wallet payment.
type OutputDescriptor struct {
	OutputIndex int
	Protocol    string
	Remittance  PaymentRemittance
}

// PaymentRemittance carries the key-derivation data binding the output
// to the paying identity.
type PaymentRemittance struct {
	DerivationPrefix  string
	DerivationSuffix  string
	SenderIdentityKey string
}

// InternalizeResult is the wallet's verdict on an internalize call.
type InternalizeResult struct {
	Accepted bool
}

// Error is a coded wallet failure. The middleware surfaces Code to the
// client and keeps Message server-side.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}
