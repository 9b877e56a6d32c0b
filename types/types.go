package types

import "fmt"

// PaymentVersion is the version of the payment protocol spoken over the
// X-BSV-Payment-* headers.
const PaymentVersion = "1.0"

// PaymentProtocol is the protocol label attached to the internalized
// payment output.
const PaymentProtocol = "wallet payment"

// HTTP header names used by the payment protocol.
const (
	// HeaderPayment carries the client's payment submission.
	HeaderPayment = "X-BSV-Payment"

	// HeaderVersion carries the payment protocol version.
	HeaderVersion = "X-BSV-Payment-Version"

	// HeaderSatoshisRequired carries the price of the current request.
	HeaderSatoshisRequired = "X-BSV-Payment-Satoshis-Required"

	// HeaderSatoshisPaid carries the amount that was paid.
	HeaderSatoshisPaid = "X-BSV-Payment-Satoshis-Paid"

	// HeaderDerivationPrefix carries the server-minted derivation prefix.
	HeaderDerivationPrefix = "X-BSV-Payment-Derivation-Prefix"
)

// Error codes emitted in the error envelope.
const (
	// ErrCodeServerMisconfigured indicates the middleware stack is wired
	// incorrectly (no authenticated identity on the request).
	ErrCodeServerMisconfigured = "ERR_SERVER_MISCONFIGURED"

	// ErrCodePaymentInternal indicates an internal payment processing error.
	ErrCodePaymentInternal = "ERR_PAYMENT_INTERNAL"

	// ErrCodePaymentRequired indicates payment is needed for the resource.
	ErrCodePaymentRequired = "ERR_PAYMENT_REQUIRED"

	// ErrCodeMalformedPayment indicates the payment header could not be parsed.
	ErrCodeMalformedPayment = "ERR_MALFORMED_PAYMENT"

	// ErrCodeInvalidPrefix indicates a missing, unknown or already consumed
	// derivation prefix.
	ErrCodeInvalidPrefix = "ERR_INVALID_DERIVATION_PREFIX"

	// ErrCodePaymentFailed indicates the wallet rejected the transaction.
	ErrCodePaymentFailed = "ERR_PAYMENT_FAILED"

	// ErrCodePaymentNotFound indicates a payment identifier was not found.
	ErrCodePaymentNotFound = "ERR_PAYMENT_NOT_FOUND"
)

// Payment is the client's payment submission, decoded from the
// X-BSV-Payment request header. Transaction is the raw atomic
// transaction envelope; on the wire it is base64 inside the JSON object.
type Payment struct {
	// ModeID identifies the payment mode, if the client sends one.
	ModeID string `json:"modeId,omitempty"`

	// DerivationPrefix must echo a prefix previously minted by the wallet.
	DerivationPrefix string `json:"derivationPrefix"`

	// DerivationSuffix is chosen by the payer and completes the
	// derivation path of the payment output.
	DerivationSuffix string `json:"derivationSuffix"`

	// Transaction is the payment transaction, opaque to the middleware.
	Transaction []byte `json:"transaction"`
}

// Validate checks that the submission carries every required field.
func (p *Payment) Validate() error {
	if p.DerivationPrefix == "" {
		return fmt.Errorf("payment.derivationPrefix is required")
	}

	if p.DerivationSuffix == "" {
		return fmt.Errorf("payment.derivationSuffix is required")
	}

	if len(p.Transaction) == 0 {
		return fmt.Errorf("payment.transaction is required")
	}

	return nil
}

// PaymentTerms describes what a client must pay to access a resource.
// Terms are only ever issued for a positive price.
type PaymentTerms struct {
	// Version of the payment protocol.
	Version string `json:"version"`

	// SatoshisRequired is the price of the request in satoshis.
	SatoshisRequired int `json:"satoshisRequired"`

	// DerivationPrefix is a freshly minted single-use nonce binding a
	// later submission to this challenge.
	DerivationPrefix string `json:"derivationPrefix"`
}

// PaymentInfo is the settled outcome of a payment, attached to the
// request context before the protected handler runs.
type PaymentInfo struct {
	// Accepted reports whether the wallet durably applied the payment.
	Accepted bool `json:"accepted"`

	// SatoshisPaid is the price resolved for the request. Zero when no
	// payment was required.
	SatoshisPaid int `json:"satoshisPaid"`

	// Tx holds the original transaction bytes, carried forward
	// unmodified for downstream auditing.
	Tx []byte `json:"tx,omitempty"`
}

// ErrorResponse is the JSON envelope of every non-2xx response.
type ErrorResponse struct {
	Status      string `json:"status"`
	Code        string `json:"code"`
	Description string `json:"description"`

	// SatoshisRequired is set on ERR_PAYMENT_REQUIRED responses.
	SatoshisRequired int `json:"satoshisRequired,omitempty"`
}

// NewErrorResponse builds the standard error envelope.
func NewErrorResponse(code, description string) *ErrorResponse {
	return &ErrorResponse{
		Status:      "error",
		Code:        code,
		Description: description,
	}
}

// PaywallError is a coded error used for construction and internal
// failures.
type PaywallError struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func (e PaywallError) Error() string {
	return e.Message
}
