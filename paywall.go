// Package paywall gates HTTP handlers behind a per-request
// micropayment settled over the X-BSV-Payment headers. Authentication
// runs upstream and supplies the payer's identity key; the paywall
// prices the request, issues a 402 challenge when no payment is
// attached, validates a submitted payment against the challenge nonce,
// and internalizes the funds through the wallet before the protected
// handler runs.
package paywall

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/sighash/paywall/auth"
	"github.com/sighash/paywall/logger"
	"github.com/sighash/paywall/metrics"
	"github.com/sighash/paywall/pricing"
	"github.com/sighash/paywall/types"
	"github.com/sighash/paywall/wallet"
)

// Config carries the two required collaborators. Both must be set;
// New fails otherwise.
type Config struct {
	// Wallet mints and verifies derivation-prefix nonces and
	// internalizes payment transactions.
	Wallet wallet.Service `validate:"required"`

	// CalculateRequestPrice resolves the satoshi price of a request.
	// Returning 0 lets the request through without payment.
	CalculateRequestPrice pricing.Func `validate:"required"`
}

// Paywall is the payment-enforcement middleware.
type Paywall struct {
	config      Config
	version     string
	description string

	log logger.Logger
	rec metrics.Recorder
}

var validate = validator.New()

// New validates the configuration and builds a Paywall. Options
// configure the ambient pieces; the wallet and pricing function have no
// defaults.
func New(config Config, opts ...Option) (*Paywall, error) {
	if err := validate.Struct(config); err != nil {
		return nil, &types.PaywallError{
			Code:    types.ErrCodeServerMisconfigured,
			Message: fmt.Sprintf("invalid paywall config: %v", err),
		}
	}

	p := &Paywall{
		config:      config,
		version:     types.PaymentVersion,
		description: "A BSV payment is required to complete this request.",
		log:         logger.NoopLogger{},
		rec:         metrics.NoopRecorder{},
	}

	for _, opt := range opts {
		opt(p)
	}

	return p, nil
}

type contextKey string

const paymentKey = contextKey("paywall_payment")

// PaymentFromContext extracts the settled payment attached by the
// middleware, or nil if the paywall did not run.
func PaymentFromContext(ctx context.Context) *types.PaymentInfo {
	info, _ := ctx.Value(paymentKey).(*types.PaymentInfo)
	return info
}

// Handler wraps next with payment enforcement. Each request flows
// through at most one terminal outcome: a zero-price pass, a 402
// challenge, a 4xx/5xx error, or a settled pass to next.
func (p *Paywall) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity := auth.IdentityFromContext(r.Context())
		if identity == "" {
			p.log.Error("no authenticated identity on request", map[string]any{
				"path": r.URL.Path,
			})
			p.fail(w, http.StatusInternalServerError, types.ErrCodeServerMisconfigured,
				"The payment middleware must run after the authentication middleware.")
			return
		}

		price, err := p.resolvePrice(r)
		if err != nil {
			p.log.Error("price resolution failed", map[string]any{
				"path":  r.URL.Path,
				"error": err.Error(),
			})
			p.fail(w, http.StatusInternalServerError, types.ErrCodePaymentInternal,
				"An internal error occurred while determining the request price.")
			return
		}

		if price == 0 {
			p.proceed(w, r, next, &types.PaymentInfo{SatoshisPaid: 0})
			return
		}

		header := r.Header.Get(types.HeaderPayment)
		if header == "" {
			p.issueChallenge(w, r, price)
			return
		}

		payment, ok := p.parseSubmission(w, header)
		if !ok {
			return
		}

		if !p.verifyPrefix(w, r, payment.DerivationPrefix) {
			return
		}

		info, ok := p.settle(w, r, identity, price, payment)
		if !ok {
			return
		}

		w.Header().Set(types.HeaderSatoshisPaid, strconv.Itoa(price))
		p.proceed(w, r, next, info)
	})
}

// resolvePrice calls the injected pricing function and enforces the
// non-negative contract.
func (p *Paywall) resolvePrice(r *http.Request) (int, error) {
	start := time.Now()
	price, err := p.config.CalculateRequestPrice(r)
	p.rec.ObserveLatency("calculate_price", time.Since(start))

	if err != nil {
		return 0, err
	}

	if price < 0 {
		return 0, fmt.Errorf("pricing function returned negative price %d", price)
	}

	return price, nil
}

// issueChallenge mints a fresh derivation prefix and terminates the
// request with 402 and the payment terms.
func (p *Paywall) issueChallenge(w http.ResponseWriter, r *http.Request, price int) {
	start := time.Now()
	prefix, err := p.config.Wallet.CreateNonce(r.Context())
	p.rec.ObserveLatency("create_nonce", time.Since(start))

	if err != nil {
		p.log.Error("nonce creation failed", map[string]any{
			"path":  r.URL.Path,
			"error": err.Error(),
		})
		p.fail(w, http.StatusInternalServerError, types.ErrCodePaymentInternal,
			"An internal error occurred while issuing the payment terms.")
		return
	}

	terms := types.PaymentTerms{
		Version:          p.version,
		SatoshisRequired: price,
		DerivationPrefix: prefix,
	}

	p.log.Info("payment required", map[string]any{
		"path":     r.URL.Path,
		"satoshis": price,
	})
	p.rec.IncOutcome(types.ErrCodePaymentRequired)

	body := types.NewErrorResponse(types.ErrCodePaymentRequired, p.description)
	body.SatoshisRequired = terms.SatoshisRequired

	w.Header().Set(types.HeaderVersion, terms.Version)
	w.Header().Set(types.HeaderSatoshisRequired, strconv.Itoa(terms.SatoshisRequired))
	w.Header().Set(types.HeaderDerivationPrefix, terms.DerivationPrefix)
	writeJSON(w, http.StatusPaymentRequired, body)
}

// parseSubmission decodes and shape-checks the payment header. False
// means the request was already terminated.
func (p *Paywall) parseSubmission(w http.ResponseWriter, header string) (*types.Payment, bool) {
	var payment types.Payment
	if err := json.Unmarshal([]byte(header), &payment); err != nil {
		p.log.Warn("unparseable payment header", map[string]any{
			"error": err.Error(),
		})
		p.fail(w, http.StatusBadRequest, types.ErrCodeMalformedPayment,
			"The X-BSV-Payment header is not valid JSON.")
		return nil, false
	}

	if err := payment.Validate(); err != nil {
		p.log.Warn("incomplete payment header", map[string]any{
			"error": err.Error(),
		})
		p.fail(w, http.StatusBadRequest, types.ErrCodeMalformedPayment,
			"The X-BSV-Payment header is missing required fields.")
		return nil, false
	}

	return &payment, true
}

// verifyPrefix asks the wallet whether the submitted prefix was issued
// and is still unconsumed. Verification failures of any kind collapse
// into one client-facing code; the wallet's reason stays in the log.
func (p *Paywall) verifyPrefix(w http.ResponseWriter, r *http.Request, prefix string) bool {
	start := time.Now()
	valid, err := p.config.Wallet.VerifyNonce(r.Context(), prefix)
	p.rec.ObserveLatency("verify_nonce", time.Since(start))

	if err != nil || !valid {
		fields := map[string]any{"path": r.URL.Path}
		if err != nil {
			fields["error"] = err.Error()
		}
		p.log.Warn("derivation prefix rejected", fields)
		p.fail(w, http.StatusBadRequest, types.ErrCodeInvalidPrefix,
			"The derivation prefix was not issued by this server or has already been used.")
		return false
	}

	return true
}

// settle hands the transaction to the wallet for internalization. One
// authoritative attempt; on failure the caller must restart from a
// fresh challenge.
func (p *Paywall) settle(w http.ResponseWriter, r *http.Request, identity string, price int, payment *types.Payment) (*types.PaymentInfo, bool) {
	args := wallet.InternalizeArgs{
		Tx: payment.Transaction,
		Outputs: []wallet.OutputDescriptor{{
			OutputIndex: 0,
			Protocol:    types.PaymentProtocol,
			Remittance: wallet.PaymentRemittance{
				DerivationPrefix:  payment.DerivationPrefix,
				DerivationSuffix:  payment.DerivationSuffix,
				SenderIdentityKey: identity,
			},
		}},
		Description: fmt.Sprintf("Payment for request to %s", r.URL.Path),
	}

	start := time.Now()
	result, err := p.config.Wallet.Internalize(r.Context(), args)
	p.rec.ObserveLatency("internalize", time.Since(start))

	if err != nil {
		code := types.ErrCodePaymentFailed
		var werr *wallet.Error
		if errors.As(err, &werr) && werr.Code != "" {
			code = werr.Code
		}

		p.log.Warn("payment internalization failed", map[string]any{
			"path":  r.URL.Path,
			"code":  code,
			"error": err.Error(),
		})
		p.fail(w, http.StatusBadRequest, code,
			"The payment transaction could not be applied.")
		return nil, false
	}

	p.log.Info("payment settled", map[string]any{
		"path":     r.URL.Path,
		"satoshis": price,
		"accepted": result.Accepted,
	})

	return &types.PaymentInfo{
		Accepted:     result.Accepted,
		SatoshisPaid: price,
		Tx:           payment.Transaction,
	}, true
}

// proceed attaches the payment outcome to the context and hands off to
// the protected handler.
func (p *Paywall) proceed(w http.ResponseWriter, r *http.Request, next http.Handler, info *types.PaymentInfo) {
	p.rec.IncOutcome("OK")
	ctx := context.WithValue(r.Context(), paymentKey, info)
	next.ServeHTTP(w, r.WithContext(ctx))
}

// fail terminates the request with the standard error envelope.
func (p *Paywall) fail(w http.ResponseWriter, status int, code, description string) {
	p.rec.IncOutcome(code)
	writeJSON(w, status, types.NewErrorResponse(code, description))
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
