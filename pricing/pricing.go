// Package pricing provides request-pricing strategies for the paywall
// middleware. A price is a non-negative number of satoshis; zero means
// the request is free.
package pricing

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"
)

// Func resolves the price of a request in satoshis.
type Func func(r *http.Request) (int, error)

// DefaultPrice is the flat rate applied by Fixed(DefaultPrice) style
// setups.
const DefaultPrice = 100

// Fixed returns a pricing function that applies a flat rate to every
// request.
func Fixed(satoshis int) Func {
	return func(*http.Request) (int, error) {
		return satoshis, nil
	}
}

// Free prices every request at zero satoshis.
func Free() Func {
	return Fixed(0)
}

// ByRoute prices requests by the longest matching path prefix, falling
// back to fallback satoshis when no prefix matches. Patterns may name a
// method, e.g. "POST /api/translate"; bare patterns match any method.
func ByRoute(table map[string]int, fallback int) Func {
	return func(r *http.Request) (int, error) {
		best, bestLen := fallback, -1

		for pattern, satoshis := range table {
			path := pattern
			if method, rest, ok := strings.Cut(pattern, " "); ok {
				if !strings.EqualFold(method, r.Method) {
					continue
				}
				path = rest
			}

			if strings.HasPrefix(r.URL.Path, path) && len(path) > bestLen {
				best, bestLen = satoshis, len(path)
			}
		}

		return best, nil
	}
}

// RateFunc quotes the current exchange rate as USD per bitcoin.
type RateFunc func(r *http.Request) (decimal.Decimal, error)

// StaticRate returns a RateFunc pinned to a fixed USD-per-BTC quote.
func StaticRate(usdPerBTC string) (RateFunc, error) {
	rate, err := decimal.NewFromString(usdPerBTC)
	if err != nil {
		return nil, fmt.Errorf("invalid rate %q: %w", usdPerBTC, err)
	}

	return func(*http.Request) (decimal.Decimal, error) {
		return rate, nil
	}, nil
}

var satoshisPerBTC = decimal.NewFromInt(100_000_000)

// USDCents prices every request at a fiat amount, converted to satoshis
// at the quoted rate. The satoshi amount rounds up so the resource is
// never underpaid.
func USDCents(cents int64, rate RateFunc) Func {
	usd := decimal.NewFromInt(cents).Div(decimal.NewFromInt(100))

	return func(r *http.Request) (int, error) {
		quote, err := rate(r)
		if err != nil {
			return 0, fmt.Errorf("exchange rate lookup failed: %w", err)
		}

		if !quote.IsPositive() {
			return 0, fmt.Errorf("non-positive exchange rate: %s", quote)
		}

		satoshis := usd.Div(quote).Mul(satoshisPerBTC).Ceil()
		if satoshis.IsNegative() {
			return 0, fmt.Errorf("negative satoshi amount: %s", satoshis)
		}

		return int(satoshis.IntPart()), nil
	}
}
