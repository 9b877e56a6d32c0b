package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sighash/paywall/wallet"
)

func TestCreateNonce_Unique(t *testing.T) {
	w := New()
	ctx := context.Background()

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		prefix, err := w.CreateNonce(ctx)
		if err != nil {
			t.Fatalf("CreateNonce failed: %v", err)
		}
		if prefix == "" {
			t.Fatal("CreateNonce returned an empty prefix")
		}
		if seen[prefix] {
			t.Fatalf("duplicate nonce minted: %s", prefix)
		}
		seen[prefix] = true
	}
}

func TestVerifyNonce_SingleUse(t *testing.T) {
	w := New()
	ctx := context.Background()

	prefix, err := w.CreateNonce(ctx)
	if err != nil {
		t.Fatalf("CreateNonce failed: %v", err)
	}

	ok, err := w.VerifyNonce(ctx, prefix)
	if err != nil {
		t.Fatalf("VerifyNonce failed: %v", err)
	}
	if !ok {
		t.Fatal("freshly minted nonce should verify")
	}

	ok, err = w.VerifyNonce(ctx, prefix)
	if err != nil {
		t.Fatalf("VerifyNonce failed: %v", err)
	}
	if ok {
		t.Fatal("consumed nonce must not verify a second time")
	}
}

func TestVerifyNonce_NeverIssued(t *testing.T) {
	w := New()

	ok, err := w.VerifyNonce(context.Background(), "made-up-prefix")
	if err != nil {
		t.Fatalf("VerifyNonce failed: %v", err)
	}
	if ok {
		t.Fatal("unknown prefix must not verify")
	}
}

func TestVerifyNonce_Expired(t *testing.T) {
	now := time.Now()
	clock := func() time.Time { return now }

	w := New(WithNonceTTL(time.Minute), WithClock(clock))
	ctx := context.Background()

	prefix, err := w.CreateNonce(ctx)
	if err != nil {
		t.Fatalf("CreateNonce failed: %v", err)
	}

	now = now.Add(2 * time.Minute)

	ok, err := w.VerifyNonce(ctx, prefix)
	if err != nil {
		t.Fatalf("VerifyNonce failed: %v", err)
	}
	if ok {
		t.Fatal("expired nonce must not verify")
	}
}

// Two racing verifications of the same prefix must see at most one
// success.
func TestVerifyNonce_Concurrent(t *testing.T) {
	w := New()
	ctx := context.Background()

	prefix, err := w.CreateNonce(ctx)
	if err != nil {
		t.Fatalf("CreateNonce failed: %v", err)
	}

	const racers = 16

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)

	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := w.VerifyNonce(ctx, prefix)
			if err != nil {
				t.Errorf("VerifyNonce failed: %v", err)
				return
			}
			if ok {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}

	wg.Wait()

	if successes != 1 {
		t.Fatalf("expected exactly one successful verification, got %d", successes)
	}
}

func TestInternalize(t *testing.T) {
	valid := wallet.InternalizeArgs{
		Tx: []byte{1, 2, 3},
		Outputs: []wallet.OutputDescriptor{{
			OutputIndex: 0,
			Protocol:    "wallet payment",
			Remittance: wallet.PaymentRemittance{
				DerivationPrefix:  "prefix",
				DerivationSuffix:  "suffix",
				SenderIdentityKey: "02abc",
			},
		}},
		Description: "Payment for request to /api/data",
	}

	testCases := []struct {
		name    string
		mutate  func(args *wallet.InternalizeArgs)
		wantErr bool
	}{
		{"valid", func(*wallet.InternalizeArgs) {}, false},
		{"empty transaction", func(a *wallet.InternalizeArgs) { a.Tx = nil }, true},
		{"no outputs", func(a *wallet.InternalizeArgs) { a.Outputs = nil }, true},
		{"two outputs", func(a *wallet.InternalizeArgs) {
			a.Outputs = append(a.Outputs, a.Outputs[0])
		}, true},
		{"missing remittance prefix", func(a *wallet.InternalizeArgs) {
			a.Outputs[0].Remittance.DerivationPrefix = ""
		}, true},
		{"missing sender identity", func(a *wallet.InternalizeArgs) {
			a.Outputs[0].Remittance.SenderIdentityKey = ""
		}, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			args := valid
			args.Outputs = append([]wallet.OutputDescriptor(nil), valid.Outputs...)
			tc.mutate(&args)

			result, err := New().Internalize(context.Background(), args)

			if tc.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				var werr *wallet.Error
				if !errors.As(err, &werr) {
					t.Fatalf("expected *wallet.Error, got %T", err)
				}
				return
			}

			if err != nil {
				t.Fatalf("Internalize failed: %v", err)
			}
			if !result.Accepted {
				t.Error("expected accepted result")
			}
		})
	}
}

func TestPrune(t *testing.T) {
	now := time.Now()
	clock := func() time.Time { return now }

	w := New(WithNonceTTL(time.Minute), WithClock(clock))
	ctx := context.Background()

	if _, err := w.CreateNonce(ctx); err != nil {
		t.Fatalf("CreateNonce failed: %v", err)
	}
	if _, err := w.CreateNonce(ctx); err != nil {
		t.Fatalf("CreateNonce failed: %v", err)
	}

	if dropped := w.Prune(); dropped != 0 {
		t.Errorf("expected nothing pruned, got %d", dropped)
	}

	now = now.Add(2 * time.Minute)

	if dropped := w.Prune(); dropped != 2 {
		t.Errorf("expected 2 pruned, got %d", dropped)
	}
}
