package market

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
)

type stubPriceSource struct {
	price float64
	err   error
}

func (s *stubPriceSource) GetPrice(ctx context.Context, address string) (float64, error) {
	return s.price, s.err
}

func TestPriceClientGetPrice(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/price" {
			t.Errorf("Unexpected path: %s", r.URL.Path)
		}
		token := r.URL.Query().Get("ids")
		if token != "TokenAAA" {
			t.Errorf("Unexpected ids param: %s", token)
		}
		if r.URL.Query().Get("vsToken") != "USDCmint" {
			t.Errorf("Unexpected vsToken param: %s", r.URL.Query().Get("vsToken"))
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"data":{"%s":{"price":1.23}}}`, token)
	}))
	defer server.Close()

	client := NewPriceClient(&PriceClientConfig{
		BaseURL:   server.URL,
		QuoteMint: "USDCmint",
		Timeout:   2 * time.Second,
	}, zaptest.NewLogger(t))

	price, err := client.GetPrice(context.Background(), "TokenAAA")
	if err != nil {
		t.Fatalf("GetPrice failed: %v", err)
	}
	if price != 1.23 {
		t.Errorf("Expected price 1.23, got %v", price)
	}
}

func TestPriceClientUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":{}}`)
	}))
	defer server.Close()

	client := NewPriceClient(&PriceClientConfig{
		BaseURL: server.URL,
		Timeout: 2 * time.Second,
	}, zaptest.NewLogger(t))

	_, err := client.GetPrice(context.Background(), "TokenAAA")
	if !errors.Is(err, ErrPriceUnavailable) {
		t.Errorf("Expected ErrPriceUnavailable, got %v", err)
	}
}

func TestPriceClientServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewPriceClient(&PriceClientConfig{
		BaseURL: server.URL,
		Timeout: 2 * time.Second,
	}, zaptest.NewLogger(t))

	if _, err := client.GetPrice(context.Background(), "TokenAAA"); err == nil {
		t.Error("Expected error from 500 response")
	}
}

func TestSwapClientDryRunBuy(t *testing.T) {
	client := NewSwapClient(&SwapClientConfig{
		DryRun: true,
	}, &stubPriceSource{price: 0.5}, zaptest.NewLogger(t))

	result, err := client.Buy(context.Background(), "TokenAAA", 100)
	if err != nil {
		t.Fatalf("Dry-run buy failed: %v", err)
	}
	if result.Quantity != 200 {
		t.Errorf("Expected quantity 200, got %v", result.Quantity)
	}
	if result.AmountUSDC != 100 {
		t.Errorf("Expected amount 100, got %v", result.AmountUSDC)
	}
	if !strings.HasPrefix(result.TxRef, "dry-") {
		t.Errorf("Expected dry-run tx ref, got %s", result.TxRef)
	}
}

func TestSwapClientDryRunSell(t *testing.T) {
	client := NewSwapClient(&SwapClientConfig{
		DryRun: true,
	}, &stubPriceSource{price: 2.0}, zaptest.NewLogger(t))

	result, err := client.Sell(context.Background(), "TokenAAA", 50)
	if err != nil {
		t.Fatalf("Dry-run sell failed: %v", err)
	}
	if result.AmountUSDC != 100 {
		t.Errorf("Expected proceeds 100, got %v", result.AmountUSDC)
	}

	if _, err := client.Sell(context.Background(), "TokenAAA", 0); err == nil {
		t.Error("Expected error for dry-run sell without quantity")
	}
}

func TestSwapClientDryRunNoPrice(t *testing.T) {
	client := NewSwapClient(&SwapClientConfig{
		DryRun: true,
	}, &stubPriceSource{err: ErrPriceUnavailable}, zaptest.NewLogger(t))

	if _, err := client.Buy(context.Background(), "TokenAAA", 100); !errors.Is(err, ErrPriceUnavailable) {
		t.Errorf("Expected wrapped ErrPriceUnavailable, got %v", err)
	}
}

func TestSwapClientLiveSubmit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/swap" {
			t.Errorf("Unexpected path: %s", r.URL.Path)
		}
		var req swapRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("Failed to decode swap request: %v", err)
		}
		if req.ClientRef == "" {
			t.Error("Expected a client reference on the swap request")
		}
		if req.Side != "buy" || req.InputMint != "USDCmint" || req.OutputMint != "TokenAAA" {
			t.Errorf("Unexpected swap request: %+v", req)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(SwapResult{
			TxRef:      "sig-123",
			FillPrice:  0.4,
			Quantity:   250,
			AmountUSDC: 100,
		})
	}))
	defer server.Close()

	client := NewSwapClient(&SwapClientConfig{
		BaseURL:         server.URL,
		WalletAddress:   "Wallet111",
		QuoteMint:       "USDCmint",
		SlippagePercent: 5,
		Timeout:         2 * time.Second,
	}, nil, zaptest.NewLogger(t))

	result, err := client.Buy(context.Background(), "TokenAAA", 100)
	if err != nil {
		t.Fatalf("Buy failed: %v", err)
	}
	if result.TxRef != "sig-123" || result.Quantity != 250 {
		t.Errorf("Unexpected result: %+v", result)
	}
}

func TestSwapClientRejectionNotRetried(t *testing.T) {
	var calls int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&calls, 1)
		http.Error(w, "insufficient balance", http.StatusBadRequest)
	}))
	defer server.Close()

	client := NewSwapClient(&SwapClientConfig{
		BaseURL: server.URL,
		Timeout: 2 * time.Second,
	}, nil, zaptest.NewLogger(t))

	_, err := client.Buy(context.Background(), "TokenAAA", 100)
	if err == nil {
		t.Fatal("Expected error from rejected swap")
	}
	if got := atomic.LoadInt64(&calls); got != 1 {
		t.Errorf("Expected rejection not to be retried, got %d calls", got)
	}
}

func TestWalletClientBalances(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mint := r.URL.Query().Get("mint")
		if r.URL.Query().Get("wallet") != "Wallet111" {
			t.Errorf("Unexpected wallet param: %s", r.URL.Query().Get("wallet"))
		}
		amount := 0.0
		switch mint {
		case "SOLmint":
			amount = 1.5
		case "USDCmint":
			amount = 420.5
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(balanceResponse{Mint: mint, Amount: amount})
	}))
	defer server.Close()

	client := NewWalletClient(&WalletClientConfig{
		BaseURL:       server.URL,
		WalletAddress: "Wallet111",
		NativeMint:    "SOLmint",
		QuoteMint:     "USDCmint",
		Timeout:       2 * time.Second,
	}, zaptest.NewLogger(t))

	native, err := client.GetNativeBalance(context.Background())
	if err != nil {
		t.Fatalf("GetNativeBalance failed: %v", err)
	}
	if native != 1.5 {
		t.Errorf("Expected native balance 1.5, got %v", native)
	}

	quote, err := client.GetQuoteBalance(context.Background())
	if err != nil {
		t.Fatalf("GetQuoteBalance failed: %v", err)
	}
	if quote != 420.5 {
		t.Errorf("Expected quote balance 420.5, got %v", quote)
	}
}
