package enrich

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestFetchByMintPicksFirstSOLQuotedPair(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"pairs":[
			{"baseToken":{"symbol":"USDC","name":"USD Coin"},"quoteToken":{"symbol":"USDT"},"priceUsd":"1.0"},
			{"baseToken":{"symbol":"FOO","name":"Foo Token"},"quoteToken":{"symbol":"SOL"},"priceUsd":"0.5","priceNative":"0.002","liquidity":{"usd":10000}}
		]}`))
	}))
	defer srv.Close()

	c := New(srv.URL)
	md, ok, err := c.FetchByMint(context.Background(), "MINT")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatalf("expected a SOL-quoted pair to be found")
	}
	if md.Symbol != "FOO" {
		t.Fatalf("Symbol = %q, want FOO (the SOL-quoted pair, not the first listed)", md.Symbol)
	}
	if md.PriceUSD == nil || *md.PriceUSD != 0.5 {
		t.Fatalf("PriceUSD mismatch: %+v", md.PriceUSD)
	}
}

func TestFetchByMintNoSOLPairReturnsNotOK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"pairs":[{"baseToken":{"symbol":"USDC"},"quoteToken":{"symbol":"USDT"}}]}`))
	}))
	defer srv.Close()

	c := New(srv.URL)
	_, ok, err := c.FetchByMint(context.Background(), "MINT")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatalf("expected ok=false when no SOL-quoted pair exists")
	}
}

func TestFetchByMintPropagatesHTTPErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(srv.URL)
	_, _, err := c.FetchByMint(context.Background(), "MINT")
	if err == nil {
		t.Fatalf("expected an error on HTTP 500")
	}
}
