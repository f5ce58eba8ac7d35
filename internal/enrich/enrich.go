// Package enrich implements the optional metadata/price enrichment client
// (spec §4.8, gated by ENABLE_ENRICHMENT): an HTTP client that fetches a
// mint's first listed SOL-quoted trading pair from a dexscreener-style API
// and returns symbol/name/price/liquidity. Metadata.Decimals is not filled
// in: the pairs response carries no decimals field.
//
// Grounded on the teacher's BridgeBroker (broker_bridge.go): a struct
// wrapping a base URL and *http.Client with a short timeout, one method
// per endpoint, context-aware requests, and explicit status-code checks
// before decoding JSON.
package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client fetches token metadata/price from an external pairs API.
type Client struct {
	base string
	hc   *http.Client
}

// New returns a Client pointed at baseURL (e.g. "https://api.dexscreener.com/latest/dex").
// An empty baseURL falls back to the public dexscreener endpoint.
func New(baseURL string) *Client {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		baseURL = "https://api.dexscreener.com/latest/dex"
	}
	return &Client{
		base: strings.TrimRight(baseURL, "/"),
		hc:   &http.Client{Timeout: 10 * time.Second},
	}
}

// Metadata is the normalized enrichment result for one mint.
type Metadata struct {
	Mint         string
	Symbol       string
	Name         string
	Decimals     uint8
	PriceUSD     *float64
	PriceSol     *float64
	LiquidityUSD *float64
}

type pairsResponse struct {
	Pairs []struct {
		BaseToken struct {
			Symbol string `json:"symbol"`
			Name   string `json:"name"`
		} `json:"baseToken"`
		QuoteToken struct {
			Symbol string `json:"symbol"`
		} `json:"quoteToken"`
		PriceUSD string `json:"priceUsd"`
		PriceNative string `json:"priceNative"`
		Liquidity struct {
			USD float64 `json:"usd"`
		} `json:"liquidity"`
	} `json:"pairs"`
}

// FetchByMint looks up mint and returns the first SOL-quoted pair's
// metadata, per spec §4.8's "fetch by mint, pick first SOL-quote pair"
// rule. Returns ok=false (no error) if no SOL-quoted pair is listed.
func (c *Client) FetchByMint(ctx context.Context, mint string) (Metadata, bool, error) {
	u := fmt.Sprintf("%s/tokens/%s", c.base, url.PathEscape(mint))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return Metadata{}, false, fmt.Errorf("build enrichment request: %w", err)
	}
	req.Header.Set("User-Agent", "solflow-pipeline/enrich")

	res, err := c.hc.Do(req)
	if err != nil {
		return Metadata{}, false, err
	}
	defer res.Body.Close()
	if res.StatusCode >= 300 {
		b, _ := io.ReadAll(res.Body)
		return Metadata{}, false, fmt.Errorf("enrichment request for %s: status %d: %s", mint, res.StatusCode, string(b))
	}

	var parsed pairsResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return Metadata{}, false, fmt.Errorf("decode enrichment response: %w", err)
	}

	for _, p := range parsed.Pairs {
		if p.QuoteToken.Symbol != "SOL" {
			continue
		}
		md := Metadata{Mint: mint, Symbol: p.BaseToken.Symbol, Name: p.BaseToken.Name}
		if f, ok := parseFloatPtr(p.PriceUSD); ok {
			md.PriceUSD = f
		}
		if f, ok := parseFloatPtr(p.PriceNative); ok {
			md.PriceSol = f
		}
		if p.Liquidity.USD > 0 {
			liq := p.Liquidity.USD
			md.LiquidityUSD = &liq
		}
		return md, true, nil
	}
	return Metadata{}, false, nil
}

func parseFloatPtr(s string) (*float64, bool) {
	if s == "" {
		return nil, false
	}
	var f float64
	if _, err := fmt.Sscanf(s, "%g", &f); err != nil {
		return nil, false
	}
	return &f, true
}
