// Package yahoo provides a minimal client for the Yahoo Finance
// quote and option chain endpoints. It requires no API key and
// charges no credits, which makes it suitable as a fallback source.
package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
)

// Client defines the Yahoo Finance operations used by the scanner.
type Client interface {
	// Quote fetches the latest quote for a symbol.
	Quote(ctx context.Context, symbol string) (*QuoteData, error)
	// Options fetches the option chain for an underlying.
	Options(ctx context.Context, symbol string) (*ChainData, error)
	// Ping checks endpoint reachability.
	Ping(ctx context.Context) error
}

// QuoteData is one quote row from the v7 quote endpoint.
type QuoteData struct {
	Symbol              string  `json:"symbol"`
	RegularMarketPrice  float64 `json:"regularMarketPrice"`
	RegularMarketVolume int64   `json:"regularMarketVolume"`
	MarketCap           float64 `json:"marketCap"`
}

// ChainData is the option chain for one underlying.
type ChainData struct {
	UnderlyingSymbol string
	UnderlyingPrice  float64
	Calls            []ContractData
	Puts             []ContractData
}

// ContractData is one contract in the chain.
type ContractData struct {
	ContractSymbol    string  `json:"contractSymbol"`
	Strike            float64 `json:"strike"`
	Expiration        int64   `json:"expiration"` // unix seconds
	Bid               float64 `json:"bid"`
	Ask               float64 `json:"ask"`
	ImpliedVolatility float64 `json:"impliedVolatility"`
	OpenInterest      int64   `json:"openInterest"`
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = u
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a Yahoo Finance client.
func NewClient(opts ...Option) Client {
	c := &httpClient{
		baseURL: "https://query1.finance.yahoo.com",
		http:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) Quote(ctx context.Context, symbol string) (*QuoteData, error) {
	var out struct {
		QuoteResponse struct {
			Result []QuoteData `json:"result"`
		} `json:"quoteResponse"`
	}
	q := url.Values{"symbols": {symbol}}
	if err := c.get(ctx, "/v7/finance/quote", q, &out); err != nil {
		return nil, err
	}
	if len(out.QuoteResponse.Result) == 0 {
		return nil, eris.Errorf("yahoo: no quote for %s", symbol)
	}
	return &out.QuoteResponse.Result[0], nil
}

func (c *httpClient) Options(ctx context.Context, symbol string) (*ChainData, error) {
	// First call lists expirations; each expiration needs its own fetch.
	first, err := c.chainPage(ctx, symbol, 0)
	if err != nil {
		return nil, err
	}
	chain := &ChainData{
		UnderlyingSymbol: first.symbol,
		UnderlyingPrice:  first.price,
		Calls:            first.calls,
		Puts:             first.puts,
	}
	for _, exp := range first.expirations {
		if exp == first.loadedExpiration {
			continue
		}
		page, err := c.chainPage(ctx, symbol, exp)
		if err != nil {
			return nil, err
		}
		chain.Calls = append(chain.Calls, page.calls...)
		chain.Puts = append(chain.Puts, page.puts...)
	}
	return chain, nil
}

func (c *httpClient) Ping(ctx context.Context) error {
	var out json.RawMessage
	return c.get(ctx, "/v7/finance/quote", url.Values{"symbols": {"SPY"}}, &out)
}

type chainPage struct {
	symbol           string
	price            float64
	expirations      []int64
	loadedExpiration int64
	calls            []ContractData
	puts             []ContractData
}

func (c *httpClient) chainPage(ctx context.Context, symbol string, expiration int64) (*chainPage, error) {
	var out struct {
		OptionChain struct {
			Result []struct {
				UnderlyingSymbol string  `json:"underlyingSymbol"`
				ExpirationDates  []int64 `json:"expirationDates"`
				Quote            struct {
					RegularMarketPrice float64 `json:"regularMarketPrice"`
				} `json:"quote"`
				Options []struct {
					ExpirationDate int64          `json:"expirationDate"`
					Calls          []ContractData `json:"calls"`
					Puts           []ContractData `json:"puts"`
				} `json:"options"`
			} `json:"result"`
		} `json:"optionChain"`
	}

	q := url.Values{}
	if expiration > 0 {
		q.Set("date", fmt.Sprintf("%d", expiration))
	}
	if err := c.get(ctx, "/v7/finance/options/"+url.PathEscape(symbol), q, &out); err != nil {
		return nil, err
	}
	if len(out.OptionChain.Result) == 0 {
		return nil, eris.Errorf("yahoo: no chain for %s", symbol)
	}

	r := out.OptionChain.Result[0]
	page := &chainPage{
		symbol:      r.UnderlyingSymbol,
		price:       r.Quote.RegularMarketPrice,
		expirations: r.ExpirationDates,
	}
	for _, opt := range r.Options {
		page.loadedExpiration = opt.ExpirationDate
		page.calls = append(page.calls, opt.Calls...)
		page.puts = append(page.puts, opt.Puts...)
	}
	return page, nil
}

// StatusError reports a non-2xx response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("yahoo: status %d: %s", e.StatusCode, e.Body)
}

func (c *httpClient) get(ctx context.Context, path string, q url.Values, out any) error {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return eris.Wrap(err, "yahoo: build request")
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; pmcc-scanner)")

	resp, err := c.http.Do(req)
	if err != nil {
		return eris.Wrap(err, "yahoo: request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return eris.Wrap(err, "yahoo: read body")
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := string(body)
		if len(msg) > 200 {
			msg = msg[:200] + "..."
		}
		return &StatusError{StatusCode: resp.StatusCode, Body: msg}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return eris.Wrap(err, "yahoo: decode response")
	}
	return nil
}
