// Package eodhd provides a client for the EODHD market data API.
package eodhd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

// Per-endpoint API credit costs, per the EODHD pricing sheet.
const (
	CreditsScreen       = 5
	CreditsQuote        = 1
	CreditsOptions      = 10
	CreditsFundamentals = 10
)

// Client defines the EODHD operations used by the scanner.
type Client interface {
	// Screen runs the stock screener with the given filters.
	Screen(ctx context.Context, filters ScreenFilters) ([]ScreenItem, error)
	// Quote fetches a delayed real-time quote.
	Quote(ctx context.Context, symbol string) (*QuoteData, error)
	// Options fetches the option chain for an underlying.
	Options(ctx context.Context, symbol string) (*OptionsData, error)
	// Fundamentals fetches fundamental data for a symbol.
	Fundamentals(ctx context.Context, symbol string) (*FundamentalsData, error)
	// Ping checks API reachability and key validity.
	Ping(ctx context.Context) error
}

// ScreenFilters narrows the screener universe. Zero values are omitted.
type ScreenFilters struct {
	Symbols      []string
	MinPrice     float64
	MaxPrice     float64
	MinVolume    int64
	MinMarketCap float64
	MaxMarketCap float64
	Limit        int
}

// ScreenItem is one screener row.
type ScreenItem struct {
	Code          string  `json:"code"`
	AdjustedClose float64 `json:"adjusted_close"`
	AvgVolume     int64   `json:"avgvol_200d"`
	MarketCap     float64 `json:"market_capitalization"`
}

// QuoteData is the real-time quote payload.
type QuoteData struct {
	Code      string  `json:"code"`
	Close     float64 `json:"close"`
	Volume    int64   `json:"volume"`
	Timestamp int64   `json:"timestamp"`
}

// OptionsData is the option chain payload.
type OptionsData struct {
	Code           string       `json:"code"`
	LastUnderlying float64      `json:"lastTradePrice"`
	Contracts      []OptionItem `json:"data"`
}

// OptionItem is one contract in the chain.
type OptionItem struct {
	ContractName   string  `json:"contractName"`
	Type           string  `json:"type"` // "call" or "put"
	Strike         float64 `json:"strike"`
	ExpirationDate string  `json:"expirationDate"` // YYYY-MM-DD
	Bid            float64 `json:"bid"`
	Ask            float64 `json:"ask"`
	Delta          float64 `json:"delta"`
	ImpliedVol     float64 `json:"impliedVolatility"`
	OpenInterest   int64   `json:"openInterest"`
}

// FundamentalsData is the trimmed fundamentals payload.
type FundamentalsData struct {
	General struct {
		Code   string `json:"Code"`
		Sector string `json:"Sector"`
	} `json:"General"`
	Highlights struct {
		MarketCapitalization float64 `json:"MarketCapitalization"`
		PERatio              float64 `json:"PERatio"`
		EPSEstimateGrowth    float64 `json:"EPSEstimateCurrentYear"`
		DividendYield        float64 `json:"DividendYield"`
	} `json:"Highlights"`
	Technicals struct {
		Beta             float64 `json:"Beta"`
		FiftyTwoWeekLow  float64 `json:"52WeekLow"`
		FiftyTwoWeekHigh float64 `json:"52WeekHigh"`
	} `json:"Technicals"`
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
	apiKey  string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates an EODHD client. Requests are paced to stay inside
// the API's per-minute allowance.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: "https://eodhd.com/api",
		http:    &http.Client{Timeout: 30 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(15), 5),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) Screen(ctx context.Context, filters ScreenFilters) ([]ScreenItem, error) {
	q := url.Values{}
	if len(filters.Symbols) > 0 {
		q.Set("symbols", strings.Join(filters.Symbols, ","))
	}
	if filters.MinPrice > 0 {
		q.Set("filters[price][gte]", formatFloat(filters.MinPrice))
	}
	if filters.MaxPrice > 0 {
		q.Set("filters[price][lte]", formatFloat(filters.MaxPrice))
	}
	if filters.MinVolume > 0 {
		q.Set("filters[avgvol_200d][gte]", strconv.FormatInt(filters.MinVolume, 10))
	}
	if filters.MinMarketCap > 0 {
		q.Set("filters[market_capitalization][gte]", formatFloat(filters.MinMarketCap))
	}
	if filters.MaxMarketCap > 0 {
		q.Set("filters[market_capitalization][lte]", formatFloat(filters.MaxMarketCap))
	}
	if filters.Limit > 0 {
		q.Set("limit", strconv.Itoa(filters.Limit))
	}

	var out struct {
		Data []ScreenItem `json:"data"`
	}
	if err := c.get(ctx, "/screener", q, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

func (c *httpClient) Quote(ctx context.Context, symbol string) (*QuoteData, error) {
	var out QuoteData
	if err := c.get(ctx, "/real-time/"+url.PathEscape(symbol), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *httpClient) Options(ctx context.Context, symbol string) (*OptionsData, error) {
	var out OptionsData
	if err := c.get(ctx, "/options/"+url.PathEscape(symbol), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *httpClient) Fundamentals(ctx context.Context, symbol string) (*FundamentalsData, error) {
	var out FundamentalsData
	if err := c.get(ctx, "/fundamentals/"+url.PathEscape(symbol), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *httpClient) Ping(ctx context.Context) error {
	var out map[string]any
	return c.get(ctx, "/user", nil, &out)
}

// StatusError reports a non-2xx API response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("eodhd: status %d: %s", e.StatusCode, e.Body)
}

func (c *httpClient) get(ctx context.Context, path string, q url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return eris.Wrap(err, "eodhd: rate wait")
	}

	if q == nil {
		q = url.Values{}
	}
	q.Set("api_token", c.apiKey)
	q.Set("fmt", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return eris.Wrap(err, "eodhd: build request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return eris.Wrap(err, "eodhd: request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return eris.Wrap(err, "eodhd: read body")
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{StatusCode: resp.StatusCode, Body: truncate(string(body), 200)}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return eris.Wrap(err, "eodhd: decode response")
	}
	return nil
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
