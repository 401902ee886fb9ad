package provider

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/ft1-1/pmcc-scanner-sub003/internal/model"
	"github.com/ft1-1/pmcc-scanner-sub003/internal/resilience"
	"github.com/ft1-1/pmcc-scanner-sub003/pkg/eodhd"
)

const NameEODHD = "eodhd"

// EODHD adapts the EODHD API client to the Provider contract. It is the
// full-capability source: screening, quotes, chains with greeks, and
// fundamentals, each charging API credits.
type EODHD struct {
	client eodhd.Client
	retry  resilience.RetryConfig
}

// NewEODHD wraps an EODHD client.
func NewEODHD(client eodhd.Client) *EODHD {
	cfg := resilience.DefaultRetryConfig()
	cfg.ShouldRetry = eodhdRetryable
	return &EODHD{client: client, retry: cfg}
}

func (p *EODHD) Name() string { return NameEODHD }

func (p *EODHD) Capabilities() []model.Operation {
	return []model.Operation{
		model.OpScreen,
		model.OpQuote,
		model.OpOptionsChain,
		model.OpFundamentals,
		model.OpGreeks,
	}
}

func (p *EODHD) CostPerCall(op model.Operation) int {
	switch op {
	case model.OpScreen:
		return eodhd.CreditsScreen
	case model.OpQuote:
		return eodhd.CreditsQuote
	case model.OpOptionsChain, model.OpGreeks:
		return eodhd.CreditsOptions
	case model.OpFundamentals:
		return eodhd.CreditsFundamentals
	default:
		return 0
	}
}

func (p *EODHD) Call(ctx context.Context, req Request) (*Response, error) {
	switch req.Op {
	case model.OpScreen:
		return p.screen(ctx, req)
	case model.OpQuote:
		return p.quote(ctx, req.Symbol)
	case model.OpOptionsChain, model.OpGreeks:
		return p.options(ctx, req.Symbol)
	case model.OpFundamentals:
		return p.fundamentals(ctx, req.Symbol)
	default:
		return nil, eris.Errorf("eodhd: unsupported operation %q", req.Op)
	}
}

func (p *EODHD) Probe(ctx context.Context) error {
	return p.client.Ping(ctx)
}

func (p *EODHD) screen(ctx context.Context, req Request) (*Response, error) {
	filters := eodhd.ScreenFilters{
		Symbols:      stringsParam(req.Params, "symbols"),
		MinPrice:     floatParam(req.Params, "min_price"),
		MaxPrice:     floatParam(req.Params, "max_price"),
		MinVolume:    int64Param(req.Params, "min_volume"),
		MinMarketCap: floatParam(req.Params, "min_market_cap"),
		MaxMarketCap: floatParam(req.Params, "max_market_cap"),
	}

	items, err := resilience.Retry(ctx, p.retry, func(ctx context.Context) ([]eodhd.ScreenItem, error) {
		return p.client.Screen(ctx, filters)
	})
	if err != nil {
		return nil, eris.Wrap(err, "eodhd: screen")
	}

	rows := make([]model.ScreenRow, 0, len(items))
	for _, it := range items {
		rows = append(rows, model.ScreenRow{
			Symbol:    it.Code,
			Price:     it.AdjustedClose,
			Volume:    it.AvgVolume,
			MarketCap: it.MarketCap,
		})
	}
	return &Response{Status: StatusOK, Data: rows, CreditsCharged: eodhd.CreditsScreen}, nil
}

func (p *EODHD) quote(ctx context.Context, symbol string) (*Response, error) {
	q, err := resilience.Retry(ctx, p.retry, func(ctx context.Context) (*eodhd.QuoteData, error) {
		return p.client.Quote(ctx, symbol)
	})
	if err != nil {
		return nil, eris.Wrapf(err, "eodhd: quote %s", symbol)
	}
	return &Response{
		Status: StatusOK,
		Data: &model.Quote{
			Symbol: q.Code,
			Price:  q.Close,
			Volume: q.Volume,
			AsOf:   time.Unix(q.Timestamp, 0).UTC(),
		},
		CreditsCharged: eodhd.CreditsQuote,
	}, nil
}

func (p *EODHD) options(ctx context.Context, symbol string) (*Response, error) {
	data, err := resilience.Retry(ctx, p.retry, func(ctx context.Context) (*eodhd.OptionsData, error) {
		return p.client.Options(ctx, symbol)
	})
	if err != nil {
		return nil, eris.Wrapf(err, "eodhd: options %s", symbol)
	}

	chain := &model.OptionChain{
		Symbol:          symbol,
		UnderlyingPrice: data.LastUnderlying,
		RetrievedAt:     time.Now().UTC(),
	}
	for _, c := range data.Contracts {
		exp, err := time.Parse("2006-01-02", c.ExpirationDate)
		if err != nil {
			continue // malformed expiration, skip the contract
		}
		right := model.Call
		if c.Type == "put" {
			right = model.Put
		}
		chain.Contracts = append(chain.Contracts, model.OptionContract{
			Symbol:       c.ContractName,
			Right:        right,
			Strike:       c.Strike,
			Expiration:   exp,
			Bid:          c.Bid,
			Ask:          c.Ask,
			Delta:        c.Delta,
			ImpliedVol:   c.ImpliedVol,
			OpenInterest: c.OpenInterest,
		})
	}
	return &Response{Status: StatusOK, Data: chain, CreditsCharged: eodhd.CreditsOptions}, nil
}

func (p *EODHD) fundamentals(ctx context.Context, symbol string) (*Response, error) {
	f, err := resilience.Retry(ctx, p.retry, func(ctx context.Context) (*eodhd.FundamentalsData, error) {
		return p.client.Fundamentals(ctx, symbol)
	})
	if err != nil {
		return nil, eris.Wrapf(err, "eodhd: fundamentals %s", symbol)
	}
	return &Response{
		Status: StatusOK,
		Data: &model.Fundamentals{
			Symbol:         symbol,
			MarketCap:      f.Highlights.MarketCapitalization,
			PERatio:        f.Highlights.PERatio,
			EPSGrowth:      f.Highlights.EPSEstimateGrowth,
			DividendYield:  f.Highlights.DividendYield,
			Beta:           f.Technicals.Beta,
			FiftyTwoWkLow:  f.Technicals.FiftyTwoWeekLow,
			FiftyTwoWkHigh: f.Technicals.FiftyTwoWeekHigh,
			Sector:         f.General.Sector,
		},
		CreditsCharged: eodhd.CreditsFundamentals,
	}, nil
}

func eodhdRetryable(err error) bool {
	var se *eodhd.StatusError
	if eris.As(err, &se) {
		return resilience.IsTransientHTTPStatus(se.StatusCode)
	}
	// Network-level failures without a status are assumed transient.
	return true
}

func stringsParam(params map[string]any, key string) []string {
	if v, ok := params[key].([]string); ok {
		return v
	}
	return nil
}

func floatParam(params map[string]any, key string) float64 {
	switch v := params[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return 0
}

func int64Param(params map[string]any, key string) int64 {
	switch v := params[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	}
	return 0
}
