package provider

import (
	"context"
	"math"
	"time"

	"github.com/rotisserie/eris"

	"github.com/ft1-1/pmcc-scanner-sub003/internal/model"
	"github.com/ft1-1/pmcc-scanner-sub003/internal/resilience"
	"github.com/ft1-1/pmcc-scanner-sub003/pkg/yahoo"
)

const NameYahoo = "yahoo"

// Yahoo adapts the Yahoo Finance client to the Provider contract. It is
// a free, limited-capability fallback: quotes and chains only, with
// delta estimated from implied volatility because Yahoo publishes no
// greeks.
type Yahoo struct {
	client yahoo.Client
	retry  resilience.RetryConfig
	now    func() time.Time
}

// NewYahoo wraps a Yahoo Finance client.
func NewYahoo(client yahoo.Client) *Yahoo {
	cfg := resilience.DefaultRetryConfig()
	cfg.ShouldRetry = yahooRetryable
	return &Yahoo{client: client, retry: cfg, now: time.Now}
}

func (p *Yahoo) Name() string { return NameYahoo }

func (p *Yahoo) Capabilities() []model.Operation {
	return []model.Operation{model.OpQuote, model.OpOptionsChain}
}

// CostPerCall is always zero; Yahoo charges no credits.
func (p *Yahoo) CostPerCall(model.Operation) int { return 0 }

func (p *Yahoo) Call(ctx context.Context, req Request) (*Response, error) {
	switch req.Op {
	case model.OpQuote:
		return p.quote(ctx, req.Symbol)
	case model.OpOptionsChain:
		return p.options(ctx, req.Symbol)
	default:
		return nil, eris.Errorf("yahoo: unsupported operation %q", req.Op)
	}
}

func (p *Yahoo) Probe(ctx context.Context) error {
	return p.client.Ping(ctx)
}

func (p *Yahoo) quote(ctx context.Context, symbol string) (*Response, error) {
	q, err := resilience.Retry(ctx, p.retry, func(ctx context.Context) (*yahoo.QuoteData, error) {
		return p.client.Quote(ctx, symbol)
	})
	if err != nil {
		return nil, eris.Wrapf(err, "yahoo: quote %s", symbol)
	}
	return &Response{
		Status: StatusOK,
		Data: &model.Quote{
			Symbol: q.Symbol,
			Price:  q.RegularMarketPrice,
			Volume: q.RegularMarketVolume,
			AsOf:   p.now().UTC(),
		},
	}, nil
}

func (p *Yahoo) options(ctx context.Context, symbol string) (*Response, error) {
	data, err := resilience.Retry(ctx, p.retry, func(ctx context.Context) (*yahoo.ChainData, error) {
		return p.client.Options(ctx, symbol)
	})
	if err != nil {
		return nil, eris.Wrapf(err, "yahoo: options %s", symbol)
	}

	now := p.now().UTC()
	chain := &model.OptionChain{
		Symbol:          symbol,
		UnderlyingPrice: data.UnderlyingPrice,
		RetrievedAt:     now,
	}
	for _, c := range data.Calls {
		chain.Contracts = append(chain.Contracts, toContract(c, model.Call, data.UnderlyingPrice, now))
	}
	for _, c := range data.Puts {
		chain.Contracts = append(chain.Contracts, toContract(c, model.Put, data.UnderlyingPrice, now))
	}
	return &Response{Status: StatusOK, Data: chain}, nil
}

func toContract(c yahoo.ContractData, right model.OptionRight, underlying float64, now time.Time) model.OptionContract {
	exp := time.Unix(c.Expiration, 0).UTC()
	return model.OptionContract{
		Symbol:       c.ContractSymbol,
		Right:        right,
		Strike:       c.Strike,
		Expiration:   exp,
		Bid:          c.Bid,
		Ask:          c.Ask,
		Delta:        estimateDelta(right, underlying, c.Strike, c.ImpliedVolatility, exp.Sub(now)),
		ImpliedVol:   c.ImpliedVolatility,
		OpenInterest: c.OpenInterest,
	}
}

// estimateDelta computes a Black-Scholes delta from implied volatility
// with a flat 5% risk-free rate. Good enough for window filtering.
func estimateDelta(right model.OptionRight, underlying, strike, iv float64, ttl time.Duration) float64 {
	if underlying <= 0 || strike <= 0 || iv <= 0 || ttl <= 0 {
		return 0
	}
	const riskFree = 0.05
	t := ttl.Hours() / 24 / 365
	d1 := (math.Log(underlying/strike) + (riskFree+iv*iv/2)*t) / (iv * math.Sqrt(t))
	callDelta := normCDF(d1)
	if right == model.Put {
		return callDelta - 1
	}
	return callDelta
}

func normCDF(x float64) float64 {
	return 0.5 * (1 + math.Erf(x/math.Sqrt2))
}

func yahooRetryable(err error) bool {
	var se *yahoo.StatusError
	if eris.As(err, &se) {
		return resilience.IsTransientHTTPStatus(se.StatusCode)
	}
	return true
}
