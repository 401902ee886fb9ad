// Package model defines the domain types shared across the scanner.
package model

import "time"

// Operation identifies a class of market data request.
type Operation string

const (
	OpScreen       Operation = "screen"
	OpQuote        Operation = "quote"
	OpOptionsChain Operation = "options-chain"
	OpFundamentals Operation = "fundamentals"
	OpGreeks       Operation = "greeks"
)

// Quote is a point-in-time price snapshot for an underlying.
type Quote struct {
	Symbol string    `json:"symbol"`
	Price  float64   `json:"price"`
	Volume int64     `json:"volume"`
	AsOf   time.Time `json:"as_of"`
}

// ScreenRow is one row of a provider-native screener response. It carries
// only the cheap fields needed by the screening stage.
type ScreenRow struct {
	Symbol    string  `json:"symbol"`
	Price     float64 `json:"price"`
	Volume    int64   `json:"volume"`
	MarketCap float64 `json:"market_cap"`
}

// OptionRight distinguishes calls from puts.
type OptionRight string

const (
	Call OptionRight = "C"
	Put  OptionRight = "P"
)

// OptionContract is a single listed option with pricing and greeks.
type OptionContract struct {
	Symbol       string      `json:"symbol"`
	Right        OptionRight `json:"right"`
	Strike       float64     `json:"strike"`
	Expiration   time.Time   `json:"expiration"`
	Bid          float64     `json:"bid"`
	Ask          float64     `json:"ask"`
	Delta        float64     `json:"delta"`
	ImpliedVol   float64     `json:"implied_vol"`
	OpenInterest int64       `json:"open_interest"`
}

// Mid returns the bid/ask midpoint.
func (c OptionContract) Mid() float64 {
	return (c.Bid + c.Ask) / 2
}

// DTE returns calendar days to expiration relative to now.
func (c OptionContract) DTE(now time.Time) int {
	return int(c.Expiration.Sub(now).Hours() / 24)
}

// OptionChain is the full chain for one underlying.
type OptionChain struct {
	Symbol          string           `json:"symbol"`
	UnderlyingPrice float64          `json:"underlying_price"`
	Contracts       []OptionContract `json:"contracts"`
	RetrievedAt     time.Time        `json:"retrieved_at"`
}

// Calls returns only the call contracts of the chain.
func (ch OptionChain) Calls() []OptionContract {
	out := make([]OptionContract, 0, len(ch.Contracts))
	for _, c := range ch.Contracts {
		if c.Right == Call {
			out = append(out, c)
		}
	}
	return out
}

// Fundamentals carries the enhanced fundamental and technical context
// attached to a candidate before AI review.
type Fundamentals struct {
	Symbol         string  `json:"symbol"`
	MarketCap      float64 `json:"market_cap"`
	PERatio        float64 `json:"pe_ratio"`
	EPSGrowth      float64 `json:"eps_growth"`
	DividendYield  float64 `json:"dividend_yield"`
	Beta           float64 `json:"beta"`
	FiftyTwoWkLow  float64 `json:"fifty_two_wk_low"`
	FiftyTwoWkHigh float64 `json:"fifty_two_wk_high"`
	Sector         string  `json:"sector"`
	Trend          string  `json:"trend,omitempty"` // e.g. "uptrend", "range"
}
