// Package analyzer selects PMCC leg combinations from an option chain and
// computes position risk metrics.
package analyzer

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/ft1-1/pmcc-scanner-sub003/internal/model"
)

// ErrNoQualifyingLegs reports that no leg combination inside the
// configured windows exists for a symbol. The pipeline drops such symbols
// silently; it is not a failure.
var ErrNoQualifyingLegs = eris.New("analyzer: no qualifying leg combination")

// Analyzer evaluates a symbol's option chain against leg-selection ranges.
type Analyzer interface {
	Analyze(ctx context.Context, chain model.OptionChain, ranges model.LegRanges) (*model.PositionAnalysis, error)
}

// PMCC is the default analyzer: a long deep-in-the-money LEAPS call paired
// with a short near-dated call above it.
type PMCC struct{}

// NewPMCC creates the default PMCC analyzer.
func NewPMCC() *PMCC {
	return &PMCC{}
}

// Analyze picks the highest-scoring qualifying long/short pair. Returns
// ErrNoQualifyingLegs when no pair fits the windows.
func (a *PMCC) Analyze(ctx context.Context, chain model.OptionChain, ranges model.LegRanges) (*model.PositionAnalysis, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	now := chain.RetrievedAt
	calls := chain.Calls()

	var longs, shorts []model.OptionContract
	for _, c := range calls {
		dte := c.DTE(now)
		switch {
		case dte >= ranges.LongMinDTE && dte <= ranges.LongMaxDTE &&
			c.Delta >= ranges.LongMinDelta && c.Delta <= ranges.LongMaxDelta:
			longs = append(longs, c)
		case dte >= ranges.ShortMinDTE && dte <= ranges.ShortMaxDTE &&
			c.Delta >= ranges.ShortMinDelta && c.Delta <= ranges.ShortMaxDelta:
			shorts = append(shorts, c)
		}
	}

	var best *model.PositionAnalysis
	for _, lg := range longs {
		for _, sh := range shorts {
			pos, ok := a.evaluate(lg, sh)
			if !ok {
				continue
			}
			if best == nil || pos.Score > best.Score {
				best = pos
			}
		}
	}

	if best == nil {
		return nil, ErrNoQualifyingLegs
	}
	return best, nil
}

// evaluate scores one long/short pair. Pairs with a non-positive debit or
// profit are rejected.
func (a *PMCC) evaluate(long, short model.OptionContract) (*model.PositionAnalysis, bool) {
	if short.Strike <= long.Strike {
		return nil, false
	}
	if long.Bid <= 0 || short.Bid <= 0 {
		return nil, false
	}

	netDebit := long.Mid() - short.Mid()
	if netDebit <= 0 {
		return nil, false
	}
	maxProfit := (short.Strike - long.Strike) - netDebit
	if maxProfit <= 0 {
		return nil, false
	}
	riskReward := maxProfit / netDebit

	// Score components: risk/reward dominates, premium coverage (how
	// much of the long's cost one short cycle recovers) and long delta
	// quality round it out. Each clamps to its band.
	rrScore := clamp(riskReward/1.5, 0, 1) * 50
	coverage := clamp(short.Mid()/long.Mid()/0.12, 0, 1) * 30
	deltaScore := clamp((long.Delta-0.65)/0.3, 0, 1) * 20

	return &model.PositionAnalysis{
		LongLeg:    long,
		ShortLeg:   short,
		NetDebit:   netDebit,
		MaxProfit:  maxProfit,
		RiskReward: riskReward,
		Score:      rrScore + coverage + deltaScore,
	}, true
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
