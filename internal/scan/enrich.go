package scan

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ft1-1/pmcc-scanner-sub003/internal/model"
	"github.com/ft1-1/pmcc-scanner-sub003/internal/provider"
)

// enriched is the per-symbol data gathered before position analysis.
type enriched struct {
	row          model.ScreenRow
	chain        *model.OptionChain
	fundamentals *model.Fundamentals
}

// enrich fetches the options chain and enhanced fundamentals for each
// screened symbol, fanning out across symbols up to the configured
// concurrency. Provider exhaustion for one symbol degrades to a warning;
// the symbol is skipped and the run continues.
func (s *Scanner) enrich(ctx context.Context, rows []model.ScreenRow) ([]enriched, []string) {
	concurrency := s.cfg.EnrichConcurrency
	if concurrency <= 0 {
		concurrency = 4
	}

	var mu sync.Mutex
	var out []enriched
	var warnings []string

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for _, row := range rows {
		if gCtx.Err() != nil {
			break
		}
		row := row
		g.Go(func() error {
			e, warn, err := s.enrichOne(gCtx, row)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if gCtx.Err() != nil {
					return nil
				}
				warnings = append(warnings, fmt.Sprintf("%s: %v", row.Symbol, err))
				zap.L().Warn("symbol skipped",
					zap.String("symbol", row.Symbol),
					zap.Error(err),
				)
				return nil
			}
			if warn != "" {
				warnings = append(warnings, warn)
			}
			out = append(out, *e)
			return nil
		})
	}
	_ = g.Wait()

	return out, warnings
}

// enrichOne gathers one symbol's data. A chain failure skips the symbol;
// a fundamentals failure keeps it and comes back as a warning.
func (s *Scanner) enrichOne(ctx context.Context, row model.ScreenRow) (*enriched, string, error) {
	chainResp, err := s.router.Route(ctx, provider.Request{
		Op:     model.OpOptionsChain,
		Symbol: row.Symbol,
	})
	if err != nil {
		return nil, "", err
	}
	chain, ok := chainResp.Data.(*model.OptionChain)
	if !ok {
		return nil, "", fmt.Errorf("options chain payload has unexpected type %T", chainResp.Data)
	}

	e := &enriched{row: row, chain: chain}

	// Fundamentals failing is softer than a missing chain: the candidate
	// can still be analyzed and the AI stage tolerates their absence.
	fundResp, err := s.router.Route(ctx, provider.Request{
		Op:     model.OpFundamentals,
		Symbol: row.Symbol,
	})
	if err != nil {
		if ctx.Err() != nil {
			return e, "", nil
		}
		zap.L().Warn("fundamentals unavailable",
			zap.String("symbol", row.Symbol),
			zap.Error(err),
		)
		return e, fmt.Sprintf("%s: fundamentals unavailable: %v", row.Symbol, err), nil
	}
	if f, ok := fundResp.Data.(*model.Fundamentals); ok {
		e.fundamentals = f
	}

	return e, "", nil
}
