// Package scan implements the staged PMCC scan pipeline: universe
// resolution, screening, enrichment, position scoring, optional AI
// augmentation, score combination, admission and ranking.
package scan

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ft1-1/pmcc-scanner-sub003/internal/ai"
	"github.com/ft1-1/pmcc-scanner-sub003/internal/analyzer"
	"github.com/ft1-1/pmcc-scanner-sub003/internal/config"
	"github.com/ft1-1/pmcc-scanner-sub003/internal/model"
	"github.com/ft1-1/pmcc-scanner-sub003/internal/provider"
	"github.com/ft1-1/pmcc-scanner-sub003/internal/router"
)

// Scanner runs the pipeline. All provider traffic goes through the
// router; position scoring and AI review are delegated to collaborators.
type Scanner struct {
	cfg       config.ScanConfig
	router    *router.Router
	registry  *provider.Registry
	analyzer  analyzer.Analyzer
	reviewer  ai.Reviewer
	aiEnabled bool
	aiTopN    int
}

// New creates a scanner. reviewer may be nil when AI augmentation is
// disabled.
func New(cfg config.ScanConfig, aiCfg config.AIConfig, rt *router.Router, reg *provider.Registry, an analyzer.Analyzer, rev ai.Reviewer) *Scanner {
	return &Scanner{
		cfg:       cfg,
		router:    rt,
		registry:  reg,
		analyzer:  an,
		reviewer:  rev,
		aiEnabled: aiCfg.Enabled && rev != nil,
		aiTopN:    aiCfg.TopN,
	}
}

// Run executes one scan. On a fatal failure the returned result still
// carries the populated error list; on cancellation the result is marked
// partial and holds everything assembled so far.
func (s *Scanner) Run(ctx context.Context) (*model.ScanResult, error) {
	result := &model.ScanResult{
		ID:        uuid.NewString(),
		StartedAt: time.Now(),
	}
	log := zap.L().With(zap.String("scan_id", result.ID))
	log.Info("scan starting", zap.String("universe", s.cfg.Universe))

	defer func() {
		result.CompletedAt = time.Now()
		result.Usage = s.registry.Usage()
	}()

	if len(s.registry.Names()) == 0 {
		return s.fatal(result, "universe", errors.New("no providers configured"))
	}

	// Stage 1: universe resolution. Failure here is fatal; an empty
	// result must never be mistaken for a clean run.
	rows, err := s.resolveUniverse(ctx)
	if err != nil {
		return s.fatal(result, "universe", err)
	}
	result.Funnel.Screened = len(rows)

	// Stage 2: screening, cheap fields only.
	passed := s.screen(rows)
	result.Funnel.Passed = len(passed)
	log.Info("screening complete",
		zap.Int("screened", len(rows)),
		zap.Int("passed", len(passed)),
	)

	// Stage 3: per-symbol enrichment through the router.
	enrichedRows, warnings := s.enrich(ctx, passed)
	result.Warnings = append(result.Warnings, warnings...)
	result.Funnel.Analyzed = len(enrichedRows)
	if interrupted := s.checkCancelled(ctx, result); interrupted {
		return result, ctx.Err()
	}

	// Stage 4: position scoring.
	cands := s.analyze(ctx, enrichedRows)
	if interrupted := s.checkCancelled(ctx, result); interrupted {
		return result, ctx.Err()
	}

	// Stage 5: AI augmentation, serialized by the mandated pacing.
	if s.aiEnabled {
		s.augment(ctx, cands, result)
		if interrupted := s.checkCancelled(ctx, result); interrupted {
			for _, c := range cands {
				c.Combine(s.cfg.TraditionalWeight, s.cfg.AIWeight)
			}
			result.Opportunities = s.rank(s.admit(flatten(cands)))
			result.Funnel.Found = len(result.Opportunities)
			return result, ctx.Err()
		}
	}

	// Stage 6: score combination, only where an opinion exists.
	for _, c := range cands {
		c.Combine(s.cfg.TraditionalWeight, s.cfg.AIWeight)
	}

	// Stages 7-8: admission, dedupe, deterministic ranking.
	result.Opportunities = s.rank(s.admit(flatten(cands)))
	result.Funnel.Found = len(result.Opportunities)

	log.Info("scan complete",
		zap.Int("opportunities", result.Funnel.Found),
		zap.Int("warnings", len(result.Warnings)),
		zap.Duration("duration", time.Since(result.StartedAt)),
	)
	return result, nil
}

// analyze delegates leg selection to the position analyzer. Symbols with
// no qualifying combination are dropped silently.
func (s *Scanner) analyze(ctx context.Context, rows []enriched) []*model.Candidate {
	ranges := model.LegRanges{
		LongMinDTE:    s.cfg.LongMinDTE,
		LongMaxDTE:    s.cfg.LongMaxDTE,
		LongMinDelta:  s.cfg.LongMinDelta,
		LongMaxDelta:  s.cfg.LongMaxDelta,
		ShortMinDTE:   s.cfg.ShortMinDTE,
		ShortMaxDTE:   s.cfg.ShortMaxDTE,
		ShortMinDelta: s.cfg.ShortMinDelta,
		ShortMaxDelta: s.cfg.ShortMaxDelta,
	}

	var cands []*model.Candidate
	for _, e := range rows {
		if ctx.Err() != nil {
			break
		}
		pos, err := s.analyzer.Analyze(ctx, *e.chain, ranges)
		if err != nil {
			if !errors.Is(err, analyzer.ErrNoQualifyingLegs) && ctx.Err() == nil {
				zap.L().Warn("analyzer error",
					zap.String("symbol", e.row.Symbol),
					zap.Error(err),
				)
			}
			continue
		}
		cands = append(cands, &model.Candidate{
			Symbol:           e.row.Symbol,
			UnderlyingPrice:  e.chain.UnderlyingPrice,
			Volume:           e.row.Volume,
			MarketCap:        e.row.MarketCap,
			Analysis:         pos,
			Fundamentals:     e.fundamentals,
			TraditionalScore: pos.Score,
			FoundAt:          time.Now(),
		})
	}
	return cands
}

// augment sends the top-N traditional candidates for AI review, strictly
// one at a time. A failed or malformed review leaves the candidate with
// no opinion and never aborts the run.
func (s *Scanner) augment(ctx context.Context, cands []*model.Candidate, result *model.ScanResult) {
	topN := s.aiTopN
	if topN <= 0 {
		topN = 10
	}

	ordered := make([]*model.Candidate, len(cands))
	copy(ordered, cands)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].TraditionalScore != ordered[j].TraditionalScore {
			return ordered[i].TraditionalScore > ordered[j].TraditionalScore
		}
		return ordered[i].Symbol < ordered[j].Symbol
	})
	if len(ordered) > topN {
		ordered = ordered[:topN]
	}

	for _, c := range ordered {
		if ctx.Err() != nil {
			return
		}
		opinion, err := s.reviewer.Review(ctx, ai.ReviewRequest{
			Symbol:          c.Symbol,
			UnderlyingPrice: c.UnderlyingPrice,
			Analysis:        c.Analysis,
			Fundamentals:    c.Fundamentals,
		})
		if err != nil {
			if ctx.Err() == nil {
				result.Warnings = append(result.Warnings,
					fmt.Sprintf("%s: ai review unavailable: %v", c.Symbol, err))
			}
			continue
		}
		c.AI = opinion
	}
}

// fatal records a scan-level fatal error with the stage that produced it.
func (s *Scanner) fatal(result *model.ScanResult, stage string, err error) (*model.ScanResult, error) {
	ferr := &FatalError{Stage: stage, Err: err}
	result.Errors = append(result.Errors, ferr.Error())
	zap.L().Error("scan aborted", zap.String("stage", stage), zap.Error(err))
	return result, ferr
}

// checkCancelled marks the result partial when the context is done.
// Partial results are handed back to the caller, never discarded.
func (s *Scanner) checkCancelled(ctx context.Context, result *model.ScanResult) bool {
	if ctx.Err() == nil {
		return false
	}
	if !result.Partial {
		result.Partial = true
		result.Warnings = append(result.Warnings, "scan interrupted; partial result")
	}
	return true
}

func flatten(cands []*model.Candidate) []model.Candidate {
	out := make([]model.Candidate, 0, len(cands))
	for _, c := range cands {
		out = append(out, *c)
	}
	return out
}
