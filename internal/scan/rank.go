package scan

import (
	"sort"

	"github.com/ft1-1/pmcc-scanner-sub003/internal/model"
)

// admit keeps candidates whose effective score clears min_combined_score
// and, when AI augmentation is enabled, whose confidence clears
// min_ai_confidence. Rejections are counted by the caller via the length
// difference; nothing vanishes silently.
func (s *Scanner) admit(cands []model.Candidate) []model.Candidate {
	out := make([]model.Candidate, 0, len(cands))
	for _, c := range cands {
		if c.EffectiveScore() < s.cfg.MinCombinedScore {
			continue
		}
		if s.aiEnabled {
			// A candidate with no opinion has no confidence to clear;
			// it is judged on effective score alone.
			if c.AI != nil && c.AI.Confidence < s.cfg.MinAIConfidence {
				continue
			}
		}
		out = append(out, c)
	}
	return out
}

// rank deduplicates (best per symbol when configured), orders candidates
// deterministically, and applies the result cap. Ordering: effective score
// descending, then traditional score descending, then symbol ascending.
func (s *Scanner) rank(cands []model.Candidate) []model.Candidate {
	if s.cfg.BestPerSymbolOnly {
		best := make(map[string]model.Candidate, len(cands))
		for _, c := range cands {
			cur, ok := best[c.Symbol]
			if !ok || c.EffectiveScore() > cur.EffectiveScore() {
				best[c.Symbol] = c
			}
		}
		cands = make([]model.Candidate, 0, len(best))
		for _, c := range best {
			cands = append(cands, c)
		}
	}

	sort.SliceStable(cands, func(i, j int) bool {
		si, sj := cands[i].EffectiveScore(), cands[j].EffectiveScore()
		if si != sj {
			return si > sj
		}
		if cands[i].TraditionalScore != cands[j].TraditionalScore {
			return cands[i].TraditionalScore > cands[j].TraditionalScore
		}
		return cands[i].Symbol < cands[j].Symbol
	})

	if s.cfg.MaxResults > 0 && len(cands) > s.cfg.MaxResults {
		cands = cands[:s.cfg.MaxResults]
	}
	return cands
}
