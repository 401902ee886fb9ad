package model

import "time"

// LegRanges are the leg-selection windows handed opaquely to the position
// analyzer: DTE and delta bounds for the long and short legs.
type LegRanges struct {
	LongMinDTE    int     `json:"long_min_dte"`
	LongMaxDTE    int     `json:"long_max_dte"`
	LongMinDelta  float64 `json:"long_min_delta"`
	LongMaxDelta  float64 `json:"long_max_delta"`
	ShortMinDTE   int     `json:"short_min_dte"`
	ShortMaxDTE   int     `json:"short_max_dte"`
	ShortMinDelta float64 `json:"short_min_delta"`
	ShortMaxDelta float64 `json:"short_max_delta"`
}

// PositionAnalysis is the analyzer's verdict for one symbol: the chosen
// legs plus risk metrics. The pipeline treats its internals as opaque and
// reads only Score.
type PositionAnalysis struct {
	LongLeg    OptionContract `json:"long_leg"`
	ShortLeg   OptionContract `json:"short_leg"`
	NetDebit   float64        `json:"net_debit"`
	MaxProfit  float64        `json:"max_profit"`
	RiskReward float64        `json:"risk_reward"`
	Score      float64        `json:"score"` // 0-100 traditional score
}

// AIOpinion is the parsed response of the AI reasoning service for one
// candidate. A nil *AIOpinion means "no AI opinion": either augmentation
// was disabled, or the response was missing or malformed. A present
// opinion with Score zero is a legitimate low score and must stay
// distinguishable from absence.
type AIOpinion struct {
	Score          float64           `json:"score"`      // 0-100
	Confidence     float64           `json:"confidence"` // 0-100
	Recommendation string            `json:"recommendation"`
	Reasoning      string            `json:"reasoning,omitempty"`
	Insights       map[string]string `json:"insights,omitempty"`
}

// Candidate is one symbol flowing through a single scan. It is created at
// screening, mutated by the scoring stages, and either retained as an
// opportunity or discarded at admission.
type Candidate struct {
	Symbol          string  `json:"symbol"`
	UnderlyingPrice float64 `json:"underlying_price"`
	Volume          int64   `json:"volume"`
	MarketCap       float64 `json:"market_cap"`

	Analysis     *PositionAnalysis `json:"analysis,omitempty"`
	Fundamentals *Fundamentals     `json:"fundamentals,omitempty"`

	TraditionalScore float64    `json:"traditional_score"`
	AI               *AIOpinion `json:"ai,omitempty"`

	// CombinedScore is set iff AI is set.
	CombinedScore *float64 `json:"combined_score,omitempty"`

	FoundAt time.Time `json:"found_at"`
}

// EffectiveScore is the score used for admission and ranking: the combined
// score when an AI opinion exists, the traditional score otherwise.
func (c Candidate) EffectiveScore() float64 {
	if c.CombinedScore != nil {
		return *c.CombinedScore
	}
	return c.TraditionalScore
}

// Combine sets the combined score from the configured weights. It is a
// no-op when the candidate has no AI opinion. Weights are applied exactly
// as configured, with no renormalization.
func (c *Candidate) Combine(wTrad, wAI float64) {
	if c.AI == nil {
		c.CombinedScore = nil
		return
	}
	s := c.TraditionalScore*wTrad + c.AI.Score*wAI
	c.CombinedScore = &s
}
