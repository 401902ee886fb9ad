// Package ai augments rule-scored candidates with a Claude-derived score
// and confidence. The service is treated as untrusted and optional: any
// shape violation degrades to "no AI opinion".
package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/ft1-1/pmcc-scanner-sub003/internal/config"
	"github.com/ft1-1/pmcc-scanner-sub003/internal/model"
	"github.com/ft1-1/pmcc-scanner-sub003/internal/resilience"
)

// ErrInvalidResponse reports a malformed or out-of-range AI response.
// Callers leave the candidate without an opinion; it is never fatal.
var ErrInvalidResponse = eris.New("ai: invalid response shape")

// ReviewRequest bundles everything the reasoning service sees for one
// candidate.
type ReviewRequest struct {
	Symbol          string
	UnderlyingPrice float64
	Analysis        *model.PositionAnalysis
	Fundamentals    *model.Fundamentals
	MarketContext   string
}

// Reviewer scores one candidate. Implementations must serialize calls
// honoring the mandated minimum gap between requests.
type Reviewer interface {
	Review(ctx context.Context, req ReviewRequest) (*model.AIOpinion, error)
}

// Claude is the Anthropic-backed reviewer. A rate limiter enforces the
// minimum inter-call delay and a circuit breaker stops hammering a failing
// API mid-scan.
type Claude struct {
	client    sdk.Client
	model     string
	maxTokens int64
	limiter   *rate.Limiter
	breaker   *resilience.Breaker

	send func(ctx context.Context, prompt string) (string, error)
}

// NewClaude creates a reviewer from configuration.
func NewClaude(cfg config.AIConfig) *Claude {
	gap := cfg.MinCallGap()
	if gap <= 0 {
		gap = time.Second
	}
	maxTokens := int64(cfg.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	c := &Claude{
		client:    sdk.NewClient(option.WithAPIKey(cfg.Key)),
		model:     cfg.Model,
		maxTokens: maxTokens,
		limiter:   rate.NewLimiter(rate.Every(gap), 1),
		breaker:   resilience.NewBreaker(cfg.BreakerThreshold, 2*time.Minute),
	}
	c.send = c.sendMessage
	return c
}

// verdict is the JSON shape the model is asked to produce.
type verdict struct {
	Score          *float64          `json:"score"`
	Confidence     *float64          `json:"confidence"`
	Recommendation string            `json:"recommendation"`
	Reasoning      string            `json:"reasoning"`
	Insights       map[string]string `json:"insights"`
}

// Review sends one candidate for scoring. It blocks on the inter-call
// pacing limiter before issuing the request.
func (c *Claude) Review(ctx context.Context, req ReviewRequest) (*model.AIOpinion, error) {
	if err := c.breaker.Allow(); err != nil {
		return nil, err
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "ai: pacing wait")
	}

	text, err := c.send(ctx, buildPrompt(req))
	c.breaker.Record(err)
	if err != nil {
		return nil, eris.Wrap(err, "ai: create message")
	}

	opinion, parseErr := parseOpinion(text)
	if parseErr != nil {
		zap.L().Warn("ai: unusable response",
			zap.String("symbol", req.Symbol),
			zap.Error(parseErr),
		)
		return nil, parseErr
	}
	return opinion, nil
}

const systemPrompt = `You are an options strategist reviewing poor man's covered call (PMCC) candidates.
Respond with a single JSON object and nothing else:
{"score": 0-100, "confidence": 0-100, "recommendation": "buy|watch|avoid", "reasoning": "...", "insights": {"key": "value"}}`

func buildPrompt(req ReviewRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Symbol: %s\nUnderlying price: %.2f\n", req.Symbol, req.UnderlyingPrice)
	if a := req.Analysis; a != nil {
		fmt.Fprintf(&b, "Long leg: strike %.2f exp %s delta %.2f\n",
			a.LongLeg.Strike, a.LongLeg.Expiration.Format("2006-01-02"), a.LongLeg.Delta)
		fmt.Fprintf(&b, "Short leg: strike %.2f exp %s delta %.2f\n",
			a.ShortLeg.Strike, a.ShortLeg.Expiration.Format("2006-01-02"), a.ShortLeg.Delta)
		fmt.Fprintf(&b, "Net debit: %.2f  Max profit: %.2f  Risk/reward: %.2f  Rule score: %.1f\n",
			a.NetDebit, a.MaxProfit, a.RiskReward, a.Score)
	}
	if f := req.Fundamentals; f != nil {
		fmt.Fprintf(&b, "Fundamentals: mcap %.0f, P/E %.1f, EPS growth %.1f%%, beta %.2f, sector %s, trend %s\n",
			f.MarketCap, f.PERatio, f.EPSGrowth, f.Beta, f.Sector, f.Trend)
	}
	if req.MarketContext != "" {
		fmt.Fprintf(&b, "Market context: %s\n", req.MarketContext)
	}
	b.WriteString("Evaluate this PMCC setup.")
	return b.String()
}

// sendMessage issues the API request and flattens the response text.
func (c *Claude) sendMessage(ctx context.Context, prompt string) (string, error) {
	msg, err := c.client.Messages.New(ctx, sdk.MessageNewParams{
		Model:     sdk.Model(c.model),
		MaxTokens: c.maxTokens,
		System: []sdk.TextBlockParam{{
			Text: systemPrompt,
		}},
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", err
	}
	return messageText(msg), nil
}

func messageText(msg *sdk.Message) string {
	var b strings.Builder
	for _, block := range msg.Content {
		b.WriteString(block.Text)
	}
	return b.String()
}

// parseOpinion extracts and validates the verdict JSON. Score and
// confidence must both be present and within 0-100.
func parseOpinion(text string) (*model.AIOpinion, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil, eris.Wrap(ErrInvalidResponse, "no JSON object in response")
	}

	var v verdict
	if err := json.Unmarshal([]byte(text[start:end+1]), &v); err != nil {
		return nil, eris.Wrap(ErrInvalidResponse, err.Error())
	}
	if v.Score == nil || v.Confidence == nil {
		return nil, eris.Wrap(ErrInvalidResponse, "missing score or confidence")
	}
	if *v.Score < 0 || *v.Score > 100 || *v.Confidence < 0 || *v.Confidence > 100 {
		return nil, eris.Wrap(ErrInvalidResponse, "score or confidence out of range")
	}

	return &model.AIOpinion{
		Score:          *v.Score,
		Confidence:     *v.Confidence,
		Recommendation: v.Recommendation,
		Reasoning:      v.Reasoning,
		Insights:       v.Insights,
	}, nil
}
