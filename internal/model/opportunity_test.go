package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCandidate_CombineSetsScoreOnlyWithOpinion(t *testing.T) {
	c := Candidate{TraditionalScore: 70}

	c.Combine(0.6, 0.4)
	assert.Nil(t, c.CombinedScore, "no opinion, no combined score")
	assert.Equal(t, 70.0, c.EffectiveScore())

	c.AI = &AIOpinion{Score: 90, Confidence: 80}
	c.Combine(0.6, 0.4)
	require.NotNil(t, c.CombinedScore)
	assert.InDelta(t, 78.0, *c.CombinedScore, 0.001)
	assert.InDelta(t, 78.0, c.EffectiveScore(), 0.001)
}

func TestCandidate_CombineZeroOpinionIsNotAbsence(t *testing.T) {
	c := Candidate{TraditionalScore: 70, AI: &AIOpinion{Score: 0, Confidence: 90}}
	c.Combine(0.6, 0.4)

	require.NotNil(t, c.CombinedScore, "a legitimate zero score still produces a combined score")
	assert.InDelta(t, 42.0, *c.CombinedScore, 0.001)
}

func TestCandidate_CombineDoesNotRenormalizeWeights(t *testing.T) {
	c := Candidate{TraditionalScore: 100, AI: &AIOpinion{Score: 100}}

	// Weights sum to 0.5; the result reflects that, unscaled.
	c.Combine(0.25, 0.25)
	require.NotNil(t, c.CombinedScore)
	assert.InDelta(t, 50.0, *c.CombinedScore, 0.001)
}

func TestCandidate_CombineClearsStaleScoreWhenOpinionRemoved(t *testing.T) {
	c := Candidate{TraditionalScore: 70, AI: &AIOpinion{Score: 90}}
	c.Combine(0.6, 0.4)
	require.NotNil(t, c.CombinedScore)

	c.AI = nil
	c.Combine(0.6, 0.4)
	assert.Nil(t, c.CombinedScore)
}
