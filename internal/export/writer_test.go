package export

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ft1-1/pmcc-scanner-sub003/internal/model"
)

func sampleResult() *model.ScanResult {
	combined := 74.2
	started := time.Date(2026, 8, 31, 9, 30, 0, 0, time.UTC)
	return &model.ScanResult{
		ID:          "0b7e6c1a-test",
		StartedAt:   started,
		CompletedAt: started.Add(4 * time.Minute),
		Funnel:      model.Funnel{Screened: 50, Passed: 20, Analyzed: 18, Found: 2},
		Opportunities: []model.Candidate{
			{
				Symbol:           "AAPL",
				UnderlyingPrice:  182.50,
				TraditionalScore: 68.5,
				AI:               &model.AIOpinion{Score: 83, Confidence: 77},
				CombinedScore:    &combined,
				Analysis:         &model.PositionAnalysis{NetDebit: 31.2, RiskReward: 0.44, Score: 68.5},
			},
			{
				Symbol:           "MSFT",
				UnderlyingPrice:  410.00,
				TraditionalScore: 61.0,
			},
		},
		Usage: map[string]model.ProviderUsage{
			"eodhd": {Calls: 40, Failures: 1, CreditsUsed: 120},
			"yahoo": {Calls: 3},
		},
		Warnings: []string{"NVDA: options chain unavailable"},
	}
}

func TestWriter_SaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(filepath.Join(dir, "nested", "results"))

	result := sampleResult()
	path, err := w.Save(result)
	require.NoError(t, err)
	assert.Contains(t, path, "scan-0b7e6c1a-test.json")

	loaded, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, result.ID, loaded.ID)
	assert.Equal(t, result.Funnel, loaded.Funnel)
	assert.Equal(t, result.Warnings, loaded.Warnings)
	require.Len(t, loaded.Opportunities, 2)

	// Opinion and combined score survive; their absence survives too.
	aapl, msft := loaded.Opportunities[0], loaded.Opportunities[1]
	require.NotNil(t, aapl.AI)
	require.NotNil(t, aapl.CombinedScore)
	assert.Equal(t, 74.2, *aapl.CombinedScore)
	assert.Nil(t, msft.AI)
	assert.Nil(t, msft.CombinedScore)

	assert.Equal(t, result.Usage, loaded.Usage)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	assert.Error(t, err)
}

func TestFormatReport(t *testing.T) {
	report := FormatReport(sampleResult())

	assert.Contains(t, report, "# PMCC Scan Report")
	assert.Contains(t, report, "0b7e6c1a-test")
	assert.Contains(t, report, "- Screened: 50")
	assert.Contains(t, report, "- Opportunities: 2")

	// The AI columns show the opinion where present, dashes where not.
	assert.Contains(t, report, "| 1 | AAPL |")
	assert.Contains(t, report, "| 83 | 77 |")
	assert.Contains(t, report, "| 2 | MSFT |")
	assert.Contains(t, report, "| - | - |")

	assert.Contains(t, report, "NVDA: options chain unavailable")

	// Provider rows are sorted by name.
	eodhdRow := strings.Index(report, "| eodhd |")
	yahooRow := strings.Index(report, "| yahoo |")
	require.Greater(t, eodhdRow, 0)
	require.Greater(t, yahooRow, 0)
	assert.Less(t, eodhdRow, yahooRow)
}

func TestFormatReport_PartialMarker(t *testing.T) {
	result := sampleResult()
	result.Partial = true
	assert.Contains(t, FormatReport(result), "PARTIAL RESULT")
}
