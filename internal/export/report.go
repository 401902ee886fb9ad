package export

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ft1-1/pmcc-scanner-sub003/internal/model"
)

// FormatReport renders a markdown summary of one scan for the notifier.
func FormatReport(result *model.ScanResult) string {
	var b strings.Builder

	b.WriteString("# PMCC Scan Report\n\n")
	fmt.Fprintf(&b, "**Scan:** %s\n", result.ID)
	fmt.Fprintf(&b, "**Started:** %s\n", result.StartedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(&b, "**Duration:** %s\n", result.Duration().Round(1e6))
	if result.Partial {
		b.WriteString("**PARTIAL RESULT** (scan interrupted)\n")
	}
	b.WriteString("\n## Funnel\n\n")
	fmt.Fprintf(&b, "- Screened: %d\n", result.Funnel.Screened)
	fmt.Fprintf(&b, "- Passed screening: %d\n", result.Funnel.Passed)
	fmt.Fprintf(&b, "- Analyzed: %d\n", result.Funnel.Analyzed)
	fmt.Fprintf(&b, "- Opportunities: %d\n", result.Funnel.Found)

	if len(result.Opportunities) > 0 {
		b.WriteString("\n## Opportunities\n\n")
		b.WriteString("| # | Symbol | Price | Score | Trad | AI | Conf | Net Debit | R/R |\n")
		b.WriteString("|---|--------|-------|-------|------|----|----- |-----------|-----|\n")
		for i, o := range result.Opportunities {
			aiScore, aiConf := "-", "-"
			if o.AI != nil {
				aiScore = fmt.Sprintf("%.0f", o.AI.Score)
				aiConf = fmt.Sprintf("%.0f", o.AI.Confidence)
			}
			netDebit, rr := "-", "-"
			if o.Analysis != nil {
				netDebit = fmt.Sprintf("%.2f", o.Analysis.NetDebit)
				rr = fmt.Sprintf("%.2f", o.Analysis.RiskReward)
			}
			fmt.Fprintf(&b, "| %d | %s | %.2f | %.1f | %.1f | %s | %s | %s | %s |\n",
				i+1, o.Symbol, o.UnderlyingPrice, o.EffectiveScore(),
				o.TraditionalScore, aiScore, aiConf, netDebit, rr)
		}
	}

	if len(result.Warnings) > 0 {
		b.WriteString("\n## Warnings\n\n")
		for _, w := range result.Warnings {
			fmt.Fprintf(&b, "- %s\n", w)
		}
	}
	if len(result.Errors) > 0 {
		b.WriteString("\n## Errors\n\n")
		for _, e := range result.Errors {
			fmt.Fprintf(&b, "- %s\n", e)
		}
	}

	if len(result.Usage) > 0 {
		b.WriteString("\n## Provider Usage\n\n")
		b.WriteString("| Provider | Calls | Failures | Credits |\n")
		b.WriteString("|----------|-------|----------|--------|\n")
		names := make([]string, 0, len(result.Usage))
		for name := range result.Usage {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			u := result.Usage[name]
			fmt.Fprintf(&b, "| %s | %d | %d | %d |\n", name, u.Calls, u.Failures, u.CreditsUsed)
		}
	}

	return b.String()
}
