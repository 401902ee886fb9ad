package export

import (
	"context"

	"go.uber.org/zap"

	"github.com/ft1-1/pmcc-scanner-sub003/internal/model"
)

// Notifier receives the finalized scan result. Delivery transport and
// formatting live behind this interface.
type Notifier interface {
	Notify(ctx context.Context, result *model.ScanResult, report string) error
}

// LogNotifier writes the scan summary to the structured log. It is the
// default sink when no delivery transport is configured.
type LogNotifier struct{}

// Notify logs the summary.
func (LogNotifier) Notify(_ context.Context, result *model.ScanResult, _ string) error {
	zap.L().Info("scan result",
		zap.String("scan_id", result.ID),
		zap.Int("screened", result.Funnel.Screened),
		zap.Int("passed", result.Funnel.Passed),
		zap.Int("analyzed", result.Funnel.Analyzed),
		zap.Int("found", result.Funnel.Found),
		zap.Int("warnings", len(result.Warnings)),
		zap.Int("errors", len(result.Errors)),
		zap.Bool("partial", result.Partial),
	)
	return nil
}
