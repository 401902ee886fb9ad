package main

import (
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/ft1-1/pmcc-scanner-sub003/internal/ai"
	"github.com/ft1-1/pmcc-scanner-sub003/internal/analyzer"
	"github.com/ft1-1/pmcc-scanner-sub003/internal/export"
	"github.com/ft1-1/pmcc-scanner-sub003/internal/provider"
	"github.com/ft1-1/pmcc-scanner-sub003/internal/router"
	"github.com/ft1-1/pmcc-scanner-sub003/internal/scan"
	"github.com/ft1-1/pmcc-scanner-sub003/pkg/eodhd"
	"github.com/ft1-1/pmcc-scanner-sub003/pkg/yahoo"
)

// scanEnv bundles the wired components shared by the scan and schedule
// commands.
type scanEnv struct {
	registry *provider.Registry
	oplog    *provider.OperationLog
	router   *router.Router
	scanner  *scan.Scanner
	writer   *export.Writer
	notifier export.Notifier
}

// initScanEnv builds the provider registry, router and scanner from the
// loaded configuration. At least one provider must be configured.
func initScanEnv() (*scanEnv, error) {
	registry := provider.NewRegistry()

	if cfg.Providers.EODHD.Key != "" {
		client := eodhd.NewClient(cfg.Providers.EODHD.Key, eodhd.WithBaseURL(cfg.Providers.EODHD.BaseURL))
		registry.Register(provider.NewEODHD(client), cfg.Providers.EODHD.CreditsLimit)
	} else {
		zap.L().Warn("eodhd key not configured, provider disabled")
	}

	yahooClient := yahoo.NewClient(yahoo.WithBaseURL(cfg.Providers.Yahoo.BaseURL))
	registry.Register(provider.NewYahoo(yahooClient), cfg.Providers.Yahoo.CreditsLimit)

	if len(registry.Names()) == 0 {
		return nil, eris.New("no providers configured")
	}

	oplog := provider.NewOperationLog(cfg.Routing.OperationLogCap)
	rt := router.New(registry, oplog, cfg.Routing)

	var reviewer ai.Reviewer
	if cfg.AI.Enabled {
		if cfg.AI.Key == "" {
			zap.L().Warn("ai enabled but no key configured, augmentation disabled")
		} else {
			reviewer = ai.NewClaude(cfg.AI)
		}
	}

	scanner := scan.New(cfg.Scan, cfg.AI, rt, registry, analyzer.NewPMCC(), reviewer)

	return &scanEnv{
		registry: registry,
		oplog:    oplog,
		router:   rt,
		scanner:  scanner,
		writer:   export.NewWriter(cfg.Export.Dir),
		notifier: export.LogNotifier{},
	}, nil
}
