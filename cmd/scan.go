package main

import (
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ft1-1/pmcc-scanner-sub003/internal/export"
)

var (
	scanUniverse string
	scanSymbols  []string
	scanNoAI     bool
	scanNoExport bool
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run a single scan and export the result",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if scanUniverse != "" {
			cfg.Scan.Universe = scanUniverse
		}
		if len(scanSymbols) > 0 {
			cfg.Scan.Universe = "static"
			cfg.Scan.Symbols = scanSymbols
		}
		if scanNoAI {
			cfg.AI.Enabled = false
		}

		env, err := initScanEnv()
		if err != nil {
			return err
		}

		result, runErr := env.scanner.Run(ctx)

		// A partial or failed run still carries whatever was assembled;
		// export it before reporting the error.
		if !scanNoExport && result != nil {
			path, err := env.writer.Save(result)
			if err != nil {
				zap.L().Error("export failed", zap.Error(err))
			} else {
				zap.L().Info("result exported", zap.String("path", path))
			}
			_ = env.notifier.Notify(ctx, result, export.FormatReport(result))
		}

		if runErr != nil {
			return eris.Wrap(runErr, "scan")
		}

		zap.L().Info("scan finished",
			zap.Int("screened", result.Funnel.Screened),
			zap.Int("passed", result.Funnel.Passed),
			zap.Int("analyzed", result.Funnel.Analyzed),
			zap.Int("found", result.Funnel.Found),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func init() {
	scanCmd.Flags().StringVar(&scanUniverse, "universe", "", "universe selector: static, custom, screener (default from config)")
	scanCmd.Flags().StringSliceVar(&scanSymbols, "symbols", nil, "override symbol list (implies static universe)")
	scanCmd.Flags().BoolVar(&scanNoAI, "no-ai", false, "disable AI augmentation for this run")
	scanCmd.Flags().BoolVar(&scanNoExport, "no-export", false, "skip writing the result file")
	rootCmd.AddCommand(scanCmd)
}
