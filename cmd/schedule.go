package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ft1-1/pmcc-scanner-sub003/internal/export"
	"github.com/ft1-1/pmcc-scanner-sub003/internal/provider"
	"github.com/ft1-1/pmcc-scanner-sub003/internal/schedule"
)

var (
	schedulePort int
	scheduleOnce bool
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run the scan on the configured cron schedule",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initScanEnv()
		if err != nil {
			return err
		}

		run := func(ctx context.Context) error {
			result, runErr := env.scanner.Run(ctx)
			if result != nil {
				if path, err := env.writer.Save(result); err != nil {
					zap.L().Error("export failed", zap.Error(err))
				} else {
					zap.L().Info("result exported", zap.String("path", path))
				}
				_ = env.notifier.Notify(ctx, result, export.FormatReport(result))
			}
			return runErr
		}

		sched, err := schedule.New("pmcc-scan", cfg.Schedule, run)
		if err != nil {
			return eris.Wrap(err, "build scheduler")
		}

		if scheduleOnce {
			sched.RunOnce(ctx)
			return nil
		}

		prober := provider.NewProber(env.registry, cfg.Routing.HealthInterval(), cfg.Routing.FailureThreshold)
		go prober.Run(ctx)

		port := schedulePort
		if port == 0 {
			port = cfg.Server.Port
		}
		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: statusMux(sched, env),
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down status server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()

		go func() {
			zap.L().Info("status server listening", zap.Int("port", port))
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				zap.L().Error("status server failed", zap.Error(err))
			}
		}()

		zap.L().Info("scheduler starting",
			zap.String("cron", cfg.Schedule.Cron),
			zap.String("timezone", cfg.Schedule.Timezone),
			zap.Time("next_fire", sched.NextFire()),
		)
		sched.Run(ctx)
		return nil
	},
}

// providerStatus is the wire shape of one registry snapshot.
type providerStatus struct {
	Name                string    `json:"name"`
	Available           bool      `json:"available"`
	CreditsUsed         int       `json:"credits_used"`
	CreditsLimit        int       `json:"credits_limit"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	LastHealthCheck     time.Time `json:"last_health_check,omitempty"`
	Calls               int       `json:"calls"`
	Failures            int       `json:"failures"`
	AvgLatencyMs        int64     `json:"avg_latency_ms"`
}

func statusMux(sched *schedule.Scheduler, env *scanEnv) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		stats := sched.History().Stats()
		code := http.StatusOK
		if stats.Health == schedule.HealthUnhealthy || stats.Health == schedule.HealthCritical {
			code = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(map[string]any{"status": stats.Health})
	})

	mux.HandleFunc("GET /status", func(w http.ResponseWriter, r *http.Request) {
		snaps := env.registry.Snapshots()
		providers := make([]providerStatus, 0, len(snaps))
		for _, s := range snaps {
			providers = append(providers, providerStatus{
				Name:                s.Name,
				Available:           s.Available,
				CreditsUsed:         s.CreditsUsed,
				CreditsLimit:        s.CreditsLimit,
				ConsecutiveFailures: s.ConsecutiveFailures,
				LastHealthCheck:     s.LastHealthCheck,
				Calls:               s.Calls,
				Failures:            s.Failures,
				AvgLatencyMs:        s.AvgLatency.Milliseconds(),
			})
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"next_fire":  sched.NextFire(),
			"stats":      sched.History().Stats(),
			"executions": sched.History().Entries(),
			"providers":  providers,
			"operations": env.oplog.Len(),
		})
	})

	return mux
}

func init() {
	scheduleCmd.Flags().IntVar(&schedulePort, "port", 0, "status server port (default from config)")
	scheduleCmd.Flags().BoolVar(&scheduleOnce, "once", false, "execute one scheduled run immediately and exit")
	rootCmd.AddCommand(scheduleCmd)
}
