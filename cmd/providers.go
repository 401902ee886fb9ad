package main

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ft1-1/pmcc-scanner-sub003/internal/model"
)

var providersProbe bool

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "List configured providers and their status",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initScanEnv()
		if err != nil {
			return err
		}

		if providersProbe {
			for _, name := range env.registry.Names() {
				p, err := env.registry.Get(name)
				if err != nil {
					continue
				}
				probeCtx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
				env.registry.RecordProbe(name, p.Probe(probeCtx), cfg.Routing.FailureThreshold)
				cancel()
			}
		}

		type entry struct {
			Name         string            `json:"name"`
			Available    bool              `json:"available"`
			Capabilities []model.Operation `json:"capabilities"`
			CreditsUsed  int               `json:"credits_used"`
			CreditsLimit int               `json:"credits_limit"`
		}

		var out []entry
		for _, snap := range env.registry.Snapshots() {
			p, err := env.registry.Get(snap.Name)
			if err != nil {
				continue
			}
			out = append(out, entry{
				Name:         snap.Name,
				Available:    snap.Available,
				Capabilities: p.Capabilities(),
				CreditsUsed:  snap.CreditsUsed,
				CreditsLimit: snap.CreditsLimit,
			})
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

func init() {
	providersCmd.Flags().BoolVar(&providersProbe, "probe", false, "probe each provider before reporting")
	rootCmd.AddCommand(providersCmd)
}
