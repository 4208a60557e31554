package main

import (
	"context"
	"encoding/json"
	"os"

	"github.com/mohammad-safakhou/brandlens/internal/insight"
	"github.com/spf13/cobra"
)

func aggregateCMD(cfgPath *string) *cobra.Command {
	var brand, domain string
	var compact bool
	cmd := &cobra.Command{
		Use:   "aggregate",
		Short: "Run one aggregation and print the report as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := insight.NewRequest(brand, domain)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			a, err := loadApp(ctx, *cfgPath)
			if err != nil {
				return err
			}
			defer func() {
				sctx, cancel := context.WithTimeout(context.Background(), a.cfg.Storage.PersistTimeout)
				defer cancel()
				a.close(sctx)
			}()
			if err := a.buildOrchestrator(ctx); err != nil {
				return err
			}
			report, err := a.orch.Aggregate(ctx, req)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			if !compact {
				enc.SetIndent("", "  ")
			}
			return enc.Encode(report)
		},
	}
	cmd.Flags().StringVar(&brand, "brand", "", "brand name")
	cmd.Flags().StringVar(&domain, "domain", "", "brand web domain")
	cmd.Flags().BoolVar(&compact, "compact", false, "single-line output")
	return cmd
}
