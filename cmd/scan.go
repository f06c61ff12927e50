package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/okian/goalpulse/pkg/logger"
)

func newScanCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "scan",
		Short: "Run a single polling cycle and print its report as JSON",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := setup(cmd, flags, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer func() {
				_ = logger.Sync()
			}()
			ctx := cmd.Context()

			app, err := build(ctx, cfg)
			if err != nil {
				return err
			}
			defer app.close()

			if err := app.svc.Start(ctx); err != nil {
				return fmt.Errorf("failed to start service: %w", err)
			}
			report, cycleErr := app.svc.RunCycle(ctx)
			if err := app.svc.Stop(ctx); err != nil {
				logger.Get().Warn(ctx, "service stop failed", logger.Error(err))
			}
			if cycleErr != nil {
				return fmt.Errorf("scan: %w", cycleErr)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		},
	}
}
