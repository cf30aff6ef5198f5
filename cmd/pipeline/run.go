package main

import (
	"github.com/spf13/cobra"
)

func runBatch(cmd *cobra.Command, configPath string) error {
	ctx, a, cleanup, err := setup(cmd, configPath)
	if err != nil {
		return err
	}
	defer cleanup()

	a.wirePipeline(ctx)
	if err := a.batch(ctx); err != nil {
		a.log.Error(ctx, "Pipeline finished with errors: %v", err)
		return err
	}
	a.log.Info(ctx, "Pipeline finished")
	return nil
}
