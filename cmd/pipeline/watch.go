package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nguyentantai21042004/transcript-flow/internal/processor"
	"github.com/nguyentantai21042004/transcript-flow/internal/watcher"
)

func runWatch(cmd *cobra.Command, configPath string) error {
	ctx, a, cleanup, err := setup(cmd, configPath)
	if err != nil {
		return err
	}
	defer cleanup()

	a.wirePipeline(ctx)

	dirs := []string{a.cfg.Paths.Videos, a.cfg.Paths.Audio}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}

	w, err := watcher.New(dirs, func(ctx context.Context) error {
		err := a.batch(ctx)
		if errors.Is(err, errBatchFailed) {
			// per-file failures are already in the summary; keep watching
			return nil
		}
		return err
	}, a.log, watcher.Options{
		Match: func(path string) bool {
			return processor.IsVideo(path) || processor.IsAudio(path)
		},
		RunOnStart: true,
	})
	if err != nil {
		a.log.Error(ctx, "Failed to create watcher: %v", err)
		return err
	}
	defer w.Stop()

	a.log.Info(ctx, "========================================")
	a.log.Info(ctx, "Transcript Pipeline is ready!")
	a.log.Info(ctx, "Monitoring: %s, %s", a.cfg.Paths.Videos, a.cfg.Paths.Audio)
	a.log.Info(ctx, "Output: %s", a.cfg.Paths.Output)
	a.log.Info(ctx, "Press Ctrl+C to stop")
	a.log.Info(ctx, "========================================")

	if err := w.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		a.log.Error(ctx, "Watcher error: %v", err)
		return err
	}

	a.log.Info(ctx, "Transcript Pipeline stopped")
	return nil
}
