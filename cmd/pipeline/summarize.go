package main

import (
	"github.com/spf13/cobra"

	"github.com/nguyentantai21042004/transcript-flow/internal/summarizer"
)

func runSummarize(cmd *cobra.Command, configPath string) error {
	ctx, a, cleanup, err := setup(cmd, configPath)
	if err != nil {
		return err
	}
	defer cleanup()

	s := summarizer.New(a.cfg.Gemini.APIKeys, a.cfg.Gemini.Model, a.log)
	report, err := s.SummarizeAll(ctx, a.cfg.Paths.Output, a.cfg.Paths.Summaries)
	if err != nil {
		a.log.Error(ctx, "Summarize failed: %v", err)
		return err
	}
	if report.Failed > 0 {
		return errBatchFailed
	}
	return nil
}
