package main

import (
	"errors"

	"github.com/spf13/cobra"
)

// errBatchFailed makes the process exit non-zero after the summary is logged
var errBatchFailed = errors.New("batch finished with failures")

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:   "pipeline",
		Short: "Turn videos into text transcripts with whisper.cpp",
		Long: "pipeline converts every video in the videos directory to audio, then transcribes each\n" +
			"audio file into <output>/<name>.txt. Long recordings are split into chunks and merged.\n" +
			"Runs are resumable: finished transcripts and chunk transcripts are never redone.",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(cmd, configPath)
		},
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path to the YAML config file (optional)")

	root.AddCommand(
		&cobra.Command{
			Use:   "run",
			Short: "Process the current contents of the input directories once",
			RunE: func(cmd *cobra.Command, args []string) error {
				return runBatch(cmd, configPath)
			},
		},
		&cobra.Command{
			Use:   "watch",
			Short: "Process existing files, then keep processing new media as it arrives",
			RunE: func(cmd *cobra.Command, args []string) error {
				return runWatch(cmd, configPath)
			},
		},
		&cobra.Command{
			Use:   "summarize",
			Short: "Summarize finished transcripts with Gemini and export .docx files",
			RunE: func(cmd *cobra.Command, args []string) error {
				return runSummarize(cmd, configPath)
			},
		},
	)
	return root
}
