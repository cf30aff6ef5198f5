package processor

import "context"

// Processor runs the video -> audio -> transcript batch
type Processor interface {
	// Run converts pending videos, then transcribes every discovered audio
	// file that has no final transcript yet. The error is non-nil only for
	// batch-fatal conditions; per-file failures are in the Summary.
	Run(ctx context.Context) (Summary, error)
	// Process drives a single audio file through the pipeline.
	Process(ctx context.Context, audioPath string) FileResult
}
