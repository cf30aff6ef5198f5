package processor

import (
	"context"
	"time"

	"github.com/nguyentantai21042004/transcript-flow/internal/logger"
)

// Outcome is the terminal result of one file
type Outcome string

const (
	OutcomeDone    Outcome = "done"
	OutcomeSkipped Outcome = "skipped"
	OutcomeFailed  Outcome = "failed"
)

// FileResult describes one processed audio file
type FileResult struct {
	Source  string
	Output  string
	Outcome Outcome
	State   State
	History []State
	// Chunks is zero for files transcribed directly.
	Chunks  int
	Err     error
	Elapsed time.Duration
}

// ConversionResult describes one video converted to audio
type ConversionResult struct {
	Video   string
	Audio   string
	Skipped bool
	Err     error
}

// Summary is the report of one batch
type Summary struct {
	RunID       string
	Conversions []ConversionResult
	Files       []FileResult
	// Fatal is set when the batch stopped early.
	Fatal error
}

// Count returns how many files ended with outcome o
func (s Summary) Count(o Outcome) int {
	n := 0
	for _, f := range s.Files {
		if f.Outcome == o {
			n++
		}
	}
	return n
}

// Failed reports whether the batch needs attention
func (s Summary) Failed() bool {
	if s.Fatal != nil {
		return true
	}
	for _, c := range s.Conversions {
		if c.Err != nil {
			return true
		}
	}
	return s.Count(OutcomeFailed) > 0
}

// Log writes the batch report
func (s Summary) Log(ctx context.Context, log logger.Logger) {
	log.Info(ctx, "========================================")
	log.Info(ctx, "Batch summary: %d done, %d skipped, %d failed",
		s.Count(OutcomeDone), s.Count(OutcomeSkipped), s.Count(OutcomeFailed))
	for _, c := range s.Conversions {
		if c.Err != nil {
			log.Error(ctx, "  conversion failed %s: %v", c.Video, c.Err)
		}
	}
	for _, f := range s.Files {
		if f.Outcome == OutcomeFailed {
			log.Error(ctx, "  failed %s: %v", f.Source, f.Err)
		}
	}
	if s.Fatal != nil {
		log.Error(ctx, "Batch aborted: %v", s.Fatal)
	}
	log.Info(ctx, "========================================")
}
