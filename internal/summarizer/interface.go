package summarizer

import (
	"context"
	"errors"
)

// ErrNoAPIKeys is returned when no Gemini key is configured
var ErrNoAPIKeys = errors.New("no Gemini API keys configured")

// Summarizer turns final transcripts into markdown and .docx summaries.
type Summarizer interface {
	SummarizeAll(ctx context.Context, transcriptDir, destDir string) (Report, error)
}

// Report counts what one SummarizeAll call did
type Report struct {
	Succeeded int
	Skipped   int
	Failed    int
}

// generator produces the summary text for a prompt
type generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}
