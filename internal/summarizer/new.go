package summarizer

import (
	"github.com/nguyentantai21042004/transcript-flow/internal/logger"
)

const defaultModel = "gemini-2.5-flash"

type implSummarizer struct {
	generator generator
	logger    logger.Logger
}

// New creates a Summarizer that rotates through the supplied Gemini API keys.
func New(apiKeys []string, model string, log logger.Logger) Summarizer {
	if model == "" {
		model = defaultModel
	}
	return &implSummarizer{
		generator: newGeminiGenerator(apiKeys, model, log),
		logger:    log,
	}
}
