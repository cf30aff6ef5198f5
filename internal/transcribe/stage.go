// Package transcribe runs one audio unit (a whole file or a chunk) through the
// model and persists the text.
package transcribe

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nguyentantai21042004/transcript-flow/internal/fileutil"
	"github.com/nguyentantai21042004/transcript-flow/internal/logger"
	"github.com/nguyentantai21042004/transcript-flow/internal/model"
)

// ErrTranscriptionFailed wraps every per-unit decoding or persistence failure.
var ErrTranscriptionFailed = errors.New("transcription failed")

// Stage transcribes units with a shared model Manager
type Stage struct {
	manager *model.Manager
	logger  logger.Logger
	opts    model.Options
	observe func(elapsed time.Duration, err error)
}

// New creates a Stage
func New(manager *model.Manager, log logger.Logger, opts model.Options) *Stage {
	return &Stage{manager: manager, logger: log, opts: opts}
}

// Observe registers a callback invoked after each model call
func (s *Stage) Observe(fn func(elapsed time.Duration, err error)) {
	s.observe = fn
}

// Run transcribes audioPath and writes the normalized text to outPath.
// The model handle is released before Run returns, whatever happens.
// Model unavailability is returned unwrapped so callers can halt the batch.
func (s *Stage) Run(ctx context.Context, audioPath, outPath string) (string, error) {
	start := time.Now()
	s.logger.Info(ctx, "Transcribing %s", audioPath)

	var text string
	err := s.manager.Do(ctx, func(h model.Handle) error {
		raw, err := h.Transcribe(ctx, audioPath, s.opts)
		if err != nil {
			return err
		}
		text = Normalize(raw)
		return nil
	})
	if s.observe != nil {
		s.observe(time.Since(start), err)
	}
	if err != nil {
		if errors.Is(err, model.ErrModelUnavailable) {
			return "", err
		}
		return "", fmt.Errorf("%w: %s: %v", ErrTranscriptionFailed, audioPath, err)
	}

	if err := fileutil.WriteFile(outPath, []byte(text)); err != nil {
		return "", fmt.Errorf("%w: %v", ErrTranscriptionFailed, err)
	}

	s.logger.Info(ctx, "Transcribed %s -> %s (%s)", audioPath, outPath, time.Since(start).Round(time.Millisecond))
	return text, nil
}

// Normalize trims surrounding whitespace and ends non-empty text with one
// newline, so unit texts concatenate cleanly.
func Normalize(raw string) string {
	text := strings.TrimSpace(raw)
	if text == "" {
		return ""
	}
	return text + "\n"
}
