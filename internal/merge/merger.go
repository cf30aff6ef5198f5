// Package merge stitches chunk transcripts back into one transcript.
package merge

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/nguyentantai21042004/transcript-flow/internal/chunk"
	"github.com/nguyentantai21042004/transcript-flow/internal/fileutil"
	"github.com/nguyentantai21042004/transcript-flow/internal/logger"
)

// ErrIncompleteChunkSet blocks a merge when any chunk has no transcript.
var ErrIncompleteChunkSet = errors.New("incomplete chunk set")

// Merger writes final transcripts from chunk transcripts
type Merger struct {
	logger logger.Logger
	remove func(string) error
}

// New creates a Merger
func New(log logger.Logger) *Merger {
	return &Merger{logger: log, remove: fileutil.Remove}
}

// Merge concatenates units in plan index order and writes outPath. Nothing
// is written when a unit is missing. artifacts are removed afterwards on a
// best-effort basis.
func (m *Merger) Merge(ctx context.Context, plan chunk.Plan, units map[int]string, outPath string, artifacts []string) error {
	if plan.Len() == 0 {
		return fmt.Errorf("%w: empty plan", ErrIncompleteChunkSet)
	}

	var missing []string
	for _, spec := range plan.Specs {
		if _, ok := units[spec.Index]; !ok {
			missing = append(missing, fmt.Sprint(spec.Index))
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %d/%d chunk(s): %s",
			ErrIncompleteChunkSet, len(missing), plan.Len(), strings.Join(missing, ", "))
	}

	var b strings.Builder
	for _, spec := range plan.Specs {
		b.WriteString(units[spec.Index])
	}

	if err := fileutil.WriteFile(outPath, []byte(b.String())); err != nil {
		return fmt.Errorf("write merged transcript: %w", err)
	}
	m.logger.Info(ctx, "Merged %d chunk transcript(s) into %s", plan.Len(), outPath)

	m.cleanup(ctx, artifacts)
	return nil
}

func (m *Merger) cleanup(ctx context.Context, paths []string) {
	for _, p := range paths {
		if err := m.remove(p); err != nil {
			m.logger.Warn(ctx, "Failed to cleanup %s: %v", p, err)
		} else {
			m.logger.Debug(ctx, "Cleaned up %s", p)
		}
	}
}
