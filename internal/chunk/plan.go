package chunk

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"
)

var (
	// ErrChunkExtractionFailed marks a chunk that could not be produced this run.
	// Chunks that did succeed stay on disk for the next run.
	ErrChunkExtractionFailed = errors.New("chunk extraction failed")
	// ErrZeroDuration is returned for sources with no playable audio.
	ErrZeroDuration = errors.New("source has zero duration")
)

// Spec is one time window of a source. Index is 1-based.
type Spec struct {
	Index    int
	Start    time.Duration
	Duration time.Duration
}

// End is the exclusive end offset of the window
func (s Spec) End() time.Duration {
	return s.Start + s.Duration
}

// Plan covers [0, Total) with contiguous, non-overlapping windows
type Plan struct {
	Total         time.Duration
	ChunkDuration time.Duration
	Specs         []Spec
}

// NewPlan splits total into ceil(total/chunkDuration) windows; the last one
// takes whatever remains.
func NewPlan(total, chunkDuration time.Duration) (Plan, error) {
	if total <= 0 {
		return Plan{}, ErrZeroDuration
	}
	if chunkDuration <= 0 {
		return Plan{}, fmt.Errorf("chunk duration must be positive, got %v", chunkDuration)
	}

	count := int((total + chunkDuration - 1) / chunkDuration)
	specs := make([]Spec, 0, count)
	for i := 0; i < count; i++ {
		start := time.Duration(i) * chunkDuration
		specs = append(specs, Spec{
			Index:    i + 1,
			Start:    start,
			Duration: min(chunkDuration, total-start),
		})
	}

	return Plan{Total: total, ChunkDuration: chunkDuration, Specs: specs}, nil
}

// Len is the number of chunks
func (p Plan) Len() int {
	return len(p.Specs)
}

// FileName is the deterministic chunk file name for base and index
func FileName(base string, index int, ext string) string {
	return fmt.Sprintf("%s_part%d%s", base, index, ext)
}

// FilePath places FileName under dir
func FilePath(dir, base string, index int, ext string) string {
	return filepath.Join(dir, FileName(base, index, ext))
}
