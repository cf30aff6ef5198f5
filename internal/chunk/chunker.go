package chunk

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nguyentantai21042004/transcript-flow/internal/fileutil"
	"github.com/nguyentantai21042004/transcript-flow/internal/logger"
	"github.com/nguyentantai21042004/transcript-flow/internal/media"
)

// File is a chunk present on disk
type File struct {
	Spec Spec
	Path string
}

// Result is the outcome of one Split call
type Result struct {
	Plan Plan
	// Files holds chunks present on disk, in index order. Specs skipped by the
	// caller or that failed to extract are absent.
	Files []File
	// Skipped lists indices the caller asked to skip.
	Skipped []int
}

// Chunker materializes a Plan as chunk files in a work directory
type Chunker struct {
	transcoder    media.Transcoder
	logger        logger.Logger
	dir           string
	chunkDuration time.Duration
}

// NewChunker creates a Chunker writing into dir
func NewChunker(transcoder media.Transcoder, log logger.Logger, dir string, chunkDuration time.Duration) *Chunker {
	return &Chunker{
		transcoder:    transcoder,
		logger:        log,
		dir:           dir,
		chunkDuration: chunkDuration,
	}
}

// Path is where chunk index of src lives
func (c *Chunker) Path(src media.Source, index int) string {
	return FilePath(c.dir, src.Base, index, src.Ext)
}

// ManifestPath is where the plan manifest of src lives
func (c *Chunker) ManifestPath(src media.Source) string {
	return ManifestPath(c.dir, src.Base)
}

// Split probes src, plans it and extracts every chunk not already on disk.
// Chunks cut under a different plan are discarded first, so reused files
// always cover the windows of the current plan.
// skip may be nil; when it returns true for a spec, that chunk is neither
// extracted nor reported in Files. Extraction keeps going past a failed
// chunk, and the returned error joins one ErrChunkExtractionFailed per
// failed index.
func (c *Chunker) Split(ctx context.Context, src media.Source, skip func(Spec) bool) (Result, error) {
	total, err := c.transcoder.Duration(ctx, src.Path)
	if err != nil {
		return Result{}, fmt.Errorf("%w: probe %s: %v", ErrChunkExtractionFailed, src.Path, err)
	}

	plan, err := NewPlan(total, c.chunkDuration)
	if err != nil {
		return Result{}, fmt.Errorf("%w: plan %s: %w", ErrChunkExtractionFailed, src.Path, err)
	}

	if err := c.reconcile(ctx, src, plan); err != nil {
		return Result{}, fmt.Errorf("%w: %s: %v", ErrChunkExtractionFailed, src.Path, err)
	}

	c.logger.Info(ctx, "Splitting %s (%s) into %d chunk(s) of %s",
		src.Path, media.FormatTimestamp(total), plan.Len(), media.FormatTimestamp(c.chunkDuration))

	res := Result{Plan: plan}
	var errs []error
	for _, spec := range plan.Specs {
		if skip != nil && skip(spec) {
			res.Skipped = append(res.Skipped, spec.Index)
			continue
		}

		path := c.Path(src, spec.Index)
		if fileutil.Exists(path) {
			c.logger.Debug(ctx, "Reusing chunk %d/%d: %s", spec.Index, plan.Len(), path)
			res.Files = append(res.Files, File{Spec: spec, Path: path})
			continue
		}

		if err := c.transcoder.ExtractRange(ctx, src.Path, path, spec.Start, spec.Duration); err != nil {
			c.logger.Warn(ctx, "Chunk %d/%d of %s failed: %v", spec.Index, plan.Len(), src.Path, err)
			errs = append(errs, fmt.Errorf("%w: chunk %d: %v", ErrChunkExtractionFailed, spec.Index, err))
			continue
		}
		res.Files = append(res.Files, File{Spec: spec, Path: path})
	}

	return res, errors.Join(errs...)
}
