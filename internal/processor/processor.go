package processor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/nguyentantai21042004/transcript-flow/internal/chunk"
	"github.com/nguyentantai21042004/transcript-flow/internal/fileutil"
	"github.com/nguyentantai21042004/transcript-flow/internal/logger"
	"github.com/nguyentantai21042004/transcript-flow/internal/media"
	"github.com/nguyentantai21042004/transcript-flow/internal/model"
)

// Run processes the whole batch sequentially
func (p *implProcessor) Run(ctx context.Context) (Summary, error) {
	sum := Summary{RunID: logger.RunID(ctx)}
	startTime := time.Now()

	p.logger.Info(ctx, "========================================")
	p.logger.Info(ctx, "Starting batch: %s -> %s", p.cfg.Paths.Audio, p.cfg.Paths.Output)
	p.logger.Info(ctx, "========================================")

	if err := p.transcoder.Check(ctx); err != nil {
		sum.Fatal = err
		return sum, err
	}
	if err := p.ensureDirectories(); err != nil {
		sum.Fatal = fmt.Errorf("create directories: %w", err)
		return sum, sum.Fatal
	}
	p.cleanupPartials(ctx)

	conversions, err := p.convertVideos(ctx)
	sum.Conversions = conversions
	if err != nil {
		sum.Fatal = err
		return sum, err
	}

	files, err := Discover(p.cfg.Paths.Audio, AudioExtensions)
	if err != nil {
		sum.Fatal = fmt.Errorf("discover audio: %w", err)
		return sum, sum.Fatal
	}

	pending := 0
	for _, f := range files {
		if !fileutil.Exists(p.finalPath(fileutil.BaseName(f))) {
			pending++
		}
	}
	p.logger.Info(ctx, "Found %d audio file(s), %d pending", len(files), pending)

	// The model is never loaded for a batch with nothing to do.
	if pending > 0 {
		if err := p.manager.Start(ctx); err != nil {
			sum.Fatal = err
			return sum, err
		}
		defer func() {
			if err := p.manager.Close(); err != nil {
				p.logger.Warn(ctx, "Failed to close model: %v", err)
			}
		}()
	}

	for i, f := range files {
		if err := ctx.Err(); err != nil {
			sum.Fatal = err
			break
		}
		p.logger.Info(ctx, "[%d/%d] %s", i+1, len(files), f)
		res := p.Process(ctx, f)
		sum.Files = append(sum.Files, res)
		p.metrics.FileOutcome(string(res.Outcome))

		if fatal := fatalCause(ctx, res.Err); fatal != nil {
			sum.Fatal = fatal
			break
		}
	}

	p.logger.Info(ctx, "Batch finished in %s", time.Since(startTime).Round(time.Millisecond))
	return sum, sum.Fatal
}

// fatalCause returns err when it must stop the whole batch
func fatalCause(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if err == nil {
		return nil
	}
	if errors.Is(err, model.ErrModelUnavailable) || errors.Is(err, media.ErrTranscoderUnavailable) {
		return err
	}
	return nil
}

// Process drives one audio file to a final transcript
func (p *implProcessor) Process(ctx context.Context, audioPath string) FileResult {
	start := time.Now()
	t := newTracker(ctx, p.logger, audioPath)
	res := FileResult{Source: audioPath}

	err := p.process(ctx, t, &res)
	if err == nil {
		err = t.err
	}

	switch {
	case err != nil:
		t.to(StateFailed)
		res.Outcome = OutcomeFailed
		res.Err = err
		p.logger.Error(ctx, "Failed %s: %v", audioPath, err)
	case t.state == StateSkipped:
		res.Outcome = OutcomeSkipped
	default:
		res.Outcome = OutcomeDone
	}

	res.State = t.state
	res.History = t.history
	res.Elapsed = time.Since(start)
	return res
}

func (p *implProcessor) process(ctx context.Context, t *tracker, res *FileResult) error {
	res.Output = p.finalPath(fileutil.BaseName(res.Source))
	if fileutil.Exists(res.Output) {
		p.logger.Info(ctx, "Transcript already exists, skipping: %s", res.Output)
		t.to(StateSkipped)
		return nil
	}

	src, err := media.NewSource(res.Source)
	if err != nil {
		return err
	}
	t.to(StateSizeChecked)

	if !chunk.NeedsSplit(src.Size, p.cfg.MaxSizeBytes()) {
		t.to(StateDirect)
		t.to(StateTranscribing)
		if _, err := p.stage.Run(ctx, src.Path, res.Output); err != nil {
			return err
		}
		t.to(StateDone)
		return nil
	}

	p.logger.Info(ctx, "%s is %.1f MB, above the %d MB limit: chunking",
		src.Path, float64(src.Size)/(1024*1024), p.cfg.Chunking.MaxSizeMB)
	t.to(StateChunked)
	return p.processChunked(ctx, t, src, res)
}

// processChunked splits src, transcribes every chunk without a transcript
// and merges the transcripts in index order
func (p *implProcessor) processChunked(ctx context.Context, t *tracker, src media.Source, res *FileResult) error {
	unitPath := func(index int) string {
		return chunk.FilePath(p.cfg.Paths.Work, src.Base, index, ".txt")
	}

	split, splitErr := p.chunker.Split(ctx, src, func(s chunk.Spec) bool {
		return fileutil.Exists(unitPath(s.Index))
	})
	if split.Plan.Len() == 0 {
		return splitErr
	}
	res.Chunks = split.Plan.Len()
	failed := split.Plan.Len() - len(split.Skipped) - len(split.Files)
	for i := 0; i < failed; i++ {
		p.metrics.Chunk("extract", false)
	}

	files := make(map[int]string, len(split.Files))
	for _, f := range split.Files {
		files[f.Spec.Index] = f.Path
	}

	t.to(StateTranscribing)
	units := make(map[int]string, split.Plan.Len())
	var unitErrs []error
	for _, spec := range split.Plan.Specs {
		if err := ctx.Err(); err != nil {
			return err
		}

		out := unitPath(spec.Index)
		if fileutil.Exists(out) {
			data, err := os.ReadFile(out)
			if err != nil {
				unitErrs = append(unitErrs, fmt.Errorf("read chunk %d transcript: %w", spec.Index, err))
				continue
			}
			p.logger.Debug(ctx, "Reusing chunk %d/%d transcript: %s", spec.Index, split.Plan.Len(), out)
			p.metrics.Chunk("reuse", true)
			units[spec.Index] = string(data)
			continue
		}

		audio, ok := files[spec.Index]
		if !ok {
			// extraction failed; the cause is in splitErr
			continue
		}

		p.logger.Info(ctx, "Chunk %d/%d of %s", spec.Index, split.Plan.Len(), src.Path)
		text, err := p.stage.Run(ctx, audio, out)
		p.metrics.Chunk("transcribe", err == nil)
		if err != nil {
			if errors.Is(err, model.ErrModelUnavailable) {
				return err
			}
			unitErrs = append(unitErrs, fmt.Errorf("chunk %d: %w", spec.Index, err))
			continue
		}
		units[spec.Index] = text
	}

	if len(units) == split.Plan.Len() {
		t.to(StateMerging)
	}

	artifacts := make([]string, 0, 2*split.Plan.Len()+1)
	for _, spec := range split.Plan.Specs {
		artifacts = append(artifacts, p.chunker.Path(src, spec.Index), unitPath(spec.Index))
	}
	artifacts = append(artifacts, p.chunker.ManifestPath(src))

	if err := p.merger.Merge(ctx, split.Plan, units, res.Output, artifacts); err != nil {
		return errors.Join(append([]error{err, splitErr}, unitErrs...)...)
	}
	t.to(StateDone)
	return nil
}
