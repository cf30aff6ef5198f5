package processor

import (
	"github.com/nguyentantai21042004/transcript-flow/internal/chunk"
	"github.com/nguyentantai21042004/transcript-flow/internal/config"
	"github.com/nguyentantai21042004/transcript-flow/internal/logger"
	"github.com/nguyentantai21042004/transcript-flow/internal/media"
	"github.com/nguyentantai21042004/transcript-flow/internal/merge"
	"github.com/nguyentantai21042004/transcript-flow/internal/metrics"
	"github.com/nguyentantai21042004/transcript-flow/internal/model"
	"github.com/nguyentantai21042004/transcript-flow/internal/transcribe"
)

type implProcessor struct {
	cfg        *config.Config
	transcoder media.Transcoder
	manager    *model.Manager
	stage      *transcribe.Stage
	chunker    *chunk.Chunker
	merger     *merge.Merger
	metrics    *metrics.Recorder
	logger     logger.Logger
}

// New creates a new Processor instance. rec may be nil.
func New(cfg *config.Config, transcoder media.Transcoder, manager *model.Manager, rec *metrics.Recorder, log logger.Logger) Processor {
	stage := transcribe.New(manager, log, model.Options{Language: cfg.Whisper.Language})
	stage.Observe(rec.Transcription)

	return &implProcessor{
		cfg:        cfg,
		transcoder: transcoder,
		manager:    manager,
		stage:      stage,
		chunker:    chunk.NewChunker(transcoder, log, cfg.Paths.Work, cfg.ChunkDuration()),
		merger:     merge.New(log),
		metrics:    rec,
		logger:     log,
	}
}
