package media

import (
	"github.com/nguyentantai21042004/transcript-flow/internal/logger"
	"github.com/nguyentantai21042004/transcript-flow/pkg/executor"
)

type implTranscoder struct {
	executor   executor.Executor
	logger     logger.Logger
	ffmpegPath string
	probePath  string
	audioCodec string
}

// Options selects binaries and the codec used for full-audio extraction
type Options struct {
	FFmpegPath string
	ProbePath  string
	AudioCodec string
}

// New creates an ffmpeg-backed Transcoder
func New(exec executor.Executor, log logger.Logger, opts Options) Transcoder {
	if opts.FFmpegPath == "" {
		opts.FFmpegPath = "ffmpeg"
	}
	if opts.ProbePath == "" {
		opts.ProbePath = "ffprobe"
	}
	if opts.AudioCodec == "" {
		opts.AudioCodec = "libmp3lame"
	}
	return &implTranscoder{
		executor:   exec,
		logger:     log,
		ffmpegPath: opts.FFmpegPath,
		probePath:  opts.ProbePath,
		audioCodec: opts.AudioCodec,
	}
}
