package media

import (
	"context"
	"errors"
	"time"
)

// ErrTranscoderUnavailable means ffmpeg/ffprobe cannot be used at all. It is
// fatal to a batch since every file would fail the same way.
var ErrTranscoderUnavailable = errors.New("transcoder unavailable")

// Transcoder is the ffmpeg capability the pipeline consumes
type Transcoder interface {
	// Check verifies the transcoding tools can be invoked.
	Check(ctx context.Context) error
	// ExtractAudio writes the full audio track of src to dst.
	ExtractAudio(ctx context.Context, src, dst string) error
	// ExtractRange writes [start, start+length) of src to dst.
	ExtractRange(ctx context.Context, src, dst string, start, length time.Duration) error
	// Duration probes the playback length of path.
	Duration(ctx context.Context, path string) (time.Duration, error)
}
