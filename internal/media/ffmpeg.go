package media

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/nguyentantai21042004/transcript-flow/internal/fileutil"
)

// Check resolves both binaries on PATH
func (t *implTranscoder) Check(ctx context.Context) error {
	for _, bin := range []string{t.ffmpegPath, t.probePath} {
		if _, err := t.executor.LookPath(bin); err != nil {
			return fmt.Errorf("%w: %s not found: %v", ErrTranscoderUnavailable, bin, err)
		}
	}
	return nil
}

// ExtractAudio drops the video stream and re-encodes the audio with the
// configured codec. Output lands in dst only after ffmpeg succeeds.
func (t *implTranscoder) ExtractAudio(ctx context.Context, src, dst string) error {
	t.logger.Info(ctx, "Extracting audio: %s -> %s", src, dst)

	args := []string{
		"-hide_banner",
		"-nostdin",
		"-y",
		"-i", src,
		"-vn",
		"-c:a", t.audioCodec,
	}
	return t.run(ctx, dst, args)
}

// ExtractRange cuts a time window from src. Input seeking (-ss before -i)
// plus a fixed -t keeps consecutive windows contiguous.
func (t *implTranscoder) ExtractRange(ctx context.Context, src, dst string, start, length time.Duration) error {
	if length <= 0 {
		return fmt.Errorf("extract range of %s: non-positive length %v", src, length)
	}

	t.logger.Debug(ctx, "Extracting %s [%s +%s] -> %s", src, FormatTimestamp(start), FormatTimestamp(length), dst)

	args := []string{
		"-hide_banner",
		"-nostdin",
		"-y",
		"-ss", FormatTimestamp(start),
		"-i", src,
		"-t", FormatTimestamp(length),
		"-vn",
		"-c:a", codecFor(filepath.Ext(dst), t.audioCodec),
	}
	return t.run(ctx, dst, args)
}

// Duration asks ffprobe for the container duration in seconds
func (t *implTranscoder) Duration(ctx context.Context, path string) (time.Duration, error) {
	out, err := t.executor.Execute(ctx, t.probePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	if err != nil {
		return 0, fmt.Errorf("ffprobe %s: %w", path, err)
	}
	return parseProbeSeconds(out)
}

func (t *implTranscoder) run(ctx context.Context, dst string, args []string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	partial := fileutil.PartialPath(dst)
	args = append(args, partial)

	if _, err := t.executor.Execute(ctx, t.ffmpegPath, args...); err != nil {
		_ = fileutil.Remove(partial)
		return fmt.Errorf("ffmpeg: %w", err)
	}
	if !fileutil.Exists(partial) {
		return fmt.Errorf("ffmpeg completed but %s is missing", partial)
	}
	return fileutil.Commit(dst)
}

func parseProbeSeconds(out string) (time.Duration, error) {
	raw := strings.TrimSpace(out)
	if i := strings.IndexByte(raw, '\n'); i >= 0 {
		raw = strings.TrimSpace(raw[:i])
	}
	secs, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", raw, err)
	}
	if secs < 0 {
		return 0, fmt.Errorf("negative duration %q", raw)
	}
	return time.Duration(secs * float64(time.Second)).Round(time.Millisecond), nil
}

// FormatTimestamp renders d as HH:MM:SS.mmm for ffmpeg time options
func FormatTimestamp(d time.Duration) string {
	d = d.Round(time.Millisecond)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second
	d -= s * time.Second
	return fmt.Sprintf("%02d:%02d:%02d.%03d", h, m, s, d/time.Millisecond)
}

func codecFor(ext, fallback string) string {
	switch strings.ToLower(ext) {
	case ".mp3":
		return "libmp3lame"
	case ".wav":
		return "pcm_s16le"
	case ".flac":
		return "flac"
	case ".ogg":
		return "libvorbis"
	case ".m4a":
		return "aac"
	default:
		return fallback
	}
}
