package processor

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/nguyentantai21042004/transcript-flow/internal/fileutil"
	"github.com/nguyentantai21042004/transcript-flow/internal/media"
)

// convertVideos extracts audio for every video that has neither an audio
// file nor a final transcript yet. A transcoder failure aborts the batch.
func (p *implProcessor) convertVideos(ctx context.Context) ([]ConversionResult, error) {
	videos, err := Discover(p.cfg.Paths.Videos, VideoExtensions)
	if err != nil {
		p.logger.Warn(ctx, "Cannot read videos directory %s: %v", p.cfg.Paths.Videos, err)
		return nil, nil
	}

	var results []ConversionResult
	for _, video := range videos {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		base := fileutil.BaseName(video)
		audio := filepath.Join(p.cfg.Paths.Audio, base+p.cfg.FFmpeg.AudioExt)
		res := ConversionResult{Video: video, Audio: audio}

		if fileutil.Exists(audio) || fileutil.Exists(p.finalPath(base)) {
			p.logger.Debug(ctx, "Audio already present for %s", video)
			res.Skipped = true
			results = append(results, res)
			continue
		}

		p.logger.Info(ctx, "Converting %s -> %s", video, audio)
		if err := p.transcoder.ExtractAudio(ctx, video, audio); err != nil {
			res.Err = fmt.Errorf("convert %s: %w", video, err)
			results = append(results, res)
			if errors.Is(err, media.ErrTranscoderUnavailable) {
				return results, res.Err
			}
			p.logger.Error(ctx, "%v", res.Err)
			continue
		}
		results = append(results, res)
	}
	return results, nil
}

func (p *implProcessor) finalPath(base string) string {
	return filepath.Join(p.cfg.Paths.Output, base+".txt")
}
