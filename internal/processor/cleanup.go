package processor

import (
	"context"
	"os"
	"path/filepath"

	"github.com/nguyentantai21042004/transcript-flow/internal/fileutil"
)

// cleanupPartials removes uncommitted outputs an interrupted run left behind.
// They are never reused, since only committed files count as done.
func (p *implProcessor) cleanupPartials(ctx context.Context) {
	for _, dir := range []string{p.cfg.Paths.Audio, p.cfg.Paths.Work, p.cfg.Paths.Output} {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, e := range entries {
			if !e.IsDir() && fileutil.IsPartial(e.Name()) {
				p.cleanupTempFile(ctx, filepath.Join(dir, e.Name()))
			}
		}
	}
}

// cleanupTempFile removes a temporary file, logs warning if fails
func (p *implProcessor) cleanupTempFile(ctx context.Context, filePath string) {
	if err := fileutil.Remove(filePath); err != nil {
		p.logger.Warn(ctx, "Failed to cleanup temp file %s: %v", filePath, err)
	} else {
		p.logger.Debug(ctx, "Cleaned up temp file: %s", filePath)
	}
}

// ensureDirectories creates the directories the pipeline writes to
func (p *implProcessor) ensureDirectories() error {
	for _, dir := range []string{p.cfg.Paths.Audio, p.cfg.Paths.Output, p.cfg.Paths.Work} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return nil
}
