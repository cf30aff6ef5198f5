package chunk

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nguyentantai21042004/transcript-flow/internal/fileutil"
	"github.com/nguyentantai21042004/transcript-flow/internal/media"
)

// Manifest records which plan a chunk set on disk was cut from. Chunk files
// and chunk transcripts are only reusable while it matches the current plan.
type Manifest struct {
	Source        string        `yaml:"source"`
	Size          int64         `yaml:"size"`
	Total         time.Duration `yaml:"total"`
	ChunkDuration time.Duration `yaml:"chunk_duration"`
	Chunks        int           `yaml:"chunks"`
}

func newManifest(src media.Source, plan Plan) Manifest {
	return Manifest{
		Source:        filepath.Base(src.Path),
		Size:          src.Size,
		Total:         plan.Total,
		ChunkDuration: plan.ChunkDuration,
		Chunks:        plan.Len(),
	}
}

// ManifestPath is where the manifest for base lives in dir
func ManifestPath(dir, base string) string {
	return filepath.Join(dir, base+"_plan.yaml")
}

func readManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &m, nil
}

func writeManifest(path string, m Manifest) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return err
	}
	return fileutil.WriteFile(path, data)
}

// isArtifact reports whether name is <base>_part<N> with any extension
func isArtifact(name, base string) bool {
	rest, ok := strings.CutPrefix(name, base+"_part")
	if !ok {
		return false
	}
	if i := strings.IndexByte(rest, '.'); i >= 0 {
		rest = rest[:i]
	}
	if rest == "" {
		return false
	}
	for _, r := range rest {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// reconcile makes the chunk set of src belong to plan. Artifacts left by a
// different plan, or by a run that left no manifest, are removed before any
// of them can be reused.
func (c *Chunker) reconcile(ctx context.Context, src media.Source, plan Plan) error {
	path := ManifestPath(c.dir, src.Base)
	want := newManifest(src, plan)

	got, err := readManifest(path)
	switch {
	case err == nil && *got == want:
		return nil
	case err != nil && !errors.Is(err, os.ErrNotExist):
		c.logger.Warn(ctx, "Discarding unreadable chunk manifest %s: %v", path, err)
	}

	entries, err := os.ReadDir(c.dir)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	var stale []string
	for _, e := range entries {
		if !e.IsDir() && isArtifact(e.Name(), src.Base) {
			stale = append(stale, filepath.Join(c.dir, e.Name()))
		}
	}
	if len(stale) > 0 {
		c.logger.Warn(ctx, "Chunk plan for %s changed, discarding %d stale chunk file(s)", src.Path, len(stale))
	}
	for _, p := range stale {
		if err := fileutil.Remove(p); err != nil {
			return fmt.Errorf("discard stale chunk %s: %w", p, err)
		}
	}

	return writeManifest(path, want)
}
