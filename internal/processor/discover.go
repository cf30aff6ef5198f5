package processor

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/nguyentantai21042004/transcript-flow/internal/fileutil"
)

var (
	// VideoExtensions are converted to audio before transcription
	VideoExtensions = []string{".mp4", ".avi", ".mov", ".mkv", ".flv", ".wmv", ".webm", ".m4v"}
	// AudioExtensions are transcribed directly
	AudioExtensions = []string{".mp3", ".wav", ".m4a", ".flac", ".ogg"}
)

// Discover lists regular files in dir with one of exts, sorted by name.
// Hidden files, which include uncommitted partial outputs, are ignored.
func Discover(dir string, exts []string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if hasExtension(e.Name(), exts) {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}

	sort.Strings(files)
	return files, nil
}

// IsVideo reports whether path has a recognized video extension
func IsVideo(path string) bool {
	return hasExtension(path, VideoExtensions) && !fileutil.IsPartial(path)
}

// IsAudio reports whether path has a recognized audio extension
func IsAudio(path string) bool {
	return hasExtension(path, AudioExtensions) && !fileutil.IsPartial(path)
}

func hasExtension(path string, exts []string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range exts {
		if ext == e {
			return true
		}
	}
	return false
}
