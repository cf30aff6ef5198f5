package media

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/nguyentantai21042004/transcript-flow/internal/fileutil"
)

// Source is one discovered audio input
type Source struct {
	Path string
	Size int64
	Base string
	Ext  string
}

// NewSource stats path and derives the naming attributes
func NewSource(path string) (Source, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Source{}, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return Source{}, fmt.Errorf("%s is a directory", path)
	}
	return Source{
		Path: path,
		Size: info.Size(),
		Base: fileutil.BaseName(path),
		Ext:  filepath.Ext(path),
	}, nil
}
