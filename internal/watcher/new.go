package watcher

import (
	"fmt"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/nguyentantai21042004/transcript-flow/internal/logger"
)

const defaultDebounce = 2 * time.Second

// New creates a Watcher over dirs that runs handler once the directories
// settle after new media arrives
func New(dirs []string, handler BatchHandler, log logger.Logger, opts Options) (Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	for _, dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			watcher.Close()
			return nil, fmt.Errorf("add watch path %s: %w", dir, err)
		}
	}

	if opts.Debounce <= 0 {
		opts.Debounce = defaultDebounce
	}
	if opts.Match == nil {
		opts.Match = func(string) bool { return true }
	}

	return &implWatcher{
		dirs:    dirs,
		handler: handler,
		logger:  log,
		watcher: watcher,
		opts:    opts,
		trigger: make(chan struct{}, 1),
	}, nil
}
