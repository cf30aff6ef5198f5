package watcher

import (
	"context"
	"time"
)

// Watcher defines the interface for file system monitoring
type Watcher interface {
	Start(ctx context.Context) error
	Stop() error
}

// BatchHandler runs one full batch. Calls never overlap.
type BatchHandler func(ctx context.Context) error

// Options tune how events turn into batch runs
type Options struct {
	// Match selects the files whose arrival triggers a batch.
	Match func(path string) bool
	// Debounce is how long the directories must stay quiet before a batch
	// starts. Copies in progress keep resetting it.
	Debounce time.Duration
	// RunOnStart triggers one batch immediately for files already present.
	RunOnStart bool
}
