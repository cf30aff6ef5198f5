package watcher

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/nguyentantai21042004/transcript-flow/internal/fileutil"
	"github.com/nguyentantai21042004/transcript-flow/internal/logger"
)

type implWatcher struct {
	dirs    []string
	handler BatchHandler
	logger  logger.Logger
	watcher *fsnotify.Watcher
	opts    Options
	// trigger holds at most one pending run, so bursts coalesce.
	trigger chan struct{}
	wg      sync.WaitGroup
}

// Start monitors the directories until ctx is done. Batches run one at a
// time on a single goroutine; events arriving during a batch queue exactly
// one follow-up run.
func (w *implWatcher) Start(ctx context.Context) error {
	w.logger.Info(ctx, "File watcher started (debounce %s). Monitoring: %v", w.opts.Debounce, w.dirs)

	w.wg.Add(1)
	go w.runBatches(ctx)

	if w.opts.RunOnStart {
		w.notify()
	}

	var (
		timer  *time.Timer
		settle <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info(ctx, "Waiting for the running batch to complete...")
			w.wg.Wait()
			w.logger.Info(ctx, "File watcher stopped")
			return ctx.Err()

		case event, ok := <-w.watcher.Events:
			if !ok {
				return fmt.Errorf("watcher events channel closed")
			}
			if !w.relevant(event) {
				continue
			}

			w.logger.Debug(ctx, "Media event %s: %s", event.Op, event.Name)
			if timer == nil {
				timer = time.NewTimer(w.opts.Debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.opts.Debounce)
			}
			settle = timer.C

		case <-settle:
			settle = nil
			w.logger.Info(ctx, "New media settled, scheduling batch")
			w.notify()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher errors channel closed")
			}
			w.logger.Error(ctx, "Watcher error: %v", err)
		}
	}
}

// Stop closes the file watcher
func (w *implWatcher) Stop() error {
	return w.watcher.Close()
}

func (w *implWatcher) relevant(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return false
	}
	return !fileutil.IsPartial(event.Name) && w.opts.Match(event.Name)
}

// notify queues a batch unless one is already queued
func (w *implWatcher) notify() {
	select {
	case w.trigger <- struct{}{}:
	default:
	}
}

func (w *implWatcher) runBatches(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.trigger:
			if err := w.handler(ctx); err != nil {
				w.logger.Error(ctx, "Batch failed: %v", err)
			}
		}
	}
}

