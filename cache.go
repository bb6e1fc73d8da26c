package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// reloadDebounce gives editors time to finish writing before the file is re-read
const reloadDebounce = 100 * time.Millisecond

var (
	errStoreClosed    = errors.New("topic store is closed")
	errAlreadyWatched = errors.New("topic file is already watched")
)

// TopicStore holds the active resolver and optionally reloads it when the
// topic file changes. Each loaded table is immutable; a reload swaps in a
// whole new resolver.
type TopicStore struct {
	sync.RWMutex
	resolver *Resolver
	table    TopicTable
	source   string
	loadedAt time.Time

	filePath string
	logger   *zap.Logger
	watcher  *fsnotify.Watcher
	closed   bool
	done     chan struct{}
	wg       sync.WaitGroup
}

// NewTopicStore loads the topic table from filePath (or the embedded default
// when filePath is empty) and builds the first resolver.
func NewTopicStore(filePath string, logger *zap.Logger) (*TopicStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	ts := &TopicStore{
		filePath: filePath,
		logger:   logger,
		done:     make(chan struct{}),
	}

	if err := ts.Reload(); err != nil {
		return nil, err
	}
	return ts, nil
}

// Resolver returns the resolver currently serving queries
func (ts *TopicStore) Resolver() *Resolver {
	ts.RLock()
	defer ts.RUnlock()
	return ts.resolver
}

// Resolve answers query with the active resolver
func (ts *TopicStore) Resolve(query string) string {
	return ts.Resolver().Resolve(query)
}

// Reload re-reads the topic source. The previous resolver stays active if the
// new table cannot be loaded or is missing a topic.
func (ts *TopicStore) Reload() error {
	table, source, err := LoadTopicTable(ts.filePath)
	if err != nil {
		return err
	}

	resolver, err := NewResolver(table, ts.logger)
	if err != nil {
		return fmt.Errorf("invalid topic table %s: %w", source, err)
	}

	ts.Lock()
	ts.resolver = resolver
	ts.table = table
	ts.source = source
	ts.loadedAt = time.Now()
	ts.Unlock()

	ts.logger.Info("Loaded topic table",
		zap.String("source", source),
		zap.Any("categories", table.Counts()),
		zap.Int("rules", resolver.RuleCount()))
	return nil
}

// Info describes the active table
func (ts *TopicStore) Info() TopicsInfoResponse {
	ts.RLock()
	defer ts.RUnlock()

	topics := make(map[string][]string, len(ts.table))
	for category := range ts.table {
		topics[category] = ts.table.Keys(category)
	}

	return TopicsInfoResponse{
		Source:     ts.source,
		LoadedAt:   ts.loadedAt,
		Categories: ts.table.Counts(),
		Topics:     topics,
		Watching:   ts.watcher != nil,
		Timestamp:  time.Now(),
	}
}

// Source returns where the active table was loaded from
func (ts *TopicStore) Source() string {
	ts.RLock()
	defer ts.RUnlock()
	return ts.source
}

// Watch starts reloading the topic file whenever it is written or recreated.
// The parent directory is watched so that editors which replace the file
// (write to temp, rename over) are also picked up.
// A store is watched at most once and never after Close.
func (ts *TopicStore) Watch() error {
	if ts.filePath == "" {
		return errors.New("topic watch requires a topic file")
	}

	ts.Lock()
	defer ts.Unlock()
	if ts.closed {
		return errStoreClosed
	}
	if ts.watcher != nil {
		return errAlreadyWatched
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}

	dir := filepath.Dir(ts.filePath)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch topics directory: %w", err)
	}

	ts.watcher = watcher
	ts.wg.Add(1)
	go ts.watchFiles(watcher)

	ts.logger.Info("File watcher initialized", zap.String("dir", dir))
	return nil
}

func (ts *TopicStore) watchFiles(watcher *fsnotify.Watcher) {
	defer ts.wg.Done()

	target := filepath.Clean(ts.filePath)

	for {
		select {
		case <-ts.done:
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}

			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 || filepath.Clean(event.Name) != target {
				continue
			}

			select {
			case <-time.After(reloadDebounce):
			case <-ts.done:
				return
			}

			ts.logger.Info("Topic file changed, reloading", zap.String("file", event.Name))
			if err := ts.Reload(); err != nil {
				ts.logger.Error("Topic reload failed, keeping previous table", zap.Error(err))
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			ts.logger.Warn("File watcher error", zap.Error(err))
		}
	}
}

// Close stops the watcher, if any, and waits for its goroutine to exit.
// Calling it again is a no-op.
func (ts *TopicStore) Close() error {
	ts.Lock()
	if ts.closed {
		ts.Unlock()
		return nil
	}
	ts.closed = true
	watcher := ts.watcher
	ts.watcher = nil
	ts.Unlock()

	close(ts.done)
	if watcher == nil {
		return nil
	}
	err := watcher.Close()
	ts.wg.Wait()
	return err
}
