// Package watch reports edits made to a scene file by other programs so the
// viewer can reload it.
package watch

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/Faultbox/physbox/internal/logger"
)

const changeOps = fsnotify.Write | fsnotify.Create | fsnotify.Rename

// FileWatcher watches a single file through its parent directory, so saves
// that rename a temporary file into place are seen too.
type FileWatcher struct {
	path    string
	watcher *fsnotify.Watcher
	changed chan struct{}
	done    chan struct{}
	wg      sync.WaitGroup
	log     *zap.Logger

	mu          sync.Mutex
	ignoreUntil time.Time
}

// File starts watching path. The file does not need to exist yet.
func File(path string) (*FileWatcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("watch %s: %w", path, err)
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch %s: %w", path, err)
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		w.Close()
		return nil, fmt.Errorf("watch %s: %w", path, err)
	}

	fw := &FileWatcher{
		path:    abs,
		watcher: w,
		changed: make(chan struct{}, 1),
		done:    make(chan struct{}),
		log:     logger.Named("watch"),
	}
	fw.wg.Add(1)
	go fw.loop()
	fw.log.Debug("watching scene file", zap.String("path", abs))
	return fw, nil
}

func (fw *FileWatcher) loop() {
	defer fw.wg.Done()
	for {
		select {
		case <-fw.done:
			return
		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != fw.path || !event.Op.Has(changeOps) {
				continue
			}
			if fw.ignored() {
				continue
			}
			fw.log.Debug("scene file changed", zap.String("op", event.Op.String()))
			select {
			case fw.changed <- struct{}{}:
			default:
			}
		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			fw.log.Warn("watch error", zap.Error(err))
		}
	}
}

func (fw *FileWatcher) ignored() bool {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	return time.Now().Before(fw.ignoreUntil)
}

// Path returns the absolute path being watched.
func (fw *FileWatcher) Path() string { return fw.path }

// Changed reports whether the file changed since the last call. It never
// blocks.
func (fw *FileWatcher) Changed() bool {
	select {
	case <-fw.changed:
		return true
	default:
		return false
	}
}

// Ignore drops change events for d. The viewer calls it before writing the
// file itself.
func (fw *FileWatcher) Ignore(d time.Duration) {
	fw.mu.Lock()
	fw.ignoreUntil = time.Now().Add(d)
	fw.mu.Unlock()
}

// Close stops watching.
func (fw *FileWatcher) Close() error {
	close(fw.done)
	err := fw.watcher.Close()
	fw.wg.Wait()
	return err
}
