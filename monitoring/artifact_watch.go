package monitoring

import (
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// ArtifactWatcher notices when a loaded artifact changes on disk. The loaded
// bundle is never swapped; the watcher only marks it stale so an operator
// knows a restart is needed.
type ArtifactWatcher struct {
	watcher *fsnotify.Watcher
	files   map[string]string
	logger  *zap.Logger

	stale   atomic.Bool
	mu      sync.Mutex
	changed []string

	done chan struct{}
}

// WatchArtifacts watches the directories holding files, keyed by artifact name.
func WatchArtifacts(files map[string]string, logger *zap.Logger) (*ArtifactWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	aw := &ArtifactWatcher{
		watcher: watcher,
		files:   make(map[string]string, len(files)),
		logger:  logger,
		done:    make(chan struct{}),
	}

	// Editors and deploy tools replace files by rename, so watch directories.
	dirs := make(map[string]bool)
	for name, path := range files {
		abs, err := filepath.Abs(path)
		if err != nil {
			watcher.Close()
			return nil, err
		}
		aw.files[abs] = name
		dirs[filepath.Dir(abs)] = true
	}
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			watcher.Close()
			return nil, fmt.Errorf("watch %s: %w", dir, err)
		}
	}

	go aw.run()
	return aw, nil
}

func (aw *ArtifactWatcher) run() {
	defer close(aw.done)
	for {
		select {
		case event, ok := <-aw.watcher.Events:
			if !ok {
				return
			}
			aw.handle(event)
		case err, ok := <-aw.watcher.Errors:
			if !ok {
				return
			}
			aw.logger.Warn("artifact watcher error", zap.Error(err))
		}
	}
}

func (aw *ArtifactWatcher) handle(event fsnotify.Event) {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return
	}
	abs, err := filepath.Abs(event.Name)
	if err != nil {
		return
	}
	name, ok := aw.files[abs]
	if !ok {
		return
	}

	aw.mu.Lock()
	aw.changed = append(aw.changed, name)
	aw.mu.Unlock()
	aw.stale.Store(true)

	aw.logger.Warn("artifact changed on disk; restart to serve it",
		zap.String("artifact", name),
		zap.String("path", abs),
		zap.String("op", event.Op.String()))
}

// Stale reports whether any watched artifact changed since startup.
func (aw *ArtifactWatcher) Stale() bool {
	return aw.stale.Load()
}

// Changed lists the artifacts that changed, in event order.
func (aw *ArtifactWatcher) Changed() []string {
	aw.mu.Lock()
	defer aw.mu.Unlock()
	return append([]string(nil), aw.changed...)
}

func (aw *ArtifactWatcher) Close() error {
	err := aw.watcher.Close()
	<-aw.done
	return err
}
