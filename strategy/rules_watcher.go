package strategy

import (
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/teranos/concord/errors"
)

// RulesWatcher hot-reloads a declarative mapping file into an
// ExplicitMapping strategy whenever the file changes on disk. A failed
// reload keeps the previously installed rules.
type RulesWatcher struct {
	path     string
	strategy *ExplicitMapping
	watcher  *fsnotify.Watcher
	logger   *zap.SugaredLogger

	mu             sync.Mutex
	debounceTimer  *time.Timer
	debouncePeriod time.Duration

	isOwnWrite      bool
	isOwnWriteMutex sync.Mutex
}

// NewRulesWatcher creates a watcher for the given rules file. The file
// must exist; load it once before watching.
func NewRulesWatcher(path string, strategy *ExplicitMapping, logger *zap.SugaredLogger) (*RulesWatcher, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create fsnotify watcher")
	}
	if err := watcher.Add(path); err != nil {
		watcher.Close()
		return nil, errors.Wrapf(err, "failed to watch rules file %s", path)
	}

	return &RulesWatcher{
		path:           path,
		strategy:       strategy,
		watcher:        watcher,
		logger:         logger,
		debouncePeriod: 500 * time.Millisecond, // Debounce rapid file changes
	}, nil
}

// MarkOwnWrite marks the next write as coming from us (prevents reload loops)
func (w *RulesWatcher) MarkOwnWrite() {
	w.isOwnWriteMutex.Lock()
	defer w.isOwnWriteMutex.Unlock()
	w.isOwnWrite = true
}

// checkOwnWrite checks and clears the own-write flag
func (w *RulesWatcher) checkOwnWrite() bool {
	w.isOwnWriteMutex.Lock()
	defer w.isOwnWriteMutex.Unlock()

	if w.isOwnWrite {
		w.isOwnWrite = false
		return true
	}
	return false
}

// Start begins watching for rules file changes
func (w *RulesWatcher) Start() {
	go w.watchLoop()
}

// watchLoop monitors file system events
func (w *RulesWatcher) watchLoop() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}

			// Only reload on Write or Create events
			if event.Op&fsnotify.Write == fsnotify.Write || event.Op&fsnotify.Create == fsnotify.Create {
				if w.checkOwnWrite() {
					w.logger.Debugw("Rules watcher ignoring own write",
						"file", event.Name)
					continue
				}

				w.logger.Infow("Rules watcher detected change",
					"file", event.Name,
					"op", event.Op.String())
				w.scheduleReload()
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warnw("Rules watcher error",
				"error", err)
		}
	}
}

// scheduleReload debounces rapid file changes and triggers reload
func (w *RulesWatcher) scheduleReload() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}

	w.debounceTimer = time.AfterFunc(w.debouncePeriod, func() {
		if err := w.strategy.LoadRulesFile(w.path); err != nil {
			w.logger.Errorw("Rules reload failed, keeping previous rules",
				"path", w.path,
				"error", err)
		}
	})
}

// Stop stops watching for rules changes
func (w *RulesWatcher) Stop() error {
	return w.watcher.Close()
}
