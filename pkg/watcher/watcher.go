package watcher

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/xhad/askpdf/internal/types"
	"github.com/xhad/askpdf/pkg/logger"
)

const module = "watcher"

type WatcherConfig struct {
	Extensions []string
	// Quiet is how long a file must go without events before it is reported,
	// so a file still being copied is not uploaded half written.
	Quiet  time.Duration
	Logger types.Logger
}

// Watcher reports files that appear or change in a directory.
type Watcher struct {
	config  WatcherConfig
	watcher *fsnotify.Watcher
	log     types.Logger
}

func NewWithConfig(config WatcherConfig) (*Watcher, error) {
	if len(config.Extensions) == 0 {
		config.Extensions = []string{".pdf"}
	}
	if config.Quiet <= 0 {
		config.Quiet = 500 * time.Millisecond
	}
	if config.Logger == nil {
		config.Logger = logger.NewNop()
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{config: config, watcher: w, log: config.Logger}, nil
}

// Watch emits the path of each settled file until ctx is done or Stop is called.
func (w *Watcher) Watch(ctx context.Context, dir string) (<-chan string, error) {
	if err := w.watcher.Add(dir); err != nil {
		return nil, err
	}

	paths := make(chan string)
	go w.loop(ctx, paths)
	return paths, nil
}

func (w *Watcher) loop(ctx context.Context, paths chan<- string) {
	defer close(paths)

	pending := make(map[string]time.Time)
	ticker := time.NewTicker(w.config.Quiet / 4)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !w.isWatchedExtension(event.Name) {
				continue
			}
			switch {
			case event.Has(fsnotify.Create), event.Has(fsnotify.Write):
				pending[event.Name] = time.Now()
			case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
				delete(pending, event.Name)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Warn(module, "watch error", map[string]interface{}{"error": err.Error()})

		case now := <-ticker.C:
			for path, seen := range pending {
				if now.Sub(seen) < w.config.Quiet {
					continue
				}
				delete(pending, path)
				select {
				case paths <- path:
				case <-ctx.Done():
					return
				}
			}
		}
	}
}

func (w *Watcher) Stop() error {
	return w.watcher.Close()
}

func (w *Watcher) isWatchedExtension(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range w.config.Extensions {
		if ext == strings.ToLower(e) {
			return true
		}
	}
	return false
}
