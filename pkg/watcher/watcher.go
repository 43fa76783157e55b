// Package watcher monitors a directory for new or changed documents and
// reports their paths after a debounce window, so that a file being
// written in several bursts is ingested once.
package watcher

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

type Config struct {
	Dir        string
	Debounce   time.Duration
	Extensions []string
}

type Watcher struct {
	config Config
	fs     *fsnotify.Watcher
}

func NewWithConfig(config Config) (*Watcher, error) {
	if config.Dir == "" {
		return nil, fmt.Errorf("watch dir is required")
	}
	if config.Debounce == 0 {
		config.Debounce = 500 * time.Millisecond
	}
	if len(config.Extensions) == 0 {
		config.Extensions = []string{".txt", ".md", ".markdown", ".html"}
	}

	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %v", err)
	}
	if err := fs.Add(config.Dir); err != nil {
		fs.Close()
		return nil, fmt.Errorf("failed to watch %s: %v", config.Dir, err)
	}

	return &Watcher{config: config, fs: fs}, nil
}

// Watch emits paths of files that were created or written and then
// stayed quiet for the debounce window. The channel closes when ctx is
// cancelled or the underlying watcher shuts down.
func (w *Watcher) Watch(ctx context.Context) <-chan string {
	out := make(chan string)

	go func() {
		defer close(out)
		defer w.fs.Close()

		pending := make(map[string]time.Time)
		ticker := time.NewTicker(w.config.Debounce / 2)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-w.fs.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
					continue
				}
				if !w.wanted(event.Name) {
					continue
				}
				pending[event.Name] = time.Now()
			case <-w.fs.Errors:
				// transient watch errors are not fatal
			case now := <-ticker.C:
				for path, last := range pending {
					if now.Sub(last) < w.config.Debounce {
						continue
					}
					delete(pending, path)
					select {
					case out <- path:
					case <-ctx.Done():
						return
					}
				}
			}
		}
	}()

	return out
}

func (w *Watcher) wanted(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range w.config.Extensions {
		if ext == e {
			return true
		}
	}
	return false
}
