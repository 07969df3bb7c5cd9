package scanner

import (
	"io/fs"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/standardbeagle/pci/internal/cache"
	pcierrors "github.com/standardbeagle/pci/internal/errors"
)

// Watcher invalidates cached vendor results when the files they were
// computed from change on disk. Without it, stale entries only age out
// via TTL.
type Watcher struct {
	fw       *fsnotify.Watcher
	cache    *cache.ResultCache
	debounce time.Duration

	mu     sync.Mutex
	timers map[string]*time.Timer

	done     chan struct{}
	stopOnce sync.Once
}

// NewWatcher starts watching the directory tree at root. Events are
// debounced per path so editors that write in bursts trigger one
// invalidation.
func NewWatcher(root string, c *cache.ResultCache, debounce time.Duration) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, pcierrors.NewFileError("watch", root, err)
	}

	w := &Watcher{
		fw:       fw,
		cache:    c,
		debounce: debounce,
		timers:   make(map[string]*time.Timer),
		done:     make(chan struct{}),
	}

	// fsnotify watches are not recursive; register every directory
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if addErr := fw.Add(path); addErr != nil {
				return nil
			}
		}
		return nil
	})
	if err != nil {
		fw.Close()
		return nil, pcierrors.NewFileError("watch", root, err)
	}

	go w.loop()
	return w, nil
}

func (w *Watcher) loop() {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.fw.Events:
			if !ok {
				return
			}
			w.handle(event)
		case _, ok := <-w.fw.Errors:
			if !ok {
				return
			}
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	if event.Op&fsnotify.Create != 0 {
		// new subdirectories need their own watch
		_ = w.fw.Add(event.Name)
	}
	if event.Op&(fsnotify.Write|fsnotify.Remove|fsnotify.Rename|fsnotify.Create) == 0 {
		return
	}

	path := event.Name
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.timers[path]; ok {
		t.Reset(w.debounce)
		return
	}
	w.timers[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.timers, path)
		w.mu.Unlock()
		w.cache.InvalidatePath(path)
	})
}

// Close stops the watcher and cancels pending invalidation timers
func (w *Watcher) Close() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.done)
		err = w.fw.Close()
		w.mu.Lock()
		for path, t := range w.timers {
			t.Stop()
			delete(w.timers, path)
		}
		w.mu.Unlock()
	})
	return err
}
