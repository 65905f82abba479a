package store

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/wethinkt/go-histview/internal/tuilog"
)

// Reload reports a chat file that was reloaded, or failed to reload.
type Reload struct {
	ChatID string
	Path   string
	Err    error
}

// Watcher reloads chat files into a Memory store when they change on disk.
type Watcher struct {
	store    *Memory
	paths    map[string]string // absolute path -> chat id
	debounce time.Duration
	watcher  *fsnotify.Watcher
	done     chan struct{}
	stopOnce sync.Once
	mu       sync.Mutex
}

// NewWatcher creates a watcher for the given chat files.
func NewWatcher(store *Memory, debounce time.Duration, paths ...string) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		store:    store,
		paths:    make(map[string]string, len(paths)),
		debounce: debounce,
		watcher:  fw,
		done:     make(chan struct{}),
	}
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			fw.Close()
			return nil, err
		}
		w.paths[abs] = ChatID(p)
	}
	return w, nil
}

// Start watches the directories holding the chat files. Editors often
// replace files rather than writing them, so directories are watched instead
// of the files themselves. The returned channel is closed when ctx is done or
// Stop is called.
func (w *Watcher) Start(ctx context.Context) (<-chan Reload, error) {
	dirs := make(map[string]bool)
	for p := range w.paths {
		dirs[filepath.Dir(p)] = true
	}
	for dir := range dirs {
		if err := w.watcher.Add(dir); err != nil {
			return nil, err
		}
		tuilog.Log.Debug("watching chat directory", "dir", dir)
	}

	events := make(chan Reload, 16)
	go w.watchLoop(ctx, events)
	return events, nil
}

// Stop stops the watcher and releases resources.
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.done)
		err = w.watcher.Close()
	})
	return err
}

func (w *Watcher) watchLoop(ctx context.Context, events chan<- Reload) {
	timers := make(map[string]*time.Timer)
	var pending sync.WaitGroup
	defer func() {
		w.mu.Lock()
		for _, t := range timers {
			if t.Stop() {
				pending.Done()
			}
		}
		w.mu.Unlock()
		pending.Wait()
		close(events)
	}()

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			path, err := filepath.Abs(event.Name)
			if err != nil {
				continue
			}
			chatID, ok := w.paths[path]
			if !ok {
				continue
			}

			w.mu.Lock()
			if t, ok := timers[path]; ok && t.Stop() {
				pending.Done()
			}
			pending.Add(1)
			timers[path] = time.AfterFunc(w.debounce, func() {
				defer pending.Done()
				r := Reload{ChatID: chatID, Path: path, Err: w.reload(chatID, path)}
				select {
				case events <- r:
				case <-ctx.Done():
				case <-w.done:
				}
			})
			w.mu.Unlock()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			tuilog.Log.Error("watcher error", "error", err)

		case <-w.done:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (w *Watcher) reload(chatID, path string) error {
	f, err := LoadChatFile(path)
	if err != nil {
		tuilog.Log.Warn("chat reload failed", "chat", chatID, "error", err)
		return err
	}
	tuilog.Log.Info("chat reloaded", "chat", chatID, "messages", len(f.Messages))
	return w.store.Put(chatID, f)
}
