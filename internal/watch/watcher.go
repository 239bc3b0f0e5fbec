package watch

import (
	"fmt"
	"github.com/fsnotify/fsnotify"
	"github.com/kingland/kingland-website/log"
	"os"
	"path/filepath"
	"sync"
)

// FileWatcher signals on Modified when any of the watched files is written or replaced.
// Signals are coalesced: a burst of writes produces at least one signal.
type FileWatcher struct {
	watch      *fsnotify.Watcher
	log        log.Logger
	closed     chan struct{}
	closedOnce sync.Once
	modified   chan struct{}
	files      map[string]struct{}
}

func NewFileWatcher(paths []string, log log.Logger) (*FileWatcher, error) {
	fsLog := log.WithPrefix("file-watcher")
	if len(paths) == 0 {
		return nil, fmt.Errorf("no files to watch")
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	f := &FileWatcher{
		watch:    w,
		log:      fsLog,
		closed:   make(chan struct{}),
		modified: make(chan struct{}, 1),
		files:    make(map[string]struct{}, len(paths)),
	}
	dirs := make(map[string]struct{})
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			_ = w.Close()
			return nil, fmt.Errorf("failed to start watch on %s: %w", path, err)
		}
		dirPath := filepath.Dir(path)
		realPath, err := filepath.EvalSymlinks(dirPath)
		if err != nil {
			_ = w.Close()
			return nil, fmt.Errorf("failed to eval symlink for %s: %w", dirPath, err)
		}
		if _, ok := dirs[realPath]; !ok {
			if err = w.Add(realPath); err != nil {
				_ = w.Close()
				return nil, fmt.Errorf("failed to create file watcher on %s: %w", realPath, err)
			}
			dirs[realPath] = struct{}{}
		}
		f.files[filepath.Join(realPath, filepath.Base(path))] = struct{}{}
	}
	fsLog.Reportf("started watching %d file(s)", len(f.files))
	f.run()
	return f, nil
}

func (f *FileWatcher) run() {
	go func() {
		for {
			select {
			case event := <-f.watch.Events:
				if _, ok := f.files[event.Name]; ok && (event.Has(fsnotify.Write) || event.Has(fsnotify.Create)) {
					f.log.Debugf("%s modified", event.Name)
					select {
					case f.modified <- struct{}{}:
					default:
					}
				}
			case err := <-f.watch.Errors:
				f.log.Errorf("%s", err)
			case <-f.closed:
				_ = f.watch.Close()
				f.log.Reportf("shutdown complete")
				return
			}
		}
	}()
}

func (f *FileWatcher) Modified() <-chan struct{} {
	return f.modified
}

func (f *FileWatcher) Closed() <-chan struct{} {
	return f.closed
}

func (f *FileWatcher) Close() {
	f.closedOnce.Do(func() {
		close(f.closed)
	})
}
