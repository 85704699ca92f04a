package logging

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/utilitywarehouse/svn-mirror/internal/lock"
)

const defaultFileMode = os.FileMode(0644)

// WatchedFile is an io.WriteCloser for a log file which might be rotated
// externally (logrotate). File is re-opened on the next write when it has
// been renamed or removed. Truncation is handled by opening with O_APPEND.
// A WatchedFile is safe for concurrent use by multiple goroutines.
type WatchedFile struct {
	lock    lock.Mutex
	path    string // absolute path of the log file
	file    *os.File
	info    os.FileInfo // stat of the open file
	reopen  bool        // set by watcher on rename/remove events
	watcher *fsnotify.Watcher
	done    chan struct{}
}

// OpenWatchedFile opens (creates) log file at given path and starts watching
// its directory for rotation events.
func OpenWatchedFile(path string) (*WatchedFile, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("unable to convert log path '%s' to abs path err:%w", path, err)
	}

	if err := os.MkdirAll(filepath.Dir(absPath), 0755); err != nil {
		return nil, fmt.Errorf("unable to create log dir err:%w", err)
	}

	wf := &WatchedFile{
		path: absPath,
		done: make(chan struct{}),
	}
	if err := wf.open(); err != nil {
		return nil, err
	}

	// watching is best effort, Write also compares the open file
	// with the one at path before writing
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return wf, nil
	}
	// watch the dir as watch on the file itself is lost once it is renamed
	if err := watcher.Add(filepath.Dir(absPath)); err != nil {
		watcher.Close()
		return wf, nil
	}
	wf.watcher = watcher
	go wf.watch()

	return wf, nil
}

func (wf *WatchedFile) open() error {
	f, err := os.OpenFile(wf.path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, defaultFileMode)
	if err != nil {
		return fmt.Errorf("unable to open log file err:%w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("unable to stat log file err:%w", err)
	}
	wf.file = f
	wf.info = info
	wf.reopen = false
	return nil
}

func (wf *WatchedFile) watch() {
	for {
		select {
		case event, ok := <-wf.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != wf.path {
				continue
			}
			if event.Has(fsnotify.Rename) || event.Has(fsnotify.Remove) || event.Has(fsnotify.Create) {
				wf.lock.Lock()
				wf.reopen = true
				wf.lock.Unlock()
			}
		case _, ok := <-wf.watcher.Errors:
			if !ok {
				return
			}
		case <-wf.done:
			return
		}
	}
}

// rotated reports whether file at path is no longer the open file
func (wf *WatchedFile) rotated() bool {
	if wf.reopen {
		return true
	}
	info, err := os.Stat(wf.path)
	if err != nil {
		return true
	}
	return !os.SameFile(info, wf.info)
}

// Write writes p to the log file, re-opening it first if it was rotated.
func (wf *WatchedFile) Write(p []byte) (int, error) {
	wf.lock.Lock()
	defer wf.lock.Unlock()

	if wf.file == nil {
		return 0, os.ErrClosed
	}

	if wf.rotated() {
		old := wf.file
		if err := wf.open(); err != nil {
			// keep writing to the old handle rather than losing logs
			return old.Write(p)
		}
		old.Close()
	}

	return wf.file.Write(p)
}

// Close stops the watcher and closes the log file
func (wf *WatchedFile) Close() error {
	wf.lock.Lock()
	defer wf.lock.Unlock()

	if wf.file == nil {
		return nil
	}

	if wf.watcher != nil {
		close(wf.done)
		wf.watcher.Close()
	}

	err := wf.file.Close()
	wf.file = nil
	return err
}
