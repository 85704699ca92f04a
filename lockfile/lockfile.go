// Package lockfile guards a mirror update run with a zero-byte marker file.
// The lock is advisory, it only protects against a second overlapping run of
// the updater. There is no expiry, a lock left behind by a crashed run must
// be removed by an operator.
package lockfile

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
)

// ErrLocked is returned by Acquire if the lock file already exists
var ErrLocked = errors.New("update already running")

var closeFile = (*os.File).Close

// Lock represents a claimed lock file
type Lock struct {
	path string
	log  *slog.Logger
}

// Acquire creates lock file at given path. It returns ErrLocked if the file
// already exists.
func Acquire(path string, log *slog.Logger) (*Lock, error) {
	if log == nil {
		log = slog.Default()
	}

	log.Debug("Checking if another update is running", "lock", path)

	// O_EXCL makes check and create a single step so two racing runs
	// can't both claim the lock
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	switch {
	case errors.Is(err, fs.ErrExist):
		attrs := []any{"lock", path}
		if fi, err := os.Stat(path); err == nil {
			attrs = append(attrs, "since", fi.ModTime())
		}
		log.Warn("Update already running! Exiting.", attrs...)
		return nil, ErrLocked
	case err != nil:
		log.Error("Unable to claim the lock file", "lock", path, "err", err)
		return nil, fmt.Errorf("unable to claim lock file err:%w", err)
	}

	if err := closeFile(f); err != nil {
		log.Error("Unable to claim the lock file", "lock", path, "err", err)
		if rmErr := os.Remove(path); rmErr != nil {
			log.Error("Unable to clean the lock file", "lock", path, "err", rmErr)
		}
		return nil, fmt.Errorf("unable to close lock file err:%w", err)
	}

	return &Lock{path: path, log: log}, nil
}

// Path returns path of the lock file
func (l *Lock) Path() string {
	return l.path
}

// Release removes the lock file. Returned error should be treated as fatal
// since a stuck lock file blocks all future runs.
func (l *Lock) Release() error {
	l.log.Debug("Cleaning lock file", "lock", l.path)
	if err := os.Remove(l.path); err != nil {
		l.log.Error("Unable to clean the lock file", "lock", l.path, "err", err)
		return fmt.Errorf("unable to remove lock file err:%w", err)
	}
	return nil
}
