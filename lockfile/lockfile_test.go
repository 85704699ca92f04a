package lockfile

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestAcquireRelease(t *testing.T) {
	path := filepath.Join(t.TempDir(), "update-in-progress")

	l, err := Acquire(path, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	fi, err := os.Stat(path)
	if err != nil {
		t.Fatalf("expected lock file to exist: %v", err)
	}
	if fi.Size() != 0 {
		t.Errorf("expected zero-byte lock file got %d bytes", fi.Size())
	}
	if l.Path() != path {
		t.Errorf("Path() = %q, want %q", l.Path(), path)
	}

	if err := l.Release(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("expected lock file to be removed, stat err: %v", err)
	}

	// lock can be claimed again after release
	l, err = Acquire(path, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := l.Release(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestAcquire_already_locked(t *testing.T) {
	path := filepath.Join(t.TempDir(), "update-in-progress")
	if err := os.WriteFile(path, nil, 0644); err != nil {
		t.Fatalf("unable to create lock file: %v", err)
	}

	if _, err := Acquire(path, nil); !errors.Is(err, ErrLocked) {
		t.Fatalf("expected ErrLocked got: %v", err)
	}

	// existing lock must be left alone
	if _, err := os.Stat(path); err != nil {
		t.Errorf("expected existing lock file to be kept: %v", err)
	}
}

func TestAcquire_twice(t *testing.T) {
	path := filepath.Join(t.TempDir(), "update-in-progress")

	l, err := Acquire(path, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer l.Release()

	if _, err := Acquire(path, nil); !errors.Is(err, ErrLocked) {
		t.Errorf("expected ErrLocked on second acquire got: %v", err)
	}
}

func TestAcquire_missing_dir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "update-in-progress")

	_, err := Acquire(path, nil)
	if err == nil {
		t.Fatal("expected error when lock dir doesn't exist")
	}
	if errors.Is(err, ErrLocked) {
		t.Errorf("missing dir must not be reported as locked: %v", err)
	}
}

func TestRelease_already_removed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "update-in-progress")

	l, err := Acquire(path, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := os.Remove(path); err != nil {
		t.Fatalf("unable to remove lock file: %v", err)
	}

	if err := l.Release(); err == nil {
		t.Error("expected error when lock file can't be removed")
	}
}

func TestAcquire_close_failure(t *testing.T) {
	closeErr := errors.New("input/output error")
	orig := closeFile
	closeFile = func(f *os.File) error {
		f.Close()
		return closeErr
	}
	t.Cleanup(func() { closeFile = orig })

	path := filepath.Join(t.TempDir(), "update-in-progress")

	l, err := Acquire(path, nil)
	if !errors.Is(err, closeErr) {
		t.Fatalf("Acquire() error = %v, want %v", err, closeErr)
	}
	if l != nil {
		t.Errorf("expected no lock on failure")
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("lock file should be removed after failed claim, stat err: %v", err)
	}
}
