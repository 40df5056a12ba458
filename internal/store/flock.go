package store

import (
	"fmt"
	"os"
	"syscall"
)

// FileLock holds an advisory exclusive lock on a single record file,
// acquired with flock(2). Locks are always taken non-blocking: the only
// contended resource on the bus is an individual work item file, and a
// contender that loses the race moves on to the next candidate instead of
// waiting.
type FileLock struct {
	path string
	file *os.File
}

// TryLock attempts to acquire an exclusive lock on the file at path
// without blocking. It returns:
//
//   - (lock, true, nil) when the lock was acquired
//   - (nil, false, nil) when the file is locked by another holder or has
//     vanished — both mean "candidate taken, move on"
//   - (nil, false, err) only on real IO failure
func TryLock(path string) (*FileLock, bool, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0o644)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("open for lock: %w", err)
	}

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		_ = f.Close()
		if err == syscall.EWOULDBLOCK {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("flock: %w", err)
	}

	return &FileLock{path: path, file: f}, true, nil
}

// Path returns the locked file's path.
func (fl *FileLock) Path() string { return fl.path }

// Unlock releases the lock and closes the file. Safe to call once per
// acquired lock; the lock is also released if the holding process exits.
func (fl *FileLock) Unlock() error {
	if fl.file == nil {
		return nil
	}

	if err := syscall.Flock(int(fl.file.Fd()), syscall.LOCK_UN); err != nil {
		_ = fl.file.Close()
		fl.file = nil
		return fmt.Errorf("funlock: %w", err)
	}

	err := fl.file.Close()
	fl.file = nil
	return err
}
