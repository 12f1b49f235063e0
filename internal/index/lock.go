package index

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"

	"github.com/codescope/codescope/pkg/types"
)

// Lock is an advisory single-writer lock backed by a lock file. It
// guards the index against concurrent writers from other processes.
type Lock struct {
	path string
}

// AcquireLock creates the lock file exclusively. If the file already
// exists another indexer holds the lock, unless its recorded process is
// gone, in which case the stale lock is replaced.
func AcquireLock(path string) (*Lock, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if errors.Is(err, os.ErrExist) {
		if !lockIsStale(path) {
			return nil, fmt.Errorf("%w: %s exists", types.ErrIndexLocked, path)
		}
		if err := os.Remove(path); err != nil {
			return nil, fmt.Errorf("%w: cannot remove stale lock %s: %v", types.ErrIndexLocked, path, err)
		}
		f, err = os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", types.ErrIndexLocked, err)
		}
	} else if err != nil {
		return nil, err
	}

	fmt.Fprintf(f, "%d\n", os.Getpid())
	if err := f.Close(); err != nil {
		os.Remove(path)
		return nil, err
	}

	return &Lock{path: path}, nil
}

// Release removes the lock file.
func (l *Lock) Release() error {
	err := os.Remove(l.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// lockIsStale reports whether the lock file names a process that no
// longer exists. An unreadable pid is treated as held.
func lockIsStale(path string) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return false
	}

	proc, err := os.FindProcess(pid)
	if err != nil {
		return true
	}
	// Signal 0 probes for existence without delivering a signal.
	return proc.Signal(syscall.Signal(0)) != nil
}
