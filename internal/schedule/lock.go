package schedule

import (
	"os"
	"strconv"
	"strings"
	"syscall"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// ErrLockHeld is returned when another live process owns the lock.
var ErrLockHeld = eris.New("schedule: lock held by another process")

// ProcessLock is a file-based single-instance lock. The file holds the
// owning process id; a lock whose owner is demonstrably gone is treated
// as stale and cleared automatically.
type ProcessLock struct {
	path string
	pid  int
}

// NewProcessLock creates a lock at path for the current process.
func NewProcessLock(path string) *ProcessLock {
	return &ProcessLock{path: path, pid: os.Getpid()}
}

// Acquire takes the lock. Returns ErrLockHeld when a live process owns it.
func (l *ProcessLock) Acquire() error {
	for {
		f, err := os.OpenFile(l.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			_, werr := f.WriteString(strconv.Itoa(l.pid))
			cerr := f.Close()
			if werr != nil || cerr != nil {
				_ = os.Remove(l.path)
				return eris.New("schedule: write lock file")
			}
			return nil
		}
		if !os.IsExist(err) {
			return eris.Wrap(err, "schedule: create lock file")
		}

		owner, rerr := l.owner()
		if rerr != nil {
			// Unreadable or garbled lock file: treat as stale.
			zap.L().Warn("clearing unreadable lock file", zap.String("path", l.path))
			if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
				return eris.Wrap(err, "schedule: clear lock file")
			}
			continue
		}
		if processAlive(owner) {
			return eris.Wrapf(ErrLockHeld, "pid %d", owner)
		}

		zap.L().Warn("clearing stale lock",
			zap.String("path", l.path),
			zap.Int("dead_pid", owner),
		)
		if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
			return eris.Wrap(err, "schedule: clear stale lock")
		}
	}
}

// Release drops the lock if this process owns it.
func (l *ProcessLock) Release() {
	owner, err := l.owner()
	if err != nil || owner != l.pid {
		return
	}
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		zap.L().Warn("failed to release lock", zap.String("path", l.path), zap.Error(err))
	}
}

func (l *ProcessLock) owner() (int, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, eris.New("schedule: malformed lock file")
	}
	return pid, nil
}

// processAlive probes the pid with signal 0.
func processAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = proc.Signal(syscall.Signal(0))
	if err == nil {
		return true
	}
	// EPERM means the process exists but belongs to another user.
	return eris.Is(err, syscall.EPERM)
}
