package devdir

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ZebulonRouseFrantzich/addonkit/internal/version"
)

// StaleLockThreshold is the age after which a lock is considered abandoned.
const StaleLockThreshold = 10 * time.Minute

// ErrLockExists is returned when another process holds the version lock.
var ErrLockExists = errors.New("install lock exists: another operation may be in progress")

// Lock is an exclusive per-version lock file.
type Lock struct {
	path string
	file *os.File
}

func (s *Store) lockPath(v version.Version) string {
	return filepath.Join(s.Root, "."+v.String()+".lock")
}

// AcquireLock takes the lock for v. The lock lives next to, not inside, the
// version directory so that removing the version does not release it.
func (s *Store) AcquireLock(ctx context.Context, v version.Version) (*Lock, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(s.Root, 0755); err != nil {
		return nil, fmt.Errorf("create dev dir: %w", err)
	}

	lockPath := s.lockPath(v)
	file, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0600)
	if err != nil {
		if !os.IsExist(err) {
			return nil, fmt.Errorf("create lock file: %w", err)
		}
		if stale, _ := isLockStale(lockPath); !stale {
			return nil, ErrLockExists
		}
		s.Log.Warn().Str("lock", lockPath).Msg("removing stale install lock")
		os.Remove(lockPath)
		file, err = os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0600)
		if err != nil {
			return nil, ErrLockExists
		}
	}

	data := fmt.Sprintf("pid=%d\ntimestamp=%s\n", os.Getpid(), time.Now().UTC().Format(time.RFC3339))
	if _, err := file.WriteString(data); err != nil {
		file.Close()
		os.Remove(lockPath)
		return nil, fmt.Errorf("write lock data: %w", err)
	}

	return &Lock{path: lockPath, file: file}, nil
}

// Release removes the lock file. It is safe to call more than once.
func (l *Lock) Release() error {
	if l.file != nil {
		l.file.Close()
		l.file = nil
	}
	if l.path != "" {
		if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove lock file: %w", err)
		}
		l.path = ""
	}
	return nil
}

func isLockStale(lockPath string) (bool, error) {
	info, err := os.Stat(lockPath)
	if err != nil {
		return false, err
	}
	return time.Since(info.ModTime()) > StaleLockThreshold, nil
}
