package metadata

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrLockTimeout is returned when a metadata lock cannot be acquired
// within the configured wait budget.
var ErrLockTimeout = errors.New("metadata lock acquisition timed out")

// lockInfo is the content of an on-disk lock file, used to diagnose and
// reclaim stale locks left behind by crashed processes.
type lockInfo struct {
	Owner      string    `json:"owner"`
	PID        int       `json:"pid"`
	AcquiredAt time.Time `json:"acquiredAt"`
}

// pathLocker serializes access to metadata files with two layers:
// an in-process mutex per path so concurrent calls from the same instance
// never interleave, and a cross-process lock file so independent instances
// against the same project can't interleave writes either.
type pathLocker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex

	timeout    time.Duration // bounded wait for acquisition
	staleAfter time.Duration // lock age past which it is reclaimed
}

// newPathLocker creates a pathLocker with the given acquisition timeout
// and staleness threshold.
func newPathLocker(timeout, staleAfter time.Duration) *pathLocker {
	return &pathLocker{
		locks:      make(map[string]*sync.Mutex),
		timeout:    timeout,
		staleAfter: staleAfter,
	}
}

// inProcessLock returns the in-process mutex for the given path.
func (l *pathLocker) inProcessLock(path string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()

	m, ok := l.locks[path]
	if !ok {
		m = &sync.Mutex{}
		l.locks[path] = m
	}
	return m
}

// withLock runs fn while holding both lock layers for the given path.
func (l *pathLocker) withLock(path string, fn func() error) error {
	m := l.inProcessLock(path)
	m.Lock()
	defer m.Unlock()

	release, err := l.acquireFileLock(path)
	if err != nil {
		return err
	}
	defer release()

	return fn()
}

// acquireFileLock takes the cross-process advisory lock for path.
// It retries with backoff up to the timeout and reclaims locks older
// than the staleness threshold.
func (l *pathLocker) acquireFileLock(path string) (func(), error) {
	lockPath := path + ".lock"
	owner := uuid.New().String()
	deadline := time.Now().Add(l.timeout)
	backoff := 25 * time.Millisecond

	for {
		err := l.tryCreateLockFile(lockPath, owner)
		if err == nil {
			return func() { _ = os.Remove(lockPath) }, nil
		}
		if !os.IsExist(err) {
			return nil, fmt.Errorf("create lock file %s: %w", lockPath, err)
		}

		// Lock held by someone else. Reclaim if it looks abandoned.
		if l.reclaimIfStale(lockPath) {
			continue
		}

		if time.Now().After(deadline) {
			return nil, fmt.Errorf("%w: %s held for too long", ErrLockTimeout, lockPath)
		}

		time.Sleep(backoff)
		if backoff < 500*time.Millisecond {
			backoff *= 2
		}
	}
}

// tryCreateLockFile atomically creates the lock file with owner info.
func (l *pathLocker) tryCreateLockFile(lockPath, owner string) error {
	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	info := lockInfo{
		Owner:      owner,
		PID:        os.Getpid(),
		AcquiredAt: time.Now(),
	}
	enc := json.NewEncoder(f)
	if err := enc.Encode(&info); err != nil {
		// Unreadable lock content only degrades staleness diagnosis.
		return nil
	}
	return nil
}

// reclaimIfStale removes a lock file whose holder appears abandoned.
// Returns true if the lock was removed and acquisition should retry
// immediately.
func (l *pathLocker) reclaimIfStale(lockPath string) bool {
	acquiredAt := time.Time{}

	if data, err := os.ReadFile(lockPath); err == nil {
		var info lockInfo
		if json.Unmarshal(data, &info) == nil {
			acquiredAt = info.AcquiredAt
		}
	}

	// Fall back to file mtime when the content is unreadable.
	if acquiredAt.IsZero() {
		fi, err := os.Stat(lockPath)
		if err != nil {
			// Lock vanished between attempts; retry right away.
			return os.IsNotExist(err)
		}
		acquiredAt = fi.ModTime()
	}

	if time.Since(acquiredAt) < l.staleAfter {
		return false
	}

	return os.Remove(lockPath) == nil
}
