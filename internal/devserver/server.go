package devserver

import (
	"bufio"
	"io"
	"sync"
	"time"

	"github.com/uivar/uivar/internal/framework"
	"github.com/uivar/uivar/internal/ports"
)

// Status is the lifecycle state of one dev-server process instance.
type Status string

const (
	// StatusStarting means the process is spawned but not yet ready.
	StatusStarting Status = "starting"
	// StatusReady means a readiness signal fired.
	StatusReady Status = "ready"
	// StatusFailed means the start timed out, the process errored, or it
	// exited unexpectedly. Terminal for this instance.
	StatusFailed Status = "failed"
	// StatusStopped means an explicit stop was requested. Terminal for
	// this instance.
	StatusStopped Status = "stopped"
)

// Info is a point-in-time snapshot of a tracked server.
type Info struct {
	ProjectKey string
	VariantID  string
	Framework  string
	Port       int
	PID        int
	Status     Status
	Err        error
	StartedAt  time.Time
}

// server tracks one dev-server process and its state machine.
type server struct {
	projectKey string
	variantID  string
	adapter    framework.Adapter
	port       int
	pid        int
	startedAt  time.Time

	reservation *ports.Reservation
	proc        process

	mu     sync.Mutex
	status Status
	err    error

	// done closes when the starting phase resolves (ready or failed).
	// exited closes when the process has been reaped.
	startOnce sync.Once
	done      chan struct{}
	exited    chan struct{}
}

func newServer(projectKey, variantID string, adapter framework.Adapter, res *ports.Reservation) *server {
	return &server{
		projectKey:  projectKey,
		variantID:   variantID,
		adapter:     adapter,
		port:        res.Port(),
		startedAt:   time.Now(),
		reservation: res,
		status:      StatusStarting,
		done:        make(chan struct{}),
		exited:      make(chan struct{}),
	}
}

// info returns a snapshot under the server's lock.
func (s *server) info() Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Info{
		ProjectKey: s.projectKey,
		VariantID:  s.variantID,
		Framework:  s.adapter.Name(),
		Port:       s.port,
		PID:        s.pid,
		Status:     s.status,
		Err:        s.err,
		StartedAt:  s.startedAt,
	}
}

// complete resolves the starting phase exactly once. The first signal
// wins; later calls are ignored. Failure releases the port reservation.
func (s *server) complete(status Status, err error) {
	s.startOnce.Do(func() {
		s.mu.Lock()
		// An explicit stop during startup outranks both signals.
		if s.status == StatusStarting {
			s.status = status
			s.err = err
		}
		s.mu.Unlock()

		if status != StatusReady {
			s.reservation.Release()
		}
		close(s.done)
	})
}

// markStopped records an explicit stop, outranking any later exit or
// readiness signal.
func (s *server) markStopped() {
	s.mu.Lock()
	s.status = StatusStopped
	s.mu.Unlock()

	// Unblock any start waiter.
	s.complete(StatusStopped, nil)
}

// isStopped reports whether an explicit stop was requested.
func (s *server) isStopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status == StatusStopped
}

// markExited transitions to failed on an unexpected process exit.
func (s *server) markExited(exitErr error) {
	s.mu.Lock()
	unexpected := s.status != StatusStopped
	if unexpected {
		s.status = StatusFailed
		s.err = exitErr
	}
	s.mu.Unlock()

	if unexpected {
		s.complete(StatusFailed, exitErr)
	}
	s.reservation.Release()
	close(s.exited)
}

// scanForReady matches process output lines against the framework's
// ready pattern and resolves the start on the first hit.
func (s *server) scanForReady(r io.Reader) {
	pattern := s.adapter.ReadyPattern()
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if pattern != nil && pattern.MatchString(scanner.Text()) {
			s.complete(StatusReady, nil)
			// Keep draining so the child never blocks on a full pipe.
		}
	}
}
