// Package devserver runs and supervises one dev-server process per
// running variant: spawn with an injected port, dual readiness signals,
// and graceful process-group termination.
package devserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/uivar/uivar/internal/framework"
	"github.com/uivar/uivar/internal/ports"
)

// ErrStartTimeout is returned when neither readiness signal fires within
// the start timeout.
var ErrStartTimeout = errors.New("dev server start timed out")

// Orchestrator owns the table of running dev servers for this process
// instance. The table is in-memory only; observers read status from the
// metadata record, which callers keep in sync.
type Orchestrator struct {
	registry *framework.Registry
	alloc    *ports.Allocator

	startTimeout   time.Duration
	stopTimeout    time.Duration
	healthInterval time.Duration
	logf           func(format string, args ...interface{})

	mu      sync.Mutex
	servers map[string]*server
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithTimeouts overrides the start and stop timeouts.
func WithTimeouts(start, stop time.Duration) Option {
	return func(o *Orchestrator) {
		if start > 0 {
			o.startTimeout = start
		}
		if stop > 0 {
			o.stopTimeout = stop
		}
	}
}

// WithHealthInterval overrides the HTTP health probe interval.
func WithHealthInterval(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.healthInterval = d
		}
	}
}

// WithLogger sets the best-effort debug logger.
func WithLogger(logf func(format string, args ...interface{})) Option {
	return func(o *Orchestrator) {
		if logf != nil {
			o.logf = logf
		}
	}
}

// New creates an Orchestrator with default timeouts (60s start, 5s stop,
// 1s health probes).
func New(registry *framework.Registry, alloc *ports.Allocator, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		registry:       registry,
		alloc:          alloc,
		startTimeout:   60 * time.Second,
		stopTimeout:    5 * time.Second,
		healthInterval: time.Second,
		logf:           func(format string, args ...interface{}) {},
		servers:        make(map[string]*server),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func serverKey(projectKey, variantID string) string {
	return projectKey + "/" + variantID
}

// untrack drops a server from the table if still present.
func (o *Orchestrator) untrack(key string) {
	o.mu.Lock()
	delete(o.servers, key)
	o.mu.Unlock()
}

// StartServer starts the dev server for a variant's worktree and blocks
// until it is ready, fails, or the context is cancelled.
//
// If a live server for (projectKey, variantID) is already tracked its
// current info is returned without starting a second process. A tracked
// server in a terminal state is replaced by a fresh instance.
func (o *Orchestrator) StartServer(ctx context.Context, projectPath, projectKey, variantID string) (Info, error) {
	key := serverKey(projectKey, variantID)

	o.mu.Lock()
	if existing, ok := o.servers[key]; ok {
		info := existing.info()
		if info.Status == StatusStarting || info.Status == StatusReady {
			o.mu.Unlock()
			return info, nil
		}
		delete(o.servers, key)
	}
	o.mu.Unlock()

	adapter, err := o.registry.Detect(projectPath)
	if err != nil {
		return Info{}, fmt.Errorf("detect framework in %s: %w", projectPath, err)
	}

	res, err := o.alloc.AllocateWithReservation(projectKey, variantID)
	if err != nil {
		return Info{}, fmt.Errorf("allocate port for variant %s: %w", variantID, err)
	}

	s := newServer(projectKey, variantID, adapter, res)

	o.mu.Lock()
	if _, ok := o.servers[key]; ok {
		// Lost a concurrent start race for the same variant.
		o.mu.Unlock()
		res.Release()
		return o.StartServer(ctx, projectPath, projectKey, variantID)
	}
	o.servers[key] = s
	o.mu.Unlock()

	if err := o.spawn(s, projectPath); err != nil {
		s.complete(StatusFailed, err)
		o.untrack(key)
		return Info{}, fmt.Errorf("start %s dev server for variant %s: %w", adapter.Name(), variantID, err)
	}

	o.logf("variant %s: %s dev server starting on port %d (pid %d)",
		variantID, adapter.Name(), s.port, s.pid)

	go o.healthLoop(s)

	select {
	case <-s.done:
	case <-time.After(o.startTimeout):
		s.complete(StatusFailed, fmt.Errorf("%w after %s", ErrStartTimeout, o.startTimeout))
	case <-ctx.Done():
		s.complete(StatusFailed, ctx.Err())
	}
	<-s.done

	info := s.info()
	if info.Status != StatusReady {
		o.teardown(s)
		o.untrack(key)
		if info.Err != nil {
			return info, fmt.Errorf("variant %s dev server: %w", variantID, info.Err)
		}
		return info, fmt.Errorf("variant %s dev server entered %s", variantID, info.Status)
	}
	return info, nil
}

// spawn builds and starts the framework's dev-server command in its own
// process group, wires readiness scanning, and watches for exit.
func (o *Orchestrator) spawn(s *server, projectPath string) error {
	args := append(s.adapter.StartCommand(), s.adapter.PortArgs(s.port)...)
	if len(args) == 0 {
		return errors.New("framework has no start command")
	}

	cmd := exec.Command(args[0], args[1:]...)
	cmd.Dir = projectPath
	cmd.Env = append(os.Environ(), s.adapter.EnvVars(s.port)...)
	// Stdin stays nil so the child reads /dev/null instead of blocking
	// on an interactive prompt.

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}

	// The reservation listener must be gone before the child tries to
	// bind the same port.
	s.reservation.Release()

	proc, err := startGroup(cmd)
	if err != nil {
		return err
	}
	s.proc = proc
	s.pid = proc.PID()

	go s.scanForReady(stdout)
	go s.scanForReady(stderr)
	go func() {
		err := proc.Wait()
		if !s.isStopped() {
			if err == nil {
				err = errors.New("dev server exited before being stopped")
			} else {
				err = fmt.Errorf("dev server exited: %w", err)
			}
		}
		s.markExited(err)
	}()

	return nil
}

// healthLoop probes the framework's health URL until the start resolves.
func (o *Orchestrator) healthLoop(s *server) {
	client := &http.Client{Timeout: o.healthInterval}
	url := s.adapter.HealthCheckURL(s.port)

	ticker := time.NewTicker(o.healthInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
		}

		resp, err := client.Get(url)
		if err != nil {
			continue
		}
		healthy := s.adapter.ValidateHealth(resp)
		resp.Body.Close()
		if healthy {
			s.complete(StatusReady, nil)
			return
		}
	}
}

// StopServer stops a variant's dev server: mark stopped, SIGTERM the
// process group, wait up to the stop timeout, then SIGKILL. The port
// reservation is released unconditionally. Stopping an untracked
// variant is a no-op.
func (o *Orchestrator) StopServer(projectKey, variantID string) error {
	key := serverKey(projectKey, variantID)

	o.mu.Lock()
	s, ok := o.servers[key]
	if ok {
		delete(o.servers, key)
	}
	o.mu.Unlock()
	if !ok {
		return nil
	}

	s.markStopped()
	o.teardown(s)
	o.logf("variant %s: dev server stopped", variantID)
	return nil
}

// teardown terminates the process group with escalation and releases the
// reservation. Safe to call when the process already exited.
func (o *Orchestrator) teardown(s *server) {
	defer s.reservation.Release()

	if s.proc == nil {
		return
	}

	select {
	case <-s.exited:
		return
	default:
	}

	if err := s.proc.Terminate(); err != nil {
		o.logf("variant %s: terminate process group: %v", s.variantID, err)
	}

	select {
	case <-s.exited:
		return
	case <-time.After(o.stopTimeout):
	}

	if err := s.proc.Kill(); err != nil {
		o.logf("variant %s: kill process group: %v", s.variantID, err)
	}
	<-s.exited
}

// StopAll stops every tracked server concurrently and waits for all of
// them before returning.
func (o *Orchestrator) StopAll() error {
	o.mu.Lock()
	tracked := make([]*server, 0, len(o.servers))
	for _, s := range o.servers {
		tracked = append(tracked, s)
	}
	o.servers = make(map[string]*server)
	o.mu.Unlock()

	var g errgroup.Group
	for _, s := range tracked {
		s := s
		g.Go(func() error {
			s.markStopped()
			o.teardown(s)
			return nil
		})
	}
	return g.Wait()
}

// Lookup returns the current info for a tracked server.
func (o *Orchestrator) Lookup(projectKey, variantID string) (Info, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	s, ok := o.servers[serverKey(projectKey, variantID)]
	if !ok {
		return Info{}, false
	}
	return s.info(), true
}

// Servers returns snapshots of all tracked servers, ordered by variant.
func (o *Orchestrator) Servers() []Info {
	o.mu.Lock()
	infos := make([]Info, 0, len(o.servers))
	for _, s := range o.servers {
		infos = append(infos, s.info())
	}
	o.mu.Unlock()

	sort.Slice(infos, func(i, j int) bool {
		if infos[i].ProjectKey != infos[j].ProjectKey {
			return infos[i].ProjectKey < infos[j].ProjectKey
		}
		return infos[i].VariantID < infos[j].VariantID
	})
	return infos
}
