// Package variant composes the metadata store, worktree manager, and
// dev-server orchestrator into the public operation set: create, remove,
// preview start/stop, status, patch, and merge, with lifecycle events.
package variant

import (
	"context"
	"fmt"
	"os"

	"github.com/uivar/uivar/internal/config"
	"github.com/uivar/uivar/internal/devserver"
	"github.com/uivar/uivar/internal/exec"
	"github.com/uivar/uivar/internal/framework"
	"github.com/uivar/uivar/internal/git"
	"github.com/uivar/uivar/internal/journal"
	"github.com/uivar/uivar/internal/metadata"
	"github.com/uivar/uivar/internal/ports"
	"github.com/uivar/uivar/internal/worktree"
)

// Manager is the facade over all variant operations for one project.
type Manager struct {
	projectPath string
	projectKey  string
	cfg         *config.Config

	store     *metadata.Store
	worktrees *worktree.Manager
	servers   *devserver.Orchestrator
	journal   *journal.Journal
	emitter   *EventEmitter
	exec      exec.CommandRunner
	logger    *DebugLogger
}

// Option configures a Manager.
type Option func(*Manager)

// WithGitRunner substitutes the git runner (for testing).
func WithGitRunner(runner git.Runner) Option {
	return func(m *Manager) {
		m.worktrees = worktree.NewManagerWithRunner(m.projectPath, m.store, runner)
	}
}

// WithExecRunner substitutes the hook command runner (for testing).
func WithExecRunner(runner exec.CommandRunner) Option {
	return func(m *Manager) {
		m.exec = runner
	}
}

// WithOrchestrator substitutes the dev-server orchestrator (for testing).
func WithOrchestrator(o *devserver.Orchestrator) Option {
	return func(m *Manager) {
		m.servers = o
	}
}

// WithLogger substitutes the debug logger.
func WithLogger(l *DebugLogger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// New creates the variant manager for a project. The journal is opened
// best-effort; a journal failure is logged and disables history, nothing
// else.
func New(projectPath string, cfg *config.Config, opts ...Option) (*Manager, error) {
	if cfg == nil {
		cfg = config.Default()
	}

	logger := NewDebugLoggerForData(cfg.Data.Dir)

	store := metadata.NewStore(cfg.Data.Dir,
		metadata.WithLockTimeouts(cfg.Timeouts.Lock, cfg.Timeouts.LockStale),
		metadata.WithLogger(logger.Log),
	)

	registry := framework.NewRegistry()
	if err := registry.LoadCustomAdapters(config.GetAdaptersPath()); err != nil {
		logger.Log("load custom adapters: %v", err)
	}

	alloc := ports.NewAllocator(cfg.Ports.Base, cfg.Ports.BlockSize, cfg.Ports.Blocks)
	orchestrator := devserver.New(registry, alloc,
		devserver.WithTimeouts(cfg.Timeouts.ServerStart, cfg.Timeouts.ServerStop),
		devserver.WithLogger(logger.Log),
	)

	m := &Manager{
		projectPath: projectPath,
		projectKey:  metadata.ProjectKey(projectPath),
		cfg:         cfg,
		store:       store,
		worktrees:   worktree.NewManager(projectPath, store),
		servers:     orchestrator,
		emitter:     NewEventEmitter(64),
		exec:        exec.NewRunner(),
		logger:      logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.worktrees.SetLogger(m.logger.Log)

	j, err := journal.Open(store.ProjectDir(projectPath))
	if err != nil {
		logger.Log("open journal: %v", err)
	} else {
		m.journal = j
	}

	return m, nil
}

// Close releases the journal and log file. Running servers are not
// touched; call StopAll first if they should die with the process.
func (m *Manager) Close() error {
	if m.journal != nil {
		if err := m.journal.Close(); err != nil {
			m.logger.Log("close journal: %v", err)
		}
	}
	return m.logger.Close()
}

// Events returns the lifecycle event channel.
func (m *Manager) Events() <-chan Event {
	return m.emitter.Events()
}

// Journal returns the project's lifecycle journal, or nil if it could
// not be opened.
func (m *Manager) Journal() *journal.Journal {
	return m.journal
}

// record writes a journal row, best-effort.
func (m *Manager) record(variantID string, event EventType, detail string) {
	if m.journal == nil {
		return
	}
	if err := m.journal.Record(variantID, string(event), detail); err != nil {
		m.logger.Log("journal %s for variant %s: %v", event, variantID, err)
	}
}

// Create makes a new variant from baseRef and runs the post-creation
// hooks.
func (m *Manager) Create(baseRef, description string) (*worktree.CreateResult, error) {
	result, err := m.worktrees.Create(baseRef, description)
	if err != nil {
		return nil, err
	}

	m.runPostCreateHooks(result.Path)
	m.record(result.VariantID, EventVariantCreated, result.Branch)
	m.emitter.Emit(Event{
		Type:      EventVariantCreated,
		VariantID: result.VariantID,
		Message:   result.Branch,
	})
	return result, nil
}

// Remove stops the variant's preview if running, then tears down its
// worktree, branch, and metadata record.
func (m *Manager) Remove(variantID string) error {
	if err := m.servers.StopServer(m.projectKey, variantID); err != nil {
		m.logger.Log("stop server before removing variant %s: %v", variantID, err)
	}

	if err := m.worktrees.Remove(variantID); err != nil {
		return err
	}

	m.record(variantID, EventVariantRemoved, "")
	m.emitter.Emit(Event{Type: EventVariantRemoved, VariantID: variantID})
	return nil
}

// StartPreview starts the variant's dev server and blocks until it is
// ready or fails. The resulting status and port are mirrored into the
// metadata record for other instances to observe.
func (m *Manager) StartPreview(ctx context.Context, variantID string) (devserver.Info, error) {
	wtPath := m.store.WorktreePath(m.projectPath, variantID)
	if _, err := os.Stat(wtPath); err != nil {
		return devserver.Info{}, fmt.Errorf("variant %s worktree missing at %s: %w", variantID, wtPath, err)
	}

	m.record(variantID, EventPreviewStarting, "")
	m.emitter.Emit(Event{Type: EventPreviewStarting, VariantID: variantID})

	info, err := m.servers.StartServer(ctx, wtPath, m.projectKey, variantID)
	if err != nil {
		msg := err.Error()
		if uerr := m.store.UpdateVariant(m.projectPath, variantID, func(v *metadata.Variant) {
			v.Status = metadata.StatusFailed
			v.Error = msg
		}); uerr != nil {
			m.logger.Log("mark variant %s failed: %v", variantID, uerr)
		}
		m.record(variantID, EventPreviewFailed, msg)
		m.emitter.Emit(Event{Type: EventPreviewFailed, VariantID: variantID, Message: msg})
		return info, err
	}

	if uerr := m.store.UpdateVariant(m.projectPath, variantID, func(v *metadata.Variant) {
		v.Status = metadata.StatusRunning
		v.Port = info.Port
		v.Error = ""
	}); uerr != nil {
		m.logger.Log("mark variant %s running: %v", variantID, uerr)
	}
	m.record(variantID, EventPreviewReady, fmt.Sprintf("port %d", info.Port))
	m.emitter.Emit(Event{Type: EventPreviewReady, VariantID: variantID, Port: info.Port})
	return info, nil
}

// StopPreview stops the variant's dev server. The port stays on the
// record as the last port used.
func (m *Manager) StopPreview(variantID string) error {
	if err := m.servers.StopServer(m.projectKey, variantID); err != nil {
		return err
	}

	if uerr := m.store.UpdateVariant(m.projectPath, variantID, func(v *metadata.Variant) {
		v.Status = metadata.StatusStopped
	}); uerr != nil {
		m.logger.Log("mark variant %s stopped: %v", variantID, uerr)
	}
	m.record(variantID, EventPreviewStopped, "")
	m.emitter.Emit(Event{Type: EventPreviewStopped, VariantID: variantID})
	return nil
}

// StopAll stops every running dev server for this process instance.
func (m *Manager) StopAll() error {
	return m.servers.StopAll()
}

// ProjectStatus is a combined view of durable metadata and live server
// state.
type ProjectStatus struct {
	Project *metadata.ProjectMetadata
	Servers []devserver.Info
}

// Status returns the project's metadata overlaid with live server info
// from this instance. A project with no record yet returns an empty,
// non-nil status.
func (m *Manager) Status() (*ProjectStatus, error) {
	md, err := m.store.Read(m.projectPath)
	if err != nil {
		return nil, err
	}
	if md == nil {
		md = &metadata.ProjectMetadata{
			ProjectPath: metadata.CanonicalProjectPath(m.projectPath),
			Variants:    []metadata.Variant{},
		}
	}
	return &ProjectStatus{
		Project: md,
		Servers: m.servers.Servers(),
	}, nil
}

// MetadataPath returns the project's metadata file path, for watchers.
func (m *Manager) MetadataPath() string {
	return metadata.MetadataPath(m.cfg.Data.Dir, m.projectPath)
}

// ApplyPatch applies unified-diff text to the variant's worktree and
// commits it.
func (m *Manager) ApplyPatch(variantID, patchText string) error {
	if err := m.worktrees.ApplyPatch(variantID, patchText); err != nil {
		return err
	}
	m.record(variantID, EventVariantUpdated, "patch applied")
	m.emitter.Emit(Event{Type: EventVariantUpdated, VariantID: variantID, Message: "patch applied"})
	return nil
}

// Merge merges the variant into targetBranch and, on success, removes
// the variant.
func (m *Manager) Merge(variantID, targetBranch string, strategy worktree.Strategy) error {
	if err := m.servers.StopServer(m.projectKey, variantID); err != nil {
		m.logger.Log("stop server before merging variant %s: %v", variantID, err)
	}

	if err := m.worktrees.Merge(variantID, targetBranch, strategy); err != nil {
		return err
	}

	m.record(variantID, EventVariantRemoved, fmt.Sprintf("merged into %s (%s)", targetBranch, strategy))
	m.emitter.Emit(Event{
		Type:      EventVariantRemoved,
		VariantID: variantID,
		Message:   fmt.Sprintf("merged into %s", targetBranch),
	})
	return nil
}

// Worktrees exposes the underlying worktree manager for cleanup tooling.
func (m *Manager) Worktrees() *worktree.Manager {
	return m.worktrees
}

// ProjectKey returns the project's stable identity key.
func (m *Manager) ProjectKey() string {
	return m.projectKey
}
