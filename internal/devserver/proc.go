package devserver

import (
	"os/exec"
	"syscall"
)

// process abstracts the spawned child so tests can substitute one that
// exits on command.
type process interface {
	PID() int
	// Wait blocks until the process exits and returns its exit error.
	Wait() error
	// Terminate asks the whole process group to shut down.
	Terminate() error
	// Kill force-kills the whole process group.
	Kill() error
}

// execProcess wraps exec.Cmd with process-group signaling. The child is
// started in its own group so npm's grandchildren die with it.
type execProcess struct {
	cmd *exec.Cmd
}

// startGroup starts cmd in a new process group and wraps it.
func startGroup(cmd *exec.Cmd) (*execProcess, error) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return &execProcess{cmd: cmd}, nil
}

func (p *execProcess) PID() int { return p.cmd.Process.Pid }

func (p *execProcess) Wait() error { return p.cmd.Wait() }

func (p *execProcess) Terminate() error {
	return syscall.Kill(-p.cmd.Process.Pid, syscall.SIGTERM)
}

func (p *execProcess) Kill() error {
	return syscall.Kill(-p.cmd.Process.Pid, syscall.SIGKILL)
}

var _ process = (*execProcess)(nil)
