package system

import (
	"errors"
	"fmt"
	"os/exec"
	"time"

	"github.com/shirou/gopsutil/v3/process"
)

// Process is a running engine started by Supervisor.Start.
type Process struct {
	cmd  *exec.Cmd
	done chan struct{}
	err  error
}

func (p *Process) Pid() int {
	return p.cmd.Process.Pid
}

// Done is closed once the process has exited and its output is drained.
func (p *Process) Done() <-chan struct{} {
	return p.done
}

func (p *Process) Exited() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// Err is the wait result. Only meaningful after Done is closed.
func (p *Process) Err() error {
	<-p.done
	return p.err
}

// Kill terminates the process and everything it spawned, then waits up to
// grace for it to be reaped.
func (p *Process) Kill(grace time.Duration) error {
	if p.Exited() {
		return nil
	}
	if err := KillTree(p.Pid()); err != nil {
		return err
	}
	select {
	case <-p.done:
		return nil
	case <-time.After(grace):
		return fmt.Errorf("engine process %d still running after kill", p.Pid())
	}
}

// KillTree kills pid and its descendants, children first. A process that is
// already gone is not an error.
func KillTree(pid int) error {
	proc, err := process.NewProcess(int32(pid))
	if err != nil {
		if errors.Is(err, process.ErrorProcessNotRunning) {
			return nil
		}
		return err
	}
	killTree(proc)
	if err := proc.Kill(); err != nil {
		if running, _ := proc.IsRunning(); !running {
			return nil
		}
		return fmt.Errorf("kill %d: %w", pid, err)
	}
	return nil
}

func killTree(p *process.Process) {
	children, err := p.Children()
	if err != nil {
		return
	}
	for _, c := range children {
		killTree(c)
		_ = c.Kill()
	}
}
