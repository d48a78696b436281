package system

import "os/exec"

// ProcessGroup ties spawned engine processes to the lifetime of this one so
// a crash does not leave them running. Where the OS has no such primitive
// the group does nothing.
type ProcessGroup interface {
	// Prepare adjusts cmd before it is started.
	Prepare(cmd *exec.Cmd)
	// Register adds a started process. Failures are logged, never returned.
	Register(pid int)
	Close() error
}

type noopGroup struct{}

func (noopGroup) Prepare(*exec.Cmd) {}
func (noopGroup) Register(int)      {}
func (noopGroup) Close() error      { return nil }

// starter is implemented by groups that must control the thread a child is
// forked from.
type starter interface {
	Start(cmd *exec.Cmd) error
}

func startIn(g ProcessGroup, cmd *exec.Cmd) error {
	if st, ok := g.(starter); ok {
		return st.Start(cmd)
	}
	return cmd.Start()
}
