package system

import (
	"os/exec"
	"runtime"
	"sync"
	"syscall"

	"github.com/ivlev/scene2video/internal/console"
)

// deathSignalGroup asks the kernel to SIGKILL each child when this process
// dies. Pdeathsig is tied to the OS thread that forked the child, not to the
// process (go.dev/issue/27505), so the guarantee is best-effort: a child
// forked from a thread that later exits is killed early. Start forks every
// child from one thread that stays locked for the life of the process.
type deathSignalGroup struct{}

func NewProcessGroup(console.Sink) ProcessGroup {
	return deathSignalGroup{}
}

func (deathSignalGroup) Prepare(cmd *exec.Cmd) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.Pdeathsig = syscall.SIGKILL
}

func (deathSignalGroup) Start(cmd *exec.Cmd) error {
	errc := make(chan error, 1)
	spawnThread() <- spawnRequest{cmd: cmd, err: errc}
	return <-errc
}

func (deathSignalGroup) Register(int) {}

func (deathSignalGroup) Close() error { return nil }

type spawnRequest struct {
	cmd *exec.Cmd
	err chan<- error
}

var (
	spawnOnce sync.Once
	spawnCh   chan spawnRequest
)

// spawnThread returns the queue of the forking goroutine. It locks its
// thread and never returns, so the runtime never retires that thread.
func spawnThread() chan<- spawnRequest {
	spawnOnce.Do(func() {
		spawnCh = make(chan spawnRequest)
		go func() {
			runtime.LockOSThread()
			for req := range spawnCh {
				req.err <- req.cmd.Start()
			}
		}()
	})
	return spawnCh
}
