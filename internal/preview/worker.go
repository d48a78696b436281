package preview

import (
	"context"
	"time"

	"github.com/ivlev/scene2video/internal/script"
	"github.com/ivlev/scene2video/internal/system"
)

// Worker is a running preview server process.
type Worker interface {
	Stop() error
	Exited() bool
}

// Launcher starts a worker listening on port.
type Launcher interface {
	Launch(ctx context.Context, exe string, port int) (Worker, error)
}

const killGrace = 5 * time.Second

// EngineLauncher runs the engine headless with the worker server script,
// rewritten into ScriptDir on every launch.
type EngineLauncher struct {
	Supervisor *system.Supervisor
	ScriptDir  string
}

func (l *EngineLauncher) Launch(_ context.Context, exe string, port int) (Worker, error) {
	if err := system.CheckExecutable(exe); err != nil {
		return nil, err
	}
	path, err := system.WriteServerScript(l.ScriptDir, script.ServerScript(port))
	if err != nil {
		return nil, err
	}
	p, err := l.Supervisor.Start(exe, path)
	if err != nil {
		return nil, err
	}
	return engineWorker{p}, nil
}

type engineWorker struct {
	p *system.Process
}

func (w engineWorker) Stop() error  { return w.p.Kill(killGrace) }
func (w engineWorker) Exited() bool { return w.p.Exited() }
