// Package system runs the external rendering engine as a child process.
package system

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/ivlev/scene2video/internal/console"
)

var (
	ErrExecutableNotFound = errors.New("engine executable not found")
	ErrLaunch             = errors.New("engine launch failed")
)

// ExitError reports a non-zero engine exit with the last lines it wrote to stderr.
type ExitError struct {
	Code int
	Tail []string
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("engine exited with code %d", e.Code)
	if len(e.Tail) > 0 {
		msg += ": " + e.Tail[len(e.Tail)-1]
	}
	return msg
}

// DefaultTailLines is how much stderr an ExitError keeps.
const DefaultTailLines = 20

const (
	stdoutTag = "[Engine] "
	stderrTag = "[Engine Error] "
)

// EngineArgs is the headless invocation running scriptPath.
func EngineArgs(scriptPath string) []string {
	return []string{"--background", "--python", scriptPath}
}

// CheckExecutable fails with ErrExecutableNotFound unless path names a regular file.
func CheckExecutable(path string) error {
	if path == "" {
		return fmt.Errorf("%w: path is empty", ErrExecutableNotFound)
	}
	fi, err := os.Stat(path)
	if err != nil || fi.IsDir() {
		return fmt.Errorf("%w: %s", ErrExecutableNotFound, path)
	}
	return nil
}

// Supervisor launches engine processes, forwards their output to Sink and
// registers every child with Group.
type Supervisor struct {
	Sink      console.Sink
	Group     ProcessGroup
	TailLines int
}

func NewSupervisor(sink console.Sink, group ProcessGroup) *Supervisor {
	return &Supervisor{Sink: sink, Group: group, TailLines: DefaultTailLines}
}

func (s *Supervisor) sink() console.Sink {
	if s.Sink == nil {
		return console.Discard
	}
	return s.Sink
}

func (s *Supervisor) group() ProcessGroup {
	if s.Group == nil {
		return noopGroup{}
	}
	return s.Group
}

// RunOnce runs the engine on scriptPath and waits for it to exit. The script
// file is removed on every return path. Cancelling ctx kills the engine and
// its children.
func (s *Supervisor) RunOnce(ctx context.Context, exe, scriptPath string, capture bool) (int, error) {
	defer RemoveScript(scriptPath, s.sink())

	if err := CheckExecutable(exe); err != nil {
		return -1, err
	}

	cmd := exec.CommandContext(ctx, exe, EngineArgs(scriptPath)...)
	cmd.Cancel = func() error {
		return KillTree(cmd.Process.Pid)
	}
	s.group().Prepare(cmd)

	var stdout, stderr io.ReadCloser
	if capture {
		var err error
		if stdout, err = cmd.StdoutPipe(); err != nil {
			return -1, fmt.Errorf("%w: %v", ErrLaunch, err)
		}
		if stderr, err = cmd.StderrPipe(); err != nil {
			return -1, fmt.Errorf("%w: %v", ErrLaunch, err)
		}
	}

	if err := startIn(s.group(), cmd); err != nil {
		return -1, fmt.Errorf("%w: %v", ErrLaunch, err)
	}
	s.group().Register(cmd.Process.Pid)

	tail := newTail(s.TailLines)
	var g errgroup.Group
	if capture {
		g.Go(func() error { return s.pump(stdout, stdoutTag, nil) })
		g.Go(func() error { return s.pump(stderr, stderrTag, tail) })
	}
	// pipes must be drained before Wait closes them
	if err := g.Wait(); err != nil {
		console.Logf(s.sink(), "Warning: engine output: %v", err)
	}

	if err := cmd.Wait(); err != nil {
		if ctx.Err() != nil {
			return -1, ctx.Err()
		}
		var ee *exec.ExitError
		if errors.As(err, &ee) {
			return ee.ExitCode(), &ExitError{Code: ee.ExitCode(), Tail: tail.lines()}
		}
		return -1, fmt.Errorf("wait for engine: %w", err)
	}
	return 0, nil
}

// Start launches a long-lived engine process running scriptPath. Its output
// is forwarded to the sink until it exits. The script file is left in place.
func (s *Supervisor) Start(exe, scriptPath string) (*Process, error) {
	if err := CheckExecutable(exe); err != nil {
		return nil, err
	}

	cmd := exec.Command(exe, EngineArgs(scriptPath)...)
	s.group().Prepare(cmd)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLaunch, err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLaunch, err)
	}
	if err := startIn(s.group(), cmd); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLaunch, err)
	}
	s.group().Register(cmd.Process.Pid)

	p := &Process{cmd: cmd, done: make(chan struct{})}
	go func() {
		var g errgroup.Group
		g.Go(func() error { return s.pump(stdout, stdoutTag, nil) })
		g.Go(func() error { return s.pump(stderr, stderrTag, nil) })
		_ = g.Wait()
		p.err = cmd.Wait()
		close(p.done)
	}()
	return p, nil
}

func (s *Supervisor) pump(r io.Reader, tag string, tail *tail) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		if line == "" {
			continue
		}
		s.sink().Append(tag + line)
		if tail != nil {
			tail.add(line)
		}
	}
	return sc.Err()
}

// tail is a fixed-size ring of the most recent lines.
type tail struct {
	mu   sync.Mutex
	max  int
	buf  []string
	next int
	full bool
}

func newTail(n int) *tail {
	if n <= 0 {
		n = DefaultTailLines
	}
	return &tail{max: n, buf: make([]string, n)}
}

func (t *tail) add(line string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf[t.next] = line
	t.next = (t.next + 1) % t.max
	if t.next == 0 {
		t.full = true
	}
}

func (t *tail) lines() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.full {
		return append([]string(nil), t.buf[:t.next]...)
	}
	out := make([]string, 0, t.max)
	out = append(out, t.buf[t.next:]...)
	return append(out, t.buf[:t.next]...)
}
