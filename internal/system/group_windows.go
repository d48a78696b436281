package system

import (
	"os/exec"
	"sync"
	"unsafe"

	"golang.org/x/sys/windows"

	"github.com/ivlev/scene2video/internal/console"
)

// jobGroup assigns children to a job object that kills them when its last
// handle, owned by this process, is closed.
type jobGroup struct {
	sink console.Sink

	mu  sync.Mutex
	job windows.Handle
}

func NewProcessGroup(sink console.Sink) ProcessGroup {
	if sink == nil {
		sink = console.Discard
	}
	job, err := windows.CreateJobObject(nil, nil)
	if err != nil {
		console.Logf(sink, "Warning: job object unavailable: %v", err)
		return noopGroup{}
	}

	info := windows.JOBOBJECT_EXTENDED_LIMIT_INFORMATION{
		BasicLimitInformation: windows.JOBOBJECT_BASIC_LIMIT_INFORMATION{
			LimitFlags: windows.JOB_OBJECT_LIMIT_KILL_ON_JOB_CLOSE,
		},
	}
	if _, err := windows.SetInformationJobObject(
		job,
		windows.JobObjectExtendedLimitInformation,
		uintptr(unsafe.Pointer(&info)),
		uint32(unsafe.Sizeof(info)),
	); err != nil {
		console.Logf(sink, "Warning: job object limits: %v", err)
		_ = windows.CloseHandle(job)
		return noopGroup{}
	}
	return &jobGroup{sink: sink, job: job}
}

func (g *jobGroup) Prepare(*exec.Cmd) {}

func (g *jobGroup) Register(pid int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.job == 0 {
		return
	}

	h, err := windows.OpenProcess(windows.PROCESS_SET_QUOTA|windows.PROCESS_TERMINATE, false, uint32(pid))
	if err != nil {
		console.Logf(g.sink, "Warning: open process %d: %v", pid, err)
		return
	}
	defer windows.CloseHandle(h)

	if err := windows.AssignProcessToJobObject(g.job, h); err != nil {
		console.Logf(g.sink, "Warning: assign process %d to job: %v", pid, err)
	}
}

func (g *jobGroup) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.job == 0 {
		return nil
	}
	err := windows.CloseHandle(g.job)
	g.job = 0
	return err
}
