package system

import (
	"os/exec"
	"sync"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeathSignalGroup(t *testing.T) {
	g := NewProcessGroup(nil)
	cmd := exec.Command("true")
	g.Prepare(cmd)
	require.NotNil(t, cmd.SysProcAttr)
	assert.Equal(t, syscall.SIGKILL, cmd.SysProcAttr.Pdeathsig)

	g.Register(-1)
	assert.NoError(t, g.Close())
}

func TestDeathSignalGroupStartsOnSpawnThread(t *testing.T) {
	g := NewProcessGroup(nil)
	_, ok := g.(starter)
	require.True(t, ok)

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			cmd := exec.Command("/bin/sh", "-c", "exit 0")
			g.Prepare(cmd)
			if err := startIn(g, cmd); err != nil {
				errs[i] = err
				return
			}
			errs[i] = cmd.Wait()
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		assert.NoError(t, err)
	}

	cmd := exec.Command("/nonexistent/engine")
	g.Prepare(cmd)
	assert.Error(t, startIn(g, cmd))
}
