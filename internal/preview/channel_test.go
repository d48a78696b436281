package preview

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivlev/scene2video/internal/config"
	"github.com/ivlev/scene2video/internal/console"
	"github.com/ivlev/scene2video/internal/metrics"
	"github.com/ivlev/scene2video/internal/scene"
	"github.com/ivlev/scene2video/internal/system"
)

// fakeServer answers preview frames on a loopback listener. behaviours[i]
// decides how connection i is handled; connections past the list get "ok".
type fakeServer struct {
	ln         net.Listener
	behaviours []string
	delay      time.Duration

	mu        sync.Mutex
	conns     int
	received  []string
	active    int
	maxActive int
}

func newFakeServer(t *testing.T, behaviours ...string) *fakeServer {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	s := &fakeServer{ln: ln, behaviours: behaviours}
	t.Cleanup(func() { ln.Close() })
	go s.serve()
	return s
}

func (s *fakeServer) port() int {
	return s.ln.Addr().(*net.TCPAddr).Port
}

func (s *fakeServer) serve() {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		go s.handle(conn)
	}
}

func (s *fakeServer) handle(conn net.Conn) {
	defer conn.Close()

	s.mu.Lock()
	idx := s.conns
	s.conns++
	s.active++
	if s.active > s.maxActive {
		s.maxActive = s.active
	}
	behaviour := "ok"
	if idx < len(s.behaviours) {
		behaviour = s.behaviours[idx]
	}
	s.mu.Unlock()

	payload, err := ReadFrame(conn, MaxFrameSize)
	if err == nil {
		s.mu.Lock()
		s.received = append(s.received, string(payload))
		s.mu.Unlock()
	}
	if s.delay > 0 {
		time.Sleep(s.delay)
	}

	s.mu.Lock()
	s.active--
	s.mu.Unlock()

	switch behaviour {
	case "hang":
		_, _ = io.Copy(io.Discard, conn)
	case "close":
	case "error":
		_ = WriteFrame(conn, []byte("name 'cube' is not defined"))
	default:
		_ = WriteFrame(conn, []byte("OK"))
	}
}

func (s *fakeServer) stats() (conns int, received []string, maxActive int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conns, append([]string(nil), s.received...), s.maxActive
}

type fakeWorker struct {
	mu      sync.Mutex
	stopped bool
}

func (w *fakeWorker) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stopped = true
	return nil
}

func (w *fakeWorker) Exited() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stopped
}

type fakeLauncher struct {
	mu      sync.Mutex
	workers []*fakeWorker
	exes    []string
	err     error
}

func (l *fakeLauncher) Launch(_ context.Context, exe string, _ int) (Worker, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.exes = append(l.exes, exe)
	if l.err != nil {
		return nil, l.err
	}
	w := &fakeWorker{}
	l.workers = append(l.workers, w)
	return w, nil
}

func (l *fakeLauncher) launches() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.exes)
}

type fixture struct {
	ch       *Channel
	server   *fakeServer
	launcher *fakeLauncher
	buf      *console.Buffer
	metrics  *metrics.Metrics
}

func newFixture(t *testing.T, behaviours ...string) *fixture {
	t.Helper()
	srv := newFakeServer(t, behaviours...)
	l := &fakeLauncher{}
	buf := console.NewBuffer()
	m := metrics.New(nil)
	cfg := config.Default()
	cfg.ExecutablePath = "/opt/blender/blender"

	ch := NewChannel(config.Static(cfg), l, buf, m, Options{
		Port:       srv.port(),
		Timeout:    100 * time.Millisecond,
		MaxRetries: 2,
	})
	return &fixture{ch: ch, server: srv, launcher: l, buf: buf, metrics: m}
}

func TestSendSuccess(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, StateNotStarted, f.ch.State())

	resp, err := f.ch.Send(context.Background(), "import bpy")
	require.NoError(t, err)
	assert.Equal(t, "OK", resp)
	assert.Equal(t, StateReady, f.ch.State())
	assert.Equal(t, 1, f.launcher.launches())
	assert.Equal(t, []string{"/opt/blender/blender"}, f.launcher.exes)

	_, received, _ := f.server.stats()
	assert.Equal(t, []string{"import bpy"}, received)

	// the running worker is reused
	_, err = f.ch.Send(context.Background(), "import math")
	require.NoError(t, err)
	assert.Equal(t, 1, f.launcher.launches())
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.WorkerStarts))
	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.PreviewAttempts))
}

func TestSendRetriesThenSucceeds(t *testing.T) {
	f := newFixture(t, "hang", "hang", "ok")

	resp, err := f.ch.Send(context.Background(), "import bpy")
	require.NoError(t, err)
	assert.Equal(t, "OK", resp)
	assert.Equal(t, StateReady, f.ch.State())

	assert.Equal(t, 3, f.launcher.launches())
	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.WorkerRestarts))
	assert.Equal(t, 3.0, testutil.ToFloat64(f.metrics.WorkerStarts))
	assert.Equal(t, 0.0, testutil.ToFloat64(f.metrics.PreviewFailures))
	assert.Equal(t, 2, f.buf.Count("Restarting preview worker"))
	assert.Equal(t, 2, f.buf.Count("Render Preview Timeout"))

	// the timed out workers were killed
	assert.True(t, f.launcher.workers[0].Exited())
	assert.True(t, f.launcher.workers[1].Exited())
	assert.False(t, f.launcher.workers[2].Exited())
}

func TestSendGivesUpAfterRetries(t *testing.T) {
	f := newFixture(t, "hang", "hang", "hang")

	resp, err := f.ch.Send(context.Background(), "import bpy")
	require.NoError(t, err)
	assert.Equal(t, FailureMessage, resp)
	assert.Equal(t, StateFailed, f.ch.State())

	conns, _, _ := f.server.stats()
	assert.Equal(t, 3, conns)
	assert.Equal(t, 3, f.launcher.launches())
	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.WorkerRestarts))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.PreviewFailures))
	assert.Equal(t, 2, f.buf.Count("Restarting preview worker"))
	assert.Equal(t, 1, f.buf.Count(FailureMessage))
	for _, w := range f.launcher.workers {
		assert.True(t, w.Exited())
	}

	// the next request restarts the worker lazily
	resp, err = f.ch.Send(context.Background(), "import bpy")
	require.NoError(t, err)
	assert.Equal(t, "OK", resp)
	assert.Equal(t, 4, f.launcher.launches())
	assert.Equal(t, StateReady, f.ch.State())
}

func TestSendSocketError(t *testing.T) {
	f := newFixture(t, "close")

	resp, err := f.ch.Send(context.Background(), "import bpy")
	require.NoError(t, err)
	assert.Equal(t, "OK", resp)
	assert.Equal(t, 1, f.buf.Count("Socket Error"))
	assert.Equal(t, 1, f.buf.Count("Restarting preview worker"))
}

func TestSendReturnsScriptError(t *testing.T) {
	f := newFixture(t, "error")

	resp, err := f.ch.Send(context.Background(), "cube.scale = 2")
	require.NoError(t, err)
	assert.Equal(t, "name 'cube' is not defined", resp)
	assert.Equal(t, 1, f.launcher.launches())
	assert.Zero(t, testutil.ToFloat64(f.metrics.WorkerRestarts))
}

func TestSendLaunchFailure(t *testing.T) {
	f := newFixture(t)
	f.launcher.err = system.ErrExecutableNotFound

	_, err := f.ch.Send(context.Background(), "import bpy")
	assert.ErrorIs(t, err, system.ErrExecutableNotFound)
	assert.Equal(t, StateFailed, f.ch.State())
	conns, _, _ := f.server.stats()
	assert.Zero(t, conns)
}

func TestEngineLauncherMissingExecutable(t *testing.T) {
	l := &EngineLauncher{Supervisor: system.NewSupervisor(nil, nil), ScriptDir: t.TempDir()}
	ch := NewChannel(config.Static(config.Default()), l, nil, nil, Options{})

	_, err := ch.Send(context.Background(), "import bpy")
	assert.ErrorIs(t, err, system.ErrExecutableNotFound)
	assert.Equal(t, StateFailed, ch.State())
}

func TestSendCancelled(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.ch.Send(ctx, "import bpy")
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Zero(t, testutil.ToFloat64(f.metrics.WorkerRestarts))
}

func TestSendSerializesCallers(t *testing.T) {
	f := newFixture(t)
	f.server.delay = 10 * time.Millisecond

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := f.ch.Send(context.Background(), "import bpy")
			assert.NoError(t, err)
			assert.Equal(t, "OK", resp)
		}()
	}
	wg.Wait()

	conns, _, maxActive := f.server.stats()
	assert.Equal(t, 8, conns)
	assert.Equal(t, 1, maxActive)
	assert.Equal(t, 1, f.launcher.launches())
}

func TestStopAndRestart(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.ch.Start(context.Background()))
	require.NoError(t, f.ch.Start(context.Background()))
	assert.Equal(t, 1, f.launcher.launches())
	assert.Equal(t, StateReady, f.ch.State())

	require.NoError(t, f.ch.Stop())
	assert.True(t, f.launcher.workers[0].Exited())
	assert.Equal(t, StateNotStarted, f.ch.State())

	_, err := f.ch.Send(context.Background(), "import bpy")
	require.NoError(t, err)
	assert.Equal(t, 2, f.launcher.launches())
	require.NoError(t, f.ch.Close())
	require.NoError(t, f.ch.Close())
}

func TestRenderPreviewUsesConfiguredExport(t *testing.T) {
	f := newFixture(t)
	req := scene.Request{World: scene.DefaultWorld(), Mode: scene.ModePreview}

	resp, err := f.ch.RenderPreview(context.Background(), req, "/tmp/preview.png")
	require.NoError(t, err)
	assert.Equal(t, "OK", resp)

	_, received, _ := f.server.stats()
	require.Len(t, received, 1)
	assert.Contains(t, received[0], "resolution_x = 1920\n")
	assert.Contains(t, received[0], "bpy.context.scene.render.filepath = '/tmp/preview.png'\n")
	assert.Contains(t, received[0], "render(write_still=True)")
}

func TestOptionsDefaults(t *testing.T) {
	o := Options{MaxRetries: -1, SettleDelay: -time.Second}.withDefaults()
	assert.Equal(t, "127.0.0.1", o.Host)
	assert.Equal(t, 5000, o.Port)
	assert.Equal(t, 20*time.Second, o.Timeout)
	assert.Zero(t, o.MaxRetries)
	assert.Zero(t, o.SettleDelay)

	o = OptionsFrom(config.DefaultPreviewSettings())
	assert.Equal(t, 2, o.MaxRetries)
	assert.Equal(t, 2*time.Second, o.SettleDelay)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "AwaitingResponse", StateAwaitingResponse.String())
	assert.Equal(t, "Failed", StateFailed.String())
	assert.Equal(t, "State(42)", State(42).String())
}

func TestClassify(t *testing.T) {
	assert.ErrorIs(t, classify("read", context.DeadlineExceeded), ErrTimeout)

	err := classify("read", io.ErrUnexpectedEOF)
	var ioErr *IOError
	require.ErrorAs(t, err, &ioErr)
	assert.Equal(t, "read", ioErr.Op)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.Equal(t, "read: unexpected EOF", err.Error())
}
