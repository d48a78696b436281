// Package preview keeps an engine process warm and renders preview stills
// through it over a loopback TCP connection.
package preview

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/ivlev/scene2video/internal/config"
	"github.com/ivlev/scene2video/internal/console"
	"github.com/ivlev/scene2video/internal/metrics"
	"github.com/ivlev/scene2video/internal/scene"
	"github.com/ivlev/scene2video/internal/script"
)

// FailureMessage is returned once every attempt of a request has failed.
const FailureMessage = "Error: Render Preview Failed after retries."

// ErrTimeout means an exchange did not finish within the channel timeout.
var ErrTimeout = errors.New("preview exchange timed out")

// IOError is any other socket failure during an exchange.
type IOError struct {
	Op  string
	Err error
}

func (e *IOError) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *IOError) Unwrap() error { return e.Err }

type State int

const (
	StateNotStarted State = iota
	StateStarting
	StateReady
	StateSending
	StateAwaitingResponse
	StateRestarting
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "NotStarted"
	case StateStarting:
		return "Starting"
	case StateReady:
		return "Ready"
	case StateSending:
		return "Sending"
	case StateAwaitingResponse:
		return "AwaitingResponse"
	case StateRestarting:
		return "Restarting"
	case StateFailed:
		return "Failed"
	default:
		return "State(" + strconv.Itoa(int(s)) + ")"
	}
}

// Options control the channel. Zero fields take the config defaults, except
// MaxRetries and SettleDelay where zero is meaningful.
type Options struct {
	Host        string
	Port        int
	Timeout     time.Duration
	SettleDelay time.Duration
	MaxRetries  int
}

func OptionsFrom(s config.PreviewSettings) Options {
	return Options{
		Port:        s.Port,
		Timeout:     s.Timeout,
		SettleDelay: s.SettleDelay,
		MaxRetries:  s.MaxRetries,
	}
}

func (o Options) withDefaults() Options {
	def := config.DefaultPreviewSettings()
	if o.Host == "" {
		o.Host = "127.0.0.1"
	}
	if o.Port <= 0 {
		o.Port = def.Port
	}
	if o.Timeout <= 0 {
		o.Timeout = def.Timeout
	}
	if o.SettleDelay < 0 {
		o.SettleDelay = 0
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	return o
}

// Channel owns the single preview worker. One mutex serializes every state
// transition and request, so concurrent callers queue instead of sharing the
// worker's socket.
type Channel struct {
	provider config.Provider
	launcher Launcher
	sink     console.Sink
	metrics  *metrics.Metrics
	opts     Options
	thumbs   *Thumbnailer

	mu     sync.Mutex
	state  State
	worker Worker
}

func NewChannel(provider config.Provider, launcher Launcher, sink console.Sink, m *metrics.Metrics, opts Options) *Channel {
	if sink == nil {
		sink = console.Discard
	}
	if m == nil {
		m = metrics.New(nil)
	}
	return &Channel{
		provider: provider,
		launcher: launcher,
		sink:     sink,
		metrics:  m,
		opts:     opts.withDefaults(),
		thumbs:   NewThumbnailer(),
	}
}

func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Channel) Addr() string {
	return net.JoinHostPort(c.opts.Host, strconv.Itoa(c.opts.Port))
}

// Start launches the worker unless one is already running.
func (c *Channel) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running() {
		return nil
	}
	return c.startLocked(ctx)
}

// Stop kills the worker and its children. The next request starts a new one.
func (c *Channel) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	err := c.stopLocked()
	c.state = StateNotStarted
	return err
}

// Close ends the session.
func (c *Channel) Close() error {
	return c.Stop()
}

// RenderPreview compiles a still of req into outputPath and sends it to the
// worker. Requests without export settings use the configured ones.
func (c *Channel) RenderPreview(ctx context.Context, req scene.Request, outputPath string) (string, error) {
	req.Export = req.ExportOr(c.provider.Config().Export)
	return c.Send(ctx, script.CompilePreview(req, outputPath))
}

// Thumbnail scales a rendered preview. Thumbnails of one channel share
// their scaling buffers.
func (c *Channel) Thumbnail(src, dst string, width int) error {
	return c.thumbs.Write(src, dst, width)
}

// Send runs src on the worker and returns its reply: "OK" or the error
// text. Failed exchanges kill and restart the worker up to MaxRetries
// times, after which FailureMessage is returned. An error is returned only
// when the worker cannot be launched or ctx ends.
func (c *Channel) Send(ctx context.Context, src string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running() {
		if err := c.startLocked(ctx); err != nil {
			return "", err
		}
	}

	attempts := c.opts.MaxRetries + 1
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			if err := ctx.Err(); err != nil {
				c.state = StateNotStarted
				return "", err
			}
			c.state = StateRestarting
			c.metrics.WorkerRestarts.Inc()
			console.Logf(c.sink, "Restarting preview worker (attempt %d/%d)", attempt, attempts)
			if err := c.startLocked(ctx); err != nil {
				return "", err
			}
		}

		c.metrics.PreviewAttempts.Inc()
		resp, err := c.exchange(ctx, src)
		if err == nil {
			c.state = StateReady
			return resp, nil
		}
		if ctx.Err() != nil {
			c.state = StateReady
			return "", ctx.Err()
		}

		if errors.Is(err, ErrTimeout) {
			console.Logf(c.sink, "Render Preview Timeout (Attempt %d/%d)", attempt, attempts)
		} else {
			console.Logf(c.sink, "Socket Error: %v (Attempt %d/%d)", err, attempt, attempts)
		}
		if err := c.stopLocked(); err != nil {
			console.Logf(c.sink, "Warning: stop preview worker: %v", err)
		}
	}

	c.state = StateFailed
	c.metrics.PreviewFailures.Inc()
	c.sink.Append(FailureMessage)
	return FailureMessage, nil
}

func (c *Channel) running() bool {
	return c.worker != nil && !c.worker.Exited()
}

func (c *Channel) startLocked(ctx context.Context) error {
	c.state = StateStarting
	exe := c.provider.Config().ExecutablePath
	console.Logf(c.sink, "Starting preview worker on %s", c.Addr())

	w, err := c.launcher.Launch(ctx, exe, c.opts.Port)
	if err != nil {
		c.state = StateFailed
		console.Logf(c.sink, "Error: preview worker failed to start: %v", err)
		return fmt.Errorf("start preview worker: %w", err)
	}
	c.worker = w
	c.metrics.WorkerStarts.Inc()

	// no handshake: the worker is assumed listening after the settle delay
	if c.opts.SettleDelay > 0 {
		t := time.NewTimer(c.opts.SettleDelay)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
			c.state = StateReady
			return ctx.Err()
		}
	}
	c.state = StateReady
	return nil
}

func (c *Channel) stopLocked() error {
	if c.worker == nil {
		return nil
	}
	err := c.worker.Stop()
	c.worker = nil
	return err
}

// exchange performs one connect, write, read round trip bounded by the
// channel timeout.
func (c *Channel) exchange(ctx context.Context, src string) (string, error) {
	deadline := time.Now().Add(c.opts.Timeout)
	ctx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	c.state = StateSending
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", c.Addr())
	if err != nil {
		return "", classify("connect", err)
	}
	defer conn.Close()

	if err := conn.SetDeadline(deadline); err != nil {
		return "", classify("set deadline", err)
	}
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Now())
	})
	defer stop()

	if err := WriteFrame(conn, []byte(src)); err != nil {
		return "", classify("write", err)
	}

	c.state = StateAwaitingResponse
	resp, err := ReadFrame(conn, MaxFrameSize)
	if err != nil {
		return "", classify("read", err)
	}
	return string(resp), nil
}

func classify(op string, err error) error {
	var ne net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
		return fmt.Errorf("%s: %w", op, ErrTimeout)
	}
	return &IOError{Op: op, Err: err}
}
