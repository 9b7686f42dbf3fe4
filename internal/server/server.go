// Package server runs a project's Django development server as a child
// process in its own process group and streams its output.
package server

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/process"
)

var (
	// ErrAlreadyRunning is returned by Start while a server is live.
	ErrAlreadyRunning = errors.New("server is already running")
	// ErrNotRunning is returned when there is no server to act on.
	ErrNotRunning = errors.New("server is not running")
)

// DefaultKillAfter is how long Stop waits after the polite signal before
// killing the process group outright.
const DefaultKillAfter = 5 * time.Second

// State of the controller's single process slot.
type State int

const (
	Idle State = iota
	Running
	Stopping
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// Listener receives server output. Line is called for every output line
// from the reader goroutine, then Stopped exactly once with the exit error.
type Listener interface {
	Line(line string)
	Stopped(err error)
}

// Spec describes the server to launch.
type Spec struct {
	Python     string // interpreter inside the project's venv
	ProjectDir string // directory holding manage.py
	Addr       string // host:port passed to runserver; empty for Django's default
}

// Stats is a resource sample of the server and its children.
type Stats struct {
	PID        int32
	CPUPercent float64
	RSS        uint64
}

// Controller owns at most one running dev server.
type Controller struct {
	logger    *slog.Logger
	killAfter time.Duration

	mu    sync.Mutex
	state State
	cmd   *exec.Cmd
	done  chan struct{}
}

// New creates an idle Controller. A nil logger uses slog.Default().
func New(logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{logger: logger, killAfter: DefaultKillAfter}
}

// Start launches `manage.py runserver` for spec. It fails with
// ErrAlreadyRunning if a server started earlier has not exited yet.
func (c *Controller) Start(ctx context.Context, spec Spec, l Listener) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Idle {
		return ErrAlreadyRunning
	}

	args := []string{"manage.py", "runserver"}
	if spec.Addr != "" {
		args = append(args, spec.Addr)
	}
	cmd := exec.Command(spec.Python, args...)
	cmd.Dir = spec.ProjectDir
	cmd.Env = append(os.Environ(), "PYTHONUNBUFFERED=1")
	setProcAttr(cmd)

	pr, pw, err := os.Pipe()
	if err != nil {
		return fmt.Errorf("failed to create output pipe: %w", err)
	}
	cmd.Stdout = pw
	cmd.Stderr = pw

	if err := cmd.Start(); err != nil {
		pr.Close()
		pw.Close()
		return fmt.Errorf("failed to start server: %w", err)
	}
	// The child holds its own copy; EOF arrives once it and its children exit.
	pw.Close()

	done := make(chan struct{})
	c.state = Running
	c.cmd = cmd
	c.done = done
	c.logger.Info("server started", "pid", cmd.Process.Pid, "dir", spec.ProjectDir, "addr", spec.Addr)

	go c.read(cmd, pr, l, done)
	return nil
}

func (c *Controller) read(cmd *exec.Cmd, r *os.File, l Listener, done chan struct{}) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		l.Line(scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		c.logger.Warn("server output unreadable, discarding the rest", "error", err)
		io.Copy(io.Discard, r)
	}
	r.Close()

	err := cmd.Wait()

	c.mu.Lock()
	if c.cmd == cmd {
		c.cmd = nil
		c.state = Idle
		c.done = nil
	}
	c.mu.Unlock()
	close(done)

	c.logger.Info("server stopped", "pid", cmd.Process.Pid, "error", err)
	l.Stopped(err)
}

// Stop asks the server's process group to terminate and kills it if it is
// still alive after the grace period. It returns without waiting; use Wait
// to block until the reader has observed the exit.
func (c *Controller) Stop() error {
	c.mu.Lock()
	if c.state == Idle {
		c.mu.Unlock()
		return ErrNotRunning
	}
	if c.state == Stopping {
		c.mu.Unlock()
		return nil
	}
	cmd, done := c.cmd, c.done
	c.state = Stopping
	c.mu.Unlock()

	c.logger.Info("stopping server", "pid", cmd.Process.Pid)
	if err := terminate(cmd, c.logger); err != nil {
		c.mu.Lock()
		if c.cmd == cmd {
			c.state = Running
		}
		c.mu.Unlock()
		return err
	}

	go func() {
		select {
		case <-done:
		case <-time.After(c.killAfter):
			c.logger.Warn("server ignored terminate, killing", "pid", cmd.Process.Pid)
			kill(cmd)
		}
	}()
	return nil
}

// Wait blocks until the current server exits or ctx is done. It returns
// immediately when no server is running.
func (c *Controller) Wait(ctx context.Context) error {
	c.mu.Lock()
	done := c.done
	c.mu.Unlock()
	if done == nil {
		return nil
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// State returns the slot state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Running reports whether a server process is live.
func (c *Controller) Running() bool {
	return c.State() != Idle
}

// PID returns the server's process ID, or 0 when idle.
func (c *Controller) PID() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cmd == nil || c.cmd.Process == nil {
		return 0
	}
	return c.cmd.Process.Pid
}

// Stats samples CPU and memory of the server and the processes it spawned
// (Django's autoreloader runs the actual server as a child).
func (c *Controller) Stats() (Stats, error) {
	pid := c.PID()
	if pid == 0 {
		return Stats{}, ErrNotRunning
	}

	p, err := process.NewProcess(int32(pid))
	if err != nil {
		return Stats{}, fmt.Errorf("failed to inspect server: %w", err)
	}

	st := Stats{PID: p.Pid}
	procs := []*process.Process{p}
	if children, err := p.Children(); err == nil {
		procs = append(procs, children...)
	}
	for _, proc := range procs {
		if cpu, err := proc.CPUPercent(); err == nil {
			st.CPUPercent += cpu
		}
		if mem, err := proc.MemoryInfo(); err == nil {
			st.RSS += mem.RSS
		}
	}
	return st, nil
}
