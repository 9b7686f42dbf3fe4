//go:build !windows

package server

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// chanListener forwards server callbacks to channels.
type chanListener struct {
	lines   chan string
	stopped chan error
}

func newChanListener() *chanListener {
	return &chanListener{lines: make(chan string, 64), stopped: make(chan error, 1)}
}

func (l *chanListener) Line(line string)  { l.lines <- line }
func (l *chanListener) Stopped(err error) { l.stopped <- err }

func (l *chanListener) waitLine(t *testing.T, substr string) {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case line := <-l.lines:
			if strings.Contains(line, substr) {
				return
			}
		case <-timeout:
			t.Fatalf("no output line containing %q", substr)
		}
	}
}

func (l *chanListener) waitStopped(t *testing.T) error {
	t.Helper()
	select {
	case err := <-l.stopped:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("Stopped was not called")
		return nil
	}
}

// fakeProject writes a manage.py that sh can run in place of Django.
func fakeProject(t *testing.T, script string) Spec {
	t.Helper()
	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skip("sh not available")
	}
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "manage.py"), []byte(script), 0644); err != nil {
		t.Fatal(err)
	}
	return Spec{Python: sh, ProjectDir: dir, Addr: "127.0.0.1:8123"}
}

func TestController_StartStop(t *testing.T) {
	spec := fakeProject(t, `echo "Watching for file changes with StatReloader"
echo "Starting development server at http://$2/" >&2
sleep 30
`)
	c := New(nil)
	l := newChanListener()

	if err := c.Start(context.Background(), spec, l); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !c.Running() || c.PID() == 0 {
		t.Fatalf("expected a running server, state=%v pid=%d", c.State(), c.PID())
	}

	l.waitLine(t, "Watching for file changes")
	l.waitLine(t, "http://127.0.0.1:8123/")

	if err := c.Start(context.Background(), spec, newChanListener()); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("second Start = %v, want ErrAlreadyRunning", err)
	}

	if st, err := c.Stats(); err != nil || int(st.PID) != c.PID() {
		t.Errorf("Stats = %+v, %v", st, err)
	}

	if err := c.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := l.waitStopped(t); err == nil {
		t.Error("a terminated server should report its exit error")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.Wait(ctx); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if c.Running() || c.PID() != 0 {
		t.Errorf("slot not cleared: state=%v pid=%d", c.State(), c.PID())
	}
	if err := c.Stop(); !errors.Is(err, ErrNotRunning) {
		t.Errorf("Stop when idle = %v, want ErrNotRunning", err)
	}
}

func TestController_ExitOnItsOwn(t *testing.T) {
	spec := fakeProject(t, "echo bye\nexit 3\n")
	c := New(nil)
	l := newChanListener()

	if err := c.Start(context.Background(), spec, l); err != nil {
		t.Fatalf("Start: %v", err)
	}
	l.waitLine(t, "bye")

	err := l.waitStopped(t)
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) || exitErr.ExitCode() != 3 {
		t.Fatalf("Stopped(%v), want exit code 3", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.Wait(ctx); err != nil {
		t.Fatal(err)
	}

	// The slot is free again.
	l2 := newChanListener()
	if err := c.Start(context.Background(), spec, l2); err != nil {
		t.Fatalf("restart: %v", err)
	}
	l2.waitStopped(t)
}

func TestController_StartFailure(t *testing.T) {
	c := New(nil)
	err := c.Start(context.Background(), Spec{Python: filepath.Join(t.TempDir(), "missing-python")}, newChanListener())
	if err == nil {
		t.Fatal("expected a launch error")
	}
	if c.Running() {
		t.Error("a failed launch must leave the slot idle")
	}
}

func TestController_StatsWhenIdle(t *testing.T) {
	if _, err := New(nil).Stats(); !errors.Is(err, ErrNotRunning) {
		t.Errorf("Stats = %v, want ErrNotRunning", err)
	}
}
