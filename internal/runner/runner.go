// Package runner executes external programs and captures their combined output.
package runner

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os/exec"
	"strings"
	"time"
)

// Command describes a single external program invocation.
type Command struct {
	Name string
	Args []string
	Dir  string            // working directory (optional)
	Env  map[string]string // overlaid on the parent environment (optional)
}

// String renders the command the way it would be typed in a shell.
func (c Command) String() string {
	if len(c.Args) == 0 {
		return c.Name
	}
	return c.Name + " " + strings.Join(c.Args, " ")
}

// Result holds the outcome of a command.
type Result struct {
	ExitCode int
	Output   string // stdout followed by stderr

	// LaunchErr is set when the program could not be started at all.
	// ExitCode is 1 and Output holds the error text in that case.
	LaunchErr error
}

// OK reports whether the command ran and exited zero.
func (r Result) OK() bool {
	return r.LaunchErr == nil && r.ExitCode == 0
}

// Runner runs commands. A nonzero exit is never reported as a failure of
// Run itself; callers interpret ExitCode.
type Runner interface {
	Run(ctx context.Context, cmd Command) Result
}

// ExecRunner is the os/exec backed Runner.
type ExecRunner struct {
	logger *slog.Logger
}

// New creates an ExecRunner. A nil logger falls back to slog.Default().
func New(logger *slog.Logger) *ExecRunner {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExecRunner{logger: logger}
}

// Run executes the command and blocks until it exits.
func (r *ExecRunner) Run(ctx context.Context, c Command) Result {
	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if len(c.Env) > 0 {
		cmd.Env = cmd.Environ()
		for k, v := range c.Env {
			cmd.Env = append(cmd.Env, k+"="+v)
		}
	}

	start := time.Now()
	err := cmd.Run()
	res := Result{Output: stdout.String() + stderr.String()}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
		} else {
			res.ExitCode = 1
			res.Output = err.Error()
			res.LaunchErr = err
		}
	}

	r.logger.Debug("command finished",
		"cmd", c.String(),
		"dir", c.Dir,
		"exit", res.ExitCode,
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	return res
}
