package scaffold

import (
	"errors"
	"fmt"
	"strings"

	"github.com/lupon1/Django-Project-Assistant/internal/prober"
)

var (
	// ErrValidation marks a request rejected before any command runs.
	ErrValidation = errors.New("invalid request")
	// ErrDirNotEmpty is returned when a target directory already has content.
	ErrDirNotEmpty = fmt.Errorf("%w: directory is not empty", ErrValidation)
	// ErrToolchainNotFound is returned when uv is not on PATH.
	ErrToolchainNotFound = prober.ErrToolchainNotFound
	// ErrCollectionNotFound is returned when the template collection is missing.
	ErrCollectionNotFound = errors.New("template collection not found")
	// ErrInterpreterNotFound is returned when the venv has no interpreter.
	ErrInterpreterNotFound = errors.New("python interpreter not found in virtual environment")
	// ErrInternal wraps a panic recovered inside a step.
	ErrInternal = errors.New("internal error")
)

// StepError reports an external command that exited nonzero.
type StepError struct {
	Step     Step
	Command  string
	ExitCode int
	Output   string
}

func (e *StepError) Error() string {
	msg := fmt.Sprintf("%s failed: %s exited with code %d", e.Step, e.Command, e.ExitCode)
	if out := lastLine(e.Output); out != "" {
		msg += ": " + out
	}
	return msg
}

// lastLine returns the last non-empty line of out, which is where uv and
// Django put the reason for a failure.
func lastLine(out string) string {
	lines := strings.Split(strings.TrimSpace(out), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}

// IsValidation reports whether err was caused by bad input rather than a
// failing step.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}
