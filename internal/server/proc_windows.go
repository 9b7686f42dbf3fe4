//go:build windows

package server

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"syscall"

	"github.com/lupon1/Django-Project-Assistant/internal/runner"
)

// createNoWindow keeps the console window of the child hidden.
const createNoWindow = 0x08000000

func setProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		CreationFlags: createNoWindow | syscall.CREATE_NEW_PROCESS_GROUP,
	}
}

// terminate force-kills the server and its child tree with taskkill.
func terminate(cmd *exec.Cmd, logger *slog.Logger) error {
	res := runner.New(logger).Run(context.Background(), runner.Command{
		Name: "taskkill",
		Args: []string{"/PID", strconv.Itoa(cmd.Process.Pid), "/F", "/T"},
	})
	if !res.OK() {
		return fmt.Errorf("taskkill exited with code %d: %s", res.ExitCode, res.Output)
	}
	return nil
}

func kill(cmd *exec.Cmd) {
	cmd.Process.Kill()
}
