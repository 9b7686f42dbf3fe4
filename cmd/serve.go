package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/lupon1/Django-Project-Assistant/internal/events"
	"github.com/lupon1/Django-Project-Assistant/internal/fsutil"
	"github.com/lupon1/Django-Project-Assistant/internal/ports"
	"github.com/lupon1/Django-Project-Assistant/internal/prober"
	"github.com/lupon1/Django-Project-Assistant/internal/scaffold"
	"github.com/lupon1/Django-Project-Assistant/internal/server"
	"github.com/lupon1/Django-Project-Assistant/internal/ui"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve [project-dir]",
	Short: "Start the development server of an existing project",
	Long: `The serve command runs manage.py runserver for a project created by
djassist (or any Django project with a virtual environment). The interpreter is
taken from --venv-dir, or from the last venv location plus the project name,
or from .venv/venv inside the project.

In the console, press s to stop or restart the server and o to open it.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("venv-dir", "", "Virtual environment of the project")
	serveCmd.Flags().IntP("port", "p", 0, "Dev server port (0 = 8000, shifted if busy)")
	serveCmd.Flags().Bool("no-port-shift", false, "Fail instead of picking another port when the port is busy")
	serveCmd.Flags().Bool("open-browser", false, "Open the browser once the server is up")
	serveCmd.Flags().Bool("no-tui", false, "Disable the console (use plain scrolling output)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	projectDir := "."
	if len(args) == 1 {
		projectDir = args[0]
	}
	projectDir = absPath(projectDir)

	venvDir, _ := cmd.Flags().GetString("venv-dir")
	port, _ := cmd.Flags().GetInt("port")
	noPortShift, _ := cmd.Flags().GetBool("no-port-shift")
	openBrowser, _ := cmd.Flags().GetBool("open-browser")
	noTUI, _ := cmd.Flags().GetBool("no-tui")

	if !fsutil.Exists(filepath.Join(projectDir, "manage.py")) {
		return fmt.Errorf("%w: no manage.py in %s", scaffold.ErrValidation, projectDir)
	}
	python := findPython(projectDir, venvDir)
	if python == "" {
		return fmt.Errorf("%w for %s (use --venv-dir)", scaffold.ErrInterpreterNotFound, projectDir)
	}

	choice, err := ports.Resolve(ports.DefaultPort, port, noPortShift)
	if err != nil {
		return fmt.Errorf("%w: %v", scaffold.ErrValidation, err)
	}
	if choice.Busy {
		return fmt.Errorf("port %d is busy: %s", choice.Port, ports.GetPortStatus(choice.Port))
	}

	tui := !noTUI && ui.IsInteractive()
	logger := componentLogger(tui)
	bus := events.NewBus(events.DefaultCapacity)
	defer bus.Close()

	ctrl := server.New(logger)
	defer shutdownServer(ctrl)
	srv := &devServer{
		ctrl:     ctrl,
		spec:     server.Spec{Python: python, ProjectDir: projectDir, Addr: ports.Addr(choice.Port)},
		listener: bus,
	}

	url := ports.URL(choice.Port)
	if choice.Shifted {
		bus.Status(fmt.Sprintf("Port %d is busy, using %d", ports.DefaultPort, choice.Port))
	}
	if openBrowser {
		serveAndOpen(srv, url, bus)
	} else {
		bus.Status("Starting server at " + url)
		if err := srv.Start(); err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
	}

	res := scaffold.Result{
		Success:    true,
		Message:    "Serving " + projectDir,
		ProjectDir: projectDir,
		Python:     python,
	}
	if tui {
		outcome := make(chan ui.Outcome, 1)
		outcome <- ui.Outcome{Result: res, Server: srv, URL: url}
		if _, _, err := ui.RunConsole(ctx, ui.NewConsole(filepath.Base(projectDir), bus, outcome)); err != nil {
			return fmt.Errorf("console failed: %w", err)
		}
		return nil
	}

	drained := make(chan struct{})
	go func() {
		ui.Drain(bus)
		close(drained)
	}()
	bus.Status("Press Ctrl+C to stop the server")
	ctrl.Wait(ctx)
	shutdownServer(ctrl)
	bus.Close()
	<-drained
	return nil
}

// findPython locates the project's interpreter.
func findPython(projectDir, venvDir string) string {
	if venvDir != "" {
		return prober.VenvPython(absPath(venvDir), runtime.GOOS)
	}
	candidates := []string{
		filepath.Join(projectDir, ".venv"),
		filepath.Join(projectDir, "venv"),
	}
	if app.cfg.LastVenvPath != "" {
		candidates = append([]string{filepath.Join(app.cfg.LastVenvPath, filepath.Base(projectDir))}, candidates...)
	}
	for _, dir := range candidates {
		if py := prober.VenvPython(dir, runtime.GOOS); py != "" {
			return py
		}
	}
	return ""
}
