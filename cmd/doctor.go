package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lupon1/Django-Project-Assistant/internal/doctor"
	"github.com/lupon1/Django-Project-Assistant/internal/ports"
	"github.com/lupon1/Django-Project-Assistant/internal/runner"
	"github.com/lupon1/Django-Project-Assistant/internal/ui"
)

// errUnhealthy makes doctor exit nonzero when it found issues.
var errUnhealthy = errors.New("environment has issues")

// doctorCmd represents the doctor command
var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check uv, Python and the template folders",
	Long: `The doctor command checks everything djassist needs: uv on PATH, a Python
interpreter, an interpreter for each cached version, the HTML template
collections, the accounts code templates, and whether the dev server port is free.`,
	RunE: runDoctor,
}

func init() {
	doctorCmd.Flags().IntP("port", "p", ports.DefaultPort, "Dev server port to check")
}

func runDoctor(cmd *cobra.Command, args []string) error {
	port, _ := cmd.Flags().GetInt("port")

	d := doctor.Diagnose(cmd.Context(), doctor.Options{
		Runner:           runner.New(app.logger),
		Versions:         app.cfg.CachedPythonVersions,
		TemplatesDir:     absPath(app.cfg.TemplatesDir),
		CodeTemplatesDir: absPath(app.cfg.CodeTemplatesDir),
		Port:             port,
	})

	ui.PrintHeader("djassist doctor")
	printRuntime(d.Toolchain)
	printRuntime(d.Python)

	for _, v := range d.Versions {
		if v.Installed {
			ui.PrintSuccess("Python " + v.Version + " installed")
		} else {
			ui.PrintInfo("Python " + v.Version + " not installed (uv can download it)")
		}
	}

	if len(d.Collections) > 0 {
		ui.PrintHighlight("Template collections", fmt.Sprint(d.Collections))
	}
	for _, stub := range d.AccountStubs {
		ui.PrintWarning("Missing code template " + stub + " (the accounts app keeps the startapp files)")
	}
	ui.PrintHighlight("Port", d.PortStatus)
	ui.PrintHighlight("Config", app.cfgPath)

	ui.PrintDivider()
	if d.Healthy {
		ui.PrintSuccess("Ready to create projects")
		return nil
	}
	for _, issue := range d.Issues {
		ui.PrintError(issue)
	}
	return errUnhealthy
}

func printRuntime(s doctor.RuntimeStatus) {
	switch {
	case s.Installed:
		ui.PrintSuccess(fmt.Sprintf("%s %s (%s)", s.Name, s.Version, s.Path))
	case s.Version != "":
		ui.PrintInfo(s.Name + " " + s.Version)
	default:
		ui.PrintError(s.Name + " not found")
	}
}
