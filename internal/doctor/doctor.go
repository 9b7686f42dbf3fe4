// Package doctor checks that the host can scaffold and serve a project.
package doctor

import (
	"context"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/lupon1/Django-Project-Assistant/internal/fsutil"
	"github.com/lupon1/Django-Project-Assistant/internal/ports"
	"github.com/lupon1/Django-Project-Assistant/internal/prober"
	"github.com/lupon1/Django-Project-Assistant/internal/runner"
	"github.com/lupon1/Django-Project-Assistant/internal/scaffold"
)

// RuntimeStatus represents the status of a runtime check
type RuntimeStatus struct {
	Name      string
	Installed bool
	Version   string
	Path      string
}

// VersionStatus reports whether a cached Python version has an interpreter.
type VersionStatus struct {
	Version   string
	Installed bool
}

// Diagnosis contains the full health check results
type Diagnosis struct {
	Toolchain    RuntimeStatus
	Python       RuntimeStatus
	Versions     []VersionStatus
	TemplatesDir string
	Collections  []string
	AccountStubs []string // code templates that are missing
	PortStatus   string
	Healthy      bool
	Issues       []string
}

// Options selects what to check. Zero values probe the real host.
type Options struct {
	Runner           runner.Runner
	LookPath         func(string) (string, error)
	Prober           *prober.Prober
	Versions         []string
	TemplatesDir     string
	CodeTemplatesDir string
	Port             int
}

// Diagnose checks uv, a system Python, the cached versions, the template
// trees and the dev server port.
func Diagnose(ctx context.Context, opts Options) Diagnosis {
	if opts.Runner == nil {
		opts.Runner = runner.New(nil)
	}
	if opts.LookPath == nil {
		opts.LookPath = exec.LookPath
	}
	if opts.Prober == nil {
		opts.Prober = prober.New(prober.Options{Runner: opts.Runner, LookPath: opts.LookPath})
	}
	if opts.Port == 0 {
		opts.Port = ports.DefaultPort
	}

	d := Diagnosis{
		TemplatesDir: opts.TemplatesDir,
		Healthy:      true,
		Issues:       []string{},
	}

	d.Toolchain = checkRuntime(ctx, opts, "uv", prober.Toolchain)
	if !d.Toolchain.Installed {
		d.issue(prober.InstallHint)
	}

	d.Python = checkRuntime(ctx, opts, "Python", "python3", "python")
	if !d.Python.Installed && d.Toolchain.Installed {
		// uv can still download an interpreter, so this is informational.
		d.Python.Version = "not on PATH (uv will download one)"
	} else if !d.Python.Installed {
		d.issue("Python runtime is not installed")
	}

	for _, v := range opts.Versions {
		d.Versions = append(d.Versions, VersionStatus{
			Version:   v,
			Installed: opts.Prober.IsVersionInstalled(ctx, v),
		})
	}

	collections, err := scaffold.ListCollections(opts.TemplatesDir)
	if err != nil {
		d.issue(err.Error())
	}
	d.Collections = collections
	if len(collections) == 0 {
		d.issue("no template collections found in " + opts.TemplatesDir)
	}

	for _, name := range []string{"models.py.template", "admin.py.template", "apps.py.template"} {
		path := filepath.Join(opts.CodeTemplatesDir, "accounts", name)
		if !fsutil.Exists(path) {
			d.AccountStubs = append(d.AccountStubs, path)
		}
	}

	d.PortStatus = ports.GetPortStatus(opts.Port)
	return d
}

func (d *Diagnosis) issue(msg string) {
	d.Healthy = false
	d.Issues = append(d.Issues, msg)
}

// checkRuntime resolves the first of bins on PATH and asks it for its version.
func checkRuntime(ctx context.Context, opts Options, name string, bins ...string) RuntimeStatus {
	status := RuntimeStatus{Name: name}
	for _, bin := range bins {
		path, err := opts.LookPath(bin)
		if err != nil {
			continue
		}
		status.Path = path

		res := opts.Runner.Run(ctx, runner.Command{Name: path, Args: []string{"--version"}})
		if res.OK() {
			status.Installed = true
			status.Version = strings.TrimSpace(res.Output)
			return status
		}
	}
	return status
}
