package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/lupon1/Django-Project-Assistant/internal/config"
	"github.com/lupon1/Django-Project-Assistant/internal/prober"
	"github.com/lupon1/Django-Project-Assistant/internal/scaffold"
	"github.com/lupon1/Django-Project-Assistant/internal/server"
)

// installedSuffix marks versions with a matching interpreter on the host.
const installedSuffix = " (Installed)"

// loadVersions returns the cached uv version list, asking uv when the
// cache is empty or refresh is set. A fresh list is saved to the config.
func loadVersions(ctx context.Context, p *prober.Prober, refresh bool) ([]string, error) {
	if !refresh && len(app.cfg.CachedPythonVersions) > 0 {
		return app.cfg.CachedPythonVersions, nil
	}
	versions, err := p.ListRuntimeVersions(ctx)
	if err != nil {
		return nil, err
	}
	app.cfg.CachedPythonVersions = versions
	saveConfig()
	return versions, nil
}

// versionChoices annotates versions that are installed locally.
func versionChoices(ctx context.Context, p *prober.Prober, versions []string) []string {
	out := make([]string, len(versions))
	for i, v := range versions {
		out[i] = v
		if p.IsVersionInstalled(ctx, v) {
			out[i] += installedSuffix
		}
	}
	return out
}

// pickPackages resolves package names against the configured descriptors.
func pickPackages(cfg *config.Config, names []string) ([]config.PackageDescriptor, error) {
	var out []config.PackageDescriptor
	for _, name := range names {
		found := false
		for _, p := range cfg.Packages {
			if strings.EqualFold(p.Name, name) {
				p.Selected = true
				out = append(out, p)
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("%w: unknown package %q", scaffold.ErrValidation, name)
		}
	}
	return out, nil
}

// pickAssets resolves asset names against the configured descriptors.
func pickAssets(cfg *config.Config, names []string) ([]config.AssetDescriptor, error) {
	var out []config.AssetDescriptor
	for _, name := range names {
		found := false
		for _, a := range cfg.Assets {
			if strings.EqualFold(a.Name, name) {
				a.Selected = true
				out = append(out, a)
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("%w: unknown external library %q", scaffold.ErrValidation, name)
		}
	}
	return out, nil
}

func packageNames(pkgs []config.PackageDescriptor) []string {
	names := make([]string, len(pkgs))
	for i, p := range pkgs {
		names[i] = p.Name
	}
	return names
}

func assetNames(assets []config.AssetDescriptor) []string {
	names := make([]string, len(assets))
	for i, a := range assets {
		names[i] = a.Name
	}
	return names
}

// preferFirst moves want to the front of values when present.
func preferFirst(values []string, want string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if strings.EqualFold(v, want) {
			out = append([]string{v}, out...)
		} else {
			out = append(out, v)
		}
	}
	return out
}

// withSelection copies pkgs with Selected set for exactly the named ones.
func withSelection(pkgs []config.PackageDescriptor, names []string) []config.PackageDescriptor {
	out := make([]config.PackageDescriptor, len(pkgs))
	for i, p := range pkgs {
		p.Selected = contains(names, p.Name)
		out[i] = p
	}
	return out
}

// withAssetSelection copies assets with Selected set for exactly the named ones.
func withAssetSelection(assets []config.AssetDescriptor, names []string) []config.AssetDescriptor {
	out := make([]config.AssetDescriptor, len(assets))
	for i, a := range assets {
		a.Selected = contains(names, a.Name)
		out[i] = a
	}
	return out
}

func contains(values []string, want string) bool {
	for _, v := range values {
		if v == want {
			return true
		}
	}
	return false
}

// absPath makes a configured path absolute against the working directory.
func absPath(path string) string {
	if path == "" {
		return ""
	}
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}

// devServer binds a Controller to one project for the console's
// start and stop keys.
type devServer struct {
	ctrl     *server.Controller
	spec     server.Spec
	listener server.Listener
}

func (d *devServer) Start() error                 { return d.ctrl.Start(context.Background(), d.spec, d.listener) }
func (d *devServer) Stop() error                  { return d.ctrl.Stop() }
func (d *devServer) Running() bool                { return d.ctrl.Running() }
func (d *devServer) Stats() (server.Stats, error) { return d.ctrl.Stats() }
