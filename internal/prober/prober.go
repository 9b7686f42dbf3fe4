// Package prober detects the uv toolchain and the Python interpreters
// available on the host.
package prober

import (
	"bufio"
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"sync"

	"github.com/lupon1/Django-Project-Assistant/internal/runner"
)

// Toolchain is the binary used for venv creation and package installs.
const Toolchain = "uv"

// InstallHint is shown when the toolchain is missing.
const InstallHint = "'uv' is not found in PATH. Please install it from https://astral.sh/uv"

// ErrToolchainNotFound means uv is not on PATH. It is distinct from uv
// running and reporting no versions.
var ErrToolchainNotFound = errors.New(InstallHint)

var (
	versionToken = regexp.MustCompile(`\d+\.\d+(?:\.\d+)?`)
	majorMinor   = regexp.MustCompile(`^(\d+)\.(\d+)`)
)

// VersionCache memoizes interpreter probes by major.minor key.
type VersionCache struct {
	mu      sync.Mutex
	entries map[string]bool
}

// NewVersionCache creates an empty cache.
func NewVersionCache() *VersionCache {
	return &VersionCache{entries: make(map[string]bool)}
}

func (c *VersionCache) get(key string) (bool, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[key]
	return v, ok
}

func (c *VersionCache) put(key string, installed bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = installed
}

// Len returns the number of cached keys.
func (c *VersionCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Options configures a Prober. Zero values select the real host.
type Options struct {
	Runner   runner.Runner
	LookPath func(string) (string, error)
	GOOS     string
	Cache    *VersionCache
}

// Prober answers toolchain and interpreter questions.
type Prober struct {
	run      runner.Runner
	lookPath func(string) (string, error)
	goos     string
	cache    *VersionCache
}

// New creates a Prober.
func New(opts Options) *Prober {
	p := &Prober{
		run:      opts.Runner,
		lookPath: opts.LookPath,
		goos:     opts.GOOS,
		cache:    opts.Cache,
	}
	if p.run == nil {
		p.run = runner.New(nil)
	}
	if p.lookPath == nil {
		p.lookPath = exec.LookPath
	}
	if p.goos == "" {
		p.goos = runtime.GOOS
	}
	if p.cache == nil {
		p.cache = NewVersionCache()
	}
	return p
}

// Cache returns the cache backing IsVersionInstalled.
func (p *Prober) Cache() *VersionCache {
	return p.cache
}

// ToolchainAvailable reports whether uv resolves on PATH.
func (p *Prober) ToolchainAvailable() bool {
	_, err := p.lookPath(Toolchain)
	return err == nil
}

// ListRuntimeVersions runs `uv python list` and returns one version per
// output line, deduplicated in first-seen order.
func (p *Prober) ListRuntimeVersions(ctx context.Context) ([]string, error) {
	path, err := p.lookPath(Toolchain)
	if err != nil {
		return nil, ErrToolchainNotFound
	}

	res := p.run.Run(ctx, runner.Command{Name: path, Args: []string{"python", "list"}})
	if res.LaunchErr != nil {
		if errors.Is(res.LaunchErr, exec.ErrNotFound) || errors.Is(res.LaunchErr, os.ErrNotExist) {
			return nil, ErrToolchainNotFound
		}
		return nil, res.LaunchErr
	}
	return ParseVersionList(res.Output), nil
}

// ParseVersionList extracts version tokens from `uv python list` output.
func ParseVersionList(out string) []string {
	versions := []string{}
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(strings.NewReader(out))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		ver := versionToken.FindString(line)
		if ver == "" {
			ver = line
		}
		if !seen[ver] {
			seen[ver] = true
			versions = append(versions, ver)
		}
	}
	return versions
}

// MajorMinor returns the "X.Y" key of a version string, or "" if the
// string does not start with one.
func MajorMinor(version string) string {
	m := majorMinor.FindStringSubmatch(version)
	if m == nil {
		return ""
	}
	return m[1] + "." + m[2]
}

// candidates lists interpreter names to probe, most specific first.
func candidates(major, key string) []string {
	return []string{
		"python" + key,
		"python" + strings.ReplaceAll(key, ".", ""),
		"python" + major,
		"python3",
		"python",
	}
}

// IsVersionInstalled heuristically checks whether a Python matching the
// major.minor of version is installed. Results are cached per key.
func (p *Prober) IsVersionInstalled(ctx context.Context, version string) bool {
	key := MajorMinor(version)
	if key == "" {
		return false
	}
	if installed, ok := p.cache.get(key); ok {
		return installed
	}

	installed := p.probe(ctx, key)
	p.cache.put(key, installed)
	return installed
}

func (p *Prober) probe(ctx context.Context, key string) bool {
	if p.goos == "windows" {
		if launcher, err := p.lookPath("py"); err == nil {
			res := p.run.Run(ctx, runner.Command{Name: launcher, Args: []string{"-" + key, "--version"}})
			if res.LaunchErr == nil && strings.Contains(res.Output, key) {
				return true
			}
		}
	}

	major := strings.SplitN(key, ".", 2)[0]
	for _, exe := range candidates(major, key) {
		path, err := p.lookPath(exe)
		if err != nil {
			continue
		}
		res := p.run.Run(ctx, runner.Command{Name: path, Args: []string{"--version"}})
		if res.LaunchErr != nil {
			continue
		}
		if strings.Contains(res.Output, key) {
			return true
		}
	}
	return false
}

// VenvPython locates the interpreter inside a virtual environment.
// It returns "" when the interpreter does not exist.
func VenvPython(venvDir, goos string) string {
	var py string
	if goos == "windows" {
		py = filepath.Join(venvDir, "Scripts", "python.exe")
	} else {
		py = filepath.Join(venvDir, "bin", "python")
	}
	if _, err := os.Stat(py); err != nil {
		return ""
	}
	return py
}
