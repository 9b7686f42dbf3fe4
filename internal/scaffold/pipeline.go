// Package scaffold creates a Django project: virtual environment, packages,
// apps, settings, templates and migrations, one step after another.
package scaffold

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lupon1/Django-Project-Assistant/internal/fsutil"
	"github.com/lupon1/Django-Project-Assistant/internal/prober"
	"github.com/lupon1/Django-Project-Assistant/internal/runner"
	"github.com/lupon1/Django-Project-Assistant/internal/settings"
)

// Step names a pipeline stage.
type Step string

// Step name constants, in execution order.
const (
	StepValidatePaths     Step = "ValidatePaths"
	StepCheckToolchain    Step = "CheckToolchain"
	StepCreateDirs        Step = "CreateDirs"
	StepCreateVenv        Step = "CreateVenv"
	StepResolvePython     Step = "ResolvePython"
	StepInstallPackages   Step = "InstallPackages"
	StepStartProject      Step = "StartProject"
	StepStartCoreApp      Step = "StartCoreApp"
	StepWriteCoreFiles    Step = "WriteCoreFiles"
	StepPatchURLs         Step = "PatchURLs"
	StepCreateAccountsApp Step = "CreateAccountsApp"
	StepPatchSettings     Step = "PatchSettings"
	StepCopyTemplates     Step = "CopyTemplates"
	StepInjectAssets      Step = "InjectAssets"
	StepMigrate           Step = "Migrate"
	StepCreateSuperuser   Step = "CreateSuperuser"
)

// SuperuserCreated is what createsuperuser prints on success.
const SuperuserCreated = "Superuser created successfully"

// Reporter receives progress from a running pipeline. Status carries short
// human-readable updates; Log carries command output verbatim.
type Reporter interface {
	Status(msg string)
	Log(text string)
}

// Toolchain reports whether uv can be used.
type Toolchain interface {
	ToolchainAvailable() bool
}

// Result is the terminal state of one pipeline run.
type Result struct {
	RunID      string
	Success    bool
	Message    string
	Elapsed    time.Duration
	ProjectDir string
	Python     string
	Err        error
}

// Options configures a Pipeline. Runner, Toolchain and Reporter are
// required.
type Options struct {
	Runner    runner.Runner
	Toolchain Toolchain
	Reporter  Reporter
	Logger    *slog.Logger
	GOOS      string
	Now       func() time.Time
}

// Pipeline runs the scaffolding steps in a fixed order and stops at the
// first error.
type Pipeline struct {
	run       runner.Runner
	toolchain Toolchain
	reporter  Reporter
	logger    *slog.Logger
	goos      string
	now       func() time.Time
	engine    *TemplateEngine
}

// New creates a Pipeline.
func New(opts Options) (*Pipeline, error) {
	if opts.Runner == nil || opts.Toolchain == nil || opts.Reporter == nil {
		return nil, errors.New("scaffold: runner, toolchain and reporter are required")
	}
	engine, err := NewTemplateEngine()
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		run:       opts.Runner,
		toolchain: opts.Toolchain,
		reporter:  opts.Reporter,
		logger:    opts.Logger,
		goos:      opts.GOOS,
		now:       opts.Now,
		engine:    engine,
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	if p.goos == "" {
		p.goos = runtime.GOOS
	}
	if p.now == nil {
		p.now = time.Now
	}
	return p, nil
}

// state accumulates what earlier steps produced.
type state struct {
	req        Request
	projectDir string
	venvDir    string
	python     string
	logger     *slog.Logger
}

type stage struct {
	name Step
	run  func(context.Context, *state) error
	// skip reports whether the request does not need this step.
	skip func(Request) bool
}

func (p *Pipeline) stages() []stage {
	return []stage{
		{name: StepValidatePaths, run: p.validatePaths},
		{name: StepCheckToolchain, run: p.checkToolchain},
		{name: StepCreateDirs, run: p.createDirs},
		{name: StepCreateVenv, run: p.createVenv},
		{name: StepResolvePython, run: p.resolvePython},
		{name: StepInstallPackages, run: p.installPackages},
		{name: StepStartProject, run: p.startProject},
		{name: StepStartCoreApp, run: p.startCoreApp},
		{name: StepWriteCoreFiles, run: p.writeCoreFiles},
		{name: StepPatchURLs, run: p.patchURLs},
		{name: StepCreateAccountsApp, run: p.createAccountsApp, skip: func(r Request) bool { return !r.CustomUserModel }},
		{name: StepPatchSettings, run: p.patchSettings},
		{name: StepCopyTemplates, run: p.copyTemplates},
		{name: StepInjectAssets, run: p.injectAssets, skip: func(r Request) bool { return len(r.Assets) == 0 }},
		{name: StepMigrate, run: p.migrate},
		{name: StepCreateSuperuser, run: p.createSuperuser, skip: func(r Request) bool { return !r.CreateSuperuser || r.Credentials == nil }},
	}
}

// Run executes every step for req. The returned Result always carries a
// RunID and elapsed time; Err is set when a step aborted the run.
func (p *Pipeline) Run(ctx context.Context, req Request) Result {
	start := p.now()
	res := Result{
		RunID:      uuid.NewString(),
		ProjectDir: req.ProjectDir(),
	}
	st := &state{
		req:        req,
		projectDir: req.ProjectDir(),
		venvDir:    req.VenvDir(),
		logger:     p.logger.With("run_id", res.RunID, "project", req.Name),
	}

	for _, s := range p.stages() {
		if s.skip != nil && s.skip(req) {
			continue
		}
		st.logger.Debug("step started", "step", s.name)

		if err := p.runStage(ctx, s, st); err != nil {
			res.Err = err
			res.Python = st.python
			res.Elapsed = p.now().Sub(start)
			res.Message = "Process aborted: " + err.Error()
			st.logger.Error("pipeline aborted", "step", s.name, "error", err)
			p.reporter.Status(res.Message)
			return res
		}
	}

	res.Success = true
	res.Python = st.python
	res.Elapsed = p.now().Sub(start)
	res.Message = fmt.Sprintf("Project '%s' created at: %s", req.Name, st.projectDir)
	st.logger.Info("project created", "dir", st.projectDir, "elapsed", res.Elapsed)
	p.reporter.Status(fmt.Sprintf("Done! Total time: %.2f seconds", res.Elapsed.Seconds()))
	p.reporter.Status(res.Message)
	return res
}

// runStage runs one step, turning a panic into ErrInternal.
func (p *Pipeline) runStage(ctx context.Context, s stage, st *state) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w in %s: %v", ErrInternal, s.name, r)
		}
	}()

	if err := ctx.Err(); err != nil {
		return err
	}
	return s.run(ctx, st)
}

// exec runs c, forwards its output and converts a nonzero exit into a
// StepError.
func (p *Pipeline) exec(ctx context.Context, step Step, c runner.Command) (runner.Result, error) {
	res := p.run.Run(ctx, c)
	if out := strings.TrimRight(res.Output, "\n"); out != "" {
		p.reporter.Log(out)
	}
	if !res.OK() {
		return res, &StepError{Step: step, Command: c.String(), ExitCode: res.ExitCode, Output: res.Output}
	}
	return res, nil
}

func (p *Pipeline) manage(ctx context.Context, step Step, st *state, args ...string) error {
	c := runner.Command{
		Name: st.python,
		Args: append([]string{"manage.py"}, args...),
		Dir:  st.projectDir,
	}
	p.reporter.Status("Running: " + c.String())
	_, err := p.exec(ctx, step, c)
	return err
}

func (p *Pipeline) warn(st *state, msg string) {
	st.logger.Warn(msg)
	p.reporter.Status("Warning: " + msg)
}

func (p *Pipeline) validatePaths(_ context.Context, st *state) error {
	p.reporter.Status("Validating paths...")
	if err := st.req.Validate(); err != nil {
		return err
	}
	for _, dir := range []string{st.projectDir, st.venvDir} {
		full, err := fsutil.DirHasEntries(dir)
		if err != nil {
			return fmt.Errorf("failed to inspect %s: %w", dir, err)
		}
		if full {
			return fmt.Errorf("%w: %s", ErrDirNotEmpty, dir)
		}
	}
	return nil
}

func (p *Pipeline) checkToolchain(_ context.Context, _ *state) error {
	if !p.toolchain.ToolchainAvailable() {
		return ErrToolchainNotFound
	}
	return nil
}

func (p *Pipeline) createDirs(_ context.Context, st *state) error {
	p.reporter.Status("Starting project creation...")
	if err := os.MkdirAll(st.projectDir, 0755); err != nil {
		return fmt.Errorf("failed to create project dir: %w", err)
	}
	if err := os.MkdirAll(st.req.VenvParent, 0755); err != nil {
		return fmt.Errorf("failed to create venv parent dir: %w", err)
	}
	p.reporter.Status("Project folder ready: " + st.projectDir)
	return nil
}

func (p *Pipeline) createVenv(ctx context.Context, st *state) error {
	c := runner.Command{
		Name: prober.Toolchain,
		Args: []string{"venv", st.venvDir, "--python", st.req.PythonVersion},
	}
	p.reporter.Status("Running: " + c.String())
	_, err := p.exec(ctx, StepCreateVenv, c)
	return err
}

func (p *Pipeline) resolvePython(_ context.Context, st *state) error {
	st.python = prober.VenvPython(st.venvDir, p.goos)
	if st.python == "" {
		return fmt.Errorf("%w: %s", ErrInterpreterNotFound, st.venvDir)
	}
	return nil
}

func (p *Pipeline) installPackages(ctx context.Context, st *state) error {
	pkgs := append([]string{"django"}, st.req.PackageNames()...)
	args := append([]string{"pip", "install"}, pkgs...)
	args = append(args, "--python", st.python)

	p.reporter.Status("pip installing: " + strings.Join(pkgs, " "))
	_, err := p.exec(ctx, StepInstallPackages, runner.Command{Name: prober.Toolchain, Args: args})
	return err
}

func (p *Pipeline) startProject(ctx context.Context, st *state) error {
	p.reporter.Status("Creating Django project...")
	_, err := p.exec(ctx, StepStartProject, runner.Command{
		Name: st.python,
		Args: []string{"-m", "django", "startproject", st.req.Name, "."},
		Dir:  st.projectDir,
	})
	return err
}

func (p *Pipeline) startCoreApp(ctx context.Context, st *state) error {
	return p.manage(ctx, StepStartCoreApp, st, "startapp", settings.CoreApp)
}

func (p *Pipeline) writeCoreFiles(_ context.Context, st *state) error {
	return p.engine.WriteAppFiles(st.projectDir, settings.CoreApp)
}

func (p *Pipeline) patchURLs(_ context.Context, st *state) error {
	ok, err := PatchURLs(st.projectDir, st.req.Name)
	if err != nil {
		return err
	}
	if !ok {
		p.warn(st, "could not route '' to core.urls in urls.py")
	}
	return nil
}

func (p *Pipeline) createAccountsApp(ctx context.Context, st *state) error {
	if err := p.manage(ctx, StepCreateAccountsApp, st, "startapp", settings.AccountsApp); err != nil {
		return err
	}
	missing, err := CopyAccountStubs(st.req.CodeTemplatesDir, st.projectDir)
	for _, m := range missing {
		p.warn(st, "code template not found at "+m)
	}
	return err
}

func (p *Pipeline) patchSettings(_ context.Context, st *state) error {
	p.reporter.Status("Patching settings.py...")
	path := filepath.Join(st.projectDir, st.req.Name, "settings.py")
	changed, err := settings.Patch(path, st.req.Packages, st.req.CustomUserModel)
	if err != nil {
		return err
	}
	st.logger.Debug("settings patched", "path", path, "changed", changed)
	return nil
}

func (p *Pipeline) copyTemplates(_ context.Context, st *state) error {
	p.reporter.Status("Creating templates...")
	return CopyTemplates(st.req.TemplatesDir, st.req.TemplateCollection, st.projectDir, st.req.CustomUserModel)
}

func (p *Pipeline) injectAssets(_ context.Context, st *state) error {
	p.reporter.Status("Injecting external libraries into base.html...")
	injected, err := InjectAssetsFile(st.projectDir, st.req.Assets)
	if err != nil {
		return err
	}
	if !injected {
		st.logger.Debug("base template missing or without markers", "path", BaseTemplatePath(st.projectDir))
	}
	return nil
}

func (p *Pipeline) migrate(ctx context.Context, st *state) error {
	p.reporter.Status("Running migrations...")
	if err := p.manage(ctx, StepMigrate, st, "makemigrations"); err != nil {
		return err
	}
	return p.manage(ctx, StepMigrate, st, "migrate")
}

func (p *Pipeline) createSuperuser(ctx context.Context, st *state) error {
	p.reporter.Status("Creating superuser...")
	res := p.run.Run(ctx, runner.Command{
		Name: st.python,
		Args: []string{"manage.py", "createsuperuser", "--no-input"},
		Dir:  st.projectDir,
		Env: map[string]string{
			"DJANGO_SUPERUSER_EMAIL":    st.req.Credentials.Email,
			"DJANGO_SUPERUSER_PASSWORD": st.req.Credentials.Password,
		},
	})
	if out := strings.TrimRight(res.Output, "\n"); out != "" {
		p.reporter.Log(out)
	}

	if strings.Contains(res.Output, SuperuserCreated) {
		p.reporter.Status(SuperuserCreated + ".")
		return nil
	}
	p.warn(st, "superuser creation may have failed. Check console log.")
	return nil
}
