package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/lupon1/Django-Project-Assistant/internal/events"
	"github.com/lupon1/Django-Project-Assistant/internal/ports"
	"github.com/lupon1/Django-Project-Assistant/internal/prober"
	"github.com/lupon1/Django-Project-Assistant/internal/runner"
	"github.com/lupon1/Django-Project-Assistant/internal/scaffold"
	"github.com/lupon1/Django-Project-Assistant/internal/server"
	"github.com/lupon1/Django-Project-Assistant/internal/ui"
)

// browserDelay gives runserver time to bind before the browser asks for
// the first page.
const browserDelay = 3 * time.Second

// errCancelled is returned when the user leaves the form.
var errCancelled = errors.New("cancelled")

// newCmd represents the new command
var newCmd = &cobra.Command{
	Use:   "new",
	Short: "Create a new Django project",
	Long: `The new command creates a Django project step by step:
- a uv virtual environment with Django and the selected packages
- the project, a core app wired into urls.py, and optionally an accounts
  app with a custom user model
- settings.py patched with the packages' apps, middleware and settings
- HTML templates copied from a collection, with external libraries injected
- migrations, and optionally a superuser

Without --yes an interactive form asks for anything not given as a flag.
When --open-browser is set the development server is started afterwards.`,
	RunE: runNew,
}

func init() {
	f := newCmd.Flags()
	f.StringP("name", "n", "", "Project name (letters, numbers and underscores)")
	f.String("project-dir", "", "Parent directory of the project (default: last used, then cwd)")
	f.String("venv-dir", "", "Parent directory of the virtual environment (default: last used)")
	f.String("python", "", "Python version for the virtual environment, e.g. 3.12")
	f.String("collection", "", "HTML template collection (default: first found)")
	f.StringSlice("package", nil, "Django package to install (repeatable; default: saved selection)")
	f.StringSlice("asset", nil, "External library to inject (repeatable; default: saved selection)")
	f.Bool("custom-user", false, "Create an accounts app with a custom user model")
	f.Bool("superuser", false, "Create a superuser (requires --custom-user)")
	f.String("email", "", "Superuser email")
	f.String("password", "", "Superuser password (default: $DJANGO_SUPERUSER_PASSWORD)")
	f.Bool("open-browser", true, "Start the server and open the browser when done")
	f.IntP("port", "p", 0, "Dev server port (0 = 8000, shifted if busy)")
	f.Bool("no-port-shift", false, "Fail instead of picking another port when the port is busy")
	f.Bool("no-tui", false, "Disable the console (use plain scrolling output)")
	f.BoolP("yes", "y", false, "Skip the interactive form and use flags and saved defaults")
}

func runNew(cmd *cobra.Command, args []string) error {
	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()
	ctx, cancel := context.WithCancel(sigCtx)
	defer cancel()

	skipForm, _ := cmd.Flags().GetBool("yes")
	noTUI, _ := cmd.Flags().GetBool("no-tui")
	port, _ := cmd.Flags().GetInt("port")
	noPortShift, _ := cmd.Flags().GetBool("no-port-shift")

	tui := !noTUI && ui.IsInteractive()
	logger := componentLogger(tui)
	run := runner.New(logger)
	p := prober.New(prober.Options{Runner: run})

	req, err := gatherRequest(ctx, cmd, p, !skipForm && ui.IsInteractive())
	if errors.Is(err, errCancelled) {
		ui.PrintInfo("Cancelled")
		return nil
	}
	if err != nil {
		return err
	}
	if err := req.Validate(); err != nil {
		return err
	}
	if err := req.ValidateCollection(); err != nil {
		return fmt.Errorf("%w: %v", scaffold.ErrValidation, err)
	}

	rememberChoices(req)
	saveConfig()

	bus := events.NewBus(events.DefaultCapacity)
	defer bus.Close()

	choice, err := ports.Resolve(ports.DefaultPort, port, noPortShift)
	if err != nil {
		return fmt.Errorf("%w: %v", scaffold.ErrValidation, err)
	}
	req.Port = choice.Port
	switch {
	case choice.Busy:
		bus.Status(fmt.Sprintf("Warning: port %d is busy, the server may fail to start", choice.Port))
	case choice.Shifted:
		bus.Status(fmt.Sprintf("Port %d is busy, using %d", ports.DefaultPort, choice.Port))
	}

	pipeline, err := scaffold.New(scaffold.Options{
		Runner:    run,
		Toolchain: p,
		Reporter:  bus,
		Logger:    logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create pipeline: %w", err)
	}

	ctrl := server.New(logger)
	defer shutdownServer(ctrl)

	url := ports.URL(req.Port)
	outcome := make(chan ui.Outcome, 1)
	go func() {
		res := pipeline.Run(ctx, req)
		o := ui.Outcome{Result: res, URL: url}
		if res.Success {
			srv := &devServer{
				ctrl:     ctrl,
				spec:     server.Spec{Python: res.Python, ProjectDir: res.ProjectDir, Addr: ports.Addr(req.Port)},
				listener: bus,
			}
			o.Server = srv
			if req.OpenBrowser && ctx.Err() == nil {
				serveAndOpen(srv, url, bus)
			}
		}
		outcome <- o
	}()

	var res scaffold.Result
	if tui {
		r, ok, err := ui.RunConsole(ctx, ui.NewConsole(req.Name, bus, outcome))
		if err != nil {
			return fmt.Errorf("console failed: %w", err)
		}
		if ok {
			res = r
		} else {
			// Quit before the pipeline finished; stop it and collect its result.
			cancel()
			res = (<-outcome).Result
		}
	} else {
		drained := make(chan struct{})
		go func() {
			ui.Drain(bus)
			close(drained)
		}()
		res = (<-outcome).Result
		if ctrl.Running() {
			bus.Status("Press Ctrl+C to stop the server")
			ctrl.Wait(ctx)
		}
		shutdownServer(ctrl)
		bus.Close()
		<-drained
	}

	if !res.Success {
		return res.Err
	}
	return nil
}

// gatherRequest builds the request from flags and saved defaults, then
// lets the form override them when interactive is set.
func gatherRequest(ctx context.Context, cmd *cobra.Command, p *prober.Prober, interactive bool) (scaffold.Request, error) {
	f := cmd.Flags()
	name, _ := f.GetString("name")
	projectParent, _ := f.GetString("project-dir")
	venvParent, _ := f.GetString("venv-dir")
	python, _ := f.GetString("python")
	collection, _ := f.GetString("collection")
	pkgFlags, _ := f.GetStringSlice("package")
	assetFlags, _ := f.GetStringSlice("asset")
	customUser, _ := f.GetBool("custom-user")
	superuser, _ := f.GetBool("superuser")
	email, _ := f.GetString("email")
	password, _ := f.GetString("password")
	openBrowser, _ := f.GetBool("open-browser")

	cfg := app.cfg
	if projectParent == "" {
		projectParent = cfg.LastProjectPath
	}
	if projectParent == "" {
		projectParent, _ = os.Getwd()
	}
	if venvParent == "" {
		venvParent = cfg.LastVenvPath
	}
	if venvParent == "" {
		venvParent = projectParent
	}
	if !f.Changed("custom-user") {
		customUser = cfg.RememberCustomUser
	}
	if !f.Changed("open-browser") {
		openBrowser = cfg.RememberOpenBrowser
	}
	if password == "" {
		password = os.Getenv("DJANGO_SUPERUSER_PASSWORD")
	}

	packages := cfg.SelectedPackages()
	if f.Changed("package") {
		picked, err := pickPackages(cfg, pkgFlags)
		if err != nil {
			return scaffold.Request{}, err
		}
		packages = picked
	}
	assets := cfg.SelectedAssets()
	if f.Changed("asset") {
		picked, err := pickAssets(cfg, assetFlags)
		if err != nil {
			return scaffold.Request{}, err
		}
		assets = picked
	}

	templatesDir := absPath(cfg.TemplatesDir)
	collections, err := scaffold.ListCollections(templatesDir)
	if err != nil {
		return scaffold.Request{}, err
	}
	if collection == "" && len(collections) > 0 {
		collection = collections[0]
	}

	if interactive {
		if len(collections) == 0 {
			return scaffold.Request{}, fmt.Errorf("%w: no collections in %s", scaffold.ErrCollectionNotFound, templatesDir)
		}
		versions, err := loadVersions(ctx, p, false)
		if errors.Is(err, prober.ErrToolchainNotFound) {
			return scaffold.Request{}, err
		}
		if err != nil {
			ui.PrintWarning(fmt.Sprintf("Could not list Python versions: %v", err))
		}
		if python != "" {
			versions = append([]string{python}, versions...)
		}

		d := ui.WizardDefaults{
			Name:            name,
			ProjectParent:   projectParent,
			VenvParent:      venvParent,
			Versions:        versionChoices(ctx, p, versions),
			Collections:     preferFirst(collections, collection),
			Packages:        withSelection(cfg.Packages, packageNames(packages)),
			Assets:          withAssetSelection(cfg.Assets, assetNames(assets)),
			CustomUser:      customUser,
			CreateSuperuser: cfg.RememberCreateSuperuser,
			OpenBrowser:     openBrowser,
		}
		a, err := ui.RunWizard(d)
		if errors.Is(err, ui.ErrAborted) {
			return scaffold.Request{}, errCancelled
		}
		if err != nil {
			return scaffold.Request{}, fmt.Errorf("form failed: %w", err)
		}

		name, projectParent, venvParent = a.Name, a.ProjectParent, a.VenvParent
		python, collection = a.PythonVersion, a.Collection
		customUser, superuser, openBrowser = a.CustomUser, a.CreateSuperuser, a.OpenBrowser
		email, password = a.Email, a.Password
		if packages, err = pickPackages(cfg, a.Packages); err != nil {
			return scaffold.Request{}, err
		}
		if assets, err = pickAssets(cfg, a.Assets); err != nil {
			return scaffold.Request{}, err
		}
	} else if python == "" {
		return scaffold.Request{}, fmt.Errorf("%w: --python is required when the form is skipped", scaffold.ErrValidation)
	}

	req := scaffold.Request{
		Name:               scaffold.NormalizeName(name),
		ProjectParent:      absPath(projectParent),
		VenvParent:         absPath(venvParent),
		PythonVersion:      scaffold.PythonVersionToken(python),
		Packages:           packages,
		TemplateCollection: strings.ToLower(collection),
		Assets:             assets,
		CustomUserModel:    customUser,
		CreateSuperuser:    superuser,
		OpenBrowser:        openBrowser,
		TemplatesDir:       templatesDir,
		CodeTemplatesDir:   absPath(cfg.CodeTemplatesDir),
	}
	if superuser {
		req.Credentials = &scaffold.Credentials{Email: email, Password: password}
	}
	return req, nil
}

// rememberChoices stores the request's choices as the next defaults.
func rememberChoices(req scaffold.Request) {
	cfg := app.cfg
	cfg.LastProjectPath = req.ProjectParent
	cfg.LastVenvPath = req.VenvParent
	cfg.RememberCustomUser = req.CustomUserModel
	cfg.RememberOpenBrowser = req.OpenBrowser
	cfg.RememberCreateSuperuser = req.CreateSuperuser

	chosen := make(map[string]bool)
	for _, name := range req.PackageNames() {
		chosen[name] = true
	}
	for _, p := range cfg.Packages {
		cfg.SetPackageSelected(p.Name, chosen[p.Name])
	}
	chosen = make(map[string]bool)
	for _, a := range req.Assets {
		chosen[a.Name] = true
	}
	for _, a := range cfg.Assets {
		cfg.SetAssetSelected(a.Name, chosen[a.Name])
	}
}

// serveAndOpen starts the dev server and opens the browser once it had
// time to bind. Failures are reported as warnings.
func serveAndOpen(srv *devServer, url string, bus *events.Bus) {
	bus.Status("Starting server at " + url)
	if err := srv.Start(); err != nil {
		bus.Status("Warning: could not start the server: " + err.Error())
		return
	}
	time.AfterFunc(browserDelay, func() {
		if !srv.Running() {
			return
		}
		if err := ui.OpenBrowser(url); err != nil {
			bus.Status("Warning: " + err.Error())
		}
	})
}

// shutdownServer stops a running server and waits for it to exit, giving
// up shortly after the kill deadline.
func shutdownServer(ctrl *server.Controller) {
	if !ctrl.Running() {
		return
	}
	if err := ctrl.Stop(); err != nil && !errors.Is(err, server.ErrNotRunning) {
		app.logger.Warn("failed to stop server", "error", err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), server.DefaultKillAfter+2*time.Second)
	defer cancel()
	if err := ctrl.Wait(ctx); err != nil {
		app.logger.Warn("server did not exit in time", "pid", ctrl.PID())
	}
}
