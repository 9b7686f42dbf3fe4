package scaffold

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/lupon1/Django-Project-Assistant/internal/config"
	"github.com/lupon1/Django-Project-Assistant/internal/runner"
)

const generatedSettings = `from pathlib import Path

BASE_DIR = Path(__file__).resolve().parent.parent

INSTALLED_APPS = [
    'django.contrib.admin',
    'django.contrib.auth',
]

MIDDLEWARE = [
    'django.middleware.security.SecurityMiddleware',
    'django.middleware.common.CommonMiddleware',
]

TEMPLATES = [
    {
        'BACKEND': 'django.template.backends.django.DjangoTemplates',
        'DIRS': [],
    },
]
`

const generatedURLs = `from django.contrib import admin
from django.urls import path

urlpatterns = [
    path('admin/', admin.site.urls),
]
`

const baseHTML = `<html>
<head>
<!-- DJANGO_ASSISTANT_HEAD_LINKS -->
</head>
<body>
<!-- DJANGO_ASSISTANT_BODY_SCRIPTS -->
</body>
</html>
`

// fakeDjango plays uv and manage.py: it records every command and creates
// the files the real tools would.
type fakeDjango struct {
	t     *testing.T
	calls []runner.Command
	fail  string // substring of the command that exits 1
}

func (f *fakeDjango) Run(_ context.Context, c runner.Command) runner.Result {
	f.calls = append(f.calls, c)
	line := c.String()
	if f.fail != "" && strings.Contains(line, f.fail) {
		return runner.Result{ExitCode: 1, Output: "CommandError: simulated failure\n"}
	}

	switch {
	case strings.HasPrefix(line, "uv venv "):
		f.write(filepath.Join(c.Args[1], "bin", "python"), "")
	case strings.Contains(line, "startproject"):
		name := c.Args[3]
		f.write(filepath.Join(c.Dir, "manage.py"), "")
		f.write(filepath.Join(c.Dir, name, "settings.py"), generatedSettings)
		f.write(filepath.Join(c.Dir, name, "urls.py"), generatedURLs)
	case strings.Contains(line, "startapp"):
		f.write(filepath.Join(c.Dir, c.Args[2], "__init__.py"), "")
	case strings.Contains(line, "createsuperuser"):
		return runner.Result{Output: "Superuser created successfully.\n"}
	}
	return runner.Result{Output: "ok\n"}
}

func (f *fakeDjango) write(path, content string) {
	f.t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		f.t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		f.t.Fatal(err)
	}
}

func (f *fakeDjango) commands() []string {
	out := make([]string, len(f.calls))
	for i, c := range f.calls {
		out[i] = c.String()
	}
	return out
}

type fakeToolchain bool

func (f fakeToolchain) ToolchainAvailable() bool { return bool(f) }

type panicToolchain struct{}

func (panicToolchain) ToolchainAvailable() bool { panic("probe exploded") }

type recorder struct {
	statuses []string
	logs     []string
}

func (r *recorder) Status(msg string) { r.statuses = append(r.statuses, msg) }
func (r *recorder) Log(text string)   { r.logs = append(r.logs, text) }

func (r *recorder) hasStatus(prefix string) bool {
	for _, s := range r.statuses {
		if strings.HasPrefix(s, prefix) {
			return true
		}
	}
	return false
}

type fixture struct {
	root     string
	runner   *fakeDjango
	reporter *recorder
	pipeline *Pipeline
	req      Request
}

func newFixture(t *testing.T, tc Toolchain) *fixture {
	t.Helper()
	root := t.TempDir()
	f := &fixture{
		root:     root,
		runner:   &fakeDjango{t: t},
		reporter: &recorder{},
	}

	templates := filepath.Join(root, "html_templates")
	f.runner.write(filepath.Join(templates, "simple", "core", "base.html"), baseHTML)
	f.runner.write(filepath.Join(templates, "simple", "core", "index.html"), "{% extends 'core/base.html' %}\n")
	f.runner.write(filepath.Join(templates, "simple", "accounts", "login.html"), "login\n")

	code := filepath.Join(root, "code_templates")
	f.runner.write(filepath.Join(code, "accounts", "models.py.template"), "class User: pass\n")

	p, err := New(Options{
		Runner:    f.runner,
		Toolchain: tc,
		Reporter:  f.reporter,
		GOOS:      "linux",
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	f.pipeline = p

	f.req = Request{
		Name:               "blog",
		ProjectParent:      filepath.Join(root, "projects"),
		VenvParent:         filepath.Join(root, "venvs"),
		PythonVersion:      "3.12",
		TemplateCollection: "simple",
		TemplatesDir:       templates,
		CodeTemplatesDir:   code,
	}
	return f
}

var corsHeaders = config.PackageDescriptor{
	Name:          "django-cors-headers",
	Apps:          []string{"corsheaders"},
	Middleware:    []string{"corsheaders.middleware.CorsMiddleware"},
	OtherSettings: "CORS_ALLOW_ALL_ORIGINS = True",
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(data)
}

func TestRun_CreatesProject(t *testing.T) {
	f := newFixture(t, fakeToolchain(true))
	f.req.Packages = []config.PackageDescriptor{corsHeaders}
	f.req.Assets = []config.AssetDescriptor{
		{Name: "HTMX", BodyScripts: []string{"https://unpkg.com/htmx.org@1.9.10"}},
	}
	f.req.CustomUserModel = true
	f.req.CreateSuperuser = true
	f.req.Credentials = &Credentials{Email: "admin@example.com", Password: "s3cret"}

	res := f.pipeline.Run(context.Background(), f.req)
	if res.Err != nil {
		t.Fatalf("Run failed: %v\nstatuses: %q", res.Err, f.reporter.statuses)
	}
	if !res.Success || res.RunID == "" {
		t.Errorf("unexpected result %+v", res)
	}

	projectDir := f.req.ProjectDir()
	venvPython := filepath.Join(f.req.VenvDir(), "bin", "python")
	if res.Python != venvPython {
		t.Errorf("Python = %q, want %q", res.Python, venvPython)
	}
	if res.Message != "Project 'blog' created at: "+projectDir {
		t.Errorf("Message = %q", res.Message)
	}

	want := []string{
		"uv venv " + f.req.VenvDir() + " --python 3.12",
		"uv pip install django django-cors-headers --python " + venvPython,
		venvPython + " -m django startproject blog .",
		venvPython + " manage.py startapp core",
		venvPython + " manage.py startapp accounts",
		venvPython + " manage.py makemigrations",
		venvPython + " manage.py migrate",
		venvPython + " manage.py createsuperuser --no-input",
	}
	got := f.runner.commands()
	if strings.Join(got, "\n") != strings.Join(want, "\n") {
		t.Errorf("commands:\n%s\nwant:\n%s", strings.Join(got, "\n"), strings.Join(want, "\n"))
	}

	su := f.runner.calls[len(f.runner.calls)-1]
	if su.Env["DJANGO_SUPERUSER_EMAIL"] != "admin@example.com" || su.Env["DJANGO_SUPERUSER_PASSWORD"] != "s3cret" {
		t.Errorf("superuser env = %v", su.Env)
	}

	views := readFile(t, filepath.Join(projectDir, "core", "views.py"))
	if !strings.Contains(views, "return render(request, 'core/index.html')") {
		t.Errorf("views.py = %q", views)
	}
	apps := readFile(t, filepath.Join(projectDir, "core", "apps.py"))
	if !strings.Contains(apps, "class CoreConfig(AppConfig):") || !strings.Contains(apps, "name = 'core'") {
		t.Errorf("apps.py = %q", apps)
	}

	urls := readFile(t, filepath.Join(projectDir, "blog", "urls.py"))
	if !strings.Contains(urls, "from django.urls import path, include\n") ||
		!strings.Contains(urls, "urlpatterns = [\n    path('', include('core.urls')),\n    path('admin/'") {
		t.Errorf("urls.py not patched:\n%s", urls)
	}

	sets := readFile(t, filepath.Join(projectDir, "blog", "settings.py"))
	if !strings.Contains(sets, "MIDDLEWARE = [\n    'corsheaders.middleware.CorsMiddleware',\n") {
		t.Errorf("cors middleware is not first:\n%s", sets)
	}
	for _, s := range []string{"    'corsheaders',\n    'core',\n    'accounts',\n]", "AUTH_USER_MODEL = 'accounts.User'", "CORS_ALLOW_ALL_ORIGINS = True"} {
		if !strings.Contains(sets, s) {
			t.Errorf("settings.py missing %q", s)
		}
	}

	if got := readFile(t, filepath.Join(projectDir, "accounts", "models.py")); got != "class User: pass\n" {
		t.Errorf("accounts/models.py = %q", got)
	}
	if !f.reporter.hasStatus("Warning: code template not found") {
		t.Error("missing account stubs should be reported as warnings")
	}
	if _, err := os.Stat(filepath.Join(projectDir, "accounts", "templates", "accounts", "login.html")); err != nil {
		t.Errorf("accounts templates not copied: %v", err)
	}

	base := readFile(t, BaseTemplatePath(projectDir))
	if !strings.Contains(base, `  <script src="https://unpkg.com/htmx.org@1.9.10"></script>`) || strings.Contains(base, BodyScriptsMarker) {
		t.Errorf("assets not injected:\n%s", base)
	}

	if !f.reporter.hasStatus("Superuser created successfully") || !f.reporter.hasStatus("Done! Total time:") {
		t.Errorf("statuses = %q", f.reporter.statuses)
	}
}

func TestRun_InvalidRequestRunsNothing(t *testing.T) {
	f := newFixture(t, fakeToolchain(true))
	f.req.Name = "my-blog"

	res := f.pipeline.Run(context.Background(), f.req)
	if !IsValidation(res.Err) {
		t.Fatalf("expected a validation error, got %v", res.Err)
	}
	if len(f.runner.calls) != 0 {
		t.Errorf("commands ran: %v", f.runner.commands())
	}
	if _, err := os.Stat(f.req.ProjectParent); !os.IsNotExist(err) {
		t.Error("no directory should be created for an invalid request")
	}
}

func TestRun_ToolchainMissing(t *testing.T) {
	f := newFixture(t, fakeToolchain(false))

	res := f.pipeline.Run(context.Background(), f.req)
	if !errors.Is(res.Err, ErrToolchainNotFound) {
		t.Fatalf("expected ErrToolchainNotFound, got %v", res.Err)
	}
	if !strings.Contains(res.Message, "https://astral.sh/uv") {
		t.Errorf("message should carry the install hint: %q", res.Message)
	}
	if len(f.runner.calls) != 0 {
		t.Errorf("commands ran: %v", f.runner.commands())
	}
	for _, dir := range []string{f.req.ProjectDir(), f.req.VenvParent} {
		if _, err := os.Stat(dir); !os.IsNotExist(err) {
			t.Errorf("%s should not exist", dir)
		}
	}
}

func TestRun_DirNotEmpty(t *testing.T) {
	f := newFixture(t, fakeToolchain(true))
	f.runner.write(filepath.Join(f.req.VenvDir(), "pyvenv.cfg"), "")

	res := f.pipeline.Run(context.Background(), f.req)
	if !errors.Is(res.Err, ErrDirNotEmpty) || !IsValidation(res.Err) {
		t.Fatalf("expected ErrDirNotEmpty, got %v", res.Err)
	}
	if len(f.runner.calls) != 0 {
		t.Errorf("commands ran: %v", f.runner.commands())
	}
}

func TestRun_CollectionMissing(t *testing.T) {
	f := newFixture(t, fakeToolchain(true))
	f.req.TemplateCollection = "modern"

	res := f.pipeline.Run(context.Background(), f.req)
	if !errors.Is(res.Err, ErrCollectionNotFound) {
		t.Fatalf("expected ErrCollectionNotFound, got %v", res.Err)
	}
	for _, c := range f.runner.commands() {
		if strings.Contains(c, "migrate") {
			t.Errorf("%q ran after the copy step failed", c)
		}
	}
	if _, err := os.Stat(filepath.Join(f.req.ProjectDir(), "core", "templates")); !os.IsNotExist(err) {
		t.Error("no templates should be copied")
	}
}

func TestRun_FailingStepStops(t *testing.T) {
	tests := []struct {
		fail string
		step Step
	}{
		{"uv venv", StepCreateVenv},
		{"pip install", StepInstallPackages},
		{"startapp core", StepStartCoreApp},
		{"makemigrations", StepMigrate},
	}

	for _, tt := range tests {
		t.Run(string(tt.step), func(t *testing.T) {
			f := newFixture(t, fakeToolchain(true))
			f.runner.fail = tt.fail

			res := f.pipeline.Run(context.Background(), f.req)
			var stepErr *StepError
			if !errors.As(res.Err, &stepErr) {
				t.Fatalf("expected *StepError, got %v", res.Err)
			}
			if stepErr.Step != tt.step || stepErr.ExitCode != 1 {
				t.Errorf("got %+v", stepErr)
			}
			if last := f.runner.commands()[len(f.runner.calls)-1]; !strings.Contains(last, tt.fail) {
				t.Errorf("commands continued after failure, last = %q", last)
			}
			if !strings.HasPrefix(res.Message, "Process aborted: ") {
				t.Errorf("Message = %q", res.Message)
			}
		})
	}
}

func TestRun_PanicBecomesInternalError(t *testing.T) {
	f := newFixture(t, panicToolchain{})

	res := f.pipeline.Run(context.Background(), f.req)
	if !errors.Is(res.Err, ErrInternal) {
		t.Fatalf("expected ErrInternal, got %v", res.Err)
	}
	if !strings.Contains(res.Err.Error(), "probe exploded") {
		t.Errorf("error should carry the panic value: %v", res.Err)
	}
}

func TestRun_SuperuserFailureIsOnlyAWarning(t *testing.T) {
	f := newFixture(t, fakeToolchain(true))
	f.runner.fail = "createsuperuser"
	f.req.CustomUserModel = true
	f.req.CreateSuperuser = true
	f.req.Credentials = &Credentials{Email: "a@b.c", Password: "pw"}

	res := f.pipeline.Run(context.Background(), f.req)
	if res.Err != nil {
		t.Fatalf("Run failed: %v", res.Err)
	}
	if !f.reporter.hasStatus("Warning: superuser creation may have failed") {
		t.Errorf("statuses = %q", f.reporter.statuses)
	}
}
