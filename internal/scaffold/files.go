package scaffold

import (
	"bytes"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"text/template"
	"unicode"

	"github.com/lupon1/Django-Project-Assistant/internal/fsutil"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// coreFiles are rendered into the core app, replacing what startapp wrote.
var coreFiles = []string{"views.py", "urls.py", "apps.py"}

// accountStubs map a code template to the file it becomes in accounts/.
var accountStubs = []struct{ src, dst string }{
	{"models.py.template", "models.py"},
	{"admin.py.template", "admin.py"},
	{"apps.py.template", "apps.py"},
}

const urlsMarker = "include('core.urls')"

var (
	urlpatternsPattern = regexp.MustCompile(`urlpatterns\s*=\s*\[`)
	pathImportPattern  = regexp.MustCompile(`(?m)^from django\.urls import path[ \t]*(\r?)$`)
)

// appData is the template context for generated app files.
type appData struct {
	App         string
	ConfigClass string
}

// TemplateEngine renders the embedded source templates.
type TemplateEngine struct {
	templates *template.Template
}

// NewTemplateEngine parses the embedded templates.
func NewTemplateEngine() (*TemplateEngine, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	return &TemplateEngine{templates: tmpl}, nil
}

// Render renders the template for a generated file name such as "views.py".
func (e *TemplateEngine) Render(file string, data any) ([]byte, error) {
	var buf bytes.Buffer
	if err := e.templates.ExecuteTemplate(&buf, file+".tmpl", data); err != nil {
		return nil, fmt.Errorf("failed to execute template %s: %w", file, err)
	}
	return buf.Bytes(), nil
}

// WriteAppFiles writes views.py, urls.py and apps.py for app under projectDir.
func (e *TemplateEngine) WriteAppFiles(projectDir, app string) error {
	dir := filepath.Join(projectDir, app)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}

	data := appData{App: app, ConfigClass: configClass(app)}
	for _, name := range coreFiles {
		content, err := e.Render(name, data)
		if err != nil {
			return err
		}
		if err := os.WriteFile(filepath.Join(dir, name), content, 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", name, err)
		}
	}
	return nil
}

// configClass derives Django's AppConfig class name, "core" -> "CoreConfig".
func configClass(app string) string {
	var b strings.Builder
	upper := true
	for _, r := range app {
		if r == '_' {
			upper = true
			continue
		}
		if upper {
			r = unicode.ToUpper(r)
			upper = false
		}
		b.WriteRune(r)
	}
	return b.String() + "Config"
}

// PatchURLs routes the site root to core.urls in <project>/<name>/urls.py.
// It reports false when the file or its urlpatterns list is missing.
func PatchURLs(projectDir, name string) (bool, error) {
	path := filepath.Join(projectDir, name, "urls.py")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read urls.py: %w", err)
	}

	src := string(data)
	if strings.Contains(src, urlsMarker) {
		return true, nil
	}

	loc := urlpatternsPattern.FindStringIndex(src)
	if loc == nil {
		return false, nil
	}
	nl := "\n"
	if strings.Contains(src, "\r\n") {
		nl = "\r\n"
	}
	src = src[:loc[1]] + nl + "    path('', " + urlsMarker + ")," + src[loc[1]:]
	src = pathImportPattern.ReplaceAllString(src, "from django.urls import path, include$1")

	if err := os.WriteFile(path, []byte(src), 0644); err != nil {
		return false, fmt.Errorf("failed to write urls.py: %w", err)
	}
	return true, nil
}

// CopyAccountStubs copies the custom user model sources into accounts/.
// It returns the stub paths that were missing and therefore skipped.
func CopyAccountStubs(codeTemplatesDir, projectDir string) ([]string, error) {
	srcDir := filepath.Join(codeTemplatesDir, "accounts")
	dstDir := filepath.Join(projectDir, "accounts")
	if err := os.MkdirAll(dstDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create accounts dir: %w", err)
	}

	var missing []string
	for _, s := range accountStubs {
		src := filepath.Join(srcDir, s.src)
		data, err := os.ReadFile(src)
		if err != nil {
			if os.IsNotExist(err) {
				missing = append(missing, src)
				continue
			}
			return missing, fmt.Errorf("failed to read %s: %w", src, err)
		}
		if err := os.WriteFile(filepath.Join(dstDir, s.dst), data, 0644); err != nil {
			return missing, fmt.Errorf("failed to write %s: %w", s.dst, err)
		}
	}
	return missing, nil
}

// CopyTemplates copies the collection's core templates, and the accounts
// templates when withAccounts is set, into the project's app template dirs.
func CopyTemplates(templatesDir, collection, projectDir string, withAccounts bool) error {
	base := filepath.Join(templatesDir, collection)
	if info, err := os.Stat(base); err != nil || !info.IsDir() {
		return fmt.Errorf("%w: %q", ErrCollectionNotFound, collection)
	}

	apps := []string{"core"}
	if withAccounts {
		apps = append(apps, "accounts")
	}
	for _, app := range apps {
		src := filepath.Join(base, app)
		if !fsutil.Exists(src) {
			continue
		}
		dst := filepath.Join(projectDir, app, "templates", app)
		if err := fsutil.CopyDir(src, dst); err != nil {
			return fmt.Errorf("failed to copy %s templates: %w", app, err)
		}
	}
	return nil
}
