package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.RememberOpenBrowser {
		t.Error("RememberOpenBrowser should default to true")
	}
	if len(cfg.Packages) != 3 || len(cfg.Assets) != 2 {
		t.Errorf("got %d packages, %d assets; want 3, 2", len(cfg.Packages), len(cfg.Assets))
	}
}

func TestLoad_UnparsableFileReturnsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	if err := os.WriteFile(path, []byte("django_packages: [unterminated"), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.Packages) != 3 {
		t.Errorf("expected default packages, got %d", len(cfg.Packages))
	}
}

func TestLoad_FillsMissingDescriptorFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	data := `remember_open_browser: false
django_packages:
  - name: django-cors-headers
    selected: true
  - name: my-package
    apps: [mine]
external_libraries:
  - name: HTMX
    selected: true
`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.RememberOpenBrowser {
		t.Error("explicit false should be kept")
	}
	if cfg.TemplatesDir != "html_templates" {
		t.Errorf("TemplatesDir = %q, want default", cfg.TemplatesDir)
	}
	if len(cfg.Packages) != 2 {
		t.Fatalf("got %d packages, want 2", len(cfg.Packages))
	}

	cors := cfg.Packages[0]
	if !cors.Selected {
		t.Error("cors should be selected")
	}
	if len(cors.Middleware) != 1 || cors.Middleware[0] != "corsheaders.middleware.CorsMiddleware" {
		t.Errorf("cors middleware not filled from defaults: %v", cors.Middleware)
	}
	if cors.OtherSettings != "CORS_ALLOW_ALL_ORIGINS = True" {
		t.Errorf("cors other settings = %q", cors.OtherSettings)
	}

	mine := cfg.Packages[1]
	if len(mine.Apps) != 1 || mine.Apps[0] != "mine" || mine.Selected {
		t.Errorf("unexpected custom package: %+v", mine)
	}

	if len(cfg.Assets) != 1 || cfg.Assets[0].BodyScripts[0] != "https://unpkg.com/htmx.org@1.9.10" {
		t.Errorf("asset not filled from defaults: %+v", cfg.Assets)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", FileName)
	cfg := Default()
	cfg.LastProjectPath = "/tmp/blog"
	cfg.CachedPythonVersions = []string{"3.12.4", "3.11.9"}
	cfg.SetAssetSelected("FontAwesome", true)

	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.LastProjectPath != "/tmp/blog" || len(got.CachedPythonVersions) != 2 {
		t.Errorf("round trip lost data: %+v", got)
	}
	if sel := got.SelectedAssets(); len(sel) != 1 || sel[0].Name != "FontAwesome" {
		t.Errorf("SelectedAssets = %+v", sel)
	}
}

func TestSetPackageSelected(t *testing.T) {
	cfg := Default()
	if !cfg.SetPackageSelected("django-allauth", true) {
		t.Fatal("expected django-allauth to be found")
	}
	if cfg.SetPackageSelected("missing", true) {
		t.Error("unknown package should report false")
	}
	sel := cfg.SelectedPackages()
	if len(sel) != 1 || sel[0].Name != "django-allauth" {
		t.Errorf("SelectedPackages = %+v", sel)
	}
}

func TestLoad_UnreadableFileYieldsDefaults(t *testing.T) {
	// A directory cannot be read as a file on any platform.
	cfg, err := Load(t.TempDir())
	if err == nil {
		t.Fatal("expected the read error to be reported")
	}
	if cfg == nil || !cfg.RememberOpenBrowser || len(cfg.Packages) != 3 {
		t.Errorf("expected defaults, got %+v", cfg)
	}
}
