// Package config persists the assistant's remembered choices and the
// package / external-asset descriptor catalog as YAML.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// FileName is the default config file name inside the user config dir.
const FileName = "config.yaml"

// PackageDescriptor is a selectable Django package and what it contributes
// to settings.py.
type PackageDescriptor struct {
	Name          string   `yaml:"name"`
	Selected      bool     `yaml:"selected"`
	Apps          []string `yaml:"apps"`
	Middleware    []string `yaml:"middleware"`
	OtherSettings string   `yaml:"other_settings"`
}

// AssetDescriptor is a selectable front-end library injected into base.html.
type AssetDescriptor struct {
	Name        string   `yaml:"name"`
	Selected    bool     `yaml:"selected"`
	HeadLinks   []string `yaml:"head_links"`
	BodyScripts []string `yaml:"body_scripts"`
}

// Config is the persisted assistant state.
type Config struct {
	LastProjectPath         string              `yaml:"last_project_path"`
	LastVenvPath            string              `yaml:"last_venv_path"`
	CachedPythonVersions    []string            `yaml:"cached_python_versions"`
	RememberCustomUser      bool                `yaml:"remember_custom_user"`
	RememberOpenBrowser     bool                `yaml:"remember_open_browser"`
	RememberCreateSuperuser bool                `yaml:"remember_create_superuser"`
	TemplatesDir            string              `yaml:"templates_dir"`
	CodeTemplatesDir        string              `yaml:"code_templates_dir"`
	Packages                []PackageDescriptor `yaml:"django_packages"`
	Assets                  []AssetDescriptor   `yaml:"external_libraries"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		CachedPythonVersions: []string{},
		RememberOpenBrowser:  true,
		TemplatesDir:         "html_templates",
		CodeTemplatesDir:     "code_templates",
		Packages:             defaultPackages(),
		Assets:               defaultAssets(),
	}
}

func defaultPackages() []PackageDescriptor {
	return []PackageDescriptor{
		{
			Name:       "django-environ",
			Apps:       []string{},
			Middleware: []string{},
		},
		{
			Name:          "django-allauth",
			Apps:          []string{"django.contrib.sites", "allauth", "allauth.account", "allauth.socialaccount"},
			Middleware:    []string{"allauth.account.middleware.AccountMiddleware"},
			OtherSettings: "SITE_ID = 1",
		},
		{
			Name:          "django-cors-headers",
			Apps:          []string{"corsheaders"},
			Middleware:    []string{"corsheaders.middleware.CorsMiddleware"},
			OtherSettings: "CORS_ALLOW_ALL_ORIGINS = True",
		},
	}
}

func defaultAssets() []AssetDescriptor {
	return []AssetDescriptor{
		{
			Name:        "FontAwesome",
			HeadLinks:   []string{"https://cdnjs.cloudflare.com/ajax/libs/font-awesome/6.5.1/css/all.min.css"},
			BodyScripts: []string{},
		},
		{
			Name:        "HTMX",
			HeadLinks:   []string{},
			BodyScripts: []string{"https://unpkg.com/htmx.org@1.9.10"},
		},
	}
}

// DefaultPath returns the config location under the user config directory.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve user config dir: %w", err)
	}
	return filepath.Join(dir, "djassist", FileName), nil
}

// rawConfig mirrors Config with pointer fields so missing keys can be told
// apart from zero values.
type rawConfig struct {
	LastProjectPath         *string       `yaml:"last_project_path"`
	LastVenvPath            *string       `yaml:"last_venv_path"`
	CachedPythonVersions    *[]string     `yaml:"cached_python_versions"`
	RememberCustomUser      *bool         `yaml:"remember_custom_user"`
	RememberOpenBrowser     *bool         `yaml:"remember_open_browser"`
	RememberCreateSuperuser *bool         `yaml:"remember_create_superuser"`
	TemplatesDir            *string       `yaml:"templates_dir"`
	CodeTemplatesDir        *string       `yaml:"code_templates_dir"`
	Packages                *[]rawPackage `yaml:"django_packages"`
	Assets                  *[]rawAsset   `yaml:"external_libraries"`
}

type rawPackage struct {
	Name          string    `yaml:"name"`
	Selected      *bool     `yaml:"selected"`
	Apps          *[]string `yaml:"apps"`
	Middleware    *[]string `yaml:"middleware"`
	OtherSettings *string   `yaml:"other_settings"`
}

type rawAsset struct {
	Name        string    `yaml:"name"`
	Selected    *bool     `yaml:"selected"`
	HeadLinks   *[]string `yaml:"head_links"`
	BodyScripts *[]string `yaml:"body_scripts"`
}

// Load reads the config at path. A missing or unparsable file yields the
// defaults; missing keys are filled from the defaults, and a descriptor
// missing a field takes it from the built-in descriptor of the same name.
// An unreadable file also yields the defaults, along with the read error.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Default(), nil
		}
		return Default(), fmt.Errorf("failed to read config: %w", err)
	}

	var raw rawConfig
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Default(), nil
	}
	return merge(raw), nil
}

func merge(raw rawConfig) *Config {
	cfg := Default()

	setString(&cfg.LastProjectPath, raw.LastProjectPath)
	setString(&cfg.LastVenvPath, raw.LastVenvPath)
	setString(&cfg.TemplatesDir, raw.TemplatesDir)
	setString(&cfg.CodeTemplatesDir, raw.CodeTemplatesDir)
	setBool(&cfg.RememberCustomUser, raw.RememberCustomUser)
	setBool(&cfg.RememberOpenBrowser, raw.RememberOpenBrowser)
	setBool(&cfg.RememberCreateSuperuser, raw.RememberCreateSuperuser)
	setStrings(&cfg.CachedPythonVersions, raw.CachedPythonVersions)

	if raw.Packages != nil {
		defaults := defaultPackages()
		pkgs := make([]PackageDescriptor, 0, len(*raw.Packages))
		for _, rp := range *raw.Packages {
			var p PackageDescriptor
			for _, d := range defaults {
				if d.Name == rp.Name {
					p = d
					break
				}
			}
			p.Name = rp.Name
			setBool(&p.Selected, rp.Selected)
			setStrings(&p.Apps, rp.Apps)
			setStrings(&p.Middleware, rp.Middleware)
			setString(&p.OtherSettings, rp.OtherSettings)
			pkgs = append(pkgs, p)
		}
		cfg.Packages = pkgs
	}

	if raw.Assets != nil {
		defaults := defaultAssets()
		assets := make([]AssetDescriptor, 0, len(*raw.Assets))
		for _, ra := range *raw.Assets {
			var a AssetDescriptor
			for _, d := range defaults {
				if d.Name == ra.Name {
					a = d
					break
				}
			}
			a.Name = ra.Name
			setBool(&a.Selected, ra.Selected)
			setStrings(&a.HeadLinks, ra.HeadLinks)
			setStrings(&a.BodyScripts, ra.BodyScripts)
			assets = append(assets, a)
		}
		cfg.Assets = assets
	}

	return cfg
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

func setBool(dst *bool, src *bool) {
	if src != nil {
		*dst = *src
	}
}

func setStrings(dst *[]string, src *[]string) {
	if src != nil {
		*dst = *src
	}
}

// Save writes the config as YAML, creating the parent directory.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// SelectedPackages returns the packages whose Selected flag is set.
func (c *Config) SelectedPackages() []PackageDescriptor {
	var out []PackageDescriptor
	for _, p := range c.Packages {
		if p.Selected {
			out = append(out, p)
		}
	}
	return out
}

// SelectedAssets returns the assets whose Selected flag is set.
func (c *Config) SelectedAssets() []AssetDescriptor {
	var out []AssetDescriptor
	for _, a := range c.Assets {
		if a.Selected {
			out = append(out, a)
		}
	}
	return out
}

// SetPackageSelected toggles a package by name. It reports whether the
// name was found.
func (c *Config) SetPackageSelected(name string, selected bool) bool {
	for i := range c.Packages {
		if c.Packages[i].Name == name {
			c.Packages[i].Selected = selected
			return true
		}
	}
	return false
}

// SetAssetSelected toggles an asset by name. It reports whether the name
// was found.
func (c *Config) SetAssetSelected(name string, selected bool) bool {
	for i := range c.Assets {
		if c.Assets[i].Name == name {
			c.Assets[i].Selected = selected
			return true
		}
	}
	return false
}
