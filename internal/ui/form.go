package ui

import (
	"errors"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/lupon1/Django-Project-Assistant/internal/config"
	"github.com/lupon1/Django-Project-Assistant/internal/scaffold"
)

// ErrAborted is returned when the user cancels the wizard.
var ErrAborted = huh.ErrUserAborted

// WizardDefaults pre-fills the new-project wizard.
type WizardDefaults struct {
	Name            string
	ProjectParent   string
	VenvParent      string
	Versions        []string // display values, e.g. "3.12.4 (Installed)"
	Collections     []string
	Packages        []config.PackageDescriptor
	Assets          []config.AssetDescriptor
	CustomUser      bool
	CreateSuperuser bool
	OpenBrowser     bool
}

// WizardAnswers is what the user chose.
type WizardAnswers struct {
	Name            string
	ProjectParent   string
	VenvParent      string
	PythonVersion   string
	Collection      string
	Packages        []string
	Assets          []string
	CustomUser      bool
	CreateSuperuser bool
	OpenBrowser     bool
	Email           string
	Password        string
}

func required(what string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return errors.New(what + " is required")
		}
		return nil
	}
}

func options(values []string) []huh.Option[string] {
	opts := make([]huh.Option[string], len(values))
	for i, v := range values {
		opts[i] = huh.NewOption(v, v)
	}
	return opts
}

// defaultAnswers seeds the answers from the defaults so every field starts
// on the remembered value.
func defaultAnswers(d WizardDefaults) WizardAnswers {
	a := WizardAnswers{
		Name:            d.Name,
		ProjectParent:   d.ProjectParent,
		VenvParent:      d.VenvParent,
		CustomUser:      d.CustomUser,
		CreateSuperuser: d.CreateSuperuser && d.CustomUser,
		OpenBrowser:     d.OpenBrowser,
	}
	if len(d.Versions) > 0 {
		a.PythonVersion = d.Versions[0]
	}
	if len(d.Collections) > 0 {
		a.Collection = d.Collections[0]
	}
	for _, p := range d.Packages {
		if p.Selected {
			a.Packages = append(a.Packages, p.Name)
		}
	}
	for _, l := range d.Assets {
		if l.Selected {
			a.Assets = append(a.Assets, l.Name)
		}
	}
	return a
}

// RunWizard asks for everything a new project needs. The Python version in
// the answers is already stripped of its display annotation.
func RunWizard(d WizardDefaults) (WizardAnswers, error) {
	a := defaultAnswers(d)

	var versionField huh.Field
	if len(d.Versions) > 0 {
		versionField = huh.NewSelect[string]().
			Title("Python version").
			Description("Versions reported by uv").
			Options(options(d.Versions)...).
			Value(&a.PythonVersion)
	} else {
		versionField = huh.NewInput().
			Title("Python version").
			Description("uv listed no versions; type one, e.g. 3.12").
			Value(&a.PythonVersion).
			Validate(required("python version"))
	}

	pkgOpts := make([]huh.Option[string], len(d.Packages))
	for i, p := range d.Packages {
		pkgOpts[i] = huh.NewOption(p.Name, p.Name).Selected(p.Selected)
	}
	assetOpts := make([]huh.Option[string], len(d.Assets))
	for i, l := range d.Assets {
		assetOpts[i] = huh.NewOption(l.Name, l.Name).Selected(l.Selected)
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Project name").
				Description("Letters, numbers and underscores").
				Value(&a.Name).
				Validate(scaffold.ValidateName),
			huh.NewInput().
				Title("Project location").
				Description("The project is created in <location>/<name>").
				Value(&a.ProjectParent).
				Validate(required("project location")),
			huh.NewInput().
				Title("Virtual environment location").
				Description("The venv is created in <location>/<name>").
				Value(&a.VenvParent).
				Validate(required("venv location")),
		),
		huh.NewGroup(
			versionField,
			huh.NewSelect[string]().
				Title("Template collection").
				Options(options(d.Collections)...).
				Value(&a.Collection),
		),
		huh.NewGroup(
			huh.NewMultiSelect[string]().
				Title("Django packages").
				Options(pkgOpts...).
				Value(&a.Packages),
			huh.NewMultiSelect[string]().
				Title("External libraries").
				Options(assetOpts...).
				Value(&a.Assets),
		),
		huh.NewGroup(
			huh.NewConfirm().
				Title("Use a custom user model?").
				Description("Creates an accounts app with AUTH_USER_MODEL = 'accounts.User'").
				Value(&a.CustomUser),
			huh.NewConfirm().
				Title("Start the server and open the browser when done?").
				Value(&a.OpenBrowser),
		),
		huh.NewGroup(
			huh.NewConfirm().
				Title("Create a superuser?").
				Value(&a.CreateSuperuser),
		).WithHideFunc(func() bool { return !a.CustomUser }),
		huh.NewGroup(
			huh.NewInput().
				Title("Superuser email").
				Value(&a.Email).
				Validate(required("email")),
			huh.NewInput().
				Title("Superuser password").
				EchoMode(huh.EchoModePassword).
				Value(&a.Password).
				Validate(required("password")),
		).WithHideFunc(func() bool { return !a.CustomUser || !a.CreateSuperuser }),
	).WithTheme(huh.ThemeCharm())

	if err := form.Run(); err != nil {
		return WizardAnswers{}, err
	}

	if !a.CustomUser {
		a.CreateSuperuser = false
	}
	a.Name = scaffold.NormalizeName(a.Name)
	a.PythonVersion = scaffold.PythonVersionToken(a.PythonVersion)
	a.Collection = strings.ToLower(a.Collection)
	return a, nil
}
