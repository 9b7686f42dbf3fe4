package scaffold

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/lupon1/Django-Project-Assistant/internal/config"
)

var namePattern = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

// Credentials are the superuser login created after migrations.
type Credentials struct {
	Email    string
	Password string
}

// Request is everything the pipeline needs to create one project.
type Request struct {
	Name               string
	ProjectParent      string
	VenvParent         string
	PythonVersion      string
	Packages           []config.PackageDescriptor
	TemplateCollection string
	Assets             []config.AssetDescriptor
	CustomUserModel    bool
	CreateSuperuser    bool
	OpenBrowser        bool
	Credentials        *Credentials
	TemplatesDir       string
	CodeTemplatesDir   string
	Port               int
}

// ProjectDir is where manage.py ends up.
func (r Request) ProjectDir() string {
	return filepath.Join(r.ProjectParent, r.Name)
}

// VenvDir is the virtual environment created for the project.
func (r Request) VenvDir() string {
	return filepath.Join(r.VenvParent, r.Name)
}

// PackageNames returns the pip names of the selected packages.
func (r Request) PackageNames() []string {
	names := make([]string, 0, len(r.Packages))
	for _, p := range r.Packages {
		names = append(names, p.Name)
	}
	return names
}

// NormalizeName lower-cases a project name.
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// PythonVersionToken strips annotations such as "(Installed)" from a
// version picked from the list.
func PythonVersionToken(display string) string {
	fields := strings.Fields(display)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// ValidateName checks a project name before normalization.
func ValidateName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%w: project name is required", ErrValidation)
	}
	if !namePattern.MatchString(name) {
		return fmt.Errorf("%w: project name %q may only contain letters, numbers and underscores", ErrValidation, name)
	}
	return nil
}

// Validate checks the fields that do not touch the file system.
func (r Request) Validate() error {
	if err := ValidateName(r.Name); err != nil {
		return err
	}
	if r.ProjectParent == "" {
		return fmt.Errorf("%w: project location is required", ErrValidation)
	}
	if r.VenvParent == "" {
		return fmt.Errorf("%w: venv location is required", ErrValidation)
	}
	if r.PythonVersion == "" {
		return fmt.Errorf("%w: python version is required", ErrValidation)
	}
	if r.TemplateCollection == "" {
		return fmt.Errorf("%w: template collection is required", ErrValidation)
	}
	if r.CreateSuperuser {
		if !r.CustomUserModel {
			return fmt.Errorf("%w: creating a superuser requires the custom user model", ErrValidation)
		}
		if r.Credentials == nil || r.Credentials.Email == "" || r.Credentials.Password == "" {
			return fmt.Errorf("%w: superuser email and password are required", ErrValidation)
		}
	}
	return nil
}

// ValidateCollection checks that the chosen template collection exists.
func (r Request) ValidateCollection() error {
	dir := filepath.Join(r.TemplatesDir, r.TemplateCollection)
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("%w: %q in %s", ErrCollectionNotFound, r.TemplateCollection, r.TemplatesDir)
	}
	return nil
}

// ListCollections returns the sorted template collection names in dir.
// A missing dir yields an empty list.
func ListCollections(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read templates dir: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}
