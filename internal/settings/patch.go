// Package settings merges package descriptors into a generated Django
// settings.py by splicing its INSTALLED_APPS and MIDDLEWARE list literals.
package settings

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/lupon1/Django-Project-Assistant/internal/config"
	"github.com/lupon1/Django-Project-Assistant/internal/fsutil"
)

const (
	appsName       = "INSTALLED_APPS"
	middlewareName = "MIDDLEWARE"

	// CorsMarker identifies middleware that must run first in the chain.
	CorsMarker = "CorsMiddleware"

	// CoreApp and AccountsApp are the sub-applications the scaffold generates.
	CoreApp     = "core"
	AccountsApp = "accounts"

	customUserSetting = "AUTH_USER_MODEL = 'accounts.User'"
	extraHeader       = "# Extra settings from packages"
	templateDirs      = "'DIRS': [os.path.join(BASE_DIR, 'html_templates')]"
)

var (
	importOSPattern    = regexp.MustCompile(`(?m)^import os[ \t\r]*$`)
	firstImportPattern = regexp.MustCompile(`(?m)^(?:import|from)[ \t]`)
	emptyDirsPattern   = regexp.MustCompile(`'DIRS'\s*:\s*\[\s*\]`)
	customUserPattern  = regexp.MustCompile(`(?m)^AUTH_USER_MODEL[ \t]*=`)
)

// Patch rewrites the settings file at path with the given packages merged
// in. It reports whether the file content changed; an unchanged file is
// not written.
func Patch(path string, packages []config.PackageDescriptor, customUser bool) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		return false, fmt.Errorf("failed to stat settings: %w", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return false, fmt.Errorf("failed to read settings: %w", err)
	}

	src := string(data)
	patched := PatchSource(src, packages, customUser)
	if patched == src {
		return false, nil
	}
	if err := fsutil.WriteFileAtomic(path, []byte(patched), info.Mode().Perm()); err != nil {
		return false, fmt.Errorf("failed to write settings: %w", err)
	}
	return true, nil
}

// PatchSource returns src with every package in packages merged in. The
// caller passes only the selected descriptors. Applying the same packages
// again yields the same text.
func PatchSource(src string, packages []config.PackageDescriptor, customUser bool) string {
	type splice struct {
		start, end int
		text       string
	}
	var splices []splice

	if apps, ok := findList(src, appsName); ok {
		merged := mergeApps(apps.items, packages, customUser)
		splices = append(splices, splice{apps.start, apps.end, render(merged)})
	}
	// An empty MIDDLEWARE with nothing to add keeps its `[]`.
	if mw, ok := findList(src, middlewareName); ok {
		if merged := mergeMiddleware(mw.items, packages); len(merged) > 0 {
			splices = append(splices, splice{mw.start, mw.end, render(merged)})
		}
	}

	sort.Slice(splices, func(i, j int) bool { return splices[i].start > splices[j].start })
	for _, s := range splices {
		src = src[:s.start] + s.text + src[s.end:]
	}

	src = ensureImportOS(src)

	if strings.Contains(src, "TEMPLATES") {
		src = emptyDirsPattern.ReplaceAllLiteralString(src, templateDirs)
	}

	if customUser && !customUserPattern.MatchString(src) {
		src = withTrailingNewline(src) + "\n" + customUserSetting + "\n"
	}

	return appendExtraSettings(src, packages)
}

func contains(items []element, value string) bool {
	for _, e := range items {
		if e.value == value {
			return true
		}
	}
	return false
}

func mergeApps(items []element, packages []config.PackageDescriptor, customUser bool) []element {
	out := append([]element(nil), items...)
	add := func(app string) {
		if !contains(out, app) {
			out = append(out, element{value: app, literal: true})
		}
	}

	for _, p := range packages {
		for _, app := range p.Apps {
			add(app)
		}
	}
	add(CoreApp)
	if customUser {
		add(AccountsApp)
	}
	return out
}

func mergeMiddleware(items []element, packages []config.PackageDescriptor) []element {
	out := append([]element(nil), items...)
	for _, p := range packages {
		for _, m := range p.Middleware {
			if contains(out, m) {
				continue
			}
			e := element{value: m, literal: true}
			if strings.Contains(m, CorsMarker) {
				out = append([]element{e}, out...)
			} else {
				out = append(out, e)
			}
		}
	}

	// A CORS entry already present further down still has to lead.
	sort.SliceStable(out, func(i, j int) bool {
		return strings.Contains(out[i].value, CorsMarker) && !strings.Contains(out[j].value, CorsMarker)
	})
	return out
}

func ensureImportOS(src string) string {
	if importOSPattern.MatchString(src) {
		return src
	}
	line := "import os" + lineEnding(src)
	if loc := firstImportPattern.FindStringIndex(src); loc != nil {
		return src[:loc[0]] + line + src[loc[0]:]
	}
	return line + src
}

// lineEnding reports the newline sequence src uses, "\r\n" for files
// written on Windows.
func lineEnding(src string) string {
	if strings.Contains(src, "\r\n") {
		return "\r\n"
	}
	return "\n"
}

func appendExtraSettings(src string, packages []config.PackageDescriptor) string {
	var blocks []string
	for _, p := range packages {
		block := strings.TrimSpace(p.OtherSettings)
		if block == "" || strings.Contains(src, block) {
			continue
		}
		blocks = append(blocks, block)
	}
	if len(blocks) == 0 {
		return src
	}

	src = withTrailingNewline(src)
	if !strings.Contains(src, extraHeader) {
		src += "\n\n" + extraHeader + "\n"
	}
	return src + strings.Join(blocks, "\n") + "\n"
}

func withTrailingNewline(s string) string {
	if s != "" && !strings.HasSuffix(s, "\n") {
		return s + "\n"
	}
	return s
}
