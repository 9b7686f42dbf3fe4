package scaffold

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/lupon1/Django-Project-Assistant/internal/config"
)

// Placeholders in the collection's base.html.
const (
	HeadLinksMarker   = "<!-- DJANGO_ASSISTANT_HEAD_LINKS -->"
	BodyScriptsMarker = "<!-- DJANGO_ASSISTANT_BODY_SCRIPTS -->"
)

// BaseTemplatePath is where the copied collection keeps base.html.
func BaseTemplatePath(projectDir string) string {
	return filepath.Join(projectDir, "core", "templates", "core", "base.html")
}

// InjectAssets replaces each marker once with the links of every asset.
// Everything else in content is returned unchanged.
func InjectAssets(content string, assets []config.AssetDescriptor) string {
	var head, body []string
	for _, a := range assets {
		for _, url := range a.HeadLinks {
			head = append(head, fmt.Sprintf(`  <link rel="stylesheet" href="%s">`, url))
		}
		for _, url := range a.BodyScripts {
			body = append(body, fmt.Sprintf(`  <script src="%s"></script>`, url))
		}
	}

	content = strings.Replace(content, HeadLinksMarker, strings.Join(head, "\n"), 1)
	content = strings.Replace(content, BodyScriptsMarker, strings.Join(body, "\n"), 1)
	return content
}

// InjectAssetsFile applies InjectAssets to the project's base.html. A
// missing base template is not an error; injected reports whether the
// file was rewritten.
func InjectAssetsFile(projectDir string, assets []config.AssetDescriptor) (injected bool, err error) {
	path := BaseTemplatePath(projectDir)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read base template: %w", err)
	}

	out := InjectAssets(string(data), assets)
	if out == string(data) {
		return false, nil
	}
	if err := os.WriteFile(path, []byte(out), 0644); err != nil {
		return false, fmt.Errorf("failed to write base template: %w", err)
	}
	return true, nil
}
