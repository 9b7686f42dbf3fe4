package fsutil

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDirHasEntries(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name  string
		setup func() string
		want  bool
	}{
		{"missing", func() string { return filepath.Join(dir, "nope") }, false},
		{"empty", func() string {
			p := filepath.Join(dir, "empty")
			os.Mkdir(p, 0755)
			return p
		}, false},
		{"non-empty", func() string {
			p := filepath.Join(dir, "full")
			os.Mkdir(p, 0755)
			os.WriteFile(filepath.Join(p, "f"), []byte("x"), 0644)
			return p
		}, true},
		{"regular file", func() string {
			p := filepath.Join(dir, "file")
			os.WriteFile(p, []byte("x"), 0644)
			return p
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DirHasEntries(tt.setup())
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("DirHasEntries() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestWriteFileAtomic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.py")
	if err := os.WriteFile(path, []byte("old"), 0644); err != nil {
		t.Fatal(err)
	}

	if err := WriteFileAtomic(path, []byte("new"), 0644); err != nil {
		t.Fatalf("WriteFileAtomic: %v", err)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "new" {
		t.Errorf("content = %q, want new", data)
	}

	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Errorf("expected temp file cleaned up, found %d entries", len(entries))
	}
}

func TestCopyDir_Merges(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()

	os.MkdirAll(filepath.Join(src, "partials"), 0755)
	os.WriteFile(filepath.Join(src, "base.html"), []byte("base"), 0644)
	os.WriteFile(filepath.Join(src, "partials", "nav.html"), []byte("nav"), 0644)
	os.WriteFile(filepath.Join(dst, "keep.html"), []byte("keep"), 0644)

	if err := CopyDir(src, dst); err != nil {
		t.Fatalf("CopyDir: %v", err)
	}

	for name, want := range map[string]string{
		"base.html":                         "base",
		filepath.Join("partials", "nav.html"): "nav",
		"keep.html":                         "keep",
	} {
		data, err := os.ReadFile(filepath.Join(dst, name))
		if err != nil {
			t.Errorf("missing %s: %v", name, err)
			continue
		}
		if string(data) != want {
			t.Errorf("%s = %q, want %q", name, data, want)
		}
	}
}

func TestCopyDir_FollowsSymlinks(t *testing.T) {
	shared := t.TempDir()
	os.MkdirAll(filepath.Join(shared, "icons"), 0755)
	os.WriteFile(filepath.Join(shared, "site.css"), []byte("css"), 0644)
	os.WriteFile(filepath.Join(shared, "icons", "logo.svg"), []byte("svg"), 0644)

	src := t.TempDir()
	if err := os.Symlink(filepath.Join(shared, "site.css"), filepath.Join(src, "site.css")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}
	if err := os.Symlink(filepath.Join(shared, "icons"), filepath.Join(src, "icons")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	dst := t.TempDir()
	if err := CopyDir(src, dst); err != nil {
		t.Fatalf("CopyDir: %v", err)
	}

	for name, want := range map[string]string{
		"site.css":                         "css",
		filepath.Join("icons", "logo.svg"): "svg",
	} {
		target := filepath.Join(dst, name)
		info, err := os.Lstat(target)
		if err != nil {
			t.Errorf("missing %s: %v", name, err)
			continue
		}
		if info.Mode()&os.ModeSymlink != 0 {
			t.Errorf("%s copied as a link", name)
		}
		if data, _ := os.ReadFile(target); string(data) != want {
			t.Errorf("%s = %q, want %q", name, data, want)
		}
	}
}
