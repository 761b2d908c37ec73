package extract

import (
	"archive/zip"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeZip(t *testing.T, path string, members map[string]string) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create zip: %v", err)
	}
	zw := zip.NewWriter(f)
	for name, content := range members {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("create member %q: %v", name, err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatalf("write member %q: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip writer: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close zip file: %v", err)
	}
}

func TestUnzip(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "vectors.zip")
	writeZip(t, src, map[string]string{
		"vectors.txt":        "the 0.1 0.2 0.3\n",
		"nested/readme.txt":  "see vectors.txt\n",
		"empty-dir/":         "",
		"nested/deep/more.t": "x",
	})

	dest := filepath.Join(dir, "out")
	n, err := Unzip(src, dest)
	if err != nil {
		t.Fatalf("Unzip() error = %v", err)
	}
	if n != 3 {
		t.Errorf("Unzip() wrote %d members, want 3", n)
	}

	data, err := os.ReadFile(filepath.Join(dest, "vectors.txt"))
	if err != nil {
		t.Fatalf("read extracted file: %v", err)
	}
	if string(data) != "the 0.1 0.2 0.3\n" {
		t.Errorf("extracted content = %q", string(data))
	}
	if _, err := os.Stat(filepath.Join(dest, "nested", "deep", "more.t")); err != nil {
		t.Errorf("expected nested member extracted: %v", err)
	}
	if fi, err := os.Stat(filepath.Join(dest, "empty-dir")); err != nil || !fi.IsDir() {
		t.Errorf("expected directory member created, err=%v", err)
	}
}

func TestUnzip_RejectsTraversal(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "evil.zip")
	writeZip(t, src, map[string]string{
		"../escape.txt": "nope",
	})

	dest := filepath.Join(dir, "out")
	if _, err := Unzip(src, dest); !errors.Is(err, ErrUnsafePath) {
		t.Fatalf("Unzip() error = %v, want ErrUnsafePath", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "escape.txt")); !os.IsNotExist(err) {
		t.Errorf("traversal member must not be written outside dest")
	}
}

func TestUnzip_RejectsAbsolutePaths(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "abs.zip")
	writeZip(t, src, map[string]string{
		"/etc/escape.txt": "nope",
	})

	if _, err := Unzip(src, filepath.Join(dir, "out")); !errors.Is(err, ErrUnsafePath) {
		t.Fatalf("Unzip() error = %v, want ErrUnsafePath", err)
	}
}

func TestUnzip_MissingArchive(t *testing.T) {
	dir := t.TempDir()
	if _, err := Unzip(filepath.Join(dir, "missing.zip"), dir); err == nil {
		t.Fatalf("Unzip() expected error for missing archive")
	}
}

func TestSanitizePath(t *testing.T) {
	dest := t.TempDir()
	tests := []struct {
		name    string
		member  string
		wantErr bool
	}{
		{"plain file", "vectors.txt", false},
		{"nested", "a/b/c.txt", false},
		{"dot segment resolved inside", "a/./b.txt", false},
		{"empty", "", true},
		{"parent escape", "../x", true},
		{"deep escape", "a/../../x", true},
		{"absolute", "/etc/passwd", true},
		{"windows absolute-ish", `\evil`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := sanitizePath(dest, tt.member)
			if tt.wantErr {
				if err == nil {
					t.Errorf("sanitizePath(%q) expected error, got %q", tt.member, got)
				}
				return
			}
			if err != nil {
				t.Errorf("sanitizePath(%q) unexpected error: %v", tt.member, err)
				return
			}
			rel, err := filepath.Rel(dest, got)
			if err != nil || rel == ".." || filepath.IsAbs(rel) {
				t.Errorf("sanitizePath(%q) = %q, escapes dest", tt.member, got)
			}
		})
	}
}
