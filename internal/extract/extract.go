// Package extract unpacks downloaded zip archives into a target directory.
package extract

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

var (
	// ErrUnsafePath indicates an archive member path would escape the target directory
	ErrUnsafePath = errors.New("unsafe_archive_path")
)

// Unzip extracts all members of the zip archive at src into destDir.
// Member paths are sanitized: absolute paths and paths escaping destDir
// are rejected rather than written. Returns the number of members written.
func Unzip(src, destDir string) (int, error) {
	r, err := zip.OpenReader(src)
	if err != nil {
		return 0, fmt.Errorf("open archive: %w", err)
	}
	defer r.Close()

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return 0, fmt.Errorf("create dest dir: %w", err)
	}

	written := 0
	for _, f := range r.File {
		target, err := sanitizePath(destDir, f.Name)
		if err != nil {
			return written, fmt.Errorf("member %q: %w", f.Name, err)
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return written, fmt.Errorf("create dir %q: %w", f.Name, err)
			}
			continue
		}

		if err := writeMember(f, target); err != nil {
			return written, fmt.Errorf("extract %q: %w", f.Name, err)
		}
		written++
	}
	return written, nil
}

// sanitizePath joins name under destDir and verifies the result stays inside it.
func sanitizePath(destDir, name string) (string, error) {
	if name == "" {
		return "", ErrUnsafePath
	}
	if filepath.IsAbs(name) || strings.HasPrefix(name, "/") || strings.HasPrefix(name, `\`) {
		return "", ErrUnsafePath
	}
	target := filepath.Join(destDir, filepath.FromSlash(name))
	rel, err := filepath.Rel(destDir, target)
	if err != nil {
		return "", ErrUnsafePath
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", ErrUnsafePath
	}
	return target, nil
}

func writeMember(f *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}

	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	mode := f.Mode().Perm()
	if mode == 0 {
		mode = 0o644
	}
	out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, rc); err != nil {
		_ = out.Close()
		_ = os.Remove(target)
		return err
	}
	return out.Close()
}
