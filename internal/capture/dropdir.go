package capture

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// dropDir confines reads to the directory a screenshot tool writes into.
// Symlinks are followed, but only when their target stays under the root.
type dropDir struct {
	absRoot string
}

func openDropDir(root string) (*dropDir, error) {
	if root == "" {
		return nil, errors.New("capture: empty drop directory")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	abs, err = filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("capture: %s is not a directory", root)
	}
	return &dropDir{absRoot: abs}, nil
}

// stat returns metadata for a regular file under the root.
func (d *dropDir) stat(path string) (os.FileInfo, string, error) {
	p, err := d.resolve(path)
	if err != nil {
		return nil, "", err
	}
	info, err := os.Stat(p)
	if err != nil {
		return nil, "", err
	}
	if !info.Mode().IsRegular() {
		return nil, "", fmt.Errorf("capture: %s is not a regular file", path)
	}
	return info, p, nil
}

func (d *dropDir) readFile(path string) ([]byte, error) {
	_, p, err := d.stat(path)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(p)
}

func (d *dropDir) resolve(path string) (string, error) {
	// Glob matches are relative to the working directory, not the root.
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", err
	}
	if !underRoot(resolved, d.absRoot) {
		return "", fmt.Errorf("capture: %s resolves outside %s", path, d.absRoot)
	}
	return resolved, nil
}

func underRoot(path, root string) bool {
	path = filepath.Clean(path)
	root = filepath.Clean(root)
	if runtime.GOOS == "windows" {
		path = strings.ToLower(path)
		root = strings.ToLower(root)
	}
	if path == root {
		return true
	}
	sep := string(os.PathSeparator)
	if !strings.HasSuffix(root, sep) {
		root += sep
	}
	return strings.HasPrefix(path, root)
}
