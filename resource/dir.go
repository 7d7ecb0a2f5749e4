package resource

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// DefaultMaxFileSize bounds a single load from disk.
const DefaultMaxFileSize = 10 * 1024 * 1024

// Dir loads resources from a directory on the host filesystem. Resource
// paths are resolved relative to the root and may not escape it.
type Dir struct {
	root        string
	maxFileSize int64
}

// DirOption configures a Dir.
type DirOption func(*Dir)

// WithMaxFileSize sets the maximum size of a single resource.
func WithMaxFileSize(size int64) DirOption {
	return func(d *Dir) {
		if size > 0 {
			d.maxFileSize = size
		}
	}
}

// NewDir creates a Dir rooted at root.
func NewDir(root string, opts ...DirOption) (*Dir, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve root %s: %w", root, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root %s is not a directory", root)
	}

	d := &Dir{root: abs, maxFileSize: DefaultMaxFileSize}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Root returns the absolute root directory.
func (d *Dir) Root() string {
	return d.root
}

// resolve maps a resource path to a host path under the root.
func (d *Dir) resolve(p string) (string, error) {
	rel, ok := Clean(p)
	if !ok {
		return "", errors.New("permission denied: path escape attempt")
	}

	hostPath := filepath.Join(d.root, filepath.FromSlash(rel))
	if hostPath != d.root && !strings.HasPrefix(hostPath, d.root+string(filepath.Separator)) {
		return "", errors.New("permission denied: path escape attempt")
	}
	return hostPath, nil
}

func (d *Dir) SyncLoad(p string) ([]byte, error) {
	hostPath, err := d.resolve(p)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(hostPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("open %s: %w", p, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", p, err)
	}
	if info.IsDir() {
		return nil, ErrNotFound
	}
	if info.Size() > d.maxFileSize {
		return nil, fmt.Errorf("resource %s too large: %d bytes (max %d)", p, info.Size(), d.maxFileSize)
	}

	data, err := io.ReadAll(io.LimitReader(f, d.maxFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", p, err)
	}
	if int64(len(data)) > d.maxFileSize {
		return nil, fmt.Errorf("resource %s too large (max %d)", p, d.maxFileSize)
	}
	return data, nil
}
