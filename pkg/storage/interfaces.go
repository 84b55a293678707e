package storage

import (
	"fmt"
	"io/fs"
)

// Filesystem is the set of disk operations the installer and the backup
// manager need. Paths are absolute or relative to the process directory.
type Filesystem interface {
	// MkdirAll creates path and its parents, then applies perm and owner to path
	MkdirAll(path string, perm fs.FileMode, owner Owner) error
	// WriteFile replaces path with data, then applies perm and owner
	WriteFile(path string, data []byte, perm fs.FileMode, owner Owner) error
	ReadFile(path string) ([]byte, error)
	// Remove deletes one file or empty directory
	Remove(path string) error
	// RemoveAll deletes a tree; a missing path is not an error
	RemoveAll(path string) error
	// CopyTree copies src to dst, which must not exist, keeping modes and
	// modification times
	CopyTree(src, dst string) error
	Exists(path string) (bool, error)
	Glob(pattern string) ([]string, error)
}

// Owner names the user and group that own created files. Empty fields leave
// ownership unchanged.
type Owner struct {
	User  string `yaml:"user"`
	Group string `yaml:"group"`
}

// IsZero reports whether no ownership change is requested
func (o Owner) IsZero() bool {
	return o.User == "" && o.Group == ""
}

func (o Owner) String() string {
	return o.User + ":" + o.Group
}

// IOError is a failed filesystem operation
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

func ioError(op, path string, err error) error {
	if err == nil {
		return nil
	}
	return &IOError{Op: op, Path: path, Err: err}
}
