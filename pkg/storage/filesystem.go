package storage

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/user"
	"path/filepath"
	"strconv"
	"syscall"
)

// LocalFS implements Filesystem on the local disk
type LocalFS struct{}

// NewLocalFS creates a local filesystem
func NewLocalFS() *LocalFS {
	return &LocalFS{}
}

// MkdirAll implements Filesystem.MkdirAll
func (l *LocalFS) MkdirAll(path string, perm fs.FileMode, owner Owner) error {
	if err := os.MkdirAll(path, perm); err != nil {
		return ioError("mkdir", path, err)
	}
	// MkdirAll is subject to the umask and leaves existing directories alone
	if err := os.Chmod(path, perm); err != nil {
		return ioError("chmod", path, err)
	}
	return l.chown(path, owner)
}

// WriteFile implements Filesystem.WriteFile
func (l *LocalFS) WriteFile(path string, data []byte, perm fs.FileMode, owner Owner) error {
	if err := os.WriteFile(path, data, perm); err != nil {
		return ioError("write", path, err)
	}
	if err := os.Chmod(path, perm); err != nil {
		return ioError("chmod", path, err)
	}
	return l.chown(path, owner)
}

// ReadFile implements Filesystem.ReadFile
func (l *LocalFS) ReadFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, ioError("read", path, err)
	}
	return data, nil
}

// Remove implements Filesystem.Remove
func (l *LocalFS) Remove(path string) error {
	return ioError("remove", path, os.Remove(path))
}

// RemoveAll implements Filesystem.RemoveAll
func (l *LocalFS) RemoveAll(path string) error {
	return ioError("remove", path, os.RemoveAll(path))
}

// Exists implements Filesystem.Exists
func (l *LocalFS) Exists(path string) (bool, error) {
	_, err := os.Lstat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, ioError("stat", path, err)
}

// Glob implements Filesystem.Glob
func (l *LocalFS) Glob(pattern string) ([]string, error) {
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, ioError("glob", pattern, err)
	}
	return matches, nil
}

// CopyTree implements Filesystem.CopyTree
func (l *LocalFS) CopyTree(src, dst string) error {
	if _, err := os.Lstat(dst); err == nil {
		return ioError("copy", dst, fs.ErrExist)
	}

	// directory times are applied last, after their contents are written
	type dirTime struct {
		path string
		info fs.FileInfo
	}
	var dirs []dirTime

	err := filepath.WalkDir(src, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return ioError("walk", path, walkErr)
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return ioError("copy", path, err)
		}
		target := filepath.Join(dst, rel)

		info, err := d.Info()
		if err != nil {
			return ioError("stat", path, err)
		}

		switch {
		case d.IsDir():
			if err := os.MkdirAll(target, info.Mode().Perm()); err != nil {
				return ioError("mkdir", target, err)
			}
			if err := os.Chmod(target, info.Mode().Perm()); err != nil {
				return ioError("chmod", target, err)
			}
			if err := copyOwner(target, info); err != nil {
				return err
			}
			dirs = append(dirs, dirTime{path: target, info: info})
			return nil
		case info.Mode()&fs.ModeSymlink != 0:
			link, err := os.Readlink(path)
			if err != nil {
				return ioError("readlink", path, err)
			}
			if err := os.Symlink(link, target); err != nil {
				return ioError("symlink", target, err)
			}
			return copyOwner(target, info)
		case info.Mode().IsRegular():
			return copyFile(path, target, info)
		default:
			return ioError("copy", path, fmt.Errorf("unsupported file type %s", info.Mode().Type()))
		}
	})
	if err != nil {
		return err
	}

	for i := len(dirs) - 1; i >= 0; i-- {
		mtime := dirs[i].info.ModTime()
		if err := os.Chtimes(dirs[i].path, mtime, mtime); err != nil {
			return ioError("chtimes", dirs[i].path, err)
		}
	}
	return nil
}

func copyFile(src, dst string, info fs.FileInfo) error {
	in, err := os.Open(src)
	if err != nil {
		return ioError("open", src, err)
	}
	defer in.Close() //nolint:errcheck

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, info.Mode().Perm())
	if err != nil {
		return ioError("create", dst, err)
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close() //nolint:errcheck
		return ioError("copy", dst, err)
	}
	if err := out.Close(); err != nil {
		return ioError("close", dst, err)
	}
	if err := os.Chmod(dst, info.Mode().Perm()); err != nil {
		return ioError("chmod", dst, err)
	}
	if err := copyOwner(dst, info); err != nil {
		return err
	}
	mtime := info.ModTime()
	return ioError("chtimes", dst, os.Chtimes(dst, mtime, mtime))
}

// copyOwner gives dst the uid and gid recorded in info. Only root can give
// files away, so other users keep what they created.
func copyOwner(dst string, info fs.FileInfo) error {
	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok || os.Geteuid() != 0 {
		return nil
	}
	return ioError("chown", dst, os.Lchown(dst, int(st.Uid), int(st.Gid)))
}

func (l *LocalFS) chown(path string, owner Owner) error {
	if owner.IsZero() {
		return nil
	}

	uid, gid, err := lookupOwner(owner)
	if err != nil {
		return ioError("chown", path, err)
	}
	return ioError("chown", path, os.Chown(path, uid, gid))
}

// lookupOwner resolves names to ids; -1 keeps the current value
func lookupOwner(owner Owner) (int, int, error) {
	uid, gid := -1, -1

	if owner.User != "" {
		u, err := user.Lookup(owner.User)
		if err != nil {
			return 0, 0, fmt.Errorf("lookup user %s: %w", owner.User, err)
		}
		if uid, err = strconv.Atoi(u.Uid); err != nil {
			return 0, 0, fmt.Errorf("parse uid %s: %w", u.Uid, err)
		}
	}

	if owner.Group != "" {
		g, err := user.LookupGroup(owner.Group)
		if err != nil {
			return 0, 0, fmt.Errorf("lookup group %s: %w", owner.Group, err)
		}
		if gid, err = strconv.Atoi(g.Gid); err != nil {
			return 0, 0, fmt.Errorf("parse gid %s: %w", g.Gid, err)
		}
	}

	return uid, gid, nil
}
