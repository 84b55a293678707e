package storage

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalFS_MkdirAllAndWriteFile(t *testing.T) {
	fsys := NewLocalFS()
	dir := filepath.Join(t.TempDir(), "plugins", "nested")

	require.NoError(t, fsys.MkdirAll(dir, 0o755, Owner{}))
	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.Equal(t, fs.FileMode(0o755), info.Mode().Perm())

	path := filepath.Join(dir, "git.jpi")
	require.NoError(t, fsys.WriteFile(path, []byte("artifact"), 0o744, Owner{}))
	info, err = os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, fs.FileMode(0o744), info.Mode().Perm())

	data, err := fsys.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "artifact", string(data))

	// overwrite in place
	require.NoError(t, fsys.WriteFile(path, []byte("v2"), 0o744, Owner{}))
	data, err = fsys.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "v2", string(data))
}

func TestLocalFS_ExistsRemoveGlob(t *testing.T) {
	fsys := NewLocalFS()
	dir := t.TempDir()

	for _, name := range []string{"a.jpi", "b.jpi", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(name), 0o644))
	}

	matches, err := fsys.Glob(filepath.Join(dir, "*.jpi"))
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.jpi"), filepath.Join(dir, "b.jpi")}, matches)

	exists, err := fsys.Exists(filepath.Join(dir, "a.jpi"))
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, fsys.Remove(filepath.Join(dir, "a.jpi")))
	exists, err = fsys.Exists(filepath.Join(dir, "a.jpi"))
	require.NoError(t, err)
	assert.False(t, exists)

	err = fsys.Remove(filepath.Join(dir, "a.jpi"))
	var ioErr *IOError
	require.ErrorAs(t, err, &ioErr)
	assert.Equal(t, "remove", ioErr.Op)
	assert.True(t, errors.Is(err, fs.ErrNotExist))

	require.NoError(t, fsys.RemoveAll(filepath.Join(dir, "missing")))
}

func TestLocalFS_CopyTree(t *testing.T) {
	fsys := NewLocalFS()
	root := t.TempDir()
	src := filepath.Join(root, "plugins")
	dst := filepath.Join(root, "plugins.bak")

	require.NoError(t, os.MkdirAll(filepath.Join(src, "git"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "git.jpi"), []byte("git"), 0o744))
	require.NoError(t, os.WriteFile(filepath.Join(src, "git", "MANIFEST.MF"), []byte("manifest"), 0o600))

	old := time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, os.Chtimes(filepath.Join(src, "git.jpi"), old, old))

	require.NoError(t, fsys.CopyTree(src, dst))

	data, err := os.ReadFile(filepath.Join(dst, "git", "MANIFEST.MF"))
	require.NoError(t, err)
	assert.Equal(t, "manifest", string(data))

	info, err := os.Stat(filepath.Join(dst, "git.jpi"))
	require.NoError(t, err)
	assert.Equal(t, fs.FileMode(0o744), info.Mode().Perm())
	assert.True(t, info.ModTime().Equal(old))

	info, err = os.Stat(filepath.Join(dst, "git", "MANIFEST.MF"))
	require.NoError(t, err)
	assert.Equal(t, fs.FileMode(0o600), info.Mode().Perm())

	// destination must not exist
	err = fsys.CopyTree(src, dst)
	require.Error(t, err)
	assert.True(t, errors.Is(err, fs.ErrExist))
}

func TestLocalFS_CopyTreeKeepsOwnership(t *testing.T) {
	if os.Geteuid() != 0 {
		t.Skip("changing ownership requires root")
	}
	fsys := NewLocalFS()
	root := t.TempDir()
	src := filepath.Join(root, "plugins")
	dst := filepath.Join(root, "plugins.bak")

	require.NoError(t, os.MkdirAll(src, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "ant.jpi"), []byte("ant"), 0o744))
	require.NoError(t, os.Symlink("ant.jpi", filepath.Join(src, "ant.link")))
	for _, name := range []string{"", "ant.jpi", "ant.link"} {
		require.NoError(t, os.Lchown(filepath.Join(src, name), 65534, 65534))
	}

	require.NoError(t, fsys.CopyTree(src, dst))

	for _, name := range []string{"", "ant.jpi", "ant.link"} {
		info, err := os.Lstat(filepath.Join(dst, name))
		require.NoError(t, err)
		st := info.Sys().(*syscall.Stat_t)
		assert.Equal(t, uint32(65534), st.Uid, name)
		assert.Equal(t, uint32(65534), st.Gid, name)
	}
}

func TestLocalFS_ChownUnknownUser(t *testing.T) {
	fsys := NewLocalFS()
	path := filepath.Join(t.TempDir(), "git.jpi")

	err := fsys.WriteFile(path, []byte("x"), 0o644, Owner{User: "no-such-user-pluginsync"})
	var ioErr *IOError
	require.ErrorAs(t, err, &ioErr)
	assert.Equal(t, "chown", ioErr.Op)
}

func TestOwner(t *testing.T) {
	assert.True(t, Owner{}.IsZero())
	assert.False(t, Owner{User: "jenkins"}.IsZero())
	assert.Equal(t, "jenkins:jenkins", Owner{User: "jenkins", Group: "jenkins"}.String())
}
