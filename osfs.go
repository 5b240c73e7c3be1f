package sealzip

import (
	"os"
	"path/filepath"
	"time"

	"github.com/absfs/absfs"
)

// OSFS is an absfs.FileSystem over the host filesystem. Names are resolved
// against Root; an empty Root means the process working directory.
type OSFS struct {
	Root string
	cwd  string
}

var _ absfs.FileSystem = (*OSFS)(nil)

// NewOSFS returns a filesystem rooted at root
func NewOSFS(root string) *OSFS {
	return &OSFS{Root: root}
}

func (fs *OSFS) resolve(name string) string {
	if fs.Root == "" {
		return filepath.FromSlash(name)
	}
	return filepath.Join(fs.Root, filepath.FromSlash(name))
}

func (fs *OSFS) OpenFile(name string, flag int, perm os.FileMode) (absfs.File, error) {
	f, err := os.OpenFile(fs.resolve(name), flag, perm)
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (fs *OSFS) Mkdir(name string, perm os.FileMode) error {
	return os.Mkdir(fs.resolve(name), perm)
}

func (fs *OSFS) MkdirAll(name string, perm os.FileMode) error {
	return os.MkdirAll(fs.resolve(name), perm)
}

func (fs *OSFS) Remove(name string) error {
	return os.Remove(fs.resolve(name))
}

func (fs *OSFS) RemoveAll(path string) error {
	return os.RemoveAll(fs.resolve(path))
}

func (fs *OSFS) Rename(oldpath, newpath string) error {
	return os.Rename(fs.resolve(oldpath), fs.resolve(newpath))
}

func (fs *OSFS) Stat(name string) (os.FileInfo, error) {
	return os.Stat(fs.resolve(name))
}

func (fs *OSFS) Chmod(name string, mode os.FileMode) error {
	return os.Chmod(fs.resolve(name), mode)
}

func (fs *OSFS) Chtimes(name string, atime, mtime time.Time) error {
	return os.Chtimes(fs.resolve(name), atime, mtime)
}

func (fs *OSFS) Chown(name string, uid, gid int) error {
	return os.Chown(fs.resolve(name), uid, gid)
}

func (fs *OSFS) Separator() uint8 {
	return os.PathSeparator
}

func (fs *OSFS) ListSeparator() uint8 {
	return os.PathListSeparator
}

// Chdir only records dir; names are still resolved against Root
func (fs *OSFS) Chdir(dir string) error {
	fs.cwd = dir
	return nil
}

func (fs *OSFS) Getwd() (string, error) {
	if fs.cwd == "" {
		return "/", nil
	}
	return fs.cwd, nil
}

func (fs *OSFS) TempDir() string {
	return os.TempDir()
}

func (fs *OSFS) Open(name string) (absfs.File, error) {
	return fs.OpenFile(name, os.O_RDONLY, 0)
}

func (fs *OSFS) Create(name string) (absfs.File, error) {
	return fs.OpenFile(name, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o666)
}

func (fs *OSFS) Truncate(name string, size int64) error {
	return os.Truncate(fs.resolve(name), size)
}
