package filesystems

import (
	"io/fs"
	"time"
)

// FileSystem abstracts the filesystem operations the bootstrap stages need
type FileSystem interface {
	// ReadFile reads the named file and returns its contents
	ReadFile(name string) ([]byte, error)

	// Stat returns file information for the named file without following
	// anything beyond what the backend itself resolves
	Stat(name string) (FileInfo, error)

	// MkdirAll creates a directory and any missing parents
	MkdirAll(path string, perm fs.FileMode) error

	// Chmod changes the permission bits of the named file
	Chmod(name string, mode fs.FileMode) error

	// WriteFileAtomic replaces name with data so that readers observe either
	// the previous content or the new content, never a partial write
	WriteFileAtomic(name string, data []byte, perm fs.FileMode) error

	// Join joins path elements into a single path
	Join(elem ...string) string

	// Base returns the last element of path
	Base(path string) string

	// Dir returns all but the last element of path
	Dir(path string) string
}

// FileInfo provides information about a file
type FileInfo interface {
	Name() string
	Size() int64
	Mode() fs.FileMode
	ModTime() time.Time
	IsDir() bool
	Sys() interface{}
}

// IsSocket reports whether info describes a unix-domain socket special file
func IsSocket(info FileInfo) bool {
	return info != nil && info.Mode()&fs.ModeSocket != 0
}
