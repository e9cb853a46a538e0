package filesystems

import (
	"fmt"
	"io/fs"
	"path"
	"sync"
	"time"
)

// MemoryFS implements FileSystem in memory. It tracks permission bits and
// socket entries so callers can exercise runtime and secret logic without
// touching the host.
type MemoryFS struct {
	mu    sync.Mutex
	files map[string]*memoryFile
	dirs  map[string]fs.FileMode

	// Writes counts successful WriteFileAtomic calls
	Writes int
	// WriteErr, when set, is returned by every mutating operation
	WriteErr error
}

type memoryFile struct {
	content []byte
	mode    fs.FileMode
}

// NewMemoryFS creates a new MemoryFS instance
func NewMemoryFS() *MemoryFS {
	return &MemoryFS{
		files: make(map[string]*memoryFile),
		dirs:  make(map[string]fs.FileMode),
	}
}

// AddFile adds a regular file with mode 0644
func (mfs *MemoryFS) AddFile(name string, content []byte) {
	mfs.mu.Lock()
	defer mfs.mu.Unlock()
	mfs.files[path.Clean(name)] = &memoryFile{content: content, mode: 0o644}
	mfs.addParents(name)
}

// AddSocket adds a unix-domain socket special file
func (mfs *MemoryFS) AddSocket(name string) {
	mfs.mu.Lock()
	defer mfs.mu.Unlock()
	mfs.files[path.Clean(name)] = &memoryFile{mode: fs.ModeSocket | 0o660}
	mfs.addParents(name)
}

// AddDir adds a directory with mode 0755
func (mfs *MemoryFS) AddDir(name string) {
	mfs.mu.Lock()
	defer mfs.mu.Unlock()
	mfs.dirs[path.Clean(name)] = fs.ModeDir | 0o755
	mfs.addParents(name)
}

func (mfs *MemoryFS) addParents(name string) {
	dir := path.Dir(path.Clean(name))
	for dir != "." && dir != "/" {
		if _, ok := mfs.dirs[dir]; !ok {
			mfs.dirs[dir] = fs.ModeDir | 0o755
		}
		dir = path.Dir(dir)
	}
}

func (mfs *MemoryFS) ReadFile(name string) ([]byte, error) {
	mfs.mu.Lock()
	defer mfs.mu.Unlock()
	f, ok := mfs.files[path.Clean(name)]
	if !ok || f.mode.Type() != 0 {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
	}
	return append([]byte(nil), f.content...), nil
}

func (mfs *MemoryFS) Stat(name string) (FileInfo, error) {
	mfs.mu.Lock()
	defer mfs.mu.Unlock()
	clean := path.Clean(name)
	if f, ok := mfs.files[clean]; ok {
		return &memoryFileInfo{
			name:    path.Base(clean),
			size:    int64(len(f.content)),
			mode:    f.mode,
			modTime: time.Now(),
		}, nil
	}
	if mode, ok := mfs.dirs[clean]; ok || clean == "/" || clean == "." {
		if mode == 0 {
			mode = fs.ModeDir | 0o755
		}
		return &memoryFileInfo{
			name:    path.Base(clean),
			mode:    mode,
			modTime: time.Now(),
			isDir:   true,
		}, nil
	}
	return nil, &fs.PathError{Op: "stat", Path: name, Err: fs.ErrNotExist}
}

func (mfs *MemoryFS) MkdirAll(p string, perm fs.FileMode) error {
	mfs.mu.Lock()
	defer mfs.mu.Unlock()
	if mfs.WriteErr != nil {
		return &fs.PathError{Op: "mkdir", Path: p, Err: mfs.WriteErr}
	}
	clean := path.Clean(p)
	for dir := clean; dir != "." && dir != "/"; dir = path.Dir(dir) {
		if _, ok := mfs.files[dir]; ok {
			return &fs.PathError{Op: "mkdir", Path: dir, Err: fmt.Errorf("not a directory")}
		}
	}
	if _, ok := mfs.dirs[clean]; !ok {
		mfs.dirs[clean] = fs.ModeDir | perm.Perm()
	}
	mfs.addParents(clean)
	return nil
}

func (mfs *MemoryFS) Chmod(name string, mode fs.FileMode) error {
	mfs.mu.Lock()
	defer mfs.mu.Unlock()
	if mfs.WriteErr != nil {
		return &fs.PathError{Op: "chmod", Path: name, Err: mfs.WriteErr}
	}
	clean := path.Clean(name)
	if f, ok := mfs.files[clean]; ok {
		f.mode = f.mode.Type() | mode.Perm()
		return nil
	}
	if _, ok := mfs.dirs[clean]; ok {
		mfs.dirs[clean] = fs.ModeDir | mode.Perm()
		return nil
	}
	return &fs.PathError{Op: "chmod", Path: name, Err: fs.ErrNotExist}
}

func (mfs *MemoryFS) WriteFileAtomic(name string, data []byte, perm fs.FileMode) error {
	mfs.mu.Lock()
	defer mfs.mu.Unlock()
	if mfs.WriteErr != nil {
		return &fs.PathError{Op: "write", Path: name, Err: mfs.WriteErr}
	}
	clean := path.Clean(name)
	if dir := path.Dir(clean); dir != "." && dir != "/" {
		if _, ok := mfs.dirs[dir]; !ok {
			return &fs.PathError{Op: "write", Path: name, Err: fs.ErrNotExist}
		}
	}
	mfs.files[clean] = &memoryFile{content: append([]byte(nil), data...), mode: perm.Perm()}
	mfs.Writes++
	return nil
}

func (mfs *MemoryFS) Join(elem ...string) string {
	return path.Join(elem...)
}

func (mfs *MemoryFS) Base(p string) string {
	return path.Base(p)
}

func (mfs *MemoryFS) Dir(p string) string {
	return path.Dir(p)
}

// memoryFileInfo implements FileInfo for memory filesystem
type memoryFileInfo struct {
	name    string
	size    int64
	mode    fs.FileMode
	modTime time.Time
	isDir   bool
}

func (fi *memoryFileInfo) Name() string {
	return fi.name
}

func (fi *memoryFileInfo) Size() int64 {
	return fi.size
}

func (fi *memoryFileInfo) Mode() fs.FileMode {
	return fi.mode
}

func (fi *memoryFileInfo) ModTime() time.Time {
	return fi.modTime
}

func (fi *memoryFileInfo) IsDir() bool {
	return fi.isDir
}

func (fi *memoryFileInfo) Sys() interface{} {
	return nil
}
