package secrets

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"slices"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/railwayapp/ciboot/internal/filesystems"
)

const (
	// EntropyBytes is the amount of random material per secret (256 bits)
	EntropyBytes = 32

	DirMode  fs.FileMode = 0o700
	FileMode fs.FileMode = 0o600
)

// DefaultNames are the credentials the managed service reads at startup
var DefaultNames = []string{"jenkins_admin_password", "jenkins_devops_password"}

// ProvisioningError reports a secret that could not be generated or stored
type ProvisioningError struct {
	Name string
	Path string
	Err  error
}

func (e *ProvisioningError) Error() string {
	switch {
	case e.Name != "" && e.Path != "":
		return fmt.Sprintf("failed to provision secret %q at %s: %v", e.Name, e.Path, e.Err)
	case e.Path != "":
		return fmt.Sprintf("failed to provision secrets in %s: %v", e.Path, e.Err)
	default:
		return fmt.Sprintf("failed to provision secret %q: %v", e.Name, e.Err)
	}
}

func (e *ProvisioningError) Unwrap() error {
	return e.Err
}

// Provisioner writes one owner-only file per secret inside an owner-only
// directory. Every Provision call regenerates and overwrites its secrets.
type Provisioner struct {
	filesystem filesystems.FileSystem
	dir        string
	random     io.Reader

	Logger *log.Logger
}

func NewProvisioner(filesystem filesystems.FileSystem, dir string) *Provisioner {
	return &Provisioner{
		filesystem: filesystem,
		dir:        dir,
		random:     rand.Reader,
		Logger:     log.New(io.Discard),
	}
}

// WithRandom swaps the randomness source
func (p *Provisioner) WithRandom(r io.Reader) *Provisioner {
	p.random = r
	return p
}

func (p *Provisioner) Dir() string {
	return p.dir
}

// Path returns where the named secret is stored
func (p *Provisioner) Path(name string) string {
	return p.filesystem.Join(p.dir, name)
}

// Existing returns the subset of names that already have a secret file
func (p *Provisioner) Existing(names []string) []string {
	var existing []string
	for _, name := range NormalizeNames(names) {
		if _, err := p.filesystem.Stat(p.Path(name)); err == nil {
			existing = append(existing, name)
		}
	}
	return existing
}

// Provision generates fresh material for every name and returns the storage
// path of each. Existing secrets are replaced; callers that want to keep them
// must filter names beforehand.
func (p *Provisioner) Provision(ctx context.Context, names []string) (map[string]string, error) {
	names = NormalizeNames(names)
	for _, name := range names {
		if err := validateName(name); err != nil {
			return nil, &ProvisioningError{Name: name, Err: err}
		}
	}

	if err := p.filesystem.MkdirAll(p.dir, DirMode); err != nil {
		return nil, &ProvisioningError{Path: p.dir, Err: err}
	}
	// MkdirAll leaves an existing directory's mode alone
	if err := p.filesystem.Chmod(p.dir, DirMode); err != nil {
		return nil, &ProvisioningError{Path: p.dir, Err: err}
	}

	if existing := p.Existing(names); len(existing) > 0 {
		p.Logger.Warn("replacing existing secrets", "names", strings.Join(existing, ","), "dir", p.dir)
	}

	paths := make(map[string]string, len(names))
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, &ProvisioningError{Name: name, Err: err}
		}

		path := p.Path(name)
		value, err := p.generate()
		if err != nil {
			return nil, &ProvisioningError{Name: name, Path: path, Err: err}
		}
		if err := p.filesystem.WriteFileAtomic(path, value, FileMode); err != nil {
			return nil, &ProvisioningError{Name: name, Path: path, Err: err}
		}
		if err := p.filesystem.Chmod(path, FileMode); err != nil {
			return nil, &ProvisioningError{Name: name, Path: path, Err: err}
		}

		p.Logger.Debug("provisioned secret", "name", name, "path", path)
		paths[name] = path
	}

	return paths, nil
}

func (p *Provisioner) generate() ([]byte, error) {
	raw := make([]byte, EntropyBytes)
	if _, err := io.ReadFull(p.random, raw); err != nil {
		return nil, fmt.Errorf("randomness source unavailable: %w", err)
	}
	encoded := make([]byte, base64.RawURLEncoding.EncodedLen(len(raw)))
	base64.RawURLEncoding.Encode(encoded, raw)
	return encoded, nil
}

// NormalizeNames trims, sorts and de-duplicates secret names
func NormalizeNames(names []string) []string {
	out := make([]string, 0, len(names))
	for _, name := range names {
		out = append(out, strings.TrimSpace(name))
	}
	slices.Sort(out)
	return slices.Compact(out)
}

func validateName(name string) error {
	switch {
	case name == "":
		return errors.New("secret name is empty")
	case name == "." || name == "..":
		return fmt.Errorf("secret name %q is not a file name", name)
	case strings.ContainsAny(name, `/\`):
		return fmt.Errorf("secret name %q must not contain path separators", name)
	}
	return nil
}
