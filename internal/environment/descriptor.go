package environment

import (
	"bytes"
	"fmt"
	"io/fs"
	"sort"

	"github.com/joho/godotenv"
	"github.com/railwayapp/ciboot/internal/filesystems"
)

const (
	KeyServiceURL = "JENKINS_URL"
	KeyAdminEmail = "JENKINS_ADMIN_EMAIL"
	KeySocketPath = "DOCKER_SOCK"
)

// DescriptorMode is the descriptor's permission; it never holds secret values
const DescriptorMode fs.FileMode = 0o644

// Descriptor is the flat variable map handed to the orchestration layer
type Descriptor map[string]string

// Keys returns the descriptor keys in sorted order
func (d Descriptor) Keys() []string {
	keys := make([]string, 0, len(d))
	for key := range d {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func (d Descriptor) ServiceURL() string {
	return d[KeyServiceURL]
}

func (d Descriptor) AdminEmail() string {
	return d[KeyAdminEmail]
}

func (d Descriptor) SocketPath() string {
	return d[KeySocketPath]
}

// Marshal renders one KEY=VALUE line per key, sorted, without quoting.
// Identical descriptors always produce identical bytes.
func (d Descriptor) Marshal() []byte {
	var buf bytes.Buffer
	for _, key := range d.Keys() {
		buf.WriteString(key)
		buf.WriteByte('=')
		buf.WriteString(d[key])
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

// WriteFile validates and atomically replaces the descriptor at path
func WriteFile(filesystem filesystems.FileSystem, path string, d Descriptor) error {
	if err := d.validateFormat(); err != nil {
		return err
	}
	if err := filesystem.WriteFileAtomic(path, d.Marshal(), DescriptorMode); err != nil {
		return fmt.Errorf("failed to write environment descriptor %s: %w", path, err)
	}
	return nil
}

// Load reads a descriptor file back into memory
func Load(filesystem filesystems.FileSystem, path string) (Descriptor, error) {
	content, err := filesystem.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read environment descriptor %s: %w", path, err)
	}

	env, err := godotenv.Unmarshal(string(content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse environment descriptor %s: %w", path, err)
	}

	return Descriptor(env), nil
}
