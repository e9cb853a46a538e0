package runtime

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/railwayapp/ciboot/internal/filesystems"
)

// CanonicalSocketPath is where VM-shim daemons mount their socket inside
// the VM, independent of the host-visible path
const CanonicalSocketPath = "/var/run/docker.sock"

// ShimRule maps host socket paths containing Marker to CanonicalPath
type ShimRule struct {
	Name          string `toml:"name"`
	Marker        string `toml:"marker"`
	CanonicalPath string `toml:"canonical_path"`
}

var defaultShimRules = []ShimRule{
	{Name: "colima", Marker: "/.colima/", CanonicalPath: CanonicalSocketPath},
	{Name: "lima", Marker: "/.lima/", CanonicalPath: CanonicalSocketPath},
	{Name: "rancher-desktop", Marker: "/.rd/", CanonicalPath: CanonicalSocketPath},
	{Name: "orbstack", Marker: "/.orbstack/", CanonicalPath: CanonicalSocketPath},
}

// DefaultShimRules returns a copy of the built-in rule table
func DefaultShimRules() []ShimRule {
	return append([]ShimRule(nil), defaultShimRules...)
}

// ShimTable is an ordered list of rules; the first match wins
type ShimTable []ShimRule

// Match returns the first rule whose marker occurs in hostPath
func (t ShimTable) Match(hostPath string) (ShimRule, bool) {
	for _, rule := range t {
		if rule.Marker != "" && strings.Contains(hostPath, rule.Marker) {
			return rule, true
		}
	}
	return ShimRule{}, false
}

type shimFile struct {
	Shim []ShimRule `toml:"shim"`
}

// LoadShimRules reads extra rules from a TOML file of [[shim]] tables.
// Rule order in the file is preserved.
func LoadShimRules(filesystem filesystems.FileSystem, path string) ([]ShimRule, error) {
	content, err := filesystem.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read shim rules %s: %w", path, err)
	}

	var file shimFile
	if err := toml.Unmarshal(content, &file); err != nil {
		return nil, fmt.Errorf("failed to parse shim rules %s: %w", path, err)
	}

	for i, rule := range file.Shim {
		if rule.Marker == "" {
			return nil, fmt.Errorf("shim rule %d in %s has an empty marker", i+1, path)
		}
		if !strings.HasPrefix(rule.CanonicalPath, "/") {
			return nil, fmt.Errorf("shim rule %q in %s needs an absolute canonical_path, got %q", rule.Name, path, rule.CanonicalPath)
		}
		if rule.Name == "" {
			file.Shim[i].Name = strings.Trim(rule.Marker, "/.")
		}
	}

	return file.Shim, nil
}

// NewShimTable puts extra rules ahead of the built-ins so they can override them
func NewShimTable(extra ...ShimRule) ShimTable {
	table := make(ShimTable, 0, len(extra)+len(defaultShimRules))
	table = append(table, extra...)
	return append(table, defaultShimRules...)
}
