package runtime

import (
	"testing"

	"github.com/railwayapp/ciboot/internal/filesystems"
)

func TestShimTable_FirstMatchWins(t *testing.T) {
	table := ShimTable{
		{Name: "a", Marker: "/.colima/", CanonicalPath: "/first.sock"},
		{Name: "b", Marker: "/.colima/", CanonicalPath: "/second.sock"},
	}

	rule, ok := table.Match("/home/u/.colima/default/docker.sock")
	if !ok {
		t.Fatal("expected a match")
	}
	if rule.Name != "a" {
		t.Errorf("expected first rule, got %q", rule.Name)
	}

	if _, ok := table.Match("/var/run/docker.sock"); ok {
		t.Error("native path should not match any shim")
	}
}

func TestLoadShimRules(t *testing.T) {
	fs := filesystems.NewMemoryFS()
	fs.AddFile("/etc/ciboot/shims.toml", []byte(`
[[shim]]
name = "podman-machine"
marker = "/.local/share/containers/podman/machine/"
canonical_path = "/run/podman/podman.sock"

[[shim]]
marker = "/.finch/"
canonical_path = "/var/run/docker.sock"
`))

	rules, err := LoadShimRules(fs, "/etc/ciboot/shims.toml")
	if err != nil {
		t.Fatalf("LoadShimRules: %v", err)
	}
	if len(rules) != 2 {
		t.Fatalf("expected 2 rules, got %d", len(rules))
	}
	if rules[0].Name != "podman-machine" || rules[0].CanonicalPath != "/run/podman/podman.sock" {
		t.Errorf("unexpected first rule %+v", rules[0])
	}
	if rules[1].Name != "finch" {
		t.Errorf("expected name derived from marker, got %q", rules[1].Name)
	}

	table := NewShimTable(rules...)
	if len(table) != len(rules)+len(DefaultShimRules()) {
		t.Errorf("expected extra rules plus built-ins, got %d", len(table))
	}
	if table[0].Name != "podman-machine" {
		t.Errorf("extra rules should come first, got %q", table[0].Name)
	}
}

func TestLoadShimRules_Invalid(t *testing.T) {
	tests := map[string]string{
		"empty marker":   "[[shim]]\nname = \"x\"\ncanonical_path = \"/a.sock\"\n",
		"relative path":  "[[shim]]\nmarker = \"/.x/\"\ncanonical_path = \"a.sock\"\n",
		"malformed toml": "[[shim]\nmarker = ",
	}

	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			fs := filesystems.NewMemoryFS()
			fs.AddFile("shims.toml", []byte(content))
			if _, err := LoadShimRules(fs, "shims.toml"); err == nil {
				t.Fatal("expected error")
			}
		})
	}

	if _, err := LoadShimRules(filesystems.NewMemoryFS(), "missing.toml"); err == nil {
		t.Fatal("expected error for missing file")
	}
}
