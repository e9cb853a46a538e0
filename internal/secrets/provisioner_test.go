package secrets_test

import (
	"bytes"
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/railwayapp/ciboot/internal/filesystems"
	"github.com/railwayapp/ciboot/internal/secrets"
)

type failingReader struct{}

func (failingReader) Read(p []byte) (int, error) {
	return 0, errors.New("entropy pool drained")
}

func TestProvision_OverwritesWithFreshValues(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "secrets")
	provisioner := secrets.NewProvisioner(filesystems.NewLocalFS(), dir)
	ctx := context.Background()

	first, err := provisioner.Provision(ctx, []string{"a", "b"})
	if err != nil {
		t.Fatalf("first Provision: %v", err)
	}
	firstA, err := os.ReadFile(first["a"])
	if err != nil {
		t.Fatalf("read a: %v", err)
	}

	second, err := provisioner.Provision(ctx, []string{"a", "b"})
	if err != nil {
		t.Fatalf("second Provision: %v", err)
	}
	secondA, err := os.ReadFile(second["a"])
	if err != nil {
		t.Fatalf("read a: %v", err)
	}

	if bytes.Equal(firstA, secondA) {
		t.Error("expected a fresh value for \"a\" on the second run")
	}
	if first["a"] != second["a"] {
		t.Errorf("storage path should be stable, got %s then %s", first["a"], second["a"])
	}

	for name, path := range second {
		info, err := os.Stat(path)
		if err != nil {
			t.Fatalf("stat %s: %v", name, err)
		}
		if info.Mode().Perm() != 0o600 {
			t.Errorf("secret %s has mode %v, want 0600", name, info.Mode().Perm())
		}
	}

	info, err := os.Stat(dir)
	if err != nil {
		t.Fatalf("stat dir: %v", err)
	}
	if info.Mode().Perm() != 0o700 {
		t.Errorf("secrets dir has mode %v, want 0700", info.Mode().Perm())
	}
}

func TestProvision_ValueShape(t *testing.T) {
	dir := t.TempDir()
	provisioner := secrets.NewProvisioner(filesystems.NewLocalFS(), dir)

	paths, err := provisioner.Provision(context.Background(), []string{"token"})
	if err != nil {
		t.Fatalf("Provision: %v", err)
	}

	value, err := os.ReadFile(paths["token"])
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	// 32 bytes in unpadded base64 is 43 characters
	if len(value) != 43 {
		t.Errorf("expected 43 printable characters, got %d", len(value))
	}
	for _, c := range value {
		if c < 0x21 || c > 0x7e {
			t.Fatalf("secret contains non-printable byte %q", c)
		}
	}
}

func TestProvision_TightensExistingDirMode(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "secrets")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}

	provisioner := secrets.NewProvisioner(filesystems.NewLocalFS(), dir)
	if _, err := provisioner.Provision(context.Background(), []string{"a"}); err != nil {
		t.Fatalf("Provision: %v", err)
	}

	info, err := os.Stat(dir)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Mode().Perm() != 0o700 {
		t.Errorf("expected dir mode 0700, got %v", info.Mode().Perm())
	}
}

func TestProvision_WarnsBeforeReplacing(t *testing.T) {
	var logs bytes.Buffer
	mfs := filesystems.NewMemoryFS()
	provisioner := secrets.NewProvisioner(mfs, "/state/secrets")
	provisioner.Logger = log.New(&logs)

	if _, err := provisioner.Provision(context.Background(), []string{"a"}); err != nil {
		t.Fatalf("Provision: %v", err)
	}
	if bytes.Contains(logs.Bytes(), []byte("replacing")) {
		t.Error("first run should not warn")
	}

	if _, err := provisioner.Provision(context.Background(), []string{"a"}); err != nil {
		t.Fatalf("Provision: %v", err)
	}
	if !bytes.Contains(logs.Bytes(), []byte("replacing existing secrets")) {
		t.Errorf("expected overwrite warning, got %q", logs.String())
	}

	value, err := mfs.ReadFile("/state/secrets/a")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if bytes.Contains(logs.Bytes(), value) {
		t.Error("secret value leaked into logs")
	}
}

func TestProvision_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("randomness unavailable", func(t *testing.T) {
		provisioner := secrets.NewProvisioner(filesystems.NewMemoryFS(), "/s").WithRandom(failingReader{})

		_, err := provisioner.Provision(ctx, []string{"a"})
		var provErr *secrets.ProvisioningError
		if !errors.As(err, &provErr) {
			t.Fatalf("expected ProvisioningError, got %v", err)
		}
		if provErr.Name != "a" {
			t.Errorf("expected error to name the secret, got %q", provErr.Name)
		}
	})

	t.Run("directory not creatable", func(t *testing.T) {
		root := t.TempDir()
		blocker := filepath.Join(root, "secrets")
		if err := os.WriteFile(blocker, []byte("file"), 0o644); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}

		provisioner := secrets.NewProvisioner(filesystems.NewLocalFS(), filepath.Join(blocker, "inner"))
		_, err := provisioner.Provision(ctx, []string{"a"})
		var provErr *secrets.ProvisioningError
		if !errors.As(err, &provErr) {
			t.Fatalf("expected ProvisioningError, got %v", err)
		}
	})

	t.Run("directory not writable", func(t *testing.T) {
		mfs := filesystems.NewMemoryFS()
		mfs.WriteErr = fs.ErrPermission

		_, err := secrets.NewProvisioner(mfs, "/s").Provision(ctx, []string{"a"})
		var provErr *secrets.ProvisioningError
		if !errors.As(err, &provErr) || !errors.Is(err, fs.ErrPermission) {
			t.Fatalf("expected ProvisioningError wrapping ErrPermission, got %v", err)
		}
	})

	t.Run("invalid names", func(t *testing.T) {
		for _, name := range []string{"", "..", "nested/name"} {
			mfs := filesystems.NewMemoryFS()
			_, err := secrets.NewProvisioner(mfs, "/s").Provision(ctx, []string{name})
			var provErr *secrets.ProvisioningError
			if !errors.As(err, &provErr) {
				t.Errorf("name %q: expected ProvisioningError, got %v", name, err)
			}
			if mfs.Writes != 0 {
				t.Errorf("name %q: expected no writes", name)
			}
		}
	})
}

func TestExisting(t *testing.T) {
	mfs := filesystems.NewMemoryFS()
	mfs.AddFile("/s/a", []byte("x"))

	provisioner := secrets.NewProvisioner(mfs, "/s")
	existing := provisioner.Existing([]string{"b", "a", "a"})
	if len(existing) != 1 || existing[0] != "a" {
		t.Errorf("expected [a], got %v", existing)
	}
}
