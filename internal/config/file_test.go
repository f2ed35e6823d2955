package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestEnsureFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "dictate.yml")

	created, err := EnsureFile(path)
	if err != nil {
		t.Fatalf("EnsureFile failed: %v", err)
	}
	if !created {
		t.Error("first call should create the file")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != DefaultYAML {
		t.Error("created file does not hold the defaults")
	}

	// an edited file is left alone
	if err := os.WriteFile(path, []byte("engine: mock\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	created, err = EnsureFile(path)
	if err != nil || created {
		t.Fatalf("second call: created %v, err %v", created, err)
	}
	if data, _ := os.ReadFile(path); string(data) != "engine: mock\n" {
		t.Errorf("existing file rewritten: %q", data)
	}

	for _, bad := range []string{"", filepath.Join(dir, "dictate.toml")} {
		if _, err := EnsureFile(bad); err == nil {
			t.Errorf("EnsureFile(%q) should fail", bad)
		}
	}
}
