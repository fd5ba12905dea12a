package settings

import (
	"os"
	"path/filepath"
	"testing"
)

func useTempStore(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_DATA_HOME", dir)
	return dir
}

func TestSetGetRemove(t *testing.T) {
	useTempStore(t)

	if err := SetAPIKey("openai", "sk-test-1234567890", ""); err != nil {
		t.Fatalf("SetAPIKey: %v", err)
	}
	if got := GetAPIKey("openai"); got != "sk-test-1234567890" {
		t.Fatalf("GetAPIKey = %q, want the stored key", got)
	}

	if err := SetAPIKey("compat", "tok", "http://localhost:11434/v1"); err != nil {
		t.Fatalf("SetAPIKey compat: %v", err)
	}
	if got := GetBaseURL("compat"); got != "http://localhost:11434/v1" {
		t.Fatalf("GetBaseURL = %q", got)
	}

	if err := Remove("openai"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if got := GetAPIKey("openai"); got != "" {
		t.Fatalf("GetAPIKey after Remove = %q, want empty", got)
	}
	if got := GetAPIKey("compat"); got != "tok" {
		t.Fatalf("compat key lost on unrelated Remove: %q", got)
	}
}

func TestFilePermissions(t *testing.T) {
	dir := useTempStore(t)

	if err := SetAPIKey("openai", "sk-secret", ""); err != nil {
		t.Fatalf("SetAPIKey: %v", err)
	}

	info, err := os.Stat(filepath.Join(dir, "transdoc", "auth.json"))
	if err != nil {
		t.Fatalf("stat auth.json: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Fatalf("auth.json permissions = %o, want 0600", perm)
	}
}

func TestLoadMissingAndCorrupt(t *testing.T) {
	dir := useTempStore(t)

	if store := Load(); len(store) != 0 {
		t.Fatalf("Load on missing file = %v, want empty store", store)
	}

	path := filepath.Join(dir, "transdoc", "auth.json")
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("{broken"), 0600); err != nil {
		t.Fatal(err)
	}
	if store := Load(); len(store) != 0 {
		t.Fatalf("Load on corrupt file = %v, want empty store", store)
	}
}

func TestMaskKey(t *testing.T) {
	if got := MaskKey("short"); got != "****" {
		t.Fatalf("MaskKey(short) = %q", got)
	}
	if got := MaskKey("sk-abcdefghijklmnop"); got != "sk-a...mnop" {
		t.Fatalf("MaskKey = %q", got)
	}
}
