package config

import (
	"os"
	"path/filepath"
	"testing"
)

func write(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
}

func TestLoadMissingFileIsEmpty(t *testing.T) {
	f, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if *f != (File{}) {
		t.Fatalf("got %+v, want zero config", f)
	}
}

func TestLoadParsesFields(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, `
provider: compat
model: llama3
base_url: http://localhost:11434/v1
target_lang: de
budget: 2500
max_consecutive: 5
max_total: 20
proxy: http://proxy:8080
`)
	f, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if f.Provider != "compat" || f.Model != "llama3" || f.TargetLang != "de" {
		t.Fatalf("got %+v", f)
	}
	if f.Budget != 2500 || f.MaxConsecutive != 5 || f.MaxTotal != 20 {
		t.Fatalf("got %+v", f)
	}
	if f.Proxy != "http://proxy:8080" {
		t.Fatalf("proxy = %q", f.Proxy)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	for _, content := range []string{
		"budget: -100\n",
		"max_consecutive: -1\n",
		"provider: [not, a, string]\n",
	} {
		dir := t.TempDir()
		write(t, dir, content)
		if _, err := Load(dir); err == nil {
			t.Fatalf("Load accepted %q", content)
		}
	}
}

func TestLoadNearPrefersInputDir(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "provider: echo\n")
	f, err := LoadNear(filepath.Join(dir, "report.docx"))
	if err != nil {
		t.Fatalf("LoadNear: %v", err)
	}
	if f.Provider != "echo" {
		t.Fatalf("provider = %q, want echo", f.Provider)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("TRANSDOC_PROVIDER", "compat")
	t.Setenv("TRANSDOC_MODEL", "mistral")
	t.Setenv("TRANSDOC_BUDGET", "1234")

	f := &File{Provider: "openai", Model: "gpt-4o-mini", Budget: 4000}
	f.ApplyEnv()
	if f.Provider != "compat" || f.Model != "mistral" || f.Budget != 1234 {
		t.Fatalf("got %+v", f)
	}
}

func TestApplyEnvIgnoresInvalidBudget(t *testing.T) {
	t.Setenv("TRANSDOC_BUDGET", "not-a-number")
	f := &File{Budget: 4000}
	f.ApplyEnv()
	if f.Budget != 4000 {
		t.Fatalf("budget = %d, want 4000", f.Budget)
	}
}

func TestAPIKeyFromEnvPrecedence(t *testing.T) {
	t.Setenv("TRANSDOC_API_KEY", "tk")
	t.Setenv("OPENAI_API_KEY", "ok")
	if got := APIKeyFromEnv(); got != "tk" {
		t.Fatalf("got %q, want tk", got)
	}
	t.Setenv("TRANSDOC_API_KEY", "")
	if got := APIKeyFromEnv(); got != "ok" {
		t.Fatalf("got %q, want ok", got)
	}
}
