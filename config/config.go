// Package config — .transdoc.yaml configuration file support.
//
// When a .transdoc.yaml exists in the working directory (or the directory
// of the input document), its values become the defaults for flags the
// user did not set. Environment variables override the file; flags
// override both.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// FileName is the default config file name.
const FileName = ".transdoc.yaml"

// ---------------------------------------------------------------------------
// YAML schema
// ---------------------------------------------------------------------------

// File is the top-level .transdoc.yaml structure.
type File struct {
	// Provider is the translation provider: "openai", "compat", "echo".
	Provider string `yaml:"provider,omitempty"`
	// Model is the model identifier for API providers.
	Model string `yaml:"model,omitempty"`
	// BaseURL overrides the provider endpoint.
	BaseURL string `yaml:"base_url,omitempty"`
	// SourceLang is the default source language code ("" = auto-detect).
	SourceLang string `yaml:"source_lang,omitempty"`
	// TargetLang is the default target language code.
	TargetLang string `yaml:"target_lang,omitempty"`
	// Budget is the per-batch character budget.
	Budget int `yaml:"budget,omitempty"`
	// MaxConsecutive failed batches before the error prompt.
	MaxConsecutive int `yaml:"max_consecutive,omitempty"`
	// MaxTotal recorded errors before the error prompt.
	MaxTotal int `yaml:"max_total,omitempty"`
	// Proxy is an HTTP/HTTPS proxy URL for API providers.
	Proxy string `yaml:"proxy,omitempty"`
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Load reads .transdoc.yaml from dir. A missing file yields an empty
// config, not an error.
func Load(dir string) (*File, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &File{}, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if f.Budget < 0 {
		return nil, fmt.Errorf("%s: budget must be positive", path)
	}
	if f.MaxConsecutive < 0 || f.MaxTotal < 0 {
		return nil, fmt.Errorf("%s: error thresholds must be positive", path)
	}
	return &f, nil
}

// LoadNear loads config from the directory of path, falling back to the
// working directory.
func LoadNear(path string) (*File, error) {
	dir := filepath.Dir(path)
	f, err := Load(dir)
	if err != nil {
		return nil, err
	}
	if *f != (File{}) || dir == "." {
		return f, nil
	}
	return Load(".")
}

// ---------------------------------------------------------------------------
// Environment overrides
// ---------------------------------------------------------------------------

// ApplyEnv overlays TRANSDOC_* environment variables onto f.
func (f *File) ApplyEnv() {
	if v := os.Getenv("TRANSDOC_PROVIDER"); v != "" {
		f.Provider = v
	}
	if v := os.Getenv("TRANSDOC_MODEL"); v != "" {
		f.Model = v
	}
	if v := os.Getenv("TRANSDOC_BASE_URL"); v != "" {
		f.BaseURL = v
	}
	if v := os.Getenv("TRANSDOC_PROXY"); v != "" {
		f.Proxy = v
	}
	if v := os.Getenv("TRANSDOC_BUDGET"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			f.Budget = n
		}
	}
}

// APIKeyFromEnv returns the API key from the environment, preferring
// TRANSDOC_API_KEY over OPENAI_API_KEY.
func APIKeyFromEnv() string {
	if v := os.Getenv("TRANSDOC_API_KEY"); v != "" {
		return v
	}
	return os.Getenv("OPENAI_API_KEY")
}
