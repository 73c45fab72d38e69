package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	if err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml")); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if AppConfig.Site.Name != "Folio" {
		t.Errorf("Expected default site name, got %q", AppConfig.Site.Name)
	}
	if AppConfig.Server.Port != "12700" {
		t.Errorf("Expected default port, got %q", AppConfig.Server.Port)
	}
	if AppConfig.Content.Backend != "sqlite" {
		t.Errorf("Expected default backend sqlite, got %q", AppConfig.Content.Backend)
	}
	if !AppConfig.Features.Authoring.Enabled {
		t.Error("Expected authoring enabled by default")
	}
	if AppConfig.Features.Authoring.Auth != "ed25519" {
		t.Errorf("Expected default auth ed25519, got %q", AppConfig.Features.Authoring.Auth)
	}
	if AppConfig.Content.PostsPerPage != 50 {
		t.Errorf("Expected default posts per page 50, got %d", AppConfig.Content.PostsPerPage)
	}
}

func TestLoadConfigOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`
site:
  name: "My Corner"
content:
  backend: file
  posts_file: /tmp/posts.json
features:
  authoring:
    enabled: false
`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("Error writing config file: %v", err)
	}

	if err := LoadConfig(path); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if AppConfig.Site.Name != "My Corner" {
		t.Errorf("Expected overridden site name, got %q", AppConfig.Site.Name)
	}
	if AppConfig.Content.Backend != "file" {
		t.Errorf("Expected file backend, got %q", AppConfig.Content.Backend)
	}
	if AppConfig.Features.Authoring.Enabled {
		t.Error("Expected authoring disabled")
	}

	// Untouched fields keep their defaults.
	if AppConfig.Server.Port != "12700" {
		t.Errorf("Expected default port to survive, got %q", AppConfig.Server.Port)
	}
}

func TestLoadConfigMalformedYaml(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("site: ["), 0o644); err != nil {
		t.Fatalf("Error writing config file: %v", err)
	}

	if err := LoadConfig(path); err == nil {
		t.Error("Expected parse error for malformed yaml")
	}
}
