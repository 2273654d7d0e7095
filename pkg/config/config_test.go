package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type sample struct {
	Name string `yaml:"name"`
	Port int    `yaml:"port"`
}

func (s *sample) Validate() error {
	if s.Port <= 0 {
		return errors.New("port is required")
	}
	return nil
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_ExpandsEnvAndKeepsDefaults(t *testing.T) {
	t.Setenv("SAMPLE_NAME", "wiki")
	path := writeFile(t, "name: ${SAMPLE_NAME}\n")

	cfg := sample{Port: 8080}
	if err := Load(path, &cfg); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Name != "wiki" || cfg.Port != 8080 {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestLoad_Validates(t *testing.T) {
	path := writeFile(t, "port: 0\n")

	cfg := sample{}
	err := Load(path, &cfg)
	if err == nil || !strings.Contains(err.Error(), "port is required") {
		t.Errorf("err = %v", err)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	cfg := sample{Port: 1}
	if err := Load(filepath.Join(t.TempDir(), "nope.yaml"), &cfg); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadOptional_MissingFileUsesDefaults(t *testing.T) {
	cfg := sample{Name: "default", Port: 1}
	if err := LoadOptional(filepath.Join(t.TempDir(), "nope.yaml"), &cfg); err != nil {
		t.Fatalf("LoadOptional: %v", err)
	}
	if cfg.Name != "default" {
		t.Errorf("cfg = %+v", cfg)
	}

	bad := sample{}
	if err := LoadOptional(filepath.Join(t.TempDir(), "nope.yaml"), &bad); err == nil {
		t.Error("defaults should still be validated")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeFile(t, "name: [unclosed\n")
	cfg := sample{Port: 1}
	if err := Load(path, &cfg); err == nil || !strings.Contains(err.Error(), "failed to parse") {
		t.Errorf("err = %v", err)
	}
}
