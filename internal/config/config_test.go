package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"forager/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("FORAGER_KFF_PATH", "")
	t.Chdir(tempHome)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantCase := filepath.Join(tempHome, ".local", "share", "forager", "case")
	if cfg.Paths.CaseDir != wantCase {
		t.Fatalf("unexpected case dir: got %q want %q", cfg.Paths.CaseDir, wantCase)
	}
	if cfg.CaseDBPath() != filepath.Join(wantCase, "case.db") {
		t.Fatalf("unexpected case db path: %q", cfg.CaseDBPath())
	}
	if cfg.Logging.Format != "console" || cfg.Logging.Level != "info" {
		t.Fatalf("unexpected logging defaults: %#v", cfg.Logging)
	}
	if strings.Join(cfg.Extraction.PostProcessors, ",") != strings.Join(config.DefaultPostProcessors(), ",") {
		t.Fatalf("unexpected post-processor chain: %v", cfg.Extraction.PostProcessors)
	}
	if cfg.KFF.Enabled {
		t.Fatal("expected KFF disabled by default")
	}
	if len(cfg.KFF.AlertStatuses) != 1 || cfg.KFF.AlertStatuses[0] != "A" {
		t.Fatalf("unexpected alert statuses: %v", cfg.KFF.AlertStatuses)
	}
}

func TestLoadCustomConfig(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	configPath := filepath.Join(tempHome, "config.toml")
	kffPath := filepath.Join(tempHome, "kff.csv")
	payload := map[string]any{
		"paths": map[string]any{
			"case_dir": "~/cases",
			"log_dir":  filepath.Join(tempHome, "logs"),
		},
		"logging": map[string]any{
			"format": "JSON",
			"level":  "Debug",
		},
		"extraction": map[string]any{
			"post_processors": []string{"searched-text", " ip-address ", "searched-text"},
			"parallel_items":  4,
		},
		"kff": map[string]any{
			"enabled": true,
			"path":    kffPath,
		},
	}
	data, err := toml.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != configPath {
		t.Fatalf("expected config to be loaded from %q, got %q (exists=%v)", configPath, resolved, exists)
	}
	if cfg.Paths.CaseDir != filepath.Join(tempHome, "cases") {
		t.Fatalf("unexpected case dir %q", cfg.Paths.CaseDir)
	}
	if cfg.Logging.Format != "json" || cfg.Logging.Level != "debug" {
		t.Fatalf("expected normalized logging settings, got %#v", cfg.Logging)
	}
	if got := strings.Join(cfg.Extraction.PostProcessors, ","); got != "searched-text,ip-address" {
		t.Fatalf("expected deduplicated chain, got %q", got)
	}
	if cfg.PostProcessorEnabled(config.PostProcessorKFFAlert) {
		t.Fatal("kff-alert should not be enabled by a custom chain that omits it")
	}
	if cfg.Extraction.ParallelItems != 4 {
		t.Fatalf("unexpected parallel items %d", cfg.Extraction.ParallelItems)
	}
	if cfg.KFF.Path != kffPath {
		t.Fatalf("unexpected kff path %q", cfg.KFF.Path)
	}
}

func TestValidateRejectsUnknownPostProcessor(t *testing.T) {
	cfg := config.Default()
	cfg.Extraction.PostProcessors = []string{"ip-address", "geo-locate"}
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "geo-locate") {
		t.Fatalf("expected unknown post-processor error, got %v", err)
	}
}

func TestValidateRequiresKFFPathWhenEnabled(t *testing.T) {
	cfg := config.Default()
	cfg.KFF.Enabled = true
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error when kff enabled without path")
	}
}

func TestKFFPathFromEnvironment(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Chdir(tempHome)
	kffPath := filepath.Join(tempHome, "hashes.csv")
	t.Setenv("FORAGER_KFF_PATH", kffPath)

	cfg, _, _, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.KFF.Path != kffPath {
		t.Fatalf("expected env kff path, got %q", cfg.KFF.Path)
	}
}

func TestCreateSampleRoundTrips(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	path := filepath.Join(tempHome, "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load sample: %v", err)
	}
	if !exists {
		t.Fatal("expected sample config to exist")
	}
	if len(cfg.Extraction.PostProcessors) != len(config.DefaultPostProcessors()) {
		t.Fatalf("unexpected sample chain %v", cfg.Extraction.PostProcessors)
	}
}
