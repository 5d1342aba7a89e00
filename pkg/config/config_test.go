package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Geometry.DenominatorEpsilon != 1e-9 {
		t.Errorf("DenominatorEpsilon = %v", cfg.Geometry.DenominatorEpsilon)
	}
	if cfg.Geometry.RoundTripTolerance != 1e-6 {
		t.Errorf("RoundTripTolerance = %v", cfg.Geometry.RoundTripTolerance)
	}
	if cfg.Fitting.DedupEpsilon != 1.0 {
		t.Errorf("DedupEpsilon = %v", cfg.Fitting.DedupEpsilon)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "text" {
		t.Errorf("logging defaults = %+v", cfg.Logging)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Fitting.DedupEpsilon != DefaultConfig().Fitting.DedupEpsilon {
		t.Error("missing file should yield defaults")
	}
}

func TestSaveAndLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "eosrecon.yaml")

	cfg := DefaultConfig()
	cfg.Fitting.DedupEpsilon = 0.25
	cfg.Geometry.PatientOffset.Y = -0.05
	cfg.Logging.Format = "json"

	if err := SaveConfig(cfg, path); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}
	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if loaded.Fitting.DedupEpsilon != 0.25 {
		t.Errorf("DedupEpsilon = %v", loaded.Fitting.DedupEpsilon)
	}
	if loaded.Geometry.PatientOffset.Y != -0.05 {
		t.Errorf("PatientOffset.Y = %v", loaded.Geometry.PatientOffset.Y)
	}
	if loaded.Logging.Format != "json" {
		t.Errorf("Format = %v", loaded.Logging.Format)
	}
}

func TestLoadConfigInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("geometry: ["), 0644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Error("expected a parse error")
	}
}

func TestCreateDefaultConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "eosrecon.yaml")
	if err := CreateDefaultConfigFile(path); err != nil {
		t.Fatalf("CreateDefaultConfigFile failed: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("config file not created: %v", err)
	}
}
