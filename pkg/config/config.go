// Package config provides configuration loading and management for eosrecon.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Geometry parameters for the dual-plane reconstruction engine
	Geometry struct {
		// DenominatorEpsilon is the threshold in meters below which a
		// perspective denominator is treated as degenerate
		DenominatorEpsilon float64 `yaml:"denominatorEpsilon"`

		// PatientOffset shifts the patient position away from the isocenter
		PatientOffset struct {
			X float64 `yaml:"x"`
			Y float64 `yaml:"y"`
			Z float64 `yaml:"z"`
		} `yaml:"patientOffset"`

		// RoundTripCheckExtent is the half-extent in meters of the grid used
		// by the geometry self-check
		RoundTripCheckExtent float64 `yaml:"roundTripCheckExtent"`

		// RoundTripTolerance is the maximum acceptable round-trip error in
		// meters for the geometry self-check
		RoundTripTolerance float64 `yaml:"roundTripTolerance"`
	} `yaml:"geometry"`

	// Fitting parameters for the direct ellipse fit
	Fitting struct {
		// DedupEpsilon is the distance in input units below which annotation
		// points are collapsed before fitting
		DedupEpsilon float64 `yaml:"dedupEpsilon"`
	} `yaml:"fitting"`

	// Logging parameters
	Logging struct {
		// Level is the minimum log level (debug, info, warn, error)
		Level string `yaml:"level"`

		// Format selects the log output format (text or json)
		Format string `yaml:"format"`
	} `yaml:"logging"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	// Set default geometry parameters
	cfg.Geometry.DenominatorEpsilon = 1e-9
	cfg.Geometry.RoundTripCheckExtent = 0.25
	cfg.Geometry.RoundTripTolerance = 1e-6

	// Set default fitting parameters
	cfg.Fitting.DedupEpsilon = 1.0

	// Set default logging parameters
	cfg.Logging.Level = "info"
	cfg.Logging.Format = "text"

	return cfg
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	// Read config file
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// Parse YAML
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	// Marshal config to YAML
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	// Write to file
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}
