package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config represents the full buildmatrix configuration.
type Config struct {
	Source       SourceConfig   `yaml:"source"`
	Targets      []Target       `yaml:"targets"`
	Categories   []Category     `yaml:"categories"`
	Features     []Feature      `yaml:"features"`
	Combinations []Combination  `yaml:"combinations"`
	Build        BuildConfig    `yaml:"build,omitempty"`
	Artifacts    ArtifactConfig `yaml:"artifacts,omitempty"`
	Publish      *PublishConfig `yaml:"publish,omitempty"`
	Daemon       DaemonConfig   `yaml:"daemon,omitempty"`
}

// Load loads configuration from the specified file. Environment variables
// referenced as ${VAR} in the YAML are expanded after the .env overlay is
// applied, so registry credentials never need to live in the config file.
func Load(configPath string) (*Config, error) {
	loadEnvFiles()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("configuration file not found: %s", configPath)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(data)
}

// Parse unmarshals, defaults and validates raw YAML configuration.
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	var config Config
	if err := yaml.Unmarshal([]byte(expanded), &config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&config)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// FeatureByName returns the feature definition for a toggle name.
func (c *Config) FeatureByName(name string) (Feature, bool) {
	for _, f := range c.Features {
		if f.Name == name {
			return f, true
		}
	}
	return Feature{}, false
}

// CategoryByName returns the category definition for a category name.
func (c *Config) CategoryByName(name string) (Category, bool) {
	for _, cat := range c.Categories {
		if cat.Name == name {
			return cat, true
		}
	}
	return Category{}, false
}
