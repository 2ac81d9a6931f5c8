// Package config provides advanced configuration loading with multiple
// sources: environment variable defaults overlaid with optional config
// files.
package config

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ============================================================================
// CONFIGURATION LOADER
// ============================================================================

// Loader loads configuration from a hierarchy of file overlays on top of
// the environment-variable defaults LoadConfig already produces.
type Loader struct {
	basePath    string
	environment Environment
	sources     []string
	fileLoaders map[string]FileLoader
}

// FileLoader parses one configuration file format into a *Config overlay.
type FileLoader interface {
	Load(reader io.Reader, target *Config) error
	Extension() string
}

// NewLoader creates a loader rooted at basePath (default "config").
func NewLoader(basePath string, env Environment) *Loader {
	if basePath == "" {
		basePath = "config"
	}
	l := &Loader{
		basePath:    basePath,
		environment: env,
		sources:     make([]string, 0),
		fileLoaders: make(map[string]FileLoader),
	}
	l.RegisterLoader(&YAMLLoader{})
	l.RegisterLoader(&JSONLoader{})
	return l
}

// RegisterLoader registers a file format loader.
func (l *Loader) RegisterLoader(loader FileLoader) {
	l.fileLoaders[loader.Extension()] = loader
}

// Load builds a configuration from, in ascending priority:
//  1. LoadConfig's environment-variable defaults
//  2. base.{yaml,json} - settings common to every environment
//  3. {environment}.{yaml,json} - environment-specific overrides
//  4. local.{yaml,json} - uncommitted developer overrides (development only)
//
// Any file that doesn't exist is silently skipped; this lets the engine
// run purely from environment variables when no config directory exists.
func (l *Loader) Load() (*Config, error) {
	cfg := LoadConfig()
	cfg.Environment = l.environment
	l.sources = append(l.sources, "env-defaults")

	if err := l.loadFile("base", &cfg); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load base config: %w", err)
	}

	envFile := strings.ToLower(string(l.environment))
	if err := l.loadFile(envFile, &cfg); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load %s config: %w", envFile, err)
	}

	if l.environment == Development {
		if err := l.loadFile("local", &cfg); err != nil && !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "warning: failed to load local config: %v\n", err)
		}
	}

	cfg.applyEnvironmentDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

// Sources returns the configuration sources applied, in priority order.
func (l *Loader) Sources() []string {
	return l.sources
}

func (l *Loader) loadFile(name string, cfg *Config) error {
	for ext, loader := range l.fileLoaders {
		path := filepath.Join(l.basePath, fmt.Sprintf("%s.%s", name, ext))
		file, err := os.Open(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return err
		}
		defer file.Close()

		if err := loader.Load(file, cfg); err != nil {
			return fmt.Errorf("failed to parse %s: %w", path, err)
		}
		l.sources = append(l.sources, path)
		return nil
	}
	return os.ErrNotExist
}

// ============================================================================
// FILE LOADERS
// ============================================================================

// YAMLLoader loads configuration overlays from YAML files.
type YAMLLoader struct{}

func (y *YAMLLoader) Load(reader io.Reader, target *Config) error {
	return yaml.NewDecoder(reader).Decode(target)
}

func (y *YAMLLoader) Extension() string { return "yaml" }

// JSONLoader loads configuration overlays from JSON files.
type JSONLoader struct{}

func (j *JSONLoader) Load(reader io.Reader, target *Config) error {
	return json.NewDecoder(reader).Decode(target)
}

func (j *JSONLoader) Extension() string { return "json" }

// MustLoad loads configuration via Loader and panics on error. Use only
// in main().
func MustLoad(basePath string) *Config {
	env := Environment(getEnvString("HIPPOS_ENV", string(Development)))
	cfg, err := NewLoader(basePath, env).Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}
