package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Loader handles loading and validation of channel seed files
type Loader struct {
	seedDir string
}

// NewLoader creates a new seed loader
func NewLoader(seedDir string) *Loader {
	return &Loader{seedDir: seedDir}
}

// LoadAll loads all YAML seed files from the seed directory
func (l *Loader) LoadAll() (map[string]*ChannelSeed, error) {
	seeds := make(map[string]*ChannelSeed)

	if _, err := os.Stat(l.seedDir); os.IsNotExist(err) {
		return seeds, nil // Empty map if directory doesn't exist
	}

	files, err := filepath.Glob(filepath.Join(l.seedDir, "*.yaml"))
	if err != nil {
		return nil, fmt.Errorf("failed to find YAML files: %w", err)
	}

	ymlFiles, err := filepath.Glob(filepath.Join(l.seedDir, "*.yml"))
	if err != nil {
		return nil, fmt.Errorf("failed to find YML files: %w", err)
	}
	files = append(files, ymlFiles...)

	for _, file := range files {
		seed, err := l.loadFile(file)
		if err != nil {
			return nil, fmt.Errorf("error loading %s: %w", file, err)
		}

		if err := l.validate(seed); err != nil {
			return nil, fmt.Errorf("invalid seed %s: %w", file, err)
		}

		seeds[file] = seed
	}

	return seeds, nil
}

func (l *Loader) loadFile(path string) (*ChannelSeed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var seed ChannelSeed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	l.setDefaults(&seed)

	return &seed, nil
}

func (l *Loader) setDefaults(seed *ChannelSeed) {
	if seed.Channel.PostInterval == 0 {
		seed.Channel.PostInterval = 7200 // seconds
	}
	if seed.Channel.Model == "" {
		seed.Channel.Model = "gpt-4o-mini"
	}
	if seed.Channel.Name == "" {
		seed.Channel.Name = seed.Channel.ChatID
	}
}

func (l *Loader) validate(seed *ChannelSeed) error {
	if seed.Channel.ChatID == "" {
		return fmt.Errorf("channel chat_id is required")
	}
	if seed.Channel.PostInterval <= 0 {
		return fmt.Errorf("post interval must be positive")
	}

	for i, source := range seed.Sources {
		if source.URL == "" {
			return fmt.Errorf("source at index %d has no URL", i)
		}
	}

	return nil
}
