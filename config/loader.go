package config

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Loader handles loading and initial parsing of the ElevationConfig from a file.
type Loader struct {
	filePath string
}

// NewLoader creates a new configuration loader for the given file path.
func NewLoader(filePath string) *Loader {
	return &Loader{
		filePath: filePath,
	}
}

// Load reads the configuration file, unmarshals it into ElevationConfig,
// and performs basic structural validation.
// Defaulting and further checks are handled by SetDefaults and Validate.
func (l *Loader) Load() (*ElevationConfig, error) {
	if l.filePath == "" {
		return nil, errors.New("configuration file path is empty")
	}
	content, err := os.ReadFile(l.filePath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read config file '%s'", l.filePath)
	}
	if len(content) == 0 {
		return nil, errors.Errorf("configuration file '%s' is empty", l.filePath)
	}
	return Parse(content, l.filePath)
}

// Parse unmarshals a configuration document. source only labels errors.
func Parse(content []byte, source string) (*ElevationConfig, error) {
	var cfg ElevationConfig
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return nil, errors.Wrapf(err, "failed to unmarshal config YAML from '%s'", source)
	}

	if cfg.APIVersion == "" {
		return nil, errors.Errorf("config validation failed: apiVersion is a required field in '%s'", source)
	}
	if cfg.APIVersion != APIVersion {
		return nil, errors.Errorf("config validation failed: apiVersion must be '%s' in '%s', got '%s'", APIVersion, source, cfg.APIVersion)
	}
	if cfg.Kind == "" {
		return nil, errors.Errorf("config validation failed: kind is a required field in '%s'", source)
	}
	if cfg.Kind != Kind {
		return nil, errors.Errorf("config validation failed: kind must be '%s' in '%s', got '%s'", Kind, source, cfg.Kind)
	}
	if cfg.Metadata.Name == "" {
		return nil, errors.Errorf("config validation failed: metadata.name is a required field in '%s'", source)
	}
	return &cfg, nil
}
