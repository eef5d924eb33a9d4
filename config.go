package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v2"

	qhttp "liverrisk/http"
	"liverrisk/logging"
	"liverrisk/ml"
)

type Config struct {
	Http      qhttp.ServerConfig `yaml:"http"`
	Log       logging.Config     `yaml:"log"`
	Artifacts struct {
		Dir     string `yaml:"dir"`
		Model   string `yaml:"model"`
		Columns string `yaml:"columns"`
		Scaler  string `yaml:"scaler"`
		Watch   bool   `yaml:"watch"`
	} `yaml:"artifacts"`
	Cache struct {
		Size int `yaml:"size"`
	} `yaml:"cache"`
}

func defaultConfig() *Config {
	config := &Config{
		Http: qhttp.DefaultServerConfig(),
		Log:  logging.DefaultConfig(),
	}
	config.Artifacts.Dir = "."
	config.Artifacts.Watch = true
	config.Cache.Size = 256
	return config
}

// loadConfig overlays the YAML file on the defaults. A missing file is not
// an error.
func loadConfig(path string) (*Config, error) {
	config := defaultConfig()

	file, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return config, nil
	}
	if err != nil {
		return nil, err
	}
	defer file.Close()

	if err := yaml.NewDecoder(file).Decode(config); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return config, nil
}

// artifactPaths resolves artifact file names against the artifact dir.
func (c *Config) artifactPaths() ml.ArtifactPaths {
	paths := ml.DefaultArtifactPaths(c.Artifacts.Dir)
	resolve := func(target *string, name string) {
		if name == "" {
			return
		}
		if filepath.IsAbs(name) {
			*target = name
			return
		}
		*target = filepath.Join(c.Artifacts.Dir, name)
	}
	resolve(&paths.Model, c.Artifacts.Model)
	resolve(&paths.Columns, c.Artifacts.Columns)
	resolve(&paths.Scaler, c.Artifacts.Scaler)
	return paths
}
