package config

import (
	"fmt"

	"go-localtube/internal/models"

	"github.com/BurntSushi/toml"
	log "github.com/sirupsen/logrus"
)

// LoadConfig reads the configuration from the specified path (defaulting to
// "config.toml") and populates a models.Config with defaults applied for
// anything the file leaves unset.
func LoadConfig(configFilePath string) (models.Config, error) {
	if configFilePath == "" {
		configFilePath = "config.toml"
	}
	var cfg models.Config
	_, err := toml.DecodeFile(configFilePath, &cfg)
	if err != nil {
		return models.Config{}, fmt.Errorf("error loading config file %s: %w", configFilePath, err)
	}

	if cfg.StoragePath == "" {
		log.Warn("Warning: StoragePath is not set in config.toml")
	}

	applyDefaults(&cfg)

	log.Infof("Configuration loaded from %s", configFilePath)
	return cfg, nil
}

// applyDefaults fills in zero-valued fields. Also used when no config file
// exists at all, so every knob has a usable value.
func applyDefaults(cfg *models.Config) {
	if cfg.BackendURL == "" {
		cfg.BackendURL = "http://localhost:8900"
	}
	if cfg.ApiClientTimeoutSec <= 0 {
		cfg.ApiClientTimeoutSec = 60
	}
	if cfg.CatalogPath == "" {
		cfg.CatalogPath = "library.json"
	}
	if cfg.ThumbCachePath == "" {
		cfg.ThumbCachePath = "thumbnails"
	}
	if cfg.ThumbMemCapacity <= 0 {
		cfg.ThumbMemCapacity = 64
	}
	if cfg.ThumbProbeOffset <= 0 {
		cfg.ThumbProbeOffset = 1.0
	}
	if cfg.BleveIndexPath == "" {
		cfg.BleveIndexPath = "localtube.bleve"
	}
}

// DefaultConfig returns a config populated entirely from defaults.
func DefaultConfig() models.Config {
	var cfg models.Config
	applyDefaults(&cfg)
	return cfg
}
