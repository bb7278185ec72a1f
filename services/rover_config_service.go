package services

import (
	"fmt"
	"io/ioutil"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/open-rover/simnode/pkg/config"
	customlog "github.com/open-rover/simnode/pkg/log"
)

// ConfigNotifier publishes a notification when the operational
// configuration changes. Kept as an interface so the service does not
// depend on the concrete ZeroMQ implementation.
type ConfigNotifier interface {
	PublishConfigUpdatedNotification() error
}

// RoverConfigService manages the operational rover configuration.
type RoverConfigService interface {
	LoadConfig() error
	GetCurrentConfig() *config.Config
	GetCurrentConfigYAML() ([]byte, error)
	UpdateConfig(newConfigYAML []byte) error
	PersistConfig(yamlData []byte) error
	SetNotifier(n ConfigNotifier)
}

type roverConfigService struct {
	configPath    string
	logger        customlog.Logger
	notifier      ConfigNotifier
	currentConfig *config.Config
	mu            sync.RWMutex
}

// NewRoverConfigService creates a new RoverConfigService and attempts an
// initial load. A missing or invalid file is logged but does not fail
// construction; the config can be supplied later through the API.
func NewRoverConfigService(configPath string, logger customlog.Logger) (RoverConfigService, error) {
	if configPath == "" {
		return nil, fmt.Errorf("operational configuration path cannot be empty")
	}
	if logger == nil {
		logger, _ = customlog.NewLogrusLogger("info", "")
		logger.Warnf("No logger provided to RoverConfigService, using default.")
	}

	service := &roverConfigService{
		configPath: configPath,
		logger:     logger,
	}

	if err := service.LoadConfig(); err != nil {
		logger.Warnf("Initial load of operational config '%s' failed: %v. Service created, but config is nil.", configPath, err)
		return service, nil
	}

	logger.Infof("RoverConfigService initialized successfully for path: %s", configPath)
	return service, nil
}

// LoadConfig reads the operational config file from disk and replaces
// the in-memory configuration.
func (s *roverConfigService) LoadConfig() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.logger.Infof("Loading operational configuration from: %s", s.configPath)
	cfg, err := config.LoadConfig(s.configPath)
	if err != nil {
		s.currentConfig = nil
		return err
	}

	s.currentConfig = cfg
	s.logger.Infof("Successfully loaded operational configuration ID: %s, Version: %s", cfg.ConfigID, cfg.Version)
	return nil
}

// GetCurrentConfig returns the currently loaded operational
// configuration. Callers must treat it as read-only; modifications go
// through UpdateConfig.
func (s *roverConfigService) GetCurrentConfig() *config.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentConfig
}

// GetCurrentConfigYAML returns the raw YAML content of the operational
// config file, for display before editing.
func (s *roverConfigService) GetCurrentConfigYAML() ([]byte, error) {
	s.mu.RLock()
	path := s.configPath
	s.mu.RUnlock()

	s.logger.Debugf("Reading raw operational configuration YAML from: %s", path)
	data, err := ioutil.ReadFile(path)
	if err != nil {
		s.logger.Errorf("Error reading operational config file '%s' for YAML export: %v", path, err)
		return nil, fmt.Errorf("error reading operational config file '%s': %w", path, err)
	}
	return data, nil
}

// UpdateConfig validates, persists, and applies a new operational
// configuration, then publishes a notification. Motion parameters are
// picked up on the next node restart; the running tick loop keeps the
// parameters it was started with.
func (s *roverConfigService) UpdateConfig(newConfigYAML []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.logger.Infof("Attempting to update operational configuration from provided YAML")

	var newCfg config.Config
	if err := yaml.Unmarshal(newConfigYAML, &newCfg); err != nil {
		s.logger.Errorf("Failed to parse provided YAML configuration: %v", err)
		return fmt.Errorf("invalid YAML format: %w", err)
	}
	if newCfg.ConfigID == "" || newCfg.Version == "" || newCfg.RobotID == "" {
		s.logger.Errorf("Validation failed: missing required fields (ConfigID, Version, RobotID) in provided YAML.")
		return fmt.Errorf("validation failed: missing required fields (ConfigID, Version, RobotID)")
	}
	if err := newCfg.Validate(); err != nil {
		s.logger.Errorf("Validation failed for provided configuration: %v", err)
		return fmt.Errorf("validation failed: %w", err)
	}

	// Persist before applying so a write failure never leaves the
	// in-memory config ahead of the file.
	if err := s.persistConfigUnlocked(newConfigYAML); err != nil {
		return err
	}

	oldCfgID := "N/A"
	if s.currentConfig != nil {
		oldCfgID = s.currentConfig.ConfigID
	}
	s.currentConfig = &newCfg
	s.logger.Infof("Successfully updated and persisted operational configuration. ID %s -> %s, Version: %s", oldCfgID, newCfg.ConfigID, newCfg.Version)

	if s.notifier != nil {
		go func(n ConfigNotifier) {
			if err := n.PublishConfigUpdatedNotification(); err != nil {
				s.logger.Warnf("Failed to publish config update notification: %v", err)
			} else {
				s.logger.Infof("Published config update notification successfully.")
			}
		}(s.notifier)
	} else {
		s.logger.Infof("ConfigNotifier not configured, skipping update notification.")
	}

	return nil
}

// PersistConfig writes the given YAML data to the operational config
// file path. Exposed mainly for testing.
func (s *roverConfigService) PersistConfig(yamlData []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persistConfigUnlocked(yamlData)
}

func (s *roverConfigService) persistConfigUnlocked(yamlData []byte) error {
	s.logger.Infof("Persisting operational configuration to: %s", s.configPath)
	if err := ioutil.WriteFile(s.configPath, yamlData, 0644); err != nil {
		s.logger.Errorf("Error writing operational config file '%s': %v", s.configPath, err)
		return fmt.Errorf("error writing operational config file '%s': %w", s.configPath, err)
	}
	return nil
}

// SetNotifier injects the ConfigNotifier after initialization.
func (s *roverConfigService) SetNotifier(n ConfigNotifier) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifier = n
}
