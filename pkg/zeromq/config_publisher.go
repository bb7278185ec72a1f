package zeromq

import (
	"github.com/open-rover/simnode/pkg/config"
	customlog "github.com/open-rover/simnode/pkg/log"
)

// TopicConfigUpdated carries notifications that the operational
// configuration changed and subscribers should re-fetch it.
const TopicConfigUpdated = "rover.config.updated"

// ConfigSource supplies the currently active operational configuration.
type ConfigSource interface {
	GetCurrentConfig() *config.Config
}

// ConfigPublisher publishes configuration change notifications on the bus.
type ConfigPublisher struct {
	service *Service
	source  ConfigSource
	logger  customlog.Logger
}

// NewConfigPublisher creates a publisher for configuration notifications.
func NewConfigPublisher(service *Service, source ConfigSource, logger customlog.Logger) *ConfigPublisher {
	return &ConfigPublisher{
		service: service,
		source:  source,
		logger:  logger,
	}
}

// PublishConfigUpdatedNotification publishes a minimal notification that
// the configuration has been updated.
func (p *ConfigPublisher) PublishConfigUpdatedNotification() error {
	cfg := p.source.GetCurrentConfig()
	if cfg == nil {
		p.logger.Warnf("No configuration loaded, skipping update notification")
		return nil
	}

	p.logger.Infof("Publishing configuration update notification (ID: %s)", cfg.ConfigID)
	notification := map[string]interface{}{
		"config_id":    cfg.ConfigID,
		"version":      cfg.Version,
		"last_updated": cfg.LastUpdated,
	}
	return p.service.PublishJSONEvent(TopicConfigUpdated, notification)
}
