package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	customlog "github.com/open-rover/simnode/pkg/log"
	"github.com/open-rover/simnode/services"
)

// ConfigHandler holds dependencies for configuration API endpoints.
type ConfigHandler struct {
	configService services.RoverConfigService
	logger        customlog.Logger
}

// NewConfigHandler creates a new handler for configuration endpoints.
func NewConfigHandler(configService services.RoverConfigService, logger customlog.Logger) *ConfigHandler {
	if configService == nil {
		panic("ConfigService cannot be nil in NewConfigHandler")
	}
	if logger == nil {
		panic("Logger cannot be nil in NewConfigHandler")
	}
	return &ConfigHandler{
		configService: configService,
		logger:        logger,
	}
}

// RegisterConfigRoutes registers the configuration API endpoints with the Fiber app.
func RegisterConfigRoutes(app *fiber.App, configService services.RoverConfigService, logger customlog.Logger) {
	h := NewConfigHandler(configService, logger)

	apiGroup := app.Group("/api/v1/config")

	// Retrieve the current operational configuration as YAML
	apiGroup.Get("/rover", h.handleGetRoverConfig)

	// Replace the operational configuration
	apiGroup.Put("/rover", h.handleUpdateRoverConfig)

	logger.Infof("Registered rover configuration API endpoints under /api/v1/config")
}

// handleGetRoverConfig handles GET requests for the current rover config YAML.
func (h *ConfigHandler) handleGetRoverConfig(c *fiber.Ctx) error {
	h.logger.Debugf("Handling GET request for /api/v1/config/rover")
	yamlData, err := h.configService.GetCurrentConfigYAML()
	if err != nil {
		h.logger.Errorf("Failed to get current rover config YAML: %v", err)
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{
			"error": fmt.Sprintf("Failed to retrieve configuration: %v", err),
		})
	}

	if yamlData == nil {
		h.logger.Warnf("Rover config not loaded and no file content available.")
		return c.Status(http.StatusNotFound).JSON(fiber.Map{
			"error": "Rover configuration not found or not yet set.",
		})
	}

	c.Set(fiber.HeaderContentType, "application/x-yaml")
	return c.Send(yamlData)
}

// handleUpdateRoverConfig handles PUT requests to replace the rover config YAML.
func (h *ConfigHandler) handleUpdateRoverConfig(c *fiber.Ctx) error {
	h.logger.Debugf("Handling PUT request for /api/v1/config/rover")

	contentType := c.Get(fiber.HeaderContentType)
	if contentType != "application/x-yaml" && contentType != "application/yaml" && contentType != "text/yaml" {
		// Relaxed check, try to process anyway but log the mismatch.
		h.logger.Warnf("Received PUT request with unexpected Content-Type: %s", contentType)
	}

	newConfigYAML := c.Body()
	if len(newConfigYAML) == 0 {
		h.logger.Errorf("Received empty body in PUT request for rover config update.")
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{
			"error": "Request body cannot be empty.",
		})
	}

	if err := h.configService.UpdateConfig(newConfigYAML); err != nil {
		h.logger.Errorf("Failed to update rover configuration: %v", err)
		if strings.Contains(err.Error(), "invalid YAML") || strings.Contains(err.Error(), "validation failed") {
			return c.Status(http.StatusBadRequest).JSON(fiber.Map{
				"error": fmt.Sprintf("Configuration update failed: %v", err),
			})
		}
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{
			"error": fmt.Sprintf("Internal server error during configuration update: %v", err),
		})
	}

	h.logger.Infof("Successfully processed PUT request to update rover configuration.")
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"message": "Rover configuration updated successfully. Motion parameters apply on next restart.",
	})
}
