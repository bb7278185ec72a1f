package config

import (
	"fmt"
	"io/ioutil"

	"gopkg.in/yaml.v3"
)

// Config represents the operational robot configuration
type Config struct {
	Version       string         `yaml:"version" json:"version"`
	ConfigID      string         `yaml:"config_id" json:"config_id"`
	LastUpdated   string         `yaml:"lastUpdated" json:"lastUpdated"`
	RobotID       string         `yaml:"robot_id" json:"robot_id"`
	Robot         RobotConfig    `yaml:"robot" json:"robot"`
	TopicMappings []TopicMapping `yaml:"topic_mappings" json:"topic_mappings"`
	Defaults      DefaultsConfig `yaml:"defaults" json:"defaults"`
}

// RobotConfig holds the kinematic constants, fixed at construction and
// not reloadable at runtime.
type RobotConfig struct {
	FrequencyHz  float64      `yaml:"frequency_hz" json:"frequency_hz"`
	WheelRadius  float64      `yaml:"wheel_radius" json:"wheel_radius"`
	WheelOmega   float64      `yaml:"wheel_omega" json:"wheel_omega"`
	SwivelOmega  float64      `yaml:"swivel_omega" json:"swivel_omega"`
	StaticOffset OffsetConfig `yaml:"static_offset" json:"static_offset"`
	GoalWorld    PointConfig  `yaml:"goal_world" json:"goal_world"`
}

// OffsetConfig is the fixed world->odom translation.
type OffsetConfig struct {
	DX float64 `yaml:"dx" json:"dx"`
	DY float64 `yaml:"dy" json:"dy"`
	DZ float64 `yaml:"dz" json:"dz"`
}

// PointConfig is a 2D point.
type PointConfig struct {
	X float64 `yaml:"x" json:"x"`
	Y float64 `yaml:"y" json:"y"`
}

// TopicMapping represents a mapping between a bus topic and its role
type TopicMapping struct {
	TopicID     string `yaml:"topic_id" json:"topic_id"`
	Topic       string `yaml:"topic" json:"topic"`
	MessageType string `yaml:"message_type" json:"message_type"`
	Priority    string `yaml:"priority" json:"priority"`
	Direction   string `yaml:"direction" json:"direction"`
}

// DefaultsConfig holds default values for topic mappings
type DefaultsConfig struct {
	Priority  string `yaml:"priority" json:"priority"`
	Direction string `yaml:"direction" json:"direction"`
}

// LoadConfig loads the operational configuration from the specified file path
func LoadConfig(path string) (*Config, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate checks the robot constants that the motion loop depends on.
func (c *Config) Validate() error {
	if c.Robot.FrequencyHz <= 0 {
		return fmt.Errorf("invalid robot config: frequency_hz must be positive, got %v", c.Robot.FrequencyHz)
	}
	if c.Robot.WheelRadius <= 0 {
		return fmt.Errorf("invalid robot config: wheel_radius must be positive, got %v", c.Robot.WheelRadius)
	}
	return nil
}

// WorkingGoal returns the default goal translated into the working
// (odom) frame: the world goal minus the static offset.
func (c *Config) WorkingGoal() PointConfig {
	return PointConfig{
		X: c.Robot.GoalWorld.X - c.Robot.StaticOffset.DX,
		Y: c.Robot.GoalWorld.Y - c.Robot.StaticOffset.DY,
	}
}

// GetTopicMappingsByDirection returns topic mappings filtered by direction
func (c *Config) GetTopicMappingsByDirection(direction string) []TopicMapping {
	var result []TopicMapping

	for _, mapping := range c.TopicMappings {
		// If mapping doesn't have direction, use default
		mappingDirection := mapping.Direction
		if mappingDirection == "" {
			mappingDirection = c.Defaults.Direction
		}

		if mappingDirection == direction {
			result = append(result, applyDefaults(mapping, c.Defaults))
		}
	}

	return result
}

// GetTopicMapping returns the mapping for a specific bus topic
func (c *Config) GetTopicMapping(topic string) (TopicMapping, bool) {
	for _, mapping := range c.TopicMappings {
		if mapping.Topic == topic {
			return applyDefaults(mapping, c.Defaults), true
		}
	}

	return TopicMapping{}, false
}

// applyDefaults merges default values into a topic mapping where fields are empty
func applyDefaults(mapping TopicMapping, defaults DefaultsConfig) TopicMapping {
	result := mapping

	if result.Priority == "" {
		result.Priority = defaults.Priority
	}

	if result.Direction == "" {
		result.Direction = defaults.Direction
	}

	return result
}
