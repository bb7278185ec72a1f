// Package processing tracks the node's bus topics and their traffic.
package processing

import (
	"sync"

	"github.com/open-rover/simnode/pkg/config"
	customlog "github.com/open-rover/simnode/pkg/log"
)

// Topic directions, matching the config mapping values.
const (
	DirectionInbound  = "INBOUND"
	DirectionOutbound = "OUTBOUND"
)

// TopicInfo holds metadata for a topic
type TopicInfo struct {
	Topic       string
	MessageType string
	Direction   string
	StatCount   int64
	LastStamp   int64
}

// TopicRegistry maintains information about topics
type TopicRegistry struct {
	logger customlog.Logger
	topics map[string]*TopicInfo
	mu     sync.RWMutex
}

// NewTopicRegistry creates a new topic registry
func NewTopicRegistry(logger customlog.Logger) *TopicRegistry {
	return &TopicRegistry{
		logger: logger,
		topics: make(map[string]*TopicInfo),
	}
}

// LoadFromConfig loads topic information from the config
func (r *TopicRegistry) LoadFromConfig(cfg *config.Config) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.topics = make(map[string]*TopicInfo)

	for _, mapping := range cfg.TopicMappings {
		direction := mapping.Direction
		if direction == "" {
			direction = cfg.Defaults.Direction
		}

		r.topics[mapping.Topic] = &TopicInfo{
			Topic:       mapping.Topic,
			MessageType: mapping.MessageType,
			Direction:   direction,
		}
	}

	r.logger.Infof("Loaded %d topics into registry", len(r.topics))
}

// GetTopicInfo gets information for a topic
func (r *TopicRegistry) GetTopicInfo(topic string) (*TopicInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	info, exists := r.topics[topic]
	if !exists {
		return nil, false
	}

	// Return a copy to avoid race conditions
	infoCopy := *info
	return &infoCopy, true
}

// UpdateTopicStats records one message seen on a topic
func (r *TopicRegistry) UpdateTopicStats(topic string, timestampNs int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	info, exists := r.topics[topic]
	if !exists {
		info = &TopicInfo{Topic: topic}
		r.topics[topic] = info
	}

	info.StatCount++
	info.LastStamp = timestampNs
}

// GetMessageType gets the message type for a topic
func (r *TopicRegistry) GetMessageType(topic string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	info, exists := r.topics[topic]
	if !exists {
		return "", false
	}

	return info.MessageType, true
}

// GetAllTopics returns a list of all registered topics
func (r *TopicRegistry) GetAllTopics() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	topics := make([]string, 0, len(r.topics))
	for topic := range r.topics {
		topics = append(topics, topic)
	}

	return topics
}

// GetTopicStats returns a map of topic statistics
func (r *TopicRegistry) GetTopicStats() map[string]map[string]interface{} {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := make(map[string]map[string]interface{})

	for topic, info := range r.topics {
		stats[topic] = map[string]interface{}{
			"count":      info.StatCount,
			"last_stamp": info.LastStamp,
			"type":       info.MessageType,
			"direction":  info.Direction,
		}
	}

	return stats
}
