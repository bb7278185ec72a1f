// Package zeromq is the pub/sub edge of the node: a PUB socket carrying
// the per-tick snapshot bundles outward and a SUB socket delivering
// goal, pose-observation, and tilt commands inward.
package zeromq

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/pebbe/zmq4"

	"github.com/open-rover/simnode/pkg/config"
	message "github.com/open-rover/simnode/pkg/flatbuffers/rover/message"
	customlog "github.com/open-rover/simnode/pkg/log"
)

// Common errors
var (
	ErrServiceClosed = errors.New("zeromq service is closed")
	ErrUnknownTopic  = errors.New("no handler registered for topic")
)

// Service coordinates ZeroMQ communications for the node
type Service struct {
	ctx        *zmq4.Context
	publisher  *Publisher
	listener   *CommandListener
	dispatcher *Dispatcher
	logger     customlog.Logger
	running    bool
	mu         sync.Mutex
	wg         sync.WaitGroup
}

// NewService creates the PUB and SUB sockets from the bootstrap config
func NewService(cfg *config.BootstrapConfig, logger customlog.Logger) (*Service, error) {
	ctx, err := zmq4.NewContext()
	if err != nil {
		return nil, err
	}

	dispatcher := NewDispatcher(logger)

	s := &Service{
		ctx:        ctx,
		dispatcher: dispatcher,
		logger:     logger,
	}

	publisher, err := newPublisher(ctx, cfg.ZeroMQ.PublishBindAddress, logger)
	if err != nil {
		ctx.Term()
		return nil, err
	}
	s.publisher = publisher

	listener, err := newCommandListener(ctx, cfg.ZeroMQ.CommandBindAddress, dispatcher, logger, &s.wg)
	if err != nil {
		publisher.Close()
		ctx.Term()
		return nil, err
	}
	s.listener = listener

	return s, nil
}

// RegisterHandler adds a handler for a specific inbound topic
func (s *Service) RegisterHandler(topic string, handler CommandHandler) {
	s.dispatcher.RegisterHandler(topic, handler)
}

// RegisterHandlerFunc adds a handler function for a specific inbound topic
func (s *Service) RegisterHandlerFunc(topic string, handler func(topic string, payload []byte) error) {
	s.dispatcher.RegisterHandler(topic, CommandHandlerFunc(handler))
}

// Start begins the command listener
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}
	s.running = true
	s.logger.Infof("Starting ZeroMQ service")

	s.listener.Start()
	return nil
}

// Stop halts the listener, closes the sockets, and waits for the
// receive goroutine to finish.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	s.logger.Infof("Stopping ZeroMQ service")

	s.listener.Stop()
	s.publisher.Close()
	s.wg.Wait()

	if s.ctx != nil {
		s.ctx.Term()
		s.ctx = nil
	}

	s.logger.Infof("ZeroMQ service stopped")
}

// PublishEnvelope wraps a payload in a BusMessage and publishes it on
// the given topic.
func (s *Service) PublishEnvelope(topic string, contentType message.ContentType, timestampNs int64, payload []byte) error {
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()

	if !running {
		return ErrServiceClosed
	}
	return s.publisher.PublishEnvelope(topic, contentType, timestampNs, payload)
}

// PublishJSONEvent publishes a JSON-serializable event on the given topic.
func (s *Service) PublishJSONEvent(topic string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	return s.PublishEnvelope(topic, message.ContentTypeJSON_EVENT, time.Now().UnixNano(), payload)
}
