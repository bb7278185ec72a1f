package zeromq

import (
	"fmt"
	"sync"

	"github.com/pebbe/zmq4"

	message "github.com/open-rover/simnode/pkg/flatbuffers/rover/message"
	customlog "github.com/open-rover/simnode/pkg/log"
)

// Publisher sends snapshot bundles and events on a PUB socket.
type Publisher struct {
	socket  *zmq4.Socket
	logger  customlog.Logger
	running bool
	mu      sync.Mutex
}

// newPublisher creates a PUB socket bound to the given address.
func newPublisher(ctx *zmq4.Context, bindAddress string, logger customlog.Logger) (*Publisher, error) {
	socket, err := ctx.NewSocket(zmq4.PUB)
	if err != nil {
		return nil, fmt.Errorf("failed to create PUB socket: %w", err)
	}

	if err := socket.Bind(bindAddress); err != nil {
		socket.Close()
		return nil, fmt.Errorf("failed to bind to %s: %w", bindAddress, err)
	}

	if err := socket.SetLinger(0); err != nil {
		socket.Close()
		return nil, fmt.Errorf("failed to set linger option: %w", err)
	}

	logger.Infof("Publisher initialized on %s", bindAddress)

	return &Publisher{
		socket:  socket,
		logger:  logger,
		running: true,
	}, nil
}

// PublishMessage sends a message with the given topic as the
// subscription frame, then the envelope bytes.
func (p *Publisher) PublishMessage(topic string, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return ErrServiceClosed
	}

	if _, err := p.socket.Send(topic, zmq4.SNDMORE); err != nil {
		return fmt.Errorf("failed to send topic: %w", err)
	}

	if _, err := p.socket.SendBytes(data, 0); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}

	return nil
}

// PublishEnvelope wraps the payload in a BusMessage and publishes it.
func (p *Publisher) PublishEnvelope(topic string, contentType message.ContentType, timestampNs int64, payload []byte) error {
	return p.PublishMessage(topic, EncodeEnvelope(topic, contentType, timestampNs, payload))
}

// Close cleans up resources
func (p *Publisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.running = false
	if p.socket != nil {
		p.socket.Close()
		p.socket = nil
	}
}
