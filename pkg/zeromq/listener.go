package zeromq

import (
	"fmt"
	"sync"
	"time"

	"github.com/pebbe/zmq4"

	customlog "github.com/open-rover/simnode/pkg/log"
)

// CommandHandler processes the payload of an inbound command envelope.
type CommandHandler interface {
	HandleCommand(topic string, payload []byte) error
}

// CommandHandlerFunc is a function type that implements CommandHandler
type CommandHandlerFunc func(topic string, payload []byte) error

// HandleCommand calls the function
func (f CommandHandlerFunc) HandleCommand(topic string, payload []byte) error {
	return f(topic, payload)
}

// Dispatcher routes inbound envelopes to the handler registered for
// their topic.
type Dispatcher struct {
	handlers map[string]CommandHandler
	logger   customlog.Logger
	mu       sync.RWMutex
}

// NewDispatcher creates a new command dispatcher
func NewDispatcher(logger customlog.Logger) *Dispatcher {
	return &Dispatcher{
		handlers: make(map[string]CommandHandler),
		logger:   logger,
	}
}

// RegisterHandler adds a handler for a specific bus topic
func (d *Dispatcher) RegisterHandler(topic string, handler CommandHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.handlers[topic] = handler
	d.logger.Infof("Registered handler for topic: %s", topic)
}

// Dispatch decodes an envelope and routes it to its topic handler.
// A malformed buffer that panics inside the FlatBuffer accessors is
// converted to an error so the receive loop keeps running.
func (d *Dispatcher) Dispatch(data []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrInvalidEnvelope, r)
		}
	}()

	busMsg, err := DecodeEnvelope(data)
	if err != nil {
		return err
	}

	topic := string(busMsg.Topic())

	d.mu.RLock()
	handler, exists := d.handlers[topic]
	d.mu.RUnlock()

	if !exists {
		return fmt.Errorf("%w: %s", ErrUnknownTopic, topic)
	}

	return handler.HandleCommand(topic, busMsg.PayloadBytes())
}

// CommandListener receives inbound command envelopes on a SUB socket
// and hands them to the dispatcher. Handlers are expected to be quick
// non-blocking overwrites; there is no queue between the socket and the
// handler.
type CommandListener struct {
	socket     *zmq4.Socket
	dispatcher *Dispatcher
	poller     *zmq4.Poller
	logger     customlog.Logger
	running    bool
	mu         sync.Mutex
	wg         *sync.WaitGroup
}

// newCommandListener creates a SUB socket bound to the given address,
// subscribed to all topics.
func newCommandListener(ctx *zmq4.Context, bindAddress string, dispatcher *Dispatcher, logger customlog.Logger, wg *sync.WaitGroup) (*CommandListener, error) {
	socket, err := ctx.NewSocket(zmq4.SUB)
	if err != nil {
		return nil, fmt.Errorf("failed to create SUB socket: %w", err)
	}

	if err := socket.SetSubscribe(""); err != nil {
		socket.Close()
		return nil, fmt.Errorf("failed to set subscription: %w", err)
	}

	if err := socket.Bind(bindAddress); err != nil {
		socket.Close()
		return nil, fmt.Errorf("failed to bind to %s: %w", bindAddress, err)
	}

	if err := socket.SetLinger(0); err != nil {
		socket.Close()
		return nil, fmt.Errorf("failed to set linger option: %w", err)
	}

	const socketTimeout = 1 * time.Second
	if err := socket.SetRcvtimeo(socketTimeout); err != nil {
		socket.Close()
		return nil, fmt.Errorf("failed to set receive timeout: %w", err)
	}

	poller := zmq4.NewPoller()
	poller.Add(socket, zmq4.POLLIN)

	logger.Infof("CommandListener initialized on %s", bindAddress)

	return &CommandListener{
		socket:     socket,
		dispatcher: dispatcher,
		poller:     poller,
		logger:     logger,
		wg:         wg,
	}, nil
}

// Start begins the receive loop
func (l *CommandListener) Start() {
	l.mu.Lock()
	if l.running {
		l.mu.Unlock()
		return
	}
	l.running = true
	l.mu.Unlock()

	l.wg.Add(1)

	go func() {
		defer l.wg.Done()
		l.logger.Infof("CommandListener started")

		for l.isRunning() {
			// Poll with timeout to allow for clean shutdown
			sockets, err := l.poller.Poll(500 * time.Millisecond)
			if err != nil {
				if l.isRunning() {
					l.logger.Errorf("Error polling socket: %v", err)
				}
				continue
			}

			if len(sockets) == 0 {
				continue
			}

			msg, err := l.socket.RecvBytes(0)
			if err != nil {
				if l.isRunning() {
					l.logger.Errorf("Error receiving message: %v", err)
				}
				continue
			}

			if err := l.dispatcher.Dispatch(msg); err != nil {
				// A bad update never stops the loop; log and keep going.
				l.logger.Warnf("Error dispatching command: %v", err)
			}
		}
	}()
}

func (l *CommandListener) isRunning() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.running
}

// Stop halts the receive loop and closes the socket to interrupt any
// blocking call.
func (l *CommandListener) Stop() {
	l.mu.Lock()
	if !l.running {
		l.mu.Unlock()
		return
	}
	l.running = false
	l.mu.Unlock()

	if l.socket != nil {
		l.socket.Close()
	}
}
