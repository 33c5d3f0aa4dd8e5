package stream

import (
	"sync"

	"github.com/preludium/taskwatch/internal/application/ports"
	"github.com/preludium/taskwatch/internal/infrastructure/logging"
)

// dispatcher fans dispatched frames out to registered handlers. One
// handler panicking must not stop the others, and removal tokens stay
// safe to call after the dispatcher has been reset.
type dispatcher struct {
	mu       sync.Mutex
	handlers map[int]ports.FrameHandler
	nextID   int
	logger   *logging.Logger
}

func newDispatcher(logger *logging.Logger) *dispatcher {
	return &dispatcher{
		handlers: make(map[int]ports.FrameHandler),
		logger:   logger,
	}
}

// add registers a handler and returns its removal token.
func (d *dispatcher) add(handler ports.FrameHandler) ports.Unsubscribe {
	d.mu.Lock()
	defer d.mu.Unlock()

	id := d.nextID
	d.nextID++
	d.handlers[id] = handler

	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		delete(d.handlers, id)
	}
}

// dispatch invokes every registered handler with the frame, isolating
// per-handler panics.
func (d *dispatcher) dispatch(name string, data []byte) {
	d.mu.Lock()
	handlers := make([]ports.FrameHandler, 0, len(d.handlers))
	for _, handler := range d.handlers {
		handlers = append(handlers, handler)
	}
	d.mu.Unlock()

	for _, handler := range handlers {
		d.invoke(handler, name, data)
	}
}

func (d *dispatcher) invoke(handler ports.FrameHandler, name string, data []byte) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("event handler panicked",
				"event", name,
				"panic", r,
			)
		}
	}()
	handler(name, data)
}

// reset drops every registered handler. Outstanding removal tokens
// become no-ops.
func (d *dispatcher) reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers = make(map[int]ports.FrameHandler)
}

// len reports the number of registered handlers.
func (d *dispatcher) len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.handlers)
}
