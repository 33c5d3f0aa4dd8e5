package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/preludium/taskwatch/internal/application/ports"
	"github.com/preludium/taskwatch/internal/domain/errors"
	"github.com/preludium/taskwatch/internal/domain/task"
	"github.com/preludium/taskwatch/internal/infrastructure/logging"
	"github.com/preludium/taskwatch/internal/infrastructure/tracing"
)

// Reconnect timing constants. These are contract values the backend's
// clients share, not tunables.
const (
	MaxRetries     = 10
	BaseRetryDelay = 1000 * time.Millisecond
	MaxRetryDelay  = 30000 * time.Millisecond
)

// backoffDelay returns the wait before the next reconnect attempt:
// BaseRetryDelay doubled per prior failure, capped at MaxRetryDelay.
func backoffDelay(retryCount int) time.Duration {
	delay := BaseRetryDelay * time.Duration(1<<retryCount)
	if delay > MaxRetryDelay || delay <= 0 {
		return MaxRetryDelay
	}
	return delay
}

// Config holds stream subscription settings.
type Config struct {
	// URL is the full event stream endpoint.
	URL string

	// StallTimeout closes the transport when no frame (heartbeats
	// included) arrives within it. Zero disables stall detection.
	StallTimeout time.Duration

	// ReadBufferSize caps a single frame line. Zero uses the scanner
	// default.
	ReadBufferSize int
}

// transport opens one event stream connection. Split out so tests can
// drive the manager without a network.
type transport interface {
	open(ctx context.Context, lastEventID string) (io.ReadCloser, error)
}

// httpTransport is the production transport over net/http. The client
// carries no timeout: the stream is long-lived by design and stall
// detection is the manager's job.
type httpTransport struct {
	client *http.Client
	url    string
}

func newHTTPTransport(url string) *httpTransport {
	return &httpTransport{
		client: &http.Client{},
		url:    url,
	}
}

func (t *httpTransport) open(ctx context.Context, lastEventID string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.url, nil)
	if err != nil {
		return nil, errors.NewError(errors.CodeTransport, "failed to create stream request", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	if lastEventID != "" {
		req.Header.Set("Last-Event-ID", lastEventID)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, errors.NewError(errors.CodeTransport, "stream connection failed", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, errors.NewError(errors.CodeTransport,
			fmt.Sprintf("stream endpoint returned HTTP %d", resp.StatusCode), nil)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.Contains(ct, "text/event-stream") {
		resp.Body.Close()
		return nil, errors.NewError(errors.CodeTransport,
			fmt.Sprintf("stream endpoint returned content type %q", ct), nil)
	}
	return resp.Body, nil
}

// Manager owns one event stream subscription: the single transport
// handle, the retry state machine, and handler registration. All state
// is guarded by one mutex; transport callbacks and timers carry a
// generation token, and a token minted before the latest teardown makes
// its callback a no-op. That keeps dangling timers and half-dead read
// loops from mutating state after Unsubscribe or ForceReconnect.
type Manager struct {
	config    Config
	transport transport
	logger    *logging.Logger
	tracer    *tracing.Tracer

	mu          sync.Mutex
	generation  int
	state       ports.ConnectionState
	body        io.ReadCloser
	lastEventID string

	retryTimer *time.Timer
	countdown  *time.Timer
	stall      *time.Timer

	frames *dispatcher

	stateHandlers map[int]ports.StateHandler
	nextStateID   int
}

// NewManager creates a stream manager for the endpoint in config.
func NewManager(config Config, logger *logging.Logger, tracer *tracing.Tracer) *Manager {
	return newManager(config, newHTTPTransport(config.URL), logger, tracer)
}

func newManager(config Config, t transport, logger *logging.Logger, tracer *tracing.Tracer) *Manager {
	return &Manager{
		config:        config,
		transport:     t,
		logger:        logger,
		tracer:        tracer,
		state:         ports.ConnectionState{Status: ports.StatusDisconnected},
		frames:        newDispatcher(logger),
		stateHandlers: make(map[int]ports.StateHandler),
	}
}

// Subscribe opens the subscription. Only the disconnected state
// connects: a live or pending connection is left alone, and a failed
// one recovers only through ForceReconnect.
func (m *Manager) Subscribe() {
	m.mu.Lock()
	if m.state.Status != ports.StatusDisconnected {
		m.mu.Unlock()
		return
	}

	m.generation++
	gen := m.generation
	m.state = ports.ConnectionState{Status: ports.StatusConnecting}
	handlers, state := m.stateListenersLocked()
	m.mu.Unlock()

	m.emitState(handlers, state)
	go m.connect(gen)
}

// Unsubscribe tears everything down: transport, timers, state, and
// every registered handler. The subscription can be reopened with
// Subscribe and starts clean.
func (m *Manager) Unsubscribe() {
	m.mu.Lock()
	m.generation++
	m.teardownLocked()
	m.state = ports.ConnectionState{Status: ports.StatusDisconnected}
	m.stateHandlers = make(map[int]ports.StateHandler)
	m.mu.Unlock()

	m.frames.reset()
}

// ForceReconnect discards any current transport and timers, resets the
// retry budget, and connects immediately. Works from every state,
// including failed.
func (m *Manager) ForceReconnect() {
	m.mu.Lock()
	m.generation++
	gen := m.generation
	m.teardownLocked()
	m.state = ports.ConnectionState{Status: ports.StatusConnecting}
	handlers, state := m.stateListenersLocked()
	m.mu.Unlock()

	m.emitState(handlers, state)
	go m.connect(gen)
}

// State returns a snapshot of the connection state.
func (m *Manager) State() ports.ConnectionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// OnFrame registers a handler for dispatched frames.
func (m *Manager) OnFrame(handler ports.FrameHandler) ports.Unsubscribe {
	return m.frames.add(handler)
}

// OnStateChange registers a handler for state transitions.
func (m *Manager) OnStateChange(handler ports.StateHandler) ports.Unsubscribe {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextStateID
	m.nextStateID++
	m.stateHandlers[id] = handler

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.stateHandlers, id)
	}
}

// connect runs one connect attempt plus its read loop. gen pins the
// attempt to the teardown epoch it was scheduled under.
func (m *Manager) connect(gen int) {
	m.mu.Lock()
	if gen != m.generation {
		m.mu.Unlock()
		return
	}
	lastEventID := m.lastEventID
	retryCount := m.state.RetryCount
	m.mu.Unlock()

	ctx := logging.WithCorrelationID(context.Background())
	_, span := m.tracer.StartSubscriptionSpan(ctx, m.config.URL, retryCount)

	body, err := m.transport.open(ctx, lastEventID)
	if err != nil {
		span.EndWithError(err)
		m.transportError(gen, err)
		return
	}

	m.mu.Lock()
	if gen != m.generation {
		m.mu.Unlock()
		body.Close()
		span.End()
		return
	}
	m.body = body
	m.clearTimersLocked()
	m.armStallLocked(gen)
	m.state = ports.ConnectionState{Status: ports.StatusConnected}
	handlers, state := m.stateListenersLocked()
	m.mu.Unlock()

	m.logger.InfoContext(ctx, "stream connected", "endpoint", m.config.URL)
	m.emitState(handlers, state)

	frameCount := 0
	err = readFrames(body, m.config.ReadBufferSize, func(frame ports.Frame) {
		frameCount++
		m.handleFrame(gen, span, frame)
	})
	if err == nil {
		err = errors.NewError(errors.CodeTransport, "stream closed by server", nil)
	}

	span.SetFrameCount(frameCount)
	span.EndWithError(err)
	m.transportError(gen, err)
}

// handleFrame processes one frame from a live transport. Housekeeping
// frames are consumed here; domain frames are validated and dispatched.
func (m *Manager) handleFrame(gen int, span *tracing.SubscriptionSpan, frame ports.Frame) {
	m.mu.Lock()
	if gen != m.generation {
		m.mu.Unlock()
		return
	}
	if m.stall != nil {
		m.stall.Reset(m.config.StallTimeout)
	}
	if frame.ID != "" {
		m.lastEventID = frame.ID
	}

	switch frame.Name {
	case task.EventHeartbeat:
		m.mu.Unlock()
		m.logger.Debug("stream heartbeat")
		return
	case task.EventConnectionEstablished:
		m.mu.Unlock()
		var hello struct {
			ConnectionID string `json:"connection_id"`
		}
		if json.Unmarshal(frame.Data, &hello) == nil && hello.ConnectionID != "" {
			span.SetConnectionID(hello.ConnectionID)
			m.logger.Info("stream session established", "connection_id", hello.ConnectionID)
		}
		return
	}

	if len(frame.Data) == 0 || !json.Valid(frame.Data) {
		m.state.LastError = fmt.Sprintf("malformed payload on %q frame", frame.Name)
		handlers, state := m.stateListenersLocked()
		m.mu.Unlock()

		m.logger.Warn("dropping undecodable frame", "event", frame.Name)
		m.emitState(handlers, state)
		return
	}
	m.mu.Unlock()

	m.frames.dispatch(frame.Name, frame.Data)
}

// transportError drives the retry state machine after a transport
// failure. The failed transport's generation is retired so its late
// callbacks cannot interfere with the retry it schedules.
func (m *Manager) transportError(gen int, err error) {
	m.mu.Lock()
	if gen != m.generation {
		m.mu.Unlock()
		return
	}
	m.generation++
	gen = m.generation
	m.teardownLocked()
	m.state.LastError = err.Error()

	if m.state.RetryCount >= MaxRetries {
		m.state.Status = ports.StatusFailed
		m.state.NextRetryInSeconds = 0
		handlers, state := m.stateListenersLocked()
		m.mu.Unlock()

		m.logger.Error("stream retries exhausted",
			"retries", MaxRetries,
			"error", err,
		)
		m.emitState(handlers, state)
		return
	}

	delay := backoffDelay(m.state.RetryCount)
	m.state.RetryCount++
	m.state.Status = ports.StatusReconnecting
	m.state.NextRetryInSeconds = int(delay / time.Second)

	m.retryTimer = time.AfterFunc(delay, func() { m.retryFire(gen) })
	m.countdown = time.AfterFunc(time.Second, func() { m.countdownTick(gen) })

	handlers, state := m.stateListenersLocked()
	m.mu.Unlock()

	m.logger.Warn("stream disconnected, retry scheduled",
		"error", err,
		"retry_count", state.RetryCount,
		"delay", delay,
	)
	m.emitState(handlers, state)
}

// retryFire runs when the backoff delay elapses.
func (m *Manager) retryFire(gen int) {
	m.mu.Lock()
	if gen != m.generation {
		m.mu.Unlock()
		return
	}
	m.generation++
	gen = m.generation
	m.clearTimersLocked()
	m.state.NextRetryInSeconds = 0
	m.mu.Unlock()

	m.connect(gen)
}

// countdownTick decrements the observable seconds-until-retry once per
// second while a retry is pending.
func (m *Manager) countdownTick(gen int) {
	m.mu.Lock()
	if gen != m.generation {
		m.mu.Unlock()
		return
	}
	if m.state.NextRetryInSeconds > 0 {
		m.state.NextRetryInSeconds--
	}
	if m.state.NextRetryInSeconds > 0 {
		m.countdown = time.AfterFunc(time.Second, func() { m.countdownTick(gen) })
	}
	handlers, state := m.stateListenersLocked()
	m.mu.Unlock()

	m.emitState(handlers, state)
}

// armStallLocked starts the per-connection stall watchdog. Caller holds
// m.mu.
func (m *Manager) armStallLocked(gen int) {
	if m.config.StallTimeout <= 0 {
		return
	}
	m.stall = time.AfterFunc(m.config.StallTimeout, func() { m.stallFire(gen) })
}

// stallFire closes a transport that has gone silent; the read loop
// surfaces the close as a transport error.
func (m *Manager) stallFire(gen int) {
	m.mu.Lock()
	if gen != m.generation {
		m.mu.Unlock()
		return
	}
	body := m.body
	m.mu.Unlock()

	m.logger.Warn("stream stalled, closing transport",
		"stall_timeout", m.config.StallTimeout,
	)
	if body != nil {
		body.Close()
	}
}

// teardownLocked closes the transport and clears all timers. Caller
// holds m.mu and has already advanced the generation.
func (m *Manager) teardownLocked() {
	if m.body != nil {
		m.body.Close()
		m.body = nil
	}
	m.clearTimersLocked()
}

// clearTimersLocked stops any pending retry, countdown, and stall
// timers. Caller holds m.mu.
func (m *Manager) clearTimersLocked() {
	if m.retryTimer != nil {
		m.retryTimer.Stop()
		m.retryTimer = nil
	}
	if m.countdown != nil {
		m.countdown.Stop()
		m.countdown = nil
	}
	if m.stall != nil {
		m.stall.Stop()
		m.stall = nil
	}
}

// stateListenersLocked snapshots the state and its listeners so the
// caller can notify after releasing m.mu.
func (m *Manager) stateListenersLocked() ([]ports.StateHandler, ports.ConnectionState) {
	handlers := make([]ports.StateHandler, 0, len(m.stateHandlers))
	for _, handler := range m.stateHandlers {
		handlers = append(handlers, handler)
	}
	return handlers, m.state
}

// emitState invokes state listeners outside the lock, isolating
// per-listener panics.
func (m *Manager) emitState(handlers []ports.StateHandler, state ports.ConnectionState) {
	for _, handler := range handlers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					m.logger.Error("state handler panicked", "panic", r)
				}
			}()
			handler(state)
		}()
	}
}

// Ensure Manager implements the stream port.
var _ ports.StreamSource = (*Manager)(nil)
