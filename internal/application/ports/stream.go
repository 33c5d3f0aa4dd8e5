package ports

// ConnectionStatus is the lifecycle state of the stream subscription.
type ConnectionStatus string

const (
	StatusDisconnected ConnectionStatus = "disconnected"
	StatusConnecting   ConnectionStatus = "connecting"
	StatusConnected    ConnectionStatus = "connected"
	StatusReconnecting ConnectionStatus = "reconnecting"
	StatusFailed       ConnectionStatus = "failed"
)

// ConnectionState is a read-only snapshot of the subscription's state.
// Derived flags are computed on read, never stored, so they cannot
// diverge from Status.
type ConnectionState struct {
	Status             ConnectionStatus `json:"status"`
	RetryCount         int              `json:"retry_count"`
	LastError          string           `json:"last_error,omitempty"`
	NextRetryInSeconds int              `json:"next_retry_in_seconds,omitempty"`
}

// IsConnected reports whether the subscription is live.
func (s ConnectionState) IsConnected() bool {
	return s.Status == StatusConnected
}

// IsReconnecting reports whether a retry is pending or in progress.
func (s ConnectionState) IsReconnecting() bool {
	return s.Status == StatusReconnecting
}

// IsFailed reports whether retries are exhausted and only an explicit
// reconnect can recover the subscription.
func (s ConnectionState) IsFailed() bool {
	return s.Status == StatusFailed
}

// Frame is one raw event delivered by the stream, before any domain
// interpretation.
type Frame struct {
	ID   string
	Name string
	Data []byte
}

// FrameHandler consumes dispatched frames. Name is the event name, data
// the decoded JSON payload bytes.
type FrameHandler func(name string, data []byte)

// StateHandler observes connection state transitions.
type StateHandler func(state ConnectionState)

// Unsubscribe removes a previously registered handler. Safe to call
// more than once.
type Unsubscribe func()

// StreamSource is the resilient push subscription. Implementations own
// exactly one transport at a time and recover from drops with bounded
// exponential backoff.
type StreamSource interface {
	// Subscribe opens the subscription from the disconnected state. A
	// no-op while connected, connecting, or waiting on a retry; a
	// failed subscription recovers only via ForceReconnect.
	Subscribe()

	// Unsubscribe tears down the transport, cancels pending timers,
	// resets state to disconnected, and removes all registered
	// handlers. A later Subscribe starts from a clean slate.
	Unsubscribe()

	// ForceReconnect tears down any transport, resets the retry budget,
	// and connects immediately. The only recovery path out of the
	// failed state.
	ForceReconnect()

	// State returns a snapshot of the connection state.
	State() ConnectionState

	// OnFrame registers a handler for dispatched frames.
	OnFrame(handler FrameHandler) Unsubscribe

	// OnStateChange registers a handler for state transitions.
	OnStateChange(handler StateHandler) Unsubscribe
}
