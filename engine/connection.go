package engine

import (
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/corvidio/wsconn/closecode"
	"github.com/google/uuid"
)

// messageState tracks reassembly mode across fragmented frames,
// invariant I1: messageState == unknown iff messageBuffer is empty.
type messageState int

const (
	stateUnknown messageState = iota
	stateText
	stateBinary
)

// Options configures a Connection at attach time. Fields mirror the
// data model spec.md §3 names explicitly.
type Options struct {
	// Request is the immutable upgrade request snapshot, consulted for
	// Sec-WebSocket-Extensions negotiation.
	Request *http.Request

	// ConnectionTimeout, when non-nil, is halved to produce the idle
	// detector's interval (spec.md §4.4).
	ConnectionTimeout *int

	// Limits bounds frame and message sizes; nil selects
	// DefaultLimits().
	Limits *Limits

	// Logger receives structured diagnostics at state-transition
	// points. A nil Logger falls back to slog.Default(), matching the
	// corpus convention (absmach-mproxy's websocket parser).
	Logger *slog.Logger

	// IdleDetector overrides the default timer-based detector; mainly
	// for tests. A nil value selects NewTimerIdleDetector().
	IdleDetector IdleDetector

	// Metrics overrides the default metrics recorder; a nil value
	// selects the package-level default recorder.
	Metrics *Metrics
}

// Limits bounds frame and message sizes. The inbound processor enforces
// only MaxMessageLength, on reassembled fragments; MaxControlPayload and
// MaxFrameLength are carried but not read by this package. It mirrors wsconfig.Limits; callers that already hold a wsconfig.Store
// convert with LimitsFromConfig.
type Limits struct {
	MaxControlPayload int64
	MaxFrameLength    int64
	MaxMessageLength  int64
}

// LimitsFromConfig adapts a wsconfig-shaped limits triple into engine.Limits
// without engine importing wsconfig, keeping the dependency one-directional
// (wsconfig has no reason to know about engine.Connection).
func LimitsFromConfig(maxControlPayload, maxFrameLength, maxMessageLength int64) Limits {
	return Limits{MaxControlPayload: maxControlPayload, MaxFrameLength: maxFrameLength, MaxMessageLength: maxMessageLength}
}

// Connection is one active WebSocket session: the state machine spec.md
// §3–§4 describes. Fields below are only ever mutated from the task
// queue's worker goroutine (the "channel's execution context"), except
// where noted, so no additional locking protects them.
type Connection struct {
	id      string
	request *http.Request
	logger  *slog.Logger
	metrics *Metrics

	service Service

	// chMu guards channel, which is cleared on Detach and read by
	// every exported method that may be called concurrently with
	// Detach from another goroutine.
	chMu    sync.RWMutex
	channel Channel

	tasks *taskQueue

	messageState  messageState
	messageBuffer []byte

	connectionTimeout *int
	waitingForPong    bool
	awaitClose        bool

	// disconnectedFired guards invariant I3 (fire at most once) and is
	// also read by Attach/Detach, which can race with a task-queue
	// originated close, so it is protected by chMu rather than being
	// task-queue-only state.
	disconnectedFired bool

	extensionNegotiated bool
	limits              Limits

	idle IdleDetector
}

// NewConnection constructs a Connection in the Open state, not yet
// attached to a channel. Call Attach once the channel is ready to
// exchange frames.
func NewConnection(service Service, opts Options) *Connection {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	lim := DefaultLimits()
	if opts.Limits != nil {
		lim = *opts.Limits
	}
	idle := opts.IdleDetector
	if idle == nil {
		idle = NewTimerIdleDetector()
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = defaultMetrics
	}

	c := &Connection{
		id:                uuid.NewString(),
		request:           opts.Request,
		logger:            logger,
		metrics:           metrics,
		service:           service,
		tasks:             newTaskQueue(),
		connectionTimeout: opts.ConnectionTimeout,
		limits:            lim,
		idle:              idle,
	}
	if opts.Request != nil {
		c.extensionNegotiated = negotiatedPermessageDeflate(opts.Request)
	}
	return c
}

// DefaultLimits mirrors wsconfig.DefaultLimits without importing
// wsconfig, so tests that don't care about configuration can omit it.
func DefaultLimits() Limits {
	return Limits{MaxControlPayload: 125, MaxFrameLength: 1 << 20, MaxMessageLength: 16 << 20}
}

// ID returns the connection's stable opaque identifier.
func (c *Connection) ID() string { return c.id }

// Request returns the immutable upgrade request snapshot, or nil if
// none was supplied.
func (c *Connection) Request() *http.Request { return c.request }

// negotiatedPermessageDeflate implements spec.md §4.1.1 / §6's
// extension-negotiation rule: split Sec-WebSocket-Extensions on ";",
// treat the first token as the negotiated extension.
func negotiatedPermessageDeflate(r *http.Request) bool {
	header := r.Header.Get("Sec-WebSocket-Extensions")
	if header == "" {
		return false
	}
	first := strings.TrimSpace(strings.Split(header, ";")[0])
	return strings.EqualFold(first, "permessage-deflate")
}

// Attach binds the Connection to channel, fires Service.Connected, and
// — if ConnectionTimeout was configured — starts the idle detector at
// half that interval measured against all-direction I/O, per spec.md
// §4.4.
func (c *Connection) Attach(channel Channel) {
	c.chMu.Lock()
	c.channel = channel
	c.chMu.Unlock()

	if c.connectionTimeout != nil && *c.connectionTimeout > 0 {
		interval := time.Duration(*c.connectionTimeout) * time.Second / 2
		c.idle.Start(interval, func() { c.tasks.Submit(c.onIdleSync) })
	}

	c.tasks.Submit(func() { c.service.Connected(c) })
}

// Detach clears the non-owning channel reference and, if the service
// has not yet been notified of disconnection, fires it with
// NoReasonCodeSent per the state machine's Closed transition
// (spec.md §4.6).
func (c *Connection) Detach() {
	c.idle.Stop()

	c.chMu.Lock()
	c.channel = nil
	already := c.disconnectedFired
	if !already {
		c.disconnectedFired = true
	}
	c.chMu.Unlock()

	if !already {
		reason := closecode.NoReasonCodeSent()
		c.logger.Debug("connection detached without prior close frame", slog.String("conn_id", c.id))
		c.tasks.Submit(func() {
			c.metrics.observeDisconnect(reason.Reason)
			c.service.Disconnected(c, reason)
		})
	}

	c.tasks.Close()
}

func (c *Connection) currentChannel() Channel {
	c.chMu.RLock()
	defer c.chMu.RUnlock()
	return c.channel
}

// markDisconnected fires Service.Disconnected exactly once, per
// invariant I3. Must be called from the task queue's worker goroutine.
func (c *Connection) markDisconnected(reason closecode.CloseReason) {
	c.chMu.Lock()
	if c.disconnectedFired {
		c.chMu.Unlock()
		return
	}
	c.disconnectedFired = true
	c.chMu.Unlock()

	c.metrics.observeDisconnect(reason.Reason)
	c.service.Disconnected(c, reason)
}
