// Package broadcast fans out gesture events to connected WebSocket
// subscribers with bounded, non-blocking per-subscriber delivery.
package broadcast

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/ayusman/gesturecast/internal/statemachine"
)

// DefaultQueueCapacity is the default bound on a subscriber's outbound
// queue.
const DefaultQueueCapacity = 64

// DefaultIdleTimeout is how long a subscriber may go without sending any
// message before its connection is closed.
const DefaultIdleTimeout = 60 * time.Second

// DefaultStatusInterval is how often a status message is broadcast.
const DefaultStatusInterval = time.Second

// Conn is the minimal transport surface a Subscriber needs. The concrete
// implementation is *websocket.Conn; tests use a fake.
type Conn interface {
	WriteJSON(v interface{}) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	ReadMessage() (messageType int, p []byte, err error)
	SetReadDeadline(t time.Time) error
	Close() error
}

// Config parameterizes the broadcaster.
type Config struct {
	QueueCapacity  int
	IdleTimeout    time.Duration
	StatusInterval time.Duration
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		QueueCapacity:  DefaultQueueCapacity,
		IdleTimeout:    DefaultIdleTimeout,
		StatusInterval: DefaultStatusInterval,
	}
}

type outbound struct {
	payload  interface{}
	isStatus bool
}

// Subscriber is one connected client: its own outbound queue and drop
// counter, born on connect and destroyed on disconnect/send failure.
type Subscriber struct {
	ID string

	conn    Conn
	cfg     Config
	log     zerolog.Logger
	metrics *Metrics

	mu        sync.Mutex
	queue     []outbound
	dropCount int

	mirroring int32 // atomic bool: 0/1

	done      chan struct{}
	wake      chan struct{}
	closeOnce sync.Once
	onClose   func(*Subscriber)
}

// DropCount returns the number of events dropped from this subscriber's
// outbound queue so far.
func (s *Subscriber) DropCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropCount
}

func (s *Subscriber) mirrorEnabled() bool {
	return atomic.LoadInt32(&s.mirroring) == 1
}

func (s *Subscriber) setMirror(on bool) {
	v := int32(0)
	if on {
		v = 1
	}
	atomic.StoreInt32(&s.mirroring, v)
}

func (s *Subscriber) enqueue(msg outbound) {
	s.mu.Lock()
	if len(s.queue) >= s.cfg.QueueCapacity {
		if msg.isStatus {
			// Status messages never displace an existing entry; the new
			// one is simply dropped: status always loses to gesture
			// events on overflow.
			s.mu.Unlock()
			s.metrics.StatusDropped.Inc()
			return
		}
		if idx := s.oldestStatusIndexLocked(); idx >= 0 {
			s.queue = append(s.queue[:idx], s.queue[idx+1:]...)
			s.metrics.StatusDropped.Inc()
		} else {
			s.queue = s.queue[1:]
			s.dropCount++
			s.metrics.EventsDropped.WithLabelValues(s.ID).Inc()
		}
	}
	s.queue = append(s.queue, msg)
	s.mu.Unlock()
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Subscriber) oldestStatusIndexLocked() int {
	for i, m := range s.queue {
		if m.isStatus {
			return i
		}
	}
	return -1
}

func (s *Subscriber) pop() (outbound, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return outbound{}, false
	}
	m := s.queue[0]
	s.queue = s.queue[1:]
	return m, true
}

func (s *Subscriber) writerLoop() {
	for {
		for {
			m, ok := s.pop()
			if !ok {
				break
			}
			if err := s.conn.WriteJSON(m.payload); err != nil {
				s.close("send failure")
				return
			}
		}
		select {
		case <-s.wake:
		case <-s.done:
			return
		}
	}
}

func (s *Subscriber) close(reason string) {
	s.closeOnce.Do(func() {
		close(s.done)
		// Attempt the close handshake so clients observe a normal closure
		// rather than a dropped TCP connection; a broken peer just fails
		// the write and we tear down regardless.
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		_ = s.conn.Close()
		s.metrics.SubscribersClosed.WithLabelValues(reason).Inc()
		if s.onClose != nil {
			s.onClose(s)
		}
	})
}

// Broadcaster owns the active-subscriber set and fans out events. publish
// is the only boundary between the vision loop and the concurrent
// subscriber tasks: it must never block on subscriber I/O.
type Broadcaster struct {
	cfg     Config
	log     zerolog.Logger
	metrics *Metrics

	mu   sync.Mutex
	subs map[string]*Subscriber

	clearHistory chan struct{}
}

// New creates a Broadcaster. If metrics is nil, a fresh instance from
// NewMetrics is used; the daemon passes the instance it shares with the
// pipeline.
func New(cfg Config, log zerolog.Logger, metrics *Metrics) *Broadcaster {
	if metrics == nil {
		metrics = NewMetrics()
	}
	return &Broadcaster{
		cfg:          cfg,
		log:          log.With().Str("component", "broadcaster").Logger(),
		metrics:      metrics,
		subs:         make(map[string]*Subscriber),
		clearHistory: make(chan struct{}, 1),
	}
}

// ClearHistoryRequested drains a pending clear_gesture_history request. The
// pipeline must call this once per tick; state mutation happens entirely
// on the vision-loop side, so the broadcaster never touches hand state.
func (b *Broadcaster) ClearHistoryRequested() bool {
	select {
	case <-b.clearHistory:
		return true
	default:
		return false
	}
}

func (b *Broadcaster) requestClearHistory() {
	select {
	case b.clearHistory <- struct{}{}:
	default:
	}
}

// Registry returns the Prometheus registry this broadcaster's metrics are
// registered against, for the health server's /metrics route.
func (b *Broadcaster) Registry() *prometheus.Registry {
	return b.metrics.Registry
}

// ActiveCount returns the number of currently connected subscribers.
func (b *Broadcaster) ActiveCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Serve registers conn as a new subscriber, sends the hello message, and
// runs its reader loop until disconnect or idle timeout. It blocks until
// the connection ends, so callers invoke it from the HTTP handler's own
// goroutine.
func (b *Broadcaster) Serve(conn Conn) {
	sub := &Subscriber{
		ID:      uuid.NewString(),
		conn:    conn,
		cfg:     b.cfg,
		log:     b.log,
		metrics: b.metrics,
		done:    make(chan struct{}),
		wake:    make(chan struct{}, 1),
		onClose: b.remove,
	}

	b.mu.Lock()
	b.subs[sub.ID] = sub
	b.mu.Unlock()
	b.metrics.SubscribersActive.Set(float64(b.ActiveCount()))

	go sub.writerLoop()

	hello := newHello()
	sub.enqueue(outbound{payload: hello})

	b.readLoop(sub)
}

func (b *Broadcaster) remove(sub *Subscriber) {
	b.mu.Lock()
	delete(b.subs, sub.ID)
	b.mu.Unlock()
	b.metrics.SubscribersActive.Set(float64(b.ActiveCount()))
}

func (b *Broadcaster) readLoop(sub *Subscriber) {
	defer sub.close("disconnect")
	for {
		if err := sub.conn.SetReadDeadline(time.Now().Add(b.cfg.IdleTimeout)); err != nil {
			return
		}
		_, data, err := sub.conn.ReadMessage()
		if err != nil {
			return
		}
		b.handleInbound(sub, data)
	}
}

func (b *Broadcaster) handleInbound(sub *Subscriber, data []byte) {
	var env inboundEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		b.log.Info().Err(err).Str("subscriber", sub.ID).Msg("ignoring unparseable subscriber message")
		return
	}
	switch env.Type {
	case "ping":
		var ping PingMessage
		if err := json.Unmarshal(data, &ping); err != nil {
			b.log.Info().Err(err).Str("subscriber", sub.ID).Msg("ignoring malformed ping")
			return
		}
		sub.enqueue(outbound{payload: newPong(ping.TimestampMS), isStatus: true})
	case "config":
		var cfg ConfigMessage
		if err := json.Unmarshal(data, &cfg); err != nil {
			b.log.Info().Err(err).Str("subscriber", sub.ID).Msg("ignoring malformed config message")
			return
		}
		sub.setMirror(cfg.MirrorMode)
	case "clear_gesture_history":
		b.requestClearHistory()
	default:
		b.log.Info().Str("subscriber", sub.ID).Str("type", env.Type).Msg("ignoring unrecognized message type")
	}
}

// Publish hands a GestureEvent to every subscriber's outbound queue (or
// records a drop). Total and non-blocking: returns immediately, never
// awaits subscriber I/O.
func (b *Broadcaster) Publish(evt statemachine.Event) {
	b.metrics.EventsPublished.Inc()

	b.mu.Lock()
	targets := make([]*Subscriber, 0, len(b.subs))
	for _, s := range b.subs {
		targets = append(targets, s)
	}
	b.mu.Unlock()

	for _, s := range targets {
		msg := toGestureMessage(evt, s.mirrorEnabled())
		s.enqueue(outbound{payload: msg})
	}
}

// PublishStatus hands a periodic status message to every subscriber.
func (b *Broadcaster) PublishStatus(fps, latencyMS float64, handsDetected int) {
	msg := newStatus(fps, latencyMS, handsDetected)

	b.mu.Lock()
	targets := make([]*Subscriber, 0, len(b.subs))
	for _, s := range b.subs {
		targets = append(targets, s)
	}
	b.mu.Unlock()

	for _, s := range targets {
		s.enqueue(outbound{payload: msg, isStatus: true})
	}
}

func toGestureMessage(evt statemachine.Event, mirror bool) GestureMessage {
	x := evt.Metadata.HandCenter.X
	if mirror {
		x = 1 - x
	}
	return GestureMessage{
		Type:        "gesture",
		Gesture:     string(evt.Label),
		Confidence:  roundTo3dp(evt.Confidence),
		HandID:      evt.HandID,
		TimestampMS: evt.TimestampMS,
		Metadata: GestureMetadata{
			HandCenter:      [2]float64{x, evt.Metadata.HandCenter.Y},
			HandSize:        evt.Metadata.HandSize,
			FingersExtended: evt.Metadata.FingersExtended,
		},
	}
}

func roundTo3dp(v float64) float64 {
	const scale = 1000.0
	return float64(int64(v*scale+0.5)) / scale
}

// Shutdown closes every active subscriber with a normal close, used when
// the vision loop signals shutdown after draining pending publishes.
func (b *Broadcaster) Shutdown() {
	b.mu.Lock()
	targets := make([]*Subscriber, 0, len(b.subs))
	for _, s := range b.subs {
		targets = append(targets, s)
	}
	b.mu.Unlock()

	for _, s := range targets {
		s.close("shutdown")
	}
}
