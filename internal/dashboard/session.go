// Package dashboard wires one stream reconciler and one activity deriver into
// a dashboard session and fans derived events out to sinks.
package dashboard

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mtzanidakis/evomap/internal/activity"
	"github.com/mtzanidakis/evomap/internal/config"
	"github.com/mtzanidakis/evomap/internal/fleet"
	"github.com/mtzanidakis/evomap/internal/metrics"
	"github.com/mtzanidakis/evomap/internal/reconciler"
	"github.com/mtzanidakis/evomap/internal/stream"
)

const (
	sinkBuffer  = 256
	sinkTimeout = 10 * time.Second
)

// Event types delivered to sinks.
const (
	EventActivity   = "activity"
	EventConnection = "connection"
)

type Event struct {
	Type      string    `json:"type"`
	SessionID string    `json:"session_id"`
	Time      time.Time `json:"time"`
	Payload   any       `json:"payload"`
}

// ConnectionPayload is the payload of EventConnection.
type ConnectionPayload struct {
	State     string `json:"state"`
	Connected bool   `json:"connected"`
}

// Sink receives dashboard events. Errors are logged and counted, never
// propagated to the stream.
type Sink interface {
	Name() string
	Publish(ctx context.Context, event Event) error
}

type Option func(*Session)

func WithLogger(l *slog.Logger) Option {
	return func(s *Session) { s.logger = l }
}

func WithDialer(d reconciler.Dialer) Option {
	return func(s *Session) { s.dialer = d }
}

func WithSink(sink Sink) Option {
	return func(s *Session) { s.sinks = append(s.sinks, sink) }
}

// Session is one dashboard's view of the fleet. Sessions share nothing.
type Session struct {
	id       string
	rec      *reconciler.Reconciler
	deriver  *activity.Deriver
	logger   *slog.Logger
	dialer   reconciler.Dialer
	sinks    []Sink
	events   chan Event
	attempts int

	mu           sync.RWMutex
	onActivity   []func(activity.Message)
	onConnection []func(bool)
}

func New(cfg *config.Config, opts ...Option) *Session {
	s := &Session{
		id:     uuid.NewString(),
		logger: slog.Default(),
		events: make(chan Event, sinkBuffer),
	}
	for _, o := range opts {
		o(s)
	}
	s.logger = s.logger.With("session", s.id)
	if s.dialer == nil {
		s.dialer = reconciler.WebsocketDialer{HandshakeTimeout: cfg.Stream.HandshakeTimeout}
	}

	s.rec = reconciler.New(reconciler.Options{
		URL:            cfg.Stream.Endpoint(),
		ReconnectDelay: cfg.Stream.ReconnectDelay,
		Dialer:         s.dialer,
		Logger:         s.logger,
	})
	s.deriver = activity.NewDeriver(cfg.Activity.LogCapacity)

	s.rec.OnUpdate(s.handleUpdate)
	s.rec.OnStateChange(s.handleState)
	s.rec.OnDrop(s.handleDrop)
	return s
}

func (s *Session) ID() string {
	return s.id
}

// OnActivity registers fn for every new activity entry.
func (s *Session) OnActivity(fn func(activity.Message)) {
	s.mu.Lock()
	s.onActivity = append(s.onActivity, fn)
	s.mu.Unlock()
}

// OnConnection registers fn for every change of the connected flag.
func (s *Session) OnConnection(fn func(bool)) {
	s.mu.Lock()
	s.onConnection = append(s.onConnection, fn)
	s.mu.Unlock()
}

// Run streams until ctx is cancelled. Sinks are served on a separate
// goroutine so a slow sink never stalls the stream.
func (s *Session) Run(ctx context.Context) error {
	dctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	if len(s.sinks) > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.dispatch(dctx)
		}()
	}
	err := s.rec.Run(ctx)

	// Teardown does not notify observers.
	metrics.Connected.Set(0)
	cancel()
	wg.Wait()
	return err
}

// HandleRaw feeds one frame to the reconciler as if it arrived on the stream.
func (s *Session) HandleRaw(data []byte) error {
	return s.rec.HandleRaw(data)
}

func (s *Session) Nodes() []fleet.Node {
	return s.rec.Nodes()
}

func (s *Session) Edges() []fleet.Edge {
	return s.rec.Edges()
}

// Agents returns the agent records behind the current nodes, in order.
func (s *Session) Agents() []fleet.Agent {
	nodes := s.rec.Nodes()
	out := make([]fleet.Agent, len(nodes))
	for i, n := range nodes {
		out[i] = n.Agent()
	}
	return out
}

// ActiveCount returns the number of agents that are not idle.
func (s *Session) ActiveCount() int {
	count := 0
	for _, n := range s.rec.Nodes() {
		if n.Status != fleet.StatusIdle {
			count++
		}
	}
	return count
}

func (s *Session) Activity() []activity.Message {
	return s.deriver.Messages()
}

func (s *Session) Connected() bool {
	return s.rec.Connected()
}

func (s *Session) MoveNode(id string, pos fleet.Position) bool {
	return s.rec.MoveNode(id, pos)
}

func (s *Session) handleUpdate(v reconciler.View) {
	if v.Cause != reconciler.CauseMove {
		metrics.MessagesTotal.WithLabelValues(v.Cause).Inc()
	}
	metrics.Nodes.Set(float64(len(v.Nodes)))
	metrics.Edges.Set(float64(len(v.Edges)))

	msgs := s.deriver.Reconcile(v.Nodes)
	if len(msgs) == 0 {
		return
	}

	s.mu.RLock()
	fns := s.onActivity
	s.mu.RUnlock()

	for _, m := range msgs {
		metrics.ActivityEntries.WithLabelValues(string(m.Status)).Inc()
		for _, fn := range fns {
			fn(m)
		}
		s.broadcast(Event{Type: EventActivity, SessionID: s.id, Time: m.Timestamp, Payload: m})
	}
}

func (s *Session) handleState(st reconciler.ConnState) {
	if st == reconciler.StateConnecting {
		if s.attempts > 0 {
			metrics.Reconnects.Inc()
		}
		s.attempts++
		return
	}

	connected := st == reconciler.StateConnected
	if connected {
		metrics.Connected.Set(1)
	} else {
		metrics.Connected.Set(0)
	}

	s.mu.RLock()
	fns := s.onConnection
	s.mu.RUnlock()
	for _, fn := range fns {
		fn(connected)
	}

	s.broadcast(Event{
		Type:      EventConnection,
		SessionID: s.id,
		Time:      time.Now(),
		Payload:   ConnectionPayload{State: st.String(), Connected: connected},
	})
}

func (s *Session) handleDrop(err error) {
	metrics.MessagesDropped.WithLabelValues(stream.Reason(err)).Inc()
}

func (s *Session) broadcast(e Event) {
	if len(s.sinks) == 0 {
		return
	}
	select {
	case s.events <- e:
	default:
		s.logger.Warn("sink channel full, dropping event", "type", e.Type)
	}
}

func (s *Session) dispatch(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case e := <-s.events:
			for _, sink := range s.sinks {
				pctx, cancel := context.WithTimeout(ctx, sinkTimeout)
				if err := sink.Publish(pctx, e); err != nil {
					metrics.SinkErrors.WithLabelValues(sink.Name()).Inc()
					s.logger.Error("sink publish failed", "sink", sink.Name(), "type", e.Type, "error", err)
				}
				cancel()
			}
		}
	}
}
