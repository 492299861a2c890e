// Package reconciler keeps the canonical agent and edge maps in sync with the
// evomap event stream and owns the stream connection.
package reconciler

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mtzanidakis/evomap/internal/fleet"
	"github.com/mtzanidakis/evomap/internal/stream"
)

// DefaultReconnectDelay is the pause between a lost connection and the next
// connection attempt.
const DefaultReconnectDelay = 3 * time.Second

// Causes reported in View.Cause besides the stream message types.
const CauseMove = "move"

// View is an ordered, read-only copy of the canonical state.
type View struct {
	Cause string
	Nodes []fleet.Node
	Edges []fleet.Edge
}

// Options configures a Reconciler.
type Options struct {
	URL            string
	ReconnectDelay time.Duration
	Dialer         Dialer
	Logger         *slog.Logger
}

// Reconciler applies stream messages to insertion-ordered agent and edge
// maps. Mutation happens on the goroutine running Run (or the caller of
// Apply); readers may call the accessors from any goroutine.
type Reconciler struct {
	mu    sync.RWMutex
	nodes *fleet.OrderedMap[string, fleet.Node]
	edges *fleet.OrderedMap[string, fleet.Edge]
	state ConnState
	conn  Conn

	url    string
	delay  time.Duration
	dialer Dialer
	logger *slog.Logger
	wait   func(ctx context.Context, d time.Duration) bool

	obsMu    sync.RWMutex
	onUpdate []func(View)
	onState  []func(ConnState)
	onDrop   []func(error)

	stopped atomic.Bool
}

// New creates a Reconciler with empty state in the Disconnected state.
func New(opts Options) *Reconciler {
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = DefaultReconnectDelay
	}
	if opts.Dialer == nil {
		opts.Dialer = WebsocketDialer{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Reconciler{
		nodes:  fleet.NewOrderedMap[string, fleet.Node](0),
		edges:  fleet.NewOrderedMap[string, fleet.Edge](0),
		state:  StateDisconnected,
		url:    opts.URL,
		delay:  opts.ReconnectDelay,
		dialer: opts.Dialer,
		logger: opts.Logger,
		wait:   sleep,
	}
}

// OnUpdate registers fn to be called after every state mutation.
func (r *Reconciler) OnUpdate(fn func(View)) {
	r.obsMu.Lock()
	r.onUpdate = append(r.onUpdate, fn)
	r.obsMu.Unlock()
}

// OnStateChange registers fn to be called on every connection state change.
func (r *Reconciler) OnStateChange(fn func(ConnState)) {
	r.obsMu.Lock()
	r.onState = append(r.onState, fn)
	r.obsMu.Unlock()
}

// OnDrop registers fn to be called for every dropped inbound message.
func (r *Reconciler) OnDrop(fn func(error)) {
	r.obsMu.Lock()
	r.onDrop = append(r.onDrop, fn)
	r.obsMu.Unlock()
}

// Nodes returns the render entities in insertion order.
func (r *Reconciler) Nodes() []fleet.Node {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.nodes.Values()
}

// Edges returns the relationships in insertion order.
func (r *Reconciler) Edges() []fleet.Edge {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.edges.Values()
}

// View returns both ordered views taken under one lock.
func (r *Reconciler) View() View {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.viewLocked("")
}

// HandleRaw decodes and applies one frame. Undecodable frames are logged and
// dropped without touching state; the decode error is returned.
func (r *Reconciler) HandleRaw(data []byte) error {
	msg, err := stream.Decode(data)
	if err != nil {
		r.logger.Warn("dropping stream message", "reason", stream.Reason(err), "error", err)
		r.notifyDrop(err)
		return err
	}
	r.Apply(msg)
	return nil
}

// Apply applies one decoded message to the canonical maps.
func (r *Reconciler) Apply(msg stream.Message) {
	r.mu.Lock()
	switch {
	case msg.Type == stream.TypeSnapshot && msg.Snapshot != nil:
		r.applySnapshot(msg.Snapshot)
	case msg.Type == stream.TypeAgent && msg.Agent != nil:
		r.applyAgent(msg.Action, *msg.Agent)
	case msg.Type == stream.TypeEdge && msg.Edge != nil:
		r.applyEdge(*msg.Edge)
	default:
		r.mu.Unlock()
		return
	}
	view := r.viewLocked(msg.Type)
	r.mu.Unlock()

	r.notifyUpdate(view)
}

// MoveNode sets the position of an existing node, e.g. after a drag. Identity,
// status and order are untouched. It reports whether the node exists.
func (r *Reconciler) MoveNode(id string, pos fleet.Position) bool {
	r.mu.Lock()
	n, ok := r.nodes.Get(id)
	if !ok {
		r.mu.Unlock()
		return false
	}
	n.Position = pos
	r.nodes.Set(id, n)
	view := r.viewLocked(CauseMove)
	r.mu.Unlock()

	r.notifyUpdate(view)
	return true
}

func (r *Reconciler) applySnapshot(s *stream.Snapshot) {
	nodes := fleet.NewOrderedMap[string, fleet.Node](len(s.Agents))
	for i, a := range s.Agents {
		nodes.Set(a.ID, fleet.NewNode(a, i, false))
	}
	edges := fleet.NewOrderedMap[string, fleet.Edge](len(s.Edges))
	for _, e := range s.Edges {
		edges.Set(e.ID, e)
	}
	r.nodes = nodes
	r.edges = edges
}

func (r *Reconciler) applyAgent(action string, p fleet.AgentPatch) {
	if p.Status != nil && !p.Status.Valid() {
		r.logger.Debug("agent reported unknown status", "id", p.ID, "status", *p.Status, "action", action)
	}

	existing, ok := r.nodes.Get(p.ID)
	if !ok {
		r.nodes.Set(p.ID, fleet.NodeFromPatch(p, r.nodes.Len()))
		return
	}

	n := existing.Merge(p)
	n.IsNew = false
	n.Position = existing.Position
	r.nodes.Set(p.ID, n)
}

// applyEdge stores e even when an end is not a known agent yet; consumers
// skip it until both ends exist.
func (r *Reconciler) applyEdge(e fleet.Edge) {
	if !r.nodes.Has(e.Source) || !r.nodes.Has(e.Target) {
		r.logger.Debug("edge references unknown agent", "id", e.ID, "source", e.Source, "target", e.Target)
	}
	r.edges.Set(e.ID, e)
}

func (r *Reconciler) viewLocked(cause string) View {
	return View{
		Cause: cause,
		Nodes: r.nodes.Values(),
		Edges: r.edges.Values(),
	}
}

func (r *Reconciler) notifyUpdate(v View) {
	if r.stopped.Load() {
		return
	}
	r.obsMu.RLock()
	fns := r.onUpdate
	r.obsMu.RUnlock()
	for _, fn := range fns {
		fn(v)
	}
}

func (r *Reconciler) notifyDrop(err error) {
	if r.stopped.Load() {
		return
	}
	r.obsMu.RLock()
	fns := r.onDrop
	r.obsMu.RUnlock()
	for _, fn := range fns {
		fn(err)
	}
}
