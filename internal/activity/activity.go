// Package activity derives a bounded activity log from successive views of
// the agent fleet.
package activity

import (
	"sync"
	"time"

	"github.com/mtzanidakis/evomap/internal/fleet"
)

// DefaultCapacity is the number of entries the log retains.
const DefaultCapacity = 80

// Fallback texts for agents without a current task.
const (
	TextConnected     = "agent connected"
	TextStatusChanged = "status changed"
)

// Kind distinguishes an agent's first appearance from a status transition.
type Kind string

const (
	KindAppeared Kind = "appeared"
	KindChanged  Kind = "changed"
)

// Transition is an observed appearance or status change, before it is
// stamped into a Message.
type Transition struct {
	Kind      Kind
	AgentID   string
	AgentName string
	Text      string
	Status    fleet.Status
	Previous  fleet.Status
}

// Message is an immutable activity log entry.
type Message struct {
	ID        uint64       `json:"id"`
	Kind      Kind         `json:"kind"`
	AgentID   string       `json:"agent_id"`
	AgentName string       `json:"agentName"`
	Text      string       `json:"text"`
	Status    fleet.Status `json:"status"`
	Previous  fleet.Status `json:"previous,omitempty"`
	Timestamp time.Time    `json:"timestamp"`
}

// Diff compares view against the last observed statuses. It returns the new
// status map (agents absent from view are dropped) and the transitions in
// view order.
func Diff(prev map[string]fleet.Status, view []fleet.Node) (map[string]fleet.Status, []Transition) {
	next := make(map[string]fleet.Status, len(view))
	var out []Transition

	for _, n := range view {
		next[n.ID] = n.Status

		old, known := prev[n.ID]
		switch {
		case !known:
			out = append(out, Transition{
				Kind:      KindAppeared,
				AgentID:   n.ID,
				AgentName: displayName(n),
				Text:      textOr(n.CurrentTask, TextConnected),
				Status:    n.Status,
			})
		case old != n.Status:
			out = append(out, Transition{
				Kind:      KindChanged,
				AgentID:   n.ID,
				AgentName: displayName(n),
				Text:      textOr(n.CurrentTask, TextStatusChanged),
				Status:    n.Status,
				Previous:  old,
			})
		}
	}
	return next, out
}

func displayName(n fleet.Node) string {
	if n.Name != "" {
		return n.Name
	}
	return n.ID
}

func textOr(task, fallback string) string {
	if task != "" {
		return task
	}
	return fallback
}

// Deriver turns successive views into a bounded, chronological log. Each
// dashboard session owns its own Deriver; ids start at 1 per instance.
type Deriver struct {
	mu       sync.RWMutex
	prev     map[string]fleet.Status
	seq      uint64
	log      []Message
	capacity int
	now      func() time.Time
}

// NewDeriver returns a Deriver retaining at most capacity entries.
func NewDeriver(capacity int) *Deriver {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Deriver{
		prev:     make(map[string]fleet.Status),
		capacity: capacity,
		now:      time.Now,
	}
}

// Reconcile diffs view against the previous one, appends the resulting
// entries to the log and returns them.
func (d *Deriver) Reconcile(view []fleet.Node) []Message {
	d.mu.Lock()
	defer d.mu.Unlock()

	next, transitions := Diff(d.prev, view)
	d.prev = next
	if len(transitions) == 0 {
		return nil
	}

	now := d.now()
	emitted := make([]Message, len(transitions))
	for i, t := range transitions {
		d.seq++
		emitted[i] = Message{
			ID:        d.seq,
			Kind:      t.Kind,
			AgentID:   t.AgentID,
			AgentName: t.AgentName,
			Text:      t.Text,
			Status:    t.Status,
			Previous:  t.Previous,
			Timestamp: now,
		}
	}

	d.log = append(d.log, emitted...)
	if over := len(d.log) - d.capacity; over > 0 {
		trimmed := make([]Message, d.capacity)
		copy(trimmed, d.log[over:])
		d.log = trimmed
	}

	out := make([]Message, len(emitted))
	copy(out, emitted)
	return out
}

// Messages returns the retained entries, oldest first.
func (d *Deriver) Messages() []Message {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]Message, len(d.log))
	copy(out, d.log)
	return out
}
