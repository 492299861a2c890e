// Package stream decodes the evomap event stream wire format.
package stream

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mtzanidakis/evomap/internal/fleet"
)

// Message types.
const (
	TypeSnapshot = "snapshot"
	TypeAgent    = "agent"
	TypeEdge     = "edge"
)

// Agent actions.
const (
	ActionUpsert = "upsert"
	ActionPatch  = "patch"
)

var (
	ErrMalformed     = errors.New("malformed message")
	ErrUnknownType   = errors.New("unknown message type")
	ErrUnknownAction = errors.New("unknown agent action")
)

// Message is one decoded inbound message. Exactly one of Snapshot, Agent or
// Edge is set, according to Type.
type Message struct {
	Type     string
	Action   string
	Snapshot *Snapshot
	Agent    *fleet.AgentPatch
	Edge     *fleet.Edge
}

// Snapshot is the complete fleet state.
type Snapshot struct {
	Agents []fleet.Agent
	Edges  []fleet.Edge
}

type envelope struct {
	Type    string          `json:"type"`
	Action  string          `json:"action,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Agents  []fleet.Agent   `json:"agents,omitempty"`
	Edges   []fleet.Edge    `json:"edges,omitempty"`
}

// Decode parses a raw frame. The returned error wraps ErrMalformed,
// ErrUnknownType or ErrUnknownAction.
func Decode(data []byte) (Message, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	switch env.Type {
	case TypeSnapshot:
		if env.Agents == nil || env.Edges == nil {
			return Message{}, fmt.Errorf("%w: snapshot without agents or edges", ErrMalformed)
		}
		return Message{
			Type:     TypeSnapshot,
			Snapshot: &Snapshot{Agents: env.Agents, Edges: env.Edges},
		}, nil

	case TypeAgent:
		action := env.Action
		if action == "" {
			action = ActionUpsert
		}
		if action != ActionUpsert && action != ActionPatch {
			return Message{}, fmt.Errorf("%w: %q", ErrUnknownAction, env.Action)
		}
		var p fleet.AgentPatch
		if err := decodePayload(env.Payload, &p); err != nil {
			return Message{}, err
		}
		if p.ID == "" {
			return Message{}, fmt.Errorf("%w: agent payload without id", ErrMalformed)
		}
		return Message{Type: TypeAgent, Action: action, Agent: &p}, nil

	case TypeEdge:
		var e fleet.Edge
		if err := decodePayload(env.Payload, &e); err != nil {
			return Message{}, err
		}
		if e.ID == "" || e.Source == "" || e.Target == "" {
			return Message{}, fmt.Errorf("%w: edge payload needs id, source and target", ErrMalformed)
		}
		return Message{Type: TypeEdge, Edge: &e}, nil

	default:
		return Message{}, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
	}
}

func decodePayload(raw json.RawMessage, v any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return fmt.Errorf("%w: missing payload", ErrMalformed)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: payload: %v", ErrMalformed, err)
	}
	return nil
}

// Reason maps a decode error to a short label for logs and metrics.
func Reason(err error) string {
	switch {
	case errors.Is(err, ErrUnknownType):
		return "unknown_type"
	case errors.Is(err, ErrUnknownAction):
		return "unknown_action"
	default:
		return "malformed"
	}
}

// NewSnapshot encodes a snapshot frame.
func NewSnapshot(agents []fleet.Agent, edges []fleet.Edge) ([]byte, error) {
	if agents == nil {
		agents = []fleet.Agent{}
	}
	if edges == nil {
		edges = []fleet.Edge{}
	}
	return json.Marshal(struct {
		Type   string        `json:"type"`
		Agents []fleet.Agent `json:"agents"`
		Edges  []fleet.Edge  `json:"edges"`
	}{TypeSnapshot, agents, edges})
}

// NewAgentDelta encodes an agent frame.
func NewAgentDelta(action string, p fleet.AgentPatch) ([]byte, error) {
	payload, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal agent payload: %w", err)
	}
	return json.Marshal(envelope{Type: TypeAgent, Action: action, Payload: payload})
}

// NewEdgeDelta encodes an edge frame.
func NewEdgeDelta(e fleet.Edge) ([]byte, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal edge payload: %w", err)
	}
	return json.Marshal(envelope{Type: TypeEdge, Action: ActionUpsert, Payload: payload})
}
