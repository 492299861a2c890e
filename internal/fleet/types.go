package fleet

// Status is the lifecycle state an agent reports to the dashboard.
type Status string

const (
	StatusIdle     Status = "idle"
	StatusBusy     Status = "busy"
	StatusSuccess  Status = "success"
	StatusError    Status = "error"
	StatusThinking Status = "thinking"
)

// Valid reports whether s is one of the statuses the server is known to send.
// Unknown values are still stored; this is used for logging only.
func (s Status) Valid() bool {
	switch s {
	case StatusIdle, StatusBusy, StatusSuccess, StatusError, StatusThinking:
		return true
	}
	return false
}

// Agent is a full agent record as carried by a snapshot.
type Agent struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	CurrentTask string  `json:"current_task"`
	Status      Status  `json:"status"`
	UpdatedAt   float64 `json:"updated_at"`
	ParentID    string  `json:"parent_id,omitempty"`
}

// AgentPatch is a partial agent record. Nil fields were absent from the
// payload and keep their previous value when merged. ParentID is nullable:
// an explicit null detaches the agent from its parent.
type AgentPatch struct {
	ID          string           `json:"id"`
	Name        *string          `json:"name,omitempty"`
	CurrentTask *string          `json:"current_task,omitempty"`
	Status      *Status          `json:"status,omitempty"`
	UpdatedAt   *float64         `json:"updated_at,omitempty"`
	ParentID    Optional[string] `json:"parent_id,omitzero"`
}

// Edge is a directed relationship between two agents. Either end may name
// an agent that has not been seen yet.
type Edge struct {
	ID        string  `json:"id"`
	Source    string  `json:"source"`
	Target    string  `json:"target"`
	UpdatedAt float64 `json:"updated_at,omitempty"`
}

// Position is a 2-D canvas coordinate.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Node is the render-ready projection of an Agent.
type Node struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	CurrentTask string   `json:"task"`
	Status      Status   `json:"status"`
	UpdatedAt   float64  `json:"updated_at"`
	ParentID    string   `json:"parent_id,omitempty"`
	Position    Position `json:"position"`
	IsNew       bool     `json:"isNew"`
}

// Agent returns the agent record behind the node.
func (n Node) Agent() Agent {
	return Agent{
		ID:          n.ID,
		Name:        n.Name,
		CurrentTask: n.CurrentTask,
		Status:      n.Status,
		UpdatedAt:   n.UpdatedAt,
		ParentID:    n.ParentID,
	}
}

// Layout constants for slot positions: one row, fixed horizontal spacing.
const (
	OriginX  = 100
	SpacingX = 220
	RowY     = 100
)

// SlotPosition returns the canvas position for the given insertion slot.
func SlotPosition(slot int) Position {
	return Position{X: OriginX + float64(slot)*SpacingX, Y: RowY}
}

// NewNode builds the node for a full agent record at the given slot.
func NewNode(a Agent, slot int, isNew bool) Node {
	return Node{
		ID:          a.ID,
		Name:        a.Name,
		CurrentTask: a.CurrentTask,
		Status:      a.Status,
		UpdatedAt:   a.UpdatedAt,
		ParentID:    a.ParentID,
		Position:    SlotPosition(slot),
		IsNew:       isNew,
	}
}

// Defaults for fields missing from the first payload of an agent.
const (
	DefaultName   = "Agent"
	DefaultStatus = StatusIdle
)

// NodeFromPatch builds a node for an agent id seen for the first time.
func NodeFromPatch(p AgentPatch, slot int) Node {
	n := Node{
		ID:       p.ID,
		Name:     DefaultName,
		Status:   DefaultStatus,
		Position: SlotPosition(slot),
		IsNew:    true,
	}
	return n.Merge(p)
}

// Merge overlays the fields present in p onto n. Position and IsNew are
// left to the caller.
func (n Node) Merge(p AgentPatch) Node {
	if p.Name != nil {
		n.Name = *p.Name
	}
	if p.CurrentTask != nil {
		n.CurrentTask = *p.CurrentTask
	}
	if p.Status != nil {
		n.Status = *p.Status
	}
	if p.UpdatedAt != nil {
		n.UpdatedAt = *p.UpdatedAt
	}
	if p.ParentID.Set {
		n.ParentID = p.ParentID.Value
	}
	return n
}
