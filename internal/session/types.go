// Package session provides the persisted per-session state document and its
// on-disk store.
//
// One JSON file exists per session per hour bucket. The store owns all
// read/write access to the file; every other component mutates a deserialized
// State in memory and routes the mutation back through Save.
package session

import "time"

// GateStatus is the open/closed state of a single gate.
type GateStatus string

const (
	StatusOpen   GateStatus = "open"
	StatusClosed GateStatus = "closed"
)

// GateState is the persisted state machine for one gate within a session.
//
// The ops counters reset to zero exactly when the corresponding transition
// fires. Turn counters never exceed the session's global turn counter.
type GateState struct {
	Status        GateStatus        `json:"status"`
	LastOpenTS    int64             `json:"last_open_ts,omitempty"`
	LastCloseTS   int64             `json:"last_close_ts,omitempty"`
	LastOpenTurn  int               `json:"last_open_turn,omitempty"`
	LastCloseTurn int               `json:"last_close_turn,omitempty"`
	OpsSinceOpen  int               `json:"ops_since_open"`
	OpsSinceClose int               `json:"ops_since_close"`
	Metrics       map[string]string `json:"metrics,omitempty"`
	Blocked       bool              `json:"blocked,omitempty"`
	BlockReason   string            `json:"block_reason,omitempty"`
}

// SetMetric writes a metric value, allocating the map on first use. Metrics
// are an intentionally open string-keyed map: gates extend it ad hoc.
func (g *GateState) SetMetric(key, value string) {
	if g.Metrics == nil {
		g.Metrics = make(map[string]string)
	}
	g.Metrics[key] = value
}

// Open transitions the gate to open, stamping the timestamp and turn and
// zeroing the ops-since-open counter. No-op when already open.
func (g *GateState) Open(now time.Time, turn int) bool {
	if g.Status == StatusOpen {
		return false
	}
	g.Status = StatusOpen
	g.LastOpenTS = now.Unix()
	g.LastOpenTurn = turn
	g.OpsSinceOpen = 0
	g.Blocked = false
	g.BlockReason = ""
	return true
}

// Close transitions the gate to closed, stamping the timestamp and turn and
// zeroing the ops-since-close counter. No-op when already closed.
func (g *GateState) Close(now time.Time, turn int) bool {
	if g.Status == StatusClosed {
		return false
	}
	g.Status = StatusClosed
	g.LastCloseTS = now.Unix()
	g.LastCloseTurn = turn
	g.OpsSinceClose = 0
	return true
}

// ResetOps zeroes both ops counters. Idempotent.
func (g *GateState) ResetOps() {
	g.OpsSinceOpen = 0
	g.OpsSinceClose = 0
}

// Hydration is the session's hydration record: what the user originally
// asked for and how the hydrator interpreted it.
type Hydration struct {
	OriginalPrompt     string   `json:"original_prompt,omitempty"`
	Intent             string   `json:"intent,omitempty"`
	AcceptanceCriteria []string `json:"acceptance_criteria,omitempty"`
	ReviewerVerdict    string   `json:"reviewer_verdict,omitempty"`
}

// Recorded reports whether the hydrator has populated the record.
func (h *Hydration) Recorded() bool {
	return h.Intent != "" || len(h.AcceptanceCriteria) > 0
}

// AgentInfo is per-agent bookkeeping within a session.
type AgentInfo struct {
	CurrentTask string `json:"current_task,omitempty"`
	TodosTotal  int    `json:"todos_total,omitempty"`
	TodosDone   int    `json:"todos_done,omitempty"`
}

// SubagentRun records the last completed invocation of a named subagent.
type SubagentRun struct {
	Summary     string `json:"summary,omitempty"`
	CompletedAt int64  `json:"completed_at,omitempty"`
	Turn        int    `json:"turn,omitempty"`
}

// Insights is the optional session-insight block extracted from transcripts
// by an external collaborator. The gate engine only reads it.
type Insights struct {
	Summary   string   `json:"summary,omitempty"`
	Topics    []string `json:"topics,omitempty"`
	UpdatedAt int64    `json:"updated_at,omitempty"`
}

// State is the full per-session document.
type State struct {
	SessionID   string                  `json:"session_id"`
	CreatedAt   int64                   `json:"created_at"`
	ClosedAt    int64                   `json:"closed_at,omitempty"`
	SessionType string                  `json:"session_type,omitempty"`
	Flags       map[string]string       `json:"state,omitempty"`
	Hydration   Hydration               `json:"hydration"`
	Agents      map[string]*AgentInfo   `json:"agents,omitempty"`
	Subagents   map[string]*SubagentRun `json:"subagents,omitempty"`
	Insights    *Insights               `json:"insights,omitempty"`
	Gates       map[string]*GateState   `json:"gates"`
	Turn        int                     `json:"turn"`
}

// Gate returns the state for the named gate, creating it closed on first
// access.
func (s *State) Gate(name string) *GateState {
	if s.Gates == nil {
		s.Gates = make(map[string]*GateState)
	}
	gs, ok := s.Gates[name]
	if !ok {
		gs = &GateState{Status: StatusClosed}
		s.Gates[name] = gs
	}
	return gs
}

// EnsureGate returns the named gate state, creating it with the given initial
// status on first access.
func (s *State) EnsureGate(name string, initial GateStatus) *GateState {
	if s.Gates == nil {
		s.Gates = make(map[string]*GateState)
	}
	gs, ok := s.Gates[name]
	if !ok {
		gs = &GateState{Status: initial}
		s.Gates[name] = gs
	}
	return gs
}

// NextTurn advances the session's global turn counter and returns it.
func (s *State) NextTurn() int {
	s.Turn++
	return s.Turn
}

// SetFlag writes a workflow flag, allocating the map on first use.
func (s *State) SetFlag(key, value string) {
	if s.Flags == nil {
		s.Flags = make(map[string]string)
	}
	s.Flags[key] = value
}

// RecordSubagent stores the last-invocation summary for a named subagent.
func (s *State) RecordSubagent(name, summary string, now time.Time) {
	if s.Subagents == nil {
		s.Subagents = make(map[string]*SubagentRun)
	}
	s.Subagents[name] = &SubagentRun{
		Summary:     summary,
		CompletedAt: now.Unix(),
		Turn:        s.Turn,
	}
}
