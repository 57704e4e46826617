package gate

import (
	"context"
	"fmt"
	"regexp"

	"github.com/fyrsmithlabs/gatehouse/internal/gate/custom"
	"github.com/fyrsmithlabs/gatehouse/internal/hookio"
	"github.com/fyrsmithlabs/gatehouse/internal/session"
)

// compile pre-compiles the condition's regex matchers and validates its
// custom check against the registry. Called once at engine construction so
// dispatch never sees a bad pattern or an unknown name.
func (c *Condition) compile(reg *custom.Registry) error {
	var err error
	if c.ToolPattern != "" {
		if c.toolRe, err = regexp.Compile(c.ToolPattern); err != nil {
			return fmt.Errorf("tool_pattern %q: %w", c.ToolPattern, err)
		}
	}
	if c.InputPattern != "" {
		if c.inputRe, err = regexp.Compile(c.InputPattern); err != nil {
			return fmt.Errorf("input_pattern %q: %w", c.InputPattern, err)
		}
	}
	if c.SubagentPattern != "" {
		if c.subagentRe, err = regexp.Compile(c.SubagentPattern); err != nil {
			return fmt.Errorf("subagent_pattern %q: %w", c.SubagentPattern, err)
		}
	}
	for _, cat := range c.ExcludeCategories {
		if _, ok := toolCategories[cat]; !ok {
			return fmt.Errorf("unknown tool category %q", cat)
		}
	}
	if c.CustomCheck != "" && !reg.HasCheck(c.CustomCheck) {
		return fmt.Errorf("unknown custom check %q", c.CustomCheck)
	}
	return nil
}

// Matches evaluates the condition against one event and state snapshot.
//
// Matchers run cheapest-first and short-circuit: status equality, event
// name, category exclusion, the regex matchers, counter thresholds, and the
// custom check last since it may do I/O. Regexes use search semantics. An
// empty condition matches everything.
func (c *Condition) Matches(ctx context.Context, ec *hookio.EventContext, gs *session.GateState, st *session.State, gateName string, reg *custom.Registry) bool {
	if c.RequireStatus != "" && gs.Status != c.RequireStatus {
		return false
	}
	if c.Event != "" && ec.Name != c.Event {
		return false
	}
	for _, cat := range c.ExcludeCategories {
		if ToolInCategory(ec.ToolName, cat) {
			return false
		}
	}
	if c.toolRe != nil && !c.toolRe.MatchString(ec.ToolName) {
		return false
	}
	if c.inputRe != nil && !c.inputRe.MatchString(ec.ToolInputText) {
		return false
	}
	if c.subagentRe != nil && !c.subagentRe.MatchString(ec.SubagentType) {
		return false
	}
	if c.MinOpsSinceOpen > 0 && gs.OpsSinceOpen < c.MinOpsSinceOpen {
		return false
	}
	if c.MinOpsSinceClose > 0 && gs.OpsSinceClose < c.MinOpsSinceClose {
		return false
	}
	if c.MinTurnsSinceOpen > 0 && st.Turn-gs.LastOpenTurn < c.MinTurnsSinceOpen {
		return false
	}
	if c.MinTurnsSinceClose > 0 && st.Turn-gs.LastCloseTurn < c.MinTurnsSinceClose {
		return false
	}
	if c.CustomCheck != "" {
		inv := &custom.Invocation{Gate: gateName, Event: ec, State: gs, Session: st}
		ok, err := reg.Check(ctx, c.CustomCheck, inv)
		if err != nil || !ok {
			// Unknown names are caught at compile; a checker's internal
			// failure reads as false (conditions fail open).
			return false
		}
	}
	return true
}
