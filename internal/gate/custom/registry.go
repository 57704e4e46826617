// Package custom provides the named extension points for gate logic that is
// too complex to express as declarative field matchers.
//
// Checkers answer a yes/no question about the session (possibly doing I/O);
// actions perform side effects such as materializing an audit file. Both are
// registered once at engine construction under typed name constants, so a
// misspelled name is caught when the engine is built rather than at dispatch
// time.
package custom

import (
	"context"
	"fmt"

	"github.com/fyrsmithlabs/gatehouse/internal/hookio"
	"github.com/fyrsmithlabs/gatehouse/internal/session"
)

// CheckName identifies a registered condition checker.
type CheckName string

// ActionName identifies a registered action executor.
type ActionName string

// Built-in extension points.
const (
	CheckUncommittedWork   CheckName = "uncommitted-work"
	CheckHydrationRecorded CheckName = "hydration-recorded"

	ActionWriteAudit    ActionName = "write-audit"
	ActionRecordVerdict ActionName = "record-verdict"
)

// Invocation carries everything a checker or action can see: the normalized
// event, the gate's own state, and the full session document. Checkers must
// be side-effect-free except for writing advisory data into the gate's
// metrics map (a block reason, a dirty-file count) for later template
// rendering.
type Invocation struct {
	Gate    string
	Event   *hookio.EventContext
	State   *session.GateState
	Session *session.State
}

// ConditionChecker answers whether a named condition currently holds.
type ConditionChecker interface {
	Check(ctx context.Context, inv *Invocation) (bool, error)
}

// ActionExecutor performs a side effect and returns text to append to the
// gate's message and context injection (either may be empty).
//
// Required distinguishes actions that materialize artifacts referenced by a
// subsequent deny message (their failure fails the whole gate check) from
// advisory actions whose failure is logged and swallowed.
type ActionExecutor interface {
	Execute(ctx context.Context, inv *Invocation) (message, contextInjection string, err error)
	Required() bool
}

// Registry holds the registered checkers and actions for one engine.
type Registry struct {
	checks  map[CheckName]ConditionChecker
	actions map[ActionName]ActionExecutor
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		checks:  make(map[CheckName]ConditionChecker),
		actions: make(map[ActionName]ActionExecutor),
	}
}

// RegisterCheck adds a checker under name, replacing any previous entry.
func (r *Registry) RegisterCheck(name CheckName, c ConditionChecker) {
	r.checks[name] = c
}

// RegisterAction adds an executor under name, replacing any previous entry.
func (r *Registry) RegisterAction(name ActionName, a ActionExecutor) {
	r.actions[name] = a
}

// Check looks up and runs the named checker.
//
// A missing checker is a configuration error. A checker that fails
// internally reads as false: conditions gate optional behavior, so they fail
// open.
func (r *Registry) Check(ctx context.Context, name CheckName, inv *Invocation) (bool, error) {
	c, ok := r.checks[name]
	if !ok {
		return false, fmt.Errorf("unknown custom check %q", name)
	}
	ok, err := c.Check(ctx, inv)
	if err != nil {
		return false, nil
	}
	return ok, nil
}

// Execute looks up and runs the named action.
//
// A missing action is a configuration error. A failing required action
// propagates its error; a failing advisory action returns empty output and a
// nil error (the caller logs through its own channel).
func (r *Registry) Execute(ctx context.Context, name ActionName, inv *Invocation) (string, string, error) {
	a, ok := r.actions[name]
	if !ok {
		return "", "", fmt.Errorf("unknown custom action %q", name)
	}
	msg, inj, err := a.Execute(ctx, inv)
	if err != nil {
		if a.Required() {
			return "", "", fmt.Errorf("custom action %q: %w", name, err)
		}
		return "", "", nil
	}
	return msg, inj, nil
}

// HasCheck reports whether name is registered. The engine validates every
// name referenced by gate configs at construction.
func (r *Registry) HasCheck(name CheckName) bool {
	_, ok := r.checks[name]
	return ok
}

// HasAction reports whether name is registered.
func (r *Registry) HasAction(name ActionName) bool {
	_, ok := r.actions[name]
	return ok
}
