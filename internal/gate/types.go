// Package gate implements the declarative condition/trigger/policy engine
// that governs tool use during an agent session.
//
// A gate is a named checkpoint with persisted open/closed state. Triggers
// mutate that state as lifecycle events arrive; policies produce
// allow/warn/deny verdicts without mutating it. Both are driven by the same
// condition matcher.
package gate

import (
	"regexp"

	"github.com/fyrsmithlabs/gatehouse/internal/gate/custom"
	"github.com/fyrsmithlabs/gatehouse/internal/hookio"
	"github.com/fyrsmithlabs/gatehouse/internal/session"
)

// Mode controls how a gate's deny verdicts are surfaced.
type Mode string

const (
	// ModeWarn downgrades deny verdicts to warnings. The default.
	ModeWarn Mode = "warn"

	// ModeBlock lets deny verdicts through unchanged.
	ModeBlock Mode = "block"
)

// Condition is a conjunction of optional matchers. An unpopulated matcher
// passes automatically; a condition with no populated matchers always
// matches, which is how "always apply" triggers are written.
type Condition struct {
	// Event matches the canonical event name exactly.
	Event string `koanf:"event" yaml:"event"`

	// ToolPattern / InputPattern / SubagentPattern use search semantics:
	// the pattern may match anywhere in the subject.
	ToolPattern     string `koanf:"tool_pattern" yaml:"tool_pattern"`
	InputPattern    string `koanf:"input_pattern" yaml:"input_pattern"`
	SubagentPattern string `koanf:"subagent_pattern" yaml:"subagent_pattern"`

	// ExcludeCategories rejects events whose tool belongs to any of the
	// named categories (see toolCategories).
	ExcludeCategories []string `koanf:"exclude_categories" yaml:"exclude_categories"`

	// RequireStatus matches the gate's current status.
	RequireStatus session.GateStatus `koanf:"require_status" yaml:"require_status"`

	// Counter thresholds; zero means unset.
	MinOpsSinceOpen   int `koanf:"min_ops_since_open" yaml:"min_ops_since_open"`
	MinOpsSinceClose  int `koanf:"min_ops_since_close" yaml:"min_ops_since_close"`
	MinTurnsSinceOpen int `koanf:"min_turns_since_open" yaml:"min_turns_since_open"`
	MinTurnsSinceClose int `koanf:"min_turns_since_close" yaml:"min_turns_since_close"`

	// CustomCheck names a registered checker, evaluated last because it may
	// do I/O.
	CustomCheck custom.CheckName `koanf:"custom_check" yaml:"custom_check"`

	toolRe     *regexp.Regexp
	inputRe    *regexp.Regexp
	subagentRe *regexp.Regexp
}

// Transition mutates a gate's state when its trigger condition matches.
type Transition struct {
	// SetStatus moves the gate to the given status; empty leaves it alone.
	SetStatus session.GateStatus `koanf:"set_status" yaml:"set_status"`

	// Message and Context are templates rendered against the event, the
	// gate state, and its metrics.
	Message string `koanf:"message" yaml:"message"`
	Context string `koanf:"context" yaml:"context"`

	// ResetOps zeroes both ops counters regardless of any status change.
	ResetOps bool `koanf:"reset_ops" yaml:"reset_ops"`

	// SetMetrics writes metric values verbatim; IncrMetrics increments the
	// named metrics by one.
	SetMetrics  map[string]string `koanf:"set_metrics" yaml:"set_metrics"`
	IncrMetrics []string          `koanf:"incr_metrics" yaml:"incr_metrics"`

	// Action names a registered side effect executed after the templates
	// render.
	Action custom.ActionName `koanf:"action" yaml:"action"`
}

// Trigger pairs a condition with the transition it fires. For each event the
// orchestrator applies only the first matching trigger, in declared order.
type Trigger struct {
	When Condition  `koanf:"when" yaml:"when"`
	Then Transition `koanf:"then" yaml:"then"`
}

// Policy pairs a condition with a verdict. The first matching policy wins;
// no match is an implicit allow.
type Policy struct {
	When    Condition          `koanf:"when" yaml:"when"`
	Verdict hookio.Verdict     `koanf:"verdict" yaml:"verdict"`
	Message string             `koanf:"message" yaml:"message"`
	Context string             `koanf:"context" yaml:"context"`
	Action  custom.ActionName  `koanf:"action" yaml:"action"`
}

// Config is the static definition of one gate, loaded once per process.
type Config struct {
	Name          string             `koanf:"name" yaml:"name"`
	Description   string             `koanf:"description" yaml:"description"`
	InitialStatus session.GateStatus `koanf:"initial_status" yaml:"initial_status"`
	Triggers      []Trigger          `koanf:"triggers" yaml:"triggers"`
	Policies      []Policy           `koanf:"policies" yaml:"policies"`
}

// toolCategories names groups of tools that conditions can exclude wholesale.
// Read-only tools never count against a closed gate; session tools are the
// agent's own bookkeeping.
var toolCategories = map[string][]string{
	"read-only": {"Read", "Glob", "Grep", "WebFetch", "WebSearch", "NotebookRead"},
	"session":   {"TodoWrite", "Task", "AskUserQuestion"},
}

// ToolInCategory reports whether tool belongs to the named category.
func ToolInCategory(tool, category string) bool {
	for _, t := range toolCategories[category] {
		if t == tool {
			return true
		}
	}
	return false
}
