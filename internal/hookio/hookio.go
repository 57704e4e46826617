// Package hookio defines the wire contracts between the host runtime and
// gatehouse.
//
// Every gatehouse invocation reads exactly one JSON event object from stdin
// and writes exactly one JSON result object to stdout. The process exit code
// is always zero; blocking is communicated through the verdict field of the
// result, never through exit status.
package hookio

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Maximum accepted event payload. Tool outputs can be large, but anything
// beyond this is a malformed or hostile payload.
const maxEventSize = 8 * 1024 * 1024

var (
	// ErrEmptyEvent indicates stdin contained no event payload.
	ErrEmptyEvent = errors.New("empty event payload")

	// ErrNoSessionID indicates the event carried no session identifier and
	// no fallback was available.
	ErrNoSessionID = errors.New("event has no session_id")
)

// Verdict is the engine's decision for one lifecycle event.
type Verdict string

const (
	VerdictAllow Verdict = "allow"
	VerdictWarn  Verdict = "warn"
	VerdictDeny  Verdict = "deny"
	VerdictAsk   Verdict = "ask"
)

// Event names in canonical (normalized) form.
const (
	EventSessionStart = "session_start"
	EventUserPrompt   = "user_prompt"
	EventPreToolUse   = "pre_tool_use"
	EventPostToolUse  = "post_tool_use"
	EventStop         = "stop"
	EventSubagentStop = "subagent_stop"
	EventAfterAgent   = "after_agent"
)

// hostEventNames maps the host runtime's event names to canonical names.
// The host sends CamelCase names; older hook scripts forwarded snake_case.
var hostEventNames = map[string]string{
	"SessionStart":     EventSessionStart,
	"UserPromptSubmit": EventUserPrompt,
	"PreToolUse":       EventPreToolUse,
	"PostToolUse":      EventPostToolUse,
	"Stop":             EventStop,
	"SubagentStop":     EventSubagentStop,
	"AfterAgent":       EventAfterAgent,
	"session_start":    EventSessionStart,
	"user_prompt":      EventUserPrompt,
	"pre_tool_use":     EventPreToolUse,
	"post_tool_use":    EventPostToolUse,
	"stop":             EventStop,
	"subagent_stop":    EventSubagentStop,
	"after_agent":      EventAfterAgent,
}

// Event is the raw JSON object the host runtime writes to stdin.
type Event struct {
	SessionID      string          `json:"session_id"`
	HookEventName  string          `json:"hook_event_name"`
	AgentID        string          `json:"agent_id,omitempty"`
	TraceID        string          `json:"trace_id,omitempty"`
	ToolName       string          `json:"tool_name,omitempty"`
	ToolInput      json.RawMessage `json:"tool_input,omitempty"`
	ToolResponse   json.RawMessage `json:"tool_response,omitempty"`
	TranscriptPath string          `json:"transcript_path,omitempty"`
	Cwd            string          `json:"cwd,omitempty"`
	SubagentType   string          `json:"subagent_type,omitempty"`
	Prompt         string          `json:"prompt,omitempty"`

	// Raw holds the full decoded object, preserving host fields that are
	// not otherwise normalized.
	Raw map[string]any `json:"-"`
}

// Result is the JSON object gatehouse writes to stdout.
type Result struct {
	Verdict       Verdict           `json:"verdict"`
	SystemMessage string            `json:"system_message,omitempty"`
	Context       string            `json:"context,omitempty"`
	UpdatedInput  json.RawMessage   `json:"updated_input,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// EventContext is the canonical, normalized view of one event that the gate
// engine evaluates conditions against.
type EventContext struct {
	Name           string
	SessionID      string
	AgentID        string
	ToolName       string
	ToolInputText  string
	SubagentType   string
	Cwd            string
	TranscriptPath string
	Prompt         string
	Raw            map[string]any
}

// ReadEvent decodes one event object from r.
func ReadEvent(r io.Reader) (*Event, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxEventSize))
	if err != nil {
		return nil, fmt.Errorf("reading event: %w", err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, ErrEmptyEvent
	}

	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, fmt.Errorf("decoding event: %w", err)
	}

	// Second decode keeps the unnormalized host fields available.
	raw := make(map[string]any)
	if err := json.Unmarshal(data, &raw); err == nil {
		ev.Raw = raw
	}

	return &ev, nil
}

// WriteResult encodes one result object to w followed by a newline.
func WriteResult(w io.Writer, res *Result) error {
	enc := json.NewEncoder(w)
	if err := enc.Encode(res); err != nil {
		return fmt.Errorf("encoding result: %w", err)
	}
	return nil
}

// Normalize converts a raw event into the canonical EventContext.
//
// The stage argument is the lifecycle stage the CLI was invoked for. It wins
// over the event's own hook_event_name when the two disagree, since the host
// wires each stage to a distinct command.
func Normalize(ev *Event, stage string) *EventContext {
	name := stage
	if name == "" {
		if canonical, ok := hostEventNames[ev.HookEventName]; ok {
			name = canonical
		} else {
			name = ev.HookEventName
		}
	}

	return &EventContext{
		Name:           name,
		SessionID:      ev.SessionID,
		AgentID:        ev.AgentID,
		ToolName:       ev.ToolName,
		ToolInputText:  stringifyInput(ev.ToolInput),
		SubagentType:   ev.SubagentType,
		Cwd:            ev.Cwd,
		TranscriptPath: ev.TranscriptPath,
		Prompt:         ev.Prompt,
		Raw:            ev.Raw,
	}
}

// stringifyInput renders a tool input (object or array) as a compact string
// for regex matching. Invalid JSON is matched as-is.
func stringifyInput(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}
