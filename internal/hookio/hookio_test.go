package hookio

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadEvent(t *testing.T) {
	payload := `{
		"session_id": "abc-123",
		"hook_event_name": "PreToolUse",
		"tool_name": "Edit",
		"tool_input": {"file_path": "/src/main.go", "old_string": "a"},
		"cwd": "/src",
		"custom_host_field": "kept"
	}`

	ev, err := ReadEvent(strings.NewReader(payload))
	require.NoError(t, err)

	assert.Equal(t, "abc-123", ev.SessionID)
	assert.Equal(t, "PreToolUse", ev.HookEventName)
	assert.Equal(t, "Edit", ev.ToolName)
	assert.Equal(t, "/src", ev.Cwd)
	assert.Equal(t, "kept", ev.Raw["custom_host_field"], "unknown host fields pass through Raw")
}

func TestReadEvent_Empty(t *testing.T) {
	_, err := ReadEvent(strings.NewReader("   \n"))
	assert.ErrorIs(t, err, ErrEmptyEvent)
}

func TestReadEvent_Malformed(t *testing.T) {
	_, err := ReadEvent(strings.NewReader("{broken"))
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrEmptyEvent)
}

func TestWriteResult(t *testing.T) {
	var buf bytes.Buffer
	err := WriteResult(&buf, &Result{Verdict: VerdictDeny, SystemMessage: "gate closed"})
	require.NoError(t, err)

	out := buf.String()
	assert.True(t, strings.HasSuffix(out, "\n"), "result is newline-terminated")
	assert.Contains(t, out, `"verdict":"deny"`)
	assert.Contains(t, out, `"system_message":"gate closed"`)
	assert.NotContains(t, out, "context", "empty fields are omitted")
}

func TestNormalize_StageWinsOverEventName(t *testing.T) {
	ev := &Event{SessionID: "s", HookEventName: "Stop"}
	ec := Normalize(ev, EventPreToolUse)
	assert.Equal(t, EventPreToolUse, ec.Name)
}

func TestNormalize_HostEventNames(t *testing.T) {
	tests := map[string]string{
		"SessionStart":     EventSessionStart,
		"UserPromptSubmit": EventUserPrompt,
		"PreToolUse":       EventPreToolUse,
		"subagent_stop":    EventSubagentStop,
		"SomethingNew":     "SomethingNew", // unknown names pass through
	}
	for host, want := range tests {
		ec := Normalize(&Event{HookEventName: host}, "")
		assert.Equal(t, want, ec.Name, "host name %q", host)
	}
}

func TestNormalize_StringifiesToolInput(t *testing.T) {
	ev := &Event{
		ToolInput: []byte("{\n  \"file_path\": \"/a.py\",\n  \"content\": \"x\"\n}"),
	}
	ec := Normalize(ev, EventPreToolUse)
	assert.Equal(t, `{"file_path":"/a.py","content":"x"}`, ec.ToolInputText,
		"input is compacted for stable regex matching")
}

func TestNormalize_InvalidToolInputMatchedAsIs(t *testing.T) {
	ev := &Event{ToolInput: []byte("not-json")}
	ec := Normalize(ev, EventPreToolUse)
	assert.Equal(t, "not-json", ec.ToolInputText)
}
