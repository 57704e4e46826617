package main

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/gatehouse/internal/hookio"
)

// runStage executes one hook subcommand with the given stdin payload and
// decodes the result object it writes.
func runStage(t *testing.T, stage string, payload string) *hookio.Result {
	t.Helper()

	var cmd *cobra.Command
	for _, c := range hookCommands() {
		if c.Use == stage {
			cmd = c
			break
		}
	}
	require.NotNil(t, cmd, "no such stage %q", stage)

	var out bytes.Buffer
	cmd.SetIn(strings.NewReader(payload))
	cmd.SetOut(&out)
	require.NoError(t, cmd.Execute())

	var res hookio.Result
	require.NoError(t, json.Unmarshal(out.Bytes(), &res))
	return &res
}

func isolate(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("GATEHOUSE_STATE_DIR", filepath.Join(dir, "sessions"))
	t.Setenv("GATEHOUSE_AUDIT_DB", filepath.Join(dir, "audit.db"))
	t.Setenv("GATEHOUSE_AUDIT_DIR", filepath.Join(dir, "audit"))
	configPath = filepath.Join(dir, "no-config.yaml")
}

func TestHook_SessionStartAllows(t *testing.T) {
	isolate(t)

	res := runStage(t, "session-start", `{"session_id":"cmdtest1"}`)
	assert.Equal(t, hookio.VerdictAllow, res.Verdict)
}

func TestHook_ClosedHydrationGateWarnsByDefault(t *testing.T) {
	isolate(t)

	res := runStage(t, "pre-tool-use", `{"session_id":"cmdtest2","tool_name":"Edit"}`)
	assert.Equal(t, hookio.VerdictWarn, res.Verdict)
	assert.Contains(t, res.SystemMessage, "hydration")
}

func TestHook_BlockModeDenies(t *testing.T) {
	isolate(t)
	t.Setenv("GATEHOUSE_GATES_HYDRATION", "block")

	res := runStage(t, "pre-tool-use", `{"session_id":"cmdtest3","tool_name":"Edit"}`)
	assert.Equal(t, hookio.VerdictDeny, res.Verdict)
	assert.Contains(t, res.SystemMessage, "hydrator")
}

func TestHook_ReadOnlyToolPassesClosedGate(t *testing.T) {
	isolate(t)
	t.Setenv("GATEHOUSE_GATES_HYDRATION", "block")

	res := runStage(t, "pre-tool-use", `{"session_id":"cmdtest4","tool_name":"Read"}`)
	assert.Equal(t, hookio.VerdictAllow, res.Verdict)
}

func TestHook_EmptyStdinAllows(t *testing.T) {
	isolate(t)

	res := runStage(t, "session-start", "")
	assert.Equal(t, hookio.VerdictAllow, res.Verdict)
}

func TestHook_MalformedEventDenies(t *testing.T) {
	isolate(t)

	res := runStage(t, "session-start", "{not json")
	assert.Equal(t, hookio.VerdictDeny, res.Verdict)
	assert.Contains(t, res.SystemMessage, "malformed event")
}

func TestHook_SessionIDEnvFallback(t *testing.T) {
	isolate(t)
	t.Setenv("GATEHOUSE_SESSION_ID", "envsession")

	res := runStage(t, "user-prompt", `{"prompt":"hello"}`)
	assert.Equal(t, hookio.VerdictAllow, res.Verdict)
}
