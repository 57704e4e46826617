package custom

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/gatehouse/internal/audit"
)

type memRecorder struct {
	entries []audit.Entry
	err     error
}

func (r *memRecorder) Record(_ context.Context, e audit.Entry) error {
	if r.err != nil {
		return r.err
	}
	r.entries = append(r.entries, e)
	return nil
}

func TestWriteAuditAction(t *testing.T) {
	dir := t.TempDir()
	rec := &memRecorder{}
	a := NewWriteAuditAction(dir, rec)
	inv := testInvocation()
	inv.Event.ToolName = "Edit"

	msg, _, err := a.Execute(context.Background(), inv)
	require.NoError(t, err)

	path := inv.State.Metrics["audit_path"]
	require.NotEmpty(t, path, "audit_path metric set for template rendering")
	assert.Contains(t, msg, path)
	assert.Equal(t, filepath.Join(dir, "s_g.md"), path)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "session: s")
	assert.Contains(t, string(content), "tool: Edit")

	require.Len(t, rec.entries, 1)
	assert.Equal(t, "s", rec.entries[0].SessionID)
	assert.Equal(t, "g", rec.entries[0].Gate)
}

func TestWriteAuditAction_RecorderFailureFailsAction(t *testing.T) {
	a := NewWriteAuditAction(t.TempDir(), &memRecorder{err: errors.New("db locked")})
	_, _, err := a.Execute(context.Background(), testInvocation())
	assert.Error(t, err)
}

func TestWriteAuditAction_UnwritableDirFails(t *testing.T) {
	a := NewWriteAuditAction(filepath.Join(t.TempDir(), "file-in-the-way"), nil)
	// Occupy the path with a regular file so MkdirAll fails.
	require.NoError(t, os.WriteFile(a.Dir, []byte("x"), 0o600))

	_, _, err := a.Execute(context.Background(), testInvocation())
	assert.Error(t, err)
}

func TestRecordVerdictAction(t *testing.T) {
	rec := &memRecorder{}
	a := NewRecordVerdictAction(rec, nil)

	_, _, err := a.Execute(context.Background(), testInvocation())
	require.NoError(t, err)
	require.Len(t, rec.entries, 1)
	assert.Equal(t, "open", rec.entries[0].Verdict)

	// No recorder configured: a silent no-op.
	none := NewRecordVerdictAction(nil, nil)
	_, _, err = none.Execute(context.Background(), testInvocation())
	assert.NoError(t, err)
}

func TestSanitizeForFile(t *testing.T) {
	assert.Equal(t, "abc-123_x", sanitizeForFile("abc-123_x"))
	assert.Equal(t, "a-b-c", sanitizeForFile("a/b:c"))
	assert.Equal(t, "unknown", sanitizeForFile(""))
	assert.Len(t, sanitizeForFile(string(make([]byte, 200))), 64)
}
