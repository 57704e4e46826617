package custom

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/gatehouse/internal/audit"
)

// Recorder is the slice of the audit store the actions need.
type Recorder interface {
	Record(ctx context.Context, e audit.Entry) error
}

// WriteAuditAction materializes a per-gate audit file under the state
// directory and records the event in the audit store.
//
// The file is referenced by deny messages (via the audit_path metric), so
// this action is required: if the artifact cannot be written the gate check
// fails rather than denying with a dangling reference.
type WriteAuditAction struct {
	Dir      string
	Recorder Recorder
	Now      func() time.Time
}

// NewWriteAuditAction builds the action rooted at dir.
func NewWriteAuditAction(dir string, rec Recorder) *WriteAuditAction {
	return &WriteAuditAction{Dir: dir, Recorder: rec, Now: time.Now}
}

// Required marks the audit artifact as load-bearing.
func (a *WriteAuditAction) Required() bool { return true }

// Execute writes the audit file and records the entry.
func (a *WriteAuditAction) Execute(ctx context.Context, inv *Invocation) (string, string, error) {
	if err := os.MkdirAll(a.Dir, 0o700); err != nil {
		return "", "", fmt.Errorf("creating audit directory: %w", err)
	}

	name := fmt.Sprintf("%s_%s.md", sanitizeForFile(inv.Event.SessionID), sanitizeForFile(inv.Gate))
	path := filepath.Join(a.Dir, name)

	content := fmt.Sprintf("# Gate audit: %s\n\n- session: %s\n- event: %s\n- tool: %s\n- recorded: %s\n",
		inv.Gate, inv.Event.SessionID, inv.Event.Name, inv.Event.ToolName,
		a.Now().UTC().Format(time.RFC3339))
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		return "", "", fmt.Errorf("writing audit file: %w", err)
	}

	if inv.State != nil {
		inv.State.SetMetric("audit_path", path)
	}

	if a.Recorder != nil {
		err := a.Recorder.Record(ctx, audit.Entry{
			SessionID: inv.Event.SessionID,
			Gate:      inv.Gate,
			Event:     inv.Event.Name,
			Verdict:   "action",
			Message:   "audit file written: " + path,
		})
		if err != nil {
			return "", "", fmt.Errorf("recording audit entry: %w", err)
		}
	}

	return "Audit file written: " + path, "", nil
}

// RecordVerdictAction appends an advisory row to the audit store. Failures
// are swallowed by the registry; the verdict itself is unaffected.
type RecordVerdictAction struct {
	Recorder Recorder
	Log      *zap.Logger
}

// NewRecordVerdictAction builds the advisory recorder action.
func NewRecordVerdictAction(rec Recorder, log *zap.Logger) *RecordVerdictAction {
	if log == nil {
		log = zap.NewNop()
	}
	return &RecordVerdictAction{Recorder: rec, Log: log}
}

// Required marks the recording as advisory.
func (a *RecordVerdictAction) Required() bool { return false }

// Execute records the firing policy/trigger in the audit store.
func (a *RecordVerdictAction) Execute(ctx context.Context, inv *Invocation) (string, string, error) {
	if a.Recorder == nil {
		return "", "", nil
	}
	verdict := ""
	if inv.State != nil {
		verdict = string(inv.State.Status)
	}
	err := a.Recorder.Record(ctx, audit.Entry{
		SessionID: inv.Event.SessionID,
		Gate:      inv.Gate,
		Event:     inv.Event.Name,
		Verdict:   verdict,
		Message:   "gate fired on " + inv.Event.Name,
	})
	if err != nil {
		a.Log.Warn("audit record failed", zap.String("gate", inv.Gate), zap.Error(err))
		return "", "", err
	}
	return "", "", nil
}

// sanitizeForFile keeps file-name components to a safe character set.
func sanitizeForFile(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			out = append(out, r)
		default:
			out = append(out, '-')
		}
	}
	if len(out) == 0 {
		return "unknown"
	}
	if len(out) > 64 {
		out = out[:64]
	}
	return string(out)
}
