package custom

import (
	"time"

	"go.uber.org/zap"
)

// Deps carries the collaborators the built-in checkers and actions need.
type Deps struct {
	// AuditDir is where write-audit materializes its files.
	AuditDir string

	// Recorder is the audit store; nil disables recording (tests).
	Recorder Recorder

	// GitTimeout bounds the uncommitted-work subprocess probe.
	GitTimeout time.Duration

	Log *zap.Logger
}

// DefaultRegistry returns a registry with every built-in checker and action
// registered. The engine validates gate configs against it at construction.
func DefaultRegistry(deps Deps) *Registry {
	if deps.Log == nil {
		deps.Log = zap.NewNop()
	}

	r := NewRegistry()
	r.RegisterCheck(CheckUncommittedWork, NewGitWorkChecker(deps.GitTimeout, deps.Log))
	r.RegisterCheck(CheckHydrationRecorded, HydrationChecker{})
	r.RegisterAction(ActionWriteAudit, NewWriteAuditAction(deps.AuditDir, deps.Recorder))
	r.RegisterAction(ActionRecordVerdict, NewRecordVerdictAction(deps.Recorder, deps.Log))
	return r
}
