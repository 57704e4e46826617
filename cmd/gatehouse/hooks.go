package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/gatehouse/internal/audit"
	"github.com/fyrsmithlabs/gatehouse/internal/catalog"
	"github.com/fyrsmithlabs/gatehouse/internal/config"
	"github.com/fyrsmithlabs/gatehouse/internal/gate"
	"github.com/fyrsmithlabs/gatehouse/internal/gate/custom"
	"github.com/fyrsmithlabs/gatehouse/internal/hookio"
	"github.com/fyrsmithlabs/gatehouse/internal/logging"
	"github.com/fyrsmithlabs/gatehouse/internal/session"
)

// hookTimeout bounds one full hook invocation. The host runtime blocks on
// the hook, so this is an upper bound on added agent latency.
const hookTimeout = 30 * time.Second

// dispatchFunc is one engine lifecycle method.
type dispatchFunc func(e *gate.Engine) func(context.Context, *hookio.Event) *hookio.Result

// hookCommands builds one subcommand per lifecycle stage.
func hookCommands() []*cobra.Command {
	stages := []struct {
		use, stage, short string
		fn                dispatchFunc
	}{
		{"session-start", hookio.EventSessionStart, "Handle the session-start hook",
			func(e *gate.Engine) func(context.Context, *hookio.Event) *hookio.Result { return e.OnSessionStart }},
		{"user-prompt", hookio.EventUserPrompt, "Handle the user-prompt-submit hook",
			func(e *gate.Engine) func(context.Context, *hookio.Event) *hookio.Result { return e.OnUserPrompt }},
		{"pre-tool-use", hookio.EventPreToolUse, "Handle the pre-tool-use hook (policy check)",
			func(e *gate.Engine) func(context.Context, *hookio.Event) *hookio.Result { return e.Check }},
		{"post-tool-use", hookio.EventPostToolUse, "Handle the post-tool-use hook",
			func(e *gate.Engine) func(context.Context, *hookio.Event) *hookio.Result { return e.OnToolUse }},
		{"stop", hookio.EventStop, "Handle the session-stop hook",
			func(e *gate.Engine) func(context.Context, *hookio.Event) *hookio.Result { return e.OnStop }},
		{"subagent-stop", hookio.EventSubagentStop, "Handle the subagent-stop hook",
			func(e *gate.Engine) func(context.Context, *hookio.Event) *hookio.Result { return e.OnSubagentStop }},
		{"after-agent", hookio.EventAfterAgent, "Handle the after-agent hook",
			func(e *gate.Engine) func(context.Context, *hookio.Event) *hookio.Result { return e.OnAfterAgent }},
	}

	cmds := make([]*cobra.Command, 0, len(stages))
	for _, s := range stages {
		s := s
		cmds = append(cmds, &cobra.Command{
			Use:   s.use,
			Short: s.short,
			Long: s.short + `.

Reads one JSON event object from stdin and writes one JSON verdict object
to stdout. Always exits zero.

Examples:
  echo '{"session_id":"abc","tool_name":"Edit"}' | gatehouse ` + s.use,
			Args: cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runHook(cmd, s.stage, s.fn)
			},
		})
	}
	return cmds
}

// runHook is the shared hook pipeline: read the event, build the engine,
// dispatch, write the result. Every failure path still emits a result object
// and exits zero; the verdict carries the outcome.
func runHook(cmd *cobra.Command, stage string, fn dispatchFunc) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), hookTimeout)
	defer cancel()

	out := cmd.OutOrStdout()

	ev, err := hookio.ReadEvent(cmd.InOrStdin())
	if err != nil {
		if errors.Is(err, hookio.ErrEmptyEvent) {
			// Nothing to evaluate; allow rather than wedging the host.
			return hookio.WriteResult(out, &hookio.Result{Verdict: hookio.VerdictAllow})
		}
		return hookio.WriteResult(out, &hookio.Result{
			Verdict:       hookio.VerdictDeny,
			SystemMessage: fmt.Sprintf("gatehouse: malformed event: %v", err),
		})
	}
	if ev.SessionID == "" {
		ev.SessionID = config.SessionIDFallback()
	}

	engine, cleanup, log, err := buildEngine()
	if err != nil {
		return hookio.WriteResult(out, &hookio.Result{
			Verdict:       hookio.VerdictDeny,
			SystemMessage: fmt.Sprintf("gatehouse: startup failure: %v", err),
		})
	}
	defer cleanup()

	res := fn(engine)(ctx, ev)
	log.Debug("hook dispatched",
		zap.String("stage", stage),
		zap.String("session", ev.SessionID),
		zap.String("verdict", string(res.Verdict)))
	return hookio.WriteResult(out, res)
}

// buildEngine assembles the full stack from configuration: logger, session
// store, audit store, custom registry, gate catalogue, engine.
func buildEngine() (*gate.Engine, func(), *zap.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, err
	}
	log := logging.MustNew(cfg.Logging.Level, cfg.Logging.Format)

	// GATEHOUSE_STATE_DIR already overrode cfg.StateDir during Load.
	store, err := session.NewStore(cfg.StateDir)
	if err != nil {
		return nil, nil, nil, err
	}

	cleanup := func() { _ = log.Sync() }
	var recorder custom.Recorder
	if cfg.AuditDB != "" {
		auditStore, err := audit.Open(cfg.AuditDB)
		if err != nil {
			// The audit trail is advisory; gate evaluation proceeds without it.
			log.Warn("audit store unavailable", zap.String("path", cfg.AuditDB), zap.Error(err))
		} else {
			recorder = auditStore
			cleanup = func() {
				_ = auditStore.Close()
				_ = log.Sync()
			}
		}
	}

	reg := custom.DefaultRegistry(custom.Deps{
		AuditDir:   cfg.AuditDir,
		Recorder:   recorder,
		GitTimeout: cfg.GitTimeout,
		Log:        log,
	})

	gates, err := catalog.Gates(cfg)
	if err != nil {
		cleanup()
		return nil, nil, nil, err
	}

	engine, err := gate.NewEngine(gates, catalog.Modes(cfg, gates), store, reg, log)
	if err != nil {
		cleanup()
		return nil, nil, nil, err
	}
	return engine, cleanup, log, nil
}
