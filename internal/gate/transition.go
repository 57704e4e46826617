package gate

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/fyrsmithlabs/gatehouse/internal/gate/custom"
	"github.com/fyrsmithlabs/gatehouse/internal/hookio"
	"github.com/fyrsmithlabs/gatehouse/internal/session"
	"github.com/fyrsmithlabs/gatehouse/internal/template"
)

// applyTransition mutates the gate state per the transition and returns the
// rendered system message and context injection.
//
// Order is load-bearing: status change first (stamping and zeroing the
// corresponding counter), then the unconditional ops reset, then metric
// writes, then template rendering (so templates see the post-mutation
// state), then the custom action whose output is appended to the rendered
// text.
func applyTransition(ctx context.Context, tr *Transition, ec *hookio.EventContext, gs *session.GateState, st *session.State, gateName string, reg *custom.Registry, now time.Time) (string, string, error) {
	switch tr.SetStatus {
	case session.StatusOpen:
		gs.Open(now, st.Turn)
	case session.StatusClosed:
		gs.Close(now, st.Turn)
	}

	if tr.ResetOps {
		gs.ResetOps()
	}

	for k, v := range tr.SetMetrics {
		gs.SetMetric(k, v)
	}
	for _, k := range tr.IncrMetrics {
		n, _ := strconv.Atoi(gs.Metrics[k])
		gs.SetMetric(k, strconv.Itoa(n+1))
	}

	vars := templateVars(ec, gs, st, gateName)
	msg := ""
	if tr.Message != "" {
		msg = template.Render(tr.Message, vars)
	}
	inj := ""
	if tr.Context != "" {
		inj = template.Render(tr.Context, vars)
	}

	if tr.Action != "" {
		inv := &custom.Invocation{Gate: gateName, Event: ec, State: gs, Session: st}
		actionMsg, actionInj, err := reg.Execute(ctx, tr.Action, inv)
		if err != nil {
			return "", "", err
		}
		msg = joinNonEmpty("\n", msg, actionMsg)
		inj = joinNonEmpty("\n\n", inj, actionInj)
	}

	return msg, inj, nil
}

// templateVars assembles the variable set for message rendering: the event
// context, the gate state, and every metric by name.
func templateVars(ec *hookio.EventContext, gs *session.GateState, st *session.State, gateName string) map[string]string {
	vars := map[string]string{
		"gate":            gateName,
		"event":           ec.Name,
		"tool":            ec.ToolName,
		"session_id":      ec.SessionID,
		"subagent":        ec.SubagentType,
		"cwd":             ec.Cwd,
		"status":          string(gs.Status),
		"ops_since_open":  strconv.Itoa(gs.OpsSinceOpen),
		"ops_since_close": strconv.Itoa(gs.OpsSinceClose),
		"turn":            strconv.Itoa(st.Turn),
	}
	if gs.BlockReason != "" {
		vars["block_reason"] = gs.BlockReason
	}
	for k, v := range gs.Metrics {
		vars[k] = v
	}
	return vars
}

// joinNonEmpty joins the non-empty parts with sep.
func joinNonEmpty(sep string, parts ...string) string {
	kept := parts[:0]
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, sep)
}
