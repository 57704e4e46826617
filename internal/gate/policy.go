package gate

import (
	"context"

	"github.com/fyrsmithlabs/gatehouse/internal/gate/custom"
	"github.com/fyrsmithlabs/gatehouse/internal/hookio"
	"github.com/fyrsmithlabs/gatehouse/internal/session"
	"github.com/fyrsmithlabs/gatehouse/internal/template"
)

// policyOutcome is the result of evaluating one gate's policies for one
// event.
type policyOutcome struct {
	Verdict hookio.Verdict
	Message string
	Context string
}

// evaluatePolicies scans the gate's policies in order and returns the first
// match's verdict with its rendered templates. No match is an implicit
// allow with no message.
//
// A policy's custom action runs before its templates render, so an action
// that materializes an artifact (writing its path into the gate's metrics)
// can be referenced by the message.
func evaluatePolicies(ctx context.Context, policies []Policy, ec *hookio.EventContext, gs *session.GateState, st *session.State, gateName string, reg *custom.Registry) (policyOutcome, error) {
	for i := range policies {
		p := &policies[i]
		if !p.When.Matches(ctx, ec, gs, st, gateName, reg) {
			continue
		}

		var actionMsg, actionInj string
		if p.Action != "" {
			inv := &custom.Invocation{Gate: gateName, Event: ec, State: gs, Session: st}
			var err error
			actionMsg, actionInj, err = reg.Execute(ctx, p.Action, inv)
			if err != nil {
				return policyOutcome{}, err
			}
		}

		vars := templateVars(ec, gs, st, gateName)
		out := policyOutcome{Verdict: p.Verdict}
		if p.Message != "" {
			out.Message = template.Render(p.Message, vars)
		}
		if p.Context != "" {
			out.Context = template.Render(p.Context, vars)
		}
		out.Message = joinNonEmpty("\n", out.Message, actionMsg)
		out.Context = joinNonEmpty("\n\n", out.Context, actionInj)
		return out, nil
	}

	return policyOutcome{Verdict: hookio.VerdictAllow}, nil
}
