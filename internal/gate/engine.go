package gate

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/gatehouse/internal/gate/custom"
	"github.com/fyrsmithlabs/gatehouse/internal/hookio"
	"github.com/fyrsmithlabs/gatehouse/internal/session"
)

// Engine holds the full configured gate set and dispatches lifecycle events
// to it. It is constructed once at process start and passed down; there is
// no package-level state.
type Engine struct {
	gates []Config
	modes map[string]Mode
	store *session.Store
	reg   *custom.Registry
	log   *zap.Logger
	now   func() time.Time
}

// NewEngine validates the gate configs (regex patterns, category names,
// custom check/action references) and builds the engine.
func NewEngine(configs []Config, modes map[string]Mode, store *session.Store, reg *custom.Registry, log *zap.Logger) (*Engine, error) {
	if store == nil {
		return nil, fmt.Errorf("engine requires a session store")
	}
	if reg == nil {
		reg = custom.NewRegistry()
	}
	if log == nil {
		log = zap.NewNop()
	}
	if modes == nil {
		modes = make(map[string]Mode)
	}

	for i := range configs {
		g := &configs[i]
		if g.Name == "" {
			return nil, fmt.Errorf("gate %d has no name", i)
		}
		if g.InitialStatus == "" {
			g.InitialStatus = session.StatusClosed
		}
		for j := range g.Triggers {
			t := &g.Triggers[j]
			if err := t.When.compile(reg); err != nil {
				return nil, fmt.Errorf("gate %q trigger %d: %w", g.Name, j, err)
			}
			if t.Then.Action != "" && !reg.HasAction(t.Then.Action) {
				return nil, fmt.Errorf("gate %q trigger %d: unknown custom action %q", g.Name, j, t.Then.Action)
			}
		}
		for j := range g.Policies {
			p := &g.Policies[j]
			if err := p.When.compile(reg); err != nil {
				return nil, fmt.Errorf("gate %q policy %d: %w", g.Name, j, err)
			}
			switch p.Verdict {
			case hookio.VerdictAllow, hookio.VerdictWarn, hookio.VerdictDeny:
			default:
				return nil, fmt.Errorf("gate %q policy %d: invalid verdict %q", g.Name, j, p.Verdict)
			}
			if p.Action != "" && !reg.HasAction(p.Action) {
				return nil, fmt.Errorf("gate %q policy %d: unknown custom action %q", g.Name, j, p.Action)
			}
		}
	}

	return &Engine{
		gates: configs,
		modes: modes,
		store: store,
		reg:   reg,
		log:   log,
		now:   time.Now,
	}, nil
}

// dispatchOpts selects what one lifecycle stage does with the gate set.
type dispatchOpts struct {
	bumpTurn      bool
	incrementOps  bool
	runPolicies   bool
	runTriggers   bool
	policiesFirst bool
	closeSession  bool
}

// OnSessionStart handles the session-start event: the session document is
// created if absent, every configured gate gets its initial status, and
// session-start triggers run.
func (e *Engine) OnSessionStart(ctx context.Context, ev *hookio.Event) *hookio.Result {
	return e.dispatch(ctx, ev, hookio.EventSessionStart, dispatchOpts{runTriggers: true})
}

// OnUserPrompt handles a submitted user prompt: the global turn counter
// advances, the hydration record captures the first prompt, and
// user-prompt triggers run.
func (e *Engine) OnUserPrompt(ctx context.Context, ev *hookio.Event) *hookio.Result {
	return e.dispatch(ctx, ev, hookio.EventUserPrompt, dispatchOpts{bumpTurn: true, runTriggers: true})
}

// Check handles pre-tool-use: policy evaluation only, no trigger runs. This
// is the verdict the host consults before executing a tool.
func (e *Engine) Check(ctx context.Context, ev *hookio.Event) *hookio.Result {
	return e.dispatch(ctx, ev, hookio.EventPreToolUse, dispatchOpts{runPolicies: true})
}

// OnToolUse handles post-tool-use: each gate's active ops counter
// increments, then triggers run.
func (e *Engine) OnToolUse(ctx context.Context, ev *hookio.Event) *hookio.Result {
	return e.dispatch(ctx, ev, hookio.EventPostToolUse, dispatchOpts{incrementOps: true, runTriggers: true})
}

// OnStop handles session stop: policies run first (a deny blocks session
// end), then triggers run for cleanup side effects.
func (e *Engine) OnStop(ctx context.Context, ev *hookio.Event) *hookio.Result {
	return e.dispatch(ctx, ev, hookio.EventStop, dispatchOpts{
		runPolicies:   true,
		runTriggers:   true,
		policiesFirst: true,
		closeSession:  true,
	})
}

// OnSubagentStop handles subagent completion: the subagent's summary is
// recorded, then triggers run.
func (e *Engine) OnSubagentStop(ctx context.Context, ev *hookio.Event) *hookio.Result {
	return e.dispatch(ctx, ev, hookio.EventSubagentStop, dispatchOpts{runTriggers: true})
}

// OnAfterAgent handles the after-agent event: triggers only.
func (e *Engine) OnAfterAgent(ctx context.Context, ev *hookio.Event) *hookio.Result {
	return e.dispatch(ctx, ev, hookio.EventAfterAgent, dispatchOpts{runTriggers: true})
}

// dispatch is the shared event loop: load state, apply bookkeeping, walk
// every gate in declaration order, merge results, save state.
//
// Merging: the first deny short-circuits the walk and is returned (state is
// still saved); otherwise warn outranks allow and all messages/context
// injections concatenate in gate-declaration order.
func (e *Engine) dispatch(ctx context.Context, ev *hookio.Event, stage string, opts dispatchOpts) *hookio.Result {
	ec := hookio.Normalize(ev, stage)
	if ec.SessionID == "" {
		return infraFailure(fmt.Errorf("%w (set the session id in the event or GATEHOUSE_SESSION_ID)", hookio.ErrNoSessionID))
	}

	st, err := e.store.LoadOrCreate(ec.SessionID)
	if err != nil {
		return infraFailure(fmt.Errorf("loading session state: %w (check the state directory is writable)", err))
	}

	for i := range e.gates {
		st.EnsureGate(e.gates[i].Name, e.gates[i].InitialStatus)
	}

	if opts.bumpTurn {
		st.NextTurn()
		if st.Hydration.OriginalPrompt == "" && ec.Prompt != "" {
			st.Hydration.OriginalPrompt = ec.Prompt
		}
	}
	if opts.incrementOps {
		e.incrementOps(st, ec)
	}
	if stage == hookio.EventSubagentStop && ec.SubagentType != "" {
		st.RecordSubagent(ec.SubagentType, subagentSummary(ec), e.now())
		captureHydration(st, ec)
	}

	res := &hookio.Result{Verdict: hookio.VerdictAllow}
	var messages, contexts []string

	evaluate := func(kind string) *hookio.Result {
		for i := range e.gates {
			g := &e.gates[i]
			gs := st.Gate(g.Name)

			switch kind {
			case "policies":
				out, perr := evaluatePolicies(ctx, g.Policies, ec, gs, st, g.Name, e.reg)
				if perr != nil {
					// A required action could not materialize its
					// artifact; the gate check fails loudly.
					return e.finish(st, infraFailure(fmt.Errorf("gate %q: %w", g.Name, perr)))
				}
				verdict := e.applyMode(g.Name, out.Verdict)
				if verdict == hookio.VerdictDeny {
					gs.Blocked = true
					if out.Message != "" {
						gs.BlockReason = out.Message
					}
					res.Verdict = hookio.VerdictDeny
					messages = append(messages, out.Message)
					contexts = append(contexts, out.Context)
					res.SystemMessage = joinNonEmpty("\n", messages...)
					res.Context = joinNonEmpty("\n\n", contexts...)
					return e.finish(st, res)
				}
				if verdict == hookio.VerdictWarn {
					res.Verdict = mergeVerdict(res.Verdict, hookio.VerdictWarn)
				}
				messages = append(messages, out.Message)
				contexts = append(contexts, out.Context)

			case "triggers":
				for j := range g.Triggers {
					t := &g.Triggers[j]
					if !t.When.Matches(ctx, ec, gs, st, g.Name, e.reg) {
						continue
					}
					msg, inj, terr := applyTransition(ctx, &t.Then, ec, gs, st, g.Name, e.reg, e.now())
					if terr != nil {
						return e.finish(st, infraFailure(fmt.Errorf("gate %q: %w", g.Name, terr)))
					}
					messages = append(messages, msg)
					contexts = append(contexts, inj)
					// Only the first matching trigger fires: single
					// deterministic state step per event.
					break
				}
			}
		}
		return nil
	}

	order := []string{"triggers"}
	if opts.runPolicies && opts.runTriggers {
		if opts.policiesFirst {
			order = []string{"policies", "triggers"}
		} else {
			order = []string{"triggers", "policies"}
		}
	} else if opts.runPolicies {
		order = []string{"policies"}
	} else if !opts.runTriggers {
		order = nil
	}

	for _, kind := range order {
		if early := evaluate(kind); early != nil {
			return early
		}
	}

	if opts.closeSession && res.Verdict != hookio.VerdictDeny {
		st.ClosedAt = e.now().Unix()
	}

	res.SystemMessage = joinNonEmpty("\n", messages...)
	res.Context = joinNonEmpty("\n\n", contexts...)
	return e.finish(st, res)
}

// finish persists the session state and folds any save failure into the
// result: gate logic cannot function without durable state, so a write
// failure is surfaced as a deny with a remediation hint.
func (e *Engine) finish(st *session.State, res *hookio.Result) *hookio.Result {
	if err := e.store.Save(st); err != nil {
		e.log.Error("session state save failed", zap.String("session", st.SessionID), zap.Error(err))
		return infraFailure(fmt.Errorf("saving session state: %w (check the state directory is writable)", err))
	}
	return res
}

// incrementOps advances the active counter on every gate. Tools in the
// session category are the agent's own bookkeeping and do not count.
func (e *Engine) incrementOps(st *session.State, ec *hookio.EventContext) {
	if ToolInCategory(ec.ToolName, "session") {
		return
	}
	for i := range e.gates {
		gs := st.Gate(e.gates[i].Name)
		if gs.Status == session.StatusOpen {
			gs.OpsSinceOpen++
		} else {
			gs.OpsSinceClose++
		}
	}
}

// applyMode downgrades deny to warn for gates not in block mode.
func (e *Engine) applyMode(gateName string, v hookio.Verdict) hookio.Verdict {
	if v != hookio.VerdictDeny {
		return v
	}
	if e.modes[gateName] == ModeBlock {
		return hookio.VerdictDeny
	}
	return hookio.VerdictWarn
}

// mergeVerdict keeps the stronger of two non-deny verdicts.
func mergeVerdict(a, b hookio.Verdict) hookio.Verdict {
	if a == hookio.VerdictWarn || b == hookio.VerdictWarn {
		return hookio.VerdictWarn
	}
	return hookio.VerdictAllow
}

// infraFailure wraps an infrastructure error as a deny verdict. Exit status
// stays zero; the host reads the verdict.
func infraFailure(err error) *hookio.Result {
	return &hookio.Result{
		Verdict:       hookio.VerdictDeny,
		SystemMessage: "gatehouse internal failure: " + err.Error(),
	}
}

// captureHydration copies hydration fields a subagent reported in its stop
// event into the session record. Existing values are never overwritten; the
// first hydrator run wins.
func captureHydration(st *session.State, ec *hookio.EventContext) {
	if v, ok := ec.Raw["intent"].(string); ok && v != "" && st.Hydration.Intent == "" {
		st.Hydration.Intent = v
	}
	if v, ok := ec.Raw["acceptance_criteria"].([]any); ok && len(st.Hydration.AcceptanceCriteria) == 0 {
		for _, item := range v {
			if s, ok := item.(string); ok && s != "" {
				st.Hydration.AcceptanceCriteria = append(st.Hydration.AcceptanceCriteria, s)
			}
		}
	}
	if v, ok := ec.Raw["verdict"].(string); ok && v != "" {
		st.Hydration.ReviewerVerdict = v
	}
}

// subagentSummary pulls a summary string out of the event passthrough.
func subagentSummary(ec *hookio.EventContext) string {
	for _, key := range []string{"summary", "last_response", "result"} {
		if v, ok := ec.Raw[key].(string); ok && v != "" {
			if len(v) > 500 {
				return strings.TrimSpace(v[:500])
			}
			return v
		}
	}
	return ""
}
