// Package catalog holds the built-in gate definitions and loads optional
// extra gates from a YAML file.
package catalog

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"

	"github.com/fyrsmithlabs/gatehouse/internal/config"
	"github.com/fyrsmithlabs/gatehouse/internal/gate"
	"github.com/fyrsmithlabs/gatehouse/internal/gate/custom"
	"github.com/fyrsmithlabs/gatehouse/internal/hookio"
	"github.com/fyrsmithlabs/gatehouse/internal/session"
)

const maxCatalogFileSize = 1024 * 1024 // 1MB

// Default returns the built-in gate set in evaluation order.
func Default() []gate.Config {
	return []gate.Config{
		hydrationGate(),
		complianceReviewGate(),
		qualityCheckGate(),
	}
}

// hydrationGate keeps mutating tools locked until a hydrator subagent has
// distilled the user's prompt into intent and acceptance criteria.
func hydrationGate() gate.Config {
	return gate.Config{
		Name:          "hydration",
		Description:   "tool use requires a hydrated session: intent and acceptance criteria recorded",
		InitialStatus: session.StatusClosed,
		Triggers: []gate.Trigger{
			{
				// Opens only when the hydrator actually produced a record;
				// an empty-handed hydrator run leaves the gate closed.
				When: gate.Condition{
					Event:           hookio.EventSubagentStop,
					SubagentPattern: "hydrat",
					RequireStatus:   session.StatusClosed,
					CustomCheck:     custom.CheckHydrationRecorded,
				},
				Then: gate.Transition{
					SetStatus: session.StatusOpen,
					Message:   "hydration complete: gate {gate} is {status}",
				},
			},
		},
		Policies: []gate.Policy{
			{
				When: gate.Condition{
					Event:             hookio.EventPreToolUse,
					RequireStatus:     session.StatusClosed,
					ExcludeCategories: []string{"read-only", "session"},
				},
				Verdict: hookio.VerdictDeny,
				Message: "hydration gate is closed: run the hydrator subagent before using {tool}",
				Context: "Session {session_id} has no recorded intent. Launch the hydrator subagent to capture the user's goal and acceptance criteria, then retry.",
			},
		},
	}
}

// complianceReviewGate demands a reviewer pass once enough mutating work has
// accumulated. The deny path materializes an audit file first so its message
// can point at it.
func complianceReviewGate() gate.Config {
	return gate.Config{
		Name:          "compliance-review",
		Description:   "sustained mutating work requires a compliance reviewer pass",
		InitialStatus: session.StatusOpen,
		Triggers: []gate.Trigger{
			{
				When: gate.Condition{
					Event:           hookio.EventSubagentStop,
					SubagentPattern: "review",
				},
				Then: gate.Transition{
					SetStatus: session.StatusOpen,
					ResetOps:  true,
					Message:   "compliance review recorded at turn {turn}",
					Action:    custom.ActionRecordVerdict,
				},
			},
			{
				When: gate.Condition{
					Event:           hookio.EventPostToolUse,
					RequireStatus:   session.StatusOpen,
					MinOpsSinceOpen: 15,
				},
				Then: gate.Transition{
					SetStatus:   session.StatusClosed,
					Message:     "compliance review due: {ops_since_open} operations since last review",
					IncrMetrics: []string{"reviews_requested"},
				},
			},
		},
		Policies: []gate.Policy{
			{
				When: gate.Condition{
					Event:             hookio.EventPreToolUse,
					RequireStatus:     session.StatusClosed,
					ExcludeCategories: []string{"read-only", "session"},
				},
				Verdict: hookio.VerdictDeny,
				Message: "compliance-review gate is closed: audit written to {audit_path}; run the reviewer subagent before using {tool}",
				Action:  custom.ActionWriteAudit,
			},
		},
	}
}

// qualityCheckGate blocks session end while the working tree carries
// uncommitted changes.
func qualityCheckGate() gate.Config {
	return gate.Config{
		Name:          "quality-check",
		Description:   "session end requires a clean working tree",
		InitialStatus: session.StatusOpen,
		Policies: []gate.Policy{
			{
				When: gate.Condition{
					Event:       hookio.EventStop,
					CustomCheck: custom.CheckUncommittedWork,
				},
				Verdict: hookio.VerdictDeny,
				Message: "quality-check gate: {block_reason}",
				Context: "Commit or stash the outstanding changes, then stop the session again.",
			},
		},
	}
}

// extraGates is the YAML document shape for user-supplied gate files.
type extraGates struct {
	Gates []gate.Config `koanf:"gates"`
}

// LoadExtra parses additional gate definitions from the YAML file at path
// and returns them in declaration order. A missing path returns nil.
func LoadExtra(path string) ([]gate.Config, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening gate catalogue %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat gate catalogue: %w", err)
	}
	if info.Size() > maxCatalogFileSize {
		return nil, fmt.Errorf("gate catalogue too large: %d bytes (max %d)", info.Size(), maxCatalogFileSize)
	}

	content, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("reading gate catalogue: %w", err)
	}

	k := koanf.New(".")
	if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("parsing gate catalogue %s: %w", path, err)
	}

	var extra extraGates
	if err := k.Unmarshal("", &extra); err != nil {
		return nil, fmt.Errorf("unmarshaling gate catalogue: %w", err)
	}
	for i, g := range extra.Gates {
		if g.Name == "" {
			return nil, fmt.Errorf("gate catalogue %s: gate %d has no name", path, i)
		}
	}
	return extra.Gates, nil
}

// Gates returns the full gate list: built-ins first, then any extras named
// by the configuration. An extra gate sharing a built-in's name replaces it
// in place, keeping the built-in's evaluation position.
func Gates(cfg *config.Config) ([]gate.Config, error) {
	gates := Default()
	extra, err := LoadExtra(cfg.CatalogPath)
	if err != nil {
		return nil, err
	}
	for _, g := range extra {
		replaced := false
		for i := range gates {
			if gates[i].Name == g.Name {
				gates[i] = g
				replaced = true
				break
			}
		}
		if !replaced {
			gates = append(gates, g)
		}
	}
	return gates, nil
}

// Modes resolves each configured gate's enforcement mode. Unlisted gates
// default to warn. Environment variables cannot carry hyphens, so
// GATEHOUSE_GATES_QUALITY_CHECK configures the quality-check gate; both
// spellings are accepted here.
func Modes(cfg *config.Config, gates []gate.Config) map[string]gate.Mode {
	modes := make(map[string]gate.Mode, len(gates))
	for _, g := range gates {
		modes[g.Name] = gate.ModeWarn
		m, ok := cfg.Gates[g.Name]
		if !ok {
			m, ok = cfg.Gates[strings.ReplaceAll(g.Name, "-", "_")]
		}
		if ok && m == "block" {
			modes[g.Name] = gate.ModeBlock
		}
	}
	return modes
}
