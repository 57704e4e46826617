package custom

import "context"

// HydrationChecker reports whether the session's hydration record has been
// populated by the hydrator subagent.
type HydrationChecker struct{}

// Check is true once the hydration record carries an intent or acceptance
// criteria. The original prompt alone does not count: it is captured on
// user-prompt before the hydrator runs.
func (HydrationChecker) Check(_ context.Context, inv *Invocation) (bool, error) {
	if inv.Session == nil {
		return false, nil
	}
	return inv.Session.Hydration.Recorded(), nil
}
