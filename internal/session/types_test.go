package session

import (
	"testing"
	"time"
)

func TestGateState_OpenClose(t *testing.T) {
	gs := &GateState{Status: StatusClosed}
	now := time.Unix(1700000000, 0)

	if !gs.Open(now, 4) {
		t.Fatal("Open on closed gate returned false")
	}
	if gs.Status != StatusOpen {
		t.Errorf("Status = %q, want %q", gs.Status, StatusOpen)
	}
	if gs.LastOpenTS != now.Unix() || gs.LastOpenTurn != 4 {
		t.Errorf("open stamp = (%d, %d), want (%d, 4)", gs.LastOpenTS, gs.LastOpenTurn, now.Unix())
	}
	if gs.OpsSinceOpen != 0 {
		t.Errorf("OpsSinceOpen = %d, want 0", gs.OpsSinceOpen)
	}

	// Opening again is a no-op and keeps the original stamp.
	gs.OpsSinceOpen = 9
	if gs.Open(now.Add(time.Hour), 10) {
		t.Error("Open on open gate returned true")
	}
	if gs.OpsSinceOpen != 9 || gs.LastOpenTurn != 4 {
		t.Error("repeated Open mutated state")
	}

	if !gs.Close(now.Add(2*time.Hour), 12) {
		t.Fatal("Close on open gate returned false")
	}
	if gs.Status != StatusClosed || gs.OpsSinceClose != 0 || gs.LastCloseTurn != 12 {
		t.Errorf("close left state %+v", gs)
	}
}

func TestGateState_ResetOpsIdempotent(t *testing.T) {
	gs := &GateState{Status: StatusOpen, OpsSinceOpen: 7, OpsSinceClose: 2}
	gs.ResetOps()
	gs.ResetOps()
	if gs.OpsSinceOpen != 0 || gs.OpsSinceClose != 0 {
		t.Errorf("counters = (%d, %d), want (0, 0)", gs.OpsSinceOpen, gs.OpsSinceClose)
	}
}

func TestState_GateAutoCreate(t *testing.T) {
	st := &State{SessionID: "s"}
	gs := st.Gate("hydration")
	if gs.Status != StatusClosed {
		t.Errorf("new gate status = %q, want %q", gs.Status, StatusClosed)
	}
	if st.Gate("hydration") != gs {
		t.Error("Gate returned a different instance on second access")
	}

	open := st.EnsureGate("prewarmed", StatusOpen)
	if open.Status != StatusOpen {
		t.Errorf("EnsureGate initial status = %q, want %q", open.Status, StatusOpen)
	}
	// Existing gates keep their state regardless of the initial argument.
	if st.EnsureGate("hydration", StatusOpen).Status != StatusClosed {
		t.Error("EnsureGate overwrote existing gate status")
	}
}

func TestState_NextTurn(t *testing.T) {
	st := &State{}
	if st.NextTurn() != 1 || st.NextTurn() != 2 {
		t.Errorf("turn sequence broken, turn = %d", st.Turn)
	}
}

func TestHydration_Recorded(t *testing.T) {
	h := &Hydration{OriginalPrompt: "prompt only"}
	if h.Recorded() {
		t.Error("prompt alone should not count as recorded")
	}
	h.Intent = "do the thing"
	if !h.Recorded() {
		t.Error("intent should count as recorded")
	}
}
