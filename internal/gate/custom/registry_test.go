package custom

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/gatehouse/internal/hookio"
	"github.com/fyrsmithlabs/gatehouse/internal/session"
)

type fakeCheck struct {
	ok  bool
	err error
}

func (c fakeCheck) Check(context.Context, *Invocation) (bool, error) { return c.ok, c.err }

type fakeAction struct {
	msg      string
	err      error
	required bool
}

func (a fakeAction) Execute(context.Context, *Invocation) (string, string, error) {
	return a.msg, "", a.err
}

func (a fakeAction) Required() bool { return a.required }

func testInvocation() *Invocation {
	return &Invocation{
		Gate:    "g",
		Event:   &hookio.EventContext{SessionID: "s", Name: hookio.EventStop},
		State:   &session.GateState{Status: session.StatusOpen},
		Session: &session.State{SessionID: "s"},
	}
}

func TestRegistry_UnknownNamesAreConfigErrors(t *testing.T) {
	r := NewRegistry()

	_, err := r.Check(context.Background(), "nope", testInvocation())
	assert.Error(t, err)

	_, _, err = r.Execute(context.Background(), "nope", testInvocation())
	assert.Error(t, err)
}

func TestRegistry_BrokenCheckerFailsOpen(t *testing.T) {
	r := NewRegistry()
	r.RegisterCheck("broken", fakeCheck{ok: true, err: errors.New("io fell over")})

	ok, err := r.Check(context.Background(), "broken", testInvocation())
	require.NoError(t, err, "checker internal errors are not propagated")
	assert.False(t, ok, "checker internal errors read as false")
}

func TestRegistry_RequiredActionFailurePropagates(t *testing.T) {
	r := NewRegistry()
	r.RegisterAction("req", fakeAction{err: errors.New("disk full"), required: true})
	r.RegisterAction("adv", fakeAction{err: errors.New("disk full"), required: false})

	_, _, err := r.Execute(context.Background(), "req", testInvocation())
	assert.Error(t, err)

	_, _, err = r.Execute(context.Background(), "adv", testInvocation())
	assert.NoError(t, err, "advisory failures are swallowed")
}

func TestDefaultRegistry_RegistersBuiltins(t *testing.T) {
	r := DefaultRegistry(Deps{AuditDir: t.TempDir()})

	assert.True(t, r.HasCheck(CheckUncommittedWork))
	assert.True(t, r.HasCheck(CheckHydrationRecorded))
	assert.True(t, r.HasAction(ActionWriteAudit))
	assert.True(t, r.HasAction(ActionRecordVerdict))
}

func TestHydrationChecker(t *testing.T) {
	inv := testInvocation()
	ok, err := HydrationChecker{}.Check(context.Background(), inv)
	require.NoError(t, err)
	assert.False(t, ok)

	inv.Session.Hydration.Intent = "ship the fix"
	ok, err = HydrationChecker{}.Check(context.Background(), inv)
	require.NoError(t, err)
	assert.True(t, ok)
}
