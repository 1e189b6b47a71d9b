package idempotency

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wfunc/skate-game/internal/errors"
)

type counter struct {
	Value  int
	Events Ledger
}

func (c *counter) Clone() *counter {
	return &counter{Value: c.Value, Events: c.Events.Clone()}
}

func (c *counter) Ledger() *Ledger {
	return &c.Events
}

func increment(next *counter) error {
	next.Value++
	return nil
}

func TestLedger_HasAndRecord(t *testing.T) {
	var l Ledger
	assert.False(t, l.Has("e1"))

	l.Record("e1")
	l.Record("e2")
	l.Record("e1")

	assert.True(t, l.Has("e1"))
	assert.True(t, l.Has("e2"))
	assert.Equal(t, Ledger{"e1", "e2"}, l)
}

func TestLedger_CloneIsIndependent(t *testing.T) {
	l := Ledger{"a"}
	c := l.Clone()
	c.Record("b")

	assert.Len(t, l, 1)
	assert.Len(t, c, 2)
	assert.Nil(t, Ledger(nil).Clone())
}

func TestApply_SameEventTwice(t *testing.T) {
	state := &counter{}

	first, outcome, err := Apply(state, "evt-1", increment)
	require.NoError(t, err)
	assert.Equal(t, Applied, outcome)
	assert.Equal(t, 1, first.Value)
	assert.True(t, first.Events.Has("evt-1"))

	// 原状态不被修改
	assert.Equal(t, 0, state.Value)
	assert.False(t, state.Events.Has("evt-1"))

	second, outcome, err := Apply(first, "evt-1", increment)
	require.NoError(t, err)
	assert.Equal(t, AlreadyProcessed, outcome)
	assert.Same(t, first, second)
	assert.Equal(t, 1, second.Value)
}

func TestApply_FailedTransitionLeavesStateUntouched(t *testing.T) {
	state := &counter{Value: 3, Events: Ledger{"old"}}

	result, outcome, err := Apply(state, "evt-2", func(next *counter) error {
		next.Value = 100
		return errors.New(errors.ErrWrongPhase)
	})

	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrWrongPhase))
	assert.Equal(t, Applied, outcome)
	assert.Same(t, state, result)
	assert.Equal(t, 3, state.Value)
	assert.False(t, state.Events.Has("evt-2"))

	// 失败的事件可以重试
	retried, outcome, err := Apply(state, "evt-2", increment)
	require.NoError(t, err)
	assert.Equal(t, Applied, outcome)
	assert.Equal(t, 4, retried.Value)
}

func TestApply_EmptyEventID(t *testing.T) {
	state := &counter{}
	_, _, err := Apply(state, "", increment)
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))
	assert.Equal(t, 0, state.Value)
}

func TestOutcome_String(t *testing.T) {
	assert.Equal(t, "applied", Applied.String())
	assert.Equal(t, "already_processed", AlreadyProcessed.String())
}
