package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateSatisfies(t *testing.T) {
	s := State{
		"validated":  BoolValue(true),
		"confidence": NumberValue(0.9),
		"stage":      EnumValue("review"),
	}

	assert.True(t, s.Satisfies(State{"validated": BoolValue(true)}))
	assert.True(t, s.Satisfies(State{}), "empty goal is always satisfied")
	assert.False(t, s.Satisfies(State{"validated": BoolValue(false)}))
	assert.False(t, s.Satisfies(State{"missing": BoolValue(true)}))
	assert.False(t, s.Satisfies(State{"confidence": NumberValue(0.5)}))
}

func TestStateUnmetFieldsSorted(t *testing.T) {
	s := State{"a": BoolValue(true)}
	goal := State{
		"z": BoolValue(true),
		"a": BoolValue(false),
		"m": BoolValue(true),
	}

	assert.Equal(t, []string{"a", "m", "z"}, s.UnmetFields(goal))
}

func TestStateApplyDoesNotMutateOriginal(t *testing.T) {
	orig := State{"flag": BoolValue(false)}
	patched := orig.Apply(State{"flag": BoolValue(true), "extra": NumberValue(1)})

	assert.Equal(t, BoolValue(false), orig["flag"])
	assert.NotContains(t, orig, "extra")
	assert.Equal(t, BoolValue(true), patched["flag"])
	assert.Equal(t, NumberValue(1), patched["extra"])
}

func TestStateKeyCanonical(t *testing.T) {
	a := State{"x": BoolValue(true), "y": NumberValue(2), "z": EnumValue("on")}
	b := State{"z": EnumValue("on"), "y": NumberValue(2), "x": BoolValue(true)}

	require.Equal(t, a.Key(), b.Key(), "equal states must share one fingerprint")

	c := a.Apply(State{"y": NumberValue(3)})
	assert.NotEqual(t, a.Key(), c.Key())
}

func TestActionApplicable(t *testing.T) {
	act := Action{
		Name:          "classify",
		AgentID:       "classifier",
		Preconditions: State{"validated": BoolValue(true)},
	}

	assert.True(t, act.Applicable(State{"validated": BoolValue(true)}))
	assert.False(t, act.Applicable(State{"validated": BoolValue(false)}))
	assert.False(t, act.Applicable(State{}))
}
