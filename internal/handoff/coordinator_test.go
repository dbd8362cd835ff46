package handoff

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xela07ax/agentflow-prototype/internal/catalog"
	"github.com/xela07ax/agentflow-prototype/internal/domain"
	"go.uber.org/zap"
)

func defaultCoordinator() *Coordinator {
	routing, derived := DefaultRules()
	return New(routing, derived, zap.NewNop())
}

func TestValidateHandoffPreconditionNotMet(t *testing.T) {
	c := defaultCoordinator()
	action := domain.Action{
		Name:          "encrypt_asset",
		AgentID:       "encryptor",
		Preconditions: domain.State{catalog.FieldReviewCompleted: domain.BoolValue(true)},
	}

	v := c.ValidateHandoff("classifier", "encryptor", domain.State{}, action)
	require.False(t, v.Valid)
	assert.Equal(t, "precondition not met: "+catalog.FieldReviewCompleted, v.Reason)
}

func TestValidateHandoffRoutingRule(t *testing.T) {
	c := defaultCoordinator()
	action := domain.Action{
		Name:    "human_review",
		AgentID: "reviewer",
		Preconditions: domain.State{
			catalog.FieldImageClassified: domain.BoolValue(true),
			catalog.FieldLowConfidence:   domain.BoolValue(true),
		},
	}

	// Предусловия соблюдены, ревью уместно
	okState := domain.State{
		catalog.FieldImageClassified: domain.BoolValue(true),
		catalog.FieldLowConfidence:   domain.BoolValue(true),
	}
	assert.True(t, c.ValidateHandoff("classifier", "reviewer", okState, action).Valid)

	// auto_accepter в том же состоянии запрещен правилом маршрутизации
	auto := domain.Action{
		Name:          "auto_accept",
		AgentID:       "auto_accepter",
		Preconditions: domain.State{catalog.FieldImageClassified: domain.BoolValue(true)},
	}
	v := c.ValidateHandoff("classifier", "auto_accepter", okState, auto)
	require.False(t, v.Valid)
	assert.Contains(t, v.Reason, "routing rule violated")
}

func TestValidateHandoffDerivedFlagWarning(t *testing.T) {
	c := defaultCoordinator()
	action := domain.Action{Name: "noop", AgentID: "any"}

	// confidence высокий, а флаг говорит о низком: валидно, но с предупреждением
	state := domain.State{
		catalog.FieldConfidenceScore: domain.NumberValue(0.95),
		catalog.FieldLowConfidence:   domain.BoolValue(true),
	}
	v := c.ValidateHandoff("", "any", state, action)
	require.True(t, v.Valid)
	require.Len(t, v.Warnings, 1)
	assert.Contains(t, v.Warnings[0], catalog.FieldLowConfidence)
}

func TestValidateHandoffConsistentStateNoWarnings(t *testing.T) {
	c := defaultCoordinator()
	action := domain.Action{Name: "noop", AgentID: "any"}

	state := domain.State{
		catalog.FieldConfidenceScore: domain.NumberValue(0.5),
		catalog.FieldLowConfidence:   domain.BoolValue(true),
	}
	v := c.ValidateHandoff("", "any", state, action)
	require.True(t, v.Valid)
	assert.Empty(t, v.Warnings)
}

func TestEnsureStateConsistency(t *testing.T) {
	c := defaultCoordinator()

	state := domain.State{
		catalog.FieldConfidenceScore: domain.NumberValue(0.9),
		catalog.FieldLowConfidence:   domain.BoolValue(true), // рассинхронизирован
	}
	fixed := c.EnsureStateConsistency(state)

	assert.Equal(t, domain.BoolValue(false), fixed[catalog.FieldLowConfidence])
	// Исходное состояние не мутирует
	assert.Equal(t, domain.BoolValue(true), state[catalog.FieldLowConfidence])

	// Идемпотентность
	again := c.EnsureStateConsistency(fixed)
	assert.Equal(t, fixed, again)
}

func TestEnsureStateConsistencyThresholdBoundary(t *testing.T) {
	c := defaultCoordinator()

	// Ровно на пороге уверенность НЕ низкая
	state := domain.State{
		catalog.FieldConfidenceScore: domain.NumberValue(catalog.LowConfidenceThreshold),
	}
	fixed := c.EnsureStateConsistency(state)
	assert.Equal(t, domain.BoolValue(false), fixed[catalog.FieldLowConfidence])
}
