package engine

import (
	"github.com/google/uuid"
	"github.com/xela07ax/agentflow-prototype/internal/bus"
	"github.com/xela07ax/agentflow-prototype/internal/domain"
	"github.com/xela07ax/agentflow-prototype/internal/step"
)

// Типы событий шины и журнала аудита.
const (
	EventRunStarted      = "run_started"
	EventActionCompleted = "action_completed"
	EventActionSkipped   = "action_skipped"
	EventActionFailed    = "action_failed"
	EventAgentStart      = "agent_start"
	EventAgentEnd        = "agent_end"
	EventReplanTriggered = "replan_triggered"
	EventRunCompleted    = "run_completed"
	EventRunFailed       = "run_failed"
)

// Уровни значимости для аудита.
const (
	SafetyInfo     = "info"
	SafetyWarning  = "warning"
	SafetyCritical = "critical"
)

// BusHooks — реализация step.Hooks поверх шины событий: прогресс уходит
// наблюдателям (UI, логирование), корреляционный id генерируется на старте
// шага и связывает пару start/end.
type BusHooks struct {
	bus *bus.Bus
}

func NewBusHooks(b *bus.Bus) *BusHooks { return &BusHooks{bus: b} }

func (h *BusHooks) OnAgentStart(action domain.Action) string {
	correlationID := uuid.New().String()
	h.bus.Emit(EventAgentStart, map[string]any{
		"agent_id":       action.AgentID,
		"action":         action.Name,
		"correlation_id": correlationID,
	})
	return correlationID
}

func (h *BusHooks) OnAgentEnd(action domain.Action, record domain.ExecutionRecord) {
	h.bus.Emit(EventAgentEnd, map[string]any{
		"agent_id":       action.AgentID,
		"action":         action.Name,
		"status":         string(record.Status),
		"error":          record.Error,
		"correlation_id": record.Metadata["correlation_id"],
	})
}

var _ step.Hooks = (*BusHooks)(nil)
