package step

import (
	"context"

	"github.com/xela07ax/agentflow-prototype/internal/domain"
)

// Invocation — контекст одного вызова шага: корреляция для хуков и аудита.
type Invocation struct {
	RunID         string
	TraceID       string
	CorrelationID string
	Action        domain.Action
}

// Result — ответ реализации шага. StateUpdates — патч поверх эффектов
// действия; Replan сигнализирует оркестратору пересчитать план после
// применения патча.
type Result struct {
	Metadata     map[string]string
	Replan       bool
	StateUpdates domain.State
}

// Runner — единственный узкий контракт внешнего коллаборатора.
// Шаг получает read-слепок состояния и возвращает патч; изменяемой ссылки
// на рабочее состояние у него нет. Ошибка с префиксом "Critical: " в
// сочетании с Recovery Strategy агента определяет фатальность.
type Runner interface {
	Invoke(ctx context.Context, state domain.State, inv Invocation) (*Result, error)
}

// RunnerFunc — адаптер функции к интерфейсу Runner.
type RunnerFunc func(ctx context.Context, state domain.State, inv Invocation) (*Result, error)

func (f RunnerFunc) Invoke(ctx context.Context, state domain.State, inv Invocation) (*Result, error) {
	return f(ctx, state, inv)
}

// RunnerMap — привязка AgentID к реализации шага.
type RunnerMap map[string]Runner

// Hooks — внешние наблюдатели (UI/логирование). OnAgentStart возвращает
// корреляционный id, который попадает в Invocation и метаданные записи.
type Hooks interface {
	OnAgentStart(action domain.Action) string
	OnAgentEnd(action domain.Action, record domain.ExecutionRecord)
}

// NopHooks — заглушка для прогонов без наблюдателей.
type NopHooks struct{}

func (NopHooks) OnAgentStart(domain.Action) string                { return "" }
func (NopHooks) OnAgentEnd(domain.Action, domain.ExecutionRecord) {}
