package domain

import "time"

// ExecutionStatus — итог выполнения одного действия в прогоне.
type ExecutionStatus string

const (
	StatusCompleted ExecutionStatus = "completed"
	StatusSkipped   ExecutionStatus = "skipped"
	StatusFailed    ExecutionStatus = "failed"
)

// ExecutionMode — как именно исполнялся шаг.
type ExecutionMode string

const (
	ModeLive    ExecutionMode = "LIVE"
	ModeSandbox ExecutionMode = "SANDBOX"
)

// ExecutionRecord — запись о выполнении одного действия.
// После создания не мутирует: Orchestrator добавляет её в трассу и забывает.
type ExecutionRecord struct {
	AgentID    string            `json:"agent_id"`
	ActionName string            `json:"action_name"`
	Status     ExecutionStatus   `json:"status"`
	Mode       ExecutionMode     `json:"mode"`
	StartTime  time.Time         `json:"start_time"`
	EndTime    time.Time         `json:"end_time"`
	Error      string            `json:"error,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// RunTrace — полный результат прогона. До возврата вызывающему принадлежит
// исключительно оркестратору.
type RunTrace struct {
	RunID           string            `json:"run_id"`
	StartTime       time.Time         `json:"start_time"`
	EndTime         time.Time         `json:"end_time"`
	Agents          []ExecutionRecord `json:"agents"`
	Replans         int               `json:"replans"`
	FinalWorldState State             `json:"final_world_state"`
}

// BreakerState — видимое состояние Circuit Breaker (для метрик и консоли).
type BreakerState string

const (
	BreakerClosed   BreakerState = "CLOSED"
	BreakerOpen     BreakerState = "OPEN"
	BreakerHalfOpen BreakerState = "HALF_OPEN"
)
