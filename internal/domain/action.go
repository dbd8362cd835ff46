package domain

import "time"

// Action — именованная единица работы пайплайна.
// Неизменяема после загрузки каталога. AgentID — внешний стабильный ключ,
// по которому ищутся реализация шага, Circuit Breaker и Recovery Strategy.
// Несколько действий могут разделять один AgentID (например, два режима
// калибровки со взаимоисключающими предусловиями).
type Action struct {
	Name          string  `json:"name" mapstructure:"name"`
	AgentID       string  `json:"agent_id" mapstructure:"agent_id"`
	Cost          float64 `json:"cost" mapstructure:"cost"`
	Preconditions State   `json:"preconditions" mapstructure:"preconditions"`
	Effects       State   `json:"effects" mapstructure:"effects"`
}

// Applicable — предусловия являются подмножеством состояния.
func (a Action) Applicable(s State) bool {
	return s.Satisfies(a.Preconditions)
}

// RecoveryStrategy — статичная политика восстановления для одного AgentID.
// Загружается один раз, в ходе прогона только читается.
type RecoveryStrategy struct {
	Critical        bool          `json:"critical" mapstructure:"critical"`
	Retry           bool          `json:"retry" mapstructure:"retry"`
	MaxRetries      int           `json:"max_retries" mapstructure:"max_retries"`
	RetryDelay      time.Duration `json:"retry_delay" mapstructure:"retry_delay"`
	FallbackAgentID string        `json:"fallback_agent_id,omitempty" mapstructure:"fallback_agent_id"`
}
